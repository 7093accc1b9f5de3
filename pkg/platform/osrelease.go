// pkg/platform/osrelease.go

// Package platform wraps the host's package manager and firewall and reads
// the distribution identity from os-release.
package platform

import (
	"strings"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/joho/godotenv"
)

// OSReleasePath is the systemd os-release location.
const OSReleasePath = "/etc/os-release"

// OSRelease holds the os-release fields sshaccess uses.
type OSRelease struct {
	ID         string
	IDLike     string
	VersionID  string
	PrettyName string
}

// ReadOSRelease parses an os-release file. Its KEY="value" syntax is a
// subset of dotenv.
func ReadOSRelease(path string) (*OSRelease, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, eos_err.ClassifyFileError(err, path, "read")
	}
	return &OSRelease{
		ID:         env["ID"],
		IDLike:     env["ID_LIKE"],
		VersionID:  env["VERSION_ID"],
		PrettyName: env["PRETTY_NAME"],
	}, nil
}

func (o *OSRelease) family() []string {
	return append([]string{o.ID}, strings.Fields(o.IDLike)...)
}

// IsDebianFamily reports whether apt and dpkg are the native tools.
func (o *OSRelease) IsDebianFamily() bool {
	for _, id := range o.family() {
		if id == "debian" || id == "ubuntu" {
			return true
		}
	}
	return false
}

// AdminGroup returns the conventional administrative group: wheel on
// RHEL/Fedora derivatives, sudo elsewhere.
func (o *OSRelease) AdminGroup() string {
	for _, id := range o.family() {
		if id == "rhel" || id == "fedora" || id == "centos" {
			return "wheel"
		}
	}
	return "sudo"
}
