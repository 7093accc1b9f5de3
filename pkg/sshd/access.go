// pkg/sshd/access.go

package sshd

// DefaultConfigPath is the OpenSSH server configuration on Debian/Ubuntu.
const DefaultConfigPath = "/etc/ssh/sshd_config"

const (
	KeyPasswordAuthentication = "PasswordAuthentication"
	KeyPermitRootLogin        = "PermitRootLogin"
)

// RootLoginValues are the values sshd accepts for PermitRootLogin.
var RootLoginValues = []string{
	"yes",
	"no",
	"without-password",
	"prohibit-password",
	"forced-commands-only",
}

// IsValidRootLogin reports whether v is accepted verbatim by sshd.
func IsValidRootLogin(v string) bool {
	for _, ok := range RootLoginValues {
		if v == ok {
			return true
		}
	}
	return false
}

// NormalizeRootLogin returns v when sshd accepts it and "no" otherwise.
// Matching is exact; "YES" and "" both become "no".
func NormalizeRootLogin(v string) string {
	if IsValidRootLogin(v) {
		return v
	}
	return "no"
}

// YesNo renders a boolean directive value.
func YesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// AccessDirectives returns the directives a provisioning run applies, in the
// order they are appended when absent.
func AccessDirectives(passwordAuth bool, rootLogin string) (*DirectiveSet, error) {
	return NewDirectiveSet(
		Directive{Key: KeyPasswordAuthentication, Value: YesNo(passwordAuth)},
		Directive{Key: KeyPermitRootLogin, Value: NormalizeRootLogin(rootLogin)},
	)
}
