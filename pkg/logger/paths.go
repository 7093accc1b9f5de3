/* pkg/logger/paths.go */

package logger

import (
	"os"
	"path/filepath"
)

const logFileName = "sshaccess.log"

// PlatformLogPaths returns candidate log paths in order of priority.
func PlatformLogPaths() []string {
	paths := []string{filepath.Join("/var/log/sshaccess", logFileName)}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".sshaccess", logFileName))
	}
	return append(paths, filepath.Join(os.TempDir(), "sshaccess", logFileName))
}
