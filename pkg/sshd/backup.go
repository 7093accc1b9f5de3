// pkg/sshd/backup.go

package sshd

import (
	"fmt"
	"os"
	"syscall"
	"time"

	cerr "github.com/cockroachdb/errors"
)

// BackupTimeFormat is the timestamp layout of backup file names.
const BackupTimeFormat = "20060102-150405"

// maxBackupSuffix bounds the search for a free backup name within one second.
const maxBackupSuffix = 1000

// BackupName returns the preferred backup path for path at now.
func BackupName(path string, now time.Time) string {
	return path + ".bak-" + now.Format(BackupTimeFormat)
}

// createBackup writes data to a new backup file next to path. An existing
// name is never reused: a numeric suffix is added until O_EXCL succeeds.
// Mode, mtime and (where permitted) ownership of the original are copied.
func createBackup(path string, data []byte, info os.FileInfo, now time.Time) (string, error) {
	base := BackupName(path, now)
	name := base
	for i := 1; ; i++ {
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
		if err == nil {
			if werr := writeBackup(f, name, data, info); werr != nil {
				_ = os.Remove(name)
				return "", werr
			}
			return name, nil
		}
		if !cerr.Is(err, os.ErrExist) {
			return "", cerr.Wrapf(err, "create backup %s", name)
		}
		if i > maxBackupSuffix {
			return "", cerr.Newf("no free backup name for %s", base)
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
}

func writeBackup(f *os.File, name string, data []byte, info os.FileInfo) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return cerr.Wrapf(err, "write backup %s", name)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return cerr.Wrapf(err, "sync backup %s", name)
	}
	if err := f.Close(); err != nil {
		return cerr.Wrapf(err, "close backup %s", name)
	}
	// OpenFile applies the umask
	if err := os.Chmod(name, info.Mode().Perm()); err != nil {
		return cerr.Wrapf(err, "chmod backup %s", name)
	}
	copyOwner(name, info)
	if err := os.Chtimes(name, info.ModTime(), info.ModTime()); err != nil {
		return cerr.Wrapf(err, "set backup times %s", name)
	}
	return nil
}

// copyOwner applies the uid/gid of info to name. Only root can give files
// away, so failures are ignored.
func copyOwner(name string, info os.FileInfo) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	if int(st.Uid) == os.Geteuid() && int(st.Gid) == os.Getegid() {
		return
	}
	_ = os.Lchown(name, int(st.Uid), int(st.Gid))
}
