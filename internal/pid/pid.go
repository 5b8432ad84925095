// Package pid guards the controller against a second daemon instance.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/unifanctl/internal/errors"
)

const (
	DefaultFile = "unifanctl.pid"
)

// Path resolves name against the temp directory unless it is absolute.
func Path(name string) string {
	if name == "" {
		name = DefaultFile
	}
	if filepath.IsAbs(name) {
		return name
	}

	return filepath.Join(os.TempDir(), name)
}

// Write writes the current process ID to path. It fails with
// ErrAlreadyRunning when the file names a live process. A stale or
// unreadable file is replaced.
func Write(path string) error {
	errFactory := errors.New()

	if running, err := Running(path); err != nil {
		return err
	} else if running {
		return errFactory.WithData(errors.ErrAlreadyRunning, path)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Running reports whether path names a live process other than this one.
func Running(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.New().Wrap(errors.ErrInternal, err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 || pid == os.Getpid() {
		return false, nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, nil
	}

	// EPERM still means the process exists
	err = process.Signal(syscall.Signal(0))

	return err == nil || errors.Is(err, syscall.EPERM), nil
}

// Remove removes the PID file.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}
