// Package lockfile serializes sync runs against the same mirror repository.
//
// Two overlapping runs would both see a bug as unmirrored and create two
// issues for it, so a run holds an exclusive advisory lock for its whole
// duration. The lock file records who holds it; the file itself is left in
// place on release because removing a locked file races with the next opener.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLockBusy means another process holds the lock.
var ErrLockBusy = errors.New("lock held by another process")

// LockInfo is written into the lock file by the holder.
type LockInfo struct {
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	StartedAt time.Time `json:"started_at"`
}

// Lock is a held run lock.
type Lock struct {
	path string
	f    *os.File
}

// Acquire takes the lock at path without blocking. When another process holds
// it the returned error matches ErrLockBusy and names the holder if known.
func Acquire(path, command string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) // #nosec G304 - path comes from config
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := flockExclusiveNonBlock(f); err != nil {
		_ = f.Close()
		if !errors.Is(err, ErrLockBusy) {
			return nil, fmt.Errorf("locking %s: %w", path, err)
		}
		if info, rerr := ReadLockInfo(path); rerr == nil && info.PID > 0 {
			return nil, fmt.Errorf("%w: %s (pid %d) running since %s", ErrLockBusy, info.Command, info.PID, info.StartedAt.Format(time.RFC3339))
		}
		return nil, err
	}

	info := LockInfo{PID: os.Getpid(), Command: command, StartedAt: time.Now().UTC()}
	data, _ := json.Marshal(info)
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt(data, 0)
		_ = f.Sync()
	}

	return &Lock{path: path, f: f}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = l.f.Truncate(0)
	err := flockUnlock(l.f)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}

// ReadLockInfo reads the holder recorded in a lock file.
func ReadLockInfo(path string) (*LockInfo, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from config
	if err != nil {
		return nil, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parsing lock file %s: %w", path, err)
	}
	return &info, nil
}

// DefaultPath returns the lock location for a mirror repository.
func DefaultPath(owner, repo string) string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("bzmirror-%s-%s.lock", owner, repo))
}
