// Package lock implements the cross-process folder lock from spec section
// 5/6: an flock(2)-based exclusive lock on a well-known file inside a
// shared directory, held across any critical section that mutates the
// corpus or the stats directory.
//
// Grounded on _examples/original_source/src/file.cpp's FolderLock
// (open-create, flock(LOCK_EX), then a stat/fstat inode check to guard
// against a lock file that was unlinked and recreated by a racing holder
// between open and flock).
package lock

import (
	"os"
	"path/filepath"
	"sync"

	lodaerrors "loda/internal/errors"
	"loda/internal/logsink"

	"golang.org/x/sys/unix"
)

const lockFileName = "lock"

// FolderLock holds an exclusive lock on folder's "lock" file for its
// lifetime. The zero value is not usable; construct with New.
type FolderLock struct {
	path string
	fd   int
	log  logsink.Logger

	mu       sync.Mutex
	released bool
}

// New creates folder if needed and blocks until it holds the exclusive
// lock, matching FolderLock's constructor. It loops reopening the lock
// file if another process wins a race to recreate it after an unlink.
func New(folder string, log logsink.Logger) (*FolderLock, error) {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, lodaerrors.Wrap(lodaerrors.LockContention, err, "creating lock folder %s", folder)
	}
	path := filepath.Join(folder, lockFileName)
	if log != nil {
		log.Debug("acquiring lock %s", path)
	}
	for {
		fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0644)
		if err != nil {
			return nil, lodaerrors.Wrap(lodaerrors.LockContention, err, "opening lock file %s", path)
		}
		if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
			unix.Close(fd)
			return nil, lodaerrors.Wrap(lodaerrors.LockContention, err, "locking %s", path)
		}
		var fdStat, pathStat unix.Stat_t
		if err := unix.Fstat(fd, &fdStat); err != nil {
			unix.Close(fd)
			return nil, lodaerrors.Wrap(lodaerrors.LockContention, err, "fstat %s", path)
		}
		if err := unix.Stat(path, &pathStat); err == nil && fdStat.Ino == pathStat.Ino {
			if log != nil {
				log.Debug("obtained lock %s", path)
			}
			return &FolderLock{path: path, fd: fd, log: log}, nil
		}
		unix.Close(fd)
	}
}

// Release unlinks the lock file and releases the flock. Safe to call more
// than once; only the first call has an effect, matching the destructor's
// idempotent release().
func (l *FolderLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.released = true
	if l.log != nil {
		l.log.Debug("releasing lock %s", l.path)
	}
	_ = unix.Unlink(l.path)
	_ = unix.Flock(l.fd, unix.LOCK_UN)
	_ = unix.Close(l.fd)
}

// Locker adapts New/Release to seqindex.Locker's Lock(folder)-returns-
// unlock-func shape, so MergeCounts and other folder-locked operations can
// take a Locker wherever they need a folder lock.
type Locker struct {
	Log logsink.Logger
}

// Lock acquires folder's lock and returns a function that releases it.
func (lk Locker) Lock(folder string) (func(), error) {
	fl, err := New(folder, lk.Log)
	if err != nil {
		return nil, err
	}
	return fl.Release, nil
}
