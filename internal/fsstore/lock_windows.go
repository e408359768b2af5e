//go:build windows

package fsstore

import (
	"context"
	"sync"
)

var windowsLocks sync.Map

// Windows builds only serialize within the process.
func withLockFile(ctx context.Context, lockPath string, fn func() error) error {
	v, _ := windowsLocks.LoadOrStore(lockPath, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	for !mu.TryLock() {
		if err := waitForLockRetry(ctx, lockPath); err != nil {
			return err
		}
	}
	defer mu.Unlock()
	return fn()
}
