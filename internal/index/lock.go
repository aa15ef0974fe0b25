package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	apperr "github.com/abdul-hamid-achik/codeagent/internal/errors"
)

const lockFileName = "index.lock"

// AcquireLock takes the advisory writer lock in dir, polling until timeout.
// The returned release func is always non-nil.
func AcquireLock(ctx context.Context, dir string, timeout time.Duration) (func(), error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return func() {}, fmt.Errorf("creating index directory: %w", err)
	}
	path := filepath.Join(dir, lockFileName)
	l := flock.New(path)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return func() {}, fmt.Errorf("cannot acquire index lock: %w", err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return func() {}, apperr.IndexLocked(path)
		}
		select {
		case <-ctx.Done():
			return func() {}, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// lock serializes writers within the process and, when LockDir is set,
// across processes.
func (ix *Index) lock(ctx context.Context) (func(), error) {
	ix.mu.Lock()
	if ix.opts.LockDir == "" {
		return ix.mu.Unlock, nil
	}
	release, err := AcquireLock(ctx, ix.opts.LockDir, ix.opts.LockTimeout)
	if err != nil {
		ix.mu.Unlock()
		return func() {}, err
	}
	return func() {
		release()
		ix.mu.Unlock()
	}, nil
}
