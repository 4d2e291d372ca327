package processing

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// RunLock serialises analysis runs per sequence on one host using advisory
// file locks. A nil RunLock or one with no directory never blocks.
type RunLock struct {
	dir string
}

func NewRunLock(dir string) (*RunLock, error) {
	if dir == "" {
		return &RunLock{}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory %q: %w", dir, err)
	}
	return &RunLock{dir: dir}, nil
}

// Acquire takes the lock for a sequence without waiting. The returned
// release func must be called once the run ends.
func (l *RunLock) Acquire(sequenceID string) (func(), error) {
	if l == nil || l.dir == "" {
		return func() {}, nil
	}
	lock := flock.New(filepath.Join(l.dir, sequenceID+".lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	return func() { _ = lock.Unlock() }, nil
}
