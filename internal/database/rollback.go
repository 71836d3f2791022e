package database

import (
	"fmt"
	"sort"
)

// RollbackWrapper layers uncommitted edits over a backend. Begin opens a
// frame, Put writes into the newest frame and Get reads through the
// frames from newest to oldest before reaching the backend. Commit folds
// the newest frame into its parent, or flushes it to the backend when it
// is the only one. Rollback discards the newest frame.
type RollbackWrapper struct {
	backend Backend
	frames  []map[string]string
}

func NewRollbackWrapper(backend Backend) *RollbackWrapper {
	return &RollbackWrapper{backend: backend}
}

// Depth reports how many frames are open.
func (r *RollbackWrapper) Depth() int { return len(r.frames) }

func (r *RollbackWrapper) Begin() {
	r.frames = append(r.frames, make(map[string]string))
}

func (r *RollbackWrapper) Get(key string) (string, bool, error) {
	for i := len(r.frames) - 1; i >= 0; i-- {
		if v, ok := r.frames[i][key]; ok {
			return v, true, nil
		}
	}
	return r.backend.Get(key)
}

// Put records the write in the newest frame. Without an open frame the
// write goes straight to the backend.
func (r *RollbackWrapper) Put(key, value string) error {
	if len(r.frames) == 0 {
		return r.backend.Put(key, value)
	}
	r.frames[len(r.frames)-1][key] = value
	return nil
}

func (r *RollbackWrapper) Commit() error {
	n := len(r.frames)
	if n == 0 {
		return fmt.Errorf("commit without an open frame")
	}
	top := r.frames[n-1]
	r.frames = r.frames[:n-1]
	if n > 1 {
		parent := r.frames[n-2]
		for k, v := range top {
			parent[k] = v
		}
		return nil
	}
	// Flush in sorted key order so backend writes are deterministic.
	keys := make([]string, 0, len(top))
	for k := range top {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := r.backend.Put(k, top[k]); err != nil {
			return err
		}
	}
	return nil
}

func (r *RollbackWrapper) Rollback() {
	if n := len(r.frames); n > 0 {
		r.frames = r.frames[:n-1]
	}
}
