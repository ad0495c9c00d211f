package preview

import (
	"fmt"
	"os"
)

// tempHandle is a playable on-disk reference for a staged in-memory
// file. Every handle must be released when superseded or when its
// session is torn down; repeated edits in one session would otherwise
// accumulate orphaned files.
type tempHandle struct {
	path string
}

func newTempHandle(data []byte, pattern string) (*tempHandle, error) {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write staged file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("close staged file: %w", err)
	}
	return &tempHandle{path: tmp.Name()}, nil
}

func (h *tempHandle) Path() string {
	return h.path
}

func (h *tempHandle) Release() {
	if h == nil {
		return
	}
	os.Remove(h.path)
}
