package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Session carries per-conversation tool state. The working directory is
// read at call time by every path-taking tool and changed only by
// change_directory.
type Session struct {
	mu  sync.RWMutex
	dir string
}

// NewSession starts a session in dir, or the process working directory
// when dir is empty.
func NewSession(dir string) (*Session, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}
	return &Session{dir: abs}, nil
}

// Dir returns the current working directory.
func (s *Session) Dir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dir
}

// Resolve makes path absolute against the working directory. An empty
// path resolves to the working directory and a leading ~ to $HOME.
func (s *Session) Resolve(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return s.Dir()
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(s.Dir(), path)
}

// Chdir moves the session to path. The directory is unchanged on error.
func (s *Session) Chdir(path string) (string, error) {
	target := s.Resolve(path)
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return target, fmt.Errorf("directory %s does not exist", target)
	}

	s.mu.Lock()
	s.dir = target
	s.mu.Unlock()
	return target, nil
}
