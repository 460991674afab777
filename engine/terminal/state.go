package terminal

import "sync"

// defaultSessionKey tracks the working directory for callers that carry
// no session identity, such as stdio transports.
const defaultSessionKey = "default"

// DirRegistry tracks one working directory per connected session so
// concurrent conversations cannot move each other's cwd.
type DirRegistry struct {
	mu       sync.Mutex
	dirs     map[string]string
	startDir string
}

// NewDirRegistry builds a registry whose sessions start in startDir.
func NewDirRegistry(startDir string) *DirRegistry {
	return &DirRegistry{
		dirs:     make(map[string]string),
		startDir: startDir,
	}
}

// Get returns the session's current directory, falling back to the
// start directory for sessions that never changed it.
func (r *DirRegistry) Get(sessionID string) string {
	if sessionID == "" {
		sessionID = defaultSessionKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if dir, ok := r.dirs[sessionID]; ok {
		return dir
	}
	return r.startDir
}

// Set commits a directory change for the session.
func (r *DirRegistry) Set(sessionID, dir string) {
	if sessionID == "" {
		sessionID = defaultSessionKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs[sessionID] = dir
}

// Drop forgets a session's directory, typically on disconnect.
func (r *DirRegistry) Drop(sessionID string) {
	if sessionID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.dirs, sessionID)
}
