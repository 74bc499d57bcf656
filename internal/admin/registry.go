package admin

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionInfo is the admin-facing view of one live wire connection.
type SessionInfo struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Registry tracks live sessions for the admin surface. The daemon adds
// an entry when a connection is accepted and removes it on teardown.
type Registry struct {
	mu    sync.RWMutex
	items map[string]SessionInfo
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]SessionInfo)}
}

// Add records a new session and returns its generated id.
func (r *Registry) Add(remoteAddr string) string {
	info := SessionInfo{
		ID:          uuid.NewString(),
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
	}
	r.mu.Lock()
	r.items[info.ID] = info
	r.mu.Unlock()
	return info.ID
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
}

func (r *Registry) List() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionInfo, 0, len(r.items))
	for _, info := range r.items {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}
