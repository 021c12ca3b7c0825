package runtime

import (
	"chat-relay/contract"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Registry is the presence table: identity -> handle of the connection that last
// announced it. It only keeps handle ids, never the connections themselves.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]contract.HandleID
}

func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[string]contract.HandleID),
	}
}

// Bind associates identity with handle, replacing any previous binding.
// Messages addressed to identity route to handle from now on.
func (r *Registry) Bind(identity string, handle contract.HandleID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[identity] = handle
}

// UnbindIfCurrent removes the binding only when identity is still bound to handle.
// A disconnect from a replaced session must not evict the session that replaced it.
func (r *Registry) UnbindIfCurrent(identity string, handle contract.HandleID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.bindings[identity]
	if !ok || current != handle {
		return false
	}
	delete(r.bindings, identity)
	return true
}

func (r *Registry) Resolve(identity string) (contract.HandleID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.bindings[identity]
	return handle, ok
}

// Identities returns the currently bound identities, sorted.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	identities := lo.Keys(r.bindings)
	r.mu.RUnlock()

	slices.Sort(identities)
	return identities
}
