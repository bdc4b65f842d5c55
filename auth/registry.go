package auth

import (
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/jrsteele09/go-autolaunch/internal/errors"
)

// Registry maps provider hints to providers. Adding a provider means adding
// it to the registration list; no other provider changes.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds p under p.Kind(), replacing any provider with the same kind.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Kind()] = p
}

// Get returns the provider for hint or an ErrConfiguration error.
func (r *Registry) Get(hint string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[hint]
	if !ok {
		return nil, fmt.Errorf("%w: unknown auth provider %q", apperrors.ErrConfiguration, hint)
	}
	return p, nil
}

func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.providers))
	for k := range r.providers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// DefaultProviders is the registration list used by the server.
func DefaultProviders() []Provider {
	return []Provider{
		NewPolyauthProvider(),
		NewLegacyProvider(),
		NewJWTProvider(),
		NewOAuth2Provider(),
	}
}
