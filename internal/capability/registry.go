// Package capability provides the named-tool registry the reasoning loop
// executes actions against.
package capability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/manjuraavi/auto-responder/internal/logging"
)

// Capability is a named operation the loop can invoke between decisions.
type Capability struct {
	Name        string
	Description string
	Run         func(ctx context.Context, input string) (string, error)
}

// Call is a single capability invocation request.
type Call struct {
	Name  string
	Input string
}

// Registry manages registered capabilities. Safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]Capability
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		capabilities: make(map[string]Capability),
	}
}

// Register adds a capability. Registering an existing name replaces it.
func (r *Registry) Register(c Capability) error {
	if c.Name == "" {
		return fmt.Errorf("capability name cannot be empty")
	}
	if c.Run == nil {
		return fmt.Errorf("capability %s has no run function", c.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[c.Name] = c

	logging.AgentDebug("Registered capability %s", c.Name)
	return nil
}

// Get returns a capability by name.
func (r *Registry) Get(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.capabilities[name]
	return c, ok
}

// List returns registered capability names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.capabilities))
	for name := range r.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named capability with the given input.
func (r *Registry) Execute(ctx context.Context, name, input string) (string, error) {
	r.mu.RLock()
	c, ok := r.capabilities[name]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("capability not registered: %s", name)
	}

	timer := logging.StartTimer(logging.CategoryAgent, "Execute:"+name)
	defer timer.Stop()

	result, err := c.Run(ctx, input)
	if err != nil {
		logging.Get(logging.CategoryAgent).Error("Capability %s failed: %v", name, err)
		return "", fmt.Errorf("capability %s failed: %w", name, err)
	}
	return result, nil
}

// Catalog renders the capability list for prompt injection, one
// "name: description" line per capability in sorted order.
func (r *Registry) Catalog() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.capabilities))
	for name := range r.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(fmt.Sprintf("- %s: %s\n", name, r.capabilities[name].Description))
	}
	return b.String()
}
