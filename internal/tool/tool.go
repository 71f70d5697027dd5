package tool

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/harunnryd/torque/internal/shop"
)

var (
	ErrToolNotFound = errors.New("tool not found")
)

type Status string

const (
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusNoResults Status = "no_results"
)

// Definition is the schema the remote agent sees for one tool.
type Definition struct {
	Name        string                 `json:"name" yaml:"name"`
	Description string                 `json:"description" yaml:"description"`
	Parameters  map[string]interface{} `json:"parameters" yaml:"-"`
	// SuccessHint is appended to the feedback message after a successful call,
	// e.g. "The images are already displayed to the technician."
	SuccessHint string `json:"-" yaml:"success_hint"`
}

// Result is the structured payload every handler returns.
type Result struct {
	Status  Status      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Handler executes one invocation. It must only depend on its params and the
// context snapshot it is handed.
type Handler func(ctx context.Context, params map[string]interface{}, snap shop.Snapshot) (Result, error)

type entry struct {
	def     Definition
	handler Handler
}

// Registry holds all available tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]entry),
	}
}

// Register adds or replaces a tool. The last registration for a name wins.
func (r *Registry) Register(def Definition, handler Handler) {
	name := NormalizeToolName(def.Name)
	if name == "" {
		panic("tool: empty tool name")
	}
	if handler == nil {
		panic("tool: nil handler for " + name)
	}
	def.Name = name
	if def.Parameters == nil {
		def.Parameters = map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}
	}

	r.mu.Lock()
	r.tools[name] = entry{def: def, handler: handler}
	r.mu.Unlock()
}

func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.tools, NormalizeToolName(name))
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Definition, Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[NormalizeToolName(name)]
	return e.def, e.handler, ok
}

// Definitions returns all tool definitions sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.tools[name].def)
	}
	return defs
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

func NormalizeToolName(name string) string {
	return strings.TrimSpace(name)
}
