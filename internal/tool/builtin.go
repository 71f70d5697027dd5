package tool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/harunnryd/torque/internal/backend"
)

// Memory is the per-session key/value scratchpad the agent may write to.
type Memory interface {
	SetMemory(key, value string)
}

// BuiltinOptions carries runtime dependencies needed by built-in tool factories.
type BuiltinOptions struct {
	Backend    backend.API
	Memory     Memory
	ImageLimit int
	LogLimit   int
}

const (
	DefaultBuiltinImageLimit = 6
	DefaultBuiltinLogLimit   = 50
)

// Builtin is one constructed tool ready for Registry.Register.
type Builtin struct {
	Definition Definition
	Handler    Handler
}

type BuiltinFactory func(options BuiltinOptions) (Builtin, error)

var builtinCatalog = struct {
	mu        sync.RWMutex
	factories map[string]BuiltinFactory
}{
	factories: map[string]BuiltinFactory{},
}

// RegisterBuiltin registers a built-in tool factory under a tool name.
// Intended to be called in init() from built-in tool files.
func RegisterBuiltin(name string, factory BuiltinFactory) {
	normalized := NormalizeToolName(name)
	if normalized == "" {
		panic("tool: built-in name cannot be empty")
	}
	if factory == nil {
		panic(fmt.Sprintf("tool: built-in factory cannot be nil (%s)", normalized))
	}

	builtinCatalog.mu.Lock()
	defer builtinCatalog.mu.Unlock()

	if _, exists := builtinCatalog.factories[normalized]; exists {
		panic(fmt.Sprintf("tool: built-in already registered: %s", normalized))
	}
	builtinCatalog.factories[normalized] = factory
}

// BuiltinNames returns all registered built-in names in deterministic order.
func BuiltinNames() []string {
	builtinCatalog.mu.RLock()
	defer builtinCatalog.mu.RUnlock()

	names := make([]string, 0, len(builtinCatalog.factories))
	for name := range builtinCatalog.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InstallBuiltins constructs every built-in and registers it. A later call replaces
// the handlers, which is how a session re-arms its tools with fresh dependencies.
func InstallBuiltins(registry *Registry, options BuiltinOptions) error {
	if options.ImageLimit <= 0 {
		options.ImageLimit = DefaultBuiltinImageLimit
	}
	if options.LogLimit <= 0 {
		options.LogLimit = DefaultBuiltinLogLimit
	}

	builtinCatalog.mu.RLock()
	factories := make(map[string]BuiltinFactory, len(builtinCatalog.factories))
	for name, factory := range builtinCatalog.factories {
		factories[name] = factory
	}
	builtinCatalog.mu.RUnlock()

	for _, name := range BuiltinNames() {
		factory, ok := factories[name]
		if !ok {
			continue
		}
		b, err := factory(options)
		if err != nil {
			return fmt.Errorf("instantiate built-in %q: %w", name, err)
		}
		if b.Definition.Name == "" {
			b.Definition.Name = name
		}
		registry.Register(b.Definition, b.Handler)
	}
	return nil
}
