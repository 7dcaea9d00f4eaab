// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

package colext

import (
	"fmt"
	"log/slog"
	goplugin "plugin"
	"sort"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/colext/colext/abi"
	"github.com/colext/colext/kwargs"
)

// resolveCacheSize bounds the per-expression type-resolution cache.
const resolveCacheSize = 128

// Library is a loaded plugin: a namespace of resolvable symbols. The
// standard build-mode-plugin shared object is the common implementation;
// a [SymbolMap] serves in-process extensions and tests.
type Library interface {
	Lookup(name string) (any, error)
}

// SymbolMap is an in-process Library backed by a plain map.
type SymbolMap map[string]any

// Lookup implements Library.
func (m SymbolMap) Lookup(name string) (any, error) {
	sym, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("symbol %q not found", name)
	}
	return sym, nil
}

// sharedLibrary adapts a dynamically loaded shared object to Library.
type sharedLibrary struct {
	p *goplugin.Plugin
}

func (l sharedLibrary) Lookup(name string) (any, error) {
	return l.p.Lookup(name)
}

// Registry loads plugin libraries and binds their functions into
// reusable expressions. Loading the same location twice returns the same
// library handle. All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	libs  map[string]Library
	bound []*Expr

	group  singleflight.Group
	hook   InvokeHook
	logger *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithInvokeHook installs an observability hook called around every
// invocation.
func WithInvokeHook(hook InvokeHook) RegistryOption {
	return func(r *Registry) { r.hook = hook }
}

// WithLogger sets the logger used for registry diagnostics. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates an empty plugin registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		libs:   make(map[string]Library),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetInvokeHook replaces the registry's observability hook.
func (r *Registry) SetInvokeHook(hook InvokeHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = hook
}

func (r *Registry) invokeHook() InvokeHook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hook
}

// RegisterLibrary installs an in-process library under a location name,
// bypassing the dynamic loader. Subsequent Load and Bind calls for that
// location resolve against it.
func (r *Registry) RegisterLibrary(location string, lib Library) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.libs[location] = lib
}

// Load opens the shared object at location, or returns the library handle
// already loaded for it. Concurrent loads of the same location collapse
// into one dlopen.
func (r *Registry) Load(location string) (Library, error) {
	r.mu.RLock()
	lib, ok := r.libs[location]
	r.mu.RUnlock()
	if ok {
		return lib, nil
	}

	v, err, _ := r.group.Do(location, func() (any, error) {
		// Re-check under the write path: another goroutine may have
		// registered the location while we waited.
		r.mu.RLock()
		lib, ok := r.libs[location]
		r.mu.RUnlock()
		if ok {
			return lib, nil
		}

		p, err := goplugin.Open(location)
		if err != nil {
			return nil, fmt.Errorf("loading plugin %q: %w", location, err)
		}
		lib = sharedLibrary{p: p}

		r.mu.Lock()
		r.libs[location] = lib
		r.mu.Unlock()

		r.logger.Debug("plugin library loaded", "location", location)
		return lib, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Library), nil
}

// BindOptions configures one expression instantiation.
type BindOptions struct {
	// Arity is the declared input count, checked before every call.
	// Zero disables the check.
	Arity int
	// OutputType fixes the output logical type, skipping the resolver
	// symbol entirely. Leave nil to resolve via the plugin's
	// type-resolution function.
	OutputType arrow.DataType
	// Kwargs is the option set serialized once for this instantiation
	// and shared read-only by every batch invocation. A struct with
	// `kwargs` tags or a string-keyed map; nil for no options.
	Kwargs any
}

// Bind instantiates a plugin function into a reusable expression: the
// library is loaded (or reused), the computation symbol and, unless a
// fixed output type is given, its type-resolution symbol are resolved
// once, and the kwargs blob is serialized once. A kwargs serialization
// failure is an OptionsError; a missing or ill-typed symbol is a
// SchemaError.
func (r *Registry) Bind(location, symbol string, opts BindOptions) (*Expr, error) {
	lib, err := r.Load(location)
	if err != nil {
		return nil, err
	}

	sym, err := lib.Lookup(symbol)
	if err != nil {
		return nil, errorf(KindSchema, "plugin %q has no symbol %q: %v", location, symbol, err)
	}
	fn, err := asExprFunc(sym)
	if err != nil {
		return nil, errorf(KindSchema, "symbol %q in %q: %v", symbol, location, err)
	}

	var fieldFn abi.FieldFunc
	if opts.OutputType == nil {
		fieldSym, err := lib.Lookup(abi.FieldSymbol(symbol))
		if err != nil {
			return nil, errorf(KindSchema,
				"plugin %q declares no output type for %q: missing symbol %q",
				location, symbol, abi.FieldSymbol(symbol))
		}
		fieldFn, err = asFieldFunc(fieldSym)
		if err != nil {
			return nil, errorf(KindSchema, "symbol %q in %q: %v", abi.FieldSymbol(symbol), location, err)
		}
	}

	blob, err := kwargs.Encode(opts.Kwargs)
	if err != nil {
		return nil, errorf(KindOptions, "serializing options for %q: %v", symbol, err)
	}

	cache, err := lru.New[string, resolveEntry](resolveCacheSize)
	if err != nil {
		return nil, err
	}

	e := &Expr{
		registry: r,
		location: location,
		symbol:   symbol,
		fn:       fn,
		fieldFn:  fieldFn,
		fixed:    opts.OutputType,
		arity:    opts.Arity,
		blob:     blob,
		resolved: cache,
	}

	r.mu.Lock()
	r.bound = append(r.bound, e)
	r.mu.Unlock()

	r.logger.Debug("plugin function bound",
		"location", location, "symbol", symbol,
		"arity", opts.Arity, "fixed_output", opts.OutputType != nil)
	return e, nil
}

// asExprFunc extracts the fixed-convention computation function from a
// looked-up symbol. Shared objects export variables, so the symbol
// usually arrives as a pointer.
func asExprFunc(sym any) (abi.ExprFunc, error) {
	switch s := sym.(type) {
	case abi.ExprFunc:
		return s, nil
	case *abi.ExprFunc:
		return *s, nil
	case func([]abi.Series, []byte) abi.Result:
		return s, nil
	default:
		return nil, fmt.Errorf("not a computation function (got %T)", sym)
	}
}

func asFieldFunc(sym any) (abi.FieldFunc, error) {
	switch s := sym.(type) {
	case abi.FieldFunc:
		return s, nil
	case *abi.FieldFunc:
		return *s, nil
	case func([]*abi.Schema, []byte) abi.FieldResult:
		return s, nil
	default:
		return nil, fmt.Errorf("not a type-resolution function (got %T)", sym)
	}
}

// FunctionDescription summarizes one bound expression for introspection.
type FunctionDescription struct {
	Location    string
	Symbol      string
	Arity       int
	FixedOutput string // empty when the output type is computed
}

// Functions returns descriptions of every bound expression, sorted by
// location then symbol.
func (r *Registry) Functions() []FunctionDescription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]FunctionDescription, 0, len(r.bound))
	for _, e := range r.bound {
		d := FunctionDescription{
			Location: e.location,
			Symbol:   e.symbol,
			Arity:    e.arity,
		}
		if e.fixed != nil {
			d.FixedOutput = e.fixed.String()
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
