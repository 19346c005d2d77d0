// Package registry provides the call tables, structural templates and variant
// selection used by the strategy converter.
//
// Variants are data: adding a target run mode means registering a new Variant,
// not touching the rewrite engine.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/quant-king299/stratconv/converr"
)

// Registry manages the known variants and resolves them by name.
//
// Thread-safe: all methods can be called concurrently. Registered variants are
// never mutated afterwards.
type Registry struct {
	mu sync.RWMutex

	variants map[string]*Variant
	// order keeps registration order for listings
	order []string
}

// NewRegistry creates an empty registry. Use Register to add variants.
func NewRegistry() *Registry {
	return &Registry{
		variants: make(map[string]*Variant),
	}
}

// Register validates v and adds it. A variant of the same name is replaced.
func (r *Registry) Register(v *Variant) error {
	if v.Template == nil {
		return converr.NewConfigErrorFor(v.Name, "variant has no template")
	}
	if err := v.finalize(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalizeName(v.Name)
	if _, exists := r.variants[key]; !exists {
		r.order = append(r.order, key)
	}
	r.variants[key] = v
	return nil
}

// Resolve returns the variant with the given name. Underscores and case are
// ignored, so "factor_only" resolves "factor-only".
func (r *Registry) Resolve(name string) (*Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if v, ok := r.variants[normalizeName(name)]; ok {
		return v, nil
	}
	return nil, converr.NewConfigErrorFor(name, fmt.Sprintf("unknown variant (known: %s)", strings.Join(r.order, ", ")))
}

// Names returns the registered variant names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Describe returns a summary of every registered variant in registration order.
func (r *Registry) Describe() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.variants[name].Info())
	}
	return out
}

func normalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

// Builtin builds a registry holding the built-in variants.
func Builtin() (*Registry, error) {
	plain, err := ParseTemplate(templateHeader+templateImports+lifecycleTemplate, lifecycleSpec(""))
	if err != nil {
		return nil, err
	}
	live, err := ParseTemplate(templateHeader+templateImports+lifecycleTemplate+liveFilters, liveSpec())
	if err != nil {
		return nil, err
	}
	simulation, err := ParseTemplate(templateHeader+templateImports+periodicTemplate+lookbackHelper+safeOrderHelper, lifecycleSpec("final_strategy"))
	if err != nil {
		return nil, err
	}
	factor, err := ParseTemplate(templateHeader+templateImports+periodicTemplate+lookbackHelper+safeOrderHelper+macdHelpers, lifecycleSpec("final_strategy"))
	if err != nil {
		return nil, err
	}

	r := NewRegistry()
	for _, v := range []*Variant{
		genericVariant(plain),
		simulationVariant(simulation),
		liveVariant(live),
		factorVariant(factor),
		realtimeDataVariant(plain),
	} {
		if err := r.Register(v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// Default returns the shared registry of built-in variants.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = Builtin()
	})
	return defaultReg, defaultErr
}

// Resolve looks a variant up in the default registry.
func Resolve(name string) (*Variant, error) {
	r, err := Default()
	if err != nil {
		return nil, err
	}
	return r.Resolve(name)
}
