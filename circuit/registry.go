package circuit

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
)

var (
	ErrGateExists  = errors.New("gate kind already registered")
	ErrUnknownGate = errors.New("gate kind not registered")
	ErrFrozen      = errors.New("gate registry is frozen")
	ErrBadGateName = errors.New("gate name must be a non-empty lowercase token")
)

// Factory builds and maintains the parameters of one gate kind.
type Factory interface {
	// NumParams returns the length of a normalized parameter vector.
	NumParams() int
	RandomParams(rng *rand.Rand) []float64
	// Normalize returns params resized to NumParams and clamped into range.
	Normalize(params []float64) []float64
	// Perturb returns a normalized, slightly changed copy of params.
	Perturb(params []float64, sigma float64, rng *rand.Rand) []float64
	New(params []float64) Gate
}

// Registry maps lowercase gate names to factories. It is built once at
// startup, frozen, and then shared read-only by the normalizer, builder and
// mutation engine.
type Registry struct {
	factories map[string]Factory
	names     []string
	frozen    bool
}

// NewRegistry creates an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// NewDefaultRegistry returns a frozen registry holding every built-in kind.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.registerDefaults()
	r.Freeze()
	return r
}

// registerDefaults adds the built-in gate kinds.
func (r *Registry) registerDefaults() {
	r.MustRegister("sum", reduceFactory(reduceSum))
	r.MustRegister("product", reduceFactory(reduceProduct))
	r.MustRegister("max", reduceFactory(reduceMax))
	r.MustRegister("min", reduceFactory(reduceMin))
	r.MustRegister("multiplex", multiplexFactory{})
	r.MustRegister("timer", timerFactory{})
	r.MustRegister("constant", constantFactory{})

	r.MustRegister("sin", unaryFactory(fnSin))
	r.MustRegister("exp", unaryFactory(fnExp))
	r.MustRegister("log", unaryFactory(fnLog))
	r.MustRegister("reciprocal", unaryFactory(fnReciprocal))
	r.MustRegister("negate", unaryFactory(fnNegate))
	r.MustRegister("tan", unaryFactory(fnTan))
	r.MustRegister("atan", unaryFactory(fnAtan))
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) error {
	if r.frozen {
		return fmt.Errorf("register %q: %w", name, ErrFrozen)
	}
	if name == "" || name != strings.ToLower(name) || strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("register %q: %w", name, ErrBadGateName)
	}
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("register %q: %w", name, ErrGateExists)
	}
	r.factories[name] = f
	idx := sort.SearchStrings(r.names, name)
	r.names = append(r.names, "")
	copy(r.names[idx+1:], r.names[idx:])
	r.names[idx] = name
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() { r.frozen = true }

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool { return r.frozen }

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of registered kinds.
func (r *Registry) Len() int { return len(r.names) }

// RandomName samples uniformly over registered names.
func (r *Registry) RandomName(rng *rand.Rand) string {
	if len(r.names) == 0 {
		return ""
	}
	return r.names[rng.IntN(len(r.names))]
}

// New instantiates a gate of the named kind with normalized params.
func (r *Registry) New(name string, params []float64) (Gate, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("new gate %q: %w", name, ErrUnknownGate)
	}
	return f.New(f.Normalize(params)), nil
}
