package sandbox

import (
	"fmt"
	"slices"

	"github.com/dop251/goja"
)

// Capability names.
const (
	CryptoCapability = "crypto"
	LodashCapability = "lodash"
	ChainCapability  = "ethers"
)

// Capability is a set of globals injected into a runtime.
type Capability struct {
	Name string
	// Optional capabilities are installed only for jobs that request them.
	Optional bool
	Install  func(vm *goja.Runtime) error
}

// Registry holds the capabilities available to scripts. Capabilities are
// installed into a fresh runtime for every job, so optional ones cost
// nothing for jobs that do not ask for them.
type Registry struct {
	caps []Capability
}

func NewRegistry(caps ...Capability) *Registry {
	return &Registry{caps: caps}
}

// DefaultRegistry returns the crypto and lodash capabilities plus the
// optional chain capability.
func DefaultRegistry() *Registry {
	return NewRegistry(Crypto(), Lodash(), Chain())
}

// Names lists the registered capabilities.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.caps))
	for _, c := range r.caps {
		out = append(out, c.Name)
	}
	return out
}

// Install adds every non-optional capability and each optional one named
// in requested to vm.
func (r *Registry) Install(vm *goja.Runtime, requested []string) error {
	for _, name := range requested {
		if !slices.ContainsFunc(r.caps, func(c Capability) bool { return c.Name == name }) {
			return fmt.Errorf("install capabilities: unknown capability: %s", name)
		}
	}

	for _, c := range r.caps {
		if c.Optional && !slices.Contains(requested, c.Name) {
			continue
		}
		if err := c.Install(vm); err != nil {
			return fmt.Errorf("install capability %s: %w", c.Name, err)
		}
	}

	return nil
}
