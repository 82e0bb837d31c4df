package sandbox

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// TODO: vendor the upstream lodash 4.17.21 build (lodash.min.js, MIT) in
// place of lodash.js and keep the tests in capabilities_test.go green.
//
//go:embed lodash.js
var lodashSource string

var lodashProgram = sync.OnceValues(func() (*goja.Program, error) {
	return goja.Compile("lodash.js", lodashSource, true)
})

// Lodash returns the "lodash" capability, the lodash 4 collection toolkit
// exposed as both lodash and _. The library is compiled once per process
// and evaluated inside each fresh runtime, so scripts cannot leak state
// between jobs through it.
func Lodash() Capability {
	return Capability{
		Name: LodashCapability,
		Install: func(vm *goja.Runtime) error {
			prog, err := lodashProgram()
			if err != nil {
				return fmt.Errorf("compile lodash: %w", err)
			}
			lib, err := vm.RunProgram(prog)
			if err != nil {
				return fmt.Errorf("load lodash: %w", err)
			}
			if err := vm.Set("lodash", lib); err != nil {
				return err
			}
			return vm.Set("_", lib)
		},
	}
}
