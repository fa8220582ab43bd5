// Package native provides the parts of the Java class library that guest
// code and the bridge rely on beyond the classes built into every VM:
// primitive wrappers, enums, string builders, collections and System.out.
package native

import (
	"fmt"

	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/vm"
)

const (
	objectDesc   = "Ljava/lang/Object;"
	stringDesc   = "Ljava/lang/String;"
	publicStatic = classfile.AccPublic | classfile.AccStatic
)

// Classes returns the specs Install registers.
func Classes() []*vm.ClassSpec {
	specs := []*vm.ClassSpec{
		numberClass(),
		enumClass(),
		stringBuilderClass(),
		listInterface(),
		arrayListClass(),
		mapInterface(),
		hashMapClass(),
		printStreamClass(),
		systemClass(),
	}
	for _, w := range wrappers() {
		specs = append(specs, w.spec())
	}
	return specs
}

// Install registers the class library with v. It must run before any of
// the classes is first used.
func Install(v *vm.VM) error {
	for _, spec := range Classes() {
		if err := v.Register(spec); err != nil {
			return fmt.Errorf("native: %w", err)
		}
	}
	return nil
}
