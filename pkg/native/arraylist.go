package native

import (
	"slices"

	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/vm"
)

// arrayList is the Native state of a java/util/ArrayList.
type arrayList struct {
	elems []vm.Value
}

func (l *arrayList) Trace(mark func(*vm.JObject)) {
	for _, e := range l.elems {
		if e.Ref != nil {
			mark(e.Ref)
		}
	}
}

func listOf(this *vm.JObject) *arrayList {
	if l, ok := this.Native.(*arrayList); ok {
		return l
	}
	l := &arrayList{}
	this.Native = l
	return l
}

func (l *arrayList) check(v *vm.VM, i int32, size int) error {
	if i < 0 || int(i) >= size {
		return v.Throw("java/lang/IndexOutOfBoundsException", "Index %d out of bounds for length %d", i, size)
	}
	return nil
}

func (l *arrayList) indexOf(v *vm.VM, o vm.Value) (int, error) {
	for i, e := range l.elems {
		if o.Ref == nil {
			if e.Ref == nil {
				return i, nil
			}
			continue
		}
		eq, err := v.Equals(o.Ref, e.Ref)
		if err != nil {
			return -1, err
		}
		if eq {
			return i, nil
		}
	}
	return -1, nil
}

func listInterface() *vm.ClassSpec {
	return &vm.ClassSpec{
		Name:  "java/util/List",
		Flags: classfile.AccInterface | classfile.AccAbstract,
		Methods: []vm.MethodSpec{
			{Name: "size", Descriptor: "()I"},
			{Name: "isEmpty", Descriptor: "()Z"},
			{Name: "get", Descriptor: "(I)" + objectDesc},
			{Name: "add", Descriptor: "(" + objectDesc + ")Z"},
			{Name: "contains", Descriptor: "(" + objectDesc + ")Z"},
		},
	}
}

func arrayListClass() *vm.ClassSpec {
	return &vm.ClassSpec{
		Name:       "java/util/ArrayList",
		Interfaces: []string{"java/util/List", "java/lang/Cloneable", "java/io/Serializable"},
		Methods: []vm.MethodSpec{
			{Name: "<init>", Descriptor: "()V", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				listOf(this)
				return vm.Value{}, nil
			}},
			{Name: "<init>", Descriptor: "(I)V", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				n := args[0].Int()
				if n < 0 {
					return vm.Value{}, v.Throw("java/lang/IllegalArgumentException", "Illegal Capacity: %d", n)
				}
				this.Native = &arrayList{elems: make([]vm.Value, 0, n)}
				return vm.Value{}, nil
			}},
			{Name: "size", Descriptor: "()I", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				return vm.IntValue(int32(len(listOf(this).elems))), nil
			}},
			{Name: "isEmpty", Descriptor: "()Z", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				return vm.BoolValue(len(listOf(this).elems) == 0), nil
			}},
			{Name: "get", Descriptor: "(I)" + objectDesc, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				l := listOf(this)
				if err := l.check(v, args[0].Int(), len(l.elems)); err != nil {
					return vm.Value{}, err
				}
				return l.elems[args[0].Int()], nil
			}},
			{Name: "set", Descriptor: "(I" + objectDesc + ")" + objectDesc, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				l := listOf(this)
				i := args[0].Int()
				if err := l.check(v, i, len(l.elems)); err != nil {
					return vm.Value{}, err
				}
				old := l.elems[i]
				l.elems[i] = args[1]
				return old, nil
			}},
			{Name: "add", Descriptor: "(" + objectDesc + ")Z", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				l := listOf(this)
				l.elems = append(l.elems, args[0])
				return vm.BoolValue(true), nil
			}},
			{Name: "add", Descriptor: "(I" + objectDesc + ")V", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				l := listOf(this)
				i := args[0].Int()
				if err := l.check(v, i, len(l.elems)+1); err != nil {
					return vm.Value{}, err
				}
				l.elems = slices.Insert(l.elems, int(i), args[1])
				return vm.Value{}, nil
			}},
			{Name: "remove", Descriptor: "(I)" + objectDesc, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				l := listOf(this)
				i := args[0].Int()
				if err := l.check(v, i, len(l.elems)); err != nil {
					return vm.Value{}, err
				}
				old := l.elems[i]
				l.elems = slices.Delete(l.elems, int(i), int(i)+1)
				return old, nil
			}},
			{Name: "contains", Descriptor: "(" + objectDesc + ")Z", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				i, err := listOf(this).indexOf(v, args[0])
				return vm.BoolValue(i >= 0), err
			}},
			{Name: "indexOf", Descriptor: "(" + objectDesc + ")I", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				i, err := listOf(this).indexOf(v, args[0])
				return vm.IntValue(int32(i)), err
			}},
			{Name: "clear", Descriptor: "()V", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				listOf(this).elems = nil
				return vm.Value{}, nil
			}},
			{Name: "toArray", Descriptor: "()[" + objectDesc, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				l := listOf(this)
				arr, err := v.NewArrayOf(classfile.FieldType{Base: 'L', ClassName: "java/lang/Object"}, len(l.elems))
				if err != nil {
					return vm.Value{}, err
				}
				copy(arr.Elems, l.elems)
				return vm.RefValue(arr), nil
			}},
			{Name: "equals", Descriptor: "(" + objectDesc + ")Z", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				o := args[0].Ref
				if o == this {
					return vm.BoolValue(true), nil
				}
				if o == nil {
					return vm.BoolValue(false), nil
				}
				other, ok := o.Native.(*arrayList)
				if !ok {
					return vm.BoolValue(false), nil
				}
				mine := listOf(this).elems
				if len(mine) != len(other.elems) {
					return vm.BoolValue(false), nil
				}
				for i, e := range mine {
					if e.Ref == nil {
						if other.elems[i].Ref != nil {
							return vm.BoolValue(false), nil
						}
						continue
					}
					eq, err := v.Equals(e.Ref, other.elems[i].Ref)
					if err != nil || !eq {
						return vm.BoolValue(false), err
					}
				}
				return vm.BoolValue(true), nil
			}},
			{Name: "hashCode", Descriptor: "()I", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				var h int32 = 1
				for _, e := range listOf(this).elems {
					eh, err := v.HashCode(e.Ref)
					if err != nil {
						return vm.Value{}, err
					}
					h = 31*h + eh
				}
				return vm.IntValue(h), nil
			}},
			{Name: "toString", Descriptor: "()" + stringDesc, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				elems := listOf(this).elems
				return joinValues(v, "[", "]", len(elems), func(i int) (string, error) {
					if elems[i].Ref == this {
						return "(this Collection)", nil
					}
					return v.ToString(elems[i].Ref)
				})
			}},
		},
	}
}
