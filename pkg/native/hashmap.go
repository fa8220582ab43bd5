package native

import (
	"slices"

	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/vm"
)

type mapEntry struct {
	key, value vm.Value
	hash       int32
}

// hashMap is the Native state of a java/util/HashMap. Keys are bucketed by
// their guest hashCode and compared with equals; iteration follows
// insertion order.
type hashMap struct {
	buckets map[int32][]*mapEntry
	order   []*mapEntry
}

func (m *hashMap) Trace(mark func(*vm.JObject)) {
	for _, e := range m.order {
		if e.key.Ref != nil {
			mark(e.key.Ref)
		}
		if e.value.Ref != nil {
			mark(e.value.Ref)
		}
	}
}

func hashMapOf(this *vm.JObject) *hashMap {
	if m, ok := this.Native.(*hashMap); ok {
		return m
	}
	m := &hashMap{buckets: make(map[int32][]*mapEntry)}
	this.Native = m
	return m
}

// find returns the entry for key and its hash.
func (m *hashMap) find(v *vm.VM, key vm.Value) (*mapEntry, int32, error) {
	h, err := v.HashCode(key.Ref)
	if err != nil {
		return nil, 0, err
	}
	for _, e := range m.buckets[h] {
		if e.key.Ref == key.Ref {
			return e, h, nil
		}
		if key.Ref == nil || e.key.Ref == nil {
			continue
		}
		eq, err := v.Equals(key.Ref, e.key.Ref)
		if err != nil {
			return nil, 0, err
		}
		if eq {
			return e, h, nil
		}
	}
	return nil, h, nil
}

func (m *hashMap) put(v *vm.VM, key, value vm.Value) (vm.Value, error) {
	e, h, err := m.find(v, key)
	if err != nil {
		return vm.Value{}, err
	}
	if e != nil {
		old := e.value
		e.value = value
		return old, nil
	}
	e = &mapEntry{key: key, value: value, hash: h}
	m.buckets[h] = append(m.buckets[h], e)
	m.order = append(m.order, e)
	return vm.NullValue(), nil
}

func (m *hashMap) remove(e *mapEntry) {
	m.buckets[e.hash] = slices.DeleteFunc(m.buckets[e.hash], func(x *mapEntry) bool { return x == e })
	if len(m.buckets[e.hash]) == 0 {
		delete(m.buckets, e.hash)
	}
	m.order = slices.DeleteFunc(m.order, func(x *mapEntry) bool { return x == e })
}

func mapInterface() *vm.ClassSpec {
	return &vm.ClassSpec{
		Name:  "java/util/Map",
		Flags: classfile.AccInterface | classfile.AccAbstract,
		Methods: []vm.MethodSpec{
			{Name: "size", Descriptor: "()I"},
			{Name: "isEmpty", Descriptor: "()Z"},
			{Name: "get", Descriptor: "(" + objectDesc + ")" + objectDesc},
			{Name: "put", Descriptor: "(" + objectDesc + objectDesc + ")" + objectDesc},
			{Name: "containsKey", Descriptor: "(" + objectDesc + ")Z"},
			{Name: "remove", Descriptor: "(" + objectDesc + ")" + objectDesc},
		},
	}
}

func hashMapClass() *vm.ClassSpec {
	return &vm.ClassSpec{
		Name:       "java/util/HashMap",
		Interfaces: []string{"java/util/Map", "java/lang/Cloneable", "java/io/Serializable"},
		Methods: []vm.MethodSpec{
			{Name: "<init>", Descriptor: "()V", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				hashMapOf(this)
				return vm.Value{}, nil
			}},
			{Name: "size", Descriptor: "()I", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				return vm.IntValue(int32(len(hashMapOf(this).order))), nil
			}},
			{Name: "isEmpty", Descriptor: "()Z", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				return vm.BoolValue(len(hashMapOf(this).order) == 0), nil
			}},
			{Name: "get", Descriptor: "(" + objectDesc + ")" + objectDesc, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				e, _, err := hashMapOf(this).find(v, args[0])
				if err != nil || e == nil {
					return vm.NullValue(), err
				}
				return e.value, nil
			}},
			{Name: "getOrDefault", Descriptor: "(" + objectDesc + objectDesc + ")" + objectDesc, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				e, _, err := hashMapOf(this).find(v, args[0])
				if err != nil {
					return vm.Value{}, err
				}
				if e == nil {
					return args[1], nil
				}
				return e.value, nil
			}},
			{Name: "put", Descriptor: "(" + objectDesc + objectDesc + ")" + objectDesc, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				return hashMapOf(this).put(v, args[0], args[1])
			}},
			{Name: "containsKey", Descriptor: "(" + objectDesc + ")Z", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				e, _, err := hashMapOf(this).find(v, args[0])
				return vm.BoolValue(e != nil), err
			}},
			{Name: "remove", Descriptor: "(" + objectDesc + ")" + objectDesc, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				m := hashMapOf(this)
				e, _, err := m.find(v, args[0])
				if err != nil || e == nil {
					return vm.NullValue(), err
				}
				m.remove(e)
				return e.value, nil
			}},
			{Name: "clear", Descriptor: "()V", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				this.Native = nil
				hashMapOf(this)
				return vm.Value{}, nil
			}},
			{Name: "toString", Descriptor: "()" + stringDesc, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				order := hashMapOf(this).order
				return joinValues(v, "{", "}", len(order), func(i int) (string, error) {
					k, err := v.ToString(order[i].key.Ref)
					if err != nil {
						return "", err
					}
					val, err := v.ToString(order[i].value.Ref)
					if err != nil {
						return "", err
					}
					return k + "=" + val, nil
				})
			}},
		},
	}
}
