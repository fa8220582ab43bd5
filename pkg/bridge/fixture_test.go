package bridge

import (
	"math"
	"testing"

	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/native"
	"github.com/daimatz/jbridge/pkg/vm"
)

const (
	testDesc    = "Ljep/Test;"
	stringDesc  = "Ljava/lang/String;"
	objectDesc  = "Ljava/lang/Object;"
	testToText  = "toString(). Thanks for calling Java(tm)."
	testEnumCls = "jep/Test$TestEnum"
)

func constant(s string) vm.NativeFunc {
	return func(v *vm.VM, _ *vm.JObject, _ []vm.Value) (vm.Value, error) {
		return v.String(s), nil
	}
}

// boxedFn returns a new wrapper of class holding val.
func boxedFn(class, prim string, val vm.Value) vm.NativeFunc {
	return func(v *vm.VM, _ *vm.JObject, _ []vm.Value) (vm.Value, error) {
		obj, err := v.NewInstance(class, "("+prim+")V", val)
		return vm.RefValue(obj), err
	}
}

// arrayFn returns a new array of elem filled by fill.
func arrayFn(elem string, fill func(v *vm.VM, this *vm.JObject) ([]vm.Value, error)) vm.NativeFunc {
	return func(v *vm.VM, this *vm.JObject, _ []vm.Value) (vm.Value, error) {
		vals, err := fill(v, this)
		if err != nil {
			return vm.Value{}, err
		}
		arr, err := v.NewArrayOf(classfile.MustFieldType(elem), len(vals))
		if err != nil {
			return vm.Value{}, err
		}
		copy(arr.Elems, vals)
		return vm.RefValue(arr), nil
	}
}

func guestStrings(v *vm.VM, ss ...string) []vm.Value {
	out := make([]vm.Value, len(ss))
	for i, s := range ss {
		out[i] = v.String(s)
	}
	return out
}

func ints(ns ...int32) []vm.Value {
	out := make([]vm.Value, len(ns))
	for i, n := range ns {
		out[i] = vm.IntValue(n)
	}
	return out
}

// testClass is jep/Test: the object the call scenarios run against.
func testClass() *vm.ClassSpec {
	const pub = classfile.AccPublic
	const pubStatic = classfile.AccPublic | classfile.AccStatic
	stringArray := func(ss ...string) vm.NativeFunc {
		return arrayFn(stringDesc, func(v *vm.VM, _ *vm.JObject) ([]vm.Value, error) {
			return guestStrings(v, ss...), nil
		})
	}
	return &vm.ClassSpec{
		Name: "jep/Test",
		Fields: []vm.FieldSpec{
			{Name: "count", Descriptor: "I", Flags: pub},
			{Name: "payload", Descriptor: objectDesc, Flags: pub},
			{Name: "numbers", Descriptor: "[I", Flags: pub},
			{Name: "secret", Descriptor: "I", Flags: classfile.AccPrivate},
			{Name: "GREETING", Descriptor: stringDesc, Flags: pubStatic | classfile.AccFinal},
			{Name: "counter", Descriptor: "I", Flags: pubStatic},
		},
		Methods: []vm.MethodSpec{
			{Name: "<init>", Descriptor: "()V", Fn: func(v *vm.VM, this *vm.JObject, _ []vm.Value) (vm.Value, error) {
				arr, err := v.NewArrayOf(classfile.MustFieldType("I"), 3)
				if err != nil {
					return vm.Value{}, err
				}
				copy(arr.Elems, ints(1, 2, 3))
				this.SetField("numbers", vm.RefValue(arr))
				return vm.Value{}, nil
			}},
			{Name: "<init>", Descriptor: "(I)V", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				this.SetField("count", args[0])
				return vm.Value{}, nil
			}},
			{Name: "toString", Descriptor: "()" + stringDesc, Fn: constant(testToText)},
			{Name: "getEnum", Descriptor: "()L" + testEnumCls + ";", Fn: func(v *vm.VM, _ *vm.JObject, _ []vm.Value) (vm.Value, error) {
				c, err := v.Class(testEnumCls)
				if err != nil {
					return vm.Value{}, err
				}
				return c.Static("ONE"), nil
			}},
			{Name: "getClassLong", Descriptor: "()Ljava/lang/Long;", Fn: boxedFn("java/lang/Long", "J", vm.LongValue(math.MaxInt64))},
			{Name: "getClassDouble", Descriptor: "()Ljava/lang/Double;", Fn: boxedFn("java/lang/Double", "D", vm.DoubleValue(math.SmallestNonzeroFloat64))},
			{Name: "getClassFloat", Descriptor: "()Ljava/lang/Float;", Fn: boxedFn("java/lang/Float", "F", vm.FloatValue(math.MaxFloat32))},
			{Name: "getInteger", Descriptor: "()Ljava/lang/Integer;", Fn: boxedFn("java/lang/Integer", "I", vm.IntValue(math.MinInt32))},
			{Name: "getObject", Descriptor: "()Ljava/util/List;", Fn: func(v *vm.VM, _ *vm.JObject, _ []vm.Value) (vm.Value, error) {
				list, err := v.NewInstance("java/util/ArrayList", "()V")
				if err != nil {
					return vm.Value{}, err
				}
				for _, s := range []string{"list 0", "list 1"} {
					if _, err := v.CallMethod(list, "add", "("+objectDesc+")Z", v.String(s)); err != nil {
						return vm.Value{}, err
					}
				}
				return vm.RefValue(list), nil
			}},
			{Name: "getStringArray", Descriptor: "()[" + stringDesc, Fn: stringArray("one", "two")},
			{Name: "getStringStringArray", Descriptor: "()[[" + stringDesc, Fn: arrayFn("["+stringDesc, func(v *vm.VM, _ *vm.JObject) ([]vm.Value, error) {
				var rows []vm.Value
				for _, row := range [][]string{{"one", "two"}, {"three"}} {
					arr, err := v.NewArrayOf(classfile.MustFieldType(stringDesc), len(row))
					if err != nil {
						return nil, err
					}
					copy(arr.Elems, guestStrings(v, row...))
					rows = append(rows, vm.RefValue(arr))
				}
				return rows, nil
			})},
			{Name: "getIntArray", Descriptor: "()[I", Fn: arrayFn("I", func(*vm.VM, *vm.JObject) ([]vm.Value, error) {
				return ints(1, 2, 3), nil
			})},
			{Name: "getBooleanArray", Descriptor: "()[Z", Fn: arrayFn("Z", func(*vm.VM, *vm.JObject) ([]vm.Value, error) {
				return []vm.Value{vm.BoolValue(false), vm.BoolValue(true)}, nil
			})},
			{Name: "getShortArray", Descriptor: "()[S", Fn: arrayFn("S", func(*vm.VM, *vm.JObject) ([]vm.Value, error) {
				return ints(123, -5), nil
			})},
			{Name: "getFloatArray", Descriptor: "()[F", Fn: arrayFn("F", func(*vm.VM, *vm.JObject) ([]vm.Value, error) {
				return []vm.Value{vm.FloatValue(123.123)}, nil
			})},
			{Name: "getObjectArray", Descriptor: "()[" + objectDesc, Fn: arrayFn(objectDesc, func(_ *vm.VM, this *vm.JObject) ([]vm.Value, error) {
				return []vm.Value{vm.RefValue(this), vm.RefValue(this), vm.NullValue()}, nil
			})},
			{Name: "getTestClass", Descriptor: "()Ljava/lang/Class;", Fn: func(v *vm.VM, this *vm.JObject, _ []vm.Value) (vm.Value, error) {
				return vm.RefValue(v.MirrorOf(this.Class)), nil
			}},
			{Name: "getNull", Descriptor: "()" + objectDesc, Fn: func(*vm.VM, *vm.JObject, []vm.Value) (vm.Value, error) {
				return vm.NullValue(), nil
			}},
			{Name: "self", Descriptor: "()" + testDesc, Fn: func(_ *vm.VM, this *vm.JObject, _ []vm.Value) (vm.Value, error) {
				return vm.RefValue(this), nil
			}},
			{Name: "echo", Descriptor: "(" + objectDesc + ")" + objectDesc, Fn: func(_ *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
				return args[0], nil
			}},
			{Name: "reset", Descriptor: "()V", Fn: func(_ *vm.VM, this *vm.JObject, _ []vm.Value) (vm.Value, error) {
				this.SetField("count", vm.IntValue(0))
				return vm.Value{}, nil
			}},
			{Name: "fail", Descriptor: "()V", Fn: func(v *vm.VM, _ *vm.JObject, _ []vm.Value) (vm.Value, error) {
				return vm.Value{}, v.Throw("java/lang/IllegalStateException", "boom")
			}},

			// overloads
			{Name: "add", Descriptor: "(II)I", Fn: func(_ *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
				return vm.IntValue(args[0].Int() + args[1].Int()), nil
			}},
			{Name: "add", Descriptor: "(JJ)J", Fn: func(_ *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
				return vm.LongValue(args[0].Long() + args[1].Long()), nil
			}},
			{Name: "add", Descriptor: "(DD)D", Fn: func(_ *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
				return vm.DoubleValue(args[0].Double() + args[1].Double()), nil
			}},
			{Name: "add", Descriptor: "(" + stringDesc + stringDesc + ")" + stringDesc, Fn: func(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
				a, _ := args[0].Ref.StringValue()
				b, _ := args[1].Ref.StringValue()
				return v.String(a + b), nil
			}},
			{Name: "describe", Descriptor: "(I)" + stringDesc, Fn: constant("int")},
			{Name: "describe", Descriptor: "(J)" + stringDesc, Fn: constant("long")},
			{Name: "describe", Descriptor: "(Ljava/lang/Integer;)" + stringDesc, Fn: constant("Integer")},
			{Name: "describe", Descriptor: "(" + stringDesc + ")" + stringDesc, Fn: constant("String")},
			{Name: "describe", Descriptor: "(Ljava/lang/CharSequence;)" + stringDesc, Fn: constant("CharSequence")},
			{Name: "describe", Descriptor: "(" + objectDesc + ")" + stringDesc, Fn: constant("Object")},
			{Name: "pick", Descriptor: "(Ljava/lang/Integer;" + objectDesc + ")" + stringDesc, Fn: constant("Integer, Object")},
			{Name: "pick", Descriptor: "(" + objectDesc + "Ljava/lang/Integer;)" + stringDesc, Fn: constant("Object, Integer")},
			{Name: "take", Descriptor: "(" + stringDesc + ")" + stringDesc, Fn: constant("String")},
			{Name: "take", Descriptor: "(Ljava/lang/CharSequence;)" + stringDesc, Fn: constant("CharSequence")},
			{Name: "num", Descriptor: "(I)" + stringDesc, Fn: constant("int")},
			{Name: "num", Descriptor: "(F)" + stringDesc, Fn: constant("float")},
			{Name: "num", Descriptor: "(D)" + stringDesc, Fn: constant("double")},
			{Name: "narrow", Descriptor: "(B)I", Fn: func(_ *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
				return vm.IntValue(args[0].Int()), nil
			}},
			{Name: "letter", Descriptor: "(C)I", Fn: func(_ *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
				return vm.IntValue(args[0].Int()), nil
			}},
			{Name: "ratio", Descriptor: "(F)F", Fn: func(_ *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
				return args[0], nil
			}},
			{Name: "flip", Descriptor: "(Z)Z", Fn: func(_ *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
				return vm.BoolValue(!args[0].Bool()), nil
			}},
			{Name: "twice", Descriptor: "(I)I", Flags: pubStatic, Fn: func(_ *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
				return vm.IntValue(2 * args[0].Int()), nil
			}},
		},
		Init: func(v *vm.VM, c *vm.Class) error {
			c.SetStatic("GREETING", v.String("hello"))
			return nil
		},
	}
}

func newTestBridge(t *testing.T, opts ...Option) *Bridge {
	t.Helper()
	v := vm.NewVM(nil)
	if err := native.Install(v); err != nil {
		t.Fatal(err)
	}
	for _, spec := range []*vm.ClassSpec{testClass(), native.Enum(testEnumCls, "ONE", "TWO")} {
		if err := v.Register(spec); err != nil {
			t.Fatal(err)
		}
	}
	return New(v, opts...)
}

// newTest constructs a jep.Test.
func newTest(t *testing.T, b *Bridge) *Object {
	t.Helper()
	c, err := b.FindClass("jep.Test")
	if err != nil {
		t.Fatal(err)
	}
	obj, err := c.New()
	if err != nil {
		t.Fatal(err)
	}
	o, ok := obj.(*Object)
	if !ok {
		t.Fatalf("New: got %T, want *Object", obj)
	}
	return o
}

func mustInvoke(t *testing.T, o interface {
	Invoke(string, ...any) (any, error)
}, name string, args ...any) any {
	t.Helper()
	res, err := o.Invoke(name, args...)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return res
}
