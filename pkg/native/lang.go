package native

import (
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/vm"
)

func enumClass() *vm.ClassSpec {
	name := func(this *vm.JObject) vm.Value { return this.GetField("name") }
	return &vm.ClassSpec{
		Name:       "java/lang/Enum",
		Flags:      classfile.AccAbstract,
		Interfaces: []string{"java/lang/Comparable", "java/io/Serializable"},
		Fields: []vm.FieldSpec{
			{Name: "name", Descriptor: stringDesc, Flags: classfile.AccPrivate | classfile.AccFinal},
			{Name: "ordinal", Descriptor: "I", Flags: classfile.AccPrivate | classfile.AccFinal},
		},
		Methods: []vm.MethodSpec{
			{Name: "<init>", Descriptor: "(" + stringDesc + "I)V", Flags: classfile.AccProtected, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				this.SetField("name", args[0])
				this.SetField("ordinal", args[1])
				return vm.Value{}, nil
			}},
			{Name: "name", Descriptor: "()" + stringDesc, Flags: classfile.AccPublic | classfile.AccFinal, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				return name(this), nil
			}},
			{Name: "ordinal", Descriptor: "()I", Flags: classfile.AccPublic | classfile.AccFinal, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				return this.GetField("ordinal"), nil
			}},
			{Name: "toString", Descriptor: "()" + stringDesc, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				return name(this), nil
			}},
			{Name: "compareTo", Descriptor: "(" + objectDesc + ")I", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				o := args[0].Ref
				if o == nil {
					return vm.Value{}, v.NullPointer()
				}
				if o.Class != this.Class {
					return vm.Value{}, v.Throw("java/lang/ClassCastException", "class %s cannot be cast to class %s",
						o.Class.JavaName(), this.Class.JavaName())
				}
				return vm.IntValue(this.GetField("ordinal").Int() - o.GetField("ordinal").Int()), nil
			}},
		},
	}
}

// Enum returns the spec of an enum class declaring constants in ordinal
// order, shaped the way javac compiles an enum: one public static final
// field per constant, plus values() and valueOf(String).
func Enum(name string, constants ...string) *vm.ClassSpec {
	desc := "L" + name + ";"
	elem := classfile.FieldType{Base: 'L', ClassName: name}

	fields := []vm.FieldSpec{{Name: "$VALUES", Descriptor: "[" + desc, Flags: classfile.AccPrivate | classfile.AccStatic | classfile.AccFinal}}
	for _, c := range constants {
		fields = append(fields, vm.FieldSpec{Name: c, Descriptor: desc, Flags: publicStatic | classfile.AccFinal})
	}
	values := func(c *vm.Class) []vm.Value {
		return c.Static("$VALUES").Ref.Elems
	}

	return &vm.ClassSpec{
		Name:   name,
		Super:  "java/lang/Enum",
		Flags:  classfile.AccFinal | classfile.AccEnum,
		Fields: fields,
		Methods: []vm.MethodSpec{
			{Name: "values", Descriptor: "()[" + desc, Flags: publicStatic, Fn: func(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
				c, err := v.Class(name)
				if err != nil {
					return vm.Value{}, err
				}
				arr, err := v.NewArrayOf(elem, len(constants))
				if err != nil {
					return vm.Value{}, err
				}
				copy(arr.Elems, values(c))
				return vm.RefValue(arr), nil
			}},
			{Name: "valueOf", Descriptor: "(" + stringDesc + ")" + desc, Flags: publicStatic, Fn: func(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
				if args[0].IsNull() {
					return vm.Value{}, v.Throw("java/lang/NullPointerException", "Name is null")
				}
				s, _ := args[0].Ref.StringValue()
				c, err := v.Class(name)
				if err != nil {
					return vm.Value{}, err
				}
				if i := slices.Index(constants, s); i >= 0 {
					return values(c)[i], nil
				}
				return vm.Value{}, v.Throw("java/lang/IllegalArgumentException", "No enum constant %s.%s", c.JavaName(), s)
			}},
		},
		Init: func(v *vm.VM, c *vm.Class) error {
			arr, err := v.NewArrayOf(elem, len(constants))
			if err != nil {
				return err
			}
			for i, k := range constants {
				obj, err := v.NewInstance(name, "("+stringDesc+"I)V", v.String(k), vm.IntValue(int32(i)))
				if err != nil {
					return err
				}
				c.SetStatic(k, vm.RefValue(obj))
				arr.Elems[i] = vm.RefValue(obj)
			}
			c.SetStatic("$VALUES", vm.RefValue(arr))
			return nil
		},
	}
}

// stringBuilder is the Native state of a java/lang/StringBuilder.
type stringBuilder struct {
	units []uint16
}

func (b *stringBuilder) append(s string) {
	b.units = append(b.units, utf16.Encode([]rune(s))...)
}

func (b *stringBuilder) String() string {
	return string(utf16.Decode(b.units))
}

func builder(this *vm.JObject) *stringBuilder {
	if b, ok := this.Native.(*stringBuilder); ok {
		return b
	}
	b := &stringBuilder{}
	this.Native = b
	return b
}

func stringBuilderClass() *vm.ClassSpec {
	const self = "Ljava/lang/StringBuilder;"
	appendAs := func(prim string, format func(vm.Value) string) vm.MethodSpec {
		return vm.MethodSpec{Name: "append", Descriptor: "(" + prim + ")" + self, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
			builder(this).append(format(args[0]))
			return vm.RefValue(this), nil
		}}
	}
	appendObject := func(desc string) vm.MethodSpec {
		return vm.MethodSpec{Name: "append", Descriptor: "(" + desc + ")" + self, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
			s, err := v.ToString(args[0].Ref)
			if err != nil {
				return vm.Value{}, err
			}
			builder(this).append(s)
			return vm.RefValue(this), nil
		}}
	}
	return &vm.ClassSpec{
		Name:       "java/lang/StringBuilder",
		Flags:      classfile.AccFinal,
		Interfaces: []string{"java/lang/CharSequence", "java/io/Serializable"},
		Methods: []vm.MethodSpec{
			{Name: "<init>", Descriptor: "()V", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				builder(this)
				return vm.Value{}, nil
			}},
			{Name: "<init>", Descriptor: "(" + stringDesc + ")V", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				if args[0].IsNull() {
					return vm.Value{}, v.NullPointer()
				}
				s, _ := args[0].Ref.StringValue()
				builder(this).append(s)
				return vm.Value{}, nil
			}},
			appendObject(stringDesc),
			appendObject(objectDesc),
			appendAs("I", func(a vm.Value) string { return strconv.Itoa(int(a.Int())) }),
			appendAs("J", func(a vm.Value) string { return strconv.FormatInt(a.Long(), 10) }),
			appendAs("Z", func(a vm.Value) string { return strconv.FormatBool(a.Bool()) }),
			appendAs("C", func(a vm.Value) string { return string(utf16.Decode([]uint16{uint16(a.I)})) }),
			appendAs("F", func(a vm.Value) string { return vm.FormatFloat(a.Float()) }),
			appendAs("D", func(a vm.Value) string { return vm.FormatDouble(a.Double()) }),
			{Name: "length", Descriptor: "()I", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				return vm.IntValue(int32(len(builder(this).units))), nil
			}},
			{Name: "charAt", Descriptor: "(I)C", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				units := builder(this).units
				i := args[0].Int()
				if i < 0 || int(i) >= len(units) {
					return vm.Value{}, v.Throw("java/lang/StringIndexOutOfBoundsException", "index %d,length %d", i, len(units))
				}
				return vm.IntValue(int32(units[i])), nil
			}},
			{Name: "reverse", Descriptor: "()" + self, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				b := builder(this)
				// reverse by code point so surrogate pairs stay intact
				runes := utf16.Decode(b.units)
				slices.Reverse(runes)
				b.units = utf16.Encode(runes)
				return vm.RefValue(this), nil
			}},
			{Name: "setLength", Descriptor: "(I)V", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				b := builder(this)
				n := int(args[0].Int())
				if n < 0 {
					return vm.Value{}, v.Throw("java/lang/StringIndexOutOfBoundsException", "String index out of range: %d", n)
				}
				if n <= len(b.units) {
					b.units = b.units[:n]
				} else {
					b.units = append(b.units, make([]uint16, n-len(b.units))...)
				}
				return vm.Value{}, nil
			}},
			{Name: "toString", Descriptor: "()" + stringDesc, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				return v.String(builder(this).String()), nil
			}},
		},
	}
}

// joinValues renders elements the way AbstractCollection.toString does.
func joinValues(v *vm.VM, prefix, suffix string, n int, item func(i int) (string, error)) (vm.Value, error) {
	var sb strings.Builder
	sb.WriteString(prefix)
	for i := range n {
		if i > 0 {
			sb.WriteString(", ")
		}
		s, err := item(i)
		if err != nil {
			return vm.Value{}, err
		}
		sb.WriteString(s)
	}
	sb.WriteString(suffix)
	return v.String(sb.String()), nil
}
