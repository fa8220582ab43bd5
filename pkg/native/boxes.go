package native

import (
	"errors"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/vm"
)

// wrapper describes one primitive wrapper class.
type wrapper struct {
	name    string // internal class name
	prim    string // primitive descriptor
	getter  string // e.g. intValue
	number  bool
	format  func(vm.Value) string
	hash    func(vm.Value) int32
	equal   func(a, b vm.Value) bool
	compare func(a, b vm.Value) int32
	parse   string // static parser name, empty for none
	parseFn func(v *vm.VM, s string) (vm.Value, error)
	statics map[string]vm.Value
	extra   []vm.MethodSpec
}

func (w *wrapper) desc() string { return "L" + w.name + ";" }

func sameInt(a, b vm.Value) bool { return a.I == b.I }

func cmpInt64(a, b int64) int32 {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func floatBits(f float32) int32 {
	if f != f {
		return 0x7fc00000
	}
	return int32(math.Float32bits(f))
}

func doubleBits(d float64) int64 {
	if d != d {
		return 0x7ff8000000000000
	}
	return int64(math.Float64bits(d))
}

// compareFloating orders like Float.compare: -0.0 sorts before 0.0 and NaN
// after everything, equal to itself.
func compareFloating(a, b float64, bits func(float64) int64) int32 {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return cmpInt64(bits(a), bits(b))
}

func numberFormat(v *vm.VM, s string) error {
	return v.Throw("java/lang/NumberFormatException", "For input string: \"%s\"", s)
}

// parseInteger follows Integer.parseInt: an optional sign and decimal
// digits, nothing else.
func parseInteger(bits int, kind string) func(v *vm.VM, s string) (vm.Value, error) {
	return func(v *vm.VM, s string) (vm.Value, error) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return vm.Value{}, numberFormat(v, s)
		}
		if bits < 64 && (n < -1<<(bits-1) || n > 1<<(bits-1)-1) {
			if bits < 32 {
				return vm.Value{}, v.Throw("java/lang/NumberFormatException", "Value out of range. Value:\"%s\" Radix:10", s)
			}
			return vm.Value{}, numberFormat(v, s)
		}
		if kind == "J" {
			return vm.LongValue(n), nil
		}
		return vm.IntValue(int32(n)), nil
	}
}

func parseFloating(bits int) func(v *vm.VM, s string) (vm.Value, error) {
	return func(v *vm.VM, s string) (vm.Value, error) {
		t := strings.TrimRight(strings.TrimSpace(s), "dDfF")
		f, err := strconv.ParseFloat(t, bits)
		// overflow yields an infinity, as in Java
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return vm.Value{}, numberFormat(v, s)
		}
		if bits == 32 {
			return vm.FloatValue(float32(f)), nil
		}
		return vm.DoubleValue(f), nil
	}
}

func wrappers() []*wrapper {
	intFormat := func(val vm.Value) string { return strconv.FormatInt(val.I, 10) }
	intHash := func(val vm.Value) int32 { return val.Int() }
	subtract := func(a, b vm.Value) int32 { return a.Int() - b.Int() }
	order := func(a, b vm.Value) int32 { return cmpInt64(a.I, b.I) }
	f32 := func(f float64) int64 { return int64(floatBits(float32(f))) }

	return []*wrapper{
		{
			name: "java/lang/Boolean", prim: "Z", getter: "booleanValue",
			format: func(val vm.Value) string { return strconv.FormatBool(val.Bool()) },
			hash: func(val vm.Value) int32 {
				if val.Bool() {
					return 1231
				}
				return 1237
			},
			equal: sameInt,
			compare: func(a, b vm.Value) int32 {
				switch {
				case a.I == b.I:
					return 0
				case a.Bool():
					return 1
				}
				return -1
			},
			parse: "parseBoolean",
			parseFn: func(v *vm.VM, s string) (vm.Value, error) {
				return vm.BoolValue(strings.EqualFold(s, "true")), nil
			},
		},
		{
			name: "java/lang/Byte", prim: "B", getter: "byteValue", number: true,
			format: intFormat, hash: intHash, equal: sameInt, compare: subtract,
			parse: "parseByte", parseFn: parseInteger(8, "B"),
			statics: map[string]vm.Value{
				"MIN_VALUE": vm.IntValue(math.MinInt8),
				"MAX_VALUE": vm.IntValue(math.MaxInt8),
			},
		},
		{
			name: "java/lang/Character", prim: "C", getter: "charValue",
			format: func(val vm.Value) string { return string(utf16.Decode([]uint16{uint16(val.I)})) },
			hash:   intHash, equal: sameInt, compare: subtract,
			statics: map[string]vm.Value{
				"MIN_VALUE": vm.IntValue(0),
				"MAX_VALUE": vm.IntValue(math.MaxUint16),
			},
			extra: characterMethods(),
		},
		{
			name: "java/lang/Short", prim: "S", getter: "shortValue", number: true,
			format: intFormat, hash: intHash, equal: sameInt, compare: subtract,
			parse: "parseShort", parseFn: parseInteger(16, "S"),
			statics: map[string]vm.Value{
				"MIN_VALUE": vm.IntValue(math.MinInt16),
				"MAX_VALUE": vm.IntValue(math.MaxInt16),
			},
		},
		{
			name: "java/lang/Integer", prim: "I", getter: "intValue", number: true,
			format: intFormat, hash: intHash, equal: sameInt, compare: order,
			parse: "parseInt", parseFn: parseInteger(32, "I"),
			statics: map[string]vm.Value{
				"MIN_VALUE": vm.IntValue(math.MinInt32),
				"MAX_VALUE": vm.IntValue(math.MaxInt32),
			},
			extra: []vm.MethodSpec{
				{Name: "toHexString", Descriptor: "(I)" + stringDesc, Flags: publicStatic, Fn: func(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
					return v.String(strconv.FormatUint(uint64(uint32(args[0].Int())), 16)), nil
				}},
				{Name: "toBinaryString", Descriptor: "(I)" + stringDesc, Flags: publicStatic, Fn: func(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
					return v.String(strconv.FormatUint(uint64(uint32(args[0].Int())), 2)), nil
				}},
			},
		},
		{
			name: "java/lang/Long", prim: "J", getter: "longValue", number: true,
			format: intFormat,
			hash:   func(val vm.Value) int32 { return int32(val.I ^ int64(uint64(val.I)>>32)) },
			equal:  sameInt, compare: order,
			parse: "parseLong", parseFn: parseInteger(64, "J"),
			statics: map[string]vm.Value{
				"MIN_VALUE": vm.LongValue(math.MinInt64),
				"MAX_VALUE": vm.LongValue(math.MaxInt64),
			},
		},
		{
			name: "java/lang/Float", prim: "F", getter: "floatValue", number: true,
			format: func(val vm.Value) string { return vm.FormatFloat(val.Float()) },
			hash:   func(val vm.Value) int32 { return floatBits(val.Float()) },
			equal:  func(a, b vm.Value) bool { return floatBits(a.Float()) == floatBits(b.Float()) },
			compare: func(a, b vm.Value) int32 {
				return compareFloating(a.F, b.F, f32)
			},
			parse: "parseFloat", parseFn: parseFloating(32),
			statics: map[string]vm.Value{
				"MAX_VALUE":         vm.FloatValue(math.MaxFloat32),
				"MIN_VALUE":         vm.FloatValue(math.SmallestNonzeroFloat32),
				"MIN_NORMAL":        vm.FloatValue(0x1p-126),
				"POSITIVE_INFINITY": vm.FloatValue(float32(math.Inf(1))),
				"NEGATIVE_INFINITY": vm.FloatValue(float32(math.Inf(-1))),
				"NaN":               vm.FloatValue(float32(math.NaN())),
			},
			extra: []vm.MethodSpec{
				{Name: "isNaN", Descriptor: "()Z", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
					return vm.BoolValue(math.IsNaN(this.GetField("value").F)), nil
				}},
				{Name: "floatToIntBits", Descriptor: "(F)I", Flags: publicStatic, Fn: func(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
					return vm.IntValue(floatBits(args[0].Float())), nil
				}},
			},
		},
		{
			name: "java/lang/Double", prim: "D", getter: "doubleValue", number: true,
			format: func(val vm.Value) string { return vm.FormatDouble(val.Double()) },
			hash: func(val vm.Value) int32 {
				bits := doubleBits(val.Double())
				return int32(bits ^ int64(uint64(bits)>>32))
			},
			equal: func(a, b vm.Value) bool { return doubleBits(a.Double()) == doubleBits(b.Double()) },
			compare: func(a, b vm.Value) int32 {
				return compareFloating(a.F, b.F, doubleBits)
			},
			parse: "parseDouble", parseFn: parseFloating(64),
			statics: map[string]vm.Value{
				"MAX_VALUE":         vm.DoubleValue(math.MaxFloat64),
				"MIN_VALUE":         vm.DoubleValue(math.SmallestNonzeroFloat64),
				"MIN_NORMAL":        vm.DoubleValue(0x1p-1022),
				"POSITIVE_INFINITY": vm.DoubleValue(math.Inf(1)),
				"NEGATIVE_INFINITY": vm.DoubleValue(math.Inf(-1)),
				"NaN":               vm.DoubleValue(math.NaN()),
			},
			extra: []vm.MethodSpec{
				{Name: "isNaN", Descriptor: "()Z", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
					return vm.BoolValue(math.IsNaN(this.GetField("value").F)), nil
				}},
				{Name: "doubleToLongBits", Descriptor: "(D)J", Flags: publicStatic, Fn: func(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
					return vm.LongValue(doubleBits(args[0].Double())), nil
				}},
			},
		},
	}
}

func characterMethods() []vm.MethodSpec {
	test := func(name string, fn func(rune) bool) vm.MethodSpec {
		return vm.MethodSpec{Name: name, Descriptor: "(C)Z", Flags: publicStatic, Fn: func(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
			return vm.BoolValue(fn(rune(args[0].I))), nil
		}}
	}
	mapChar := func(name string, fn func(rune) rune) vm.MethodSpec {
		return vm.MethodSpec{Name: name, Descriptor: "(C)C", Flags: publicStatic, Fn: func(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
			r := fn(rune(args[0].I))
			if r > math.MaxUint16 {
				return args[0], nil
			}
			return vm.IntValue(r), nil
		}}
	}
	return []vm.MethodSpec{
		test("isDigit", unicode.IsDigit),
		test("isLetter", unicode.IsLetter),
		test("isLetterOrDigit", func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }),
		test("isWhitespace", func(r rune) bool { return unicode.IsSpace(r) && r != 0xa0 && r != 0x2007 && r != 0x202f }),
		test("isUpperCase", unicode.IsUpper),
		test("isLowerCase", unicode.IsLower),
		mapChar("toUpperCase", unicode.ToUpper),
		mapChar("toLowerCase", unicode.ToLower),
	}
}

// numberValue converts a wrapped primitive the way the Number accessors
// do.
func numberValue(from vm.Kind, val vm.Value, to byte) vm.Value {
	floating := from == vm.KindFloat || from == vm.KindDouble
	switch to {
	case 'J':
		if floating {
			return vm.LongValue(vm.DoubleToLong(val.F))
		}
		return vm.LongValue(val.I)
	case 'F':
		if floating {
			return vm.FloatValue(float32(val.F))
		}
		return vm.FloatValue(float32(val.I))
	case 'D':
		if floating {
			return vm.DoubleValue(val.F)
		}
		return vm.DoubleValue(float64(val.I))
	}
	var i int32
	if floating {
		i = vm.DoubleToInt(val.F)
	} else {
		i = int32(val.I)
	}
	switch to {
	case 'B':
		return vm.IntValue(int32(int8(i)))
	case 'S':
		return vm.IntValue(int32(int16(i)))
	}
	return vm.IntValue(i)
}

var numberGetters = []struct {
	name string
	desc byte
}{
	{"byteValue", 'B'},
	{"shortValue", 'S'},
	{"intValue", 'I'},
	{"longValue", 'J'},
	{"floatValue", 'F'},
	{"doubleValue", 'D'},
}

func numberClass() *vm.ClassSpec {
	return &vm.ClassSpec{
		Name:       "java/lang/Number",
		Flags:      classfile.AccAbstract,
		Interfaces: []string{"java/io/Serializable"},
		Methods: []vm.MethodSpec{
			{Name: "<init>", Descriptor: "()V", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				return vm.Value{}, nil
			}},
			{Name: "intValue", Descriptor: "()I"},
			{Name: "longValue", Descriptor: "()J"},
			{Name: "floatValue", Descriptor: "()F"},
			{Name: "doubleValue", Descriptor: "()D"},
			{Name: "byteValue", Descriptor: "()B", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				i, err := v.CallMethod(this, "intValue", "()I")
				return vm.IntValue(int32(int8(i.Int()))), err
			}},
			{Name: "shortValue", Descriptor: "()S", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				i, err := v.CallMethod(this, "intValue", "()I")
				return vm.IntValue(int32(int16(i.Int()))), err
			}},
		},
	}
}

func (w *wrapper) spec() *vm.ClassSpec {
	kind := vm.KindOf(classfile.MustFieldType(w.prim))
	value := func(obj *vm.JObject) vm.Value { return obj.GetField("value") }
	box := func(v *vm.VM, val vm.Value) (vm.Value, error) {
		if kind == vm.KindBoolean {
			// the two canonical instances
			c, err := v.Class(w.name)
			if err != nil {
				return vm.Value{}, err
			}
			if val.Bool() {
				return c.Static("TRUE"), nil
			}
			return c.Static("FALSE"), nil
		}
		obj, err := v.New(w.name)
		if err != nil {
			return vm.Value{}, err
		}
		obj.SetField("value", val)
		return vm.RefValue(obj), nil
	}
	other := func(v *vm.VM, this *vm.JObject, arg vm.Value) (*vm.JObject, error) {
		if arg.IsNull() {
			return nil, v.NullPointer()
		}
		if arg.Ref.Class != this.Class {
			return nil, v.Throw("java/lang/ClassCastException", "class %s cannot be cast to class %s",
				arg.Ref.Class.JavaName(), this.Class.JavaName())
		}
		return arg.Ref, nil
	}

	methods := []vm.MethodSpec{
		{Name: "<init>", Descriptor: "(" + w.prim + ")V", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
			this.SetField("value", args[0])
			return vm.Value{}, nil
		}},
		{Name: "valueOf", Descriptor: "(" + w.prim + ")" + w.desc(), Flags: publicStatic, Fn: func(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
			return box(v, args[0])
		}},
		{Name: "equals", Descriptor: "(" + objectDesc + ")Z", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
			o := args[0].Ref
			return vm.BoolValue(o != nil && o.Class == this.Class && w.equal(value(this), value(o))), nil
		}},
		{Name: "hashCode", Descriptor: "()I", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
			return vm.IntValue(w.hash(value(this))), nil
		}},
		{Name: "toString", Descriptor: "()" + stringDesc, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
			return v.String(w.format(value(this))), nil
		}},
		{Name: "toString", Descriptor: "(" + w.prim + ")" + stringDesc, Flags: publicStatic, Fn: func(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
			return v.String(w.format(args[0])), nil
		}},
		{Name: "compareTo", Descriptor: "(" + objectDesc + ")I", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
			o, err := other(v, this, args[0])
			if err != nil {
				return vm.Value{}, err
			}
			return vm.IntValue(w.compare(value(this), value(o))), nil
		}},
		{Name: "compare", Descriptor: "(" + w.prim + w.prim + ")I", Flags: publicStatic, Fn: func(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
			return vm.IntValue(w.compare(args[0], args[1])), nil
		}},
	}

	if w.number {
		for _, g := range numberGetters {
			methods = append(methods, vm.MethodSpec{Name: g.name, Descriptor: "()" + string(g.desc), Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				return numberValue(kind, value(this), g.desc), nil
			}})
		}
	} else {
		methods = append(methods, vm.MethodSpec{Name: w.getter, Descriptor: "()" + w.prim, Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
			return value(this), nil
		}})
	}

	if w.parseFn != nil {
		parse := func(v *vm.VM, arg vm.Value) (vm.Value, error) {
			if arg.IsNull() {
				if kind == vm.KindBoolean {
					return vm.BoolValue(false), nil
				}
				if kind == vm.KindFloat || kind == vm.KindDouble {
					return vm.Value{}, v.NullPointer()
				}
				return vm.Value{}, v.Throw("java/lang/NumberFormatException", "Cannot parse null string: null")
			}
			s, _ := arg.Ref.StringValue()
			return w.parseFn(v, s)
		}
		methods = append(methods,
			vm.MethodSpec{Name: w.parse, Descriptor: "(" + stringDesc + ")" + w.prim, Flags: publicStatic, Fn: func(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
				return parse(v, args[0])
			}},
			vm.MethodSpec{Name: "valueOf", Descriptor: "(" + stringDesc + ")" + w.desc(), Flags: publicStatic, Fn: func(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
				val, err := parse(v, args[0])
				if err != nil {
					return vm.Value{}, err
				}
				return box(v, val)
			}},
		)
	}
	methods = append(methods, w.extra...)

	fields := []vm.FieldSpec{{Name: "value", Descriptor: w.prim, Flags: classfile.AccPrivate | classfile.AccFinal}}
	for _, name := range slices.Sorted(maps.Keys(w.statics)) {
		fields = append(fields, vm.FieldSpec{Name: name, Descriptor: w.prim, Flags: publicStatic | classfile.AccFinal})
	}
	super := "java/lang/Object"
	if w.number {
		super = "java/lang/Number"
	}
	spec := &vm.ClassSpec{
		Name:       w.name,
		Super:      super,
		Interfaces: []string{"java/lang/Comparable", "java/io/Serializable"},
		Flags:      classfile.AccFinal,
		Fields:     fields,
		Methods:    methods,
		Init: func(v *vm.VM, c *vm.Class) error {
			for name, val := range w.statics {
				c.SetStatic(name, val)
			}
			return nil
		},
	}
	if kind == vm.KindBoolean {
		spec.Fields = append(spec.Fields,
			vm.FieldSpec{Name: "TRUE", Descriptor: w.desc(), Flags: publicStatic | classfile.AccFinal},
			vm.FieldSpec{Name: "FALSE", Descriptor: w.desc(), Flags: publicStatic | classfile.AccFinal},
		)
		spec.Init = booleanInit
	}
	return spec
}

func booleanInit(v *vm.VM, c *vm.Class) error {
	for name, b := range map[string]bool{"TRUE": true, "FALSE": false} {
		obj, err := v.New(c.Name)
		if err != nil {
			return err
		}
		obj.SetField("value", vm.BoolValue(b))
		c.SetStatic(name, vm.RefValue(obj))
	}
	return nil
}
