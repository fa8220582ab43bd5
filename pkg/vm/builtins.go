package vm

import (
	"fmt"
	"strings"

	"github.com/daimatz/jbridge/pkg/classfile"
)

const (
	objectDesc    = "Ljava/lang/Object;"
	stringDesc    = "Ljava/lang/String;"
	throwableDesc = "Ljava/lang/Throwable;"
)

// BoolValue converts b to the int representation of a boolean.
func BoolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

func str(obj *JObject) string {
	s, _ := obj.StringValue()
	return s
}

// coreClasses returns the classes every VM provides without a class
// loader: the roots of the hierarchy, strings, class mirrors and the
// exceptions the interpreter itself throws.
func coreClasses() []*ClassSpec {
	specs := []*ClassSpec{
		objectClass(),
		stringClass(),
		classClass(),
		throwableClass(),
		{Name: "java/lang/Cloneable", Flags: classfile.AccInterface | classfile.AccAbstract},
		{Name: "java/io/Serializable", Flags: classfile.AccInterface | classfile.AccAbstract},
		{
			Name:    "java/lang/Comparable",
			Flags:   classfile.AccInterface | classfile.AccAbstract,
			Methods: []MethodSpec{{Name: "compareTo", Descriptor: "(" + objectDesc + ")I"}},
		},
		{
			Name:  "java/lang/CharSequence",
			Flags: classfile.AccInterface | classfile.AccAbstract,
			Methods: []MethodSpec{
				{Name: "length", Descriptor: "()I"},
				{Name: "charAt", Descriptor: "(I)C"},
			},
		},
	}
	for _, e := range [][2]string{
		{"java/lang/Exception", "java/lang/Throwable"},
		{"java/lang/Error", "java/lang/Throwable"},
		{"java/lang/RuntimeException", "java/lang/Exception"},
		{"java/lang/ArithmeticException", "java/lang/RuntimeException"},
		{"java/lang/NullPointerException", "java/lang/RuntimeException"},
		{"java/lang/IndexOutOfBoundsException", "java/lang/RuntimeException"},
		{"java/lang/ArrayIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"},
		{"java/lang/StringIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"},
		{"java/lang/ClassCastException", "java/lang/RuntimeException"},
		{"java/lang/NegativeArraySizeException", "java/lang/RuntimeException"},
		{"java/lang/ArrayStoreException", "java/lang/RuntimeException"},
		{"java/lang/IllegalArgumentException", "java/lang/RuntimeException"},
		{"java/lang/NumberFormatException", "java/lang/IllegalArgumentException"},
		{"java/lang/IllegalStateException", "java/lang/RuntimeException"},
		{"java/lang/UnsupportedOperationException", "java/lang/RuntimeException"},
		{"java/lang/LinkageError", "java/lang/Error"},
		{"java/lang/IncompatibleClassChangeError", "java/lang/LinkageError"},
		{"java/lang/AbstractMethodError", "java/lang/IncompatibleClassChangeError"},
		{"java/lang/NoSuchMethodError", "java/lang/IncompatibleClassChangeError"},
		{"java/lang/NoSuchFieldError", "java/lang/IncompatibleClassChangeError"},
		{"java/lang/InstantiationError", "java/lang/IncompatibleClassChangeError"},
		{"java/lang/NoClassDefFoundError", "java/lang/LinkageError"},
		{"java/lang/UnsatisfiedLinkError", "java/lang/LinkageError"},
		{"java/lang/VirtualMachineError", "java/lang/Error"},
		{"java/lang/StackOverflowError", "java/lang/VirtualMachineError"},
	} {
		specs = append(specs, exceptionClass(e[0], e[1]))
	}
	return specs
}

func objectClass() *ClassSpec {
	return &ClassSpec{
		Name: "java/lang/Object",
		Methods: []MethodSpec{
			{Name: "<init>", Descriptor: "()V", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				return Value{}, nil
			}},
			{Name: "hashCode", Descriptor: "()I", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				return IntValue(int32(this.id)), nil
			}},
			{Name: "equals", Descriptor: "(" + objectDesc + ")Z", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				return BoolValue(this == args[0].Ref), nil
			}},
			{Name: "toString", Descriptor: "()" + stringDesc, Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				h, err := v.HashCode(this)
				if err != nil {
					return Value{}, err
				}
				return v.String(fmt.Sprintf("%s@%x", this.Class.JavaName(), uint32(h))), nil
			}},
			{Name: "getClass", Descriptor: "()Ljava/lang/Class;", Flags: classfile.AccPublic | classfile.AccFinal, Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				return RefValue(v.mirror(this.Class)), nil
			}},
		},
	}
}

func stringArg(v *VM, arg Value) (string, error) {
	if arg.IsNull() {
		return "", v.NullPointer()
	}
	return v.ToString(arg.Ref)
}

func stringClass() *ClassSpec {
	valueOf := func(desc string, format func(Value) string) MethodSpec {
		return MethodSpec{
			Name:       "valueOf",
			Descriptor: "(" + desc + ")" + stringDesc,
			Flags:      classfile.AccPublic | classfile.AccStatic,
			Fn: func(v *VM, _ *JObject, args []Value) (Value, error) {
				return v.String(format(args[0])), nil
			},
		}
	}
	transform := func(name string, fn func(string) string) MethodSpec {
		return MethodSpec{Name: name, Descriptor: "()" + stringDesc, Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
			return v.String(fn(str(this))), nil
		}}
	}
	predicate := func(name string, fn func(s, arg string) bool) MethodSpec {
		desc := "(" + stringDesc + ")Z"
		if name == "contains" {
			desc = "(Ljava/lang/CharSequence;)Z"
		}
		return MethodSpec{Name: name, Descriptor: desc, Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
			arg, err := stringArg(v, args[0])
			if err != nil {
				return Value{}, err
			}
			return BoolValue(fn(str(this), arg)), nil
		}}
	}
	substring := func(v *VM, s string, begin, end int32) (Value, error) {
		units := javaChars(s)
		if begin < 0 || end > int32(len(units)) || begin > end {
			return Value{}, v.throw("java/lang/StringIndexOutOfBoundsException",
				"begin %d, end %d, length %d", begin, end, len(units))
		}
		return v.String(fromJavaChars(units[begin:end])), nil
	}
	compareTo := func(v *VM, this *JObject, args []Value) (Value, error) {
		if args[0].IsNull() {
			return Value{}, v.NullPointer()
		}
		other, ok := args[0].Ref.StringValue()
		if !ok {
			return Value{}, v.throw("java/lang/ClassCastException", "class %s cannot be cast to class java.lang.String", args[0].Ref.Class.JavaName())
		}
		a, b := javaChars(str(this)), javaChars(other)
		for i := 0; i < len(a) && i < len(b); i++ {
			if a[i] != b[i] {
				return IntValue(int32(a[i]) - int32(b[i])), nil
			}
		}
		return IntValue(int32(len(a) - len(b))), nil
	}

	return &ClassSpec{
		Name:       "java/lang/String",
		Flags:      classfile.AccFinal,
		Interfaces: []string{"java/io/Serializable", "java/lang/Comparable", "java/lang/CharSequence"},
		Methods: []MethodSpec{
			{Name: "<init>", Descriptor: "()V", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				this.Native = ""
				return Value{}, nil
			}},
			{Name: "<init>", Descriptor: "(" + stringDesc + ")V", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				s, err := stringArg(v, args[0])
				if err != nil {
					return Value{}, err
				}
				this.Native = s
				return Value{}, nil
			}},
			{Name: "<init>", Descriptor: "([C)V", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				if args[0].IsNull() {
					return Value{}, v.NullPointer()
				}
				units := make([]uint16, len(args[0].Ref.Elems))
				for i, e := range args[0].Ref.Elems {
					units[i] = uint16(e.I)
				}
				this.Native = fromJavaChars(units)
				return Value{}, nil
			}},
			{Name: "length", Descriptor: "()I", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				return IntValue(int32(len(javaChars(str(this))))), nil
			}},
			{Name: "isEmpty", Descriptor: "()Z", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				return BoolValue(str(this) == ""), nil
			}},
			{Name: "charAt", Descriptor: "(I)C", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				units := javaChars(str(this))
				i := args[0].Int()
				if i < 0 || int(i) >= len(units) {
					return Value{}, v.throw("java/lang/StringIndexOutOfBoundsException",
						"Index %d out of bounds for length %d", i, len(units))
				}
				return IntValue(int32(units[i])), nil
			}},
			{Name: "equals", Descriptor: "(" + objectDesc + ")Z", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				other, ok := args[0].Ref.StringValue()
				return BoolValue(ok && other == str(this)), nil
			}},
			{Name: "hashCode", Descriptor: "()I", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				return IntValue(StringHash(str(this))), nil
			}},
			{Name: "toString", Descriptor: "()" + stringDesc, Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				return RefValue(this), nil
			}},
			{Name: "intern", Descriptor: "()" + stringDesc, Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				return RefValue(v.intern(str(this))), nil
			}},
			{Name: "concat", Descriptor: "(" + stringDesc + ")" + stringDesc, Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				s, err := stringArg(v, args[0])
				if err != nil {
					return Value{}, err
				}
				return v.String(str(this) + s), nil
			}},
			{Name: "compareTo", Descriptor: "(" + stringDesc + ")I", Fn: compareTo},
			{Name: "compareTo", Descriptor: "(" + objectDesc + ")I", Fn: compareTo},
			{Name: "substring", Descriptor: "(I)" + stringDesc, Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				s := str(this)
				return substring(v, s, args[0].Int(), int32(len(javaChars(s))))
			}},
			{Name: "substring", Descriptor: "(II)" + stringDesc, Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				return substring(v, str(this), args[0].Int(), args[1].Int())
			}},
			{Name: "indexOf", Descriptor: "(" + stringDesc + ")I", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				sub, err := stringArg(v, args[0])
				if err != nil {
					return Value{}, err
				}
				i := strings.Index(str(this), sub)
				if i < 0 {
					return IntValue(-1), nil
				}
				return IntValue(int32(len(javaChars(str(this)[:i])))), nil
			}},
			{Name: "indexOf", Descriptor: "(I)I", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				for i, u := range javaChars(str(this)) {
					if int32(u) == args[0].Int() {
						return IntValue(int32(i)), nil
					}
				}
				return IntValue(-1), nil
			}},
			predicate("contains", strings.Contains),
			predicate("startsWith", strings.HasPrefix),
			predicate("endsWith", strings.HasSuffix),
			transform("toUpperCase", strings.ToUpper),
			transform("toLowerCase", strings.ToLower),
			transform("trim", func(s string) string {
				return strings.TrimFunc(s, func(r rune) bool { return r <= ' ' })
			}),
			{Name: "toCharArray", Descriptor: "()[C", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				units := javaChars(str(this))
				arr, err := v.NewArrayOf(classfile.FieldType{Base: 'C'}, len(units))
				if err != nil {
					return Value{}, err
				}
				for i, u := range units {
					arr.Elems[i] = IntValue(int32(u))
				}
				return RefValue(arr), nil
			}},
			valueOf("I", func(a Value) string { return fmt.Sprint(a.Int()) }),
			valueOf("J", func(a Value) string { return fmt.Sprint(a.Long()) }),
			valueOf("Z", func(a Value) string { return fmt.Sprint(a.Bool()) }),
			valueOf("C", func(a Value) string { return fromJavaChars([]uint16{uint16(a.I)}) }),
			valueOf("F", func(a Value) string { return FormatFloat(a.Float()) }),
			valueOf("D", func(a Value) string { return FormatDouble(a.Double()) }),
			{
				Name:       "valueOf",
				Descriptor: "(" + objectDesc + ")" + stringDesc,
				Flags:      classfile.AccPublic | classfile.AccStatic,
				Fn: func(v *VM, _ *JObject, args []Value) (Value, error) {
					s, err := v.ToString(args[0].Ref)
					if err != nil {
						return Value{}, err
					}
					return v.String(s), nil
				},
			},
		},
	}
}

func mirrorOf(this *JObject) *Class {
	c, _ := this.Native.(*Class)
	return c
}

func (v *VM) mirrorOrNull(c *Class) Value {
	if c == nil {
		return NullValue()
	}
	return RefValue(v.mirror(c))
}

func classClass() *ClassSpec {
	return &ClassSpec{
		Name:  "java/lang/Class",
		Flags: classfile.AccFinal,
		Methods: []MethodSpec{
			{Name: "getName", Descriptor: "()" + stringDesc, Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				return v.String(mirrorOf(this).JavaName()), nil
			}},
			{Name: "getSimpleName", Descriptor: "()" + stringDesc, Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				return v.String(mirrorOf(this).SimpleName()), nil
			}},
			{Name: "toString", Descriptor: "()" + stringDesc, Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				c := mirrorOf(this)
				if c.IsInterface() {
					return v.String("interface " + c.JavaName()), nil
				}
				return v.String("class " + c.JavaName()), nil
			}},
			{Name: "isArray", Descriptor: "()Z", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				return BoolValue(mirrorOf(this).IsArray()), nil
			}},
			{Name: "isInterface", Descriptor: "()Z", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				return BoolValue(mirrorOf(this).IsInterface()), nil
			}},
			{Name: "isPrimitive", Descriptor: "()Z", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				return BoolValue(false), nil
			}},
			{Name: "isInstance", Descriptor: "(" + objectDesc + ")Z", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				obj := args[0].Ref
				return BoolValue(obj != nil && obj.Class.IsSubclassOf(mirrorOf(this))), nil
			}},
			{Name: "getComponentType", Descriptor: "()Ljava/lang/Class;", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				return v.mirrorOrNull(mirrorOf(this).Component), nil
			}},
			{Name: "getSuperclass", Descriptor: "()Ljava/lang/Class;", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				c := mirrorOf(this)
				if c.IsInterface() {
					return NullValue(), nil
				}
				return v.mirrorOrNull(c.Super), nil
			}},
		},
	}
}

// throwableCtors are shared by every exception class so that each one
// declares its own constructors.
func throwableCtors() []MethodSpec {
	return []MethodSpec{
		{Name: "<init>", Descriptor: "()V", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
			return Value{}, nil
		}},
		{Name: "<init>", Descriptor: "(" + stringDesc + ")V", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
			this.SetField("message", args[0])
			return Value{}, nil
		}},
		{Name: "<init>", Descriptor: "(" + stringDesc + throwableDesc + ")V", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
			this.SetField("message", args[0])
			this.SetField("cause", args[1])
			return Value{}, nil
		}},
		{Name: "<init>", Descriptor: "(" + throwableDesc + ")V", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
			this.SetField("cause", args[0])
			if cause := args[0].Ref; cause != nil {
				s, err := v.ToString(cause)
				if err != nil {
					return Value{}, err
				}
				this.SetField("message", v.String(s))
			}
			return Value{}, nil
		}},
	}
}

func throwableClass() *ClassSpec {
	getMessage := func(v *VM, this *JObject, args []Value) (Value, error) {
		return this.GetField("message"), nil
	}
	methods := append(throwableCtors(),
		MethodSpec{Name: "getMessage", Descriptor: "()" + stringDesc, Fn: getMessage},
		MethodSpec{Name: "getLocalizedMessage", Descriptor: "()" + stringDesc, Fn: getMessage},
		MethodSpec{Name: "getCause", Descriptor: "()" + throwableDesc, Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
			return this.GetField("cause"), nil
		}},
		MethodSpec{Name: "toString", Descriptor: "()" + stringDesc, Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
			msg, err := v.CallMethod(this, "getLocalizedMessage", "()"+stringDesc)
			if err != nil {
				return Value{}, err
			}
			if msg.IsNull() {
				return v.String(this.Class.JavaName()), nil
			}
			return v.String(this.Class.JavaName() + ": " + str(msg.Ref)), nil
		}},
	)
	return &ClassSpec{
		Name:       "java/lang/Throwable",
		Interfaces: []string{"java/io/Serializable"},
		Fields: []FieldSpec{
			{Name: "message", Descriptor: stringDesc, Flags: classfile.AccPrivate},
			{Name: "cause", Descriptor: throwableDesc, Flags: classfile.AccPrivate},
		},
		Methods: methods,
	}
}

func exceptionClass(name, super string) *ClassSpec {
	return &ClassSpec{Name: name, Super: super, Methods: throwableCtors()}
}
