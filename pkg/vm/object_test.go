package vm

import (
	"fmt"
	"testing"

	"github.com/daimatz/jbridge/pkg/classfile"
)

// pointClass declares instance fields of several kinds and one static.
func pointClass() *ClassSpec {
	return &ClassSpec{
		Name: "Point",
		Fields: []FieldSpec{
			{Name: "x", Descriptor: "I", Flags: classfile.AccPublic},
			{Name: "flag", Descriptor: "Z", Flags: classfile.AccPublic},
			{Name: "b", Descriptor: "B", Flags: classfile.AccPublic},
			{Name: "next", Descriptor: "LPoint;", Flags: classfile.AccPublic},
			{Name: "ORIGIN", Descriptor: "LPoint;", Flags: classfile.AccPublic | classfile.AccStatic},
		},
		Methods: []MethodSpec{
			{Name: "<init>", Descriptor: "()V", Fn: func(v *VM, this *JObject, args []Value) (Value, error) {
				return Value{}, nil
			}},
		},
	}
}

func TestJObjectFields(t *testing.T) {
	v := newTestVM(t)
	if err := v.Register(pointClass()); err != nil {
		t.Fatal(err)
	}
	detach := v.Attach()
	defer detach()

	p, err := v.New("Point")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("zero values", func(t *testing.T) {
		if got := p.GetField("x"); got.Kind != KindInt || got.Int() != 0 {
			t.Errorf("x: got %+v, want int 0", got)
		}
		if got := p.GetField("next"); !got.IsNull() {
			t.Errorf("next: got %+v, want null", got)
		}
	})

	t.Run("set and get", func(t *testing.T) {
		if !p.SetField("x", IntValue(42)) {
			t.Fatal("SetField(x) reported a missing field")
		}
		if got := p.GetField("x").Int(); got != 42 {
			t.Errorf("x: got %d, want 42", got)
		}
	})

	t.Run("sub-int fields narrow", func(t *testing.T) {
		p.SetField("b", IntValue(200))
		p.SetField("flag", IntValue(3))
		if got := p.GetField("b").Int(); got != -56 {
			t.Errorf("b: got %d, want -56", got)
		}
		if got := p.GetField("flag").Int(); got != 1 {
			t.Errorf("flag: got %d, want 1", got)
		}
	})

	t.Run("reference field", func(t *testing.T) {
		q, _ := v.New("Point")
		p.SetField("next", RefValue(q))
		if got := p.GetField("next").Ref; got != q {
			t.Errorf("next: got %p, want %p", got, q)
		}
	})

	t.Run("static and missing fields are not instance fields", func(t *testing.T) {
		if p.SetField("ORIGIN", NullValue()) {
			t.Error("SetField(ORIGIN) succeeded on a static field")
		}
		if p.SetField("nope", IntValue(1)) {
			t.Error("SetField(nope) succeeded on a missing field")
		}
		if got := p.GetField("nope"); got != (Value{}) {
			t.Errorf("GetField(nope): got %+v, want zero Value", got)
		}
	})

	t.Run("ids are unique and stable", func(t *testing.T) {
		q, _ := v.New("Point")
		if p.ID() == 0 || p.ID() == q.ID() {
			t.Errorf("ids: got %d and %d, want distinct non-zero", p.ID(), q.ID())
		}
		var null *JObject
		if null.ID() != 0 {
			t.Errorf("nil ID: got %d, want 0", null.ID())
		}
	})
}

func TestStringObjects(t *testing.T) {
	v := newTestVM(t)
	detach := v.Attach()
	defer detach()

	s := v.newString("héllo")
	if got, ok := s.StringValue(); !ok || got != "héllo" {
		t.Errorf("StringValue: got %q, %v", got, ok)
	}
	if v.intern("x") != v.intern("x") {
		t.Error("intern returned distinct objects for equal strings")
	}
	if v.newString("x") == v.intern("x") {
		t.Error("newString returned the interned object")
	}

	tests := []struct {
		name string
		desc string
		args []Value
		want string
	}{
		{"toUpperCase", "()Ljava/lang/String;", nil, "HÉLLO"},
		{"substring", "(I)Ljava/lang/String;", []Value{IntValue(1)}, "éllo"},
		{"substring", "(II)Ljava/lang/String;", []Value{IntValue(1), IntValue(3)}, "él"},
		{"concat", "(Ljava/lang/String;)Ljava/lang/String;", []Value{v.String("!")}, "héllo!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ret, err := v.CallMethod(s, tt.name, tt.desc, tt.args...)
			if err != nil {
				t.Fatal(err)
			}
			if got := str(ret.Ref); got != tt.want {
				t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
			}
		})
	}

	t.Run("hashCode and equals", func(t *testing.T) {
		h, err := v.HashCode(v.newString("hello"))
		if err != nil {
			t.Fatal(err)
		}
		if h != 99162322 {
			t.Errorf("hashCode: got %d, want 99162322", h)
		}
		eq, err := v.Equals(v.newString("a"), v.newString("a"))
		if err != nil || !eq {
			t.Errorf("equals(a, a): got %v, %v", eq, err)
		}
	})

	t.Run("charAt out of range", func(t *testing.T) {
		_, err := v.CallMethod(s, "charAt", "(I)C", IntValue(9))
		javaException(t, err, "java/lang/StringIndexOutOfBoundsException")
	})
}

func TestObjectToString(t *testing.T) {
	v := newTestVM(t)
	if err := v.Register(pointClass()); err != nil {
		t.Fatal(err)
	}
	detach := v.Attach()
	defer detach()

	p, _ := v.New("Point")
	got, err := v.ToString(p)
	if err != nil {
		t.Fatal(err)
	}
	h, _ := v.HashCode(p)
	if want := fmt.Sprintf("Point@%x", uint32(h)); got != want {
		t.Errorf("toString: got %q, want %q", got, want)
	}

	mirror := v.MirrorOf(p.Class)
	if got, _ := v.ToString(mirror); got != "class Point" {
		t.Errorf("Class.toString: got %q, want %q", got, "class Point")
	}
	if null, _ := v.ToString(nil); null != "null" {
		t.Errorf("ToString(nil): got %q, want %q", null, "null")
	}
}

func TestClassHierarchy(t *testing.T) {
	v := newTestVM(t)
	detach := v.Attach()
	defer detach()

	class := func(name string) *Class {
		t.Helper()
		c, err := v.findClass(name)
		if err != nil {
			t.Fatalf("findClass(%s): %v", name, err)
		}
		return c
	}
	object, str, ex := class("java/lang/Object"), class("java/lang/String"), class("java/lang/Exception")

	tests := []struct {
		name     string
		from, to *Class
		want     int
	}{
		{"same class", str, str, 0},
		{"direct interface", str, class("java/lang/CharSequence"), 1},
		{"string to object", str, object, 1},
		{"exception to throwable", class("java/lang/ArithmeticException"), class("java/lang/Throwable"), 3},
		{"unrelated", ex, str, -1},
		{"interface to object", class("java/lang/Comparable"), object, 1},
		{"array to object", class("[I"), object, 2},
		{"array to cloneable", class("[I"), class("java/lang/Cloneable"), 1},
		{"covariant array", class("[Ljava/lang/String;"), class("[Ljava/lang/Object;"), 1},
		{"primitive arrays differ", class("[I"), class("[J"), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.Distance(tt.to); got != tt.want {
				t.Errorf("Distance(%s, %s): got %d, want %d", tt.from, tt.to, got, tt.want)
			}
		})
	}

	t.Run("names", func(t *testing.T) {
		arr := class("[[Ljava/lang/String;")
		if got := arr.JavaName(); got != "[[Ljava.lang.String;" {
			t.Errorf("JavaName: got %q", got)
		}
		if got := arr.SimpleName(); got != "String[][]" {
			t.Errorf("SimpleName: got %q", got)
		}
	})

	t.Run("methods named", func(t *testing.T) {
		ms := str.MethodsNamed("valueOf", true)
		if len(ms) != 7 {
			t.Errorf("String.valueOf overloads: got %d, want 7", len(ms))
		}
		// String.equals overrides Object.equals
		eq := str.MethodsNamed("equals", false)
		if len(eq) != 1 || eq[0].Class != str {
			t.Errorf("String.equals: got %v, want the String override only", eq)
		}
		if len(str.Constructors()) != 3 {
			t.Errorf("String constructors: got %d, want 3", len(str.Constructors()))
		}
	})
}
