package vm

import (
	"encoding/binary"
	stderrors "errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/daimatz/jbridge/pkg/classfile"
)

// newTestVM returns a VM that loads the given classes from memory.
func newTestVM(t *testing.T, classes ...*classfile.ClassFile) *VM {
	t.Helper()
	loader := MapClassLoader{}
	for _, cf := range classes {
		name, err := cf.ClassName()
		if err != nil {
			t.Fatalf("class name: %v", err)
		}
		loader[name] = cf
	}
	v := NewVM(loader)
	v.Stdout = io.Discard
	return v
}

// runBuilt assembles a class T with a single static method run of the given
// descriptor, whose code build returns, and executes it.
func runBuilt(t *testing.T, desc string, build func(b *classfile.Builder) []byte, args ...Value) (Value, error) {
	t.Helper()
	b := classfile.NewBuilder("T", "java/lang/Object")
	code := build(b)
	b.Method(classfile.AccPublic|classfile.AccStatic, "run", desc, 16, 16, code)
	v := newTestVM(t, b.Build())

	detach := v.Attach()
	defer detach()
	c, err := v.findClass("T")
	if err != nil {
		t.Fatalf("findClass(T): %v", err)
	}
	return v.executeMethod(c.DeclaredMethod("run", desc), args)
}

// executeAndGetInt runs code as a static method taking the locals as int
// arguments and returns its int result.
func executeAndGetInt(t *testing.T, code []byte, locals ...int32) int32 {
	t.Helper()
	args := make([]Value, len(locals))
	for i, l := range locals {
		args[i] = IntValue(l)
	}
	desc := "(" + strings.Repeat("I", len(locals)) + ")I"
	ret, err := runBuilt(t, desc, func(*classfile.Builder) []byte { return code }, args...)
	if err != nil {
		t.Fatalf("execution error: %v", err)
	}
	return ret.Int()
}

func u16(v uint16) []byte { return binary.BigEndian.AppendUint16(nil, v) }

func i32(v int32) []byte { return binary.BigEndian.AppendUint32(nil, uint32(v)) }

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// javaException asserts err is a guest exception of the named class.
func javaException(t *testing.T, err error, className string) *JavaException {
	t.Helper()
	var je *JavaException
	if !stderrors.As(err, &je) {
		t.Fatalf("got error %v, want %s", err, className)
	}
	if got := je.Object.Class.Name; got != className {
		t.Fatalf("exception class: got %s, want %s", got, className)
	}
	return je
}

func TestIconst(t *testing.T) {
	tests := []struct {
		name   string
		opcode byte
		want   int32
	}{
		{"iconst_m1", OpIconstM1, -1},
		{"iconst_0", OpIconst0, 0},
		{"iconst_1", OpIconst1, 1},
		{"iconst_2", OpIconst2, 2},
		{"iconst_3", OpIconst3, 3},
		{"iconst_4", OpIconst4, 4},
		{"iconst_5", OpIconst5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := executeAndGetInt(t, []byte{tt.opcode, OpIreturn})
			if got != tt.want {
				t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
			}
		})
	}
}

func TestPushImmediate(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want int32
	}{
		{"bipush positive", []byte{OpBipush, 42}, 42},
		{"bipush min", []byte{OpBipush, 0x80}, -128},
		{"sipush 256", []byte{OpSipush, 0x01, 0x00}, 256},
		{"sipush -256", []byte{OpSipush, 0xFF, 0x00}, -256},
		{"sipush max", []byte{OpSipush, 0x7F, 0xFF}, 32767},
		{"sipush min", []byte{OpSipush, 0x80, 0x00}, -32768},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := executeAndGetInt(t, append(tt.code, OpIreturn))
			if got != tt.want {
				t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
			}
		})
	}
}

func TestIntArithmetic(t *testing.T) {
	// iload_0, iload_1, <op>, ireturn
	binop := func(op byte) []byte { return []byte{OpIload0, OpIload0 + 1, op, OpIreturn} }

	tests := []struct {
		name string
		code []byte
		a, b int32
		want int32
	}{
		{"iadd", binop(OpIadd), 3, 4, 7},
		{"isub", binop(OpIsub), 5, 3, 2},
		{"imul", binop(OpImul), 3, 4, 12},
		{"idiv truncates", binop(OpIdiv), -7, 2, -3},
		{"irem sign of dividend", binop(OpIrem), -7, 2, -1},
		{"idiv MinInt32 by -1 wraps", binop(OpIdiv), math.MinInt32, -1, math.MinInt32},
		{"irem MinInt32 by -1", binop(OpIrem), math.MinInt32, -1, 0},
		{"iadd overflow wraps", binop(OpIadd), math.MaxInt32, 1, math.MinInt32},
		{"isub underflow wraps", binop(OpIsub), math.MinInt32, 1, math.MaxInt32},
		{"imul overflow wraps", binop(OpImul), math.MaxInt32, 2, -2},
		{"ishl masks shift", binop(OpIshl), 1, 33, 2},
		{"ishr keeps sign", binop(OpIshr), -8, 1, -4},
		{"iushr", binop(OpIushr), -1, 28, 15},
		{"iand", binop(OpIand), 0b1100, 0b1010, 0b1000},
		{"ior", binop(OpIor), 0b1100, 0b1010, 0b1110},
		{"ixor", binop(OpIxor), 0b1100, 0b1010, 0b0110},
		{"ineg MinInt32", []byte{OpIload0, OpIneg, OpIreturn}, math.MinInt32, 0, math.MinInt32},
		{"i2b", []byte{OpIload0, OpI2b, OpIreturn}, 200, 0, -56},
		{"i2c", []byte{OpIload0, OpI2c, OpIreturn}, -1, 0, 65535},
		{"i2s", []byte{OpIload0, OpI2s, OpIreturn}, 40000, 0, -25536},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := executeAndGetInt(t, tt.code, tt.a, tt.b)
			if got != tt.want {
				t.Errorf("%s(%d, %d): got %d, want %d", tt.name, tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestIinc(t *testing.T) {
	// iinc 0 by -3, iload_0, ireturn
	got := executeAndGetInt(t, []byte{OpIinc, 0, 0xFD, OpIload0, OpIreturn}, 10)
	if got != 7 {
		t.Errorf("iinc: got %d, want 7", got)
	}

	// wide iinc 0 by 1000
	got = executeAndGetInt(t, cat([]byte{OpWide, OpIinc}, u16(0), u16(1000), []byte{OpIload0, OpIreturn}), 1)
	if got != 1001 {
		t.Errorf("wide iinc: got %d, want 1001", got)
	}
}

func TestLongArithmetic(t *testing.T) {
	tests := []struct {
		name string
		a, b int64
		op   byte
		want int64
	}{
		{"ladd", 1 << 40, 5, OpLadd, 1<<40 + 5},
		{"lsub", 5, 1 << 40, OpLsub, 5 - 1<<40},
		{"lmul overflow", math.MaxInt64, 2, OpLmul, -2},
		{"ldiv MinInt64 by -1 wraps", math.MinInt64, -1, OpLdiv, math.MinInt64},
		{"lrem", -7, 2, OpLrem, -1},
		{"land", 0xF0F0, 0xFF00, OpLand, 0xF000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ret, err := runBuilt(t, "()J", func(b *classfile.Builder) []byte {
				return cat([]byte{OpLdc2W}, u16(b.Long(tt.a)), []byte{OpLdc2W}, u16(b.Long(tt.b)), []byte{tt.op, OpLreturn})
			})
			if err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			if ret.Long() != tt.want {
				t.Errorf("%s: got %d, want %d", tt.name, ret.Long(), tt.want)
			}
		})
	}

	t.Run("lshl takes an int shift", func(t *testing.T) {
		// lconst_1, bipush 40, lshl, lreturn
		ret, err := runBuilt(t, "()J", func(*classfile.Builder) []byte {
			return []byte{OpLconst1, OpBipush, 40, OpLshl, OpLreturn}
		})
		if err != nil {
			t.Fatal(err)
		}
		if ret.Long() != 1<<40 {
			t.Errorf("lshl: got %d, want %d", ret.Long(), int64(1<<40))
		}
	})

	t.Run("lcmp", func(t *testing.T) {
		for _, c := range []struct {
			a, b int64
			want int32
		}{{1, 2, -1}, {2, 2, 0}, {math.MaxInt64, math.MinInt64, 1}} {
			ret, err := runBuilt(t, "()I", func(b *classfile.Builder) []byte {
				return cat([]byte{OpLdc2W}, u16(b.Long(c.a)), []byte{OpLdc2W}, u16(b.Long(c.b)), []byte{OpLcmp, OpIreturn})
			})
			if err != nil {
				t.Fatal(err)
			}
			if ret.Int() != c.want {
				t.Errorf("lcmp(%d, %d): got %d, want %d", c.a, c.b, ret.Int(), c.want)
			}
		}
	})
}

func TestFloatingPoint(t *testing.T) {
	t.Run("dadd", func(t *testing.T) {
		x, y := 0.1, 0.2
		ret, err := runBuilt(t, "()D", func(b *classfile.Builder) []byte {
			return cat([]byte{OpLdc2W}, u16(b.Double(x)), []byte{OpLdc2W}, u16(b.Double(y)), []byte{OpDadd, OpDreturn})
		})
		if err != nil {
			t.Fatal(err)
		}
		if ret.Double() != x+y {
			t.Errorf("dadd: got %v, want %v", ret.Double(), x+y)
		}
	})

	t.Run("fmul rounds to float", func(t *testing.T) {
		ret, err := runBuilt(t, "()F", func(b *classfile.Builder) []byte {
			return cat([]byte{OpLdcW}, u16(b.Float(0.1)), []byte{OpFconst2, OpFmul, OpFreturn})
		})
		if err != nil {
			t.Fatal(err)
		}
		if want := float32(0.1) * 2; ret.Float() != want {
			t.Errorf("fmul: got %v, want %v", ret.Float(), want)
		}
	})

	conversions := []struct {
		name string
		in   float64
		op   byte
		want int32
	}{
		{"d2i truncates", -2.9, OpD2i, -2},
		{"d2i clamps high", 1e20, OpD2i, math.MaxInt32},
		{"d2i clamps low", -1e20, OpD2i, math.MinInt32},
		{"d2i NaN", math.NaN(), OpD2i, 0},
	}
	for _, tt := range conversions {
		t.Run(tt.name, func(t *testing.T) {
			ret, err := runBuilt(t, "()I", func(b *classfile.Builder) []byte {
				return cat([]byte{OpLdc2W}, u16(b.Double(tt.in)), []byte{tt.op, OpIreturn})
			})
			if err != nil {
				t.Fatal(err)
			}
			if ret.Int() != tt.want {
				t.Errorf("%s(%v): got %d, want %d", tt.name, tt.in, ret.Int(), tt.want)
			}
		})
	}

	t.Run("dcmpl and dcmpg disagree on NaN", func(t *testing.T) {
		for _, c := range []struct {
			op   byte
			want int32
		}{{OpDcmpl, -1}, {OpDcmpg, 1}} {
			ret, err := runBuilt(t, "()I", func(b *classfile.Builder) []byte {
				return cat([]byte{OpLdc2W}, u16(b.Double(math.NaN())), []byte{OpDconst0, c.op, OpIreturn})
			})
			if err != nil {
				t.Fatal(err)
			}
			if ret.Int() != c.want {
				t.Errorf("opcode 0x%02X: got %d, want %d", c.op, ret.Int(), c.want)
			}
		}
	})

	t.Run("i2d and l2f", func(t *testing.T) {
		ret, err := runBuilt(t, "(I)D", func(*classfile.Builder) []byte {
			return []byte{OpIload0, OpI2d, OpDreturn}
		}, IntValue(-5))
		if err != nil {
			t.Fatal(err)
		}
		if ret.Double() != -5 {
			t.Errorf("i2d: got %v, want -5", ret.Double())
		}

		ret, err = runBuilt(t, "()F", func(b *classfile.Builder) []byte {
			return cat([]byte{OpLdc2W}, u16(b.Long(1<<40)), []byte{OpL2f, OpFreturn})
		})
		if err != nil {
			t.Fatal(err)
		}
		if ret.Float() != float32(1<<40) {
			t.Errorf("l2f: got %v, want %v", ret.Float(), float32(1<<40))
		}
	})
}

func TestDivisionByZero(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"idiv", []byte{OpIconst5, OpIconst0, OpIdiv, OpIreturn}},
		{"irem", []byte{OpIconst5, OpIconst0, OpIrem, OpIreturn}},
		{"ldiv", []byte{OpLconst1, OpLconst0, OpLdiv, OpL2i, OpIreturn}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runBuilt(t, "()I", func(*classfile.Builder) []byte { return tt.code })
			je := javaException(t, err, "java/lang/ArithmeticException")
			if got := je.Error(); got != "java.lang.ArithmeticException: / by zero" {
				t.Errorf("error message: got %q, want %q", got, "java.lang.ArithmeticException: / by zero")
			}
		})
	}

	t.Run("ddiv gives infinity", func(t *testing.T) {
		ret, err := runBuilt(t, "()D", func(*classfile.Builder) []byte {
			return []byte{OpDconst1, OpDconst0, OpDdiv, OpDreturn}
		})
		if err != nil {
			t.Fatal(err)
		}
		if !math.IsInf(ret.Double(), 1) {
			t.Errorf("1.0/0.0: got %v, want +Inf", ret.Double())
		}
	})
}

func TestBranch(t *testing.T) {
	// iload_0, <if>(offset=5, target=6), iconst_0, ireturn, iconst_1, ireturn
	unary := func(op byte) []byte { return []byte{OpIload0, op, 0x00, 0x05, OpIconst0, OpIreturn, OpIconst1, OpIreturn} }
	// iload_0, iload_1, <if_icmp>(offset=5, target=7), iconst_0, ireturn, iconst_1, ireturn
	binary := func(op byte) []byte {
		return []byte{OpIload0, OpIload0 + 1, op, 0x00, 0x05, OpIconst0, OpIreturn, OpIconst1, OpIreturn}
	}

	tests := []struct {
		name string
		code []byte
		a, b int32
		want int32 // 1=taken, 0=not taken
	}{
		{"ifeq taken", unary(OpIfeq), 0, 0, 1},
		{"ifeq not taken", unary(OpIfeq), 1, 0, 0},
		{"ifne taken", unary(OpIfne), -1, 0, 1},
		{"iflt taken", unary(OpIflt), -1, 0, 1},
		{"iflt not taken (zero)", unary(OpIflt), 0, 0, 0},
		{"ifge taken (zero)", unary(OpIfge), 0, 0, 1},
		{"ifge not taken", unary(OpIfge), -1, 0, 0},
		{"ifgt not taken (zero)", unary(OpIfgt), 0, 0, 0},
		{"ifle taken (zero)", unary(OpIfle), 0, 0, 1},
		{"ifle not taken", unary(OpIfle), 5, 0, 0},
		{"if_icmpeq taken", binary(OpIfIcmpeq), 5, 5, 1},
		{"if_icmpne not taken", binary(OpIfIcmpne), 5, 5, 0},
		{"if_icmplt taken", binary(OpIfIcmplt), 3, 5, 1},
		{"if_icmpge taken (=)", binary(OpIfIcmpge), 5, 5, 1},
		{"if_icmpgt not taken (=)", binary(OpIfIcmpgt), 5, 5, 0},
		{"if_icmple taken (<)", binary(OpIfIcmple), 3, 5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := executeAndGetInt(t, tt.code, tt.a, tt.b)
			if got != tt.want {
				t.Errorf("%s (%d, %d): got %d, want %d", tt.name, tt.a, tt.b, got, tt.want)
			}
		})
	}

	t.Run("goto", func(t *testing.T) {
		// goto +5, iconst_1, ireturn, iconst_2, ireturn
		got := executeAndGetInt(t, []byte{OpGoto, 0x00, 0x05, OpIconst1, OpIreturn, OpIconst2, OpIreturn})
		if got != 2 {
			t.Errorf("goto: got %d, want 2", got)
		}
	})

	t.Run("goto_w", func(t *testing.T) {
		got := executeAndGetInt(t, cat([]byte{OpGotoW}, i32(7), []byte{OpIconst1, OpIreturn, OpIconst3, OpIreturn}))
		if got != 3 {
			t.Errorf("goto_w: got %d, want 3", got)
		}
	})
}

func TestSwitch(t *testing.T) {
	// pc 0: iload_0
	// pc 1: tableswitch, padded to pc 4
	//       default, low=1, high=3, three offsets
	// each case pushes a constant and returns
	table := cat(
		[]byte{OpIload0, OpTableswitch, 0, 0},
		i32(33), i32(1), i32(3),
		i32(27), i32(29), i32(31), // relative to pc 1
		[]byte{OpIconst1, OpIreturn, OpIconst2, OpIreturn, OpIconst3, OpIreturn, OpIconstM1, OpIreturn},
	)
	// pc 1: lookupswitch, padded to pc 4
	//       default, npairs=2, (10 -> case a), (-5 -> case b)
	lookup := cat(
		[]byte{OpIload0, OpLookupswitch, 0, 0},
		i32(31), i32(2),
		i32(-5), i32(29),
		i32(10), i32(27),
		[]byte{OpIconst1, OpIreturn, OpIconst2, OpIreturn, OpIconstM1, OpIreturn},
	)

	tests := []struct {
		name string
		code []byte
		in   int32
		want int32
	}{
		{"tableswitch low", table, 1, 1},
		{"tableswitch high", table, 3, 3},
		{"tableswitch default", table, 9, -1},
		{"lookupswitch match", lookup, 10, 1},
		{"lookupswitch negative key", lookup, -5, 2},
		{"lookupswitch default", lookup, 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := executeAndGetInt(t, tt.code, tt.in)
			if got != tt.want {
				t.Errorf("%s(%d): got %d, want %d", tt.name, tt.in, got, tt.want)
			}
		})
	}
}

func TestStackOps(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want int32
	}{
		// 3+3
		{"dup", []byte{OpIconst3, OpDup, OpIadd, OpIreturn}, 6},
		{"pop", []byte{OpIconst3, OpIconst4, OpPop, OpIreturn}, 3},
		// [5, 2] -> [2, 5] -> 2-5
		{"swap", []byte{OpIconst5, OpIconst2, OpSwap, OpIsub, OpIreturn}, -3},
		// [1, 2] -> [2, 1, 2] -> 2 - (1 - 2)
		{"dup_x1", []byte{OpIconst1, OpIconst2, OpDupX1, OpIsub, OpIsub, OpIreturn}, 3},
		// lconst_1, dup2, ladd: one long copied as a unit
		{"dup2 long", []byte{OpLconst1, OpDup2, OpLadd, OpL2i, OpIreturn}, 2},
		// [1, 2] -> [1, 2, 1, 2] summed
		{"dup2 ints", []byte{OpIconst1, OpIconst2, OpDup2, OpIadd, OpIadd, OpIadd, OpIreturn}, 6},
		{"pop2 long", []byte{OpIconst4, OpLconst1, OpPop2, OpIreturn}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := executeAndGetInt(t, tt.code)
			if got != tt.want {
				t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
			}
		})
	}
}

func TestLdcString(t *testing.T) {
	ret, err := runBuilt(t, "()Ljava/lang/String;", func(b *classfile.Builder) []byte {
		return cat([]byte{OpLdcW}, u16(b.String("héllo")), []byte{OpAreturn})
	})
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := ret.Ref.StringValue(); !ok || s != "héllo" {
		t.Errorf("ldc string: got %q, want %q", s, "héllo")
	}
}

func TestArrays(t *testing.T) {
	t.Run("newarray int store and load", func(t *testing.T) {
		// iconst_3, newarray int, astore_0
		// aload_0, iconst_1, bipush 42, iastore
		// aload_0, iconst_1, iaload, aload_0, arraylength, iadd, ireturn
		code := []byte{
			OpIconst3, OpNewarray, 10, OpAstore0,
			OpAload0, OpIconst1, OpBipush, 42, OpIastore,
			OpAload0, OpIconst1, OpIaload, OpAload0, OpArraylength, OpIadd, OpIreturn,
		}
		if got := executeAndGetInt(t, code); got != 45 {
			t.Errorf("got %d, want 45", got)
		}
	})

	t.Run("bastore narrows", func(t *testing.T) {
		// iconst_1, newarray byte, dup, iconst_0, sipush 200, bastore, iconst_0, baload, ireturn
		code := []byte{
			OpIconst1, OpNewarray, 8, OpDup, OpIconst0, OpSipush, 0x00, 0xC8, OpBastore,
			OpIconst0, OpBaload, OpIreturn,
		}
		if got := executeAndGetInt(t, code); got != -56 {
			t.Errorf("got %d, want -56", got)
		}
	})

	t.Run("index out of bounds", func(t *testing.T) {
		_, err := runBuilt(t, "()I", func(*classfile.Builder) []byte {
			return []byte{OpIconst2, OpNewarray, 10, OpIconst2, OpIaload, OpIreturn}
		})
		je := javaException(t, err, "java/lang/ArrayIndexOutOfBoundsException")
		if msg := exceptionMessage(je.Object); msg != "Index 2 out of bounds for length 2" {
			t.Errorf("message: got %q", msg)
		}
	})

	t.Run("negative size", func(t *testing.T) {
		_, err := runBuilt(t, "()I", func(*classfile.Builder) []byte {
			return []byte{OpIconstM1, OpNewarray, 10, OpArraylength, OpIreturn}
		})
		javaException(t, err, "java/lang/NegativeArraySizeException")
	})

	t.Run("anewarray and aastore", func(t *testing.T) {
		ret, err := runBuilt(t, "()Ljava/lang/Object;", func(b *classfile.Builder) []byte {
			return cat(
				[]byte{OpIconst2, OpAnewarray}, u16(b.Class("java/lang/String")),
				[]byte{OpDup, OpIconst1, OpLdcW}, u16(b.String("x")), []byte{OpAastore, OpAreturn},
			)
		})
		if err != nil {
			t.Fatal(err)
		}
		arr := ret.Ref
		if arr.Class.Name != "[Ljava/lang/String;" {
			t.Errorf("array class: got %s, want [Ljava/lang/String;", arr.Class.Name)
		}
		if !arr.Elems[0].IsNull() {
			t.Errorf("element 0: got %+v, want null", arr.Elems[0])
		}
		if s, _ := arr.Elems[1].Ref.StringValue(); s != "x" {
			t.Errorf("element 1: got %q, want %q", s, "x")
		}
	})

	t.Run("aastore type check", func(t *testing.T) {
		// a String[] stored into through Object[] rejects a Class object
		_, err := runBuilt(t, "()V", func(b *classfile.Builder) []byte {
			return cat(
				[]byte{OpIconst1, OpAnewarray}, u16(b.Class("java/lang/String")),
				[]byte{OpIconst0, OpLdcW}, u16(b.Class("T")), []byte{OpAastore, OpReturn},
			)
		})
		javaException(t, err, "java/lang/ArrayStoreException")
	})

	t.Run("multianewarray", func(t *testing.T) {
		ret, err := runBuilt(t, "()Ljava/lang/Object;", func(b *classfile.Builder) []byte {
			return cat([]byte{OpIconst2, OpIconst3, OpMultianewarray}, u16(b.Class("[[J")), []byte{2, OpAreturn})
		})
		if err != nil {
			t.Fatal(err)
		}
		outer := ret.Ref
		if len(outer.Elems) != 2 || len(outer.Elems[1].Ref.Elems) != 3 {
			t.Fatalf("dimensions: got %d x %d, want 2 x 3", len(outer.Elems), len(outer.Elems[1].Ref.Elems))
		}
		if k := outer.Elems[1].Ref.Elems[2].Kind; k != KindLong {
			t.Errorf("element kind: got %s, want long", k)
		}
	})
}

func TestReferenceBranches(t *testing.T) {
	// aload_0, ifnull(+5), iconst_1, ireturn, iconst_2, ireturn
	ifnull := []byte{OpAload0, OpIfnull, 0x00, 0x05, OpIconst1, OpIreturn, OpIconst2, OpIreturn}
	// aload_0, aload_0, if_acmpne(+5), iconst_1, ireturn, iconst_0, ireturn
	acmp := []byte{OpAload0, OpAload0, OpIfAcmpne, 0x00, 0x05, OpIconst1, OpIreturn, OpIconst0, OpIreturn}

	b := classfile.NewBuilder("T", "java/lang/Object")
	b.Method(classfile.AccPublic|classfile.AccStatic, "isNull", "(Ljava/lang/Object;)I", 4, 4, ifnull)
	b.Method(classfile.AccPublic|classfile.AccStatic, "same", "(Ljava/lang/Object;)I", 4, 4, acmp)
	v := newTestVM(t, b.Build())
	detach := v.Attach()
	defer detach()
	c, err := v.findClass("T")
	if err != nil {
		t.Fatal(err)
	}
	obj := v.newString("x")

	tests := []struct {
		name   string
		method string
		arg    Value
		want   int32
	}{
		{"ifnull with null", "isNull", NullValue(), 2},
		{"ifnull with object", "isNull", RefValue(obj), 1},
		{"if_acmpne same object", "same", RefValue(obj), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ret, err := v.executeMethod(c.DeclaredMethod(tt.method, "(Ljava/lang/Object;)I"), []Value{tt.arg})
			if err != nil {
				t.Fatal(err)
			}
			if ret.Int() != tt.want {
				t.Errorf("%s: got %d, want %d", tt.name, ret.Int(), tt.want)
			}
		})
	}
}

func TestCheckcastInstanceof(t *testing.T) {
	tests := []struct {
		name   string
		class  string
		op     byte
		want   int32
		throws string
	}{
		{"instanceof String", "java/lang/String", OpInstanceof, 1, ""},
		{"instanceof CharSequence", "java/lang/CharSequence", OpInstanceof, 1, ""},
		{"instanceof Object", "java/lang/Object", OpInstanceof, 1, ""},
		{"instanceof Class", "java/lang/Class", OpInstanceof, 0, ""},
		{"checkcast passes", "java/lang/Comparable", OpCheckcast, 0, ""},
		{"checkcast fails", "java/lang/Throwable", OpCheckcast, 0, "java/lang/ClassCastException"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ret, err := runBuilt(t, "()I", func(b *classfile.Builder) []byte {
				code := cat([]byte{OpLdcW}, u16(b.String("s")), []byte{tt.op}, u16(b.Class(tt.class)))
				if tt.op == OpCheckcast {
					return append(code, OpPop, OpIconst0, OpIreturn)
				}
				return append(code, OpIreturn)
			})
			if tt.throws != "" {
				je := javaException(t, err, tt.throws)
				want := "class java.lang.String cannot be cast to class java.lang.Throwable"
				if msg := exceptionMessage(je.Object); msg != want {
					t.Errorf("message: got %q, want %q", msg, want)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if ret.Int() != tt.want {
				t.Errorf("%s: got %d, want %d", tt.name, ret.Int(), tt.want)
			}
		})
	}
}

func TestInvokedynamicUnsupported(t *testing.T) {
	_, err := runBuilt(t, "()V", func(*classfile.Builder) []byte {
		return []byte{OpInvokedynamic, 0, 1, 0, 0, OpReturn}
	})
	javaException(t, err, "java/lang/UnsupportedOperationException")
}

func TestUnknownOpcode(t *testing.T) {
	_, err := runBuilt(t, "()V", func(*classfile.Builder) []byte { return []byte{0xFE} })
	if err == nil || !strings.Contains(err.Error(), "unknown opcode: 0xFE") {
		t.Errorf("got %v, want unknown opcode error", err)
	}
}
