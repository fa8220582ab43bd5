package native

import (
	"io"
	"os"
	"strconv"
	"time"
	"unicode/utf16"

	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/vm"
)

// printStream is the Native state of a java/io/PrintStream. The writer is
// looked up on every call so that System.out follows VM.Stdout.
type printStream struct {
	writer func(v *vm.VM) io.Writer
}

func (ps *printStream) print(v *vm.VM, s string, newline bool) error {
	if newline {
		s += "\n"
	}
	_, err := io.WriteString(ps.writer(v), s)
	return err
}

// printFormats render each overload of print and println.
var printFormats = []struct {
	desc   string
	format func(v *vm.VM, val vm.Value) (string, error)
}{
	{stringDesc, func(v *vm.VM, val vm.Value) (string, error) { return v.ToString(val.Ref) }},
	{objectDesc, func(v *vm.VM, val vm.Value) (string, error) { return v.ToString(val.Ref) }},
	{"I", func(v *vm.VM, val vm.Value) (string, error) { return strconv.Itoa(int(val.Int())), nil }},
	{"J", func(v *vm.VM, val vm.Value) (string, error) { return strconv.FormatInt(val.Long(), 10), nil }},
	{"Z", func(v *vm.VM, val vm.Value) (string, error) { return strconv.FormatBool(val.Bool()), nil }},
	{"C", func(v *vm.VM, val vm.Value) (string, error) { return string(utf16.Decode([]uint16{uint16(val.I)})), nil }},
	{"F", func(v *vm.VM, val vm.Value) (string, error) { return vm.FormatFloat(val.Float()), nil }},
	{"D", func(v *vm.VM, val vm.Value) (string, error) { return vm.FormatDouble(val.Double()), nil }},
}

func printStreamClass() *vm.ClassSpec {
	stream := func(v *vm.VM, this *vm.JObject) (*printStream, error) {
		ps, ok := this.Native.(*printStream)
		if !ok {
			return nil, v.Throw("java/lang/IllegalStateException", "unbound PrintStream")
		}
		return ps, nil
	}
	methods := []vm.MethodSpec{
		{Name: "println", Descriptor: "()V", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
			ps, err := stream(v, this)
			if err != nil {
				return vm.Value{}, err
			}
			return vm.Value{}, ps.print(v, "", true)
		}},
		{Name: "flush", Descriptor: "()V", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
			return vm.Value{}, nil
		}},
	}
	for _, pf := range printFormats {
		for _, name := range []string{"print", "println"} {
			methods = append(methods, vm.MethodSpec{Name: name, Descriptor: "(" + pf.desc + ")V", Fn: func(v *vm.VM, this *vm.JObject, args []vm.Value) (vm.Value, error) {
				ps, err := stream(v, this)
				if err != nil {
					return vm.Value{}, err
				}
				s, err := pf.format(v, args[0])
				if err != nil {
					return vm.Value{}, err
				}
				return vm.Value{}, ps.print(v, s, name == "println")
			}})
		}
	}
	return &vm.ClassSpec{Name: "java/io/PrintStream", Methods: methods}
}

func systemClass() *vm.ClassSpec {
	const streamDesc = "Ljava/io/PrintStream;"
	start := time.Now()
	return &vm.ClassSpec{
		Name:  "java/lang/System",
		Flags: classfile.AccFinal,
		Fields: []vm.FieldSpec{
			{Name: "out", Descriptor: streamDesc, Flags: publicStatic | classfile.AccFinal},
			{Name: "err", Descriptor: streamDesc, Flags: publicStatic | classfile.AccFinal},
		},
		Methods: []vm.MethodSpec{
			{Name: "currentTimeMillis", Descriptor: "()J", Flags: publicStatic, Fn: func(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
				return vm.LongValue(time.Now().UnixMilli()), nil
			}},
			{Name: "nanoTime", Descriptor: "()J", Flags: publicStatic, Fn: func(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
				return vm.LongValue(int64(time.Since(start))), nil
			}},
			{Name: "identityHashCode", Descriptor: "(" + objectDesc + ")I", Flags: publicStatic, Fn: func(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
				return vm.IntValue(int32(args[0].Ref.ID())), nil
			}},
			{Name: "lineSeparator", Descriptor: "()" + stringDesc, Flags: publicStatic, Fn: func(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
				return v.String("\n"), nil
			}},
			{Name: "arraycopy", Descriptor: "(" + objectDesc + "I" + objectDesc + "II)V", Flags: publicStatic, Fn: arraycopy},
		},
		Init: func(v *vm.VM, c *vm.Class) error {
			streams := map[string]func(v *vm.VM) io.Writer{
				"out": func(v *vm.VM) io.Writer { return v.Stdout },
				"err": func(*vm.VM) io.Writer { return os.Stderr },
			}
			for name, w := range streams {
				ps, err := v.New("java/io/PrintStream")
				if err != nil {
					return err
				}
				ps.Native = &printStream{writer: w}
				c.SetStatic(name, vm.RefValue(ps))
			}
			return nil
		},
	}
}

func arraycopy(v *vm.VM, _ *vm.JObject, args []vm.Value) (vm.Value, error) {
	src, srcPos, dst, dstPos, n := args[0].Ref, int(args[1].Int()), args[2].Ref, int(args[3].Int()), int(args[4].Int())
	if src == nil || dst == nil {
		return vm.Value{}, v.NullPointer()
	}
	if !src.IsArray() {
		return vm.Value{}, v.Throw("java/lang/ArrayStoreException", "arraycopy: source type %s is not an array", src.Class.JavaName())
	}
	if !dst.IsArray() {
		return vm.Value{}, v.Throw("java/lang/ArrayStoreException", "arraycopy: destination type %s is not an array", dst.Class.JavaName())
	}
	se, de := src.Class.Elem(), dst.Class.Elem()
	if se.IsReference() != de.IsReference() || (!se.IsReference() && se != de) {
		return vm.Value{}, v.Throw("java/lang/ArrayStoreException", "arraycopy: type mismatch: can not copy %s into %s",
			src.Class.SimpleName(), dst.Class.SimpleName())
	}
	if n < 0 || srcPos < 0 || dstPos < 0 || srcPos+n > len(src.Elems) || dstPos+n > len(dst.Elems) {
		return vm.Value{}, v.Throw("java/lang/ArrayIndexOutOfBoundsException", "arraycopy: length %d out of bounds for copy from %d of %d to %d of %d",
			n, srcPos, len(src.Elems), dstPos, len(dst.Elems))
	}
	if de.IsReference() && dst.Class.Component != nil {
		for _, e := range src.Elems[srcPos : srcPos+n] {
			if e.Ref != nil && !e.Ref.Class.IsSubclassOf(dst.Class.Component) {
				return vm.Value{}, v.Throw("java/lang/ArrayStoreException", "arraycopy: element type mismatch: %s into %s",
					e.Ref.Class.JavaName(), dst.Class.SimpleName())
			}
		}
	}
	copy(dst.Elems[dstPos:dstPos+n], src.Elems[srcPos:srcPos+n])
	return vm.Value{}, nil
}
