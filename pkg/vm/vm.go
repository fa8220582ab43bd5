package vm

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/errors"
)

// maxFrameDepth is the maximum number of nested method calls.
const maxFrameDepth = 1024

// VM is a guest runtime. Guest code runs on one goroutine at a time: the
// attach lock is held for the duration of every host call into the guest
// and during collections.
type VM struct {
	Stdout io.Writer

	loader ClassLoader
	attach sync.Mutex

	mu      sync.RWMutex
	classes map[string]*Class
	specs   map[string]*ClassSpec
	natives map[string]NativeFunc
	files   map[string]*classfile.ClassFile
	fetches singleflight.Group

	heap        *heap
	frameDepth  int
	collections atomic.Uint64
}

// NewVM creates a VM that resolves classes not registered in Go through
// loader. A nil loader leaves only registered classes.
func NewVM(loader ClassLoader) *VM {
	v := &VM{
		Stdout:  os.Stdout,
		loader:  loader,
		classes: make(map[string]*Class),
		specs:   make(map[string]*ClassSpec),
		natives: make(map[string]NativeFunc),
		files:   make(map[string]*classfile.ClassFile),
		heap:    newHeap(),
	}
	for _, spec := range coreClasses() {
		v.specs[spec.Name] = spec
	}
	return v
}

// Attach acquires exclusive access to the guest runtime and returns the
// function that releases it.
func (v *VM) Attach() (detach func()) {
	v.attach.Lock()
	return v.attach.Unlock
}

// Register makes a Go-implemented class available by name. Registered
// classes shadow the class loader. It must be called before the class is
// first used.
func (v *VM) Register(spec *ClassSpec) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, loaded := v.classes[spec.Name]; loaded {
		return fmt.Errorf("register %s: class already loaded", spec.Name)
	}
	v.specs[spec.Name] = spec
	return nil
}

// RegisterNative binds fn to a method declared native in a loaded class
// file. key is class.name:descriptor, e.g. "Foo.now:()J".
func (v *VM) RegisterNative(class, name, desc string, fn NativeFunc) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.natives[class+"."+name+":"+desc] = fn
}

// internalName accepts dotted or slashed class names and array descriptors.
func internalName(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

func (v *VM) loaded(name string) *Class {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.classes[name]
}

func (v *VM) loadedClasses() []*Class {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]*Class, 0, len(v.classes))
	for _, c := range v.classes {
		out = append(out, c)
	}
	return out
}

// fetch reads and parses a class file. Concurrent fetches of the same name
// share one load.
func (v *VM) fetch(name string) (*classfile.ClassFile, error) {
	v.mu.RLock()
	cf, ok := v.files[name]
	v.mu.RUnlock()
	if ok {
		return cf, nil
	}
	if v.loader == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrClassNotFound)
	}

	res, err, shared := v.fetches.Do(name, func() (any, error) {
		cf, err := v.loader.LoadClass(name)
		if err != nil {
			return nil, err
		}
		v.mu.Lock()
		v.files[name] = cf
		v.mu.Unlock()
		return cf, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		Logger().Debug("shared class fetch", zap.String("class", name))
	}
	return res.(*classfile.ClassFile), nil
}

func (v *VM) isRegistered(name string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.specs[name]
	return ok
}

// FindClass loads, links and initializes the named class. Names may be
// dotted or slashed; array classes use descriptor form such as "[I".
func (v *VM) FindClass(name string) (*Class, error) {
	name = internalName(name)
	if c := v.loaded(name); c != nil && c.ready.Load() {
		return c, nil
	}
	// Parse outside the attach lock so slow loaders do not stall guest calls.
	if !strings.HasPrefix(name, "[") && !v.isRegistered(name) {
		if _, err := v.fetch(name); err != nil {
			return nil, errors.ClassNotFound(strings.ReplaceAll(name, "/", "."), err)
		}
	}

	detach := v.Attach()
	defer detach()
	c, err := v.findClass(name)
	if err != nil {
		return nil, v.hostError(err)
	}
	return c, nil
}

// ResolveClass loads and links the named class like FindClass but leaves
// it uninitialized, so no static initializer runs.
func (v *VM) ResolveClass(name string) (*Class, error) {
	name = internalName(name)
	if c := v.loaded(name); c != nil {
		return c, nil
	}
	if !strings.HasPrefix(name, "[") && !v.isRegistered(name) {
		if _, err := v.fetch(name); err != nil {
			return nil, errors.ClassNotFound(strings.ReplaceAll(name, "/", "."), err)
		}
	}

	detach := v.Attach()
	defer detach()
	c, err := v.resolveClass(name)
	if err != nil {
		return nil, v.hostError(err)
	}
	return c, nil
}

// findClass is FindClass for callers already holding the attach lock.
func (v *VM) findClass(name string) (*Class, error) {
	c, err := v.resolveClass(name)
	if err != nil {
		return nil, err
	}
	if err := v.ensureInitialized(c); err != nil {
		return nil, err
	}
	return c, nil
}

// resolveClass loads and links without initializing.
func (v *VM) resolveClass(name string) (*Class, error) {
	if c := v.loaded(name); c != nil {
		return c, nil
	}

	v.mu.RLock()
	spec, isSpec := v.specs[name]
	v.mu.RUnlock()

	switch {
	case isSpec:
		return v.defineSpec(spec)
	case strings.HasPrefix(name, "["):
		return v.defineArray(name)
	}

	cf, err := v.fetch(name)
	if err != nil {
		if stderrors.Is(err, ErrClassNotFound) {
			return nil, v.throw("java/lang/NoClassDefFoundError", "%s", name)
		}
		return nil, err
	}
	return v.defineClass(cf)
}

func (v *VM) publish(c *Class) {
	v.mu.Lock()
	v.classes[c.Name] = c
	v.mu.Unlock()
	Logger().Debug("class defined", zap.String("class", c.Name))
}

func (v *VM) linkSupers(c *Class, super string, interfaces []string) error {
	if super != "" {
		s, err := v.resolveClass(super)
		if err != nil {
			return fmt.Errorf("superclass of %s: %w", c.Name, err)
		}
		c.Super = s
		c.nslots = s.nslots
	}
	for _, name := range interfaces {
		i, err := v.resolveClass(name)
		if err != nil {
			return fmt.Errorf("interface of %s: %w", c.Name, err)
		}
		c.Interfaces = append(c.Interfaces, i)
	}
	return nil
}

func (v *VM) addField(c *Class, name, desc string, flags uint16) (*Field, error) {
	t, err := classfile.ParseFieldType(desc)
	if err != nil {
		return nil, fmt.Errorf("field %s.%s: %w", c.Name, name, err)
	}
	f := &Field{Class: c, Name: name, Descriptor: desc, Type: t, Flags: flags}
	if f.IsStatic() {
		f.slot = len(c.statics)
		c.statics = append(c.statics, zeroValue(f.Kind()))
	} else {
		f.slot = c.nslots
		c.nslots++
	}
	c.fields = append(c.fields, f)
	return f, nil
}

func (v *VM) defineClass(cf *classfile.ClassFile) (*Class, error) {
	name, err := cf.ClassName()
	if err != nil {
		return nil, err
	}
	c := &Class{Name: name, Flags: cf.AccessFlags, file: cf}

	ifaces, err := cf.InterfaceNames()
	if err != nil {
		return nil, err
	}
	if err := v.linkSupers(c, cf.SuperClassName(), ifaces); err != nil {
		return nil, err
	}

	for _, fi := range cf.Fields {
		f, err := v.addField(c, fi.Name, fi.Descriptor, fi.AccessFlags)
		if err != nil {
			return nil, err
		}
		f.constant = fi.ConstantValue
	}

	for i := range cf.Methods {
		mi := &cf.Methods[i]
		m, err := newMethod(c, mi.Name, mi.Descriptor, mi.AccessFlags)
		if err != nil {
			return nil, err
		}
		m.Code = mi.Code
		if mi.AccessFlags&classfile.AccNative != 0 {
			v.mu.RLock()
			m.Native = v.natives[name+"."+mi.Name+":"+mi.Descriptor]
			v.mu.RUnlock()
		}
		c.methods = append(c.methods, m)
	}

	v.publish(c)
	return c, nil
}

func (v *VM) defineSpec(spec *ClassSpec) (*Class, error) {
	c := &Class{Name: spec.Name, Flags: spec.Flags | classfile.AccPublic, initFn: spec.Init}
	super := spec.Super
	if super == "" && spec.Name != "java/lang/Object" {
		super = "java/lang/Object"
	}
	if err := v.linkSupers(c, super, spec.Interfaces); err != nil {
		return nil, err
	}
	for _, fs := range spec.Fields {
		if _, err := v.addField(c, fs.Name, fs.Descriptor, fs.Flags); err != nil {
			return nil, err
		}
	}
	for _, ms := range spec.Methods {
		flags := ms.Flags
		if flags == 0 {
			flags = classfile.AccPublic
		}
		if ms.Fn == nil {
			flags |= classfile.AccAbstract
		}
		m, err := newMethod(c, ms.Name, ms.Descriptor, flags)
		if err != nil {
			return nil, err
		}
		m.Native = ms.Fn
		c.methods = append(c.methods, m)
	}
	v.publish(c)
	return c, nil
}

func (v *VM) defineArray(name string) (*Class, error) {
	t, err := classfile.ParseFieldType(name)
	if err != nil || !t.IsArray() {
		return nil, fmt.Errorf("invalid array class name %q", name)
	}
	c := &Class{
		Name:    name,
		Flags:   classfile.AccPublic | classfile.AccFinal,
		elem:    t.Elem(),
		isArray: true,
		state:   classInitialized,
	}
	c.ready.Store(true)
	if c.elem.IsReference() {
		comp, err := v.resolveClass(c.elem.InternalName())
		if err != nil {
			return nil, err
		}
		c.Component = comp
	}
	if err := v.linkSupers(c, "java/lang/Object", []string{"java/lang/Cloneable", "java/io/Serializable"}); err != nil {
		return nil, err
	}
	c.nslots = 0
	v.publish(c)
	return c, nil
}

// arrayClass returns the class of arrays whose component type is elem.
func (v *VM) arrayClass(elem classfile.FieldType) (*Class, error) {
	return v.resolveClass(elem.ArrayOf().InternalName())
}

func (v *VM) ensureInitialized(c *Class) error {
	if c.state != classLoaded {
		// initialized, or being initialized further up this call stack
		return nil
	}
	c.state = classInitializing
	if c.Super != nil {
		if err := v.ensureInitialized(c.Super); err != nil {
			c.state = classLoaded
			return err
		}
	}

	for _, f := range c.fields {
		if f.IsStatic() && f.constant != 0 {
			val, err := v.constantValue(c, f.constant)
			if err != nil {
				c.state = classLoaded
				return fmt.Errorf("initializing %s.%s: %w", c.Name, f.Name, err)
			}
			c.statics[f.slot] = narrow(f.Kind(), val)
		}
	}

	var err error
	if c.initFn != nil {
		err = c.initFn(v, c)
	} else if clinit := c.DeclaredMethod("<clinit>", "()V"); clinit != nil {
		_, err = v.executeMethod(clinit, nil)
	}
	if err != nil {
		c.state = classLoaded
		return err
	}
	c.state = classInitialized
	c.ready.Store(true)
	return nil
}

// constantValue loads a loadable constant pool entry of c.
func (v *VM) constantValue(c *Class, index uint16) (Value, error) {
	pool := c.file.ConstantPool
	if int(index) >= len(pool) || pool[index] == nil {
		return Value{}, fmt.Errorf("invalid constant pool index %d", index)
	}
	switch e := pool[index].(type) {
	case *classfile.ConstantInteger:
		return IntValue(e.Value), nil
	case *classfile.ConstantFloat:
		return FloatValue(e.Value), nil
	case *classfile.ConstantLong:
		return LongValue(e.Value), nil
	case *classfile.ConstantDouble:
		return DoubleValue(e.Value), nil
	case *classfile.ConstantString:
		s, err := classfile.GetUtf8(pool, e.StringIndex)
		if err != nil {
			return Value{}, err
		}
		return RefValue(v.intern(s)), nil
	case *classfile.ConstantClass:
		name, err := classfile.GetUtf8(pool, e.NameIndex)
		if err != nil {
			return Value{}, err
		}
		k, err := v.resolveClass(name)
		if err != nil {
			return Value{}, err
		}
		return RefValue(v.mirror(k)), nil
	}
	return Value{}, fmt.Errorf("constant pool entry %d (tag=%d) is not loadable", index, pool[index].Tag())
}

// intern returns the canonical string object for s.
func (v *VM) intern(s string) *JObject {
	if obj, ok := v.heap.interned[s]; ok {
		return obj
	}
	obj := v.newString(s)
	v.heap.interned[s] = obj
	return obj
}

func (v *VM) newString(s string) *JObject {
	c, err := v.resolveClass("java/lang/String")
	if err != nil {
		panic(fmt.Sprintf("java/lang/String unavailable: %v", err))
	}
	obj := v.heap.alloc(c)
	obj.Native = s
	return obj
}

// mirror returns the java/lang/Class object for c.
func (v *VM) mirror(c *Class) *JObject {
	if c.mirror == nil {
		cc, err := v.resolveClass("java/lang/Class")
		if err != nil {
			panic(fmt.Sprintf("java/lang/Class unavailable: %v", err))
		}
		c.mirror = v.heap.alloc(cc)
		c.mirror.Native = c
	}
	return c.mirror
}

func (v *VM) newArray(c *Class, n int) *JObject {
	obj := v.heap.alloc(c)
	obj.Elems = make([]Value, n)
	zero := zeroValue(KindOf(c.elem))
	for i := range obj.Elems {
		obj.Elems[i] = zero
	}
	return obj
}

// executeMethod executes a method with the given arguments and returns its
// return value. For instance methods args[0] is the receiver.
func (v *VM) executeMethod(m *Method, args []Value) (Value, error) {
	if m.Native != nil {
		var this *JObject
		if !m.IsStatic() {
			this, args = args[0].Ref, args[1:]
		}
		return m.Native(v, this, args)
	}
	if m.Code == nil {
		if m.IsAbstract() {
			return Value{}, v.throw("java/lang/AbstractMethodError", "%s", m)
		}
		return Value{}, v.throw("java/lang/UnsatisfiedLinkError", "%s", m)
	}

	v.frameDepth++
	defer func() { v.frameDepth-- }()
	if v.frameDepth > maxFrameDepth {
		return Value{}, v.throw("java/lang/StackOverflowError", "")
	}

	frame := NewFrame(m)

	// Set arguments into local variables; long and double take two slots.
	slot := 0
	for _, arg := range args {
		frame.SetLocal(slot, arg)
		slot++
		if arg.Kind.IsWide() {
			slot++
		}
	}

	// Execution loop
	for frame.PC < len(frame.Code) {
		pc := frame.PC
		opcode := frame.Code[frame.PC]
		frame.PC++

		retVal, hasReturn, err := v.executeInstruction(frame, opcode)
		if err != nil {
			var je *JavaException
			if stderrors.As(err, &je) {
				if handler, ok := v.findHandler(frame, pc, je.Object); ok {
					frame.clear()
					frame.Push(RefValue(je.Object))
					frame.PC = handler
					continue
				}
			}
			return Value{}, err
		}
		if hasReturn {
			return retVal, nil
		}
	}

	// Fell off the end of the method (implicit return for void methods)
	return Value{}, nil
}

// findHandler searches the exception table for a handler covering pc.
func (v *VM) findHandler(frame *Frame, pc int, exc *JObject) (int, bool) {
	for _, h := range frame.Method.Code.ExceptionHandlers {
		if pc < int(h.StartPC) || pc >= int(h.EndPC) {
			continue
		}
		if h.CatchType == 0 {
			return int(h.HandlerPC), true
		}
		name, err := classfile.GetClassName(frame.pool(), h.CatchType)
		if err != nil {
			continue
		}
		catch, err := v.resolveClass(name)
		if err != nil {
			continue
		}
		if exc.Class.IsSubclassOf(catch) {
			return int(h.HandlerPC), true
		}
	}
	return 0, false
}

// popArgs pops the arguments of m, plus the receiver when hasThis is set,
// and returns them in declaration order.
func popArgs(frame *Frame, m *classfile.MethodRefInfo, hasThis bool) ([]Value, error) {
	params, _, err := classfile.ParseMethodDescriptor(m.Descriptor)
	if err != nil {
		return nil, err
	}
	n := len(params)
	if hasThis {
		n++
	}
	args := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = frame.Pop()
	}
	return args, nil
}

func pushResult(frame *Frame, desc string, ret Value) {
	if !strings.HasSuffix(desc, ")V") {
		frame.Push(ret)
	}
}

// executeLdc handles the ldc and ldc_w instructions.
func (v *VM) executeLdc(frame *Frame, index uint16) (Value, bool, error) {
	val, err := v.constantValue(frame.Class, index)
	if err != nil {
		return Value{}, false, fmt.Errorf("ldc: %w", err)
	}
	frame.Push(val)
	return Value{}, false, nil
}

func (v *VM) resolveField(frame *Frame, op string, static bool) (*Field, error) {
	ref, err := classfile.ResolveFieldref(frame.pool(), frame.ReadU16())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c, err := v.resolveClass(ref.ClassName)
	if err != nil {
		return nil, err
	}
	f := c.LookupField(ref.FieldName)
	if f == nil || f.IsStatic() != static {
		return nil, v.throw("java/lang/NoSuchFieldError", "%s", ref.FieldName)
	}
	if static {
		if err := v.ensureInitialized(f.Class); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// executeGetstatic handles the getstatic instruction.
func (v *VM) executeGetstatic(frame *Frame) (Value, bool, error) {
	f, err := v.resolveField(frame, "getstatic", true)
	if err != nil {
		return Value{}, false, err
	}
	frame.Push(f.Class.statics[f.slot])
	return Value{}, false, nil
}

// executePutstatic handles the putstatic instruction.
func (v *VM) executePutstatic(frame *Frame) (Value, bool, error) {
	f, err := v.resolveField(frame, "putstatic", true)
	if err != nil {
		return Value{}, false, err
	}
	f.Class.statics[f.slot] = narrow(f.Kind(), frame.Pop())
	return Value{}, false, nil
}

// executeGetfield handles the getfield instruction.
func (v *VM) executeGetfield(frame *Frame) (Value, bool, error) {
	f, err := v.resolveField(frame, "getfield", false)
	if err != nil {
		return Value{}, false, err
	}
	obj := frame.Pop()
	if obj.IsNull() {
		return Value{}, false, v.throw("java/lang/NullPointerException", "Cannot read field %q because value is null", f.Name)
	}
	frame.Push(obj.Ref.Fields[f.slot])
	return Value{}, false, nil
}

// executePutfield handles the putfield instruction.
func (v *VM) executePutfield(frame *Frame) (Value, bool, error) {
	f, err := v.resolveField(frame, "putfield", false)
	if err != nil {
		return Value{}, false, err
	}
	value := frame.Pop()
	obj := frame.Pop()
	if obj.IsNull() {
		return Value{}, false, v.throw("java/lang/NullPointerException", "Cannot assign field %q because value is null", f.Name)
	}
	obj.Ref.Fields[f.slot] = narrow(f.Kind(), value)
	return Value{}, false, nil
}

// executeInvokevirtual handles invokevirtual and invokeinterface.
func (v *VM) executeInvokevirtual(frame *Frame, op string, interfaceRef bool) (Value, bool, error) {
	index := frame.ReadU16()
	if interfaceRef {
		frame.ReadU8() // count
		frame.ReadU8() // 0
	}

	var ref *classfile.MethodRefInfo
	var err error
	if interfaceRef {
		ref, err = classfile.ResolveInterfaceMethodref(frame.pool(), index)
	} else {
		ref, err = classfile.ResolveMethodref(frame.pool(), index)
	}
	if err != nil {
		return Value{}, false, fmt.Errorf("%s: %w", op, err)
	}

	args, err := popArgs(frame, ref, true)
	if err != nil {
		return Value{}, false, fmt.Errorf("%s: %w", op, err)
	}
	recv := args[0]
	if recv.IsNull() {
		return Value{}, false, v.throw("java/lang/NullPointerException",
			"Cannot invoke \"%s.%s()\" because value is null", internalToDotted(ref.ClassName), ref.MethodName)
	}

	m := recv.Ref.Class.LookupMethod(ref.MethodName, ref.Descriptor)
	if m == nil {
		return Value{}, false, v.throw("java/lang/AbstractMethodError", "%s.%s%s", recv.Ref.Class.JavaName(), ref.MethodName, ref.Descriptor)
	}
	ret, err := v.executeMethod(m, args)
	if err != nil {
		return Value{}, false, err
	}
	pushResult(frame, ref.Descriptor, ret)
	return Value{}, false, nil
}

// executeInvokespecial handles the invokespecial instruction.
func (v *VM) executeInvokespecial(frame *Frame) (Value, bool, error) {
	ref, err := classfile.ResolveMethodref(frame.pool(), frame.ReadU16())
	if err != nil {
		return Value{}, false, fmt.Errorf("invokespecial: %w", err)
	}
	args, err := popArgs(frame, ref, true)
	if err != nil {
		return Value{}, false, fmt.Errorf("invokespecial: %w", err)
	}
	if args[0].IsNull() {
		return Value{}, false, v.throw("java/lang/NullPointerException", "")
	}

	c, err := v.resolveClass(ref.ClassName)
	if err != nil {
		return Value{}, false, err
	}
	m := c.LookupMethod(ref.MethodName, ref.Descriptor)
	if m == nil {
		return Value{}, false, v.throw("java/lang/NoSuchMethodError", "%s.%s%s", c.JavaName(), ref.MethodName, ref.Descriptor)
	}
	ret, err := v.executeMethod(m, args)
	if err != nil {
		return Value{}, false, err
	}
	pushResult(frame, ref.Descriptor, ret)
	return Value{}, false, nil
}

// executeInvokestatic handles the invokestatic instruction.
func (v *VM) executeInvokestatic(frame *Frame) (Value, bool, error) {
	ref, err := classfile.ResolveMethodref(frame.pool(), frame.ReadU16())
	if err != nil {
		return Value{}, false, fmt.Errorf("invokestatic: %w", err)
	}
	c, err := v.findClass(ref.ClassName)
	if err != nil {
		return Value{}, false, err
	}
	m := c.LookupMethod(ref.MethodName, ref.Descriptor)
	if m == nil || !m.IsStatic() {
		return Value{}, false, v.throw("java/lang/NoSuchMethodError", "%s.%s%s", c.JavaName(), ref.MethodName, ref.Descriptor)
	}

	// Pop arguments from stack (in reverse order)
	args, err := popArgs(frame, ref, false)
	if err != nil {
		return Value{}, false, fmt.Errorf("invokestatic: %w", err)
	}
	ret, err := v.executeMethod(m, args)
	if err != nil {
		return Value{}, false, err
	}
	pushResult(frame, ref.Descriptor, ret)
	return Value{}, false, nil
}

// executeNew handles the new instruction.
func (v *VM) executeNew(frame *Frame) (Value, bool, error) {
	className, err := classfile.GetClassName(frame.pool(), frame.ReadU16())
	if err != nil {
		return Value{}, false, fmt.Errorf("new: %w", err)
	}
	c, err := v.findClass(className)
	if err != nil {
		return Value{}, false, err
	}
	if c.Flags&(classfile.AccAbstract|classfile.AccInterface) != 0 {
		return Value{}, false, v.throw("java/lang/InstantiationError", "%s", c.JavaName())
	}
	frame.Push(RefValue(v.heap.alloc(c)))
	return Value{}, false, nil
}

// classOperand resolves the class named by a CONSTANT_Class operand.
func (v *VM) classOperand(frame *Frame) (*Class, error) {
	name, err := classfile.GetClassName(frame.pool(), frame.ReadU16())
	if err != nil {
		return nil, err
	}
	return v.resolveClass(name)
}

func internalToDotted(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}
