package vm

import "fmt"

// JavaException represents a guest exception being thrown. It travels up
// the Go call stack as an error until a handler catches it.
type JavaException struct {
	Object *JObject
}

func (e *JavaException) Error() string {
	msg := exceptionMessage(e.Object)
	if msg == "" {
		return e.Object.Class.JavaName()
	}
	return e.Object.Class.JavaName() + ": " + msg
}

func exceptionMessage(obj *JObject) string {
	s, _ := obj.GetField("message").Ref.StringValue()
	return s
}

// throw allocates an exception of the named class and returns it as an
// error. The class must extend java/lang/Throwable.
func (v *VM) throw(className string, format string, args ...any) error {
	c, err := v.findClass(className)
	if err != nil {
		return fmt.Errorf("throwing %s: %w", className, err)
	}
	obj := v.heap.alloc(c)
	if format != "" || len(args) > 0 {
		obj.SetField("message", RefValue(v.intern(fmt.Sprintf(format, args...))))
	}
	return &JavaException{Object: obj}
}

// GuestException is returned by the host API when guest code lets an
// exception escape. Ref is pinned for the caller.
type GuestException struct {
	ClassName string // dotted, e.g. java.lang.ArithmeticException
	Message   string
	Ref       Ref
}

func (e *GuestException) Error() string {
	if e.Message == "" {
		return e.ClassName
	}
	return e.ClassName + ": " + e.Message
}

// toGuestException converts a thrown exception into its host form and pins
// the exception object.
func (v *VM) toGuestException(je *JavaException) *GuestException {
	v.heap.pin(je.Object)
	return &GuestException{
		ClassName: je.Object.Class.JavaName(),
		Message:   exceptionMessage(je.Object),
		Ref:       je.Object.id,
	}
}
