package bridge

import (
	stderrors "errors"
	"math"
	"runtime"
	"slices"

	"go.uber.org/zap"

	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/vm"
)

// Match ranks. Lower is more specific.
const (
	rankExact     = 0
	rankWordInt   = 1  // a Go int or uint whose value fits a Java int
	rankNarrowing = 6  // in-range integer or double to float
	maxSubtype    = 9  // subclass and interface distances are clamped here
	rankBoxing    = 10 // plus the primitive rank after (un)boxing
	rankBoxSuper  = 17 // a scalar boxed and passed as Number, Comparable, ...
	rankObject    = 20
)

// widening is the position of each kind in the primitive widening order
// byte < short < int < long < float < double.
var widening = map[vm.Kind]int{
	vm.KindByte:   0,
	vm.KindShort:  1,
	vm.KindInt:    2,
	vm.KindLong:   3,
	vm.KindFloat:  4,
	vm.KindDouble: 5,
}

// wideningSteps counts the widening conversions from s to t, or returns -1
// when t is not reachable from s by widening.
func wideningSteps(s, t vm.Kind) int {
	if s == t {
		return 0
	}
	if s == vm.KindChar {
		if pt, ok := widening[t]; ok && pt >= widening[vm.KindInt] {
			return 1 + pt - widening[vm.KindInt]
		}
		return -1
	}
	ps, ok1 := widening[s]
	pt, ok2 := widening[t]
	if !ok1 || !ok2 || pt < ps {
		return -1
	}
	return pt - ps
}

func isIntegral(k vm.Kind) bool {
	_, ok := intRanges[k]
	return ok
}

// hostKind is the primitive kind a host scalar denotes exactly.
func hostKind(v any) (vm.Kind, bool) {
	switch v.(type) {
	case bool:
		return vm.KindBoolean, true
	case int8:
		return vm.KindByte, true
	case int16, uint8:
		return vm.KindShort, true
	case int32, uint16:
		return vm.KindInt, true
	case int, int64, uint, uint32, uint64, uintptr:
		return vm.KindLong, true
	case float32:
		return vm.KindFloat, true
	case float64:
		return vm.KindDouble, true
	}
	return vm.KindVoid, false
}

// fitsWordInt reports whether v is a platform-width Go integer holding a
// value in the range of a Java int. Such values denote a long but read
// naturally as an int, so int parameters rank just behind long ones.
func fitsWordInt(v any) bool {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case uint:
		if uint64(x) > math.MaxInt32 {
			return false
		}
		n = int64(x)
	default:
		return false
	}
	return n >= math.MinInt32 && n <= math.MaxInt32
}

// primitiveRank ranks passing host scalar v, of exact kind s, to a
// parameter of primitive kind t.
func (b *Bridge) primitiveRank(v any, s, t vm.Kind) (int, bool) {
	if s == vm.KindBoolean || t == vm.KindBoolean {
		return rankExact, s == t
	}
	if w := wideningSteps(s, t); w >= 0 {
		return w, true
	}
	switch {
	case isIntegral(s) && isIntegral(t):
		if _, err := b.codec.Encode(v, t); err == nil {
			if t == vm.KindInt && fitsWordInt(v) {
				return rankWordInt, true
			}
			return rankNarrowing, true
		}
	case s == vm.KindDouble && t == vm.KindFloat:
		return rankNarrowing, true
	}
	return 0, false
}

// typeClass resolves the class of a reference type. Ranking must not
// initialize parameter types, so the class is only loaded and linked.
func (b *Bridge) typeClass(t classfile.FieldType) (*vm.Class, bool) {
	c, err := b.vm.ResolveClass(t.InternalName())
	if err != nil {
		var ge *vm.GuestException
		if stderrors.As(err, &ge) {
			b.drop(ge.Ref)
		}
		return nil, false
	}
	return c, true
}

// referenceRank ranks passing an object of class c to a parameter of
// class pc.
func referenceRank(c, pc *vm.Class) (int, bool) {
	if pc.Name == "java/lang/Object" {
		return rankObject, true
	}
	d := c.Distance(pc)
	if d < 0 {
		return 0, false
	}
	return min(d, maxSubtype), true
}

// rank scores passing host value v to a parameter of type t.
func (b *Bridge) rank(v any, t classfile.FieldType) (int, bool) {
	pk := vm.KindOf(t)
	var pc *vm.Class
	if pk == vm.KindReference {
		var ok bool
		if pc, ok = b.typeClass(t); !ok {
			return 0, false
		}
	}

	if p := proxyOf(v); p != nil {
		if pk != vm.KindReference {
			// unboxing, optionally followed by widening
			x, ok := v.(*Boxed)
			if !ok {
				return 0, false
			}
			if w := wideningSteps(x.kind, pk); w >= 0 {
				return rankBoxing + w, true
			}
			return 0, false
		}
		return referenceRank(p.class, pc)
	}

	switch x := v.(type) {
	case nil:
		if pk != vm.KindReference {
			return 0, false
		}
		if pc.Name == "java/lang/Object" {
			return rankObject, true
		}
		return 1, true
	case string:
		if pk == vm.KindChar {
			_, ok := charOf(x)
			return rankNarrowing, ok
		}
		if pk != vm.KindReference {
			return 0, false
		}
		sc, ok := b.typeClass(classfile.FieldType{Base: 'L', ClassName: "java/lang/String"})
		if !ok {
			return 0, false
		}
		return referenceRank(sc, pc)
	}

	hk, ok := hostKind(v)
	if !ok {
		return 0, false
	}
	if pk != vm.KindReference {
		return b.primitiveRank(v, hk, pk)
	}
	if bk, isBox := vm.BoxKind(pc); isBox {
		r, ok := b.primitiveRank(v, hk, bk)
		return rankBoxing + r, ok
	}
	if pc.Name == "java/lang/Object" {
		return rankObject, true
	}
	natural, ok := b.typeClass(classfile.FieldType{Base: 'L', ClassName: vm.BoxClassName(hk)})
	if !ok || natural.Distance(pc) < 0 {
		return 0, false
	}
	return rankBoxSuper, true
}

// call is a resolved invocation with its converted arguments.
type call struct {
	method *vm.Method
	args   []vm.JValue
	temps  []vm.Ref
	host   []any
}

// release drops the guest pins of temporary arguments once the guest call
// has returned.
func (c *call) release(b *Bridge) {
	for _, r := range c.temps {
		b.drop(r)
	}
	runtime.KeepAlive(c.host)
}

type candidate struct {
	method *vm.Method
	ranks  []int
}

// dominates reports whether a is at least as specific as b for every
// argument.
func (a candidate) dominates(b candidate) bool {
	for i := range a.ranks {
		if a.ranks[i] > b.ranks[i] {
			return false
		}
	}
	return true
}

// moreSpecific reports whether every parameter of m can be passed where
// the corresponding parameter of o is expected.
func (b *Bridge) moreSpecific(m, o *vm.Method) bool {
	for i, pm := range m.Params {
		po := o.Params[i]
		km, ko := vm.KindOf(pm), vm.KindOf(po)
		if km != vm.KindReference || ko != vm.KindReference {
			if km == vm.KindReference || ko == vm.KindReference {
				return false
			}
			if wideningSteps(km, ko) < 0 {
				return false
			}
			continue
		}
		if po.InternalName() == "java/lang/Object" {
			continue
		}
		cm, ok1 := b.typeClass(pm)
		co, ok2 := b.typeClass(po)
		if !ok1 || !ok2 || cm.Distance(co) < 0 {
			return false
		}
	}
	return true
}

// resolve picks the most specific of methods for args and converts the
// arguments for it.
func (b *Bridge) resolve(c *vm.Class, name string, methods []*vm.Method, args []any) (*call, error) {
	var applicable []candidate
	for _, m := range methods {
		if len(m.Params) != len(args) {
			continue
		}
		ranks := make([]int, len(args))
		ok := true
		for i, a := range args {
			if ranks[i], ok = b.rank(a, m.Params[i]); !ok {
				break
			}
		}
		if ok {
			applicable = append(applicable, candidate{method: m, ranks: ranks})
		}
	}
	if len(applicable) == 0 {
		return nil, errors.NoSuchMethod(c.JavaName(), name, len(args))
	}

	var best []candidate
	for _, a := range applicable {
		if !slices.ContainsFunc(applicable, func(o candidate) bool { return !a.dominates(o) }) {
			best = append(best, a)
		}
	}
	if len(best) > 1 {
		// equal ranks: prefer the candidate whose parameters are all
		// assignable to those of every other one
		for _, a := range best {
			if !slices.ContainsFunc(best, func(o candidate) bool { return o.method != a.method && !b.moreSpecific(a.method, o.method) }) {
				best = []candidate{a}
				break
			}
		}
	}
	if len(best) != 1 {
		var names []string
		for _, a := range applicable {
			names = append(names, a.method.String())
		}
		return nil, errors.AmbiguousOverload(c.JavaName(), name, names)
	}

	m := best[0].method
	Logger().Debug("overload resolved", zap.Stringer("method", m), zap.Ints("ranks", best[0].ranks))
	cl := &call{method: m, args: make([]vm.JValue, len(args)), host: args}
	for i, a := range args {
		val, temp, err := b.argument(a, m.Params[i])
		if err != nil {
			cl.release(b)
			return nil, err
		}
		cl.args[i] = val
		if temp != 0 {
			cl.temps = append(cl.temps, temp)
		}
	}
	return cl, nil
}

// convert prepares v for a slot of type t, failing with a type mismatch
// when v cannot be stored there.
func (b *Bridge) convert(op string, v any, t classfile.FieldType) (vm.JValue, vm.Ref, error) {
	if _, ok := b.rank(v, t); !ok {
		return vm.JValue{}, 0, errors.TypeMismatch(op, v, "%T is not assignable to %s", v, t.JavaName())
	}
	return b.argument(v, t)
}

// argument converts an applicable host value to the guest value passed
// for a parameter of type t. temp is a guest pin to drop after the call.
func (b *Bridge) argument(v any, t classfile.FieldType) (val vm.JValue, temp vm.Ref, err error) {
	pk := vm.KindOf(t)
	if p := proxyOf(v); p != nil {
		if p.closed.Load() {
			panic(errors.DanglingReference("argument", p.ref))
		}
		if pk == vm.KindReference {
			return vm.JRef(p.ref), 0, nil
		}
		val, err = widen(v.(*Boxed).Unwrap(), pk)
		return val, 0, err
	}

	switch x := v.(type) {
	case nil:
		return vm.JNull(), 0, nil
	case string:
		if pk != vm.KindReference {
			val, err = b.codec.Encode(x, pk)
			return val, 0, err
		}
		r, err := b.vm.NewString(x)
		return vm.JRef(r), r, err
	}

	if pk != vm.KindReference {
		val, err = b.codec.Encode(v, pk)
		return val, 0, err
	}
	hk, _ := hostKind(v)
	if pc, ok := b.typeClass(t); ok {
		if bk, isBox := vm.BoxKind(pc); isBox {
			hk = bk
		}
	}
	prim, err := b.codec.Encode(v, hk)
	if err != nil {
		return vm.JValue{}, 0, err
	}
	r, err := b.vm.Box(prim)
	return vm.JRef(r), r, err
}

// widen converts an unboxed primitive to kind k along a widening path.
func widen(j vm.JValue, k vm.Kind) (vm.JValue, error) {
	if j.Kind == k {
		return j, nil
	}
	switch k {
	case vm.KindFloat:
		if j.Kind == vm.KindDouble || j.Kind == vm.KindFloat {
			return vm.JFloat(float32(j.F)), nil
		}
		return vm.JFloat(float32(j.I)), nil
	case vm.KindDouble:
		if j.Kind == vm.KindFloat {
			return vm.JDouble(j.F), nil
		}
		return vm.JDouble(float64(j.I)), nil
	}
	return Codec{}.Encode(j.I, k)
}
