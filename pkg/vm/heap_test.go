package vm

import (
	"testing"
	"time"

	"github.com/daimatz/jbridge/pkg/classfile"
)

func TestCollect(t *testing.T) {
	v := newTestVM(t)
	if err := v.Register(pointClass()); err != nil {
		t.Fatal(err)
	}
	c, err := v.FindClass("Point")
	if err != nil {
		t.Fatal(err)
	}

	alloc := func() *JObject {
		detach := v.Attach()
		defer detach()
		obj, err := v.New("Point")
		if err != nil {
			t.Fatal(err)
		}
		return obj
	}

	root, child, garbage := alloc(), alloc(), alloc()
	func() {
		detach := v.Attach()
		defer detach()
		root.SetField("next", RefValue(child))
	}()

	elem := alloc()
	arrRef, err := v.NewArray(classfile.MustFieldType("LPoint;"), 1)
	if err != nil {
		t.Fatal(err)
	}
	func() {
		detach := v.Attach()
		defer detach()
		arr, _ := v.heap.lookup(arrRef)
		arr.Elems[0] = RefValue(elem)
	}()

	static := alloc()
	if err := v.SetStatic(c.LookupField("ORIGIN"), JRef(static.ID())); err != nil {
		t.Fatal(err)
	}

	if err := v.Pin(root.ID()); err != nil {
		t.Fatal(err)
	}

	stats := v.Collect()
	if stats.Swept == 0 {
		t.Errorf("swept: got 0, want at least the unreachable object")
	}
	if stats.Pinned != 2 {
		t.Errorf("pinned: got %d, want 2 (root and array)", stats.Pinned)
	}
	if got := v.Collections(); got != 1 {
		t.Errorf("collections: got %d, want 1", got)
	}

	tests := []struct {
		name string
		obj  *JObject
		want bool
	}{
		{"pinned root", root, true},
		{"reachable through a field", child, true},
		{"reachable through a pinned array", elem, true},
		{"reachable through a static", static, true},
		{"unreachable", garbage, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.IsLive(tt.obj.ID()); got != tt.want {
				t.Errorf("IsLive: got %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("unpinned roots are swept", func(t *testing.T) {
		if err := v.Unpin(root.ID()); err != nil {
			t.Fatal(err)
		}
		v.Collect()
		if v.IsLive(root.ID()) || v.IsLive(child.ID()) {
			t.Error("root or child survived after the last pin was dropped")
		}
		if !v.IsLive(arrRef) {
			t.Error("pinned array was swept")
		}
	})

	t.Run("interned strings survive", func(t *testing.T) {
		detach := v.Attach()
		s := v.intern("kept")
		detach()
		v.Collect()
		if !v.IsLive(s.ID()) {
			t.Error("interned string was swept")
		}
	})
}

func TestCollector(t *testing.T) {
	v := newTestVM(t)
	c := NewCollector(v, time.Millisecond)
	if c.Running() {
		t.Fatal("new collector is running")
	}

	c.Start()
	c.Start()
	if !c.Running() {
		t.Fatal("collector not running after Start")
	}

	deadline := time.Now().Add(5 * time.Second)
	for v.Collections() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("collections: got %d after 5s, want at least 2", v.Collections())
		}
		time.Sleep(time.Millisecond)
	}

	c.Stop()
	if c.Running() {
		t.Error("collector running after Stop")
	}
	n := v.Collections()
	time.Sleep(10 * time.Millisecond)
	if got := v.Collections(); got != n {
		t.Errorf("collections after Stop: got %d, want %d", got, n)
	}
	c.Stop()

	t.Run("default interval", func(t *testing.T) {
		if got := NewCollector(v, 0).interval; got != DefaultCollectInterval {
			t.Errorf("interval: got %v, want %v", got, DefaultCollectInterval)
		}
	})
}

func TestCollectWaitsForGuestCall(t *testing.T) {
	v := newTestVM(t)
	started, release := make(chan struct{}), make(chan struct{})
	if err := v.Register(pointClass()); err != nil {
		t.Fatal(err)
	}
	if err := v.Register(&ClassSpec{
		Name: "Holder",
		Methods: []MethodSpec{
			{Name: "hold", Descriptor: "()LPoint;", Flags: classfile.AccPublic | classfile.AccStatic, Fn: func(v *VM, _ *JObject, _ []Value) (Value, error) {
				// p is reachable only from this frame until the call returns
				p, err := v.New("Point")
				if err != nil {
					return Value{}, err
				}
				close(started)
				<-release
				return RefValue(p), nil
			}},
		},
	}); err != nil {
		t.Fatal(err)
	}
	c, err := v.FindClass("Holder")
	if err != nil {
		t.Fatal(err)
	}

	type result struct {
		val JValue
		err error
	}
	held := make(chan result, 1)
	go func() {
		val, err := v.InvokeStatic(c.LookupMethod("hold", "()LPoint;"), nil)
		held <- result{val, err}
	}()
	<-started

	collected := make(chan struct{})
	go func() {
		v.Collect()
		close(collected)
	}()
	time.Sleep(20 * time.Millisecond)
	select {
	case <-collected:
		t.Fatal("Collect ran while a guest call was in flight")
	default:
	}

	close(release)
	res := <-held
	<-collected
	if res.err != nil {
		t.Fatal(res.err)
	}
	if !v.IsLive(res.val.Ref) {
		t.Errorf("object allocated by the guest call was swept")
	}
	if got := v.Collections(); got != 1 {
		t.Errorf("collections: got %d, want 1", got)
	}
}
