package vm

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// heap owns every live guest object and the guest-side pin counts. All
// access happens with the VM's attach lock held.
type heap struct {
	nextID   Ref
	objects  map[Ref]*JObject
	pins     map[Ref]int
	interned map[string]*JObject
}

func newHeap() *heap {
	return &heap{
		objects:  make(map[Ref]*JObject),
		pins:     make(map[Ref]int),
		interned: make(map[string]*JObject),
	}
}

func (h *heap) alloc(c *Class) *JObject {
	h.nextID++
	obj := &JObject{id: h.nextID, Class: c}
	if c.nslots > 0 {
		obj.Fields = make([]Value, c.nslots)
		for k := c; k != nil; k = k.Super {
			for _, f := range k.fields {
				if !f.IsStatic() {
					obj.Fields[f.slot] = zeroValue(f.Kind())
				}
			}
		}
	}
	h.objects[obj.id] = obj
	return obj
}

func (h *heap) lookup(r Ref) (*JObject, bool) {
	obj, ok := h.objects[r]
	return obj, ok
}

func (h *heap) pin(obj *JObject) {
	if obj != nil {
		h.pins[obj.id]++
	}
}

// unpin drops one pin and reports whether the reference was pinned.
func (h *heap) unpin(r Ref) bool {
	n, ok := h.pins[r]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(h.pins, r)
	} else {
		h.pins[r] = n - 1
	}
	return true
}

// CollectStats describes one collection.
type CollectStats struct {
	Live     int
	Swept    int
	Pinned   int
	Duration time.Duration
}

// collect marks everything reachable from pins, interned strings and
// loaded classes and forgets the rest. Interpreter frames are not roots:
// callers hold the attach lock, so no guest call is in flight.
func (h *heap) collect(classes []*Class) CollectStats {
	start := time.Now()

	var stack []*JObject
	mark := func(o *JObject) {
		if o != nil && !o.marked {
			o.marked = true
			stack = append(stack, o)
		}
	}
	for r := range h.pins {
		mark(h.objects[r])
	}
	for _, s := range h.interned {
		mark(s)
	}
	for _, c := range classes {
		c.trace(mark)
	}
	for len(stack) > 0 {
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		o.trace(mark)
	}

	stats := CollectStats{Pinned: len(h.pins)}
	for r, o := range h.objects {
		if o.marked {
			o.marked = false
			stats.Live++
			continue
		}
		delete(h.objects, r)
		stats.Swept++
	}
	stats.Duration = time.Since(start)
	return stats
}

// Collect runs a stop-the-world collection. It waits for any in-flight
// guest call to finish.
func (v *VM) Collect() CollectStats {
	detach := v.Attach()
	defer detach()

	classes := v.loadedClasses()
	stats := v.heap.collect(classes)
	v.collections.Add(1)
	Logger().Debug("guest heap collected",
		zap.Int("live", stats.Live),
		zap.Int("swept", stats.Swept),
		zap.Int("pinned", stats.Pinned),
		zap.Duration("duration", stats.Duration))
	return stats
}

// Collections returns how many collections have run.
func (v *VM) Collections() uint64 {
	return v.collections.Load()
}

// Collector runs Collect periodically until stopped.
type Collector struct {
	vm       *VM
	interval time.Duration
	mu       sync.Mutex
	stop     chan struct{}
	stopped  chan struct{}
	running  atomic.Bool
}

// DefaultCollectInterval is used when a non-positive interval is given.
const DefaultCollectInterval = 30 * time.Second

// NewCollector returns a stopped collector for v.
func NewCollector(v *VM, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = DefaultCollectInterval
	}
	return &Collector{vm: v, interval: interval}
}

// Start begins the collection loop. Calling Start on a running collector
// does nothing.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		return
	}
	c.stop = make(chan struct{})
	c.stopped = make(chan struct{})
	c.running.Store(true)
	go c.loop(c.stop, c.stopped)
}

// Stop halts the loop and waits for it to exit.
func (c *Collector) Stop() {
	c.mu.Lock()
	stopCh, stoppedCh := c.stop, c.stopped
	c.stop, c.stopped = nil, nil
	c.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-stoppedCh
		c.running.Store(false)
	}
}

// Running reports whether the loop is active.
func (c *Collector) Running() bool {
	return c.running.Load()
}

func (c *Collector) loop(stopCh <-chan struct{}, stoppedCh chan struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			c.vm.Collect()
		}
	}
}
