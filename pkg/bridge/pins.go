package bridge

import (
	"runtime"
	"sync"
	"weak"

	"go.uber.org/zap"

	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/vm"
)

type pinEntry struct {
	count int
	// last is the most recently registered proxy for the ref.
	last weak.Pointer[proxy]
}

// pinTable counts the host proxies alive for each guest reference. An
// entry owns exactly one guest-side pin, taken when the first proxy is
// registered and dropped when the count returns to zero.
type pinTable struct {
	vm *vm.VM

	mu      sync.Mutex
	entries map[vm.Ref]*pinEntry
	pins    int
}

func newPinTable(v *vm.VM) *pinTable {
	return &pinTable{vm: v, entries: make(map[vm.Ref]*pinEntry)}
}

// acquire registers p. The guest returned p.ref pinned once on the host's
// behalf; the first proxy adopts that pin and later ones give theirs back.
func (t *pinTable) acquire(p *proxy) {
	t.mu.Lock()
	e, existed := t.entries[p.ref]
	if !existed {
		e = &pinEntry{}
		t.entries[p.ref] = e
	}
	e.count++
	e.last = weak.Make(p)
	t.pins++
	count := e.count
	t.mu.Unlock()

	p.cleanup = runtime.AddCleanup(p, t.release, p.ref)
	if existed {
		if err := t.vm.Unpin(p.ref); err != nil {
			Logger().Warn("dropping redundant guest pin", zap.Uint64("ref", uint64(p.ref)), zap.Error(err))
		}
	}
	Logger().Debug("pin acquired", zap.Uint64("ref", uint64(p.ref)), zap.Int("count", count))
}

// release drops one count for r. Releasing a ref with no entry is a
// lifetime bug and panics.
func (t *pinTable) release(r vm.Ref) {
	t.mu.Lock()
	e, ok := t.entries[r]
	if !ok {
		t.mu.Unlock()
		panic(errors.DanglingReference("release", r))
	}
	e.count--
	t.pins--
	count := e.count
	if count == 0 {
		delete(t.entries, r)
	}
	t.mu.Unlock()

	Logger().Debug("pin released", zap.Uint64("ref", uint64(r)), zap.Int("count", count))
	if count == 0 {
		if err := t.vm.Unpin(r); err != nil {
			Logger().Error("releasing guest pin", zap.Uint64("ref", uint64(r)), zap.Error(err))
		}
	}
}

// live returns the newest proxy still reachable for r, if any.
func (t *pinTable) live(r vm.Ref) *proxy {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[r]; ok {
		return e.last.Value()
	}
	return nil
}

func (t *pinTable) count(r vm.Ref) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[r]; ok {
		return e.count
	}
	return 0
}

// Stats describes the pin table.
type Stats struct {
	// Refs is the number of guest references with live proxies.
	Refs int
	// Pins is the number of proxies holding them.
	Pins int
}

func (t *pinTable) stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{Refs: len(t.entries), Pins: t.pins}
}
