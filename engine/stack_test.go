package engine

import (
	"strings"
	"testing"
)

// countingCollector records collection requests without reclaiming space.
type countingCollector struct {
	calls map[StackID]int
}

func (c *countingCollector) CollectGarbage(_ *Engine, id StackID) { c.calls[id]++ }

func TestGlobalGrowthKeepsHandles(t *testing.T) {
	_, e := newTestEngine(t, func(o *Options) { o.GlobalSize = 64 })

	first := build(t, e, TFunctor("anchor", TString("kept across growth")))
	before := e.Stats(GlobalStack)

	long := e.NewTermRef()
	if !e.PutListCodes(long, strings.Repeat("g", 500)) {
		t.Fatalf("PutListCodes failed: %q", exceptionString(e))
	}
	after := e.Stats(GlobalStack)
	if after.Shifts <= before.Shifts || after.Capacity <= before.Capacity {
		t.Errorf("global stack should have grown: before %+v after %+v", before, after)
	}
	if got := e.TermString(first); got != `anchor("kept across growth")` {
		t.Errorf("handle after growth = %s", got)
	}
	if e.ListLength(long) != 500 {
		t.Errorf("list length = %d", e.ListLength(long))
	}
	if after.Peak < after.Used {
		t.Errorf("peak %d below usage %d", after.Peak, after.Used)
	}
}

func TestLocalGrowthKeepsHandles(t *testing.T) {
	_, e := newTestEngine(t, func(o *Options) { o.LocalSize = 16 })

	h := build(t, e, TInt(99))
	for i := 0; i < 200; i++ {
		if e.NewTermRef() == 0 {
			t.Fatalf("NewTermRef %d failed: %q", i, exceptionString(e))
		}
	}
	if n, _ := e.GetInt64(h); n != 99 {
		t.Errorf("handle after local growth = %d", n)
	}
	if e.Stats(LocalStack).Shifts == 0 {
		t.Error("local stack should have grown")
	}
}

func TestCollectorRunsBeforeGrowth(t *testing.T) {
	c := &countingCollector{calls: make(map[StackID]int)}
	_, e := newTestEngine(t, func(o *Options) {
		o.GlobalSize = 32
		o.Collector = c
	})

	h := e.NewTermRef()
	e.PutListCodes(h, strings.Repeat("c", 100))
	if c.calls[GlobalStack] == 0 {
		t.Error("the collector should be asked before the global stack grows")
	}
	if got := e.Stats(GlobalStack).Collections; got != c.calls[GlobalStack] {
		t.Errorf("Collections = %d, collector saw %d", got, c.calls[GlobalStack])
	}
}

func TestLocalOverflow(t *testing.T) {
	_, e := newTestEngine(t, func(o *Options) {
		o.LocalSize = 64
		o.LocalLimit = 128
		o.Spare = 16
	})

	var last Term
	for i := 0; i < 1000; i++ {
		if last = e.NewTermRef(); last == 0 {
			break
		}
	}
	if last != 0 {
		t.Fatal("NewTermRef should fail once the local limit is reached")
	}
	if got := exceptionString(e); !strings.HasPrefix(got, "error(resource_error(local_stack),") {
		t.Errorf("unexpected exception %q", got)
	}
}

func TestStackIDString(t *testing.T) {
	for id, want := range map[StackID]string{GlobalStack: "global", LocalStack: "local", TrailStack: "trail"} {
		if got := id.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", id, got, want)
		}
	}
}
