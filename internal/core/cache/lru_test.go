package cache

import "testing"

func TestLRU_EvictsLeastRecent(t *testing.T) {
	c := NewLRU[uint64, [2]int](2)
	c.Put(1, [2]int{640, 480})
	c.Put(2, [2]int{800, 600})
	_, _ = c.Get(1) // 1 becomes most-recent
	if n := c.Put(3, [2]int{1, 1}); n != 1 {
		t.Fatalf("evicted=%d want 1", n)
	}

	if _, ok := c.Get(2); ok {
		t.Fatal("expected 2 evicted")
	}
	if v, ok := c.Get(1); !ok || v[0] != 640 {
		t.Fatalf("expected 1 present, got %v ok=%v", v, ok)
	}
}

func TestLRU_RemoveAndPurge(t *testing.T) {
	c := NewLRU[string, int](4)
	c.Put("a", 1)
	c.Put("b", 2)
	if !c.Remove("a") || c.Remove("a") {
		t.Fatal("remove should succeed exactly once")
	}
	if c.Len() != 1 {
		t.Fatalf("len=%d", c.Len())
	}
	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("len after purge=%d", c.Len())
	}
	c.Put("c", 3)
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatalf("get after purge: %v %v", v, ok)
	}
}

func TestLRU_NilSafe(t *testing.T) {
	var c *LRU[string, int]
	if _, ok := c.Get("x"); ok {
		t.Fatal("nil get")
	}
	c.Put("x", 1)
	c.Purge()
	if c.Len() != 0 {
		t.Fatal("nil len")
	}
}
