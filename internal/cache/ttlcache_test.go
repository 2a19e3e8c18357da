package cache

import (
	"testing"
	"time"
)

func TestTTLCacheGetSet(t *testing.T) {
	c := NewTTLCache[string, int](10, time.Hour)
	c.Set("a", 1)

	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Fatalf("Get(a) = (%d, %v), want (1, true)", v, ok)
	}
}

func TestTTLCacheExpiresEntries(t *testing.T) {
	c := NewTTLCache[string, int](10, time.Millisecond)
	c.Set("a", 1)
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("expected expired entry to be absent")
	}
}

func TestTTLCacheSetWithTTLOverridesDefault(t *testing.T) {
	c := NewTTLCache[string, int](10, time.Hour)
	c.SetWithTTL("a", 1, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("expected per-entry TTL to override the cache default")
	}
}

func TestTTLCacheMissingKey(t *testing.T) {
	c := NewTTLCache[string, int](10, time.Hour)
	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for key never set")
	}
}
