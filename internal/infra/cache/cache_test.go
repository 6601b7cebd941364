package cache_test

import (
	"testing"
	"time"

	"github.com/shalconnects/balanze-ledger-go/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_DeletePrefix(t *testing.T) {
	c := cache.New[int](5 * time.Minute)

	c.Set("transactions:user-a", 1)
	c.Set("transactions:user-b", 2)
	c.Set("accounts:user-a", 3)

	c.DeletePrefix("transactions:")

	if _, ok := c.Get("transactions:user-a"); ok {
		t.Error("expected transactions:user-a to be invalidated")
	}
	if _, ok := c.Get("transactions:user-b"); ok {
		t.Error("expected transactions:user-b to be invalidated")
	}
	if _, ok := c.Get("accounts:user-a"); !ok {
		t.Error("expected accounts:user-a to survive")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}
