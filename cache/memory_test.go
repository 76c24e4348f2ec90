package cache

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/custos"
	"github.com/xraph/custos/scope"
)

func allow() custos.Decision { return custos.Decision{Allowed: true} }
func deny() custos.Decision  { return custos.Decision{Allowed: false} }

func TestMemoryCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))
	cs := scope.New(scope.KindDepartment, "cs")

	// Miss
	_, ok := c.Get(ctx, "u1", "grades.manage", cs)
	if ok {
		t.Fatal("expected cache miss")
	}

	// Set + Hit
	c.Set(ctx, "u1", "grades.manage", cs, allow())
	d, ok := c.Get(ctx, "u1", "grades.manage", cs)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !d.Allowed {
		t.Fatal("expected allowed")
	}

	// Denials are cached too.
	c.Set(ctx, "u2", "grades.manage", cs, deny())
	d, ok = c.Get(ctx, "u2", "grades.manage", cs)
	if !ok || d.Allowed {
		t.Fatal("expected cached denial")
	}
}

func TestMemoryCacheCarriesWinner(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	want := custos.Decision{Allowed: true}
	c.Set(ctx, "u1", "grades.manage", scope.Unscoped, want)

	d, ok := c.Get(ctx, "u1", "grades.manage", scope.Unscoped)
	if !ok || d != want {
		t.Fatalf("expected the full decision back, got %+v", d)
	}
}

func TestMemoryCacheScopeIsolation(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	c.Set(ctx, "u1", "course.edit", scope.New(scope.KindDepartment, "cs"), allow())

	// A decision for one scope never answers for another.
	if _, ok := c.Get(ctx, "u1", "course.edit", scope.New(scope.KindDepartment, "math")); ok {
		t.Fatal("expected miss for different scope")
	}
	if _, ok := c.Get(ctx, "u1", "course.edit", scope.Unscoped); ok {
		t.Fatal("expected miss for unscoped")
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(1 * time.Millisecond))

	c.Set(ctx, "u1", "grades.manage", scope.Unscoped, allow())
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(ctx, "u1", "grades.manage", scope.Unscoped)
	if ok {
		t.Fatal("expected cache miss after TTL expiry")
	}
}

func TestMemoryCacheInvalidatePrincipal(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	c.Set(ctx, "u1", "grades.manage", scope.Unscoped, allow())
	c.Set(ctx, "u1", "course.edit", scope.New(scope.KindCourse, "cs101"), allow())
	c.Set(ctx, "u2", "grades.manage", scope.Unscoped, allow())

	c.InvalidatePrincipal(ctx, "u1")

	if _, ok := c.Get(ctx, "u1", "grades.manage", scope.Unscoped); ok {
		t.Fatal("u1 decision should be invalidated")
	}
	if _, ok := c.Get(ctx, "u1", "course.edit", scope.New(scope.KindCourse, "cs101")); ok {
		t.Fatal("u1 scoped decision should be invalidated")
	}
	if _, ok := c.Get(ctx, "u2", "grades.manage", scope.Unscoped); !ok {
		t.Fatal("u2 decision should still be cached")
	}
}

func TestMemoryCacheInvalidateAll(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	c.Set(ctx, "u1", "grades.manage", scope.Unscoped, allow())
	c.Set(ctx, "u2", "course.edit", scope.Unscoped, deny())

	c.InvalidateAll(ctx)

	if _, ok := c.Get(ctx, "u1", "grades.manage", scope.Unscoped); ok {
		t.Fatal("expected empty cache after InvalidateAll")
	}
	if _, ok := c.Get(ctx, "u2", "course.edit", scope.Unscoped); ok {
		t.Fatal("expected empty cache after InvalidateAll")
	}
}

func TestMemoryCacheMaxSize(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithMaxSize(2))

	for i := 0; i < 5; i++ {
		c.Set(ctx, "u1", "perm."+string(rune('a'+i)), scope.Unscoped, allow())
	}

	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()
	if size > 2 {
		t.Fatalf("expected max 2 entries, got %d", size)
	}
}
