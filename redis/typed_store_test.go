package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/workloadops/component"
)

// newTestClient creates a redis.Client backed by miniredis for testing.
func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)

	client, err := New(Config{Enabled: true, Addr: mini.Addr(), MaxRetries: -1}, nil)
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, mini
}

type testState struct {
	Count int      `json:"count"`
	Tags  []string `json:"tags,omitempty"`
}

func TestTypedStore_SaveAndLoad(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[testState](client, "test")
	ctx := context.Background()

	if err := store.Save(ctx, "k1", &testState{Count: 5, Tags: []string{"a", "b"}}, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load(ctx, "k1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got == nil || got.Count != 5 || len(got.Tags) != 2 {
		t.Fatalf("expected Count=5, Tags=2, got %+v", got)
	}
}

func TestTypedStore_LoadMissing(t *testing.T) {
	client, _ := newTestClient(t)
	got, err := NewTypedStore[testState](client, "test").Load(context.Background(), "nope")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", got, err)
	}
}

func TestTypedStore_Delete(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[testState](client, "test")
	ctx := context.Background()

	_ = store.Save(ctx, "k1", &testState{Count: 1}, 0)
	if err := store.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got, _ := store.Load(ctx, "k1"); got != nil {
		t.Errorf("expected key gone, got %+v", got)
	}
}

func TestTypedStore_TTL(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[testState](client, "test")
	ctx := context.Background()

	_ = store.Save(ctx, "k1", &testState{Count: 1}, 2*time.Second)
	if ttl := mini.TTL("test:k1"); ttl != 2*time.Second {
		t.Errorf("TTL = %s, want 2s", ttl)
	}

	mini.FastForward(3 * time.Second)
	if got, _ := store.Load(ctx, "k1"); got != nil {
		t.Errorf("expected expired key, got %+v", got)
	}
}

func TestTypedStore_KeyPrefix(t *testing.T) {
	client, mini := newTestClient(t)
	ctx := context.Background()

	_ = NewTypedStore[testState](client, "workload:state").Save(ctx, "abc", &testState{}, 0)
	_ = NewTypedStore[testState](client, "").Save(ctx, "raw", &testState{}, 0)

	if !mini.Exists("workload:state:abc") {
		t.Error("expected prefixed key")
	}
	if !mini.Exists("raw") {
		t.Error("expected unprefixed key")
	}
}

func TestTypedStore_CorruptValue(t *testing.T) {
	client, mini := newTestClient(t)
	_ = mini.Set("test:bad", "{not json")

	if _, err := NewTypedStore[testState](client, "test").Load(context.Background(), "bad"); err == nil {
		t.Fatal("expected unmarshal error")
	}
}

func TestClient_Expire(t *testing.T) {
	client, mini := newTestClient(t)
	ctx := context.Background()

	_ = client.Set(ctx, "k", "v", 0)
	if err := client.Expire(ctx, "k", time.Second); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	mini.FastForward(2 * time.Second)
	if _, found, _ := client.Get(ctx, "k"); found {
		t.Error("expected key to expire")
	}
}

func TestClient_SortedSet(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_ = client.ZAdd(ctx, "traces:app", 30, "c")
	_ = client.ZAdd(ctx, "traces:app", 10, "a")
	_ = client.ZAdd(ctx, "traces:app", 20, "b")

	got, err := client.ZRangeByScore(ctx, "traces:app", "-inf", "+inf")
	if err != nil {
		t.Fatalf("ZRangeByScore: %v", err)
	}
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("members = %v, want [a b c]", got)
	}

	got, _ = client.ZRangeByScore(ctx, "traces:app", "15", "25")
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("bounded range = %v", got)
	}
}

func TestClient_ServerDown(t *testing.T) {
	client, mini := newTestClient(t)
	mini.Close()

	if _, _, err := client.Get(context.Background(), "k"); err == nil {
		t.Error("expected error with server down")
	}
	if err := client.Ping(context.Background()); err == nil {
		t.Error("expected ping failure")
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	client, _ := newTestClient(t)
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestNew_Disabled(t *testing.T) {
	if _, err := New(Config{Addr: "localhost:6379"}, nil); err == nil {
		t.Error("expected error for disabled config")
	}
	if _, err := New(Config{Enabled: true}, nil); err == nil {
		t.Error("expected error for missing addr")
	}
}

func TestComponent_Lifecycle(t *testing.T) {
	mini := miniredis.RunT(t)
	c := NewComponent(Config{Enabled: true, Addr: mini.Addr()}, nil)
	ctx := context.Background()

	if h := c.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("health before start = %+v", h)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("health after start = %+v", h)
	}
	mini.Close()
	if h := c.Health(ctx); h.Status != component.StatusDegraded {
		t.Errorf("health with server down = %+v", h)
	}
	if err := c.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
