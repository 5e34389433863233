package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisad "food_discovery/internal/adapters/redis"
	"food_discovery/internal/domain"
)

func TestCache_RoundTripAndDel(t *testing.T) {
	srv := miniredis.RunT(t)
	c := redisad.New(srv.Addr(), "", 0)
	ctx := context.Background()

	in := domain.Place{ID: 7, Name: "Shito Corner", City: "Accra", Type: domain.PlaceRestaurant}
	if err := c.Set(ctx, "place:7", in, 60); err != nil {
		t.Fatalf("set: %v", err)
	}

	var out domain.Place
	ok, err := c.Get(ctx, "place:7", &out)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if out.Name != in.Name || out.Type != in.Type {
		t.Fatalf("round trip lost fields: %+v", out)
	}

	if err := c.Del(ctx, "place:7"); err != nil {
		t.Fatalf("del: %v", err)
	}
	ok, err = c.Get(ctx, "place:7", &out)
	if err != nil {
		t.Fatalf("get after del: %v", err)
	}
	if ok {
		t.Fatal("expected miss after del")
	}
}

func TestCache_TTLExpires(t *testing.T) {
	srv := miniredis.RunT(t)
	c := redisad.New(srv.Addr(), "", 0)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 1); err != nil {
		t.Fatalf("set: %v", err)
	}
	srv.FastForward(2 * time.Second)

	var out string
	ok, err := c.Get(ctx, "k", &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected expired key")
	}
}
