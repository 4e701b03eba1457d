package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisad "kaki_store/internal/adapters/redis"
	"kaki_store/internal/domain"
)

func TestCache_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	defer c.Close()
	ctx := context.Background()

	loc := domain.Location{
		ID:   "kaki-central",
		Name: "Kaki Central",
		BaseHours: domain.WeekSchedule{
			time.Monday: {Open: "09:00", Close: "18:00"},
		},
	}

	var out domain.Location
	if ok, err := c.Get(ctx, "store:kaki-central", &out); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	if err := c.Set(ctx, "store:kaki-central", loc, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	ok, err := c.Get(ctx, "store:kaki-central", &out)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if out.Name != "Kaki Central" || out.BaseHours[time.Monday].Open != "09:00" {
		t.Fatalf("unexpected value: %+v", out)
	}

	if err := c.Del(ctx, "store:kaki-central"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if ok, _ := c.Get(ctx, "store:kaki-central", &out); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "stores::false:0", []domain.Location{{ID: "a"}}, 30); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(31 * time.Second)

	var out []domain.Location
	if ok, _ := c.Get(ctx, "stores::false:0", &out); ok {
		t.Fatal("expected miss after TTL expiry")
	}
}
