package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestNewRedisCacheInvalidURL(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), "not-a-url"); err == nil {
		t.Error("expected error for invalid url")
	}
}

// TestRedisCache runs against a live server when PMUX_TEST_REDIS_URL is set.
func TestRedisCache(t *testing.T) {
	url := os.Getenv("PMUX_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PMUX_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, url)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer c.Close()

	key := "pmux-test:" + time.Now().Format(time.RFC3339Nano)
	if _, hit, err := c.Get(ctx, key); err != nil || hit {
		t.Fatalf("Get missing = hit %v, err %v", hit, err)
	}
	if err := c.Set(ctx, key, []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, key)
	if err != nil || !hit || string(data) != "v" {
		t.Fatalf("Get = %q, %v, %v", data, hit, err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
