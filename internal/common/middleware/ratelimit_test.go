package middleware

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucketExhaustion(t *testing.T) {
	tb := NewTokenBucket(2, 1)
	ctx := context.Background()

	if !tb.Allow(ctx) || !tb.Allow(ctx) {
		t.Fatalf("expected first two requests to pass")
	}
	if tb.Allow(ctx) {
		t.Fatalf("expected third request to be rejected")
	}
}

func TestSlidingWindowLimit(t *testing.T) {
	sw := NewSlidingWindow(time.Minute, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !sw.Allow(ctx) {
			t.Fatalf("request %d unexpectedly rejected", i)
		}
	}
	if sw.Allow(ctx) {
		t.Fatalf("expected request over the limit to be rejected")
	}
}
