package inspection

import (
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	if s, ok := ParseStatus(" open "); !ok || s != StatusOpen {
		t.Fatalf("expected open to parse, got %q ok=%v", s, ok)
	}
	if s, ok := ParseStatus("closed"); !ok || s != StatusClosed {
		t.Fatalf("expected closed to parse, got %q ok=%v", s, ok)
	}
	if _, ok := ParseStatus("archived"); ok {
		t.Fatalf("expected archived to be rejected")
	}
}

func TestCanTransitionAndApply(t *testing.T) {
	if !CanTransition(StatusOpen, StatusClosed) {
		t.Fatalf("expected open -> closed allowed")
	}
	if !CanTransition(StatusClosed, StatusOpen) {
		t.Fatalf("expected closed -> open allowed")
	}

	r := &Report{Status: StatusOpen}
	now := time.Now()
	if err := ApplyTransition(r, StatusClosed, now); err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if r.Status != StatusClosed || r.ClosedAt == nil {
		t.Fatalf("expected closed with timestamp, got %s closedAt=%v", r.Status, r.ClosedAt)
	}

	// 重开清掉关闭时间。
	if err := ApplyTransition(r, StatusOpen, now); err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if r.Status != StatusOpen || r.ClosedAt != nil {
		t.Fatalf("expected reopened without timestamp, got %s closedAt=%v", r.Status, r.ClosedAt)
	}
}
