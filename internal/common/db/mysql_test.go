package db

import (
	"strings"
	"testing"
)

func TestDSN(t *testing.T) {
	got := DSN("127.0.0.1", 3306, "root", "root", "fleetdvcr")
	want := "root:root@tcp(127.0.0.1:3306)/fleetdvcr?charset=utf8mb4&parseTime=true&loc=Local"
	if got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}
}

func TestDSNParseTimeFlag(t *testing.T) {
	if !strings.Contains(DSN("h", 1, "u", "p", "d"), "parseTime=true") {
		t.Fatalf("DSN missing parseTime=true")
	}
}
