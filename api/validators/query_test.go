package validators

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest("GET", "/?page=3&bad=abc&big=9999", nil)

	if got, err := ParseQueryInt(r, "page", 1, 1, 100); err != nil || got != 3 {
		t.Fatalf("ParseQueryInt(page) = %d, %v", got, err)
	}
	if got, err := ParseQueryInt(r, "missing", 25, 1, 100); err != nil || got != 25 {
		t.Fatalf("ParseQueryInt default = %d, %v", got, err)
	}
	if _, err := ParseQueryInt(r, "bad", 1, 1, 100); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
	if _, err := ParseQueryInt(r, "big", 1, 1, 100); err == nil {
		t.Fatal("expected error for out-of-range value")
	}
}

func TestParseQueryUUID(t *testing.T) {
	r := httptest.NewRequest("GET", "/?user_id=11111111-1111-4111-8111-111111111111&bad=nope", nil)

	got, err := ParseQueryUUID(r, "user_id")
	if err != nil || got == nil || got.String() != "11111111-1111-4111-8111-111111111111" {
		t.Fatalf("ParseQueryUUID(user_id) = %v, %v", got, err)
	}
	if got, err := ParseQueryUUID(r, "missing"); err != nil || got != nil {
		t.Fatalf("absent parameter should be nil, got %v, %v", got, err)
	}
	if _, err := ParseQueryUUID(r, "bad"); err == nil {
		t.Fatal("expected error for malformed UUID")
	}
}

func TestParseQueryDate(t *testing.T) {
	r := httptest.NewRequest("GET", "/?start_date=2026-01-15&bad=15/01/2026", nil)

	got, err := ParseQueryDate(r, "start_date")
	if err != nil || got == nil {
		t.Fatalf("ParseQueryDate(start_date) = %v, %v", got, err)
	}
	want := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("parsed date = %v, want %v", got, want)
	}
	if got, err := ParseQueryDate(r, "missing"); err != nil || got != nil {
		t.Fatalf("absent parameter should be nil, got %v, %v", got, err)
	}
	if _, err := ParseQueryDate(r, "bad"); err == nil {
		t.Fatal("expected error for malformed date")
	}
}
