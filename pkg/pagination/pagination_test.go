package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("zero limit should default, got %d", got)
	}
	if got := NormalizeLimit(-5); got != DefaultLimit {
		t.Fatalf("negative limit should default, got %d", got)
	}
	if got := NormalizeLimit(MaxLimit + 50); got != MaxLimit {
		t.Fatalf("oversized limit should cap, got %d", got)
	}
	if got := NormalizeLimit(10); got != 10 {
		t.Fatalf("valid limit should pass through, got %d", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	cursor := Cursor{
		Key: time.Date(2026, 4, 12, 7, 30, 0, 0, time.UTC),
		ID:  uuid.New(),
	}

	parsed, err := ParseCursor(EncodeCursor(cursor))
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if !parsed.Key.Equal(cursor.Key) || parsed.ID != cursor.ID {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
}

func TestParseCursorEmpty(t *testing.T) {
	cursor, err := ParseCursor("  ")
	if err != nil || cursor != nil {
		t.Fatalf("blank cursor should be nil, got %+v err=%v", cursor, err)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	cases := []string{
		"!!not-base64!!",
		"bm90LWEtY3Vyc29y", // "not-a-cursor"
	}
	for _, tc := range cases {
		if _, err := ParseCursor(tc); err == nil {
			t.Fatalf("expected error for %q", tc)
		}
	}
}
