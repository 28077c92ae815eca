package util

import (
	"strings"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+1 (555) 123-4567": "5551234567",
		"+15551234567":      "5551234567",
		"555.123.4567":      "5551234567",
		"+44 20 7946 0958":  "442079460958",
		"":                  "",
	}
	for in, want := range cases {
		if got := NormalizePhone(in); got != want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderTemplate(t *testing.T) {
	got := RenderTemplate("Hi {guest_name}, see {portal_url}", map[string]string{
		"guest_name": "Ana",
		"portal_url": "https://x/p/abc",
	})
	if got != "Hi Ana, see https://x/p/abc" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestLimitRunes(t *testing.T) {
	if got := LimitRunes("short", 160); got != "short" {
		t.Fatalf("expected untouched, got %q", got)
	}
	long := strings.Repeat("é", 200)
	got := LimitRunes(long, 160)
	if n := len([]rune(got)); n != 160 {
		t.Fatalf("expected 160 runes, got %d", n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis, got %q", got[len(got)-6:])
	}
}

func TestNewIDPrefix(t *testing.T) {
	id := NewID("com_")
	if !strings.HasPrefix(id, "com_") || len(id) != len("com_")+26 {
		t.Fatalf("unexpected id %q", id)
	}
	if id == NewID("com_") {
		t.Fatalf("expected unique ids")
	}
}
