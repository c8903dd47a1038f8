package models

import (
	"strings"
	"testing"
)

func TestTruncateTitle(t *testing.T) {
	long := "Hello there, what solar kit fits me?"
	got := TruncateTitle(long)
	if got != "Hello there, what solar kit fi..." {
		t.Fatalf("unexpected truncation: %q", got)
	}

	short := "Hi advisor"
	if TruncateTitle(short) != short {
		t.Fatalf("short title must pass through unchanged")
	}

	if TruncateTitle("   ") != DefaultSessionTitle {
		t.Fatalf("blank input should fall back to the default title")
	}

	multibyte := strings.Repeat("é", 40)
	got = TruncateTitle(multibyte)
	if got != strings.Repeat("é", 30)+"..." {
		t.Fatalf("multibyte truncation split a rune: %q", got)
	}
}

func TestDeriveTitle(t *testing.T) {
	s := ChatSession{Messages: []Message{
		{SenderID: "assistant", Type: TypeText, Content: "Welcome!"},
		{SenderID: "u1", Type: TypePhoto, PhotoURL: "http://x/p.jpg"},
		{SenderID: "u1", Type: TypeText, Content: "How big a battery do I need?"},
	}}
	if got := s.DeriveTitle("u1"); got != "How big a battery do I need?" {
		t.Fatalf("expected first user text message as title, got %q", got)
	}

	empty := ChatSession{}
	if empty.DeriveTitle("u1") != DefaultSessionTitle {
		t.Fatalf("empty session should use the default title")
	}
}
