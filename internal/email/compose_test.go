package email

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestRender_PlainText(t *testing.T) {
	tests := []struct {
		name string
		md   string
		want string
	}{
		{"plain", "Just some regular text.", "Just some regular text."},
		{"emphasis", "This is **bold** and *italic*", "This is bold and italic"},
		{"link", "Visit [Example](https://example.com) now", "Visit Example (https://example.com) now"},
		{"heading", "## Section Title\n\nSome text", "Section Title\n\nSome text"},
		{"inline code", "Use the `fmt.Println` function", "Use the fmt.Println function"},
		{"list", "- item one\n- item two", "- item one\n- item two"},
		{"soft break", "line one\nline two", "line one\nline two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plain, _, err := render(tt.md)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if plain != tt.want {
				t.Errorf("plain(%q) = %q, want %q", tt.md, plain, tt.want)
			}
		})
	}
}

func TestRender_CodeBlockKeepsContent(t *testing.T) {
	plain, _, err := render("Before\n\n```go\nfmt.Println(\"hello\")\n```\n\nAfter")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(plain, "```") {
		t.Errorf("fence markers kept: %q", plain)
	}
	for _, part := range []string{"Before", `fmt.Println("hello")`, "After"} {
		if !strings.Contains(plain, part) {
			t.Errorf("plain %q missing %q", plain, part)
		}
	}
}

func TestRender_HTML(t *testing.T) {
	_, html, err := render("Hello **world**")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"<strong>world</strong>", "<!DOCTYPE html>", `charset="utf-8"`} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q:\n%s", want, html)
		}
	}
}

func TestDraftBytes(t *testing.T) {
	msg, err := Draft{
		From:    "Test User <test@example.com>",
		To:      []string{"recipient@example.com"},
		Subject: "Test Subject",
		Body:    "Hello **world**",
	}.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	s := string(msg)
	for _, want := range []string{
		"test@example.com",
		"recipient@example.com",
		"Subject: Test Subject",
		"Message-Id:",
		"Date:",
		"multipart/alternative",
		"text/plain",
		"text/html",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("message missing %q:\n%s", want, s[:min(len(s), 600)])
		}
	}
}

func TestDraftBytes_Invalid(t *testing.T) {
	if _, err := (Draft{From: "not-an-email", To: []string{"to@example.com"}}).Bytes(); err == nil {
		t.Error("invalid From accepted")
	}
	if _, err := (Draft{From: "a@example.com", To: []string{"nope"}}).Bytes(); err == nil {
		t.Error("invalid To accepted")
	}
	if _, err := (Draft{From: "a@example.com", Subject: "x"}).Bytes(); !errors.Is(err, ErrNoRecipients) {
		t.Errorf("no recipients error = %v, want ErrNoRecipients", err)
	}
}

func TestDraftBytes_SnippetRoundTrip(t *testing.T) {
	raw, err := Draft{
		From:    "Ecco6 <ecco6@example.com>",
		To:      []string{"alice@example.com"},
		Subject: "Dinner",
		Body:    "See you at **seven**.\n\nBring   the wine.",
	}.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	got := snippet(bytes.NewReader(raw), 160)
	if got != "See you at seven. Bring the wine." {
		t.Errorf("snippet = %q", got)
	}
	if got := snippet(bytes.NewReader(raw), 8); got != "See you..." {
		t.Errorf("short snippet = %q", got)
	}
}

func TestFormatUnread(t *testing.T) {
	if got := FormatUnread(nil); got != "You have no unread messages in your primary inbox." {
		t.Errorf("FormatUnread(nil) = %q", got)
	}
	got := FormatUnread([]Envelope{{From: "Bob <bob@example.com>", Snippet: "hi"}})
	want := "From: Bob <bob@example.com>\nSubject: No Subject\nSnippet: hi"
	if got != want {
		t.Errorf("FormatUnread = %q, want %q", got, want)
	}
}
