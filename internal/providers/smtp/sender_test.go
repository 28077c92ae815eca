package smtp

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
)

func TestSendBuildsHTMLMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string
	s := &Sender{
		Host: "mail.local", Port: "2525", From: "stay@example.com", FromName: "Lakeview",
		Dial: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
			return nil
		},
	}
	err := s.Send(context.Background(), Message{To: "a@b.com", Subject: "Done", HTMLBody: "<p>hi</p>"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "mail.local:2525" || gotFrom != "stay@example.com" || len(gotTo) != 1 || gotTo[0] != "a@b.com" {
		t.Fatalf("unexpected envelope %s %s %v", gotAddr, gotFrom, gotTo)
	}
	if !strings.Contains(gotMsg, "From: Lakeview <stay@example.com>\r\n") || !strings.HasSuffix(gotMsg, "\r\n\r\n<p>hi</p>") {
		t.Fatalf("unexpected message %q", gotMsg)
	}
}

func TestSendRejectsUnconfiguredAndInjection(t *testing.T) {
	if err := (&Sender{}).Send(context.Background(), Message{To: "a@b.com"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
	s := &Sender{Host: "h", Port: "25", From: "f@x", Dial: func(string, smtp.Auth, string, []string, []byte) error { return nil }}
	if err := s.Send(context.Background(), Message{To: "a@b.com\r\nBcc: x@y", Subject: "s"}); err == nil {
		t.Fatalf("expected header injection rejection")
	}
}
