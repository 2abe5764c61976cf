package main

import "testing"

func TestParseRTMPURL(t *testing.T) {
	u, err := ParseRTMPURL("rtmp://relay.example.com/live/stream-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Secure {
		t.Fatalf("expected rtmp:// to be insecure")
	}
	if u.Host != "relay.example.com:1935" {
		t.Fatalf("expected default port 1935, got %q", u.Host)
	}
	if u.App != "live" || u.Key != "stream-key" {
		t.Fatalf("expected app=live key=stream-key, got app=%q key=%q", u.App, u.Key)
	}
}

func TestParseRTMPURLSecure(t *testing.T) {
	u, err := ParseRTMPURL("rtmps://relay.example.com:9443/app/key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !u.Secure {
		t.Fatalf("expected rtmps:// to be secure")
	}
	if u.Host != "relay.example.com:9443" {
		t.Fatalf("expected explicit port to be kept, got %q", u.Host)
	}
}

func TestParseRTMPURLDefaultSecurePort(t *testing.T) {
	u, err := ParseRTMPURL("rtmps://relay.example.com/app/key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Host != "relay.example.com:443" {
		t.Fatalf("expected default port 443 for rtmps, got %q", u.Host)
	}
}

func TestParseRTMPURLNestedKeyPath(t *testing.T) {
	u, err := ParseRTMPURL("rtmp://relay.example.com/app/nested/key/path")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.App != "app" || u.Key != "nested/key/path" {
		t.Fatalf("expected app=app key=nested/key/path, got app=%q key=%q", u.App, u.Key)
	}
}

func TestParseRTMPURLRejectsUnsupportedScheme(t *testing.T) {
	if _, err := ParseRTMPURL("http://relay.example.com/app/key"); err == nil {
		t.Fatalf("expected an error for an unsupported scheme")
	}
}

func TestParseRTMPURLRejectsMissingKey(t *testing.T) {
	if _, err := ParseRTMPURL("rtmp://relay.example.com/app"); err == nil {
		t.Fatalf("expected an error when no stream key is present")
	}
}
