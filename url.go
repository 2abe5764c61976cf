// RTMP URL parsing
//
// Parses rtmp(s)://host[:port]/app/stream_key URLs for the outbound publish
// client. Grounded on alxayo-rtmp-go's client.New, which splits the URL path
// into app + stream the same way; reworked here with net/url directly rather
// than strings.Split on the raw string.

package main

import (
	"fmt"
	"net/url"
	"strings"
)

// ParsedRTMPURL holds the pieces of an rtmp(s):// URL needed to dial out.
type ParsedRTMPURL struct {
	Secure bool   // true for rtmps://
	Host   string // host:port, port defaulted if absent
	App    string // first path segment
	Key    string // remaining path, joined back with "/"
}

// ParseRTMPURL parses an rtmp(s)://host[:port]/app/stream_key URL.
func ParseRTMPURL(raw string) (*ParsedRTMPURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}

	var secure bool
	switch u.Scheme {
	case "rtmp":
		secure = false
	case "rtmps":
		secure = true
	default:
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	host := u.Host
	if !strings.Contains(host, ":") {
		if secure {
			host = host + ":443"
		} else {
			host = host + ":1935"
		}
	}

	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("rtmp url must be rtmp(s)://host/app/stream_key")
	}

	return &ParsedRTMPURL{
		Secure: secure,
		Host:   host,
		App:    parts[0],
		Key:    parts[1],
	}, nil
}
