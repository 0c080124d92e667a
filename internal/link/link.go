// Package link extracts game server connection parameters from Assetto Corsa join links.
//
// Links arrive through several third party redirect and shortening services with
// inconsistent formatting, so strategies are tried in a fixed order:
// known link shapes, then a standard URL query parse, then a raw token scan.
package link

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/acrc-community/acrc/internal/metrics"
)

// Matched format names.
const (
	FormatAcstuff   = "acstuff"
	FormatAcManager = "acmanager"
	FormatDirect    = "direct"
	FormatQuery     = "query"
	FormatFallback  = "fallback"
)

// ErrUnparseable is returned when no strategy yields both a host and an HTTP port.
var ErrUnparseable = errors.New("invalid server link format: missing IP or HTTP port")

// Parsed holds the connection parameters of a link.
type Parsed struct {
	IP       string `json:"ip"`
	HTTPPort string `json:"httpPort"`
	Format   string `json:"matchedFormat"`
}

// Shape is a known link layout.
// With Query set, Pattern only recognizes the link and host and port are read from its query string,
// otherwise Pattern must capture the host in group 1 and the HTTP port in group 2.
type Shape struct {
	Pattern *regexp.Regexp
	Format  string
	Query   bool
}

// Shapes are tried top to bottom; the first match wins.
var Shapes = []Shape{
	{
		Format:  FormatAcstuff,
		Pattern: regexp.MustCompile(`(?i)^https?://(?:www\.)?acstuff\.(?:ru|club)/s/[^?#\s]+/online/join\?`),
		Query:   true,
	},
	{
		Format:  FormatAcManager,
		Pattern: regexp.MustCompile(`(?i)^acmanager://race/online/join\?`),
		Query:   true,
	},
	{
		Format:  FormatDirect,
		Pattern: regexp.MustCompile(`^(?:https?://)?(\d{1,3}(?:\.\d{1,3}){3}):(\d{1,5})/?$`),
	},
}

var (
	ipToken   = regexp.MustCompile(`(?i)\bip=([^&#\s"'<>]+)`)
	portToken = regexp.MustCompile(`(?i)\bhttpPort=(\d{1,5})\b`)
	portValue = regexp.MustCompile(`^\d{1,5}$`)
)

// Parse extracts the server host and HTTP port from text.
func Parse(text string) (*Parsed, error) {
	text = strings.TrimSpace(text)

	p := parse(text)
	if p == nil {
		metrics.LinkParseCount.WithLabelValues("none").Inc()
		return nil, ErrUnparseable
	}

	metrics.LinkParseCount.WithLabelValues(p.Format).Inc()
	return p, nil
}

func parse(text string) *Parsed {
	if text == "" {
		return nil
	}

	u, urlErr := url.Parse(text)

	for _, shape := range Shapes {
		m := shape.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if !shape.Query {
			if p := build(m[1], m[2], shape.Format); p != nil {
				return p
			}
			continue
		}
		if urlErr == nil {
			q := u.Query()
			if p := build(q.Get("ip"), q.Get("httpPort"), shape.Format); p != nil {
				return p
			}
		}
	}

	if urlErr == nil {
		q := u.Query()
		if p := build(q.Get("ip"), q.Get("httpPort"), FormatQuery); p != nil {
			return p
		}
	}

	var ip, port string
	if m := ipToken.FindStringSubmatch(text); m != nil {
		ip = m[1]
	}
	if m := portToken.FindStringSubmatch(text); m != nil {
		port = m[1]
	}

	return build(ip, port, FormatFallback)
}

// build returns nil unless the host is non-empty after unescaping and the port is a number in 1..65535.
func build(ip, port, format string) *Parsed {
	if unescaped, err := url.QueryUnescape(ip); err == nil {
		ip = unescaped
	}
	ip = strings.TrimSpace(ip)
	port = strings.TrimSpace(port)

	if ip == "" || !validPort(port) {
		return nil
	}

	return &Parsed{IP: ip, HTTPPort: port, Format: format}
}

func validPort(port string) bool {
	if !portValue.MatchString(port) {
		return false
	}
	n, err := strconv.Atoi(port)

	return err == nil && n > 0 && n <= 65535
}
