// Package game queries Assetto Corsa dedicated servers over their HTTP API.
//
// Every call is a single, bounded attempt: there are no retries, and failures are
// reported as "offline" or "no details" instead of errors.
package game

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/acrc-community/acrc/internal/config"
	"github.com/acrc-community/acrc/internal/metrics"
	"github.com/acrc-community/acrc/internal/models"
	"github.com/rs/zerolog/log"
)

// Server API paths.
const (
	PingPath    = "/api/ping"
	DetailsPath = "/api/details"
)

// maxDetailsSize caps the details document; entry lists of big servers stay well below it.
const maxDetailsSize = 1 << 20

// Client probes game servers.
type Client struct {
	http           *http.Client
	pingTimeout    time.Duration
	detailsTimeout time.Duration
}

// New creates a Client with the timeouts from options.
func New(options config.Probe) *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: options.PingTimeout}).DialContext,
				ResponseHeaderTimeout: options.DetailsTimeout,
				MaxIdleConnsPerHost:   2,
				IdleConnTimeout:       30 * time.Second,
			},
			// Server API never redirects; a redirect means something else answered.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		pingTimeout:    options.PingTimeout,
		detailsTimeout: options.DetailsTimeout,
	}
}

// Ping reports whether GET /api/ping answers 200 within the ping timeout.
func (c *Client) Ping(ctx context.Context, ip, httpPort string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	resp, err := c.get(ctx, ip, httpPort, PingPath)
	if err != nil {
		metrics.ProbeCount.WithLabelValues("ping", "error").Inc()
		log.Debug().Err(err).Str("ip", ip).Str("port", httpPort).Msg("Ping failed")
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	online := resp.StatusCode == http.StatusOK
	if online {
		metrics.ProbeCount.WithLabelValues("ping", "online").Inc()
	} else {
		metrics.ProbeCount.WithLabelValues("ping", "offline").Inc()
		log.Debug().Int("status", resp.StatusCode).Str("ip", ip).Str("port", httpPort).Msg("Ping rejected")
	}

	return online
}

// Details fetches GET /api/details within the details timeout and normalizes it.
// It returns nil when the server cannot be reached or answers with anything but a JSON object.
func (c *Client) Details(ctx context.Context, ip, httpPort string) *models.ServerLiveInfo {
	ctx, cancel := context.WithTimeout(ctx, c.detailsTimeout)
	defer cancel()

	logCtx := log.With().Str("ip", ip).Str("port", httpPort).Logger()

	resp, err := c.get(ctx, ip, httpPort, DetailsPath)
	if err != nil {
		metrics.ProbeCount.WithLabelValues("details", "error").Inc()
		logCtx.Debug().Err(err).Msg("Details request failed")
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.ProbeCount.WithLabelValues("details", "offline").Inc()
		logCtx.Debug().Int("status", resp.StatusCode).Msg("Details rejected")
		return nil
	}

	var raw map[string]any
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxDetailsSize))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil || raw == nil {
		metrics.ProbeCount.WithLabelValues("details", "invalid").Inc()
		logCtx.Debug().Err(err).Msg("Details response is not a JSON object")
		return nil
	}

	metrics.ProbeCount.WithLabelValues("details", "online").Inc()
	return Normalize(raw)
}

func (c *Client) get(ctx context.Context, ip, httpPort, path string) (*http.Response, error) {
	u := "http://" + net.JoinHostPort(ip, httpPort) + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	return c.http.Do(req)
}
