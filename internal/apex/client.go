package apex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	logx "apexwatch/pkg/logx"
)

const (
	// DefaultBaseURL is the public bridge endpoint of the status API.
	DefaultBaseURL = "https://api.mozambiquehe.re/bridge"

	defaultTimeout = 10 * time.Second

	// maxBodyBytes bounds response reads; status payloads are small.
	maxBodyBytes = 1 << 20
)

// ErrorKind classifies fetch failures. Callers use it to decide whether a
// failure is worth retrying or surfacing to the user.
type ErrorKind string

const (
	// KindTimeout covers deadline exceeded on the HTTP request.
	KindTimeout ErrorKind = "timeout"
	// KindTransport covers DNS/connect/TLS level failures.
	KindTransport ErrorKind = "transport"
	// KindStatus covers non-200 HTTP responses (bad key, rate limit, 5xx).
	KindStatus ErrorKind = "status"
	// KindMalformed covers unparseable bodies or an API-level error payload.
	KindMalformed ErrorKind = "malformed"
)

// FetchError is the error type returned by Client.Fetch.
type FetchError struct {
	Kind       ErrorKind
	HTTPStatus int
	Err        error
	Detail     string
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("apex fetch: http %d", e.HTTPStatus)
	case KindMalformed:
		if e.Detail != "" {
			return "apex fetch: " + e.Detail
		}
		return fmt.Sprintf("apex fetch: malformed response: %v", e.Err)
	default:
		return fmt.Sprintf("apex fetch: %s: %v", e.Kind, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Config configures the status API client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client fetches realtime player status from the bridge API.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func NewClient(cfg Config, log logx.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("apex api key is empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}, nil
}

// bridgeResponse mirrors the subset of the bridge payload we consume.
type bridgeResponse struct {
	Error    string `json:"Error"`
	Realtime *struct {
		CurrentState               string `json:"currentState"`
		CurrentStateAsText         string `json:"currentStateAsText"`
		CurrentStateSinceTimestamp *int64 `json:"currentStateSinceTimestamp"`
	} `json:"realtime"`
}

// Fetch retrieves the current status of player on platform.
// All failures are returned as *FetchError.
func (c *Client) Fetch(ctx context.Context, player, platform string) (Status, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return Status{}, &FetchError{Kind: KindTransport, Err: err}
	}
	q := u.Query()
	q.Set("auth", c.cfg.APIKey)
	q.Set("player", player)
	q.Set("platform", platform)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Status{}, &FetchError{Kind: KindTransport, Err: err}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		kind := KindTransport
		if errors.Is(err, context.DeadlineExceeded) {
			kind = KindTimeout
		}
		var ue *url.Error
		if errors.As(err, &ue) && ue.Timeout() {
			kind = KindTimeout
		}
		c.log.Debug("status fetch failed",
			logx.String("player", player),
			logx.String("kind", string(kind)),
			logx.Err(err))
		return Status{}, &FetchError{Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		c.log.Debug("status fetch non-200",
			logx.String("player", player),
			logx.Int("status", resp.StatusCode))
		return Status{}, &FetchError{Kind: KindStatus, HTTPStatus: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Status{}, &FetchError{Kind: KindTransport, Err: err}
	}

	var br bridgeResponse
	if err := json.Unmarshal(body, &br); err != nil {
		return Status{}, &FetchError{Kind: KindMalformed, Err: err}
	}
	// The API reports lookup errors (unknown player, bad key) inside a 200
	// body as {"Error": "..."}.
	if br.Error != "" {
		return Status{}, &FetchError{Kind: KindMalformed, Detail: br.Error}
	}
	if br.Realtime == nil {
		return Status{}, &FetchError{Kind: KindMalformed, Detail: "missing realtime section"}
	}

	st := Status{
		State:     br.Realtime.CurrentState,
		APIText:   br.Realtime.CurrentStateAsText,
		SinceUnix: -1,
	}
	if ts := br.Realtime.CurrentStateSinceTimestamp; ts != nil {
		st.SinceUnix = *ts
	}
	if st.State == "" {
		return Status{}, &FetchError{Kind: KindMalformed, Detail: "missing currentState"}
	}

	c.log.Trace("status fetched",
		logx.String("player", player),
		logx.String("state", st.State),
		logx.Duration("took", time.Since(start)))
	return st, nil
}
