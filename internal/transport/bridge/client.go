// Package bridge talks to the host application over its HTTP JSON bridge.
//
// Requests are posted to {BaseURL}/request as {action, resource, values} and
// answered with {success, values}. Notifications travel the other way: the
// bridge posts them to this service, which hands them to Dispatch.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/casetable/internal/domain"
	"github.com/kailas-cloud/casetable/internal/host"
	"github.com/kailas-cloud/casetable/internal/metrics"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4096
)

// Config holds the bridge connection settings.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client implements host.Client over HTTP.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
	logger  *zap.Logger

	mu      sync.Mutex
	subs    map[uint64]subscriber
	nextSub uint64
}

type subscriber struct {
	matcher string
	handler host.Handler
}

var _ host.Client = (*Client)(nil)

// NewClient creates a bridge client.
func NewClient(cfg *Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: timeout,
		http:    hc,
		logger:  logger,
		subs:    make(map[uint64]subscriber),
	}
}

// SendRequest implements host.Client. A response with success=false is not an
// error here; callers decide what a rejection means.
func (c *Client) SendRequest(ctx context.Context, req host.Request) (host.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return host.Response{}, fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.post(ctx, body)
	metrics.HostRequestDuration.WithLabelValues(string(req.Action)).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.HostRequestsTotal.WithLabelValues(string(req.Action), "error").Inc()
		c.logger.Warn("host request failed",
			zap.String("action", string(req.Action)),
			zap.String("resource", req.Resource),
			zap.Error(err),
		)
		return host.Response{}, err
	}

	status := "ok"
	if !resp.Success {
		status = "rejected"
	}
	metrics.HostRequestsTotal.WithLabelValues(string(req.Action), status).Inc()
	return resp, nil
}

func (c *Client) post(ctx context.Context, body []byte) (host.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/request", bytes.NewReader(body))
	if err != nil {
		return host.Response{}, fmt.Errorf("build request: %w: %w", domain.ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return host.Response{}, fmt.Errorf("bridge unreachable: %w: %w", domain.ErrTransport, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		return host.Response{}, fmt.Errorf("bridge status %d: %s: %w",
			httpResp.StatusCode, strings.TrimSpace(string(detail)), domain.ErrTransport)
	}

	var out host.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return host.Response{}, fmt.Errorf("decode bridge response: %w: %w", domain.ErrTransport, err)
	}
	return out, nil
}

func (c *Client) authorize(r *http.Request) {
	if c.token != "" {
		r.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// Subscribe implements host.Client.
func (c *Client) Subscribe(matcher string, h host.Handler) (host.Subscription, error) {
	if matcher == "" {
		return nil, fmt.Errorf("%w: empty notification matcher", domain.ErrValidation)
	}
	if h == nil {
		return nil, fmt.Errorf("%w: nil notification handler", domain.ErrValidation)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = subscriber{matcher: matcher, handler: h}
	return &subscription{client: c, id: id}, nil
}

type subscription struct {
	client *Client
	id     uint64
	once   sync.Once
}

// Cancel removes the subscription. Later calls are no-ops.
func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.client.mu.Lock()
		defer s.client.mu.Unlock()
		delete(s.client.subs, s.id)
	})
}

// Dispatch delivers n to every matching subscriber in subscription order and
// returns how many handlers ran. Handlers run on the caller's goroutine; a
// subscription cancelled by an earlier handler is skipped.
func (c *Client) Dispatch(ctx context.Context, n host.Notification) int {
	c.mu.Lock()
	ids := make([]uint64, 0, len(c.subs))
	for id, s := range c.subs {
		if host.Matches(s.matcher, n.Resource) {
			ids = append(ids, id)
		}
	}
	c.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	ran := 0
	for _, id := range ids {
		c.mu.Lock()
		s, ok := c.subs[id]
		c.mu.Unlock()
		if !ok {
			continue
		}
		s.handler(ctx, n)
		ran++
	}
	if ran == 0 {
		c.logger.Debug("notification without subscriber", zap.String("resource", n.Resource))
	}
	return ran
}

// HealthCheck verifies the bridge answers GET {BaseURL}/health.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bridge health: %w: %w", domain.ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge health status %d: %w", resp.StatusCode, domain.ErrTransport)
	}
	return nil
}
