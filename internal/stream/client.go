// Package stream maintains a single reconnecting WebSocket connection to a
// series source. It decodes inbound snapshots, reports connection status
// transitions, and retries with exponential backoff when the connection drops
// without the caller asking for it.
//
// Handler calls for one Client are delivered in order, one at a time, and never
// while the client's internal lock is held, so a handler may call back into
// the client.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/large-farva/livechart/internal/telemetry"
)

// ErrInvalidEndpoint is returned for endpoints that are not ws:// or wss:// URLs.
var ErrInvalidEndpoint = errors.New("invalid endpoint")

// Handlers receives everything the client reports. Nil fields are skipped.
type Handlers struct {
	OnMessage      func(telemetry.Snapshot)
	OnStatusChange func(Status)
	OnError        func(string)
}

// Dialer opens WebSocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Timer is the part of *time.Timer the retry scheduler needs.
type Timer interface {
	Stop() bool
}

// Options configures a Client. Zero values fall back to the package defaults,
// except MaxRetries.
type Options struct {
	Logger *log.Logger
	Dialer Dialer

	// MaxRetries caps automatic reconnects after an unexpected close. Zero
	// disables them; a negative value uses DefaultMaxRetries.
	MaxRetries int

	BaseDelay time.Duration
	MaxDelay  time.Duration
	Verbose   bool // log every decoded message

	// HandshakeTimeout applies to the default dialer only. Defaults to 10s.
	HandshakeTimeout time.Duration

	// AfterFunc schedules reconnect attempts. Defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) Timer
}

type eventKind int

const (
	evStatus eventKind = iota
	evMessage
	evError
)

type event struct {
	kind   eventKind
	status Status
	snap   telemetry.Snapshot
	text   string
	h      Handlers
}

func (ev event) deliver() {
	switch ev.kind {
	case evStatus:
		if ev.h.OnStatusChange != nil {
			ev.h.OnStatusChange(ev.status)
		}
	case evMessage:
		if ev.h.OnMessage != nil {
			ev.h.OnMessage(ev.snap)
		}
	case evError:
		if ev.h.OnError != nil {
			ev.h.OnError(ev.text)
		}
	}
}

// Client owns at most one live connection at a time.
type Client struct {
	log        *log.Logger
	dialer     Dialer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	verbose    bool
	afterFunc  func(time.Duration, func()) Timer

	mu          sync.Mutex
	endpoint    string
	handlers    Handlers
	status      Status
	conn        *websocket.Conn
	dialing     bool
	cancelDial  context.CancelFunc
	attempt     uint64 // generation of the current attempt; callbacks from older ones are dropped
	shouldRetry bool
	retries     int
	retryTimer  Timer
	retryGen    uint64

	queue    []event
	draining bool
}

// New creates a disconnected client.
func New(opts Options) *Client {
	c := &Client{
		log:        opts.Logger,
		dialer:     opts.Dialer,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		maxDelay:   opts.MaxDelay,
		verbose:    opts.Verbose,
		afterFunc:  opts.AfterFunc,
	}
	if c.log == nil {
		c.log = log.New(io.Discard, "", 0)
	}
	if c.dialer == nil {
		timeout := opts.HandshakeTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		c.dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		}
	}
	if c.maxRetries < 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.baseDelay <= 0 {
		c.baseDelay = DefaultBaseDelay
	}
	if c.maxDelay <= 0 {
		c.maxDelay = DefaultMaxDelay
	}
	if c.afterFunc == nil {
		c.afterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	return c
}

// ValidateEndpoint checks that raw is a ws:// or wss:// URL with a host and
// returns it in normalized form.
func ValidateEndpoint(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("%w: scheme must be ws or wss, got %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidEndpoint)
	}
	return u.String(), nil
}

// Connect stores the endpoint and handlers and starts a connection attempt.
// It does nothing while a connection is open or an attempt is in flight.
func (c *Client) Connect(endpoint string, h Handlers) {
	c.mu.Lock()
	if c.conn != nil || c.dialing {
		c.mu.Unlock()
		return
	}
	c.endpoint = endpoint
	c.handlers = h
	c.shouldRetry = true
	c.retries = 0
	c.stopRetryLocked()
	c.openLocked()
	c.mu.Unlock()
	c.drain()
}

// Disconnect stops retrying, cancels any pending retry or dial, closes the
// live connection and reports StatusDisconnected. Safe to call repeatedly.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.shouldRetry = false
	c.stopRetryLocked()
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	c.dialing = false
	c.attempt++
	conn := c.conn
	c.conn = nil
	c.setStatusLocked(StatusDisconnected)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second),
		)
		_ = conn.Close()
		c.log.Printf("disconnected from %s", c.Endpoint())
	}
	c.drain()
}

// IsConnected reports whether the connection is fully open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.status == StatusConnected
}

// Status returns the last reported status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Endpoint returns the endpoint passed to the last Connect.
func (c *Client) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// Retries returns how many automatic retries have been scheduled since the
// last successful open.
func (c *Client) Retries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retries
}

// Idle reports whether the client has no open connection, no attempt in
// flight and no retry pending. A client that gave up after its last retry is
// idle.
func (c *Client) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == nil && !c.dialing && c.retryTimer == nil
}

func (c *Client) openLocked() {
	c.attempt++
	id := c.attempt
	c.setStatusLocked(StatusConnecting)

	u, err := ValidateEndpoint(c.endpoint)
	if err != nil {
		c.log.Printf("connect %q: %v", c.endpoint, err)
		c.setStatusLocked(StatusError)
		c.pushLocked(event{kind: evError, text: err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel
	c.dialing = true
	go c.dial(ctx, id, u)
}

func (c *Client) dial(ctx context.Context, id uint64, u string) {
	conn, _, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		c.handleError(id, fmt.Errorf("dial %s: %w", u, err))
		c.handleClose(id)
		return
	}
	if !c.handleOpen(id, conn) {
		_ = conn.Close()
		return
	}
	c.readLoop(id, conn)
}

func (c *Client) readLoop(id uint64, conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.handleError(id, err)
			}
			c.handleClose(id)
			return
		}
		c.handleMessage(id, raw)
	}
}

func (c *Client) handleOpen(id uint64, conn *websocket.Conn) bool {
	c.mu.Lock()
	if id != c.attempt {
		c.mu.Unlock()
		return false
	}
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	c.conn = conn
	c.dialing = false
	c.retries = 0
	c.log.Printf("connected to %s", c.endpoint)
	c.setStatusLocked(StatusConnected)
	c.mu.Unlock()
	c.drain()
	return true
}

func (c *Client) handleMessage(id uint64, raw []byte) {
	snap, err := telemetry.ParseSnapshot(raw)

	c.mu.Lock()
	if id != c.attempt || c.conn == nil {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.log.Printf("dropping payload from %s: %v", c.endpoint, err)
		c.pushLocked(event{kind: evError, text: "invalid payload: " + err.Error()})
	} else {
		if c.verbose {
			c.log.Printf("received %d series (%d points)", len(snap), snap.Points())
		}
		c.pushLocked(event{kind: evMessage, snap: snap})
	}
	c.mu.Unlock()
	c.drain()
}

func (c *Client) handleError(id uint64, err error) {
	c.mu.Lock()
	if id != c.attempt {
		c.mu.Unlock()
		return
	}
	c.log.Printf("connection error on %s: %v", c.endpoint, err)
	c.setStatusLocked(StatusError)
	c.pushLocked(event{kind: evError, text: "connection error"})
	c.mu.Unlock()
	c.drain()
}

func (c *Client) handleClose(id uint64) {
	c.mu.Lock()
	if id != c.attempt {
		c.mu.Unlock()
		return
	}
	c.attempt++
	conn := c.conn
	c.conn = nil
	c.dialing = false
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	c.setStatusLocked(StatusDisconnected)
	switch {
	case !c.shouldRetry:
	case c.retries < c.maxRetries:
		c.scheduleRetryLocked()
	default:
		c.log.Printf("giving up on %s after %d retries", c.endpoint, c.retries)
	}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.drain()
}

func (c *Client) scheduleRetryLocked() {
	delay := backoffDelay(c.baseDelay, c.maxDelay, c.retries)
	c.retries++
	c.stopRetryLocked()
	gen := c.retryGen
	c.log.Printf("reconnecting to %s in %s (attempt %d/%d)", c.endpoint, delay, c.retries, c.maxRetries)
	c.retryTimer = c.afterFunc(delay, func() { c.retry(gen) })
}

func (c *Client) stopRetryLocked() {
	c.retryGen++
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *Client) retry(gen uint64) {
	c.mu.Lock()
	if gen != c.retryGen || !c.shouldRetry || c.conn != nil || c.dialing {
		c.mu.Unlock()
		return
	}
	c.retryTimer = nil
	c.openLocked()
	c.mu.Unlock()
	c.drain()
}

func (c *Client) setStatusLocked(s Status) {
	c.status = s
	c.pushLocked(event{kind: evStatus, status: s})
}

func (c *Client) pushLocked(ev event) {
	ev.h = c.handlers
	c.queue = append(c.queue, ev)
}

// drain delivers queued events. Only one goroutine drains at a time; others
// leave their events for it.
func (c *Client) drain() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.queue) > 0 {
		ev := c.queue[0]
		c.queue[0] = event{}
		c.queue = c.queue[1:]
		c.mu.Unlock()
		ev.deliver()
		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
}
