// Package transport drives the live-mode upstream connection: SignalR
// negotiate, WebSocket connect, subscribe, and a read loop feeding frames
// into an Ingress dispatcher, wrapped in an unbounded exponential-backoff
// reconnect loop. WebSocket transport has no auto-reconnect hook, so the
// dial loop owns liveness explicitly: any read error tears the connection
// down and the loop renegotiates from scratch.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/KingSajxxd/f1-relay/internal/metrics"
)

// subscribeFeeds is the fixed feed list sent in the Subscribe message.
var subscribeFeeds = []string{
	"Heartbeat", "CarData.z", "Position.z", "ExtrapolatedClock", "TopThree",
	"RcmSeries", "TimingStats", "TimingAppData", "WeatherData", "TrackStatus",
	"SessionStatus", "DriverList", "RaceControlMessages", "SessionInfo",
	"SessionData", "LapCount", "TimingData", "TeamRadio",
}

// Dispatcher is the subset of ingress.Dispatcher the transport needs,
// kept as an interface so the read loop can be tested without a live
// socket or a real Store/Bus.
type Dispatcher interface {
	HandleText(raw string, arrival time.Time)
	HandleBinary(raw []byte, arrival time.Time)
}

// Options configures a Client.
type Options struct {
	// UpstreamBase is the host[:port]/path SignalR is served from, with
	// no scheme — e.g. "livetiming.formula1.com/signalr".
	UpstreamBase string
	Hub          string

	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64

	Dispatcher Dispatcher
	Log        zerolog.Logger

	// httpClient and dial are overridable for tests; nil means use
	// http.DefaultClient and websocket.DefaultDialer.
	httpClient *http.Client
	dial       func(urlStr string, header http.Header) (*websocket.Conn, *http.Response, error)
}

// Client runs the reconnect loop over the upstream SignalR feed.
type Client struct {
	opts      Options
	log       zerolog.Logger
	connected atomic.Bool
}

// New creates a Client from opts, filling in backoff defaults (5s
// initial, ×2, cap 600s) where unset.
func New(opts Options) *Client {
	if opts.InitialInterval == 0 {
		opts.InitialInterval = 5 * time.Second
	}
	if opts.MaxInterval == 0 {
		opts.MaxInterval = 600 * time.Second
	}
	if opts.Multiplier == 0 {
		opts.Multiplier = 2.0
	}
	if opts.Hub == "" {
		opts.Hub = "Streaming"
	}
	if opts.httpClient == nil {
		opts.httpClient = http.DefaultClient
	}
	if opts.dial == nil {
		opts.dial = websocket.DefaultDialer.Dial
	}
	return &Client{opts: opts, log: opts.Log}
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.InitialInterval
	bo.MaxInterval = c.opts.MaxInterval
	bo.Multiplier = c.opts.Multiplier
	bo.MaxElapsedTime = 0 // unbounded retries — the reconnect loop never gives up
	bo.RandomizationFactor = 0
	bo.Reset() // re-seed currentInterval from the InitialInterval set above
	return bo
}

// Run connects and reads frames until ctx is cancelled, reconnecting
// forever across connection failures with exponential backoff.
func (c *Client) Run(ctx context.Context) {
	bo := c.newBackOff()
	for {
		if ctx.Err() != nil {
			return
		}

		wasConnected, err := c.runOnce(ctx)
		c.connected.Store(false)
		metrics.UpstreamConnected.Set(0)
		if ctx.Err() != nil {
			return
		}

		if wasConnected {
			// Any successful connect resets the backoff to its initial
			// interval.
			bo.Reset()
		}
		metrics.ReconnectsTotal.Inc()
		wait := bo.NextBackOff()
		c.log.Warn().Err(err).Dur("retry_in", wait).Msg("upstream connection lost, reconnecting")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

// IsConnected reports whether the client currently holds a live
// WebSocket connection.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// runOnce negotiates, connects, subscribes, and reads frames until the
// connection drops or ctx is cancelled. wasConnected reports whether the
// subscribe step succeeded; Run resets its backoff when it did.
func (c *Client) runOnce(ctx context.Context) (wasConnected bool, err error) {
	token, err := c.negotiate(ctx)
	if err != nil {
		return false, fmt.Errorf("negotiate: %w", err)
	}

	conn, err := c.connect(ctx, token)
	if err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	if err := c.subscribe(conn); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	c.connected.Store(true)
	metrics.UpstreamConnected.Set(1)
	c.log.Info().Msg("upstream connected and subscribed")

	return true, c.readLoop(ctx, conn)
}

type negotiateResponse struct {
	ConnectionToken string `json:"ConnectionToken"`
}

func (c *Client) negotiate(ctx context.Context) (string, error) {
	u := fmt.Sprintf("https://%s/negotiate?clientProtocol=1.5&connectionData=%s",
		c.opts.UpstreamBase, connectionData(c.opts.Hub))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Origin", "https://www.formula1.com")

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body negotiateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.ConnectionToken == "" {
		return "", fmt.Errorf("negotiate response missing ConnectionToken")
	}
	return body.ConnectionToken, nil
}

func (c *Client) connect(ctx context.Context, token string) (*websocket.Conn, error) {
	u := fmt.Sprintf("wss://%s/connect?clientProtocol=1.5&transport=webSockets&connectionToken=%s&connectionData=%s",
		c.opts.UpstreamBase, url.QueryEscape(token), connectionData(c.opts.Hub))

	header := http.Header{}
	header.Set("User-Agent", "Mozilla/5.0")
	header.Set("Origin", "https://www.formula1.com")

	conn, _, err := c.opts.dial(u, header)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(0) // 0 means unbounded frame size
	return conn, nil
}

type subscribeMessage struct {
	H string     `json:"H"`
	M string     `json:"M"`
	A [][]string `json:"A"`
	I int        `json:"I"`
}

func (c *Client) subscribe(conn *websocket.Conn) error {
	msg := subscribeMessage{H: c.opts.Hub, M: "Subscribe", A: [][]string{subscribeFeeds}, I: 1}
	return conn.WriteJSON(msg)
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		arrival := time.Now().UTC()
		switch kind {
		case websocket.TextMessage:
			c.opts.Dispatcher.HandleText(string(data), arrival)
		case websocket.BinaryMessage:
			c.opts.Dispatcher.HandleBinary(data, arrival)
		}
	}
}

func connectionData(hub string) string {
	data, _ := json.Marshal([]map[string]string{{"name": hub}})
	return url.QueryEscape(string(data))
}
