// Package feed provides the WebSocket client that streams live trades
// from a Binance-style combined stream into the pipeline.
//
// The expected JSON message format on the wire is a combined-stream
// envelope:
//
//	{"stream":"btcusdt@trade","data":{"s":"BTCUSDT","T":1700000000000,"p":"42000.5","q":"0.01"}}
//
// Price and quantity arrive as decimal strings. Frames without a "data"
// object (subscription confirmations and such) are ignored.
package feed

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"pairstream/internal/model"
)

const (
	defaultPingInterval = 15 * time.Second

	writeTimeout = 5 * time.Second
)

// Config holds configuration for the feed client.
type Config struct {
	// Base is the combined-stream endpoint, e.g.
	// "wss://stream.binance.com:9443/stream".
	Base string

	// Symbols to subscribe to.
	Symbols []string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 1 second if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration

	// PingInterval is how often keepalive pings are written. The read
	// deadline is twice this, extended on every pong. Defaults to 15s.
	PingInterval time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = defaultPingInterval
	}
}

func (c *Config) readTimeout() time.Duration {
	return 2 * c.PingInterval
}

// Stats are counters maintained by the client plus the current
// connection state.
type Stats struct {
	Running    bool
	Received   uint64
	Malformed  uint64
	Dropped    uint64
	Reconnects uint64
}

// Client streams trades from the combined stream and pushes model.Tick
// values into a channel. It owns reconnection; callers just read ticks.
type Client struct {
	cfg Config
	url string

	running    atomic.Bool
	received   atomic.Uint64
	malformed  atomic.Uint64
	dropped    atomic.Uint64
	reconnects atomic.Uint64

	// Optional hooks for instrumentation.
	OnConnect   func()
	OnReconnect func()
	OnMalformed func()
	OnDropped   func()
}

// envelope is one combined-stream frame.
type envelope struct {
	Stream string `json:"stream"`
	Data   *struct {
		Symbol   string `json:"s"`
		TradeTS  int64  `json:"T"`
		Price    string `json:"p"`
		Quantity string `json:"q"`
	} `json:"data"`
}

// StreamURL builds the combined-stream URL for a set of symbols:
// {base}?streams=btcusdt@trade/ethusdt@trade
func StreamURL(base string, symbols []string) string {
	parts := make([]string, 0, len(symbols))
	for _, s := range symbols {
		parts = append(parts, strings.ToLower(s)+"@trade")
	}
	return base + "?streams=" + strings.Join(parts, "/")
}

// New creates a feed client for the configured symbols.
func New(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		cfg: cfg,
		url: StreamURL(cfg.Base, cfg.Symbols),
	}
}

// URL returns the combined-stream URL the client dials.
func (c *Client) URL() string { return c.url }

// Running reports whether a websocket session is currently up.
func (c *Client) Running() bool { return c.running.Load() }

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	return Stats{
		Running:    c.running.Load(),
		Received:   c.received.Load(),
		Malformed:  c.malformed.Load(),
		Dropped:    c.dropped.Load(),
		Reconnects: c.reconnects.Load(),
	}
}

// Run connects and streams ticks into tickCh until ctx is cancelled.
// Reconnects automatically with exponential backoff; the delay resets
// after every successful connection.
func (c *Client) Run(ctx context.Context, tickCh chan<- model.Tick) error {
	delay := c.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		connected, err := c.runOnce(ctx, tickCh)
		if err == nil {
			return nil
		}
		if connected {
			// A session was established; start backoff over.
			delay = c.cfg.ReconnectDelay
		}

		log.Printf("[feed] disconnected (%v), reconnecting in %s...", err, delay)
		c.reconnects.Add(1)
		if c.OnReconnect != nil {
			c.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.cfg.MaxReconnectDelay {
			delay = c.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect
// or ctx cancel. The bool reports whether the dial succeeded.
func (c *Client) runOnce(ctx context.Context, tickCh chan<- model.Tick) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	c.running.Store(true)
	defer c.running.Store(false)

	log.Printf("[feed] connected to %s", c.url)
	if c.OnConnect != nil {
		c.OnConnect()
	}

	conn.SetReadDeadline(time.Now().Add(c.cfg.readTimeout()))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.readTimeout()))
	})

	// Keepalive writer: periodic pings keep the pong handler extending
	// the read deadline. A silent or dead peer lets the deadline expire,
	// failing the read below. Also closes the connection on ctx cancel.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil,
					time.Now().Add(writeTimeout)); err != nil {
					conn.Close()
					return
				}
			case <-ctx.Done():
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
					time.Now().Add(writeTimeout))
				conn.Close()
				return
			case <-pingDone:
				return
			}
		}
	}()

	for {
		// Any read error is terminal on a gorilla connection; reconnect.
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return true, nil
			default:
			}
			return true, err
		}

		tick, ok := parseFrame(raw)
		if !ok {
			continue
		}
		if tick.Symbol == "" {
			c.malformed.Add(1)
			if c.OnMalformed != nil {
				c.OnMalformed()
			}
			log.Printf("[feed] skipping malformed frame: %s", truncate(raw, 200))
			continue
		}
		c.received.Add(1)

		select {
		case tickCh <- tick:
		default:
			c.dropped.Add(1)
			if c.OnDropped != nil {
				c.OnDropped()
			}
			log.Println("[feed] tick channel full, dropping tick")
		}
	}
}

// parseFrame decodes one wire frame. Returns ok=false for non-data
// frames (these are silently ignored); a zero Symbol with ok=true means
// the frame claimed to carry a trade but was malformed.
func parseFrame(raw []byte) (model.Tick, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return model.Tick{}, true
	}
	if env.Data == nil {
		// Subscription ack or other control payload.
		return model.Tick{}, false
	}

	price, perr := strconv.ParseFloat(env.Data.Price, 64)
	qty, qerr := strconv.ParseFloat(env.Data.Quantity, 64)
	if env.Data.Symbol == "" || env.Data.TradeTS <= 0 || perr != nil || qerr != nil {
		return model.Tick{}, true
	}

	return model.Tick{
		Timestamp: env.Data.TradeTS,
		Symbol:    model.NormalizeSymbol(env.Data.Symbol),
		Price:     price,
		Quantity:  qty,
	}, true
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
