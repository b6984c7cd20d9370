// cmd/feedsim — Demo WebSocket trade-feed server.
// Broadcasts simulated combined-stream trade frames so pairstreamd can
// run without an exchange connection:
//
//	{"stream":"btcusdt@trade","data":{"s":"BTCUSDT","T":1700000000000,"p":"42000.50","q":"0.012"}}
//
// Point the daemon at it with FEED_ENDPOINT_BASE=ws://localhost:8765/stream.
//
// Config (env vars):
//
//	FEEDSIM_ADDR      — listen address (default ":8765")
//	SYMBOLS           — comma-separated symbols (default "BTCUSDT,ETHUSDT")
//	TICK_INTERVAL_MS  — broadcast interval milliseconds (default "100")
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// frame mirrors the combined-stream wire format.
type frame struct {
	Stream string    `json:"stream"`
	Data   frameData `json:"data"`
}

type frameData struct {
	Symbol   string `json:"s"`
	TradeTS  int64  `json:"T"`
	Price    string `json:"p"`
	Quantity string `json:"q"`
}

// instrument holds per-symbol simulation state.
type instrument struct {
	Symbol string
	Price  float64
}

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client, drop frame
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[feedsim] upgrade error: %v", err)
			return
		}
		log.Printf("[feedsim] client connected: %s (streams=%s)",
			r.RemoteAddr, r.URL.Query().Get("streams"))

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[feedsim] client disconnected: %s", r.RemoteAddr)
		}()

		// Drain pings and client frames so control handlers run.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// walkPrice applies a tiny random walk (±0.1%) to simulate price movement.
func walkPrice(price float64) float64 {
	pct := (rand.Float64()*0.2 - 0.1) / 100.0
	next := price * (1 + pct)
	if next < 0.01 {
		next = 0.01
	}
	return next
}

func runGenerator(h *hub, instruments []instrument, intervalMs int) {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now().UnixMilli()
		for i := range instruments {
			instruments[i].Price = walkPrice(instruments[i].Price)
			msg := frame{
				Stream: strings.ToLower(instruments[i].Symbol) + "@trade",
				Data: frameData{
					Symbol:   instruments[i].Symbol,
					TradeTS:  now,
					Price:    strconv.FormatFloat(instruments[i].Price, 'f', 2, 64),
					Quantity: strconv.FormatFloat(rand.Float64()*2+0.001, 'f', 3, 64),
				},
			}
			b, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			h.broadcast(b)
		}
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[feedsim] starting demo feed server...")

	addr := envOrDefault("FEEDSIM_ADDR", ":8765")
	symbolsEnv := envOrDefault("SYMBOLS", "BTCUSDT,ETHUSDT")
	intervalMs := envIntOrDefault("TICK_INTERVAL_MS", 100)

	// Rough starting prices; anything unknown starts at 100.
	startPrices := map[string]float64{
		"BTCUSDT": 42000,
		"ETHUSDT": 2500,
		"SOLUSDT": 100,
	}

	var instruments []instrument
	for _, s := range strings.Split(symbolsEnv, ",") {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if sym == "" {
			continue
		}
		price := startPrices[sym]
		if price == 0 {
			price = 100
		}
		instruments = append(instruments, instrument{Symbol: sym, Price: price})
	}
	if len(instruments) == 0 {
		log.Fatalf("[feedsim] no symbols configured via SYMBOLS")
	}
	log.Printf("[feedsim] instruments: %+v", instruments)
	log.Printf("[feedsim] broadcast interval: %dms", intervalMs)

	h := newHub()
	go runGenerator(h, instruments, intervalMs)

	http.HandleFunc("/stream", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"feedsim"}`)
	})

	log.Printf("[feedsim] listening on %s (WebSocket: ws://localhost%s/stream)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[feedsim] server error: %v", err)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
