package bitfinex

import (
	"sync"
	"time"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/pkg/websocket"
)

// tickerMaxAge bounds how stale a streamed snapshot may be before rates fall
// back to REST.
const tickerMaxAge = 30 * time.Second

// TickerStream keeps a live ticker snapshot for one symbol over the public
// websocket. It resubscribes after every reconnect.
type TickerStream struct {
	client *websocket.Client
	symbol string
	logger core.ILogger

	mu      sync.RWMutex
	rates   core.Rates
	updated time.Time
}

func newTickerStream(wsURL, symbol string, logger core.ILogger) *TickerStream {
	t := &TickerStream{
		symbol: symbol,
		logger: logger.WithField("component", "ticker_stream"),
	}

	client := websocket.NewClient(wsURL, t.handleMessage, t.logger)
	client.SetOnConnected(func() {
		err := client.Send(map[string]interface{}{
			"event":   "subscribe",
			"channel": "ticker",
			"symbol":  symbol,
		})
		if err != nil {
			t.logger.Error("Ticker subscribe failed", "symbol", symbol, "error", err)
		}
	})

	t.client = client
	return t
}

func (t *TickerStream) Start() { t.client.Start() }
func (t *TickerStream) Stop()  { t.client.Stop() }

// Snapshot returns the latest rates and whether they are fresh enough to use.
func (t *TickerStream) Snapshot() (core.Rates, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.updated.IsZero() || time.Since(t.updated) > tickerMaxAge {
		return core.Rates{}, false
	}
	return t.rates, true
}

// handleMessage parses channel frames: [CHAN_ID, "hb"] heartbeats and
// [CHAN_ID, [BID, BID_SIZE, ASK, ASK_SIZE, CHG, CHG_REL, LAST, VOLUME, HIGH, LOW]].
// Event objects (subscribed, info, error) arrive as JSON objects and are logged.
func (t *TickerStream) handleMessage(message []byte) {
	if len(message) == 0 {
		return
	}
	if message[0] == '{' {
		t.logger.Debug("Ticker event", "payload", string(message))
		return
	}

	raw, err := decodeArray(message)
	if err != nil || len(raw) < 2 {
		return
	}
	data := asArray(raw[1])
	if len(data) < 10 {
		// Heartbeat or unexpected frame.
		return
	}

	rates := core.Rates{
		Bid:    asDecimal(data[0]),
		Ask:    asDecimal(data[2]),
		Last:   asDecimal(data[6]),
		Volume: asDecimal(data[7]),
		High:   asDecimal(data[8]),
		Low:    asDecimal(data[9]),
	}

	t.mu.Lock()
	t.rates = rates
	t.updated = time.Now()
	t.mu.Unlock()
}
