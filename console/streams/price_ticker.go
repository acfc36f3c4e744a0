package streams

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/swagftw/gi"

	"operator-console/goutils/settings"
)

const reconnectDelay = 5 * time.Second

// PricePoint is one tick from the governance-token price feed.
type PricePoint struct {
	StreamID  string  `json:"streamId"`
	PriceUSD  float64 `json:"priceUsd"`
	Timestamp int64   `json:"timestamp"`
}

// PriceTicker keeps a websocket connection to the price feed and pushes
// ticks for the configured stream to its listener. The connection is
// re-established until Stop or context cancellation.
type PriceTicker struct {
	settingsObj *settings.SettingsObj

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func InitPriceTicker(settingsObj *settings.SettingsObj) *PriceTicker {
	ticker := &PriceTicker{settingsObj: settingsObj}

	if err := gi.Inject(ticker); err != nil {
		log.WithError(err).Fatal("failed to inject price ticker")
	}

	return ticker
}

// Start begins streaming ticks to onTick. Returns immediately, the read loop
// runs until Stop.
func (t *PriceTicker) Start(ctx context.Context, onTick func(point PricePoint)) {
	t.mu.Lock()

	if t.running {
		t.mu.Unlock()

		return
	}

	ctx, cancel := context.WithCancel(ctx)
	t.running = true
	t.cancel = cancel
	t.mu.Unlock()

	t.wg.Add(1)

	go t.stream(ctx, onTick)
}

func (t *PriceTicker) stream(ctx context.Context, onTick func(point PricePoint)) {
	defer t.wg.Done()

	feedURL := t.settingsObj.Streams.PriceFeedURL
	streamID := t.settingsObj.Streams.PriceStreamID

	for ctx.Err() == nil {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, feedURL, nil)
		if err != nil {
			log.WithError(err).Error("failed to dial price feed, retrying")

			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
				continue
			}
		}

		// the watcher must not outlive this connection, one leaks per
		// reconnect otherwise
		done := make(chan struct{})

		go func() {
			select {
			case <-ctx.Done():
				_ = conn.Close()
			case <-done:
			}
		}()

		t.readLoop(ctx, conn, streamID, onTick)
		close(done)
	}
}

func (t *PriceTicker) readLoop(ctx context.Context, conn *websocket.Conn, streamID string, onTick func(point PricePoint)) {
	defer conn.Close()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Warn("price feed read failed, reconnecting")
			}

			return
		}

		point := PricePoint{}
		if err := json.Unmarshal(payload, &point); err != nil {
			log.WithError(err).Debug("skipping malformed price tick")

			continue
		}

		if point.StreamID != "" && point.StreamID != streamID {
			continue
		}

		onTick(point)
	}
}

// Stop closes the connection and waits for the read loop to exit.
func (t *PriceTicker) Stop() {
	t.mu.Lock()

	if !t.running {
		t.mu.Unlock()

		return
	}

	t.running = false
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	cancel()
	t.wg.Wait()
}
