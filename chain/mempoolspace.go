package chain

import (
	"context"
	"encoding/json"
	"fmt"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// MempoolSpaceBackend is a mempool.space-style backend: the same
// Esplora-compatible REST surface, plus a WebSocket subscription used by
// the watcher for near-real-time block and address events.
type MempoolSpaceBackend struct {
	*EsploraBackend
	wsURL string
}

// NewMempoolSpaceBackend constructs a backend with restBaseURL for
// polling and wsURL for the WebSocket subscription.
func NewMempoolSpaceBackend(name, restBaseURL, wsURL string, requestsPerSecond float64) *MempoolSpaceBackend {
	return &MempoolSpaceBackend{
		EsploraBackend: NewEsploraBackend(name, restBaseURL, requestsPerSecond),
		wsURL:          wsURL,
	}
}

// subscribeFrame mirrors the action/data envelope mempool.space's
// WebSocket protocol expects for its "want" subscriptions.
type subscribeFrame struct {
	Action string   `json:"action,omitempty"`
	Data   []string `json:"data,omitempty"`
}

type trackAddressFrame struct {
	TrackAddress string `json:"track-address"`
}

// Frame is one decoded WebSocket push: blocks, a single block's
// transactions, or an address's transactions. Exactly one field is
// populated per frame, matching the shapes the upstream service pushes.
type Frame struct {
	Blocks              []json.RawMessage `json:"blocks,omitempty"`
	Block               json.RawMessage   `json:"block,omitempty"`
	BlockTransactions   []esploraTx       `json:"block-transactions,omitempty"`
	AddressTransactions []esploraTx       `json:"address-transactions,omitempty"`
}

// Subscribe connects to the mempool.space WebSocket, subscribes to blocks
// and one track-address frame per tracked address, and streams decoded
// frames to out until ctx is cancelled or the connection drops.
func (b *MempoolSpaceBackend) Subscribe(ctx context.Context, addresses []string, out chan<- Frame) error {
	conn, _, err := websocket.Dial(ctx, b.wsURL, nil)
	if err != nil {
		return huberrWrap(b.name, fmt.Errorf("dial websocket: %w", err))
	}
	defer conn.Close(websocket.StatusNormalClosure, "watcher shutdown")

	if err := wsjson.Write(ctx, conn, subscribeFrame{Action: "want", Data: []string{"blocks"}}); err != nil {
		return huberrWrap(b.name, fmt.Errorf("subscribe blocks: %w", err))
	}
	for _, addr := range addresses {
		if err := wsjson.Write(ctx, conn, trackAddressFrame{TrackAddress: addr}); err != nil {
			return huberrWrap(b.name, fmt.Errorf("track address %s: %w", addr, err))
		}
	}

	for {
		var frame Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return huberrWrap(b.name, fmt.Errorf("read frame: %w", err))
		}
		select {
		case out <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
