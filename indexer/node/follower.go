// Package node follows a Midnight node's block stream over WebSocket,
// reconnecting with backoff on any connection failure.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ProtocolVersion is the node's runtime/wire protocol version, sent as
// the parameter of every subscription request. The follower does not
// check the version of the blocks it receives against it.
type ProtocolVersion uint32

// Block is the minimal shape the follower needs out of a node-streamed
// block: enough to drive the replica without the follower itself
// understanding ledger semantics.
type Block struct {
	Height    uint64
	Hash      [32]byte
	ParentHash [32]byte
	Timestamp int64
	RawTxs    [][]byte // opaque, ledger.NewReader-decodable transaction bytes
}

// Follower subscribes to a node's finalized-block stream and exposes the
// decoded blocks on a channel, reconnecting with exponential backoff
// on any WebSocket failure.
type Follower struct {
	wsURL           string
	protocolVersion ProtocolVersion

	latestHeight atomic.Uint64

	conn   *websocket.Conn
	connMu sync.Mutex

	blocks chan Block

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

const (
	minBackoff = 1 * time.Second
	maxBackoff = 30 * time.Second
)

func NewFollower(ctx context.Context, wsURL string, protocolVersion ProtocolVersion) *Follower {
	fctx, cancel := context.WithCancel(ctx)
	return &Follower{
		wsURL:           wsURL,
		protocolVersion: protocolVersion,
		blocks:          make(chan Block, 256),
		ctx:             fctx,
		cancel:          cancel,
	}
}

// Start begins the reconnect loop in the background; Blocks() yields
// decoded blocks as they arrive.
func (f *Follower) Start() {
	f.wg.Add(1)
	go f.run()
}

func (f *Follower) Stop() {
	f.cancel()
	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.connMu.Unlock()
	f.wg.Wait()
	close(f.blocks)
}

// Blocks returns the channel of decoded blocks in arrival order.
func (f *Follower) Blocks() <-chan Block { return f.blocks }

func (f *Follower) LatestHeight() uint64 { return f.latestHeight.Load() }

func (f *Follower) run() {
	defer f.wg.Done()

	backoff := minBackoff
	for {
		select {
		case <-f.ctx.Done():
			return
		default:
		}

		if err := f.connectAndSubscribe(); err != nil {
			log.Printf("[node] websocket error: %v, reconnecting in %s", err, backoff)
			select {
			case <-time.After(backoff):
			case <-f.ctx.Done():
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = minBackoff
	}
}

func (f *Follower) connectAndSubscribe() error {
	conn, _, err := websocket.DefaultDialer.DialContext(f.ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	defer func() {
		f.connMu.Lock()
		f.conn = nil
		conn.Close()
		f.connMu.Unlock()
	}()

	sub := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "chain_subscribeFinalizedHeads",
		"params":  []any{f.protocolVersion},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	var subResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := conn.ReadJSON(&subResp); err != nil {
		return fmt.Errorf("read subscribe response: %w", err)
	}
	if subResp.Error != nil {
		return fmt.Errorf("subscribe rejected: %s", subResp.Error.Message)
	}

	log.Printf("[node] subscribed to finalized blocks at %s", f.wsURL)

	for {
		select {
		case <-f.ctx.Done():
			return nil
		default:
		}

		var msg struct {
			Params struct {
				Result wireBlock `json:"result"`
			} `json:"params"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read block: %w", err)
		}

		block := msg.Params.Result.toBlock()
		if block.Height > f.latestHeight.Load() {
			f.latestHeight.Store(block.Height)
		}

		select {
		case f.blocks <- block:
		case <-f.ctx.Done():
			return nil
		}
	}
}

// wireBlock is the JSON shape a node emits over the subscription; decoded
// transactions stay opaque byte blobs here and are only parsed by
// ledger.NewReader downstream in the replica.
type wireBlock struct {
	Height     uint64   `json:"height"`
	Hash       string   `json:"hash"`
	ParentHash string   `json:"parentHash"`
	Timestamp  int64    `json:"timestamp"`
	Txs        []string `json:"transactions"` // hex-encoded
}

func (w wireBlock) toBlock() Block {
	b := Block{Height: w.Height, Timestamp: w.Timestamp}
	copy(b.Hash[:], decodeHex(w.Hash))
	copy(b.ParentHash[:], decodeHex(w.ParentHash))
	for _, tx := range w.Txs {
		b.RawTxs = append(b.RawTxs, decodeHex(tx))
	}
	return b
}

func decodeHex(s string) []byte {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi := hexNibble(s[i*2])
		lo := hexNibble(s[i*2+1])
		out[i] = hi<<4 | lo
	}
	return out
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
