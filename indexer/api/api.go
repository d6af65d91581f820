// Package api exposes the indexer's HTTP surface: health/readiness
// probes and the REST routes wallets and explorers page through,
// registered on a shared *http.ServeMux via a single RegisterRoutes
// call.
package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/eventbus"
	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/replica"
	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/statecache"
	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/storage"
	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/subscription"
	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/wallet"
	"github.com/midnight-ntwrk/ledger-indexer-core/internal/metrics"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger"
)

// upgrader configures the WebSocket handshake for the live wallet
// subscription endpoint; CheckOrigin is permissive because the indexer
// sits behind whatever origin policy its deployment's reverse proxy
// enforces, not this process.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server wires the replica and persistence layer into handlers.
type Server struct {
	replica    *replica.Replica
	store      storage.Store
	nodeHeight func() uint64
	zstdEnc    *zstd.Encoder
	bus        *eventbus.Bus
	wallets    *wallet.Manager
	collapsed  *statecache.Cache
}

func NewServer(rep *replica.Replica, store storage.Store, nodeHeight func() uint64, bus *eventbus.Bus, wallets *wallet.Manager, collapsed *statecache.Cache) *Server {
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	return &Server{replica: rep, store: store, nodeHeight: nodeHeight, zstdEnc: enc, bus: bus, wallets: wallets, collapsed: collapsed}
}

// writeJSON encodes v as JSON, zstd-compressing the body when the client
// advertises support for it. Wallet UTXO pages are the payload this
// actually matters for; status and health responses are small enough
// that compression is a wash either way but costs nothing to apply
// uniformly.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if s.zstdEnc != nil && strings.Contains(r.Header.Get("Accept-Encoding"), "zstd") {
		w.Header().Set("Content-Encoding", "zstd")
		w.Write(s.zstdEnc.EncodeAll(body, nil))
		return
	}
	w.Write(body)
}

// RegisterRoutes installs every route this server answers, plus
// /health, /ready, and /metrics, onto mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/wallets/{owner}/utxos", s.handleListUTXOs)
	mux.HandleFunc("POST /v1/wallets/register", s.handleRegisterWallet)
	mux.HandleFunc("DELETE /v1/wallets/{id}", s.handleDeregisterWallet)
	mux.HandleFunc("GET /v1/wallets/{id}/subscribe", s.handleSubscribe)
	mux.HandleFunc("GET /v1/zswap/collapsed-update", s.handleCollapsedUpdate)
	mux.HandleFunc("GET /v1/transactions/{height}/{index}", s.handleGetTransaction)
	mux.HandleFunc("GET /v1/contracts/{address}/actions", s.handleListContractActions)
	mux.HandleFunc("GET /v1/contracts/{address}/latest-action", s.handleLatestContractAction)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

// handleReady reports 200 only once the replica has caught up to the
// node's reported head, the boundary wallets should wait behind before
// trusting relevance scan results.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.replica.Height() < s.nodeHeight() {
		http.Error(w, "catching up", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ready"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, map[string]any{
		"replicaHeight": s.replica.Height(),
		"nodeHeight":    s.nodeHeight(),
		"stateRoot":     hex.EncodeToString(rootBytes(s.replica)),
	})
}

func rootBytes(r *replica.Replica) []byte {
	root := r.StateRoot()
	return root[:]
}

func (s *Server) handleListUTXOs(w http.ResponseWriter, r *http.Request) {
	ownerHex := r.PathValue("owner")
	ownerBytes, err := hex.DecodeString(ownerHex)
	if err != nil || len(ownerBytes) != 32 {
		http.Error(w, "invalid owner", http.StatusBadRequest)
		return
	}
	var owner [32]byte
	copy(owner[:], ownerBytes)

	cursor := int64(0)
	if c := r.URL.Query().Get("cursor"); c != "" {
		if v, err := strconv.ParseInt(c, 10, 64); err == nil {
			cursor = v
		}
	}
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	records, err := s.store.UTXOsByOwner(r.Context(), owner, cursor, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, r, map[string]any{"utxos": records})
}

type registerWalletRequest struct {
	ViewingKeyHex string `json:"viewingKey"`
	FromHeight    uint64 `json:"fromHeight"`
}

// handleRegisterWallet seals a viewing key into the wallet manager and
// returns the id a client then subscribes with; the key itself never
// appears in a response, only the caller-supplied hex encoding is
// accepted on the way in.
func (s *Server) handleRegisterWallet(w http.ResponseWriter, r *http.Request) {
	var req registerWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	key, err := hex.DecodeString(req.ViewingKeyHex)
	if err != nil {
		http.Error(w, "invalid viewingKey", http.StatusBadRequest)
		return
	}
	id, err := s.wallets.Register(wallet.ViewingKey(key), req.FromHeight)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, r, map[string]any{"id": id.String()})
}

func (s *Server) handleDeregisterWallet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid wallet id", http.StatusBadRequest)
		return
	}
	s.wallets.Deregister(id)
	w.WriteHeader(http.StatusNoContent)
}

// handleSubscribe upgrades to a WebSocket and streams every event
// published for this wallet's topic from this point on, one JSON frame
// per event; the wallet manager publishes one event per scanned block,
// carrying that block's relevant facts together. Events from before the
// connection was opened are not replayed.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "invalid wallet id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[api] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	metrics.WalletsConnected.Inc()
	defer metrics.WalletsConnected.Dec()

	noHistory := func(ctx context.Context, cursor int64) ([]storage.UTXORecord, int64, error) {
		return nil, cursor, nil
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	facts := subscription.Stream(ctx, s.bus, "wallet:"+id, noHistory)
	for fact := range facts {
		if err := conn.WriteJSON(fact); err != nil {
			return
		}
	}
}

// handleGetTransaction returns the persisted Success|PartialSuccess|
// Failure result for the transaction at a given block height and
// within-block index, the cursor pair replica.Fact keys every fact by.
func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	height, err1 := strconv.ParseUint(r.PathValue("height"), 10, 64)
	index, err2 := strconv.Atoi(r.PathValue("index"))
	if err1 != nil || err2 != nil {
		http.Error(w, "invalid height/index", http.StatusBadRequest)
		return
	}

	rec, err := s.store.TransactionByHeightAndIndex(r.Context(), height, index)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, r, rec)
}

func parseContractAddress(r *http.Request) ([32]byte, bool) {
	var addr [32]byte
	raw, err := hex.DecodeString(r.PathValue("address"))
	if err != nil || len(raw) != 32 {
		return addr, false
	}
	copy(addr[:], raw)
	return addr, true
}

// handleListContractActions returns every persisted Deploy/Call/Maintain
// action for a contract address, in application order.
func (s *Server) handleListContractActions(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseContractAddress(r)
	if !ok {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return
	}
	actions, err := s.store.ContractActionsByAddress(r.Context(), addr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, r, map[string]any{"actions": actions})
}

// handleLatestContractAction returns the most recently applied action for
// a contract address, the chain_state callers check before submitting a
// Call against stale state.
func (s *Server) handleLatestContractAction(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseContractAddress(r)
	if !ok {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return
	}
	action, err := s.store.LatestContractActionByAddress(r.Context(), addr)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, r, action)
}

// handleCollapsedUpdate serves the zswap collapsed update for [from, to),
// the range a syncing wallet walks instead of re-deriving every leaf
// individually. A cache hit in indexer/statecache skips re-deriving it
// from the live tree entirely; a miss derives it from the replica and
// populates the cache for the next caller covering the same range.
func (s *Server) handleCollapsedUpdate(w http.ResponseWriter, r *http.Request) {
	from, err1 := strconv.ParseUint(r.URL.Query().Get("from"), 10, 64)
	to, err2 := strconv.ParseUint(r.URL.Query().Get("to"), 10, 64)
	if err1 != nil || err2 != nil || to < from {
		http.Error(w, "invalid from/to range", http.StatusBadRequest)
		return
	}

	version := uint16(ledger.CurrentProtocolVersion)
	if update, ok := s.collapsed.Get(version, from, to); ok {
		s.writeJSON(w, r, update)
		return
	}

	update, err := s.replica.CollapsedUpdate(from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.collapsed.Put(version, update); err != nil {
		log.Printf("[api] failed to cache collapsed update [%d,%d): %v", from, to, err)
	}
	s.writeJSON(w, r, update)
}
