package main

import (
	"context"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/api"
	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/config"
	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/eventbus"
	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/node"
	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/replica"
	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/statecache"
	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/storage"
	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/wallet"
	"github.com/midnight-ntwrk/ledger-indexer-core/internal/metrics"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/dust"
)

func main() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	store, err := storage.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to open sqlite store: %v", err)
	}
	defer store.Close()

	collapsedCache, err := statecache.Open(cfg.DataDir + "/statecache")
	if err != nil {
		log.Fatalf("Failed to open collapsed-update cache: %v", err)
	}
	defer collapsedCache.Close()

	watermark, err := store.Watermark(ctx)
	if err != nil {
		log.Fatalf("Failed to read watermark: %v", err)
	}
	log.Printf("[indexer] resuming from height %d", watermark)

	params := ledger.LedgerParameters{
		MaxBlockSize:   4 << 20,
		MaxSegments:    256,
		DustParameters: dust.Parameters{MaxValue: 1 << 40},
	}
	rep := replica.New(params)

	bus := eventbus.New()

	masterKey := make([]byte, 32)
	if cfg.WalletMasterKeyHex != "" {
		decoded, err := hex.DecodeString(cfg.WalletMasterKeyHex)
		if err != nil || len(decoded) != 32 {
			log.Fatalf("WALLET_MASTER_KEY_HEX must be 32 hex-encoded bytes")
		}
		copy(masterKey, decoded)
	}
	wallets, err := wallet.NewManager(masterKey, bus)
	if err != nil {
		log.Fatalf("Failed to init wallet manager: %v", err)
	}

	follower := node.NewFollower(ctx, cfg.NodeWebsocketURL, node.ProtocolVersion(uint32(ledger.CurrentProtocolVersion)))
	follower.Start()
	defer follower.Stop()

	// errgroup supervises the two long-lived loops (block consumption and
	// the HTTP server); neither loop's own errors are fatal to the other,
	// so both log and continue rather than returning, but the group still
	// gives us one Wait() that drains both goroutines on shutdown.
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Println("[indexer] block consumer starting...")
		for {
			select {
			case <-gctx.Done():
				return nil
			case b, ok := <-follower.Blocks():
				if !ok {
					return nil
				}
				facts, err := rep.ApplyBlock(b)
				if err != nil {
					log.Printf("[indexer] failed to apply block %d: %v", b.Height, err)
					continue
				}
				if err := store.SaveFacts(gctx, b.Height, b.Timestamp, rep.StateRoot(), facts); err != nil {
					log.Printf("[indexer] failed to persist facts for block %d: %v", b.Height, err)
					continue
				}
				if err := wallets.ScanBatch(gctx, b.Height, facts); err != nil {
					log.Printf("[indexer] wallet scan failed for block %d: %v", b.Height, err)
				}
				metrics.BlocksApplied.Inc()
				metrics.ReplicaHeight.Set(float64(rep.Height()))
				if rep.Height() >= follower.LatestHeight() {
					metrics.CaughtUp.Set(1)
				} else {
					metrics.CaughtUp.Set(0)
				}
			}
		}
	})

	mux := http.NewServeMux()
	server := api.NewServer(rep, store, follower.LatestHeight, bus, wallets, collapsedCache)
	server.RegisterRoutes(mux)

	httpServer := &http.Server{Addr: cfg.APIAddr, Handler: mux}
	group.Go(func() error {
		log.Printf("[http] listening on %s", cfg.APIAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[http] error: %v", err)
		}
		return nil
	})

	<-ctx.Done()
	httpServer.Close()
	group.Wait()
	log.Println("Shutdown complete")
}
