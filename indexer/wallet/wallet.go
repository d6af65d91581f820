// Package wallet manages per-wallet viewing-key registrations and the
// worker pool that scans newly-applied blocks for notes relevant to each
// registered wallet.
package wallet

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/eventbus"
	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/replica"
	"github.com/midnight-ntwrk/ledger-indexer-core/internal/metrics"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/crypto"
)

// ViewingKey is a wallet's shielded viewing key, held only in its
// AES-GCM-sealed form once registered; Manager.decrypt is called only
// inside a scan batch's critical section.
type ViewingKey []byte

// Wallet is one registered scan target.
type Wallet struct {
	ID            uuid.UUID
	sealedKey     []byte
	nonce         []byte
	lastScanned   uint64
	mu            sync.Mutex // serializes scans for this wallet; batches never overlap
}

// Manager holds all registered wallets and bounds how many scan batches
// run concurrently across the whole pool, the locked-batched-worker-pool
// design named for this component.
type Manager struct {
	aead    cipher.AEAD
	bus     *eventbus.Bus
	sem     *semaphore.Weighted

	mu      sync.RWMutex
	wallets map[uuid.UUID]*Wallet
}

const maxConcurrentScans = 16

// NewManager builds a Manager whose viewing-key storage is sealed under
// masterKey (32 bytes, AES-256-GCM).
func NewManager(masterKey []byte, bus *eventbus.Bus) (*Manager, error) {
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("wallet: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("wallet: init gcm: %w", err)
	}
	return &Manager{
		aead:    aead,
		bus:     bus,
		sem:     semaphore.NewWeighted(maxConcurrentScans),
		wallets: make(map[uuid.UUID]*Wallet),
	}, nil
}

// Register seals key and creates a new wallet starting its scan from
// fromHeight, returning the id clients use to subscribe for relevant
// notes.
func (m *Manager) Register(key ViewingKey, fromHeight uint64) (uuid.UUID, error) {
	nonce := make([]byte, m.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return uuid.Nil, fmt.Errorf("wallet: generate nonce: %w", err)
	}
	sealed := m.aead.Seal(nil, nonce, key, nil)

	id := uuid.New()
	m.mu.Lock()
	m.wallets[id] = &Wallet{ID: id, sealedKey: sealed, nonce: nonce, lastScanned: fromHeight}
	m.mu.Unlock()
	return id, nil
}

func (m *Manager) Deregister(id uuid.UUID) {
	m.mu.Lock()
	delete(m.wallets, id)
	m.mu.Unlock()
}

var ErrUnknownWallet = errors.New("wallet: unknown wallet id")

func (m *Manager) decrypt(w *Wallet) (ViewingKey, error) {
	return m.aead.Open(nil, w.nonce, w.sealedKey, nil)
}

// ScanBatch runs relevance scanning for every registered wallet against
// the facts from one applied block, bounded to maxConcurrentScans
// parallel wallet scans and serialized per wallet so a slow scan never
// runs two batches for the same wallet at once.
func (m *Manager) ScanBatch(ctx context.Context, height uint64, facts []replica.Fact) error {
	start := time.Now()
	defer func() { metrics.WalletScanBatch.Observe(time.Since(start).Seconds()) }()

	m.mu.RLock()
	wallets := make([]*Wallet, 0, len(m.wallets))
	for _, w := range m.wallets {
		wallets = append(wallets, w)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, w := range wallets {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		wg.Add(1)
		go func(w *Wallet) {
			defer wg.Done()
			defer m.sem.Release(1)
			w.mu.Lock()
			defer w.mu.Unlock()
			m.scanOne(w, height, facts)
		}(w)
	}
	wg.Wait()
	return nil
}

func (m *Manager) scanOne(w *Wallet, height uint64, facts []replica.Fact) {
	if height < w.lastScanned {
		return
	}
	key, err := m.decrypt(w)
	if err != nil {
		log.Printf("[wallet] failed to decrypt viewing key for %s: %v", w.ID, err)
		return
	}
	defer zero(key)

	relevant, err := filterRelevant(key, facts)
	if err != nil {
		log.Printf("[wallet] failed to build note-decryption cipher for %s: %v", w.ID, err)
		return
	}
	if len(relevant) > 0 {
		m.bus.Publish(eventbus.Event{Topic: "wallet:" + w.ID.String(), Data: relevant})
	}
	w.lastScanned = height
}

// addressForViewingKey derives the unshielded owner address a viewing key
// controls, domain-separated from every other digest derivation in the
// ledger so no other key material can collide with it.
func addressForViewingKey(key ViewingKey) [32]byte {
	return crypto.Hash("midnight/wallet-address", key)
}

// noteDecryptionKey derives the symmetric key a viewing key uses to open
// shielded-output ciphertexts, distinct from the address derivation above
// so learning one never reveals the other.
func noteDecryptionKey(key ViewingKey) []byte {
	d := crypto.Hash("midnight/zswap/note-key", key)
	return d[:]
}

// filterRelevant is the relevant(viewing_key) predicate: an unshielded
// UTXO is relevant when its owner matches the address this key controls;
// a shielded output is relevant when its ciphertext opens under this
// key's note-decryption key. Facts that fail either test, including every
// fact belonging to a different wallet's key, are dropped.
func filterRelevant(key ViewingKey, facts []replica.Fact) ([]replica.Fact, error) {
	address := addressForViewingKey(key)

	block, err := aes.NewCipher(noteDecryptionKey(key))
	if err != nil {
		return nil, fmt.Errorf("wallet: init note cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("wallet: init note gcm: %w", err)
	}

	var out []replica.Fact
	for _, f := range facts {
		switch f.Kind {
		case replica.FactUTXOCreated, replica.FactUTXOSpent:
			utxo, ok := f.Data.(replica.UTXOFact)
			if ok && utxo.Owner == address {
				out = append(out, f)
			}
		case replica.FactZswapOutput:
			output, ok := f.Data.(ledger.ShieldedOutput)
			if ok && noteOpensUnder(aead, output.Ciphertext) {
				out = append(out, f)
			}
		}
	}
	return out, nil
}

// noteOpensUnder reports whether ciphertext (nonce-prefixed AEAD sealed
// note detail) decrypts cleanly under aead; a wallet's viewing key is
// relevant to a shielded output exactly when this trial decryption
// succeeds.
func noteOpensUnder(aead cipher.AEAD, ciphertext []byte) bool {
	if len(ciphertext) < aead.NonceSize() {
		return false
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	_, err := aead.Open(nil, nonce, sealed, nil)
	return err == nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
