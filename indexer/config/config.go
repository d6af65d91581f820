// Package config loads indexer configuration from environment variables
// (with a .env file optionally layered underneath), mirroring the
// teacher's getRPCURL/getBatchSize getter idiom.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	NodeWebsocketURL string
	DataDir          string
	SQLitePath       string
	APIAddr          string
	BatchSize        int
	PollInterval     int // seconds
	WalletMasterKeyHex string
	NetworkID        uint8
}

// Load reads .env if present, then environment variables, falling back
// to sane standalone-deployment defaults for anything unset.
func Load() Config {
	godotenv.Load()

	return Config{
		NodeWebsocketURL:   getString("NODE_WS_URL", "ws://127.0.0.1:9944"),
		DataDir:            getString("DATA_DIR", "./data"),
		SQLitePath:         getString("SQLITE_PATH", "./data/indexer.db"),
		APIAddr:            getString("API_ADDR", ":8080"),
		BatchSize:          getInt("BATCH_SIZE", 64),
		PollInterval:       getInt("POLL_INTERVAL_SECONDS", 2),
		WalletMasterKeyHex: getString("WALLET_MASTER_KEY_HEX", ""),
		NetworkID:          uint8(getInt("NETWORK_ID", 0)),
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
