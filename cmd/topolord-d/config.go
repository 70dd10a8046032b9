package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAddr             = "127.0.0.1:8090"
	defaultPollInterval     = time.Minute
	defaultSnapshotInterval = time.Hour
	defaultSnapshotKeep     = 24
	defaultWebAssetsMode    = "embedded"
)

type Config struct {
	DBPath           string
	Addr             string
	PollInterval     time.Duration
	InventoryPath    string
	RedisAddr        string
	SnapshotDir      string
	SnapshotInterval time.Duration
	SnapshotKeep     int
	WebAssetsMode    string
	WebDir           string
}

func LoadConfig(args []string) (Config, error) {
	// A .env next to the binary is the zero-flag way to configure a dev
	// daemon. Real env vars still win.
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	dbPath := envOrDefault("TOPOLORD_DB_PATH", filepath.Join(cwd, "topolord.db"))
	addr := addrFromEnv(defaultAddr)
	pollInterval := defaultPollInterval
	if v := os.Getenv("TOPOLORD_POLL_INTERVAL"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TOPOLORD_POLL_INTERVAL: %w", err)
		}
		if parsed <= 0 {
			return Config{}, errors.New("TOPOLORD_POLL_INTERVAL must be positive")
		}
		pollInterval = parsed
	}
	inventoryPath := os.Getenv("TOPOLORD_INVENTORY_PATH")
	redisAddr := os.Getenv("TOPOLORD_REDIS_ADDR")
	snapshotDir := os.Getenv("TOPOLORD_SNAPSHOT_DIR")
	snapshotInterval := defaultSnapshotInterval
	if v := os.Getenv("TOPOLORD_SNAPSHOT_INTERVAL"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TOPOLORD_SNAPSHOT_INTERVAL: %w", err)
		}
		snapshotInterval = parsed
	}
	snapshotKeep := defaultSnapshotKeep
	if v := os.Getenv("TOPOLORD_SNAPSHOT_KEEP"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TOPOLORD_SNAPSHOT_KEEP: %w", err)
		}
		snapshotKeep = parsed
	}
	webAssetsMode := envOrDefault("TOPOLORD_WEB_ASSETS_MODE", defaultWebAssetsMode)
	webDir := os.Getenv("TOPOLORD_WEB_DIR")

	flagSet := flag.NewFlagSet("topolord-d", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagDB := flagSet.String("db", dbPath, "path to SQLite database")
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagPollInterval := flagSet.String("poll-interval", pollInterval.String(), "discovery poll interval")
	flagInventory := flagSet.String("inventory", inventoryPath, "YAML inventory file for the static discovery provider")
	flagRedis := flagSet.String("redis", redisAddr, "redis address for the snapshot cache (empty disables)")
	flagSnapshotDir := flagSet.String("snapshot-dir", snapshotDir, "directory for topology snapshot archives (empty disables)")
	flagWebAssets := flagSet.String("web-assets", webAssetsMode, "web assets mode: embedded|fs|off")
	flagWebDir := flagSet.String("web-dir", webDir, "web assets directory when web-assets=fs")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	pollIntervalParsed, err := time.ParseDuration(*flagPollInterval)
	if err != nil {
		return Config{}, fmt.Errorf("invalid poll interval: %w", err)
	}
	if pollIntervalParsed <= 0 {
		return Config{}, errors.New("poll interval must be positive")
	}

	config := Config{
		DBPath:           resolvePath(*flagDB, cwd),
		Addr:             strings.TrimSpace(*flagAddr),
		PollInterval:     pollIntervalParsed,
		InventoryPath:    resolvePath(*flagInventory, cwd),
		RedisAddr:        strings.TrimSpace(*flagRedis),
		SnapshotDir:      resolvePath(*flagSnapshotDir, cwd),
		SnapshotInterval: snapshotInterval,
		SnapshotKeep:     snapshotKeep,
		WebAssetsMode:    normalizeWebAssetsMode(*flagWebAssets),
		WebDir:           strings.TrimSpace(*flagWebDir),
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}

	if config.WebAssetsMode == "fs" {
		if config.WebDir == "" {
			return Config{}, errors.New("web-assets=fs requires web-dir")
		}
		config.WebDir = resolvePath(config.WebDir, cwd)
	}

	if config.WebAssetsMode != "embedded" && config.WebAssetsMode != "fs" && config.WebAssetsMode != "off" {
		return Config{}, fmt.Errorf("unsupported web-assets mode: %s", config.WebAssetsMode)
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("TOPOLORD_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("TOPOLORD_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}

func normalizeWebAssetsMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "embedded":
		return "embedded"
	case "fs", "dir", "directory":
		return "fs"
	case "off", "disabled", "none":
		return "off"
	default:
		return strings.ToLower(strings.TrimSpace(mode))
	}
}
