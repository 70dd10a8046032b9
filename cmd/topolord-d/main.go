package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/topolord/topolord/pkg/api"
	"github.com/topolord/topolord/pkg/blob"
	"github.com/topolord/topolord/pkg/discovery"
	"github.com/topolord/topolord/pkg/reports"
	"github.com/topolord/topolord/pkg/store"
	redisstore "github.com/topolord/topolord/pkg/store/redis"
	"github.com/topolord/topolord/web"
)

func main() {
	fmt.Println(`{"level":"info","msg":"system_started","component":"topolord-d"}`)

	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Printf(`{"level":"fatal","msg":"invalid_config","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_init_store","error":"%v"}`+"\n", err)
		os.Exit(1)
	}
	fmt.Printf(`{"level":"info","msg":"store_initialized","path":"%s"}`+"\n", cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := api.NewServer(st, cfg.Addr)

	var snapshotCache *redisstore.SnapshotCache
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		snapshotCache = redisstore.NewSnapshotCache(rdb, 30*time.Second)
		srv.SetGraphCache(snapshotCache)
		fmt.Printf(`{"level":"info","msg":"redis_cache_enabled","addr":"%s"}`+"\n", cfg.RedisAddr)
	}

	switch cfg.WebAssetsMode {
	case "embedded":
		assets, err := web.Assets()
		if err != nil {
			fmt.Printf(`{"level":"fatal","msg":"failed_to_load_web_assets","error":"%v"}`+"\n", err)
			os.Exit(1)
		}
		srv.SetStaticFS(assets)
	case "fs":
		srv.SetStaticFS(os.DirFS(cfg.WebDir))
	}

	poller := discovery.NewPoller(st, cfg.PollInterval, holderID())
	poller.SetLeaseStore(st)
	if snapshotCache != nil {
		poller.SetCacheInvalidator(snapshotCache)
	}
	if cfg.InventoryPath != "" {
		poller.Register(discovery.NewStaticProvider("static", cfg.InventoryPath))
		fmt.Printf(`{"level":"info","msg":"static_provider_registered","path":"%s"}`+"\n", cfg.InventoryPath)
	}
	go poller.Start(ctx)

	if cfg.SnapshotDir != "" {
		gen, err := reports.NewExportGenerator(reports.ExportFormatYAML, st)
		if err != nil {
			fmt.Printf(`{"level":"fatal","msg":"failed_to_init_snapshots","error":"%v"}`+"\n", err)
			os.Exit(1)
		}
		source := func(ctx context.Context) (io.Reader, error) {
			return gen.Generate(ctx, reports.ExportParams{})
		}
		arch := blob.NewArchiver(blob.NewLocalBlobStore(cfg.SnapshotDir), source, cfg.SnapshotInterval, cfg.SnapshotKeep)
		go arch.Start(ctx)
		fmt.Printf(`{"level":"info","msg":"snapshot_archiver_enabled","dir":"%s"}`+"\n", cfg.SnapshotDir)
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf(`{"level":"info","msg":"api_listening","addr":"%s"}`+"\n", cfg.Addr)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		fmt.Printf(`{"level":"info","msg":"shutdown_initiated","signal":"%s"}`+"\n", sig)
	case err := <-errCh:
		fmt.Printf(`{"level":"error","msg":"api_server_failed","error":"%v"}`+"\n", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_stop_api","error":"%v"}`+"\n", err)
	}

	if err := st.Close(); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_close_store","error":"%v"}`+"\n", err)
	} else {
		fmt.Println(`{"level":"info","msg":"store_closed"}`)
	}

	fmt.Println(`{"level":"info","msg":"shutdown_complete"}`)
}

// holderID identifies this daemon in the discovery lease table.
func holderID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "topolord"
	}
	return host + "-" + uuid.NewString()[:8]
}
