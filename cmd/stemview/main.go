// Command stemview connects to a data producer, renders the streamed raster
// with a selection overlay, and serves the debug pages for it.
//
// Usage:
//
//	go run ./cmd/stemview -config viewer.yaml
//
// The debug pages (/debug/viewer, /debug/raster.png, /debug/heatmap, ...)
// listen on the configured debug_listen address.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/stemview/internal/config"
	"github.com/banshee-data/stemview/internal/fsutil"
	"github.com/banshee-data/stemview/internal/version"
	"github.com/banshee-data/stemview/internal/viewer"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON or YAML viewer config (defaults are used when empty)")
	listen      = flag.String("listen", "", "Debug listen address (overrides debug_listen)")
	url         = flag.String("url", "", "Producer websocket URL (overrides transport_url)")
	channel     = flag.String("channel", "", "Channel to subscribe to (overrides channel)")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(fsys fsutil.FileSystem) (*config.ViewerConfig, error) {
	cfg := config.DefaultViewerConfig()
	if *configPath != "" {
		loaded, err := config.LoadViewerConfig(fsys, *configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.DebugListen = listen
	}
	if *url != "" {
		cfg.TransportURL = url
	}
	if *channel != "" {
		cfg.Channel = channel
	}
	return cfg, cfg.Validate()
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(fsutil.OSFileSystem{})
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	v, err := viewer.New(cfg, viewer.Options{})
	if err != nil {
		log.Fatalf("Failed to create viewer: %v", err)
	}
	defer v.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	v.AttachAdminRoutes(mux)
	server := &http.Server{Addr: cfg.GetDebugListen(), Handler: mux}
	go func() {
		log.Printf("Debug server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Debug server failed: %v", err)
			stop()
		}
	}()

	log.Printf("%s connecting to %s (channel %s)", version.String(), cfg.GetTransportURL(), cfg.GetChannel())
	ready, closed, err := v.Start(ctx)
	switch {
	case errors.Is(err, viewer.ErrNotAuthenticated):
		log.Printf("No authenticated session, streaming disabled")
	case err != nil:
		log.Fatalf("Failed to start viewer: %v", err)
	}

	select {
	case <-ready:
		log.Printf("Subscribed, waiting for data")
	case <-closed:
		log.Printf("Connection closed before subscribing")
	case <-ctx.Done():
	}
	select {
	case <-closed:
		log.Printf("Connection closed")
	case <-ctx.Done():
	}

	log.Printf("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Debug server shutdown: %v", err)
	}
	if err := v.Close(); err != nil {
		log.Printf("Viewer close: %v", err)
	}
}
