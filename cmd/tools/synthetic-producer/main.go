// Command synthetic-producer serves synthetic detector frames over a
// websocket so the viewer can be exercised without real hardware.
//
// Usage:
//
//	go run ./cmd/tools/synthetic-producer [flags]
//
// Flags:
//
//	-addr      Listen address (default: localhost:8765)
//	-mode      chunk or dense (default: chunk)
//	-width     Image width (default: 160)
//	-height    Image height (default: 160)
//	-chunks    Chunks per frame in chunk mode (default: 32)
//	-iters     Results per frame in dense mode (default: 4)
//	-interval  Delay between data messages (default: 0)
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tailscale.com/tsweb"

	"github.com/banshee-data/stemview/internal/httputil"
	"github.com/banshee-data/stemview/internal/imagesource"
	"github.com/banshee-data/stemview/internal/producer"
)

func main() {
	addr := flag.String("addr", "localhost:8765", "Listen address")
	mode := flag.String("mode", string(imagesource.ModeChunk), "Stream mode: chunk or dense")
	width := flag.Int("width", producer.DefaultWidth, "Image width")
	height := flag.Int("height", producer.DefaultHeight, "Image height")
	chunks := flag.Int("chunks", producer.DefaultChunks, "Chunks per frame in chunk mode")
	iters := flag.Int("iters", producer.DefaultIterations, "Results per frame in dense mode")
	value := flag.Float64("value", 1.0, "Pixel value")
	interval := flag.Duration("interval", 0, "Delay between data messages")
	flag.Parse()

	cfg := producer.DefaultConfig()
	cfg.Mode = imagesource.StreamMode(*mode)
	cfg.Size = imagesource.ImageSize{Width: *width, Height: *height}
	cfg.Chunks = *chunks
	cfg.Iterations = *iters
	cfg.Value = *value
	cfg.Interval = *interval

	srv, err := producer.NewServer(cfg)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", srv)
	tsweb.Debugger(mux).HandleFunc("producer", "synthetic producer counters", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, srv.Stats())
	})

	log.Printf("Starting synthetic producer on ws://%s/ws", *addr)
	log.Printf("Configuration: %s mode, %dx%d, %d chunks, %d iterations", cfg.Mode, *width, *height, cfg.Chunks, cfg.Iterations)

	server := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("Shutting down...")
	server.Close()
}
