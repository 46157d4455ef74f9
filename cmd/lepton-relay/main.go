// lepton-relay receives raw frames pushed by lepton-stream over the
// network, renders them and serves the preview UI. It carries the
// heavy lifting when the capture host is a small board.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bijoymg2023/RESOFLY/internal/colorize"
	"github.com/bijoymg2023/RESOFLY/internal/config"
	"github.com/bijoymg2023/RESOFLY/internal/ingest"
	"github.com/bijoymg2023/RESOFLY/internal/lepton"
	"github.com/bijoymg2023/RESOFLY/internal/server"
	"github.com/bijoymg2023/RESOFLY/internal/sink"
	"github.com/bijoymg2023/RESOFLY/internal/stats"
	"github.com/bijoymg2023/RESOFLY/internal/types"
)

func main() {
	var (
		listen   = flag.String("listen", "tcp://*:5005", "ZMQ endpoint to receive raw frames on")
		video    = flag.String("video", "", "v4l2loopback output device (empty disables)")
		tl       = flag.Int("tl", 3, "Lepton generation (2 or 3)")
		cm       = flag.String("cm", "ironblack", "Colormap: ironblack, rainbow or grayscale")
		rangeMin = flag.Int("min", colorize.AutoRange, "Fixed lower sensor count for scaling (-1 for auto)")
		rangeMax = flag.Int("max", colorize.AutoRange, "Fixed upper sensor count for scaling (-1 for auto)")
		port     = flag.Int("port", 8888, "HTTP port for the preview UI")
		logEvery = flag.Int("log-every", 100, "Log every Nth ingest problem")
	)
	flag.Parse()

	cfg := config.AppConfig{
		ListenEndpoint: *listen,
		VideoDevice:    *video,
		TrueLepton:     *tl,
		Colormap:       *cm,
		RangeMin:       *rangeMin,
		RangeMax:       *rangeMax,
		Port:           *port,
		LogEvery:       *logEvery,
	}

	variant, err := lepton.VariantFor(cfg.TrueLepton)
	if err != nil {
		log.Fatalf("invalid -tl: %v", err)
	}
	palette, err := colorize.PaletteByName(cfg.Colormap)
	if err != nil {
		log.Fatalf("invalid -cm: %v", err)
	}
	renderer := colorize.New(variant, palette,
		colorize.WithRangeMin(cfg.RangeMin),
		colorize.WithRangeMax(cfg.RangeMax))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	frames, err := ingest.StreamWithLogEvery(ctx, cfg.ListenEndpoint, variant, cfg.LogEvery)
	if err != nil {
		log.Fatalf("failed to start ingest on %s: %v", cfg.ListenEndpoint, err)
	}
	log.Printf("receiving raw frames on %s", cfg.ListenEndpoint)

	var v4l2 *sink.V4L2
	if cfg.VideoDevice != "" {
		v4l2, err = sink.OpenV4L2(cfg.VideoDevice, variant.Width, variant.Height)
		if err != nil {
			log.Fatalf("open video device %s: %v", cfg.VideoDevice, err)
		}
		defer v4l2.Close()
		log.Printf("streaming %dx%d RGB24 to %s", variant.Width, variant.Height, cfg.VideoDevice)
	}

	uiMessages := make(chan any, 16)
	tracker := stats.NewTracker()
	var framesDropped atomic.Uint64
	var latestMu sync.Mutex
	var latest types.PreviewFrame

	statusFn := func() map[string]any {
		metrics := tracker.Snapshot()
		metrics["ingest_decode_failures_total"] = ingest.DecodeFailures()
		metrics["frames_dropped_total"] = framesDropped.Load()
		return map[string]any{
			"camera":  variant.Name,
			"metrics": metrics,
		}
	}
	snapshotFn := func() any {
		latestMu.Lock()
		defer latestMu.Unlock()
		if latest.Seq == 0 {
			return nil
		}
		return latest
	}

	go func() {
		log.Printf("preview UI at http://localhost:%d", cfg.Port)
		if err := server.Run(ctx, cfg, uiMessages, statusFn, snapshotFn); err != nil {
			log.Printf("server stopped: %v", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Printf("relay stats: frames=%d fps=%.1f decode_failures=%d dropped=%d",
					tracker.Frames(), tracker.FPS(), ingest.DecodeFailures(), framesDropped.Load())
			}
		}
	}()

	visual := make([]byte, variant.VisualBytes())
	for frame := range frames {
		tracker.Observe(frame.Data)
		renderer.Render(frame.Data, visual)

		if v4l2 != nil {
			if err := v4l2.Write(visual); err != nil {
				log.Fatalf("video write failed: %v", err)
			}
		}

		preview := types.PreviewFrame{
			Type:   types.MessageTypePreview,
			Seq:    frame.Seq,
			Width:  frame.Width,
			Height: frame.Height,
			Pixels: append([]byte(nil), visual...),
		}
		latestMu.Lock()
		latest = preview
		latestMu.Unlock()
		select {
		case uiMessages <- preview:
		default:
			framesDropped.Add(1)
		}
	}
}
