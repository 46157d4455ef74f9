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

	"github.com/fxamacker/cbor/v2"

	"github.com/bijoymg2023/RESOFLY/internal/capture"
	"github.com/bijoymg2023/RESOFLY/internal/colorize"
	"github.com/bijoymg2023/RESOFLY/internal/config"
	"github.com/bijoymg2023/RESOFLY/internal/forward"
	"github.com/bijoymg2023/RESOFLY/internal/framesync"
	"github.com/bijoymg2023/RESOFLY/internal/lepton"
	"github.com/bijoymg2023/RESOFLY/internal/output"
	"github.com/bijoymg2023/RESOFLY/internal/pipeline"
	"github.com/bijoymg2023/RESOFLY/internal/server"
	"github.com/bijoymg2023/RESOFLY/internal/simulator"
	"github.com/bijoymg2023/RESOFLY/internal/sink"
	"github.com/bijoymg2023/RESOFLY/internal/spibus"
	"github.com/bijoymg2023/RESOFLY/internal/stats"
	"github.com/bijoymg2023/RESOFLY/internal/types"
)

func main() {
	var (
		device          = flag.String("device", "/dev/spidev0.0", "SPI device the camera is wired to")
		video           = flag.String("video", "/dev/video1", "v4l2loopback output device (empty disables)")
		tl              = flag.Int("tl", 3, "Lepton generation (2 or 3)")
		cm              = flag.String("cm", "ironblack", "Colormap: ironblack, rainbow or grayscale")
		ss              = flag.Int("ss", spibus.DefaultSpeedMHz, "SPI clock in MHz (10-30)")
		rangeMin        = flag.Int("min", colorize.AutoRange, "Fixed lower sensor count for scaling (-1 for auto)")
		rangeMax        = flag.Int("max", colorize.AutoRange, "Fixed upper sensor count for scaling (-1 for auto)")
		debug           = flag.Bool("debug", false, "Run against a simulated camera")
		debugRate       = flag.Float64("debug-rate", 8.7, "Simulated frame rate (frames/sec)")
		forwardEndpoint = flag.String("forward", "", "ZMQ endpoint of a relay to push raw frames to")
		port            = flag.Int("port", 8888, "HTTP port for the preview UI")
		rawLogEnabled   = flag.Bool("raw-log", false, "Write raw frames to disk")
		rawLogDir       = flag.String("raw-log-dir", "rawlog", "Directory for raw frame logs")
		logEvery        = flag.Int("log-every", 100, "Log every Nth transient capture problem")
		stallTimeout    = flag.Duration("stall-timeout", pipeline.DefaultStallTimeout, "Sink stall timeout before the bus is torn down")
		resyncThreshold = flag.Int("resync-threshold", framesync.DefaultResyncThreshold, "Failed reads before the bus is reopened")
	)
	flag.Parse()

	cfg := config.AppConfig{
		Device:          *device,
		VideoDevice:     *video,
		TrueLepton:      *tl,
		Colormap:        *cm,
		SpeedMHz:        *ss,
		RangeMin:        *rangeMin,
		RangeMax:        *rangeMax,
		Debug:           *debug,
		DebugFrameRate:  *debugRate,
		ForwardEndpoint: *forwardEndpoint,
		Port:            *port,
		RawLogDir:       *rawLogDir,
		LogEvery:        *logEvery,
		StallTimeout:    *stallTimeout,
		ResyncThreshold: *resyncThreshold,
	}

	if cfg.LogEvery < 1 {
		cfg.LogEvery = 1
	}

	variant, err := lepton.VariantFor(cfg.TrueLepton)
	if err != nil {
		log.Fatalf("invalid -tl: %v", err)
	}
	palette, err := colorize.PaletteByName(cfg.Colormap)
	if err != nil {
		log.Fatalf("invalid -cm: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var dial capture.Dial
	if cfg.Debug {
		dial = func() (capture.Session, error) {
			return simulator.New(variant, cfg.DebugFrameRate), nil
		}
		log.Printf("using simulated %s camera at %.1f fps", variant.Name, cfg.DebugFrameRate)
	} else {
		dial = func() (capture.Session, error) {
			return spibus.Open(cfg.Device, cfg.SpeedMHz)
		}
	}
	source := capture.New(dial, variant,
		framesync.WithResyncThreshold(cfg.ResyncThreshold))

	renderer := colorize.New(variant, palette,
		colorize.WithRangeMin(cfg.RangeMin),
		colorize.WithRangeMax(cfg.RangeMax))

	var sinks sink.Multi
	if cfg.VideoDevice != "" {
		v4l2, err := sink.OpenV4L2(cfg.VideoDevice, variant.Width, variant.Height)
		if err != nil {
			log.Fatalf("open video device %s: %v", cfg.VideoDevice, err)
		}
		defer v4l2.Close()
		sinks = append(sinks, v4l2)
		log.Printf("streaming %dx%d RGB24 to %s", variant.Width, variant.Height, cfg.VideoDevice)
	}

	uiMessages := make(chan any, 16)
	var previewSeq atomic.Uint64
	var latestMu sync.Mutex
	var latest types.PreviewFrame
	sinks = append(sinks, sink.Func(func(frame []byte) error {
		preview := types.PreviewFrame{
			Type:   types.MessageTypePreview,
			Seq:    previewSeq.Add(1),
			Width:  variant.Width,
			Height: variant.Height,
			Pixels: append([]byte(nil), frame...),
		}
		latestMu.Lock()
		latest = preview
		latestMu.Unlock()
		select {
		case uiMessages <- preview:
		default:
		}
		return nil
	}))

	tracker := stats.NewTracker()
	taps := []func(raw []byte){tracker.Observe}

	var publisher *forward.Publisher
	if cfg.ForwardEndpoint != "" {
		publisher, err = forward.NewPublisher(cfg.ForwardEndpoint, variant)
		if err != nil {
			log.Fatalf("start forwarding: %v", err)
		}
		defer publisher.Close()
		taps = append(taps, publisher.Publish)
		log.Printf("forwarding raw frames to %s", cfg.ForwardEndpoint)
	}

	if *rawLogEnabled {
		writer, err := output.NewRawLogWriter(cfg.RawLogDir, "raw_frames")
		if err != nil {
			log.Fatalf("failed to start raw log: %v", err)
		}
		go func() {
			<-ctx.Done()
			if err := writer.Close(); err != nil {
				log.Printf("raw log close failed: %v", err)
			}
		}()
		var rawSeq uint64
		var writeFailures int
		taps = append(taps, func(raw []byte) {
			rawSeq++
			payload, err := cbor.Marshal(types.RawFrame{
				Type:      types.MessageTypeFrame,
				Seq:       rawSeq,
				Timestamp: time.Now().UnixNano(),
				Variant:   variant.Name,
				Width:     variant.Width,
				Height:    variant.Height,
				Data:      raw,
			})
			if err != nil {
				log.Printf("raw log encode failed: %v", err)
				return
			}
			if err := writer.Record(payload); err != nil {
				writeFailures++
				if writeFailures%cfg.LogEvery == 0 {
					log.Printf("raw log write failed: %v", err)
				}
			}
		})
	}

	pipe := pipeline.New(source, renderer, sinks, variant.VisualBytes(),
		pipeline.WithStallTimeout(cfg.StallTimeout),
		pipeline.WithRawTap(func(raw []byte) {
			for _, tap := range taps {
				tap(raw)
			}
		}))

	statusFn := func() map[string]any {
		metrics := tracker.Snapshot()
		pipeStats := pipe.Stats()
		metrics["frames_delivered_total"] = pipeStats.Frames
		metrics["sink_stalls_total"] = pipeStats.Stalls
		syncStats := source.Stats()
		metrics["resyncs_total"] = syncStats.Resyncs
		metrics["bus_reopens_total"] = syncStats.Reopens
		metrics["frame_restarts_total"] = syncStats.Restarts
		if publisher != nil {
			metrics["forward_published_total"] = publisher.Published()
			metrics["forward_dropped_total"] = publisher.Dropped()
		}
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
				syncStats := source.Stats()
				log.Printf("capture stats: frames=%d fps=%.1f resyncs=%d reopens=%d restarts=%d stalls=%d",
					tracker.Frames(), tracker.FPS(),
					syncStats.Resyncs, syncStats.Reopens, syncStats.Restarts,
					pipe.Stats().Stalls)
			}
		}
	}()

	if err := pipe.Run(ctx); err != nil {
		log.Fatalf("capture pipeline failed: %v", err)
	}
}
