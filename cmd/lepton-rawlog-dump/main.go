// lepton-rawlog-dump inspects raw frame logs written by
// lepton-stream. It prints record metadata and pixel statistics and
// can export rendered frames as PPM images.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/bijoymg2023/RESOFLY/internal/colorize"
	"github.com/bijoymg2023/RESOFLY/internal/lepton"
	"github.com/bijoymg2023/RESOFLY/internal/output"
	"github.com/bijoymg2023/RESOFLY/internal/stats"
	"github.com/bijoymg2023/RESOFLY/internal/types"
)

func main() {
	var (
		path      = flag.String("path", "", "Path to rawlog .bin file")
		limit     = flag.Int("limit", 1, "Number of records to dump (0 for all)")
		exportDir = flag.String("export", "", "Directory to export rendered frames to (empty disables)")
		cm        = flag.String("cm", "ironblack", "Colormap used for exported frames")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("path is required")
	}

	palette, err := colorize.PaletteByName(*cm)
	if err != nil {
		log.Fatalf("invalid -cm: %v", err)
	}

	reader, err := output.OpenRawLog(*path)
	if err != nil {
		log.Fatalf("open rawlog: %v", err)
	}
	defer reader.Close()

	count := 0
	for {
		if *limit > 0 && count >= *limit {
			return
		}
		record, err := reader.Next()
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Fatalf("read record: %v", err)
		}

		var frame types.RawFrame
		if err := cbor.Unmarshal(record.Payload, &frame); err != nil {
			log.Printf("record %d: CBOR decode error: %v", record.Index, err)
			continue
		}

		s := stats.Measure(frame.Data)
		log.Printf("record %d timestamp=%s seq=%d variant=%s size=%d min=%d max=%d mean=%.1f",
			record.Index,
			record.Timestamp.Format(time.RFC3339Nano),
			frame.Seq,
			frame.Variant,
			len(frame.Data),
			s.Min, s.Max, s.Mean,
		)

		if *exportDir != "" {
			if err := export(*exportDir, record.Index, frame, palette); err != nil {
				log.Printf("record %d: export failed: %v", record.Index, err)
			}
		}
		count++
	}
}

func export(dir string, index int, frame types.RawFrame, palette *colorize.Palette) error {
	variant, err := variantFor(frame)
	if err != nil {
		return err
	}
	if len(frame.Data) != variant.FrameBytes() {
		return fmt.Errorf("frame is %d bytes, want %d", len(frame.Data), variant.FrameBytes())
	}
	visual := make([]byte, variant.VisualBytes())
	colorize.New(variant, palette).Render(frame.Data, visual)
	name := fmt.Sprintf("frame_%06d", index)
	path, err := output.WriteSnapshot(dir, name, variant.Width, variant.Height, visual)
	if err != nil {
		return err
	}
	log.Printf("record %d exported to %s", index, path)
	return nil
}

func variantFor(frame types.RawFrame) (lepton.Variant, error) {
	for _, v := range []lepton.Variant{lepton.Lepton2, lepton.Lepton3} {
		if frame.Variant == v.Name {
			return v, nil
		}
	}
	return lepton.Variant{}, fmt.Errorf("unknown camera variant %q", frame.Variant)
}
