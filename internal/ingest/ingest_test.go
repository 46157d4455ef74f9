package ingest

import (
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/bijoymg2023/RESOFLY/internal/lepton"
	"github.com/bijoymg2023/RESOFLY/internal/types"
)

func TestDecodeFrame(t *testing.T) {
	variant := lepton.Lepton2
	raw := make([]byte, variant.FrameBytes())
	raw[0] = 0x12

	payload, err := cbor.Marshal(types.RawFrame{
		Type:      types.MessageTypeFrame,
		Seq:       7,
		Timestamp: 1234,
		Variant:   variant.Name,
		Width:     variant.Width,
		Height:    variant.Height,
		Data:      raw,
	})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	frame, ok := decodeFrame(payload, variant, 1)
	if !ok {
		t.Fatalf("decodeFrame returned ok=false")
	}
	if frame.Seq != 7 {
		t.Fatalf("unexpected seq: %d", frame.Seq)
	}
	if frame.Width != variant.Width || frame.Height != variant.Height {
		t.Fatalf("unexpected geometry: %dx%d", frame.Width, frame.Height)
	}
	if len(frame.Data) != variant.FrameBytes() {
		t.Fatalf("unexpected data length: %d", len(frame.Data))
	}
	if frame.Data[0] != 0x12 {
		t.Fatalf("unexpected data[0]: %#x", frame.Data[0])
	}
}

func TestDecodeFrameRejectsWrongType(t *testing.T) {
	payload, err := cbor.Marshal(types.RawFrame{Type: "telemetry"})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if _, ok := decodeFrame(payload, lepton.Lepton2, 1); ok {
		t.Fatalf("decodeFrame accepted wrong message type")
	}
}

func TestDecodeFrameRejectsShortData(t *testing.T) {
	variant := lepton.Lepton3
	payload, err := cbor.Marshal(types.RawFrame{
		Type:   types.MessageTypeFrame,
		Width:  variant.Width,
		Height: variant.Height,
		Data:   make([]byte, variant.FrameBytes()-1),
	})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if _, ok := decodeFrame(payload, variant, 1); ok {
		t.Fatalf("decodeFrame accepted truncated frame")
	}
}

func TestDecodeFrameRejectsGarbage(t *testing.T) {
	if _, ok := decodeFrame([]byte{0xff, 0x00, 0x01}, lepton.Lepton2, 1); ok {
		t.Fatalf("decodeFrame accepted garbage")
	}
}
