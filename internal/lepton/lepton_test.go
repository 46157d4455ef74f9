package lepton

import "testing"

func TestVariantGeometry(t *testing.T) {
	if got := Lepton2.FrameBytes(); got != 60*164 {
		t.Fatalf("lepton2 frame bytes: %d", got)
	}
	if got := Lepton3.FrameBytes(); got != 4*60*164 {
		t.Fatalf("lepton3 frame bytes: %d", got)
	}
	if Lepton2.Pixels() != Lepton2.Segments*PacketsPerSegment*PixelWordsPerPacket {
		t.Fatalf("lepton2 pixel count does not match stream payload")
	}
	if Lepton3.Pixels() != Lepton3.Segments*PacketsPerSegment*PixelWordsPerPacket {
		t.Fatalf("lepton3 pixel count does not match stream payload")
	}
	if Lepton3.VisualBytes() != 160*120*3 {
		t.Fatalf("lepton3 visual bytes: %d", Lepton3.VisualBytes())
	}
}

func TestVariantFor(t *testing.T) {
	v, err := VariantFor(3)
	if err != nil {
		t.Fatalf("VariantFor(3): %v", err)
	}
	if v.Name != "lepton3" {
		t.Fatalf("unexpected variant %q", v.Name)
	}
	if _, err := VariantFor(5); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}

func TestPacketFields(t *testing.T) {
	packet := make([]byte, PacketSize)
	packet[0] = 0x0F
	if !IsDiscard(packet) {
		t.Fatalf("discard marker not detected")
	}
	packet[0] = 0x00
	packet[1] = 37
	if IsDiscard(packet) {
		t.Fatalf("regular packet reported as discard")
	}
	if got := PacketNumber(packet); got != 37 {
		t.Fatalf("packet number: %d", got)
	}
}

func TestSegmentID(t *testing.T) {
	segment := make([]byte, Lepton3.SegmentBytes())
	segment[SegmentIDPacket*PacketSize] = 0x30 // segment 3
	if got := SegmentID(segment); got != 3 {
		t.Fatalf("segment id: %d", got)
	}
}
