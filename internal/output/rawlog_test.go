package output

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestRawLogRoundTrip(t *testing.T) {
	dir := t.TempDir()

	w, err := NewRawLogWriter(dir, "frames")
	if err != nil {
		t.Fatalf("NewRawLogWriter: %v", err)
	}
	first := []byte{1, 2, 3, 4}
	second := bytes.Repeat([]byte{0xAB}, 512)
	if err := w.Record(first); err != nil {
		t.Fatalf("record first: %v", err)
	}
	if err := w.Record(second); err != nil {
		t.Fatalf("record second: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := w.Record([]byte{9}); err == nil {
		t.Fatalf("record after close did not fail")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("unexpected file count: %d", len(entries))
	}

	r, err := OpenRawLog(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("OpenRawLog: %v", err)
	}
	defer r.Close()

	rec, err := r.Next()
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	if rec.Index != 0 || !bytes.Equal(rec.Payload, first) {
		t.Fatalf("unexpected first record: %#v", rec)
	}
	if rec.Timestamp.IsZero() {
		t.Fatalf("missing timestamp")
	}

	rec, err = r.Next()
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if rec.Index != 1 || !bytes.Equal(rec.Payload, second) {
		t.Fatalf("unexpected second record index=%d len=%d", rec.Index, len(rec.Payload))
	}

	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestOpenRawLogRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.bin")
	if err := os.WriteFile(path, []byte("NOTALOG0"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := OpenRawLog(path); err == nil {
		t.Fatalf("expected magic error")
	}
}

func TestWriteSnapshot(t *testing.T) {
	dir := t.TempDir()
	rgb := bytes.Repeat([]byte{10, 20, 30}, 4)

	path, err := WriteSnapshot(dir, "frame_000000", 2, 2, rgb)
	if err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	want := append([]byte("P6\n2 2\n255\n"), rgb...)
	if !bytes.Equal(data, want) {
		t.Fatalf("unexpected snapshot bytes: %q", data)
	}

	if _, err := WriteSnapshot(dir, "short", 2, 2, rgb[:3]); err == nil {
		t.Fatalf("expected size error")
	}
}
