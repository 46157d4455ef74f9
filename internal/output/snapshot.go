package output

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteSnapshot saves one rendered frame as a binary PPM image. PPM
// keeps the export dependency free and every image tool can read it.
func WriteSnapshot(outputDir string, name string, width, height int, rgb []byte) (string, error) {
	if len(rgb) != width*height*3 {
		return "", fmt.Errorf("snapshot buffer is %d bytes, want %d", len(rgb), width*height*3)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}
	filename := filepath.Join(outputDir, name+".ppm")
	f, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	if _, err := fmt.Fprintf(f, "P6\n%d %d\n255\n", width, height); err != nil {
		_ = f.Close()
		return "", err
	}
	if _, err := f.Write(rgb); err != nil {
		_ = f.Close()
		return "", err
	}
	return filename, f.Close()
}
