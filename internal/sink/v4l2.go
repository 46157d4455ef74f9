// Package sink writes finished visual frames to their destinations.
package sink

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	bufTypeVideoOutput = 2
	fieldNone          = 1
	pixFmtRGB24        = 'R' | 'G'<<8 | 'B'<<16 | '3'<<24

	iocRead  = 2
	iocWrite = 1
)

// v4l2PixFormat mirrors struct v4l2_pix_format.
type v4l2PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
	Priv         uint32
	Flags        uint32
	YcbcrEnc     uint32
	Quantization uint32
	XferFunc     uint32
}

// v4l2Format mirrors struct v4l2_format on 64-bit kernels: the fmt
// union is 8-byte aligned (it contains pointer-bearing members) and 200
// bytes wide.
type v4l2Format struct {
	Type uint32
	_    uint32
	Pix  v4l2PixFormat
	_    [200 - unsafe.Sizeof(v4l2PixFormat{})]byte
}

func vidiocFormatRequest(nr uintptr) uintptr {
	return (iocRead|iocWrite)<<30 | unsafe.Sizeof(v4l2Format{})<<16 | 'V'<<8 | nr
}

func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// V4L2 writes RGB24 frames to a v4l2loopback output device.
type V4L2 struct {
	path       string
	f          *os.File
	frameBytes int
}

// OpenV4L2 opens the loopback device and negotiates the output format:
// width x height, packed RGB24, width*height*3 bytes per frame. Any
// rejection is an environment error and fatal to the caller.
func OpenV4L2(path string, width, height int) (*V4L2, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open video sink %q: %w", path, err)
	}

	frameBytes := width * height * 3
	var format v4l2Format
	format.Type = bufTypeVideoOutput
	if err := ioctl(f.Fd(), vidiocFormatRequest(4), unsafe.Pointer(&format)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("query format on %q: %w", path, err)
	}
	format.Type = bufTypeVideoOutput
	format.Pix.Width = uint32(width)
	format.Pix.Height = uint32(height)
	format.Pix.PixelFormat = pixFmtRGB24
	format.Pix.Field = fieldNone
	format.Pix.BytesPerLine = uint32(width * 3)
	format.Pix.SizeImage = uint32(frameBytes)
	if err := ioctl(f.Fd(), vidiocFormatRequest(5), unsafe.Pointer(&format)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("set format on %q: %w", path, err)
	}

	return &V4L2{path: path, f: f, frameBytes: frameBytes}, nil
}

// Write pushes one full frame to the device.
func (v *V4L2) Write(frame []byte) error {
	if len(frame) != v.frameBytes {
		return fmt.Errorf("video sink %q: frame is %d bytes, want %d", v.path, len(frame), v.frameBytes)
	}
	n, err := v.f.Write(frame)
	if err != nil {
		return fmt.Errorf("write video sink %q: %w", v.path, err)
	}
	if n != v.frameBytes {
		return fmt.Errorf("short write to video sink %q: %d of %d bytes", v.path, n, v.frameBytes)
	}
	return nil
}

// Close releases the device.
func (v *V4L2) Close() error {
	return v.f.Close()
}
