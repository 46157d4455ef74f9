// lepton-check is a wiring sanity tool: it opens the SPI bus, pulls a
// handful of packets and reports whether anything that looks like a
// video stream is coming back.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/bijoymg2023/RESOFLY/internal/lepton"
	"github.com/bijoymg2023/RESOFLY/internal/spibus"
)

func main() {
	var (
		device  = flag.String("device", "/dev/spidev0.0", "SPI device the camera is wired to")
		ss      = flag.Int("ss", spibus.DefaultSpeedMHz, "SPI clock in MHz (10-30)")
		packets = flag.Int("packets", 8, "Number of packets to sample")
	)
	flag.Parse()

	session, err := spibus.Open(*device, *ss)
	if err != nil {
		log.Fatalf("open %s: %v", *device, err)
	}
	defer session.Close()

	burst, err := session.ReadSegment(*packets, lepton.PacketSize)
	if err != nil {
		log.Fatalf("read packets: %v", err)
	}

	discards := 0
	allZero := true
	for i := 0; i < *packets; i++ {
		packet := burst[i*lepton.PacketSize : (i+1)*lepton.PacketSize]
		for _, b := range packet {
			if b != 0 {
				allZero = false
				break
			}
		}
		if lepton.IsDiscard(packet) {
			discards++
			fmt.Printf("packet %d: discard\n", i)
			continue
		}
		fmt.Printf("packet %d: number=%d first_words=% x\n",
			i, lepton.PacketNumber(packet), packet[:8])
	}

	switch {
	case allZero:
		fmt.Println("bus reads all zeros: check wiring and that SPI is enabled")
	case discards == *packets:
		fmt.Println("only discard packets: camera is alive but not streaming video yet")
	default:
		fmt.Println("camera is streaming")
	}
}
