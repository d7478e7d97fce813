// Frame simulator: writes LaCrosse "OK 9" lines to the specified serial
// device, mimicking the JeeLink sketch. Use this for local testing when you
// don't have real hardware, typically against a socat PTY pair:
//
//	socat pty,raw,echo=0,link=/tmp/ttySIM0 pty,raw,echo=0,link=/tmp/ttySIM1
//	jeelink_sim -dev /tmp/ttySIM0
//	jeelink_reader -device /tmp/ttySIM1
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/martinclaus/read-jeelink/internal/device"
	"github.com/martinclaus/read-jeelink/internal/model"
	"github.com/martinclaus/read-jeelink/internal/util"
)

func main() {
	dev := flag.String("dev", "/tmp/ttySIM0", "serial device to write frames into")
	baud := flag.Int("baud", model.DefaultBaud, "baud rate")
	sensors := flag.Int("sensors", 3, "number of simulated sensors")
	interval := flag.Int("interval", 1000, "ms between frames")
	noise := flag.Float64("noise", 0.05, "fraction of frames emitted as garbage")
	pair := flag.String("pair", "", "also create a socat PTY pair, value is the peer link path")
	flag.Parse()

	if *pair != "" {
		mgr := util.NewSocatManager()
		if err := mgr.CreatePair(*dev, *pair); err != nil {
			log.Fatalf("create pty pair: %v", err)
		}
		defer mgr.Cleanup()
		// give socat a moment to create the links
		time.Sleep(500 * time.Millisecond)
	}

	port, err := device.Open(*dev, *baud)
	if err != nil {
		log.Fatalf("open serial: %v", err)
	}
	defer func() {
		if cerr := port.Close(); cerr != nil {
			log.Printf("warning: close serial err: %v", cerr)
		}
	}()

	if err := port.WriteLine("[LaCrosseITPlusReader.10.1s (RFM69CW f:868300 t:30~3)]\r"); err != nil {
		log.Fatalf("write banner: %v", err)
	}

	log.Printf("simulator sending to %s every %dms", *dev, *interval)
	tick := time.NewTicker(time.Duration(*interval) * time.Millisecond)
	defer tick.Stop()

	for range tick.C {
		var line string
		if rand.Float64() < *noise {
			line = "garbled \x07 noise"
		} else {
			line = sensorLine(rand.IntN(*sensors))
		}
		if err := port.WriteLine(line + "\r"); err != nil {
			log.Printf("write err: %v", err)
		} else {
			log.Printf("sent: %s", line)
		}
	}
}

// sensorLine encodes one plausible decoded IT+ line for sensor n.
func sensorLine(n int) string {
	id := 10 + n*7
	temp := 18.0 + rand.Float64()*6.0
	raw := int(temp*10) + 1000
	hum := 40 + rand.IntN(30)
	batField := hum
	if rand.Float64() < 0.02 {
		batField |= 0x80 // weak battery
	}
	return fmt.Sprintf("OK 9 %d 1 %d %d %d", id, raw>>8, raw&0xFF, batField)
}
