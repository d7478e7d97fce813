// Package main is the entry point of the JeeLink reader.
// It loads the configuration, opens the reading stream and prints every
// decoded sensor reading until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/martinclaus/read-jeelink/internal/diag"
	"github.com/martinclaus/read-jeelink/internal/model"
	"github.com/martinclaus/read-jeelink/internal/stream"
	"github.com/martinclaus/read-jeelink/internal/util"
)

func main() {
	util.SetupLogger()

	cfgPath := flag.String("c", "configs/config.yml", "path to configuration file")
	dev := flag.String("device", "", "serial device path (overrides config)")
	baud := flag.Int("baud", 0, "baud rate (overrides config)")
	flag.Parse()

	cfg, err := model.LoadConfig(*cfgPath)
	if err != nil {
		log.Printf("[Main] config %s not usable (%v), using flags and defaults", *cfgPath, err)
		cfg = model.Config{}
		cfg.ApplyDefaults()
	}
	if *dev != "" {
		cfg.Device = *dev
	}
	if *baud != 0 {
		cfg.Baud = *baud
	}

	metrics := diag.New()
	if cfg.MetricsAddr != "" {
		go func() {
			log.Printf("[Main] metrics on %s/metrics", cfg.MetricsAddr)
			mux := http.NewServeMux()
			mux.Handle("/metrics", diag.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Printf("warning: metrics listener: %v", err)
			}
		}()
	}

	s, err := stream.Open(cfg, metrics)
	if err != nil {
		log.Fatalf("failed to open reading stream: %v", err)
	}

	ctx, cancelSig := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancelSig()

	log.Printf("[Main] reading from %s at %d baud", cfg.Device, cfg.Baud)
	for {
		r, err := s.Next(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Printf("stream ended: %v", err)
			}
			break
		}
		printReading(r)
	}

	log.Println("[Main] shutting down...")
	if err := s.Close(); err != nil {
		log.Printf("warning: close stream: %v", err)
	}
	log.Println("[Main] stopped cleanly.")
}

func printReading(r model.SensorReading) {
	hum := " --"
	if r.HasHumidity {
		hum = fmt.Sprintf("%3.0f", r.Humidity)
	}
	log.Printf("sensor %2d [%s]: %5.1f°C %s%% weak=%t new=%t",
		r.SensorID, r.Variant, r.Temperature, hum, r.WeakBattery, r.NewBattery)
}
