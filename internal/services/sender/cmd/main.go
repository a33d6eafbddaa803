package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/LeonardoBeccarini/waitress_call/internal/codec"
	"github.com/LeonardoBeccarini/waitress_call/internal/model"
	"github.com/LeonardoBeccarini/waitress_call/internal/services/sender"
	simulator "github.com/LeonardoBeccarini/waitress_call/internal/station-simulator"
	"github.com/LeonardoBeccarini/waitress_call/pkg/bus"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("sender: config: %v", err)
	}
	cdc, err := codec.New(cfg.Codec)
	if err != nil {
		log.Fatalf("sender: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := model.NodeID(cfg.ID)
	conn := bus.NewConn(bus.Config{
		Host:        cfg.BrokerHost,
		Port:        cfg.BrokerPort,
		User:        cfg.User,
		Password:    cfg.Password,
		ClientID:    cfg.ID,
		RetryDelay:  cfg.RetryDelay,
		MaxAttempts: cfg.MaxAttempts,
	})
	defer conn.Close()

	authorized := make([]model.NodeID, 0, len(cfg.Authorized))
	for _, a := range cfg.Authorized {
		authorized = append(authorized, model.NodeID(a))
	}
	rssi := simulator.NewSignalGenerator(-60, cfg.Seed)
	station := sender.NewStation(sender.StationConfig{
		ID:         id,
		Authorized: authorized,
		LEDs:       sender.LogLEDs{ID: id},
		RSSI:       rssi.Next,
	})

	var input sender.InputSource
	switch cfg.Input {
	case "random":
		input = simulator.NewPressGenerator(cfg.PressRate, cfg.Seed)
		log.Printf("sender: %s: random presses, p=%.3f per tick", id, cfg.PressRate)
	default:
		input = simulator.NewLineInput(os.Stdin, nil)
		log.Printf("sender: %s: type c (call), b (bill) or r (reset)", id)
	}

	node := sender.NewNode(sender.NodeConfig{
		Station:     station,
		Topics:      model.Topics{Prefix: cfg.TopicPrefix},
		Codec:       cdc,
		Transport:   conn,
		Input:       simulator.WithDeadTime(input, cfg.DeadTime, nil),
		ResetWindow: cfg.ResetWindow,
	})
	if err := node.Start(ctx); err != nil {
		log.Printf("sender: start: %v", err)
	}

	go func() {
		if err := node.Run(ctx, cfg.Tick); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("sender: loop stopped: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Printf("sender: %s shutting down...", id)
}
