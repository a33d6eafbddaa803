package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeonardoBeccarini/waitress_call/internal/codec"
	"github.com/LeonardoBeccarini/waitress_call/internal/display"
	"github.com/LeonardoBeccarini/waitress_call/internal/model"
	"github.com/LeonardoBeccarini/waitress_call/internal/observability/metrics"
	"github.com/LeonardoBeccarini/waitress_call/internal/services/dashboard"
	"github.com/LeonardoBeccarini/waitress_call/internal/services/history"
	"github.com/LeonardoBeccarini/waitress_call/internal/services/receiver"
	"github.com/LeonardoBeccarini/waitress_call/pkg/bus"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("receiver: config: %v", err)
	}
	metrics.Init()

	stationIDs := make([]model.NodeID, 0, len(cfg.Stations))
	for _, s := range cfg.Stations {
		stationIDs = append(stationIDs, model.NodeID(s))
	}
	roster, err := model.NewRoster(stationIDs...)
	if err != nil {
		log.Fatalf("receiver: stations: %v", err)
	}
	cdc, err := codec.New(cfg.Codec)
	if err != nil {
		log.Fatalf("receiver: %v", err)
	}
	topics := model.Topics{Prefix: cfg.TopicPrefix}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === MQTT ===
	conn := bus.NewConn(bus.Config{
		Host:        cfg.Broker.Host,
		Port:        cfg.Broker.Port,
		User:        cfg.Broker.User,
		Password:    cfg.Broker.Password,
		ClientID:    cfg.Broker.ClientID,
		RetryDelay:  cfg.Broker.RetryDelay,
		MaxAttempts: cfg.Broker.MaxAttempts,
	})
	defer conn.Close()

	// === Side effects ===
	board := display.Tee{display.NewConsole(os.Stdout)}
	if cfg.BoardFile != "" {
		f, err := os.OpenFile(cfg.BoardFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("receiver: board file: %v", err)
		}
		defer f.Close()
		board = append(board, display.NewPlain(f))
	}
	fx := receiver.Effects{
		Board: board,
		Alert: display.NewLogAlert(nil),
		Echo:  receiver.NewBusEcho(conn, topics, nil),
	}
	if cfg.Dashboard.URL != "" {
		dash := dashboard.New(dashboard.Config{BaseURL: cfg.Dashboard.URL, Token: cfg.Dashboard.Token})
		go dash.Run(ctx)
		fx.Indicator = dash
		log.Printf("receiver: dashboard at %s", cfg.Dashboard.URL)
	}

	// === InfluxDB ===
	var writer *history.Writer
	extra := map[string]http.Handler{"/metrics": promhttp.Handler()}
	if cfg.Influx.URL != "" {
		influx := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
		defer influx.Close()
		writer = history.NewWriter(influx.WriteAPI(cfg.Influx.Org, cfg.Influx.Bucket), nil)
		defer writer.Flush()
		fx.Recorder = writer
		extra["/history"] = history.NewRecentHandler(influx.QueryAPI(cfg.Influx.Org), cfg.Influx.Bucket)
		log.Printf("receiver: history to %s/%s", cfg.Influx.Org, cfg.Influx.Bucket)
	}

	engine := receiver.NewEngine(receiver.EngineConfig{
		Roster:   roster,
		Debounce: cfg.Debounce,
		Effects:  fx,
	})
	node := receiver.NewNode(receiver.NodeConfig{
		ID:        model.NodeID(cfg.ReceiverID),
		Topics:    topics,
		Codec:     cdc,
		Transport: conn,
		Engine:    engine,
		Cooldown:  cfg.Cooldown,
	})
	if err := node.Start(ctx); err != nil {
		// the loop keeps retrying from Tick
		log.Printf("receiver: start: %v", err)
	}
	metrics.SetConnected(conn.IsConnected())

	// === HTTP ===
	extra["/healthz"] = history.NewHealthHandler(conn, writer)
	extra["/readyz"] = history.NewReadyHandler(conn, writer, 2*time.Second)
	router := receiver.NewRouter(node, extra)
	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           handlers.CombinedLoggingHandler(os.Stdout, router),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("receiver: HTTP listening on :%d", cfg.HTTPPort)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	go func() {
		if err := node.Run(ctx, cfg.Tick); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("receiver: loop stopped: %v", err)
		}
	}()

	// === Wait for signal ===
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Printf("receiver: shutting down...")
	cancel()

	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = hs.Shutdown(shCtx)
}
