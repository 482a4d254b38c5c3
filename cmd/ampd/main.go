// Command ampd is a standalone AMP server daemon: it listens for inbound
// engines, registers a demo Echo responder, and optionally exposes a live
// web.Server monitor dashboard. Grounded on cmd/sql-tapd/main.go's
// flag.FlagSet configuration and signal.NotifyContext shutdown sequencing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goamp/amp/amp"
	"github.com/goamp/amp/broker"
	"github.com/goamp/amp/detect"
	"github.com/goamp/amp/transport"
	"github.com/goamp/amp/web"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("ampd", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "ampd — AMP protocol daemon\n\nUsage:\n  ampd [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	listen := fs.String("listen", ":7341", "AMP listen address")
	httpAddr := fs.String("http", "", "HTTP address for the monitor dashboard (e.g. :8080, empty to disable)")
	stormThreshold := fs.Int("storm-threshold", 20, "call-storm detection threshold (0 to disable)")
	stormWindow := fs.Duration("storm-window", time.Second, "call-storm detection time window")
	stormCooldown := fs.Duration("storm-cooldown", 10*time.Second, "call-storm alert cooldown per command")
	slowThreshold := fs.Duration("slow-threshold", 100*time.Millisecond, "slow-call threshold (0 to disable)")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("ampd %s\n", version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(log)

	if err := run(*listen, *httpAddr, *stormThreshold, *stormWindow, *stormCooldown, *slowThreshold, log); err != nil {
		log.Error("ampd exited", "err", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func run(listen, httpAddr string, stormThreshold int, stormWindow, stormCooldown, slowThreshold time.Duration, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := broker.New(256)
	defer b.Close()

	var det *detect.Detector
	if stormThreshold > 0 {
		det = detect.New(stormThreshold, stormWindow, stormCooldown)
		log.Info("call-storm detection enabled", "threshold", stormThreshold, "window", stormWindow, "cooldown", stormCooldown)
	}
	if slowThreshold > 0 {
		log.Info("slow-call detection enabled", "threshold", slowThreshold)
	}

	monitor := func(ev amp.MonitorEvent) {
		if det != nil && ev.Dir == amp.DirCommandDispatched {
			r := det.Record(ev.Command, ev.At)
			if r.Alert != nil {
				log.Warn("call storm detected", "command", r.Alert.Command, "count", r.Alert.Count)
			}
		}
		if detect.SlowCallThreshold(ev.Duration, slowThreshold) {
			log.Warn("slow call", "command", ev.Command, "duration", ev.Duration)
		}
		b.Publish(ev)
	}

	newEngine := func() *amp.Engine {
		eng := amp.NewEngine(amp.WithLogger(log), amp.WithMonitor(monitor))
		eng.Register(echoResponder())
		return eng
	}

	if httpAddr != "" {
		var lc net.ListenConfig
		httpLis, err := lc.Listen(ctx, "tcp", httpAddr)
		if err != nil {
			return fmt.Errorf("listen http %s: %w", httpAddr, err)
		}
		webSrv := web.New(b)
		go func() {
			log.Info("monitor dashboard listening", "addr", httpAddr)
			if err := webSrv.Serve(httpLis); err != nil {
				log.Error("web serve", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = webSrv.Shutdown(shutdownCtx)
		}()
	}

	log.Info("ampd listening", "addr", listen)
	if err := transport.ListenAndServe(ctx, log, "tcp", listen, newEngine); err != nil {
		return fmt.Errorf("ampd: %w", err)
	}
	return nil
}

// echoResponder registers the "Echo" command: repeats text n times. Used
// as a working demo target so -listen can be exercised without a second
// custom binary.
func echoResponder() amp.Responder {
	return amp.Responder{
		Command: amp.Command{
			Name: "Echo",
			Args: []amp.ArgDesc{
				{Key: "text", Codec: amp.String},
				{Key: "times", Codec: amp.Integer},
			},
			Response: []amp.ArgDesc{
				{Key: "text", Codec: amp.String},
			},
		},
		Handler: func(_ context.Context, _ *amp.Engine, args map[string]any) (map[string]any, error) {
			text, _ := args["text"].(string)
			n := 1
			if v, ok := args["times"].(*big.Int); ok {
				n = int(v.Int64())
			}
			if n < 0 {
				n = 0
			}
			return map[string]any{"text": strings.Repeat(text, n)}, nil
		},
	}
}
