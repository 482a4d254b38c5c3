// Command echoserver is a minimal standalone AMP server: it registers a
// single Echo responder and serves it over TCP. Grounded on
// example/postgres/main.go's standalone-demo shape, generalized from a
// SQL workload generator to a plain protocol demo.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goamp/amp/amp"
	"github.com/goamp/amp/transport"
)

func main() {
	addr := flag.String("listen", ":7342", "listen address")
	flag.Parse()

	if err := run(*addr); err != nil {
		log.Fatal(err)
	}
}

func run(addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	newEngine := func() *amp.Engine {
		eng := amp.NewEngine()
		eng.Register(amp.Responder{
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
		})
		return eng
	}

	fmt.Printf("echoserver listening on %s\n", addr)
	return transport.ListenAndServe(ctx, slog.Default(), "tcp", addr, newEngine)
}
