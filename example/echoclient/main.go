// Command echoclient dials an echoserver (or ampd) and repeatedly issues
// Echo calls, printing the decoded response. Grounded on
// example/postgres/main.go's ticker-driven demo loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goamp/amp/amp"
	"github.com/goamp/amp/transport"
)

var echoCommand = amp.Command{
	Name: "Echo",
	Args: []amp.ArgDesc{
		{Key: "text", Codec: amp.String},
		{Key: "times", Codec: amp.Integer},
	},
	Response: []amp.ArgDesc{
		{Key: "text", Codec: amp.String},
	},
}

func main() {
	addr := flag.String("addr", "localhost:7342", "server address")
	interval := flag.Duration("interval", 2*time.Second, "time between calls")
	flag.Parse()

	if err := run(*addr, *interval); err != nil {
		log.Fatal(err)
	}
}

func run(addr string, interval time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := transport.Dial(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 1; ; i++ {
		got, err := eng.CallRemote(ctx, echoCommand, map[string]any{
			"text":  fmt.Sprintf("ping-%d ", i),
			"times": big.NewInt(3),
		})
		if err != nil {
			fmt.Printf("[%d] call failed: %v\n", i, err)
		} else {
			fmt.Printf("[%d] got %q\n", i, got["text"])
		}

		select {
		case <-ctx.Done():
			fmt.Println("shutting down")
			return nil
		case <-ticker.C:
		}
	}
}
