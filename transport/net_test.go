package transport_test

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"testing"
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

func newEchoEngine() *amp.Engine {
	eng := amp.NewEngine()
	eng.Register(amp.Responder{
		Command: echoCommand,
		Handler: func(_ context.Context, _ *amp.Engine, args map[string]any) (map[string]any, error) {
			text := args["text"].(string)
			n := int(args["times"].(*big.Int).Int64())
			return map[string]any{"text": strings.Repeat(text, n)}, nil
		},
	})
	return eng
}

func startEchoServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	addrCh := make(chan string, 1)
	go func() {
		_ = transport.ListenAndServeNotify(ctx, slog.Default(), "tcp", "127.0.0.1:0", addrCh, newEchoEngine)
	}()

	select {
	case a := <-addrCh:
		return a, cancel
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("server did not start in time")
		return "", cancel
	}
}

func TestDialAndCallOverRealSocket(t *testing.T) {
	t.Parallel()

	addr, stop := startEchoServer(t)
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := transport.Dial(ctx, "tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	got, err := eng.CallRemote(context.Background(), echoCommand, map[string]any{
		"text":  "ab",
		"times": big.NewInt(3),
	})
	if err != nil {
		t.Fatalf("CallRemote: %v", err)
	}
	if got["text"].(string) != "ababab" {
		t.Fatalf("got %q", got["text"])
	}
}

func TestDialManyConcurrentCalls(t *testing.T) {
	t.Parallel()

	addr, stop := startEchoServer(t)
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := transport.Dial(ctx, "tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	const n = 20
	errs := make(chan error, n)
	for i := range n {
		i := i
		go func() {
			got, err := eng.CallRemote(context.Background(), echoCommand, map[string]any{
				"text":  "y",
				"times": big.NewInt(int64(i % 5)),
			})
			if err != nil {
				errs <- err
				return
			}
			if n := len(got["text"].(string)); n != i%5 {
				errs <- fmt.Errorf("call %d: got length %d, want %d", i, n, i%5)
				return
			}
			errs <- nil
		}()
	}
	for range n {
		if err := <-errs; err != nil {
			t.Fatalf("concurrent call failed: %v", err)
		}
	}
}
