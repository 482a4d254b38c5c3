package amp_test

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/goamp/amp/amp"
)

// pipeTransport relays writes synchronously into a peer *amp.Engine's
// DataReceived, modeling two engines talking over a single in-memory byte
// stream without a real socket: the transport is an external collaborator,
// so tests need only satisfy its Write/Close contract.
type pipeTransport struct {
	peer   *amp.Engine
	closed bool
}

func (p *pipeTransport) Write(b []byte) error {
	if p.closed {
		return errors.New("closed")
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	p.peer.DataReceived(cp)
	return nil
}

func (p *pipeTransport) Close() error {
	p.closed = true
	return nil
}

func link(a, b *amp.Engine) {
	ta := &pipeTransport{peer: b}
	tb := &pipeTransport{peer: a}
	a.ConnectionMade(ta)
	b.ConnectionMade(tb)
}

var echoCommand = amp.Command{
	Name: "Echo",
	Args: []amp.ArgDesc{
		{Key: "text", Codec: amp.String},
		{Key: "times", Codec: amp.Integer},
	},
	Response: []amp.ArgDesc{
		{Key: "text", Codec: amp.String},
	},
	Errors: map[string]amp.ErrorKind{
		"MY_EXCEPTION": {Name: "MyException"},
	},
}

func echoHandler(_ context.Context, _ *amp.Engine, args map[string]any) (map[string]any, error) {
	text := args["text"].(string)
	times := args["times"].(*big.Int)
	n := int(times.Int64())
	return map[string]any{"text": strings.Repeat(text, n)}, nil
}

func TestSimpleEcho(t *testing.T) {
	t.Parallel()
	server := amp.NewEngine()
	server.Register(amp.Responder{Command: echoCommand, Handler: echoHandler})
	client := amp.NewEngine()
	link(server, client)

	got, err := client.CallRemote(context.Background(), echoCommand, map[string]any{
		"text":  "my-text",
		"times": big.NewInt(2),
	})
	if err != nil {
		t.Fatalf("CallRemote: %v", err)
	}
	if got["text"].(string) != "my-textmy-text" {
		t.Fatalf("got %q", got["text"])
	}
}

func TestMaximumValueLength(t *testing.T) {
	t.Parallel()
	bigText := amp.Command{
		Name: "Big",
		Args: []amp.ArgDesc{{Key: "n", Codec: amp.Integer}},
		Response: []amp.ArgDesc{
			{Key: "text", Codec: amp.String},
		},
	}
	server := amp.NewEngine()
	server.Register(amp.Responder{Command: bigText, Handler: func(_ context.Context, _ *amp.Engine, _ map[string]any) (map[string]any, error) {
		return map[string]any{"text": strings.Repeat("x", 65535)}, nil
	}})
	client := amp.NewEngine()
	link(server, client)

	got, err := client.CallRemote(context.Background(), bigText, map[string]any{"n": big.NewInt(1)})
	if err != nil {
		t.Fatalf("CallRemote: %v", err)
	}
	if len(got["text"].(string)) != 65535 {
		t.Fatalf("got length %d", len(got["text"].(string)))
	}
}

func TestOversizeLocalArgument(t *testing.T) {
	t.Parallel()
	server := amp.NewEngine()
	server.Register(amp.Responder{Command: echoCommand, Handler: echoHandler})
	client := amp.NewEngine()
	link(server, client)

	_, err := client.CallRemote(context.Background(), echoCommand, map[string]any{
		"text":  strings.Repeat("x", 131071),
		"times": big.NewInt(1),
	})
	if err == nil {
		t.Fatal("expected TooLong error")
	}
	var tooLong *amp.ErrTooLong
	if !errors.As(err, &tooLong) {
		t.Fatalf("got %T: %v, want *ErrTooLong", err, err)
	}
}

func TestOversizeReply(t *testing.T) {
	t.Parallel()
	server := amp.NewEngine()
	server.Register(amp.Responder{Command: echoCommand, Handler: func(_ context.Context, _ *amp.Engine, _ map[string]any) (map[string]any, error) {
		return map[string]any{"text": strings.Repeat("x", 131071)}, nil
	}})
	client := amp.NewEngine()
	link(server, client)

	_, err := client.CallRemote(context.Background(), echoCommand, map[string]any{
		"text":  "x",
		"times": big.NewInt(1),
	})
	var unknown *amp.UnknownRemoteError
	if !errors.As(err, &unknown) {
		t.Fatalf("got %T: %v, want *UnknownRemoteError", err, err)
	}
	if unknown.Description != "Response too long" {
		t.Fatalf("got description %q", unknown.Description)
	}
}

func TestDeclaredRemoteError(t *testing.T) {
	t.Parallel()
	server := amp.NewEngine()
	server.Register(amp.Responder{Command: echoCommand, Handler: func(_ context.Context, _ *amp.Engine, _ map[string]any) (map[string]any, error) {
		return nil, &amp.HandlerError{Code: "MY_EXCEPTION", Message: "Something went wrong"}
	}})
	client := amp.NewEngine()
	link(server, client)

	_, err := client.CallRemote(context.Background(), echoCommand, map[string]any{
		"text": "x", "times": big.NewInt(1),
	})
	var declared *amp.DeclaredRemoteError
	if !errors.As(err, &declared) {
		t.Fatalf("got %T: %v, want *DeclaredRemoteError", err, err)
	}
	if declared.Kind != "MyException" || declared.Description != "Something went wrong" {
		t.Fatalf("got %+v", declared)
	}
}

func TestUndeclaredRemoteError(t *testing.T) {
	t.Parallel()
	server := amp.NewEngine()
	server.Register(amp.Responder{Command: echoCommand, Handler: func(_ context.Context, _ *amp.Engine, _ map[string]any) (map[string]any, error) {
		return nil, errors.New("unknown")
	}})
	client := amp.NewEngine()
	link(server, client)

	_, err := client.CallRemote(context.Background(), echoCommand, map[string]any{
		"text": "x", "times": big.NewInt(1),
	})
	var unknown *amp.UnknownRemoteError
	if !errors.As(err, &unknown) {
		t.Fatalf("got %T: %v, want *UnknownRemoteError", err, err)
	}
	if unknown.Description != "unknown" {
		t.Fatalf("got description %q", unknown.Description)
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()
	server := amp.NewEngine() // no responders registered
	client := amp.NewEngine()
	link(server, client)

	_, err := client.CallRemote(context.Background(), echoCommand, map[string]any{
		"text": "x", "times": big.NewInt(1),
	})
	var unhandled *amp.UnhandledCommandError
	if !errors.As(err, &unhandled) {
		t.Fatalf("got %T: %v, want *UnhandledCommandError", err, err)
	}
	if unhandled.Description != "Unhandled Command: 'Echo'" {
		t.Fatalf("got description %q", unhandled.Description)
	}
}

func TestConnectionLossMidCall(t *testing.T) {
	t.Parallel()
	blocker := make(chan struct{})
	server := amp.NewEngine()
	server.Register(amp.Responder{Command: echoCommand, Handler: func(_ context.Context, _ *amp.Engine, _ map[string]any) (map[string]any, error) {
		<-blocker // never replies until the test is done observing the failure
		return map[string]any{"text": "too late"}, nil
	}})
	client := amp.NewEngine()
	link(server, client)
	defer close(blocker)

	resultCh := make(chan error, 1)
	go func() {
		_, err := client.CallRemote(context.Background(), echoCommand, map[string]any{
			"text": "x", "times": big.NewInt(1),
		})
		resultCh <- err
	}()

	cause := errors.New("peer reset")
	// Give the call a moment to register before yanking the connection.
	time.Sleep(10 * time.Millisecond)
	client.ConnectionLost(cause)

	select {
	case err := <-resultCh:
		var lost *amp.ErrConnectionLost
		if !errors.As(err, &lost) {
			t.Fatalf("got %T: %v, want *ErrConnectionLost", err, err)
		}
	case <-time.After(time.Second):
		t.Fatal("CallRemote did not resolve after connection loss")
	}
}

func TestChunkedDeliveryDispatchesExactlyOnce(t *testing.T) {
	t.Parallel()
	var dispatches int
	server := amp.NewEngine()
	server.Register(amp.Responder{Command: echoCommand, Handler: func(_ context.Context, _ *amp.Engine, args map[string]any) (map[string]any, error) {
		dispatches++
		return echoHandler(context.Background(), nil, args)
	}})

	pkt := amp.NewPacket()
	_ = pkt.Set("_command", []byte("Echo"))
	_ = pkt.Set("text", []byte("hi"))
	_ = pkt.Set("times", []byte("1"))
	var buf bytes.Buffer
	_ = pkt.Encode(&buf)
	wire := buf.Bytes()

	server.ConnectionMade(&discardTransport{})
	for i := range wire {
		server.DataReceived(wire[i : i+1])
	}
	server.Wait()

	if dispatches != 1 {
		t.Fatalf("got %d dispatches, want 1", dispatches)
	}
}

type discardTransport struct{}

func (discardTransport) Write(_ []byte) error { return nil }
func (discardTransport) Close() error         { return nil }
