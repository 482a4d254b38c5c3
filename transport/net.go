// Package transport adapts a raw net.Conn to the amp.Transport interface
// and runs the read loop that feeds an Engine's DataReceived callback.
// Grounded on proxy/mysql/conn.go's raw-net.Conn read loop and
// cmd/sql-tapd/main.go's listener/accept/signal-driven shutdown wiring.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/goamp/amp/amp"
)

// NetTransport adapts a net.Conn to amp.Transport.
type NetTransport struct {
	conn net.Conn
}

// NewNetTransport wraps conn for use as an engine's transport.
func NewNetTransport(conn net.Conn) *NetTransport {
	return &NetTransport{conn: conn}
}

func (t *NetTransport) Write(b []byte) error {
	_, err := t.conn.Write(b)
	if err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

func (t *NetTransport) Close() error {
	if err := t.conn.Close(); err != nil {
		return fmt.Errorf("transport: close: %w", err)
	}
	return nil
}

// Serve binds eng to conn and runs the read loop until the connection
// closes or ctx is cancelled, delivering every chunk read to
// eng.DataReceived and finally calling eng.ConnectionLost exactly once.
// It blocks until the loop exits.
func Serve(ctx context.Context, eng *amp.Engine, conn net.Conn) {
	nt := NewNetTransport(conn)
	eng.ConnectionMade(nt)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	buf := make([]byte, 32*1024)
	var loopErr error
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			eng.DataReceived(buf[:n])
		}
		if err != nil {
			if ctx.Err() == nil {
				loopErr = err
			}
			break
		}
	}
	eng.ConnectionLost(loopErr)
}

// Dial connects to addr and returns an Engine bound to it, running its read
// loop in a background goroutine. Grounded on cmd/sql-tapd/main.go's
// flag-driven address wiring, generalized to a client dial instead of a
// listen/accept loop.
func Dial(ctx context.Context, network, addr string) (*amp.Engine, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	eng := amp.NewEngine()
	go Serve(ctx, eng, conn)
	return eng, nil
}

// ListenAndServe accepts connections on addr, constructing a fresh engine
// per connection via newEngine and running its read loop until ctx is
// cancelled. Grounded on cmd/sql-tapd/main.go's accept-loop-per-listener
// shape.
func ListenAndServe(ctx context.Context, log *slog.Logger, network, addr string, newEngine func() *amp.Engine) error {
	return ListenAndServeNotify(ctx, log, network, addr, nil, newEngine)
}

// ListenAndServeNotify behaves like ListenAndServe, additionally sending
// the bound address on addrCh (if non-nil) once the listener is up —
// useful for tests and for daemons reporting an ephemeral port.
func ListenAndServeNotify(ctx context.Context, log *slog.Logger, network, addr string, addrCh chan<- string, newEngine func() *amp.Engine) error {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, network, addr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		_ = lis.Close()
	}()

	if addrCh != nil {
		addrCh <- lis.Addr().String()
	}

	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("transport: accept: %w", err)
		}
		eng := newEngine()
		go func() {
			log.Debug("connection accepted", "remote", conn.RemoteAddr())
			Serve(ctx, eng, conn)
			log.Debug("connection closed", "remote", conn.RemoteAddr())
		}()
	}
}
