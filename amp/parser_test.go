package amp

import (
	"bytes"
	"testing"
)

func wirePacket(t *testing.T, pairs ...[2]string) []byte {
	t.Helper()
	p := NewPacket()
	for _, kv := range pairs {
		if err := p.Set(kv[0], []byte(kv[1])); err != nil {
			t.Fatalf("set %q: %v", kv[0], err)
		}
	}
	var buf bytes.Buffer
	if err := p.Encode(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestStreamParserChunkedByteAtATime(t *testing.T) {
	t.Parallel()
	wire := wirePacket(t, [2]string{"_command", "Echo"}, [2]string{"text", "hello"})

	parser := newStreamParser()
	var got []*Packet
	for i := range wire {
		packets, err := parser.Feed(wire[i : i+1])
		if err != nil {
			t.Fatalf("feed byte %d: %v", i, err)
		}
		got = append(got, packets...)
	}

	if len(got) != 1 {
		t.Fatalf("got %d packets, want 1", len(got))
	}
	if v, _ := got[0].Get("text"); string(v) != "hello" {
		t.Fatalf("got text=%q", v)
	}
}

func TestStreamParserMultiplePacketsInOneChunk(t *testing.T) {
	t.Parallel()
	wire := append(wirePacket(t, [2]string{"a", "1"}), wirePacket(t, [2]string{"b", "2"})...)

	parser := newStreamParser()
	packets, err := parser.Feed(wire)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(packets) != 2 {
		t.Fatalf("got %d packets, want 2", len(packets))
	}
	if v, _ := packets[0].Get("a"); string(v) != "1" {
		t.Fatalf("packet 0: got a=%q", v)
	}
	if v, _ := packets[1].Get("b"); string(v) != "2" {
		t.Fatalf("packet 1: got b=%q", v)
	}
}

func TestStreamParserSplitAtArbitraryBoundaries(t *testing.T) {
	t.Parallel()
	wire := wirePacket(t, [2]string{"_command", "Echo"}, [2]string{"text", "my-text"}, [2]string{"times", "2"})

	for split := 0; split <= len(wire); split++ {
		parser := newStreamParser()
		var got []*Packet
		first, err := parser.Feed(wire[:split])
		if err != nil {
			t.Fatalf("split %d: feed first half: %v", split, err)
		}
		got = append(got, first...)
		second, err := parser.Feed(wire[split:])
		if err != nil {
			t.Fatalf("split %d: feed second half: %v", split, err)
		}
		got = append(got, second...)

		if len(got) != 1 {
			t.Fatalf("split %d: got %d packets, want 1", split, len(got))
		}
		if v, _ := got[0].Get("text"); string(v) != "my-text" {
			t.Fatalf("split %d: got text=%q", split, v)
		}
	}
}

func TestStreamParserRejectsNonASCIIKey(t *testing.T) {
	t.Parallel()
	// Hand-build a frame with a non-ASCII byte in the key.
	var buf bytes.Buffer
	buf.Write([]byte{0, 1}) // key length 1
	buf.Write([]byte{0xff}) // non-ASCII key byte
	buf.Write([]byte{0, 1}) // value length 1
	buf.Write([]byte{'v'})
	buf.Write([]byte{0, 0}) // terminator

	parser := newStreamParser()
	if _, err := parser.Feed(buf.Bytes()); err == nil {
		t.Fatal("expected protocol framing error")
	}
}

func TestStreamParserRejectsDuplicateKeyInOnePacket(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	for range 2 {
		buf.Write([]byte{0, 1})
		buf.Write([]byte{'k'})
		buf.Write([]byte{0, 1})
		buf.Write([]byte{'v'})
	}
	buf.Write([]byte{0, 0})

	parser := newStreamParser()
	if _, err := parser.Feed(buf.Bytes()); err == nil {
		t.Fatal("expected protocol framing error for duplicate key")
	}
}
