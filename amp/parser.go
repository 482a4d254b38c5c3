package amp

import "encoding/binary"

// parserState is the stream parser's explicit state: a coroutine-style
// parser yielding the number of bytes it wants next is expressed here as
// data (parserState + pendingKey + building) instead of control flow, in
// the same spirit as an incremental packet-header parser's handling of a
// chunked net.Conn.
type parserState int

const (
	stateHeader parserState = iota
	stateReadKey
	stateReadValue
)

// streamParser is a resumable incremental decoder: Feed may be called with
// arbitrarily sized (including single-byte) chunks and always returns every
// packet that became complete as a result.
type streamParser struct {
	buf   []byte
	state parserState
	want  int // bytes needed for the current state's next step

	pendingKey string
	building   *Packet
}

func newStreamParser() *streamParser {
	return &streamParser{state: stateHeader, want: 2, building: NewPacket()}
}

// Feed appends data to the internal buffer and extracts as many complete
// packets as the buffer now contains.
func (p *streamParser) Feed(data []byte) ([]*Packet, error) {
	p.buf = append(p.buf, data...)

	var packets []*Packet
	for len(p.buf) >= p.want {
		switch p.state {
		case stateHeader:
			n := binary.BigEndian.Uint16(p.buf[:2])
			p.buf = p.buf[2:]
			// A zero length ends the packet only in key position; in
			// value position it is an empty value (read via stateReadValue
			// with want == 0).
			if n == 0 && p.pendingKey == "" {
				packets = append(packets, p.building)
				p.building = NewPacket()
				p.state = stateHeader
				p.want = 2
				continue
			}
			if p.pendingKey == "" {
				p.state = stateReadKey
				p.want = int(n)
			} else {
				p.state = stateReadValue
				p.want = int(n)
			}

		case stateReadKey:
			raw := p.buf[:p.want]
			p.buf = p.buf[p.want:]
			key, err := decodeASCIIKey(raw)
			if err != nil {
				return packets, err
			}
			p.pendingKey = key
			p.state = stateHeader
			p.want = 2

		case stateReadValue:
			value := make([]byte, p.want)
			copy(value, p.buf[:p.want])
			p.buf = p.buf[p.want:]
			if err := p.building.Set(p.pendingKey, value); err != nil {
				return packets, &ErrProtocolFraming{Reason: err.Error()}
			}
			p.pendingKey = ""
			p.state = stateHeader
			p.want = 2
		}
	}
	return packets, nil
}

func decodeASCIIKey(b []byte) (string, error) {
	for _, c := range b {
		if c > 127 {
			return "", &ErrProtocolFraming{Reason: "non-ASCII key byte"}
		}
	}
	return string(b), nil
}
