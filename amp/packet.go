package amp

import (
	"encoding/binary"
	"io"
)

const (
	maxKeyLen   = 255
	maxValueLen = 65535
)

// Reserved packet keys: underscore-prefixed keys identify a packet's role
// on the wire and are never exposed as ordinary command/response fields.
const (
	keyCommand          = "_command"
	keyAsk              = "_ask"
	keyAnswer           = "_answer"
	keyError            = "_error"
	keyErrorCode        = "_error_code"
	keyErrorDescription = "_error_description"
)

// Pair is one key/value entry of a Packet, in wire order.
type Pair struct {
	Key   string
	Value []byte
}

// Packet is an ordered, key-unique sequence of byte-string pairs, in the
// same length-prefixed wire style as a Postgres startup/message frame, but
// generalized to an arbitrary ordered key/value map instead of a fixed
// Postgres message shape.
type Packet struct {
	pairs []Pair
	index map[string]int
}

// NewPacket returns an empty packet ready for Set calls.
func NewPacket() *Packet {
	return &Packet{index: make(map[string]int)}
}

// Set appends key/value, or fails if key is already present in this packet.
func (p *Packet) Set(key string, value []byte) error {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	if _, ok := p.index[key]; ok {
		return &ErrProtocolFraming{Reason: "duplicate key: " + key}
	}
	if len(key) == 0 || len(key) > maxKeyLen {
		return &ErrTooLong{What: "key", Len: len(key)}
	}
	if len(value) > maxValueLen {
		return &ErrTooLong{What: "value", Len: len(value)}
	}
	p.index[key] = len(p.pairs)
	p.pairs = append(p.pairs, Pair{Key: key, Value: value})
	return nil
}

// Get returns the value for key and whether it was present.
func (p *Packet) Get(key string) ([]byte, bool) {
	i, ok := p.index[key]
	if !ok {
		return nil, false
	}
	return p.pairs[i].Value, true
}

// Pairs returns the packet's pairs in wire order. Callers must not mutate
// the returned slice.
func (p *Packet) Pairs() []Pair {
	return p.pairs
}

// Without returns a copy of p with the given keys removed, used to strip
// reserved routing keys (_command, _ask, ...) before handing the remaining
// fields to a schema's argument codecs.
func (p *Packet) Without(keys ...string) *Packet {
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	out := NewPacket()
	for _, pair := range p.pairs {
		if drop[pair.Key] {
			continue
		}
		_ = out.Set(pair.Key, pair.Value)
	}
	return out
}

// Encode serializes p to w: for each pair emit
// u16(key_len) || key || u16(val_len) || value, then a u16(0) terminator.
func (p *Packet) Encode(w io.Writer) error {
	var hdr [2]byte
	for _, pair := range p.pairs {
		if len(pair.Key) == 0 || len(pair.Key) > maxKeyLen {
			return &ErrTooLong{What: "key", Len: len(pair.Key)}
		}
		if len(pair.Value) > maxValueLen {
			return &ErrTooLong{What: "value", Len: len(pair.Value)}
		}
		binary.BigEndian.PutUint16(hdr[:], uint16(len(pair.Key)))
		if _, err := w.Write(hdr[:]); err != nil {
			return err
		}
		if _, err := io.WriteString(w, pair.Key); err != nil {
			return err
		}
		binary.BigEndian.PutUint16(hdr[:], uint16(len(pair.Value)))
		if _, err := w.Write(hdr[:]); err != nil {
			return err
		}
		if _, err := w.Write(pair.Value); err != nil {
			return err
		}
	}
	binary.BigEndian.PutUint16(hdr[:], 0)
	_, err := w.Write(hdr[:])
	return err
}
