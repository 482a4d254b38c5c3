package amp

import "context"

// ArgDesc pairs a wire key with the codec used to encode/decode it. Order
// within a Command's Args/Response slice defines deterministic
// serialization order.
type ArgDesc struct {
	Key   string
	Codec Codec
}

// ErrorKind is the logical error a custom declared error code maps to.
// The Name is surfaced to callers via DeclaredRemoteError.Kind.
type ErrorKind struct {
	Name string
}

// Command is an immutable descriptor of one AMP command: its wire name,
// argument/response shape, and the error codes it declares. Grounded on
// server/server.go's explicit registration-at-construction pattern
// (tapv1.RegisterTapServiceServer) rather than a metaclass or
// attribute-scanning approach to schema discovery.
type Command struct {
	Name     string
	Args     []ArgDesc
	Response []ArgDesc
	Errors   map[string]ErrorKind // error code -> logical kind
}

// HandlerFunc handles one dispatched command. It may block or call back
// into eng (e.g. issue its own CallRemote) before returning.
type HandlerFunc func(ctx context.Context, eng *Engine, args map[string]any) (map[string]any, error)

// Responder binds a Command to the handler invoked when the peer issues it.
type Responder struct {
	Command Command
	Handler HandlerFunc
}

// decodeArgs decodes each of descs from packet p, returning the first
// decode error encountered (wrapped as *ErrArgumentDecode).
func decodeArgs(descs []ArgDesc, p *Packet) (map[string]any, error) {
	out := make(map[string]any, len(descs))
	for _, d := range descs {
		raw, ok := p.Get(d.Key)
		if !ok {
			return nil, &ErrArgumentDecode{Key: d.Key, Reason: "missing"}
		}
		v, err := d.Codec.Decode(raw)
		if err != nil {
			return nil, &ErrArgumentDecode{Key: d.Key, Reason: err.Error()}
		}
		out[d.Key] = v
	}
	return out, nil
}

// encodeArgs encodes values into a fresh packet in descriptor order,
// failing with *ErrTooLong if any encoded key/value exceeds wire limits.
func encodeArgs(descs []ArgDesc, values map[string]any) (*Packet, error) {
	p := NewPacket()
	for _, d := range descs {
		v, ok := values[d.Key]
		if !ok {
			return nil, &ErrArgumentDecode{Key: d.Key, Reason: "missing from response map"}
		}
		raw, err := d.Codec.Encode(v)
		if err != nil {
			return nil, &ErrArgumentDecode{Key: d.Key, Reason: err.Error()}
		}
		if err := p.Set(d.Key, raw); err != nil {
			return nil, err
		}
	}
	return p, nil
}
