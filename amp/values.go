package amp

import (
	"math/big"
	"strconv"
	"unicode/utf8"
)

// Kind names a codec's logical value type.
type Kind int

const (
	KindInteger Kind = iota
	KindFloat
	KindBoolean
	KindString
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindBoolean:
		return "Boolean"
	case KindString:
		return "String"
	case KindBytes:
		return "Bytes"
	}
	return "Unknown"
}

// Codec converts a typed Go value to and from the raw bytes carried on the
// wire for one packet key. Encode fails if the value is not of the
// codec's logical type; Decode fails if the bytes are malformed for it.
type Codec interface {
	Kind() Kind
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}

// Integer is decimal ASCII of a signed integer of arbitrary precision,
// matching the original protocol's Python int semantics (see
// original_source/asyncio_amp/arguments.py): the logical value type is
// *big.Int rather than a fixed-width Go int.
var Integer Codec = integerCodec{}

type integerCodec struct{}

func (integerCodec) Kind() Kind { return KindInteger }

func (integerCodec) Encode(v any) ([]byte, error) {
	n, err := toBigInt(v)
	if err != nil {
		return nil, err
	}
	return []byte(n.String()), nil
}

func (integerCodec) Decode(b []byte) (any, error) {
	n, ok := new(big.Int).SetString(string(b), 10)
	if !ok {
		return nil, &ErrArgumentDecode{Reason: "not a decimal integer: " + string(b)}
	}
	return n, nil
}

func toBigInt(v any) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		return n, nil
	case big.Int:
		return &n, nil
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	default:
		return nil, &ErrArgumentDecode{Reason: "not an integer value"}
	}
}

// Float encodes the platform double using the shortest decimal
// representation that round-trips exactly via strconv, so encode then
// decode always reproduces the original bit pattern.
var Float Codec = floatCodec{}

type floatCodec struct{}

func (floatCodec) Kind() Kind { return KindFloat }

func (floatCodec) Encode(v any) ([]byte, error) {
	f, ok := v.(float64)
	if !ok {
		return nil, &ErrArgumentDecode{Reason: "not a float64 value"}
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

func (floatCodec) Decode(b []byte) (any, error) {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return nil, &ErrArgumentDecode{Reason: "not a float: " + string(b)}
	}
	return f, nil
}

// Boolean encodes as the literal bytes True/False; anything else fails to
// decode.
var Boolean Codec = booleanCodec{}

type booleanCodec struct{}

func (booleanCodec) Kind() Kind { return KindBoolean }

func (booleanCodec) Encode(v any) ([]byte, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, &ErrArgumentDecode{Reason: "not a bool value"}
	}
	if b {
		return []byte("True"), nil
	}
	return []byte("False"), nil
}

func (booleanCodec) Decode(b []byte) (any, error) {
	switch string(b) {
	case "True":
		return true, nil
	case "False":
		return false, nil
	}
	return nil, &ErrArgumentDecode{Reason: "not True/False: " + string(b)}
}

// String is UTF-8 text.
var String Codec = stringCodec{}

type stringCodec struct{}

func (stringCodec) Kind() Kind { return KindString }

func (stringCodec) Encode(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, &ErrArgumentDecode{Reason: "not a string value"}
	}
	if !utf8.ValidString(s) {
		return nil, &ErrArgumentDecode{Reason: "not valid UTF-8"}
	}
	return []byte(s), nil
}

func (stringCodec) Decode(b []byte) (any, error) {
	if !utf8.Valid(b) {
		return nil, &ErrArgumentDecode{Reason: "not valid UTF-8"}
	}
	return string(b), nil
}

// Bytes is the identity codec.
var Bytes Codec = bytesCodec{}

type bytesCodec struct{}

func (bytesCodec) Kind() Kind { return KindBytes }

func (bytesCodec) Encode(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, &ErrArgumentDecode{Reason: "not a []byte value"}
	}
	return b, nil
}

func (bytesCodec) Decode(b []byte) (any, error) {
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}
