package amp_test

import (
	"math/big"
	"testing"

	"github.com/goamp/amp/amp"
)

func TestIntegerRoundTrip(t *testing.T) {
	t.Parallel()
	cases := []string{"0", "-1", "1", "9223372036854775808", "-170141183460469231731687303715884105728"}
	for _, s := range cases {
		s := s
		t.Run(s, func(t *testing.T) {
			t.Parallel()
			n, _ := new(big.Int).SetString(s, 10)
			enc, err := amp.Integer.Encode(n)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			dec, err := amp.Integer.Decode(enc)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if dec.(*big.Int).Cmp(n) != 0 {
				t.Fatalf("got %v, want %v", dec, n)
			}
		})
	}
}

func TestIntegerDecodeRejectsNonDigits(t *testing.T) {
	t.Parallel()
	if _, err := amp.Integer.Decode([]byte("12x")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFloatRoundTrip(t *testing.T) {
	t.Parallel()
	for _, f := range []float64{0, 1, -1, 3.14159265358979, 1e300, -1e-300} {
		enc, err := amp.Float.Encode(f)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		dec, err := amp.Float.Decode(enc)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if dec.(float64) != f {
			t.Fatalf("got %v, want %v", dec, f)
		}
	}
}

func TestBooleanRoundTrip(t *testing.T) {
	t.Parallel()
	for _, b := range []bool{true, false} {
		enc, err := amp.Boolean.Encode(b)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		dec, err := amp.Boolean.Decode(enc)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if dec.(bool) != b {
			t.Fatalf("got %v, want %v", dec, b)
		}
	}
}

func TestBooleanDecodeRejectsOtherValues(t *testing.T) {
	t.Parallel()
	for _, bad := range []string{"true", "false", "1", "0", "TRUE", ""} {
		if _, err := amp.Boolean.Decode([]byte(bad)); err == nil {
			t.Fatalf("expected decode error for %q", bad)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"", "hello", "héllo wörld", "日本語"} {
		enc, err := amp.String.Encode(s)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		dec, err := amp.String.Decode(enc)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if dec.(string) != s {
			t.Fatalf("got %q, want %q", dec, s)
		}
	}
}

func TestStringDecodeRejectsInvalidUTF8(t *testing.T) {
	t.Parallel()
	if _, err := amp.String.Decode([]byte{0xff, 0xfe}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestBytesRoundTrip(t *testing.T) {
	t.Parallel()
	in := []byte{0x00, 0x01, 0xff, 0x7f}
	enc, err := amp.Bytes.Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := amp.Bytes.Decode(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(dec.([]byte)) != string(in) {
		t.Fatalf("got %v, want %v", dec, in)
	}
}
