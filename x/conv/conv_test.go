package conv

import (
	"math"
	"testing"
)

func TestAppendInt(t *testing.T) {
	cases := map[int64]string{
		0:             "0",
		7:             "7",
		-42:           "-42",
		3300:          "3300",
		math.MaxInt64: "9223372036854775807",
		math.MinInt64: "-9223372036854775808",
	}
	for n, want := range cases {
		if got := string(AppendInt(nil, n)); got != want {
			t.Errorf("AppendInt(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestAppendUint(t *testing.T) {
	if got := string(AppendUint([]byte("n="), 0)); got != "n=0" {
		t.Fatalf("AppendUint(0) = %q", got)
	}
	if got := string(AppendUint(nil, math.MaxUint64)); got != "18446744073709551615" {
		t.Fatalf("AppendUint(max) = %q", got)
	}
}

func TestAppendHex8(t *testing.T) {
	for v, want := range map[uint8]string{0: "00", 0x2A: "2a", 0xFF: "ff"} {
		if got := string(AppendHex8(nil, v)); got != want {
			t.Errorf("AppendHex8(%#x) = %q, want %q", v, got, want)
		}
	}
}
