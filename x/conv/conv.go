// Package conv appends numbers to byte slices without fmt or strconv, so
// firmware log lines stay allocation-light.
package conv

const digits = "0123456789abcdef"

// AppendUint appends the decimal form of n.
func AppendUint(dst []byte, n uint64) []byte {
	var buf [20]byte
	i := len(buf)
	for {
		i--
		buf[i] = digits[n%10]
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(dst, buf[i:]...)
}

// AppendInt appends the decimal form of n, with a leading '-' if negative.
func AppendInt(dst []byte, n int64) []byte {
	if n < 0 {
		// Negate in uint64 so MinInt64 survives.
		return AppendUint(append(dst, '-'), uint64(^n)+1)
	}
	return AppendUint(dst, uint64(n))
}

// AppendHex8 appends v as two lowercase hex digits.
func AppendHex8(dst []byte, v uint8) []byte {
	return append(dst, digits[v>>4], digits[v&0x0F])
}
