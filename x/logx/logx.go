// Package logx writes tag-prefixed log lines without fmt.
//
//	logx.Info("pmic", "fence", "active", true)
//	// [pmic] fence active=true
package logx

import (
	"io"
	"sync"

	"powercode-go/x/conv"
)

// Out receives complete lines. Platforms replace it at boot (e.g. a UART).
var Out io.Writer = console{}

var mu sync.Mutex

type console struct{}

func (console) Write(p []byte) (int, error) {
	print(string(p))
	return len(p), nil
}

// Info logs msg under tag followed by key=value pairs.
func Info(tag, msg string, kv ...any) { write("", tag, msg, kv) }

// Warn is Info with a "WARN " marker, used for degraded hardware paths.
func Warn(tag, msg string, kv ...any) { write("WARN ", tag, msg, kv) }

func write(level, tag, msg string, kv []any) {
	b := make([]byte, 0, 64)
	b = append(b, '[')
	b = append(b, tag...)
	b = append(b, "] "...)
	b = append(b, level...)
	b = append(b, msg...)
	for i := 0; i+1 < len(kv); i += 2 {
		b = append(b, ' ')
		if k, ok := kv[i].(string); ok {
			b = append(b, k...)
		}
		b = append(b, '=')
		b = appendValue(b, kv[i+1])
	}
	b = append(b, '\n')

	mu.Lock()
	_, _ = Out.Write(b)
	mu.Unlock()
}

func appendValue(b []byte, v any) []byte {
	switch x := v.(type) {
	case string:
		return append(b, x...)
	case bool:
		if x {
			return append(b, "true"...)
		}
		return append(b, "false"...)
	case int:
		return conv.AppendInt(b, int64(x))
	case int64:
		return conv.AppendInt(b, x)
	case uint8:
		return conv.AppendHex8(append(b, "0x"...), x)
	case uint32:
		return conv.AppendUint(b, uint64(x))
	case uint64:
		return conv.AppendUint(b, x)
	case error:
		if x == nil {
			return append(b, "<nil>"...)
		}
		return append(b, x.Error()...)
	case interface{ String() string }:
		return append(b, x.String()...)
	case nil:
		return append(b, "<nil>"...)
	default:
		return append(b, '?')
	}
}
