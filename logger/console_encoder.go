package logger

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// consoleEncoder renders calm single-line output for interactive use:
// a dim timestamp, a colored level tag, the message, then dim key=value
// pairs. JSON mode bypasses this entirely.
type consoleEncoder struct {
	zapcore.Encoder
	pool buffer.Pool
}

const (
	ansiReset = "\x1b[0m"
	ansiDim   = "\x1b[2m"

	ansiBlue   = "\x1b[38;5;109m"
	ansiYellow = "\x1b[38;5;214m"
	ansiRed    = "\x1b[38;5;167m"
	ansiGreen  = "\x1b[38;5;142m"
)

func newConsoleEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	return &consoleEncoder{
		Encoder: zapcore.NewConsoleEncoder(cfg),
		pool:    buffer.NewPool(),
	}
}

func (e *consoleEncoder) Clone() zapcore.Encoder {
	return &consoleEncoder{
		Encoder: e.Encoder.Clone(),
		pool:    e.pool,
	}
}

func levelColor(l zapcore.Level) string {
	switch {
	case l >= zapcore.ErrorLevel:
		return ansiRed
	case l == zapcore.WarnLevel:
		return ansiYellow
	case l == zapcore.DebugLevel:
		return ansiGreen
	default:
		return ansiBlue
	}
}

func levelTag(l zapcore.Level) string {
	switch {
	case l >= zapcore.ErrorLevel:
		return "ERR"
	case l == zapcore.WarnLevel:
		return "WRN"
	case l == zapcore.DebugLevel:
		return "DBG"
	default:
		return "INF"
	}
}

func (e *consoleEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line := e.pool.Get()

	line.AppendString(ansiDim)
	line.AppendString(entry.Time.Format("15:04:05"))
	line.AppendString(ansiReset)
	line.AppendString(" ")

	line.AppendString(levelColor(entry.Level))
	line.AppendString(levelTag(entry.Level))
	line.AppendString(ansiReset)
	line.AppendString(" ")

	if entry.LoggerName != "" {
		line.AppendString(ansiDim)
		line.AppendString(entry.LoggerName)
		line.AppendString(ansiReset)
		line.AppendString(" ")
	}

	line.AppendString(entry.Message)

	for _, f := range fields {
		line.AppendString(" ")
		line.AppendString(ansiDim)
		line.AppendString(f.Key)
		line.AppendString("=")
		line.AppendString(fieldValue(f))
		line.AppendString(ansiReset)
	}

	line.AppendString("\n")
	return line, nil
}

// fieldValue renders a zap field compactly without JSON quoting noise
func fieldValue(f zapcore.Field) string {
	switch f.Type {
	case zapcore.StringType:
		return f.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
		return fmt.Sprintf("%d", f.Integer)
	case zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", uint64(f.Integer))
	case zapcore.BoolType:
		if f.Integer == 1 {
			return "true"
		}
		return "false"
	case zapcore.Float64Type:
		return fmt.Sprintf("%g", math.Float64frombits(uint64(f.Integer)))
	case zapcore.Float32Type:
		return fmt.Sprintf("%g", math.Float32frombits(uint32(f.Integer)))
	case zapcore.DurationType:
		return time.Duration(f.Integer).String()
	case zapcore.TimeType:
		if f.Interface != nil {
			if loc, ok := f.Interface.(*time.Location); ok {
				return time.Unix(0, f.Integer).In(loc).Format(time.RFC3339)
			}
		}
		return time.Unix(0, f.Integer).Format(time.RFC3339)
	case zapcore.ErrorType:
		if err, ok := f.Interface.(error); ok {
			return err.Error()
		}
		return fmt.Sprintf("%v", f.Interface)
	default:
		return fmt.Sprintf("%v", f.Interface)
	}
}
