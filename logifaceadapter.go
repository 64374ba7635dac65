package asyncobjects

import "github.com/joeycumines/logiface"

// logifaceSink adapts a *logiface.Logger[E] to the Logger interface, so
// that a caller already using logiface in their service can plug it
// straight into every primitive's logger option, instead of maintaining
// a second logging pipeline.
type logifaceSink[E logiface.Event] struct {
	logger *logiface.Logger[E]
}

// NewLogifaceLogger adapts logger to the Logger interface used throughout
// this package. A nil logger yields a no-op sink.
func NewLogifaceLogger[E logiface.Event](logger *logiface.Logger[E]) Logger {
	if logger == nil {
		return NewNoopLogger()
	}
	return &logifaceSink[E]{logger: logger}
}

func toLogifaceLevel(level LogLevel) logiface.Level {
	switch level {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

func (s *logifaceSink[E]) Enabled(level LogLevel) bool {
	return toLogifaceLevel(level) <= s.logger.Level()
}

func (s *logifaceSink[E]) Log(entry Record) {
	b := s.logger.Build(toLogifaceLevel(entry.Level))
	if b == nil || !b.Enabled() {
		return
	}
	b = b.Str("obj", entry.Obj).Str("op", entry.Op)
	if entry.ID != nil {
		b = b.Any("id", entry.ID)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	for k, v := range entry.Fields {
		b = b.Any(k, v)
	}
	b.Log(entry.Message)
}
