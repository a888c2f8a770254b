package testlog

import (
	"sync"

	"transport-dispatch/internal/logx"
)

// Entry is a log entry
type Entry struct {
	Level  string
	Msg    string
	Fields []logx.Field
}

// Field returns the value of the named field and whether it was present.
func (e Entry) Field(key string) (any, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Recorder records log entries
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// New returns a new recorder
func New() *Recorder { return &Recorder{} }

// Logger returns a bound logger
func (r *Recorder) Logger() logx.Logger {
	return bound{r: r}
}

// Entries returns a copy of the log entries
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Find returns entries with the given level and message.
func (r *Recorder) Find(level, msg string) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Level == level && e.Msg == msg {
			out = append(out, e)
		}
	}
	return out
}

// Has reports whether at least one entry with the given level and message was recorded.
func (r *Recorder) Has(level, msg string) bool {
	return len(r.Find(level, msg)) > 0
}

func (r *Recorder) add(level, msg string, fields []logx.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := append([]logx.Field(nil), fields...)
	r.entries = append(r.entries, Entry{Level: level, Msg: msg, Fields: cp})
}

type bound struct {
	r    *Recorder
	base []logx.Field
}

func (b bound) Debug(msg string, f ...logx.Field) { b.r.add("debug", msg, b.merge(f)) }
func (b bound) Info(msg string, f ...logx.Field)  { b.r.add("info", msg, b.merge(f)) }
func (b bound) Warn(msg string, f ...logx.Field)  { b.r.add("warn", msg, b.merge(f)) }
func (b bound) Error(msg string, f ...logx.Field) { b.r.add("error", msg, b.merge(f)) }

func (b bound) With(f ...logx.Field) logx.Logger {
	return bound{r: b.r, base: b.merge(f)}
}

func (b bound) Sync() error { return nil }

func (b bound) merge(f []logx.Field) []logx.Field {
	out := make([]logx.Field, 0, len(b.base)+len(f))
	out = append(out, b.base...)
	return append(out, f...)
}

var _ logx.Logger = bound{}
