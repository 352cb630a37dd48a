package metrics

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
)

// JSONLObserver writes one JSON object per event.
type JSONLObserver struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	closer io.Closer
	logger *slog.Logger
}

func NewJSONLObserver(w io.Writer) *JSONLObserver {
	if w == nil {
		w = io.Discard
	}
	o := &JSONLObserver{buf: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		o.closer = c
	}
	o.logger = slog.New(slog.NewJSONHandler(lockedWriter{o}, nil))
	return o
}

// OpenJSONL appends events to the file at path.
func OpenJSONL(path string) (*JSONLObserver, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return NewJSONLObserver(f), nil
}

func (o *JSONLObserver) RecordEvent(ev MetricsEvent) {
	attrs := []slog.Attr{
		slog.String("name", ev.Name),
		slog.Time("time", ev.Time),
		slog.Float64("value", ev.Value),
	}
	for _, k := range sortedKeys(ev.Tags) {
		attrs = append(attrs, slog.String(k, ev.Tags[k]))
	}
	for _, k := range sortedKeys(ev.Fields) {
		attrs = append(attrs, slog.Any(k, ev.Fields[k]))
	}
	o.logger.LogAttrs(context.Background(), slog.LevelInfo, "metrics", attrs...)
}

func (o *JSONLObserver) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.Flush()
}

// Close flushes and closes the underlying file when there is one.
func (o *JSONLObserver) Close() error {
	if err := o.Flush(); err != nil {
		return err
	}
	if o.closer != nil {
		return o.closer.Close()
	}
	return nil
}

type lockedWriter struct{ o *JSONLObserver }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.o.mu.Lock()
	defer w.o.mu.Unlock()
	return w.o.buf.Write(p)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
