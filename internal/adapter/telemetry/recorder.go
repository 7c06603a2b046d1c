package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"askcode/config"
	"askcode/internal/port"
)

// JSONLRecorder appends one JSON object per line to a file per UTC date.
type JSONLRecorder struct {
	dir string
	log *zap.Logger
	now func() time.Time

	mu sync.Mutex
}

func NewJSONLRecorder(dir string, log *zap.Logger) *JSONLRecorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &JSONLRecorder{dir: dir, log: log, now: time.Now}
}

// New returns a no-op recorder when telemetry is disabled.
func New(cfg config.TelemetryConfig, log *zap.Logger) port.Recorder {
	if !cfg.Enabled || cfg.Dir == "" {
		return Nop{}
	}
	return NewJSONLRecorder(cfg.Dir, log)
}

// WithClock overrides the time source.
func (r *JSONLRecorder) WithClock(now func() time.Time) *JSONLRecorder {
	r.now = now
	return r
}

// Record appends record. A missing timestamp is filled in. Errors are
// logged and dropped.
func (r *JSONLRecorder) Record(record map[string]any) {
	now := r.now().UTC()

	out := make(map[string]any, len(record)+1)
	for k, v := range record {
		out[k] = coerce(v)
	}
	if _, ok := out["timestamp"]; !ok {
		out["timestamp"] = now.Format(time.RFC3339)
	}

	line, err := json.Marshal(out)
	if err != nil {
		r.log.Debug("failed to encode trace record", zap.Error(err))
		return
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		r.log.Debug("failed to create trace directory", zap.String("dir", r.dir), zap.Error(err))
		return
	}
	path := r.PathFor(now)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		r.log.Debug("failed to open trace file", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		r.log.Debug("failed to write trace record", zap.String("path", path), zap.Error(err))
	}
}

// PathFor returns the trace file for the UTC date of t.
func (r *JSONLRecorder) PathFor(t time.Time) string {
	return filepath.Join(r.dir, t.UTC().Format("2006-01-02")+".jsonl")
}

// coerce reduces v to a JSON primitive.
func coerce(v any) any {
	switch x := v.(type) {
	case nil, string, bool, float64, int64:
		return x
	case time.Duration:
		return x.Seconds()
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	}
	return fmt.Sprint(v)
}

// Nop discards records.
type Nop struct{}

func (Nop) Record(map[string]any) {}
