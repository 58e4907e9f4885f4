// Package log keeps the smelt audit trail and the furnace replication trail
// as hourly zstd-compressed JSON lines under a world directory.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"nearbysmelt/internal/sim/world"
)

// Trail kinds. Each is a subdirectory of the world dir and a file prefix.
const (
	KindAudit       = "audit"
	KindReplication = "replication"
)

const segmentSuffix = ".jsonl.zst"

type Option func(*JSONLZstdWriter)

// WithClock replaces time.Now for picking the hourly segment.
func WithClock(now func() time.Time) Option {
	return func(w *JSONLZstdWriter) { w.now = now }
}

func WithLevel(level zstd.EncoderLevel) Option {
	return func(w *JSONLZstdWriter) { w.level = level }
}

// JSONLZstdWriter appends JSON lines to one zstd segment per UTC hour,
// named <prefix>-YYYY-MM-DD-HH.jsonl.zst. Safe for concurrent use.
type JSONLZstdWriter struct {
	dir    string
	prefix string
	now    func() time.Time
	level  zstd.EncoderLevel

	mu   sync.Mutex
	hour string
	seg  *segment
}

func NewJSONLZstdWriter(dir, prefix string, opts ...Option) *JSONLZstdWriter {
	w := &JSONLZstdWriter{
		dir:    dir,
		prefix: prefix,
		now:    time.Now,
		level:  zstd.SpeedFastest,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Write appends v as one line. Lines reach disk when the segment rotates or
// the writer is closed.
func (w *JSONLZstdWriter) Write(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	hour := w.now().UTC().Format("2006-01-02-15")
	if w.seg == nil || hour != w.hour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	_, err = w.seg.enc.Write(line)
	return err
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	seg, err := openSegment(filepath.Join(w.dir, w.prefix+"-"+hour+segmentSuffix), w.level)
	if err != nil {
		return err
	}
	w.seg, w.hour = seg, hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	if w.seg == nil {
		return nil
	}
	err := w.seg.close()
	w.seg = nil
	return err
}

// segment is one open hourly file. Reopening an hour appends a new zstd
// frame, which readers decode as a continuation.
type segment struct {
	f   *os.File
	enc *zstd.Encoder
}

func openSegment(path string, level zstd.EncoderLevel) (*segment, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(level))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{f: f, enc: enc}, nil
}

func (s *segment) close() error {
	return errors.Join(s.enc.Close(), s.f.Close())
}

// Segments lists a trail's files for worldDir, oldest first. A missing
// trail is not an error.
func Segments(worldDir, kind string) ([]string, error) {
	dir := filepath.Join(worldDir, kind)
	ents, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, kind+"-") || !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	// Hour keys sort lexically.
	sort.Strings(out)
	return out, nil
}

// Scan decodes every line of a trail in write order and hands it to fn.
// fn returning an error stops the scan with that error.
func Scan[T any](worldDir, kind string, fn func(T) error) error {
	paths, err := Segments(worldDir, kind)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := scanSegment(p, fn); err != nil {
			return err
		}
	}
	return nil
}

func scanSegment[T any](path string, fn func(T) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for n := 1; sc.Scan(); n++ {
		var v T
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), n, err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return sc.Err()
}

// AuditLogger records one line per smelt decision.
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(worldDir string, opts ...Option) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, KindAudit), KindAudit, opts...)}
}

func (l *AuditLogger) WriteAudit(e world.AuditEntry) error { return l.w.Write(e) }
func (l *AuditLogger) Close() error                        { return l.w.Close() }

// ReplicationLogger records one line per furnace update fanned out to clients.
type ReplicationLogger struct{ w *JSONLZstdWriter }

func NewReplicationLogger(worldDir string, opts ...Option) *ReplicationLogger {
	return &ReplicationLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, KindReplication), KindReplication, opts...)}
}

func (l *ReplicationLogger) WriteReplication(e world.ReplicationEntry) error { return l.w.Write(e) }
func (l *ReplicationLogger) Close() error                                    { return l.w.Close() }
