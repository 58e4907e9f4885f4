package log

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nearbysmelt/internal/sim/world"
)

type line struct {
	N int `json:"n"`
}

func scanLines(t *testing.T, worldDir, kind string) []int {
	t.Helper()
	var out []int
	if err := Scan(worldDir, kind, func(l line) error {
		out = append(out, l.N)
		return nil
	}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return out
}

func TestJSONLZstdWriter_RotatesHourlyOnClock(t *testing.T) {
	worldDir := t.TempDir()
	now := time.Date(2026, 1, 2, 3, 59, 0, 0, time.UTC)
	w := NewJSONLZstdWriter(filepath.Join(worldDir, "x"), "x", WithClock(func() time.Time { return now }))

	for i, step := range []time.Duration{0, 30 * time.Second, 2 * time.Minute, 0} {
		now = now.Add(step)
		if err := w.Write(line{N: i + 1}); err != nil {
			t.Fatalf("write %d: %v", i+1, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	segs, err := Segments(worldDir, "x")
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	want := []string{
		filepath.Join(worldDir, "x", "x-2026-01-02-03.jsonl.zst"),
		filepath.Join(worldDir, "x", "x-2026-01-02-04.jsonl.zst"),
	}
	if len(segs) != 2 || segs[0] != want[0] || segs[1] != want[1] {
		t.Fatalf("segments=%v want %v", segs, want)
	}
	if got := scanLines(t, worldDir, "x"); len(got) != 4 || got[0] != 1 || got[3] != 4 {
		t.Fatalf("lines=%v", got)
	}
}

func TestJSONLZstdWriter_ReopenedHourAppends(t *testing.T) {
	worldDir := t.TempDir()
	clock := WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC) })

	for i := 1; i <= 2; i++ {
		w := NewJSONLZstdWriter(filepath.Join(worldDir, "x"), "x", clock)
		if err := w.Write(line{N: i}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	if got := scanLines(t, worldDir, "x"); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("lines=%v", got)
	}
}

func TestScan_MissingTrailAndStop(t *testing.T) {
	if got := scanLines(t, t.TempDir(), KindAudit); len(got) != 0 {
		t.Fatalf("lines=%v", got)
	}

	worldDir := t.TempDir()
	w := NewJSONLZstdWriter(filepath.Join(worldDir, "x"), "x")
	for i := 1; i <= 3; i++ {
		if err := w.Write(line{N: i}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	stop := errors.New("stop")
	seen := 0
	err := Scan(worldDir, "x", func(line) error {
		seen++
		if seen == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || seen != 2 {
		t.Fatalf("err=%v seen=%d", err, seen)
	}
}

func TestScan_CorruptLineNamesSegment(t *testing.T) {
	worldDir := t.TempDir()
	w := NewJSONLZstdWriter(filepath.Join(worldDir, "x"), "x")
	if err := w.Write("not an object"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := Scan(worldDir, "x", func(line) error { return nil }); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestAuditAndReplicationLoggers(t *testing.T) {
	dir := t.TempDir()
	al := NewAuditLogger(dir)
	rl := NewReplicationLogger(dir)

	if err := al.WriteAudit(world.AuditEntry{Tick: 7, Actor: "A1", Action: "SMELT_NEARBY", Param: "iron_ingot", Outcome: "accepted", Input: "IRON_ORE"}); err != nil {
		t.Fatalf("audit: %v", err)
	}
	if err := rl.WriteReplication(world.ReplicationEntry{Tick: 7, Pos: [3]int32{1, 2, 3}, IsAdd: true, Actor: "A1", Clients: 2}); err != nil {
		t.Fatalf("replication: %v", err)
	}
	if err := al.Close(); err != nil {
		t.Fatalf("close audit: %v", err)
	}
	if err := rl.Close(); err != nil {
		t.Fatalf("close replication: %v", err)
	}

	var audits []world.AuditEntry
	if err := Scan(dir, KindAudit, func(e world.AuditEntry) error {
		audits = append(audits, e)
		return nil
	}); err != nil {
		t.Fatalf("scan audit: %v", err)
	}
	if len(audits) != 1 || audits[0].Outcome != "accepted" || audits[0].Input != "IRON_ORE" {
		t.Fatalf("audit lines: %+v", audits)
	}

	var reps []world.ReplicationEntry
	if err := Scan(dir, KindReplication, func(e world.ReplicationEntry) error {
		reps = append(reps, e)
		return nil
	}); err != nil {
		t.Fatalf("scan replication: %v", err)
	}
	if len(reps) != 1 || !reps[0].IsAdd || reps[0].Clients != 2 || reps[0].Pos != [3]int32{1, 2, 3} {
		t.Fatalf("replication lines: %+v", reps)
	}

	if _, err := os.Stat(filepath.Join(dir, KindAudit)); err != nil {
		t.Fatalf("audit dir: %v", err)
	}
}
