package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"nearbysmelt/internal/sim/tuning"
	"nearbysmelt/internal/sim/world"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqAudit, audit: world.AuditEntry{Tick: 1}}

	_ = s.WriteAudit(world.AuditEntry{Tick: 2})
	_ = s.WriteReplication(world.ReplicationEntry{Tick: 2})

	st := s.Stats()
	if st.DropAuditTotal != 1 {
		t.Fatalf("DropAuditTotal=%d want=1", st.DropAuditTotal)
	}
	if st.DropReplicationTotal != 1 {
		t.Fatalf("DropReplicationTotal=%d want=1", st.DropReplicationTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_AuditsPersistAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.sqlite")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.UpsertCatalogs("", nil, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	entries := []world.AuditEntry{
		{Tick: 3, Actor: "A1", Action: "SMELT_NEARBY", Param: "iron_ingot", Outcome: "not_visible"},
		{Tick: 4, Actor: "A1", Action: "SMELT_NEARBY", Param: "iron_ingot", Outcome: "accepted", Input: "iron_ore"},
		{Tick: 4, Actor: "A2", Action: "SMELT_NEARBY", Param: "glass", Outcome: "no_recipe"},
	}
	for _, e := range entries {
		if err := s.WriteAudit(e); err != nil {
			t.Fatalf("WriteAudit: %v", err)
		}
	}
	_ = s.WriteReplication(world.ReplicationEntry{Tick: 4, Pos: [3]int32{1, 2, 3}, IsAdd: true, Actor: "A1", Clients: 1})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Writes after close are ignored.
	_ = s.WriteAudit(world.AuditEntry{Tick: 9, Actor: "A1"})

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	rows, err := s.AuditsByActor(context.Background(), "A1", 10)
	if err != nil {
		t.Fatalf("AuditsByActor: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d want=2: %+v", len(rows), rows)
	}
	if rows[0].Tick != 4 || rows[0].Outcome != "accepted" || rows[0].Input != "iron_ore" {
		t.Fatalf("newest row mismatch: %+v", rows[0])
	}

	counts, err := s.OutcomeCounts(context.Background())
	if err != nil {
		t.Fatalf("OutcomeCounts: %v", err)
	}
	if counts["accepted"] != 1 || counts["not_visible"] != 1 || counts["no_recipe"] != 1 {
		t.Fatalf("counts mismatch: %v", counts)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM replications WHERE is_add = 1`).Scan(&n); err != nil {
		t.Fatalf("count replications: %v", err)
	}
	if n != 1 {
		t.Fatalf("replications=%d want=1", n)
	}
	var name string
	if err := s.db.QueryRow(`SELECT name FROM catalogs WHERE name = 'tuning'`).Scan(&name); err != nil {
		t.Fatalf("tuning row: %v", err)
	}
}
