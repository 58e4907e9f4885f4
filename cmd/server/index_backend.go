package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nearbysmelt/internal/persistence/indexdb"
	"nearbysmelt/internal/sim/catalogs"
	"nearbysmelt/internal/sim/tuning"
	"nearbysmelt/internal/sim/world"
)

type runtimeIndex interface {
	world.AuditLogger
	world.ReplicationLogger
	Close() error
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	Stats() indexdb.Stats
	AuditsByActor(ctx context.Context, actor string, limit int) ([]indexdb.AuditRow, error)
	OutcomeCounts(ctx context.Context) (map[string]int, error)
}

// openRuntimeIndex returns nil when indexing is disabled.
func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("NS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported NS_INDEX_BACKEND: %s", backend)
	}
}
