package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func newDBCmd() *cobra.Command {
	var dataDir, worldID, dbPath, actor string
	var limit int
	cmd := &cobra.Command{
		Use:   "db [audits|replications|catalogs]",
		Short: "Query the sqlite audit index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := "audits"
			if len(args) > 0 {
				q = strings.TrimSpace(args[0])
			}
			path := strings.TrimSpace(dbPath)
			if path == "" {
				if strings.TrimSpace(worldID) == "" {
					return fmt.Errorf("missing --world or --db")
				}
				path = filepath.Join(dataDir, "worlds", worldID, "index", "world.sqlite")
			}
			db, err := sql.Open("sqlite", path)
			if err != nil {
				return fmt.Errorf("open: %w", err)
			}
			defer db.Close()

			var rows []map[string]any
			switch q {
			case "audits":
				if actor != "" {
					rows, err = queryRows(db, `SELECT tick, actor, param, outcome, input FROM audits WHERE actor = ? ORDER BY tick DESC, seq DESC LIMIT ?`, actor, limit)
				} else {
					rows, err = queryRows(db, `SELECT tick, actor, param, outcome, input FROM audits ORDER BY tick DESC, seq DESC LIMIT ?`, limit)
				}
			case "replications":
				rows, err = queryRows(db, `SELECT tick, x, y, z, is_add, actor, clients FROM replications ORDER BY tick DESC, seq DESC LIMIT ?`, limit)
			case "catalogs":
				rows, err = queryRows(db, `SELECT name, digest, updated_at FROM catalogs ORDER BY name`)
			default:
				return fmt.Errorf("unknown query %q", q)
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, r := range rows {
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&dataDir, "data", "./data", "runtime data directory")
	fl.StringVar(&worldID, "world", "", "world id (required unless --db)")
	fl.StringVar(&dbPath, "db", "", "sqlite db path (optional)")
	fl.StringVar(&actor, "actor", "", "actor filter (audits)")
	fl.IntVar(&limit, "limit", 20, "result limit")
	return cmd
}

func queryRows(db *sql.DB, q string, args ...any) ([]map[string]any, error) {
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			m[c] = vals[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
