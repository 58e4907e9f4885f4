package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	persistlog "nearbysmelt/internal/persistence/log"
	"nearbysmelt/internal/sim/world"
)

type auditFilter struct {
	Actor     string
	Outcome   string
	SinceTick uint64
	ToTick    uint64 // 0 means no upper bound
}

func (f auditFilter) match(e world.AuditEntry) bool {
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if e.Tick < f.SinceTick {
		return false
	}
	return f.ToTick == 0 || e.Tick <= f.ToTick
}

func newAuditCmd() *cobra.Command {
	var dataDir, worldID string
	var f auditFilter
	var summary bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read smelt decisions from the zstd audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(worldID) == "" {
				return fmt.Errorf("missing --world")
			}
			recs, err := readAudit(filepath.Join(dataDir, "worlds", worldID), f)
			if err != nil {
				return fmt.Errorf("read audit: %w", err)
			}
			out := cmd.OutOrStdout()
			if summary {
				counts := summarize(recs)
				keys := make([]string, 0, len(counts))
				for k := range counts {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(out, "%s\t%d\n", k, counts[k])
				}
				return nil
			}
			enc := json.NewEncoder(out)
			for _, e := range recs {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&dataDir, "data", "./data", "runtime data directory")
	fl.StringVar(&worldID, "world", "", "world id")
	fl.StringVar(&f.Actor, "actor", "", "agent id filter")
	fl.StringVar(&f.Outcome, "outcome", "", "outcome filter (accepted, not_visible, no_recipe, rate_limited, apply_failed)")
	fl.Uint64Var(&f.SinceTick, "since_tick", 0, "first tick (inclusive)")
	fl.Uint64Var(&f.ToTick, "to_tick", 0, "last tick (inclusive, 0 for no bound)")
	fl.BoolVar(&summary, "summary", false, "print counts per outcome instead of entries")
	return cmd
}

// readAudit returns matching entries in log order.
func readAudit(worldDir string, f auditFilter) ([]world.AuditEntry, error) {
	var out []world.AuditEntry
	err := persistlog.Scan(worldDir, persistlog.KindAudit, func(e world.AuditEntry) error {
		if f.match(e) {
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

func summarize(recs []world.AuditEntry) map[string]int {
	out := map[string]int{}
	for _, e := range recs {
		out[e.Outcome]++
	}
	return out
}
