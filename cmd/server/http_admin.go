package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"nearbysmelt/internal/sim/blockevents"
	"nearbysmelt/internal/sim/world"
	"nearbysmelt/internal/sim/world/kernel/model"
)

type muxDeps struct {
	world       *world.World
	events      *blockevents.Source
	index       runtimeIndex
	ws          interface{ Handler() http.HandlerFunc }
	enableAdmin bool
	log         *zap.SugaredLogger
}

type furnaceRequest struct {
	Pos    []int32 `json:"pos"`
	Actor  string  `json:"actor"`
	Remove bool    `json:"remove"`
}

func newMux(d muxDeps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		writeMetrics(ctx, rw, d)
	})

	if d.enableAdmin {
		mux.HandleFunc("/admin/furnaces", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
				defer cancel()
				fs, err := d.world.Furnaces(ctx)
				if err != nil {
					writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
					return
				}
				pos := make([][3]int32, 0, len(fs))
				for _, p := range fs {
					pos = append(pos, p.ToArray())
				}
				writeJSON(rw, http.StatusOK, map[string]any{"tick": d.world.CurrentTick(), "furnaces": pos})
			case http.MethodPost:
				var req furnaceRequest
				dec := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 4096))
				dec.DisallowUnknownFields()
				if err := dec.Decode(&req); err != nil || len(req.Pos) != 3 {
					writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "body must be {\"pos\":[x,y,z],\"actor\":\"...\",\"remove\":false}"})
					return
				}
				pos := [3]int32{req.Pos[0], req.Pos[1], req.Pos[2]}
				ev := blockevents.Event{Pos: model.Vec3iFromArray(pos), Actor: strings.TrimSpace(req.Actor)}
				if req.Remove {
					d.events.Destroyed(ev)
				} else {
					d.events.Placed(ev)
				}
				d.log.Infow("admin furnace event", "pos", pos, "actor", ev.Actor, "remove", req.Remove)
				writeJSON(rw, http.StatusAccepted, map[string]any{"ok": true})
			default:
				rw.WriteHeader(http.StatusMethodNotAllowed)
			}
		}))
		mux.HandleFunc("/admin/agents", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			agents, err := d.world.Agents(ctx)
			if err != nil {
				writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
				return
			}
			writeJSON(rw, http.StatusOK, map[string]any{"tick": d.world.CurrentTick(), "agents": agents})
		}))
		mux.HandleFunc("/admin/audits", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			if d.index == nil {
				writeJSON(rw, http.StatusNotFound, map[string]any{"ok": false, "error": "index disabled"})
				return
			}
			actor := strings.TrimSpace(r.URL.Query().Get("actor"))
			if actor == "" {
				counts, err := d.index.OutcomeCounts(r.Context())
				if err != nil {
					writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
					return
				}
				writeJSON(rw, http.StatusOK, map[string]any{"outcomes": counts})
				return
			}
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			rows, err := d.index.AuditsByActor(r.Context(), actor, limit)
			if err != nil {
				writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
				return
			}
			writeJSON(rw, http.StatusOK, map[string]any{"actor": actor, "audits": rows})
		}))
	} else {
		d.log.Infow("admin endpoints disabled (NS_ENABLE_ADMIN_HTTP=false)")
	}

	mux.HandleFunc("/v1/ws", d.ws.Handler())
	return mux
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

// writeMetrics emits a minimal Prometheus exposition.
func writeMetrics(ctx context.Context, rw http.ResponseWriter, d muxDeps) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	id := d.world.ID()

	fmt.Fprintf(rw, "# HELP nearbysmelt_world_tick Current world tick.\n")
	fmt.Fprintf(rw, "# TYPE nearbysmelt_world_tick gauge\n")
	fmt.Fprintf(rw, "nearbysmelt_world_tick{world=%q} %d\n", id, d.world.CurrentTick())

	if fs, err := d.world.Furnaces(ctx); err == nil {
		fmt.Fprintf(rw, "# HELP nearbysmelt_world_furnaces Furnaces in the authoritative registry.\n")
		fmt.Fprintf(rw, "# TYPE nearbysmelt_world_furnaces gauge\n")
		fmt.Fprintf(rw, "nearbysmelt_world_furnaces{world=%q} %d\n", id, len(fs))
	}
	if agents, err := d.world.Agents(ctx); err == nil {
		fmt.Fprintf(rw, "# HELP nearbysmelt_world_agents Connected agents.\n")
		fmt.Fprintf(rw, "# TYPE nearbysmelt_world_agents gauge\n")
		fmt.Fprintf(rw, "nearbysmelt_world_agents{world=%q} %d\n", id, len(agents))
	}
	if d.index != nil {
		st := d.index.Stats()
		fmt.Fprintf(rw, "# HELP nearbysmelt_index_queue_depth Audit index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE nearbysmelt_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "nearbysmelt_index_queue_depth{world=%q} %d\n", id, st.QueueDepth)
		fmt.Fprintf(rw, "# HELP nearbysmelt_index_dropped_total Index writes dropped because the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE nearbysmelt_index_dropped_total counter\n")
		fmt.Fprintf(rw, "nearbysmelt_index_dropped_total{world=%q,kind=%q} %d\n", id, "audit", st.DropAuditTotal)
		fmt.Fprintf(rw, "nearbysmelt_index_dropped_total{world=%q,kind=%q} %d\n", id, "replication", st.DropReplicationTotal)
	}
}
