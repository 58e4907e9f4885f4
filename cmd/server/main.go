package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"nearbysmelt/internal/logging"
	persistlog "nearbysmelt/internal/persistence/log"
	"nearbysmelt/internal/sim/blockevents"
	"nearbysmelt/internal/sim/catalogs"
	"nearbysmelt/internal/sim/tuning"
	"nearbysmelt/internal/sim/visibility"
	"nearbysmelt/internal/sim/world"
	"nearbysmelt/internal/sim/world/feature/work/smelt"
	"nearbysmelt/internal/sim/world/kernel/model"
	"nearbysmelt/internal/transport/ws"
)

type serverFlags struct {
	addr       string
	worldID    string
	configDir  string
	tuningPath string
	dataDir    string
	disableDB  bool
	logLevel   string
	logFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f serverFlags
	cmd := &cobra.Command{
		Use:          "server",
		Short:        "Authoritative nearby-smelt server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.addr, "addr", ":8080", "http listen address")
	fl.StringVar(&f.worldID, "world", "world_1", "world id")
	fl.StringVar(&f.configDir, "configs", "./configs", "config directory")
	fl.StringVar(&f.tuningPath, "tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	fl.StringVar(&f.dataDir, "data", "./data", "runtime data directory")
	fl.BoolVar(&f.disableDB, "disable_db", false, "disable the sqlite audit index")
	fl.StringVar(&f.logLevel, "log_level", "info", "log level (debug, info, warn, error)")
	fl.StringVar(&f.logFile, "log_file", "", "rolling log file (optional)")
	return cmd
}

func run(ctx context.Context, f serverFlags) error {
	logger, closeLog, err := logging.New(logging.Config{Level: f.logLevel, File: f.logFile})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()
	logger = logger.With("component", "server")

	tp := strings.TrimSpace(f.tuningPath)
	if tp == "" {
		tp = filepath.Join(f.configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Errorw("load tuning", "path", tp, "err", err)
			return err
		}
		logger.Infow("tuning not found; using defaults", "path", tp)
		tune = tuning.Defaults()
	}
	cats, err := catalogs.Load(f.configDir)
	if err != nil {
		logger.Errorw("load catalogs", "err", err)
		return err
	}
	resolver, err := smelt.NewResolver(cats.Recipes)
	if err != nil {
		logger.Errorw("build smelt resolver", "err", err)
		return err
	}

	worldDir := filepath.Join(f.dataDir, "worlds", f.worldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		return err
	}

	w := world.New(world.WorldConfig{
		ID:         f.worldID,
		TickRateHz: tune.TickRateHz,
		EyeHeight:  tune.EyeHeight,
		DefaultViewport: visibility.Viewport{
			Width:  tune.DefaultViewport.Width,
			Height: tune.DefaultViewport.Height,
			FOV:    tune.DefaultViewport.FOV,
		},
		SmeltRate:    rate.Limit(tune.RateLimits.SmeltPerSecond),
		SmeltBurst:   tune.RateLimits.SmeltBurst,
		StarterItems: tune.StarterItems,
	}, resolver, logger)

	auditLog := persistlog.NewAuditLogger(worldDir)
	defer auditLog.Close()
	repLog := persistlog.NewReplicationLogger(worldDir)
	defer repLog.Close()

	audits := []world.AuditLogger{auditLog}
	reps := []world.ReplicationLogger{repLog}
	idx, err := openRuntimeIndex(worldDir, f.disableDB)
	if err != nil {
		logger.Errorw("open index backend", "err", err)
		return err
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(f.configDir, cats, tune); err != nil {
			logger.Warnw("index backend: upsert catalogs", "err", err)
		}
		audits = append(audits, idx)
		reps = append(reps, idx)
	}
	w.SetAuditLoggers(audits...)
	w.SetReplicationLoggers(reps...)

	src := blockevents.NewSource()
	w.Install(src)
	defer w.Deinstall()

	mux := newMux(muxDeps{
		world:       w,
		events:      src,
		index:       idx,
		ws:          ws.NewServer(w, tune.OutQueue, logger),
		enableAdmin: envBool("NS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		log:         logger,
	})
	srv := &http.Server{
		Addr:              f.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := w.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		seedFurnaces(src, tune.WorldGen.Furnaces)
		logger.Infow("seeded furnaces", "count", len(tune.WorldGen.Furnaces))
		return nil
	})
	g.Go(func() error {
		ln, err := net.Listen("tcp", f.addr)
		if err != nil {
			return err
		}
		logger.Infow("listening", "addr", ln.Addr().String(), "world_id", f.worldID, "tick_rate_hz", tune.TickRateHz)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		w.Stop()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})

	err = g.Wait()
	if err != nil {
		logger.Errorw("server stopped", "err", err)
		return err
	}
	logger.Infow("server stopped", "tick", w.CurrentTick())
	return nil
}

// seedFurnaces places world-generated furnaces. They have no actor, so they
// reach clients only through the join snapshot.
func seedFurnaces(src *blockevents.Source, positions [][3]int32) {
	for _, p := range positions {
		src.Placed(blockevents.Event{Pos: model.Vec3iFromArray(p)})
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
