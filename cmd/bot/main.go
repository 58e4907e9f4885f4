package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"nearbysmelt/internal/client"
	"nearbysmelt/internal/logging"
	"nearbysmelt/internal/sim/visibility"
	"nearbysmelt/internal/transport/ws"
)

type botFlags struct {
	url      string
	name     string
	pos      []float64
	yaw      float64
	pitch    float64
	width    int32
	height   int32
	fov      float64
	allow    []string
	deny     []string
	obsEvery time.Duration
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f botFlags
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Connect an agent and drive it with commands read from stdin",
		Long: `Reads one command per line from stdin:

  smeltNearby <item>        request smelting at a furnace in view ("none" is ignored)
  pose X Y Z [YAW [PITCH]]  move the agent and report the new pose
  view W H FOV              report a resized viewport
  obs                       print the current observation

Observations are also printed every --obs_every.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(f.pos) != 3 {
				return fmt.Errorf("--pos needs 3 values, got %d", len(f.pos))
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, f, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.url, "url", "ws://localhost:8080/v1/ws", "ws url")
	fl.StringVar(&f.name, "name", "bot", "agent name")
	fl.Float64SliceVar(&f.pos, "pos", []float64{0.5, 0, 0.5}, "initial feet position x,y,z")
	fl.Float64Var(&f.yaw, "yaw", 0, "initial yaw in degrees (0 faces +Z)")
	fl.Float64Var(&f.pitch, "pitch", 0, "initial pitch in degrees (+90 looks down)")
	fl.Int32Var(&f.width, "width", 854, "viewport width")
	fl.Int32Var(&f.height, "height", 480, "viewport height")
	fl.Float64Var(&f.fov, "fov", 70, "horizontal field of view in degrees")
	fl.StringSliceVar(&f.allow, "allow", nil, "only handle these verbs")
	fl.StringSliceVar(&f.deny, "deny", nil, "never handle these verbs")
	fl.DurationVar(&f.obsEvery, "obs_every", 5*time.Second, "observation print interval (0 disables)")
	fl.StringVar(&f.logLevel, "log_level", "info", "log level")
	return cmd
}

func run(ctx context.Context, f botFlags, in io.Reader, out io.Writer) error {
	logger, closeLog, err := logging.New(logging.Config{Level: f.logLevel, Console: os.Stderr})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	cfg := client.Config{
		Name:     f.name,
		Viewport: visibility.Viewport{Width: f.width, Height: f.height, FOV: f.fov},
		Allow:    f.allow,
		Deny:     f.deny,
	}
	conn, err := ws.Dial(ctx, f.url, cfg.Hello(), logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	cli := client.New(cfg, conn, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return conn.Run(gctx, cli.Inbound()) })
	g.Go(func() error { return cli.Run(gctx) })
	g.Go(func() error {
		pose := visibility.Pose{Pos: mgl64.Vec3{f.pos[0], f.pos[1], f.pos[2]}, Yaw: f.yaw, Pitch: f.pitch}
		if err := cli.SetPose(gctx, pose); err != nil {
			return err
		}
		return readCommands(gctx, cli, in, out)
	})
	if f.obsEvery > 0 {
		g.Go(func() error {
			t := time.NewTicker(f.obsEvery)
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-t.C:
					if err := printObs(gctx, cli, out); err != nil {
						return err
					}
				}
			}
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, errStdinClosed) {
		return nil
	}
	return err
}

var errStdinClosed = errors.New("stdin closed")

// readCommands returns errStdinClosed at EOF so the session shuts down.
func readCommands(ctx context.Context, cli *client.Client, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return errStdinClosed
			}
			if err := handleLine(ctx, cli, line, out); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		}
	}
}

func printObs(ctx context.Context, cli *client.Client, out io.Writer) error {
	obs, err := cli.Observe(ctx)
	if err != nil {
		return err
	}
	b, err := obs.JSON()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(b))
	return nil
}
