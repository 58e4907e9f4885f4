package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"nearbysmelt/internal/client"
	"nearbysmelt/internal/sim/visibility"
)

// handleLine runs one bot command. Local commands (pose, view, obs) are
// handled here; everything else goes to the client's action handler.
func handleLine(ctx context.Context, cli *client.Client, line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch strings.ToLower(fields[0]) {
	case "pose":
		p, err := parsePose(fields[1:])
		if err != nil {
			return err
		}
		return cli.SetPose(ctx, p)
	case "view":
		vp, err := parseViewport(fields[1:])
		if err != nil {
			return err
		}
		return cli.SetViewport(ctx, vp)
	case "obs":
		return printObs(ctx, cli, out)
	}
	if !cli.ExecuteLine(line) {
		fmt.Fprintf(out, "not handled: %s\n", strings.TrimSpace(line))
	}
	return nil
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", a)
		}
		out = append(out, v)
	}
	return out, nil
}

func parsePose(args []string) (visibility.Pose, error) {
	if len(args) < 3 || len(args) > 5 {
		return visibility.Pose{}, fmt.Errorf("usage: pose X Y Z [YAW [PITCH]]")
	}
	v, err := parseFloats(args)
	if err != nil {
		return visibility.Pose{}, err
	}
	p := visibility.Pose{Pos: mgl64.Vec3{v[0], v[1], v[2]}}
	if len(v) > 3 {
		p.Yaw = v[3]
	}
	if len(v) > 4 {
		p.Pitch = v[4]
	}
	if !p.Valid() {
		return visibility.Pose{}, fmt.Errorf("pose must be finite with pitch in [-90, 90]")
	}
	return p, nil
}

func parseViewport(args []string) (visibility.Viewport, error) {
	if len(args) != 3 {
		return visibility.Viewport{}, fmt.Errorf("usage: view W H FOV")
	}
	w, err1 := strconv.ParseInt(args[0], 10, 32)
	h, err2 := strconv.ParseInt(args[1], 10, 32)
	fov, err3 := strconv.ParseFloat(args[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return visibility.Viewport{}, fmt.Errorf("usage: view W H FOV")
	}
	return visibility.Viewport{Width: int32(w), Height: int32(h), FOV: fov}, nil
}
