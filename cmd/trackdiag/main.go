// Command trackdiag runs one calculation against a propagation service and
// prints the readouts and the dateline-split ground track, without a browser.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sudhakar086/nasa-python-sgp4/internal/calc"
	"github.com/sudhakar086/nasa-python-sgp4/internal/render"
	"github.com/sudhakar086/nasa-python-sgp4/internal/tle"
)

func main() {
	url := flag.String("url", "http://127.0.0.1:8080/calculate", "propagation service endpoint")
	line1 := flag.String("line1", tle.BuiltinLine1, "element set line 1")
	line2 := flag.String("line2", tle.BuiltinLine2, "element set line 2")
	tz := flag.String("tz", "UTC", "timezone for the timestamp readout")
	velocity := flag.String("velocity", string(calc.VelocityAxes), "velocity readout: axes or speed")
	timeout := flag.Duration("timeout", 15*time.Second, "request timeout")
	asGeoJSON := flag.Bool("geojson", false, "print the track layers as GeoJSON")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR timezone:", err)
		os.Exit(2)
	}
	mode, err := calc.ParseVelocityMode(*velocity)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR velocity:", err)
		os.Exit(2)
	}

	session := calc.NewSession(calc.NewClient(*url, *timeout), logger)
	out := session.Do(context.Background(), *line1, *line2)
	if !out.OK() {
		fmt.Println("Error:", out.Message())
		os.Exit(1)
	}

	r := calc.Display{Location: loc, Velocity: mode}.Format(out.Result)
	fmt.Printf("Position (km): x=%s y=%s z=%s\n", r.PosX, r.PosY, r.PosZ)
	if r.Speed != "" {
		fmt.Printf("Speed (km/s):  %s\n", r.Speed)
	} else {
		fmt.Printf("Velocity (km/s): x=%s y=%s z=%s\n", r.VelX, r.VelY, r.VelZ)
	}
	fmt.Printf("Timestamp:     %s\n", r.Timestamp)

	pos, ok := out.Result.Geodetic()
	if !ok {
		fmt.Println("No geodetic position in response; nothing to plot.")
		return
	}

	scene := render.NewScene()
	render.NewRenderer(scene).Update(pos, out.Result.PastPath, out.Result.Path)

	if *asGeoJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(scene.Snapshot().Tracks); err != nil {
			fmt.Fprintln(os.Stderr, "ERROR encoding GeoJSON:", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Marker:        %s\n", scene.Marker().Label)
	for _, layer := range []render.Layer{render.LayerPast, render.LayerFuture} {
		polylines := scene.Segments(layer)
		fmt.Printf("\n%s track: %d segment(s)\n", layer, len(polylines))
		for i, pl := range polylines {
			seg := pl.Segment
			if len(seg) == 0 {
				fmt.Printf("  segment %d: empty\n", i)
				continue
			}
			first, last := seg[0], seg[len(seg)-1]
			fmt.Printf("  segment %d: %d points, (%.2f, %.2f) -> (%.2f, %.2f)\n",
				i, len(seg), first.Lat, first.Lon, last.Lat, last.Lon)
		}
	}
}
