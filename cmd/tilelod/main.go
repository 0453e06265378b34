package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/globedraw/geodesy"
	"github.com/signalsfoundry/globedraw/internal/config"
	"github.com/signalsfoundry/globedraw/internal/logging"
	"github.com/signalsfoundry/globedraw/internal/observability"
	"github.com/signalsfoundry/globedraw/internal/tilesource"
	"github.com/signalsfoundry/globedraw/primitive"
	"github.com/signalsfoundry/globedraw/scene"
	"github.com/signalsfoundry/globedraw/tiles"
	"github.com/signalsfoundry/globedraw/timectrl"
)

// Move is one camera position. A nil Level means no terrain is rendered.
type Move struct {
	View  []float64 `yaml:"view"`
	Level *int      `yaml:"level"`
}

func loadMoves(path string) ([]Move, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read moves: %w", err)
	}
	var doc struct {
		Moves []Move `yaml:"moves"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse moves %s: %w", path, err)
	}
	for i, m := range doc.Moves {
		if len(m.View) != 4 || m.View[2] <= m.View[0] || m.View[3] <= m.View[1] {
			return nil, fmt.Errorf("move %d: view %v is not west,south,east,north", i, m.View)
		}
	}
	return doc.Moves, nil
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	dataPath := flag.String("data", "", "GeoJSON or shapefile point dataset")
	movesPath := flag.String("moves", "", "YAML list of camera moves")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logging.New(cfg.Logging)
	if *dataPath == "" || *movesPath == "" {
		fmt.Fprintln(os.Stderr, "usage: tilelod -data points.geojson -moves moves.yaml")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, log, *dataPath, *movesPath, os.Stdout); err != nil {
		log.Error(ctx, "tilelod failed", logging.Err(err))
		os.Exit(1)
	}
}

// run replays every move against a tiled collection on a controlled
// clock and prints the tiles each move leaves on screen.
func run(ctx context.Context, cfg config.Config, log logging.Logger, dataPath, movesPath string, out io.Writer) error {
	shutdown, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	collector, err := observability.NewEngineCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	src, err := tilesource.Open(dataPath)
	if err != nil {
		return err
	}
	moves, err := loadMoves(movesPath)
	if err != nil {
		return err
	}
	log.Info(ctx, "loaded dataset", logging.String("path", dataPath), logging.Int("points", src.Len()), logging.Int("moves", len(moves)))

	sc := scene.New(scene.Viewport{Width: 1000, Height: 1000, Bound: orb.Bound{Max: orb.Point{1, 1}}})
	camera := &scene.StaticCamera{}
	clock := timectrl.NewTimeController(time.Unix(0, 0).UTC())

	opts := cfg.TilesOptions(src)
	opts.Clock = clock
	opts.Logger = log
	opts.Metrics = collector
	coll, err := tiles.New(sc, camera, opts)
	if err != nil {
		return err
	}
	defer coll.Destroy()

	for i, m := range moves {
		if err := ctx.Err(); err != nil {
			return err
		}
		view := geodesy.RectangleFromDegrees(m.View[0], m.View[1], m.View[2], m.View[3])
		camera.View = view
		camera.Center = view.Center()
		camera.HasTarget = true
		camera.HasLevel = m.Level != nil
		if m.Level != nil {
			camera.Level = *m.Level
		}
		sc.CameraMoveEnd()
		clock.Advance(opts.Debounce)
		coll.Wait()

		ids := make([]string, 0)
		for _, t := range coll.VisibleTiles() {
			ids = append(ids, t.ID)
		}
		fmt.Fprintf(out, "move %d: %d tiles [%s], %d markers shown, %d cached\n",
			i+1, len(ids), strings.Join(ids, " "), shownMarkers(sc), len(coll.CachedTiles()))
	}
	if len(moves) == 0 {
		return errors.New("no camera moves")
	}
	return nil
}

func shownMarkers(sc *scene.Scene) int {
	n := 0
	for _, c := range sc.Collections() {
		c.View(func(_ []*primitive.Primitive, bbs []*primitive.Billboard) {
			for _, b := range bbs {
				if b.Show {
					n++
				}
			}
		})
	}
	return n
}
