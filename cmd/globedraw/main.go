package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/paulmach/orb"

	"github.com/signalsfoundry/globedraw/draw"
	"github.com/signalsfoundry/globedraw/geodesy"
	"github.com/signalsfoundry/globedraw/internal/config"
	"github.com/signalsfoundry/globedraw/internal/logging"
	"github.com/signalsfoundry/globedraw/internal/observability"
	"github.com/signalsfoundry/globedraw/internal/replay"
	"github.com/signalsfoundry/globedraw/internal/termhost"
	"github.com/signalsfoundry/globedraw/internal/tilesource"
	"github.com/signalsfoundry/globedraw/model"
	"github.com/signalsfoundry/globedraw/modify"
	"github.com/signalsfoundry/globedraw/scene"
	"github.com/signalsfoundry/globedraw/tiles"
)

const usage = `usage: globedraw [-config file] <command> [flags]

commands:
  replay   replay a scripted session and print the resulting GeoJSON
  tui      draw or edit interactively in the terminal
`

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, log, flag.Args(), os.Stdout); err != nil {
		log.Error(ctx, "globedraw failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logging.Logger, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	shutdown, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	collector, err := observability.NewEngineCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if srv := serveMetrics(cfg.Metrics.Addr, collector, log); srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	switch args[0] {
	case "replay":
		return runReplay(ctx, cfg, log, collector, args[1:], stdout)
	case "tui":
		return runTUI(ctx, cfg, log, collector, args[1:])
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func runReplay(ctx context.Context, cfg config.Config, log logging.Logger, collector *observability.EngineCollector, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	scriptPath := fs.String("script", "", "path to a replay script")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *scriptPath == "" {
		return errors.New("replay: -script is required")
	}

	script, err := replay.LoadScript(*scriptPath)
	if err != nil {
		return err
	}
	report, err := replay.Runner{Config: cfg, Logger: log, Metrics: collector}.Run(ctx, script)
	if err != nil {
		return err
	}
	data, err := report.FeatureCollection().MarshalJSON()
	if err != nil {
		return fmt.Errorf("replay: encode result: %w", err)
	}
	_, err = fmt.Fprintln(stdout, string(data))
	return err
}

func runTUI(ctx context.Context, cfg config.Config, log logging.Logger, collector *observability.EngineCollector, args []string) error {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	drawType := fs.String("draw", "LineString", "geometry type to draw")
	editPath := fs.String("modify", "", "GeoJSON document to edit instead of drawing")
	outPath := fs.String("out", "", "file the last drawn feature or edited document is written to")
	dataPath := fs.String("data", "", "GeoJSON or shapefile points shown as tiled markers")
	view := fs.String("view", "-10,35,30,60", "initial view as west,south,east,north degrees")
	if err := fs.Parse(args); err != nil {
		return err
	}
	bound, err := parseView(*view)
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	defer screen.Fini()
	screen.EnableMouse(tcell.MouseMotionEvents)

	sc := scene.New(scene.Viewport{Bound: bound})
	host := termhost.NewHost(screen, sc, log)
	host.Fit()

	camera := &viewCamera{}
	camera.follow(sc.Viewport())
	host.OnViewportChange = camera.follow

	if *dataPath != "" {
		src, err := tilesource.Open(*dataPath)
		if err != nil {
			return err
		}
		opts := cfg.TilesOptions(src)
		opts.Logger = log
		opts.Metrics = collector
		markers, err := tiles.New(sc, camera, opts)
		if err != nil {
			return err
		}
		defer markers.Destroy()
		markers.Load()
		log.Info(ctx, "showing tiled markers", logging.String("path", *dataPath), logging.Int("points", src.Len()))
	}

	var status atomic.Value
	status.Store("esc cancels, arrows pan, q quits")
	if *editPath != "" {
		data, err := os.ReadFile(*editPath)
		if err != nil {
			return fmt.Errorf("tui: %w", err)
		}
		doc, err := model.ParseDocument(data)
		if err != nil {
			return fmt.Errorf("tui: %s: %w", *editPath, err)
		}
		opts := cfg.ModifyOptions(doc)
		opts.Logger = log
		opts.Metrics = collector
		opts.OnEditEnd = func(d model.Document) {
			status.Store("edited; " + writeResult(ctx, log, *outPath, d))
			sc.RequestRender()
		}
		edit, err := modify.New(sc, opts)
		if err != nil {
			return err
		}
		defer edit.Remove()
	} else {
		typ, err := model.ParseGeometryType(*drawType)
		if err != nil {
			return err
		}
		opts := cfg.DrawOptions(typ)
		opts.Logger = log
		opts.Metrics = collector
		opts.OnDrawEnd = func(res draw.Result) {
			if res.Feature == nil {
				status.Store("shape discarded: not enough distinct vertices")
			} else {
				status.Store(fmt.Sprintf("drew %s; %s", typ, writeResult(ctx, log, *outPath, model.FromFeature(res.Feature))))
			}
			sc.RequestRender()
		}
		drawing, err := draw.New(sc, opts)
		if err != nil {
			return err
		}
		defer func() {
			drawing.Remove()
			drawing.Wait()
		}()
	}
	host.Status = func() string { return status.Load().(string) }

	return host.Run(ctx)
}

// writeResult saves doc to path and describes the outcome for the status
// line.
func writeResult(ctx context.Context, log logging.Logger, path string, doc model.Document) string {
	if path == "" {
		return "pass -out to save"
	}
	data, err := doc.MarshalJSON()
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		log.Warn(ctx, "failed to save result", logging.String("path", path), logging.Err(err))
		return "save failed"
	}
	return "saved to " + path
}

func parseView(s string) (orb.Bound, error) {
	var w, south, e, n float64
	if _, err := fmt.Sscanf(s, "%g,%g,%g,%g", &w, &south, &e, &n); err != nil {
		return orb.Bound{}, fmt.Errorf("view %q: %w", s, err)
	}
	if e <= w || n <= south {
		return orb.Bound{}, fmt.Errorf("view %q is empty", s)
	}
	return orb.Bound{Min: orb.Point{w, south}, Max: orb.Point{e, n}}, nil
}

// viewCamera follows the terminal viewport. Tile refreshes read it from
// timer goroutines.
type viewCamera struct {
	mu  sync.Mutex
	cam scene.StaticCamera
}

func (c *viewCamera) follow(v scene.Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cam.LookAt(v.Rectangle(), terrainLevel(v))
}

func (c *viewCamera) Target() (geodesy.Cartographic, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.Target()
}

func (c *viewCamera) ViewRectangle() geodesy.Rectangle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.ViewRectangle()
}

func (c *viewCamera) RenderedTerrainLevel() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cam.RenderedTerrainLevel()
}

func (c *viewCamera) LevelMaximumGeometricError(level int) float64 {
	return scene.EllipsoidGeometricError(level)
}

// terrainLevel picks the ellipsoid terrain level whose geometric error is
// closest to one pixel of v.
func terrainLevel(v scene.Viewport) int {
	if v.Width <= 0 {
		return 0
	}
	metresPerPixel := geodesy.ToRadians(v.Bound.Right()-v.Bound.Left()) * geodesy.WGS84.MaximumRadius() / v.Width
	level := math.Round(math.Log2(scene.EllipsoidGeometricError(0) / metresPerPixel))
	if level < 0 || math.IsNaN(level) {
		return 0
	}
	return int(level)
}

func serveMetrics(addr string, collector *observability.EngineCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
