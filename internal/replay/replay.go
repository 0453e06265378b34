// Package replay feeds a scripted sequence of pointer and key events to a
// draw or modify engine on an in-memory scene, on a controlled clock.
package replay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	geojson "github.com/paulmach/go.geojson"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/globedraw/draw"
	"github.com/signalsfoundry/globedraw/internal/config"
	"github.com/signalsfoundry/globedraw/internal/logging"
	"github.com/signalsfoundry/globedraw/model"
	"github.com/signalsfoundry/globedraw/modify"
	"github.com/signalsfoundry/globedraw/scene"
	"github.com/signalsfoundry/globedraw/timectrl"
)

const (
	ModeDraw   = "draw"
	ModeModify = "modify"
)

// ErrInvalidScript wraps every script validation failure.
var ErrInvalidScript = errors.New("replay: invalid script")

// View is the window the scene looks at, in degrees and pixels.
type View struct {
	West   float64 `yaml:"west"`
	South  float64 `yaml:"south"`
	East   float64 `yaml:"east"`
	North  float64 `yaml:"north"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

func (v View) viewport() scene.Viewport {
	w, h := v.Width, v.Height
	if w <= 0 {
		w = 1000
	}
	if h <= 0 {
		h = 1000
	}
	return scene.Viewport{
		Width:  w,
		Height: h,
		Bound:  orb.Bound{Min: orb.Point{v.West, v.South}, Max: orb.Point{v.East, v.North}},
	}
}

// Step is one scripted input. Exactly one of Click, DoubleClick, Move or
// Key is set; Wait advances the clock afterwards. Positions are
// [lon, lat] unless Pixel is set.
type Step struct {
	Click       []float64     `yaml:"click"`
	DoubleClick []float64     `yaml:"doubleClick"`
	Move        []float64     `yaml:"move"`
	Key         string        `yaml:"key"`
	Pixel       bool          `yaml:"pixel"`
	Wait        time.Duration `yaml:"wait"`
}

// Script is a replay file.
type Script struct {
	View View   `yaml:"view"`
	Mode string `yaml:"mode"`
	Draw struct {
		Type string `yaml:"type"`
	} `yaml:"draw"`
	Modify struct {
		// GeoJSON is a path, relative to the script, of the document
		// to edit.
		GeoJSON string `yaml:"geojson"`
	} `yaml:"modify"`
	Steps []Step `yaml:"steps"`

	dir string
}

// LoadScript reads and validates the script at path.
func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("replay: read %s: %w", path, err)
	}
	s, err := ParseScript(data)
	if err != nil {
		return Script{}, err
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

// ParseScript decodes and validates a script.
func ParseScript(data []byte) (Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Script{}, fmt.Errorf("replay: parse script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Script{}, err
	}
	return s, nil
}

// Validate checks the mode and every step.
func (s Script) Validate() error {
	var errs []error
	switch s.Mode {
	case ModeDraw:
		if _, err := model.ParseGeometryType(s.Draw.Type); err != nil {
			errs = append(errs, err)
		}
	case ModeModify:
		if s.Modify.GeoJSON == "" {
			errs = append(errs, errors.New("modify mode needs a geojson document"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", s.Mode))
	}
	if s.View.East <= s.View.West || s.View.North <= s.View.South {
		errs = append(errs, errors.New("view bound is empty"))
	}
	for i, st := range s.Steps {
		if err := st.validate(); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}
	return nil
}

func (st Step) validate() error {
	set := 0
	for _, p := range [][]float64{st.Click, st.DoubleClick, st.Move} {
		if p == nil {
			continue
		}
		set++
		if len(p) != 2 {
			return fmt.Errorf("position %v needs two values", p)
		}
	}
	if st.Key != "" {
		set++
	}
	if set > 1 {
		return errors.New("more than one input in a step")
	}
	if set == 0 && st.Wait <= 0 {
		return errors.New("empty step")
	}
	return nil
}

// Report is what a replay produced.
type Report struct {
	// Drawn holds the features of valid drawing sessions, in order.
	Drawn []*geojson.Feature
	// Invalid counts drawing sessions that ended without a valid shape.
	Invalid int
	// Document is the edited document after the last commit.
	Document model.Document
	Edits    int
}

// FeatureCollection returns the drawn features, or the edited document's
// features in modify mode.
func (r Report) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	features := r.Drawn
	if !r.Document.IsZero() {
		features = r.Document.Features()
	}
	for _, f := range features {
		fc.AddFeature(f)
	}
	return fc
}

// Recorder receives engine metrics during a replay.
type Recorder interface {
	draw.MetricsRecorder
	modify.MetricsRecorder
}

// Runner replays scripts with engine settings from Config.
type Runner struct {
	Config  config.Config
	Logger  logging.Logger
	Metrics Recorder
}

// Run replays s and returns once every step has been applied and pending
// drawing work has finished.
func (r Runner) Run(ctx context.Context, s Script) (Report, error) {
	if err := s.Validate(); err != nil {
		return Report{}, err
	}
	log := logging.OrNoop(r.Logger).With(logging.String("mode", s.Mode))
	sc := scene.New(s.View.viewport())
	clock := timectrl.NewTimeController(time.Unix(0, 0).UTC())

	var (
		report Report
		wait   = func() {}
		detach func()
	)
	switch s.Mode {
	case ModeDraw:
		typ, _ := model.ParseGeometryType(s.Draw.Type)
		opts := r.Config.DrawOptions(typ)
		opts.Clock = clock
		opts.Logger = log
		if r.Metrics != nil {
			opts.Metrics = r.Metrics
		}
		opts.OnDrawEnd = func(res draw.Result) {
			if res.Feature == nil {
				report.Invalid++
				return
			}
			report.Drawn = append(report.Drawn, res.Feature)
		}
		i, err := draw.New(sc, opts)
		if err != nil {
			return Report{}, fmt.Errorf("replay: %w", err)
		}
		wait, detach = i.Wait, i.Remove
	case ModeModify:
		doc, err := s.document()
		if err != nil {
			return Report{}, err
		}
		opts := r.Config.ModifyOptions(doc)
		opts.Clock = clock
		opts.Logger = log
		if r.Metrics != nil {
			opts.Metrics = r.Metrics
		}
		opts.OnEditEnd = func(d model.Document) {
			report.Document = d
			report.Edits++
		}
		i, err := modify.New(sc, opts)
		if err != nil {
			return Report{}, fmt.Errorf("replay: %w", err)
		}
		detach = i.Remove
	}
	defer detach()

	for n, st := range s.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		apply(sc, st)
		wait()
		if st.Wait > 0 {
			clock.Advance(st.Wait)
			wait()
		}
		log.Debug(ctx, "replay step applied", logging.Int("step", n))
	}
	log.Info(ctx, "replay finished",
		logging.Int("steps", len(s.Steps)),
		logging.Int("drawn", len(report.Drawn)),
		logging.Int("invalid", report.Invalid),
		logging.Int("edits", report.Edits),
	)
	return report, nil
}

func (s Script) document() (model.Document, error) {
	path := s.Modify.GeoJSON
	if !filepath.IsAbs(path) && s.dir != "" {
		path = filepath.Join(s.dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Document{}, fmt.Errorf("replay: read %s: %w", path, err)
	}
	doc, err := model.ParseDocument(data)
	if err != nil {
		return model.Document{}, fmt.Errorf("replay: %s: %w", path, err)
	}
	return doc, nil
}

func apply(sc *scene.Scene, st Step) {
	pos := func(p []float64) scene.ScreenPosition {
		if st.Pixel {
			return scene.ScreenPosition{X: p[0], Y: p[1]}
		}
		return sc.At(p[0], p[1])
	}
	switch {
	case st.Click != nil:
		sc.Click(pos(st.Click))
	case st.DoubleClick != nil:
		sc.DoubleClick(pos(st.DoubleClick))
	case st.Move != nil:
		sc.MouseMove(pos(st.Move))
	case st.Key != "":
		sc.KeyDown(st.Key)
	}
}
