package render

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	apperrors "github.com/Rohianon/folio/pkg/errors"
	"github.com/Rohianon/folio/pkg/format"
	"github.com/Rohianon/folio/pkg/logger"
	"github.com/Rohianon/folio/pkg/metrics"
	"github.com/Rohianon/folio/pkg/models"
)

type ChartKind string

const (
	ChartPie   ChartKind = "pie"
	ChartLine  ChartKind = "line"
	ChartBar   ChartKind = "bar"
	ChartGauge ChartKind = "gauge"
)

// Fixed mount points used by the dashboard.
const (
	MountSectorAllocation  = "sector-allocation"
	MountHistory           = "portfolio-history"
	MountSectorPerformance = "sector-performance"
	MountRiskGauge         = "risk-gauge"
)

var ErrNoData = apperrors.New("NO_DATA", "Nothing to chart", 0)

type Slice struct {
	Label string
	Value float64
}

// ChartSpec describes one chart. Pie and Bar read Slices, Line reads
// Points and Gauge reads Value (0..100).
type ChartSpec struct {
	Kind   ChartKind
	Title  string
	Slices []Slice
	Points []models.HistoryPoint
	Value  *float64
	Width  int
	Height int
}

// Handle is the live chart at a mount point.
type Handle struct {
	MountID   string
	Kind      ChartKind
	Path      string
	Renders   int
	UpdatedAt time.Time
}

// ChartRegistry owns at most one chart per mount point. Upserting a mount
// overwrites its file in place.
type ChartRegistry struct {
	mu      sync.Mutex
	dir     string
	ext     string
	render  chart.RendererProvider
	handles map[string]*Handle
}

func NewChartRegistry(dir, fileFormat string) (*ChartRegistry, error) {
	r := &ChartRegistry{dir: dir, handles: make(map[string]*Handle)}

	switch strings.ToLower(fileFormat) {
	case "", "png":
		r.ext, r.render = "png", chart.PNG
	case "svg":
		r.ext, r.render = "svg", chart.SVG
	default:
		return nil, apperrors.ErrValidation.WithMessage(fmt.Sprintf("unsupported chart format %q", fileFormat))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}
	return r, nil
}

func (r *ChartRegistry) Dir() string {
	return r.dir
}

// Upsert renders spec at mountID, replacing whatever was there. With no
// data the mount is destroyed and ErrNoData returned.
func (r *ChartRegistry) Upsert(mountID string, spec ChartSpec) (*Handle, error) {
	if spec.Width == 0 {
		spec.Width = 800
	}
	if spec.Height == 0 {
		spec.Height = 400
	}

	var buf bytes.Buffer
	err := r.draw(&buf, spec)

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case apperrors.Code(err) == ErrNoData.Code:
		r.destroyLocked(mountID)
		metrics.RecordChartRender(string(spec.Kind), "no_data")
		return nil, err
	case err != nil:
		metrics.RecordChartRender(string(spec.Kind), "error")
		return nil, fmt.Errorf("render %s chart: %w", spec.Kind, err)
	}

	h, ok := r.handles[mountID]
	if !ok {
		h = &Handle{MountID: mountID, Path: filepath.Join(r.dir, mountFile(mountID)+"."+r.ext)}
		r.handles[mountID] = h
	}

	if err := writeFile(h.Path, buf.Bytes()); err != nil {
		metrics.RecordChartRender(string(spec.Kind), "error")
		return nil, err
	}

	h.Kind = spec.Kind
	h.Renders++
	h.UpdatedAt = time.Now()
	metrics.RecordChartRender(string(spec.Kind), "ok")

	logger.Debug().
		Str("mount", mountID).
		Str("kind", string(spec.Kind)).
		Str("path", h.Path).
		Msg("Chart rendered")

	out := *h
	return &out, nil
}

// Destroy removes the chart at mountID and its file. Unknown mounts are a
// no-op.
func (r *ChartRegistry) Destroy(mountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroyLocked(mountID)
}

func (r *ChartRegistry) destroyLocked(mountID string) {
	h, ok := r.handles[mountID]
	if !ok {
		return
	}
	if err := os.Remove(h.Path); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Str("path", h.Path).Msg("Failed to remove chart file")
	}
	delete(r.handles, mountID)
}

func (r *ChartRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

func (r *ChartRegistry) Handle(mountID string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[mountID]
	if !ok {
		return Handle{}, false
	}
	return *h, true
}

// DashboardCharts returns the chart for every fixed mount point.
func DashboardCharts(d Dashboard) map[string]ChartSpec {
	allocation := make([]Slice, 0, len(d.Sectors))
	for _, s := range d.Sectors {
		allocation = append(allocation, Slice{Label: s.Sector, Value: s.Value})
	}

	performance := make([]Slice, 0, len(d.SectorPerformance))
	for _, s := range d.SectorPerformance {
		performance = append(performance, Slice{Label: s.Label(), Value: s.DayChangePercent})
	}

	risk := float64(d.Cards.RiskScore)

	return map[string]ChartSpec{
		MountSectorAllocation:  {Kind: ChartPie, Title: "Sector Allocation", Slices: allocation},
		MountHistory:           {Kind: ChartLine, Title: "Portfolio Value", Points: d.History},
		MountSectorPerformance: {Kind: ChartBar, Title: "Sector Performance (day %)", Slices: performance},
		MountRiskGauge:         {Kind: ChartGauge, Title: "Risk Score", Value: &risk},
	}
}

func (r *ChartRegistry) draw(buf *bytes.Buffer, spec ChartSpec) error {
	switch spec.Kind {
	case ChartPie:
		return r.drawPie(buf, spec)
	case ChartLine:
		return r.drawLine(buf, spec)
	case ChartBar:
		return r.drawBar(buf, spec)
	case ChartGauge:
		return r.drawGauge(buf, spec)
	default:
		return apperrors.ErrValidation.WithMessage(fmt.Sprintf("unknown chart kind %q", spec.Kind))
	}
}

func (r *ChartRegistry) drawPie(buf *bytes.Buffer, spec ChartSpec) error {
	total := 0.0
	for _, s := range spec.Slices {
		if s.Value > 0 {
			total += s.Value
		}
	}
	if total == 0 {
		return ErrNoData
	}

	values := make([]chart.Value, 0, len(spec.Slices))
	for _, s := range spec.Slices {
		if s.Value <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %s", s.Label, format.Percent(s.Value/total*100)),
			Value: s.Value,
		})
	}

	pie := chart.PieChart{
		Title:  spec.Title,
		Width:  spec.Width,
		Height: spec.Height,
		Values: values,
	}
	return pie.Render(r.render, buf)
}

func (r *ChartRegistry) drawLine(buf *bytes.Buffer, spec ChartSpec) error {
	if len(spec.Points) < 2 {
		return ErrNoData
	}

	xs := make([]time.Time, len(spec.Points))
	ys := make([]float64, len(spec.Points))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, p := range spec.Points {
		xs[i] = p.Timestamp
		ys[i] = p.Value
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}

	pad := (hi - lo) * 0.1
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.01, 1)
	}

	graph := chart.Chart{
		Title:  spec.Title,
		Width:  spec.Width,
		Height: spec.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("15:04:05")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo - pad, Max: hi + pad},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return format.Currency(f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name: "Value",
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("2563eb"),
					StrokeWidth: 2.5,
				},
				XValues: xs,
				YValues: ys,
			},
		},
	}
	return graph.Render(r.render, buf)
}

func (r *ChartRegistry) drawBar(buf *bytes.Buffer, spec ChartSpec) error {
	if len(spec.Slices) == 0 {
		return ErrNoData
	}

	lo, hi := 0.0, 0.0
	bars := make([]chart.Value, 0, len(spec.Slices))
	for _, s := range spec.Slices {
		lo = math.Min(lo, s.Value)
		hi = math.Max(hi, s.Value)

		color := "16a34a"
		if s.Value < 0 {
			color = "dc2626"
		}
		bars = append(bars, chart.Value{
			Label: s.Label,
			Value: s.Value,
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex(color),
				StrokeColor: drawing.ColorFromHex(color),
			},
		})
	}
	if hi == lo {
		hi = lo + 1
	}

	bar := chart.BarChart{
		Title:        spec.Title,
		Width:        spec.Width,
		Height:       spec.Height,
		BarWidth:     max(spec.Width/(2*len(bars)), 10),
		UseBaseValue: true,
		BaseValue:    0,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		Bars: bars,
	}
	return bar.Render(r.render, buf)
}

func (r *ChartRegistry) drawGauge(buf *bytes.Buffer, spec ChartSpec) error {
	if spec.Value == nil {
		return ErrNoData
	}
	v := math.Max(0, math.Min(100, *spec.Value))

	var values []chart.Value
	if v > 0 {
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %s", spec.Title, format.Score(v)),
			Value: v,
			Style: chart.Style{FillColor: gaugeColor(v)},
		})
	}
	if v < 100 {
		values = append(values, chart.Value{
			Value: 100 - v,
			Style: chart.Style{FillColor: drawing.ColorFromHex("e5e7eb")},
		})
	}

	donut := chart.DonutChart{
		Title:  spec.Title,
		Width:  spec.Height,
		Height: spec.Height,
		Values: values,
	}
	return donut.Render(r.render, buf)
}

func gaugeColor(v float64) drawing.Color {
	switch {
	case v >= 70:
		return drawing.ColorFromHex("dc2626")
	case v >= 40:
		return drawing.ColorFromHex("f59e0b")
	default:
		return drawing.ColorFromHex("16a34a")
	}
}

func mountFile(mountID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, mountID)
}

// writeFile replaces path atomically so a viewer never sees a half-written
// chart.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".chart-*")
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write chart file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close chart file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
