package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/inspection.report/internal/config"
	"github.com/banshee-data/inspection.report/internal/db"
	"github.com/banshee-data/inspection.report/internal/fsutil"
	"github.com/banshee-data/inspection.report/internal/monitoring"
	"github.com/banshee-data/inspection.report/internal/rr"
	"github.com/banshee-data/inspection.report/internal/timeutil"
)

// Manifest lists what one Generate call wrote.
type Manifest struct {
	RunID       string    `json:"run_id"`
	TestID      int64     `json:"test_id"`
	TestName    string    `json:"test_name"`
	GeneratedAt time.Time `json:"generated_at"`
	Dir         string    `json:"dir"`
	// Files are paths relative to Dir, in write order.
	Files []string `json:"files"`
}

// Writer writes report artifacts into a fresh run directory.
type Writer struct {
	FS     fsutil.FileSystem
	Clock  timeutil.Clock
	Config *config.AppConfig
	// NewRunID returns the short id suffix of the run directory. Defaults
	// to the first 8 characters of a random UUID.
	NewRunID func() string
}

// NewWriter returns a Writer on the real filesystem and clock.
func NewWriter(cfg *config.AppConfig) *Writer {
	return &Writer{FS: fsutil.OSFileSystem{}, Clock: timeutil.RealClock{}, Config: cfg}
}

func shortRunID() string { return uuid.NewString()[:8] }

// slug reduces a test name to something safe in a directory name.
func slug(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	s := strings.TrimSuffix(b.String(), "_")
	if s == "" {
		return "test"
	}
	return s
}

// RunDir returns the directory Generate would use for testName at t.
func RunDir(outputDir, testName string, t time.Time, runID string) string {
	return filepath.Join(outputDir, fmt.Sprintf("RR_%s_%s_%s", slug(testName), t.Format("20060102_150405"), runID))
}

// Generate renders every enabled artifact for a and writes it under a new
// run directory below the configured output dir. results, when not nil,
// are exported to results.csv alongside the other tables.
func (w *Writer) Generate(a *rr.Analysis, testName string, results []db.Result) (*Manifest, error) {
	if a == nil {
		return nil, rr.ErrNoData
	}
	cfg := w.Config
	if cfg == nil {
		cfg = config.DefaultAppConfig()
	}
	newID := w.NewRunID
	if newID == nil {
		newID = shortRunID
	}

	now := w.Clock.Now()
	m := &Manifest{
		RunID:       newID(),
		TestID:      a.TestID,
		TestName:    testName,
		GeneratedAt: now.UTC(),
	}
	m.Dir = RunDir(cfg.GetOutputDir(), testName, now, m.RunID)
	if err := w.FS.MkdirAll(m.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report dir: %w", err)
	}

	topN := cfg.GetTopConfusing()
	summary := Summary(a, topN)
	if err := w.writeBytes(m, "summary.txt", []byte(summary)); err != nil {
		return nil, err
	}

	analysisJSON, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis: %w", err)
	}
	if err := w.writeBytes(m, "analysis.json", analysisJSON); err != nil {
		return nil, err
	}

	charts, err := Charts(a, topN)
	if err != nil {
		return nil, err
	}
	format := cfg.GetChartFormat()
	width := vg.Length(cfg.GetChartWidthCm()) * vg.Centimeter
	height := vg.Length(cfg.GetChartHeightCm()) * vg.Centimeter
	for _, ch := range charts {
		if err := w.writeWith(m, ch.Name+"."+format, func(out io.Writer) error {
			return ch.Render(out, width, height, format)
		}); err != nil {
			return nil, err
		}
	}

	title := fmt.Sprintf("Attribute R&R: %s", testName)
	if cfg.GetWritePDF() {
		if err := w.writeWith(m, "report.pdf", func(out io.Writer) error {
			return WritePDF(out, title, summary, charts)
		}); err != nil {
			return nil, err
		}
	}
	if cfg.GetWriteDashboard() {
		if err := w.writeWith(m, "dashboard.html", func(out io.Writer) error {
			return RenderDashboard(out, a, title, topN)
		}); err != nil {
			return nil, err
		}
	}
	if cfg.GetWriteCSV() {
		if err := w.writeWith(m, "confusion.csv", func(out io.Writer) error {
			return WriteConfusionCSV(out, a.Confusion)
		}); err != nil {
			return nil, err
		}
		if err := w.writeWith(m, "operators.csv", func(out io.Writer) error {
			return WriteOperatorsCSV(out, a)
		}); err != nil {
			return nil, err
		}
		if results != nil {
			if err := w.writeWith(m, "results.csv", func(out io.Writer) error {
				return WriteResultsCSV(out, results)
			}); err != nil {
				return nil, err
			}
		}
	}

	m.Files = append(m.Files, "manifest.json")
	manifestJSON, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := w.FS.WriteFile(filepath.Join(m.Dir, "manifest.json"), manifestJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write manifest.json: %w", err)
	}

	monitoring.Logf("[report] wrote %d files to %s", len(m.Files), m.Dir)
	return m, nil
}

func (w *Writer) writeBytes(m *Manifest, name string, data []byte) error {
	if err := w.FS.WriteFile(filepath.Join(m.Dir, name), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	m.Files = append(m.Files, name)
	return nil
}

func (w *Writer) writeWith(m *Manifest, name string, render func(io.Writer) error) error {
	f, err := w.FS.Create(filepath.Join(m.Dir, name))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	m.Files = append(m.Files, name)
	return nil
}
