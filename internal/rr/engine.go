package rr

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/inspection.report/internal/timeutil"
)

// ErrNoData is returned by Engine.Analyze when a test has no responses.
var ErrNoData = errors.New("no data")

// Analysis bundles every calculator output for one test.
type Analysis struct {
	TestID          int64                   `json:"test_id"`
	GeneratedAt     time.Time               `json:"generated_at"`
	Records         int                     `json:"records"`
	Resolution      ResolutionStats         `json:"resolution"`
	Repeatability   []RepeatabilityResult   `json:"repeatability"`
	Reproducibility *ReproducibilityResult  `json:"reproducibility"`
	Confusion       []ConfusionItem         `json:"confusion_ranking"`
	Effectiveness   []OperatorEffectiveness `json:"effectiveness"`
}

// Engine runs the calculators over data read from a Source. Each call reads
// a fresh snapshot; nothing is cached between calls.
type Engine struct {
	reader *Reader
	clock  timeutil.Clock
}

// NewEngine returns an engine reading from src and stamping analyses with
// the wall clock.
func NewEngine(src Source) *Engine {
	return NewEngineWithClock(src, timeutil.RealClock{})
}

// NewEngineWithClock is like NewEngine but takes GeneratedAt from clock.
func NewEngineWithClock(src Source, clock timeutil.Clock) *Engine {
	return &Engine{reader: NewReader(src), clock: clock}
}

// Records returns the normalized responses of a test.
func (e *Engine) Records(ctx context.Context, testID int64) ([]Record, error) {
	return e.reader.Records(ctx, testID)
}

// Repeatability returns nil, nil when the operator has no responses.
func (e *Engine) Repeatability(ctx context.Context, operatorID, testID int64) (*RepeatabilityResult, error) {
	records, err := e.reader.Records(ctx, testID)
	if err != nil {
		return nil, err
	}
	return Repeatability(records, operatorID), nil
}

// Reproducibility returns nil, nil when the test has no responses.
func (e *Engine) Reproducibility(ctx context.Context, testID int64) (*ReproducibilityResult, error) {
	records, err := e.reader.Records(ctx, testID)
	if err != nil {
		return nil, err
	}
	return Reproducibility(records), nil
}

// ConfusionRanking returns an empty slice when the test has no responses.
func (e *Engine) ConfusionRanking(ctx context.Context, testID int64) ([]ConfusionItem, error) {
	records, err := e.reader.Records(ctx, testID)
	if err != nil {
		return nil, err
	}
	return ConfusionRanking(records), nil
}

// Effectiveness returns an empty slice when the test has no responses.
func (e *Engine) Effectiveness(ctx context.Context, testID int64) ([]OperatorEffectiveness, error) {
	records, err := e.reader.Records(ctx, testID)
	if err != nil {
		return nil, err
	}
	return Effectiveness(records), nil
}

// Analyze reads the test once and runs all calculators concurrently over
// the same records. It returns ErrNoData when the test has no responses.
func (e *Engine) Analyze(ctx context.Context, testID int64) (*Analysis, error) {
	ds, err := e.reader.Read(ctx, testID)
	if err != nil {
		return nil, err
	}
	if len(ds.Records) == 0 {
		return nil, ErrNoData
	}
	return AnalyzeDataset(ctx, ds, e.clock.Now())
}

// AnalyzeDataset runs all calculators over an already normalized dataset.
func AnalyzeDataset(ctx context.Context, ds *Dataset, now time.Time) (*Analysis, error) {
	a := &Analysis{
		TestID:      ds.TestID,
		GeneratedAt: now,
		Records:     len(ds.Records),
		Resolution:  ds.Resolution,
	}
	records := ds.Records

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Repeatability = RepeatabilityAll(records)
		return nil
	})
	g.Go(func() error {
		a.Reproducibility = Reproducibility(records)
		return nil
	})
	g.Go(func() error {
		a.Confusion = ConfusionRanking(records)
		return nil
	})
	g.Go(func() error {
		a.Effectiveness = Effectiveness(records)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a, nil
}
