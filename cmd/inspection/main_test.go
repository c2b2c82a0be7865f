package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/inspection.report/internal/db"
	"github.com/banshee-data/inspection.report/internal/rr"
	"github.com/banshee-data/inspection.report/internal/version"
)

// seedDB creates a database with one analysed test and one empty test and
// returns its path and the two test ids.
func seedDB(t *testing.T) (path string, weld, empty int64) {
	t.Helper()
	ctx := context.Background()
	path = filepath.Join(t.TempDir(), "inspection.db")
	d, err := db.NewDB(path)
	require.NoError(t, err)
	defer d.Close()

	weldTest := db.Test{Name: "Weld seams"}
	require.NoError(t, d.CreateTest(ctx, &weldTest))
	emptyTest := db.Test{Name: "Paint"}
	require.NoError(t, d.CreateTest(ctx, &emptyTest))

	img1 := db.Image{TestID: weldTest.ID, Filename: "seam_01.png", GroundTruth: "OK"}
	img2 := db.Image{TestID: weldTest.ID, Filename: "seam_02.png", GroundTruth: "NOK"}
	require.NoError(t, d.CreateImage(ctx, &img1))
	require.NoError(t, d.CreateImage(ctx, &img2))

	op := db.Operator{Name: "Ana"}
	require.NoError(t, d.CreateOperator(ctx, &op))

	start := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	for rep, second := range []string{"NOK", "OK"} {
		res := &db.Result{OperatorID: op.ID, TestID: weldTest.ID, RecordedAt: start.Add(time.Duration(rep) * time.Hour)}
		require.NoError(t, d.RecordResult(ctx, res, []db.Response{
			{ImageID: img1.ID, Filename: img1.Filename, UserAnswer: "OK", CorrectAnswer: "OK"},
			{ImageID: img2.ID, Filename: img2.Filename, UserAnswer: second, CorrectAnswer: "NOK"},
		}))
	}
	return path, weldTest.ID, emptyTest.ID
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(""), &out)
	return out.String(), err
}

func id(v int64) string { return strconv.FormatInt(v, 10) }

func TestAnalyze(t *testing.T) {
	path, weld, _ := seedDB(t)

	out, err := runCLI(t, "-db-path", path, "analyze", id(weld))
	require.NoError(t, err)
	assert.Contains(t, out, "Attribute R&R analysis, test "+id(weld))
	assert.Contains(t, out, " - Ana: 1/2 consistent (50.0%)")
	assert.Contains(t, out, " - seam_02.png: discordance 0.50")
}

func TestAnalyze_JSON(t *testing.T) {
	path, weld, _ := seedDB(t)

	// Flags are accepted after the test id too.
	out, err := runCLI(t, "-db-path", path, "analyze", id(weld), "-json")
	require.NoError(t, err)

	var a rr.Analysis
	require.NoError(t, json.Unmarshal([]byte(out), &a))
	assert.Equal(t, weld, a.TestID)
	assert.Equal(t, 4, a.Records)
	require.Len(t, a.Repeatability, 1)
	assert.Equal(t, 50.0, a.Repeatability[0].ConsistencyPct)
}

func TestAnalyze_NoData(t *testing.T) {
	path, _, empty := seedDB(t)
	out, err := runCLI(t, "-db-path", path, "analyze", id(empty))
	require.NoError(t, err)
	assert.Equal(t, "No data found for this test.\n", out)
}

func TestAnalyze_BadArgs(t *testing.T) {
	path, _, _ := seedDB(t)

	_, err := runCLI(t, "-db-path", path, "analyze")
	assert.ErrorIs(t, err, errUsage)

	_, err = runCLI(t, "-db-path", path, "analyze", "seams")
	assert.ErrorContains(t, err, `invalid test id "seams"`)
}

func TestReport(t *testing.T) {
	path, weld, _ := seedDB(t)
	outDir := t.TempDir()

	out, err := runCLI(t, "-db-path", path, "report", id(weld), "-out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Report written to "+filepath.Join(outDir, "RR_Weld_seams_"))

	dirs, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	runDir := filepath.Join(outDir, dirs[0].Name())
	for _, f := range []string{"summary.txt", "analysis.json", "report.pdf", "dashboard.html", "confusion.csv", "operators.csv", "results.csv", "manifest.json", "repeatability.png"} {
		assert.FileExists(t, filepath.Join(runDir, f))
	}
}

func TestReport_UnknownTest(t *testing.T) {
	path, _, _ := seedDB(t)
	_, err := runCLI(t, "-db-path", path, "report", "999", "-out", t.TempDir())
	assert.True(t, errors.Is(err, db.ErrNotFound), "got %v", err)
}

func TestServe_StopsOnCancel(t *testing.T) {
	path, _, _ := seedDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := run(ctx, []string{"-db-path", path, "serve", "-listen", "127.0.0.1:0", "-debug"}, nil, &out)
	assert.NoError(t, err)
}

func TestMigrateStatus(t *testing.T) {
	path, _, _ := seedDB(t)
	out, err := runCLI(t, "-db-path", path, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 3")
	assert.Contains(t, out, "Database is up to date")
}

func TestConfigFile(t *testing.T) {
	path, weld, _ := seedDB(t)
	cfgPath := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"db_path":"`+path+`","top_confusing":0}`), 0644))

	out, err := runCLI(t, "-config", cfgPath, "analyze", id(weld))
	require.NoError(t, err)
	assert.Contains(t, out, "Most confusing items:\n (none)\n")

	_, err = runCLI(t, "-config", filepath.Join(t.TempDir(), "missing.json"), "version")
	assert.Error(t, err)
}

func TestVersionAndUsage(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "inspection "+version.Version)

	out, err = runCLI(t)
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, out, "Usage: inspection")

	_, err = runCLI(t, "frobnicate")
	assert.ErrorIs(t, err, errUsage)

	out, err = runCLI(t, "help")
	assert.NoError(t, err)
	assert.Contains(t, out, "migrate <action>")
	assert.Contains(t, out, "import <test_id>")
}

func TestImport(t *testing.T) {
	path, weld, _ := seedDB(t)

	answers := "filename,answer,seconds\nseam_01.png,OK,2.5\nseam_02.png, nok ,3\n"
	var out bytes.Buffer
	err := run(context.Background(),
		[]string{"-db-path", path, "import", id(weld), "-operator", "1", "-evaluator", "Carla"},
		strings.NewReader(answers), &out)
	require.NoError(t, err)
	// Two runs were already stored, so this one is repetition 3.
	assert.Contains(t, out.String(), "(repetition 3): 2/2 correct (100.0%)")

	ctx := context.Background()
	d, err := db.NewDB(path)
	require.NoError(t, err)
	defer d.Close()

	results, err := d.ListResults(ctx, weld, db.ResultFilter{Evaluator: "Carla"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].Repetition)
	assert.InDelta(t, 5.5, results[0].TotalSeconds, 1e-9)

	evs, err := d.ListEvaluators(ctx)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "Carla", evs[0].Name)

	a, err := rr.NewEngine(d).Analyze(ctx, weld)
	require.NoError(t, err)
	assert.Equal(t, 6, a.Records)
}

func TestImport_FromFileReusesEvaluator(t *testing.T) {
	path, weld, _ := seedDB(t)
	file := filepath.Join(t.TempDir(), "answers.csv")
	require.NoError(t, os.WriteFile(file, []byte("answer,filename\nOK,seam_01.png\n"), 0644))

	for i := 0; i < 2; i++ {
		_, err := runCLI(t, "-db-path", path, "import", id(weld), "-operator", "1", "-evaluator", "Carla", "-file", file)
		require.NoError(t, err)
	}

	d, err := db.NewDB(path)
	require.NoError(t, err)
	defer d.Close()
	evs, err := d.ListEvaluators(context.Background())
	require.NoError(t, err)
	assert.Len(t, evs, 1)
}

func TestImport_Errors(t *testing.T) {
	path, weld, _ := seedDB(t)
	importCSV := func(body string, args ...string) error {
		var out bytes.Buffer
		return run(context.Background(), append([]string{"-db-path", path, "import"}, args...), strings.NewReader(body), &out)
	}
	ok := "filename,answer\nseam_01.png,OK\n"

	assert.ErrorIs(t, importCSV(ok, id(weld)), errUsage, "missing -operator")
	assert.ErrorIs(t, importCSV(ok, id(weld), "-operator", "42"), db.ErrNotFound)
	assert.ErrorIs(t, importCSV(ok, "999", "-operator", "1"), db.ErrNotFound)
	assert.ErrorContains(t, importCSV("filename,answer\nghost.png,OK\n", id(weld), "-operator", "1"),
		`image "ghost.png" is not in test`)
	assert.ErrorContains(t, importCSV(ok, id(weld), "-operator", "1", "-file", filepath.Join(t.TempDir(), "none.csv")),
		"failed to open answers file")

	d, err := db.NewDB(path)
	require.NoError(t, err)
	defer d.Close()
	results, err := d.ListResults(context.Background(), weld, db.ResultFilter{})
	require.NoError(t, err)
	assert.Len(t, results, 2, "failed imports store nothing")
}

func TestReadAnswers(t *testing.T) {
	rows, err := readAnswers(strings.NewReader("Seconds,Answer,Filename\n1.5,OK,a.png\n,,b.png\n"))
	require.NoError(t, err)
	assert.Equal(t, []answerRow{{filename: "a.png", answer: "OK", seconds: 1.5}, {filename: "b.png"}}, rows)

	tests := []struct{ in, want string }{
		{"", "answers file is empty"},
		{"filename\na.png\n", `no "answer" column`},
		{"answer\nOK\n", `no "filename" column`},
		{"filename,answer\n", "answers file has no rows"},
		{"filename,answer\n,OK\n", "line 2: missing filename"},
		{"filename,answer,seconds\na.png,OK,soon\n", `line 2: invalid seconds "soon"`},
	}
	for _, tt := range tests {
		_, err := readAnswers(strings.NewReader(tt.in))
		assert.ErrorContains(t, err, tt.want, "input %q", tt.in)
	}
}
