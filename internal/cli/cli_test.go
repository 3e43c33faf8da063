package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/peter-kozarec/declinefit/pkg/data/duckdb"
	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"github.com/peter-kozarec/declinefit/pkg/utility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, *app, error) {
	t.Helper()
	a := &app{}
	root := newRootCmd(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level=error"))
	err := root.Execute()
	a.close()
	return out.String(), a, err
}

func TestConfigCmd(t *testing.T) {
	out, _, err := execute(t, "config", "--objective=huber", "--splits=3")
	require.NoError(t, err)
	assert.Contains(t, out, "objective: huber")
	assert.Contains(t, out, "splits: 3")
}

func TestConfigCmd_Invalid(t *testing.T) {
	_, _, err := execute(t, "config", "--objective=cubic")
	assert.Error(t, err)
}

func TestSimulateConvertFit(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "exp.csv")
	binPath := filepath.Join(dir, "exp.bin")

	_, _, err := execute(t, "simulate", "--family=arps_exp", "--param=qi=800,di=0.15",
		"--noise=gaussian", "--noise-sigma=2", "--points=60", "--t-max=24", "--out="+csvPath)
	require.NoError(t, err)
	_, _, err = execute(t, "convert", csvPath, binPath)
	require.NoError(t, err)

	out, _, err := execute(t, "fit", "--family=arps_exp", "--input="+binPath)
	require.NoError(t, err)

	var report struct {
		Model     string             `json:"model"`
		Success   bool               `json:"success"`
		Params    map[string]float64 `json:"params"`
		Residuals map[string]float64 `json:"residuals"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "arps_exp", report.Model)
	assert.True(t, report.Success)
	assert.InDelta(t, 800, report.Params["qi"], 40)
	assert.Contains(t, report.Residuals, "rmse")
}

func TestSimulate_UnknownNoise(t *testing.T) {
	_, _, err := execute(t, "simulate", "--family=arps_exp", "--param=qi=1,di=1",
		"--noise=poisson", "--out="+filepath.Join(t.TempDir(), "x.csv"))
	assert.Error(t, err)
}

func TestCompareCmd(t *testing.T) {
	out, _, err := execute(t, "compare", "--families=arps_exp,arps_hyp", "--splits=2", "--workers=2")
	require.NoError(t, err)

	var rows []struct {
		Rank   int      `json:"rank"`
		Model  string   `json:"model"`
		BIC    float64  `json:"bic"`
		CVRMSE *float64 `json:"cv_rmse"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0].Rank)
	assert.LessOrEqual(t, rows[0].BIC, rows[1].BIC)
	assert.NotNil(t, rows[0].CVRMSE)
}

func TestRunPipeline(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "runs.duckdb")

	_, a, err := execute(t, "run", "--out="+dir, "--dsn="+dsn)
	require.NoError(t, err)

	for _, name := range []string{syntheticFile, comparisonFile, fitFile, exploratoryFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	raw, err := os.ReadFile(filepath.Join(dir, comparisonFile))
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(raw, &rows))
	assert.Len(t, rows, len(decline.Families()))

	raw, err = os.ReadFile(filepath.Join(dir, exploratoryFile))
	require.NoError(t, err)
	var suite []map[string]any
	require.NoError(t, json.Unmarshal(raw, &suite))
	assert.Len(t, suite, 3)

	ctx := context.Background()
	store, err := duckdb.Open(ctx, dsn)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	persisted, err := store.LoadComparison(ctx, a.runID)
	require.NoError(t, err)
	assert.Len(t, persisted, len(decline.Families()))

	series, _, err := store.LoadSeries(ctx, a.runID)
	require.NoError(t, err)
	assert.Len(t, series, 180)

	fits, err := store.LoadFits(ctx, a.runID)
	require.NoError(t, err)
	require.Len(t, fits, 1)
	assert.Equal(t, decline.Family(rows[0]["model"].(string)), fits[0].Model)
}

func TestDefaultInitial(t *testing.T) {
	grid := []float64{0, 1, 2}
	q := []float64{10, 8, 6}
	for _, family := range decline.Families() {
		p := defaultInitial(family, grid, q)
		_, err := decline.MustLookup(family).Spec().Pack(p)
		assert.NoError(t, err, family.String())
	}
	assert.Equal(t, 10.0, defaultInitial(decline.ArpsExponential, grid, q)["qi"])
	assert.InDelta(t, 16.0, defaultInitial(decline.Gompertz, grid, q)["qmax"], 1e-12)
}

func TestNumberJSON(t *testing.T) {
	raw, err := json.Marshal(map[string]number{
		"nan": number(math.NaN()),
		"inf": number(math.Inf(1)),
		"x":   1.0 / 3,
		"y":   number(utility.Round(2.5, 0)),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"nan":null,"inf":null,"x":0.3333333333,"y":2}`, string(raw))
}
