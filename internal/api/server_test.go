package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goseldon/adapters/optimize"
	"goseldon/domain/core"
	"goseldon/domain/run"
	"goseldon/internal/errors"
	"goseldon/internal/testkit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer() (*Server, *testkit.InMemoryRunRepository) {
	repo := testkit.NewInMemoryRunRepository()
	return NewServer(optimize.NewGonum(nil), repo, nil), repo
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer()
	w := doJSON(t, s.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestParseConstraint(t *testing.T) {
	s, _ := newTestServer()
	w := doJSON(t, s.Handler(), http.MethodPost, "/v1/constraints/parse", ParseRequest{
		Constraint: "abs((PR | [M]) - (PR | [F])) <= 0.1",
		Regime:     "supervised_learning",
		SubRegime:  "classification",
		Delta:      0.1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ParseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "<=", resp.Comparison)
	assert.Equal(t, 0.1, resp.Delta)
	require.Len(t, resp.Leaves, 2)
	assert.Equal(t, "PR", resp.Leaves[0].Statistic)
	assert.True(t, resp.Leaves[0].Lower)
	assert.True(t, resp.Leaves[0].Upper)
	assert.InDelta(t, 0.1, resp.Leaves[0].DeltaLower+resp.Leaves[0].DeltaUpper+resp.Leaves[1].DeltaLower+resp.Leaves[1].DeltaUpper, 1e-12)
	assert.Contains(t, resp.Tree, "PR | [M]")
}

func TestParseConstraintErrors(t *testing.T) {
	s, _ := newTestServer()

	w := doJSON(t, s.Handler(), http.MethodPost, "/v1/constraints/parse", ParseRequest{Constraint: "FPR < 0.2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), errors.CodeParseError)

	w = doJSON(t, s.Handler(), http.MethodPost, "/v1/constraints/parse", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), errors.CodeInvalidInput)
}

func regressionRequest(constraint string) RunRequest {
	data := testkit.NewGenerator(5).Regression(300, 0.3, 0)
	return RunRequest{
		Name:        "mse_cap",
		Model:       "linear_regression",
		Constraints: []string{constraint},
		Primary:     "Mean_Squared_Error",
		FracSafety:  0.5,
		Shuffle:     true,
		Seed:        5,
		Data: DataPayload{
			Meta:      data.Meta,
			Features:  data.Features,
			Labels:    data.Labels,
			Sensitive: data.Sensitive,
		},
	}
}

func TestRunAndFetch(t *testing.T) {
	s, repo := newTestServer()

	w := doJSON(t, s.Handler(), http.MethodPost, "/v1/runs", regressionRequest("Mean_Squared_Error <= 2"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rec run.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.True(t, rec.Passed)
	assert.Len(t, rec.Solution, 2)

	stored, err := repo.GetRun(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, stored.ID)

	w = doJSON(t, s.Handler(), http.MethodGet, "/v1/runs/"+rec.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), rec.ID.String())

	w = doJSON(t, s.Handler(), http.MethodGet, "/v1/runs/"+rec.ID.String()+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "mse_cap")

	w = doJSON(t, s.Handler(), http.MethodGet, "/v1/runs?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Runs []run.Record `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Runs, 1)
}

func TestRunFailsSafetyTest(t *testing.T) {
	s, _ := newTestServer()
	w := doJSON(t, s.Handler(), http.MethodPost, "/v1/runs", regressionRequest("Mean_Squared_Error <= 0.01"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rec run.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.False(t, rec.Passed)
	assert.NotEqual(t, run.FailureNone, rec.Failure)
	assert.Nil(t, rec.Solution)
}

func TestRunRejectsBadRequests(t *testing.T) {
	s, _ := newTestServer()

	req := regressionRequest("Mean_Squared_Error <= 2")
	req.Model = "forest"
	w := doJSON(t, s.Handler(), http.MethodPost, "/v1/runs", req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = regressionRequest("FPR <= 0.2")
	w = doJSON(t, s.Handler(), http.MethodPost, "/v1/runs", req)
	assert.Equal(t, http.StatusBadRequest, w.Code, "classification statistic in a regression run")

	req = regressionRequest("Mean_Squared_Error <= 2")
	req.Data.Labels = req.Data.Labels[:10]
	w = doJSON(t, s.Handler(), http.MethodPost, "/v1/runs", req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = regressionRequest("Mean_Squared_Error <= 2")
	req.Constraints = nil
	w = doJSON(t, s.Handler(), http.MethodPost, "/v1/runs", req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRunErrors(t *testing.T) {
	s, _ := newTestServer()

	w := doJSON(t, s.Handler(), http.MethodGet, "/v1/runs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s.Handler(), http.MethodGet, "/v1/runs/"+core.NewRunID().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, s.Handler(), http.MethodGet, "/v1/runs?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
