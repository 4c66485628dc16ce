package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndWriteTextfile(t *testing.T) {
	Register()
	before := testutil.ToFloat64(rowsLoadedTotal)

	RecordRows(10, 2)
	RecordTest("friedman_gender", "friedman")
	ObserveAnalysis("friedman_gender", 1500*time.Millisecond, nil)
	ObserveAnalysis("realism_anova", time.Second, errors.New("boom"))

	assert.Equal(t, before+10, testutil.ToFloat64(rowsLoadedTotal))
	assert.Equal(t, 1.5, testutil.ToFloat64(analysisDurationSeconds.WithLabelValues("friedman_gender")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(analysisFailuresTotal.WithLabelValues("realism_anova")), 1.0)

	path := filepath.Join(t.TempDir(), "surveyeval.prom")
	require.NoError(t, WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "surveyeval_rows_rejected_total")
	assert.Contains(t, string(data), `surveyeval_tests_total{analysis="friedman_gender",test="friedman"}`)
}

func TestHandler(t *testing.T) {
	RecordRows(1, 0)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "surveyeval_rows_loaded_total")
}
