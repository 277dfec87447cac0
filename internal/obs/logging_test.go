package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/atoll-quote/internal/common"
)

func TestRequestLoggerRecordsConsultant(t *testing.T) {
	var buf bytes.Buffer
	logger := RequestLogger{Logger: newLogger(&buf, "json")}

	handler := logger.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// authentication happens below the logger
		_ = common.WithConsultantID(r.Context(), "consultant-7", common.AuthMethodBearer)
		w.WriteHeader(http.StatusAccepted)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/quotes/calculate", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "http_request", entry["message"])
	require.Equal(t, "consultant-7", entry["consultant_id"])
	require.Equal(t, "bearer", entry["auth_method"])
	require.EqualValues(t, http.StatusAccepted, entry["status"])
}

func TestRequestLoggerErrorLevelOnServerError(t *testing.T) {
	var buf bytes.Buffer
	logger := RequestLogger{Logger: newLogger(&buf, "json")}
	handler := logger.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "error", entry["level"])
}

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{1, 2.5, 10}, ParseBucketsCSV("1, 2.5,,x,-3,10"))
	require.Nil(t, ParseBucketsCSV(" "))
}
