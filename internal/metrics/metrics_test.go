package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackInFlight(t *testing.T) {
	before := testutil.ToFloat64(httpInFlight)
	release := TrackInFlight()
	assert.Equal(t, before+1, testutil.ToFloat64(httpInFlight))
	release()
	assert.Equal(t, before, testutil.ToFloat64(httpInFlight))
}

func TestRecordDispatch_UnknownMethod(t *testing.T) {
	before := testutil.ToFloat64(dispatches.WithLabelValues("unknown", "422"))
	RecordDispatch("", http.StatusUnprocessableEntity)
	assert.Equal(t, before+1, testutil.ToFloat64(dispatches.WithLabelValues("unknown", "422")))
}

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(cacheLookups.WithLabelValues("hit"))
	misses := testutil.ToFloat64(cacheLookups.WithLabelValues("miss"))

	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordCacheLookup(false)

	assert.Equal(t, hits+1, testutil.ToFloat64(cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(cacheLookups.WithLabelValues("miss")))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	RecordHTTPRequest("post", "/method", http.StatusOK, 3*time.Millisecond)
	RecordReconnect()
	RecordStoreFailure("get")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `scoring_api_http_requests_total{method="POST",path="/method",status="200"}`)
	assert.Contains(t, string(body), "scoring_api_store_reconnects_total")
	assert.Contains(t, string(body), `scoring_api_store_failures_total{op="get"}`)
}
