package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ObserveRequest(t *testing.T) {
	reg := NewRegistry()
	c := NewCollector(reg)

	c.ObserveRequest("GET", "/api/health", 200, 5*time.Millisecond)
	c.ObserveRequest("GET", "/api/health", 200, 7*time.Millisecond)
	c.ObserveRequest("POST", "", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("GET", "/api/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("POST", "unmatched", "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.latency))
}

func TestCollector_DomainCounters(t *testing.T) {
	c := NewCollector(NewRegistry())

	c.RecordAuthEvent("signin", false)
	c.RecordAuthEvent("signin", true)
	c.RecordAuthEvent("signin", true)
	c.RecordRateLimited("/api/contact-messages")
	c.RecordSubmission("contact_message")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.authEvents.WithLabelValues("signin", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.authEvents.WithLabelValues("signin", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rateLimited.WithLabelValues("/api/contact-messages")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.submissions.WithLabelValues("contact_message")))
}

func TestHandler_Exposition(t *testing.T) {
	reg := NewRegistry()
	c := NewCollector(reg)
	c.RecordSubmission("project_request")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `agency_submissions_total{kind="project_request"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
