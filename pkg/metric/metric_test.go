package metric

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCounter(reg, "test_total", "test counter", "result")

	c.Increment("ok")
	c.Increment("ok")
	c.Increment("error")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.vec.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.vec.WithLabelValues("error")))
}

func TestNewRegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Fetches.Increment("menus", "ok")
	m.Enquiries.Increment("invalid")
	m.Requests.Observe(0.2, "GET", "/api/navigation", "200")

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Panics(t, func() { New(reg) }, "duplicate registration")
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Enquiries.Increment("ok")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `campusweb_enquiry_total{result="ok"} 1`)
}

func TestNop(t *testing.T) {
	m := Nop()
	assert.NotPanics(t, func() {
		m.Fetches.Increment("settings", "error")
		Nop()
	})
}
