package cms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mchmarny/campusweb/pkg/enquiry"
	"github.com/mchmarny/campusweb/pkg/menu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api/", opts...)
	require.NoError(t, err)
	return c
}

func TestNewInvalidURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)

	_, err = New("://bad")
	assert.Error(t, err)
}

func TestMenus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/menus", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = io.WriteString(w, `{"success": true, "data": [
			{"name": "Primary Navigation", "items": [
				{"id": 1, "parent_id": null, "display_order": 1, "is_active": 1, "text": "Home", "url": "/", "open_in_new_tab": 0, "icon": "home"},
				{"id": 2, "parent_id": 1, "display_order": 1, "is_active": 0, "text": "Old", "url": "/old"}
			]},
			{"label": "Footer", "items": []}
		]}`)
	})

	menus, err := c.Menus(context.Background())
	require.NoError(t, err)
	require.Len(t, menus, 2)

	assert.Equal(t, "Primary Navigation", menus[0].Label)
	assert.Equal(t, "Footer", menus[1].Label)
	require.Len(t, menus[0].Items, 2)

	home := menus[0].Items[0]
	assert.Equal(t, menu.Item{ID: 1, DisplayOrder: 1, IsActive: true, Text: "Home", URL: "/", IconRef: "home"}, home)
	require.NotNil(t, menus[0].Items[1].ParentID)
	assert.Equal(t, 1, *menus[0].Items[1].ParentID)
	assert.False(t, menus[0].Items[1].IsActive.Bool())
}

func TestMenusNullData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success": true, "data": null}`)
	})

	menus, err := c.Menus(context.Background())
	require.NoError(t, err)
	assert.Empty(t, menus)
}

func TestNonSuccessFlag(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success": false, "message": "menu not configured"}`)
	})

	_, err := c.Menus(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusOK, apiErr.Status)
	assert.Equal(t, "menu not configured", apiErr.Message)
	assert.Contains(t, err.Error(), "menu not configured")
}

func TestHTTPFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `<html>bad gateway</html>`)
	})

	_, err := c.Settings(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	})

	_, err := c.Settings(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.NotErrorAs(t, err, &apiErr)
}

func TestSettings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/settings", r.URL.Path)
		_, _ = io.WriteString(w, `{"success": true, "data": {"site_name": "Campus", "admissions_open": 1}}`)
	})

	raw, err := c.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Campus", raw["site_name"])
	assert.Equal(t, float64(1), raw["admissions_open"])
}

func TestSubmitEnquiry(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/enquiries", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"success": true, "data": {"enquiry_id": 1234}}`)
	})

	id, err := c.SubmitEnquiry(context.Background(), enquiry.Enquiry{
		Name:     "Asha",
		Phone:    "9876543210",
		WhatsApp: true,
		Source:   "website",
	})
	require.NoError(t, err)
	assert.Equal(t, "1234", id)
	assert.Equal(t, "9876543210", got["phone"])
	assert.Equal(t, true, got["whatsapp"])
	assert.NotContains(t, got, "email")
}

func TestSubmitEnquiryAckVariants(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
		err  bool
	}{
		{name: "string id", body: `{"success": true, "data": {"enquiry_id": "ENQ-7"}}`, want: "ENQ-7"},
		{name: "id fallback", body: `{"success": true, "data": {"id": 9}}`, want: "9"},
		{name: "missing id", body: `{"success": true, "data": {}}`, err: true},
		{name: "validation error", body: `{"success": false, "error": "phone invalid"}`, err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})

			id, err := c.SubmitEnquiry(context.Background(), enquiry.Enquiry{Name: "A", Phone: "9876543210"})
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, WithBreaker(BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		MinRequests:      2,
		FailureThreshold: 0.5,
	}))

	ctx := context.Background()
	for range 2 {
		_, err := c.Menus(ctx)
		require.Error(t, err)
	}

	_, err := c.Menus(ctx)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"success": false, "message": "nope"}`)
	}, WithBreaker(BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		MinRequests:      1,
		FailureThreshold: 0.1,
	}))

	for range 3 {
		_, err := c.Menus(context.Background())
		assert.NotErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestUserAgent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "campusweb/test", r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, `{"success": true, "data": {}}`)
	}, WithUserAgent("campusweb/test"), WithTimeout(time.Second))

	_, err := c.Settings(context.Background())
	require.NoError(t, err)
}
