package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegion(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"country_name":"Russia","city":"Moscow","latitude":55.7}`))
	}))
	defer srv.Close()

	loc := NewHTTPLocator(srv.URL+"/json/{ip}", time.Second)

	region, err := loc.Region(context.Background(), "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, "Russia, Moscow", region)
	assert.Equal(t, "/json/203.0.113.7", gotPath)
}

func TestRegionUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	loc := NewHTTPLocator(srv.URL+"/json/{ip}", time.Second)

	_, err := loc.Region(context.Background(), "203.0.113.7")
	assert.Error(t, err)
}
