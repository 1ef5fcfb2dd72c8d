package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-hq/ABMX/config"
	"github.com/meridian-hq/ABMX/errors"
	"github.com/meridian-hq/ABMX/internal/httpclient"
)

// testHTTPProvider builds a provider whose client accepts the httptest
// server's localhost address.
func testHTTPProvider(t *testing.T, srv *httptest.Server) *HTTPProvider {
	t.Helper()
	return &HTTPProvider{
		baseURL: srv.URL,
		token:   "test-token",
		client:  httpclient.WrapClient(srv.Client()),
	}
}

func TestHTTPProviderFetchFlattensProperties(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/companies/c-1", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c-1","properties":{"name":"Acme Corp","industry":"saas"}}`))
	}))
	defer srv.Close()

	provider := testHTTPProvider(t, srv)
	fields, err := provider.FetchCompany(context.Background(), "c-1")
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", fields["name"])
	assert.Equal(t, "saas", fields["industry"])
	assert.Equal(t, "c-1", fields["id"])
	_, nested := fields["properties"]
	assert.False(t, nested)
}

func TestHTTPProviderFlatBodyPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contacts/p-1", r.URL.Path)
		w.Write([]byte(`{"firstname":"Dana","lastname":"Reyes"}`))
	}))
	defer srv.Close()

	provider := testHTTPProvider(t, srv)
	fields, err := provider.FetchContact(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Dana", fields["firstname"])
}

func TestHTTPProviderNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	provider := testHTTPProvider(t, srv)
	_, err := provider.FetchDeal(context.Background(), "d-404")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestHTTPProviderServerErrorIsIntegration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	provider := testHTTPProvider(t, srv)
	_, err := provider.FetchCompany(context.Background(), "c-1")
	require.Error(t, err)
	assert.True(t, errors.IsIntegration(err))
}

func TestHTTPProviderEmptyIDRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	provider := testHTTPProvider(t, srv)
	_, err := provider.FetchCompany(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestNewHTTPProviderRequiresBaseURL(t *testing.T) {
	_, err := NewHTTPProvider(config.ProviderConfig{})
	require.Error(t, err)
}

func TestNewProviderSelectsStaticWithoutBaseURL(t *testing.T) {
	provider, err := NewProvider(config.ProviderConfig{})
	require.NoError(t, err)
	_, ok := provider.(*StaticProvider)
	assert.True(t, ok)
}
