package role

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToNanny(t *testing.T) {
	require.Equal(t, Parent, Parse("parent"))
	require.Equal(t, Parent, Parse(" PARENT "))
	require.Equal(t, Nanny, Parse("nanny"))
	require.Equal(t, Nanny, Parse("admin"))
	require.Equal(t, Nanny, Parse(""))
}

func TestFromContextWithoutRole(t *testing.T) {
	require.Equal(t, Nanny, FromContext(context.Background()))
}

func TestMiddlewareStoresRole(t *testing.T) {
	var seen Role
	h := Middleware{}.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/households/a/status?role=parent", nil))
	require.Equal(t, Parent, seen)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/households/a/status?role=owner", nil))
	require.Equal(t, Nanny, seen)
}
