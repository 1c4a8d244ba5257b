package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	statusapi "github.com/fyrsmithlabs/pkgforge/internal/http"
)

func TestStatusClient_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statusapi.StatusResponse{
			RunID:    "run-7",
			Phase:    "QUALITY",
			Packages: map[string]statusapi.PackageStatus{"@acme/core": {State: "PUBLISHED"}},
			Totals:   map[string]int{"PUBLISHED": 1},
		})
	}))
	defer srv.Close()

	status, err := NewStatusClient(srv.URL + "/").Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-7", status.RunID)
	assert.Equal(t, "PUBLISHED", status.Packages["@acme/core"].State)
	assert.Equal(t, 1, status.Totals["PUBLISHED"])
}

func TestStatusClient_Errors(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewStatusClient(srv.URL).Status(context.Background())
		assert.ErrorContains(t, err, "unexpected status code 503")
	})

	t.Run("bad body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer srv.Close()

		_, err := NewStatusClient(srv.URL).Status(context.Background())
		assert.ErrorContains(t, err, "failed to decode response")
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewStatusClient(url).Status(context.Background())
		assert.ErrorContains(t, err, "request failed")
	})
}

func TestFetchStatus_Messages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(statusapi.StatusResponse{RunID: "run-8"})
	}))
	defer srv.Close()

	msg := fetchStatus(NewStatusClient(srv.URL))()
	status, ok := msg.(statusMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, "run-8", status.RunID)

	srv.Close()
	msg = fetchStatus(NewStatusClient(srv.URL))()
	_, ok = msg.(errMsg)
	assert.True(t, ok, "got %T", msg)
}
