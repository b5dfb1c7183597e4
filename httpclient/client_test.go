package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostJSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "ping", body["msg"])
		json.NewEncoder(w).Encode(map[string]any{"msg": "pong"})
	}))
	defer srv.Close()

	var out map[string]any
	err := New().PostJSON(context.Background(), srv.URL, map[string]any{"msg": "ping"}, &out)
	require.NoError(t, err)
	require.Equal(t, "pong", out["msg"])
}

func TestGetJSONAndStaticHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	var out map[string]any
	err := New(WithBearerToken("sekrit")).GetJSON(context.Background(), srv.URL, &out)
	require.NoError(t, err)
	require.Equal(t, true, out["ok"])
}

func TestNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "device queue saturated", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := New().GetJSON(context.Background(), srv.URL, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
	require.Contains(t, err.Error(), "device queue saturated")
}

func TestNilOutSkipsDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not json"))
	}))
	defer srv.Close()

	require.NoError(t, New().GetJSON(context.Background(), srv.URL, nil))
}
