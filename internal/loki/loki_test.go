package loki

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorBody(value string) string {
	return `{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1700000000.123,"` + value + `"]}]}}`
}

func TestLoki_Counts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loki/api/v1/query", r.URL.Path)
		query := r.URL.Query().Get("query")
		assert.Contains(t, query, `{service_name="stremio-speculative"}`)
		assert.Contains(t, query, "[24h]")

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(query, searchCompletedLine):
			_, _ = w.Write([]byte(vectorBody("40")))
		case strings.Contains(query, searchFailedLine):
			_, _ = w.Write([]byte(vectorBody("2")))
		default:
			t.Errorf("unexpected query %s", query)
		}
	}))
	defer server.Close()

	l := NewLoki(server.URL, "stremio-speculative")

	searches, err := l.GetSearches24(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, searches)

	failed, err := l.GetFailedSearches24(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, failed)
}

func TestLoki_EmptyVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[]}}`))
	}))
	defer server.Close()

	failed, err := NewLoki(server.URL, "svc").GetFailedSearches24(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, failed)
}

func TestLoki_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"bad status code", http.StatusBadGateway, ``},
		{"error status", http.StatusOK, `{"status":"error","data":{"resultType":"vector"}}`},
		{"matrix result", http.StatusOK, `{"status":"success","data":{"resultType":"matrix","result":[]}}`},
		{"non numeric value", http.StatusOK, vectorBody("abc")},
		{"invalid json", http.StatusOK, `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewLoki(server.URL, "svc").GetFailedSearches24(context.Background())
			assert.Error(t, err)
		})
	}
}
