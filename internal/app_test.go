package internal

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ogero/stremio-speculative/pkg/stremio"
	"github.com/ogero/stremio-speculative/pkg/yts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const expectedManifest = `{
	"id": "community.speculativestreamaddon",
	"version": "1.0.0",
	"name": "Speculative Stream Addon",
	"description": "Fetches torrents and streams dynamically.",
	"resources": ["stream"],
	"types": ["movie"],
	"idPrefixes": ["tt"],
	"catalogs": [{"type": "movie", "id": "speculative_movies", "name": "Speculative Movies"}]
}`

type queryLog struct {
	mu      sync.Mutex
	queries []string
}

func (l *queryLog) add(q string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queries = append(l.queries, q)
}

func (l *queryLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.queries...)
}

// newTestAddon wires the full pipeline against a fake index that answers every query with Alpha and Beta.
func newTestAddon(t *testing.T) (http.Handler, *atomic.Int32, *queryLog) {
	t.Helper()
	captureLog(t)

	var calls atomic.Int32
	queries := &queryLog{}
	index := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		queries.add(r.URL.Query().Get("query_term"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","data":{"movies":[
			{"title":"Alpha","torrents":[{"quality":"720p","hash":"AAA"}]},
			{"title":"Beta","torrents":[{"quality":"1080p","hash":"BBB"},{"quality":"3D","hash":"CCC"}]}
		]}}`))
	}))
	t.Cleanup(index.Close)

	searcher := NewTorrentSearcher(yts.NewYTS(index.URL), nil)
	app := NewApp(NewStremioService(searcher, "https://proxy.example.com"), "http://127.0.0.1:7000", nil)
	return app.Router(), &calls, queries
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Origin", "https://web.stremio.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestManifestHandler(t *testing.T) {
	h, calls, _ := newTestAddon(t)

	for _, target := range []string{"/manifest.json", "/stremio/manifest.json"} {
		t.Run(target, func(t *testing.T) {
			w := get(t, h, target)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
			assert.JSONEq(t, expectedManifest, w.Body.String())
		})
	}

	assert.Zero(t, calls.Load())
}

func TestResourceHandler_Stream(t *testing.T) {
	h, calls, queries := newTestAddon(t)

	w := get(t, h, "/stremio/stream/movie/tt0111161.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"streams":[
		{"name":"Custom Stream Server","title":"Alpha [720p]","url":"https://proxy.example.com/stream?torrent=magnet%3A%3Fxt%3Durn%3Abtih%3AAAA"},
		{"name":"Custom Stream Server","title":"Beta [1080p]","url":"https://proxy.example.com/stream?torrent=magnet%3A%3Fxt%3Durn%3Abtih%3ABBB"},
		{"name":"Custom Stream Server","title":"Beta [3D]","url":"https://proxy.example.com/stream?torrent=magnet%3A%3Fxt%3Durn%3Abtih%3ACCC"}
	]}`, w.Body.String())

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"tt0111161"}, queries.all())
}

func TestResourceHandler_StreamEscapedID(t *testing.T) {
	h, _, queries := newTestAddon(t)

	w := get(t, h, "/stremio/stream/series/tt0944947%3A1%3A2.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"tt0944947:1:2"}, queries.all())
}

func TestResourceHandler_StreamIDDecodedOnce(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"/stremio/stream/movie/tt%25zz.json", "tt%zz"},
		{"/stremio/stream/movie/50%25off.json", "50%off"},
		{"/stremio/stream/movie/a%2520b.json", "a%20b"},
		{"/stremio/stream/movie/a%20b.json", "a b"},
		{"/stremio/stream/movie/a%2Fb.json", "a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			h, _, queries := newTestAddon(t)

			w := get(t, h, tt.target)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, []string{tt.want}, queries.all())
		})
	}
}

func TestResourceHandler_CatalogExtraDecodedOnce(t *testing.T) {
	captureLog(t)
	h := NewApp(&mockStremioService{}, "", nil).Router()

	for _, target := range []string{
		"/stremio/catalog/movie/speculative_movies/search=Sci%20Fi.json",
		"/stremio/catalog/movie/speculative_movies/search=100%2525.json",
	} {
		t.Run(target, func(t *testing.T) {
			w := get(t, h, target)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestResourceHandler_StreamIndexDown(t *testing.T) {
	captureLog(t)
	index := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer index.Close()

	searcher := NewTorrentSearcher(yts.NewYTS(index.URL), nil)
	h := NewApp(NewStremioService(searcher, "https://proxy.example.com"), "", nil).Router()

	w := get(t, h, "/stremio/stream/movie/tt0111161.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"streams":[]}`, w.Body.String())
}

func TestResourceHandler_Catalog(t *testing.T) {
	h, _, queries := newTestAddon(t)

	for _, target := range []string{
		"/stremio/catalog/movie/speculative_movies.json",
		"/stremio/catalog/movie/speculative_movies/skip=100.json",
	} {
		t.Run(target, func(t *testing.T) {
			w := get(t, h, target)
			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"metas":[
				{"id":"magnet:?xt=urn:btih:AAA","type":"movie","name":"Alpha [720p]","poster":"`+PlaceholderPoster+`"},
				{"id":"magnet:?xt=urn:btih:BBB","type":"movie","name":"Beta [1080p]","poster":"`+PlaceholderPoster+`"},
				{"id":"magnet:?xt=urn:btih:CCC","type":"movie","name":"Beta [3D]","poster":"`+PlaceholderPoster+`"}
			]}`, w.Body.String())
		})
	}

	assert.Equal(t, []string{CatalogSeedQuery, CatalogSeedQuery}, queries.all())
}

func TestResourceHandler_UnsupportedCatalog(t *testing.T) {
	h, calls, _ := newTestAddon(t)

	for _, target := range []string{
		"/stremio/catalog/movie/top.json",
		"/stremio/catalog/series/speculative_movies.json",
		"/stremio/catalog/series/top/genre=Drama.json",
	} {
		t.Run(target, func(t *testing.T) {
			w := get(t, h, target)
			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"metas":[]}`, w.Body.String())
		})
	}

	assert.Zero(t, calls.Load())
}

func TestResourceHandler_BadRequests(t *testing.T) {
	h, calls, _ := newTestAddon(t)

	tests := []struct {
		target string
		want   int
	}{
		{"/stremio/meta/movie/tt0111161.json", http.StatusNotFound},
		{"/stremio/subtitles/movie/tt0111161.json", http.StatusNotFound},
		{"/stremio/stream/movie/.json", http.StatusBadRequest},
		{"/stream/movie/tt0111161.json", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := get(t, h, tt.target)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	assert.Zero(t, calls.Load())
}

type mockStremioService struct {
	catalogs []string
	streams  []string
}

func (m *mockStremioService) ResolveCatalog(_ context.Context, contentType, id string) stremio.MetasResponse {
	m.catalogs = append(m.catalogs, contentType+"/"+id)
	return stremio.MetasResponse{Metas: []stremio.MetaPreview{}}
}

func (m *mockStremioService) ResolveStream(_ context.Context, contentID string) stremio.StreamsResponse {
	m.streams = append(m.streams, contentID)
	return stremio.StreamsResponse{Streams: []stremio.Stream{}}
}

func TestResourceHandler_Dispatch(t *testing.T) {
	captureLog(t)
	svc := &mockStremioService{}
	h := NewApp(svc, "", nil).Router()

	get(t, h, "/stremio/catalog/movie/speculative_movies.json")
	get(t, h, "/stremio/stream/movie/tt1.json")
	get(t, h, "/stremio/stream/movie/tt2.json")

	assert.Equal(t, []string{"movie/speculative_movies"}, svc.catalogs)
	assert.Equal(t, []string{"tt1", "tt2"}, svc.streams)
}

func TestApp_InstallURL(t *testing.T) {
	app := NewApp(&mockStremioService{}, "https://addon.example.com", nil)
	assert.Equal(t, "https://addon.example.com/manifest.json", app.InstallURL())
}

func TestManifestJSON(t *testing.T) {
	require.NotEmpty(t, manifestJSON)
	assert.JSONEq(t, expectedManifest, string(manifestJSON))
}

func TestRouter_Diagnostics(t *testing.T) {
	captureLog(t)
	diagnostics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	server := httptest.NewServer(NewApp(&mockStremioService{}, "", diagnostics).Router())
	defer server.Close()

	u, err := url.JoinPath(server.URL, "/connection/websocket")
	require.NoError(t, err)
	res, err := http.Get(u)
	require.NoError(t, err)
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	assert.Equal(t, http.StatusTeapot, res.StatusCode)
}
