package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ogero/stremio-speculative/internal/common"
	"github.com/ogero/stremio-speculative/pkg/stremio"
	slogchi "github.com/samber/slog-chi"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ProtocolMountPath is the path prefix the addon protocol is served under.
const ProtocolMountPath = "/stremio"

var manifest = stremio.Manifest{
	ID:          "community.speculativestreamaddon",
	Version:     "1.0.0",
	Name:        "Speculative Stream Addon",
	Description: "Fetches torrents and streams dynamically.",
	Resources:   []string{"stream"},
	Types:       []string{"movie"},
	IDPrefixes:  []string{"tt"},
	Catalogs: []stremio.ManifestCatalog{
		{Type: "movie", ID: SpeculativeCatalogID, Name: "Speculative Movies"},
	},
}

// manifestJSON is encoded once; the manifest never changes after startup.
var manifestJSON []byte

func init() {
	var err error
	manifestJSON, err = json.Marshal(manifest)
	if err != nil {
		panic(fmt.Errorf("failed to json.Marshal manifest: %w", err))
	}
}

// App represents the main application structure that holds the Stremio service and addon host information.
type App struct {
	StremioService StremioService
	AddonHost      string
	// Diagnostics serves the diagnostics websocket. It is optional.
	Diagnostics http.Handler
}

/*
NewApp creates a new instance of the App struct.

Parameters:
  - stremioService: The service resolving catalogs and streams.
  - addonHost: The public base URL of the addon.
  - diagnostics: The diagnostics websocket handler, or nil.

Returns:
  - A pointer to the newly created App instance.
*/
func NewApp(stremioService StremioService, addonHost string, diagnostics http.Handler) *App {
	return &App{
		StremioService: stremioService,
		AddonHost:      addonHost,
		Diagnostics:    diagnostics,
	}
}

// InstallURL returns the manifest URL users install the addon from.
func (a *App) InstallURL() string {
	return a.AddonHost + "/manifest.json"
}

// Router builds the HTTP routes of the addon.
func (a *App) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(slogchi.New(common.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{
			"Content-Type",
			"X-Requested-With",
			"Accept",
			"Accept-Language",
			"Accept-Encoding",
			"Content-Language",
			"Origin",
		},
		MaxAge: 300,
	}))

	r.Get("/manifest.json", a.ManifestHandler)
	r.Route(ProtocolMountPath, func(r chi.Router) {
		r.Get("/manifest.json", a.ManifestHandler)
		r.Get("/{resource}/{type}/*", a.ResourceHandler)
	})
	if a.Diagnostics != nil {
		r.Handle("/connection/websocket", a.Diagnostics)
	}

	return r
}

/*
ManifestHandler serves the manifest for the addon.

This method writes the manifest as a JSON response to the HTTP writer.
*/
func (a *App) ManifestHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	common.Log.DebugContext(ctx, "ManifestHandler")

	w.Header().Set("Content-Type", "application/json")

	_, err := w.Write(manifestJSON)
	if err != nil {
		common.Log.ErrorContext(ctx, "Failed to write response", "err", err)
		span.RecordError(err)
		return
	}
}

/*
ResourceHandler handles catalog and stream requests.

This method parses the request into its resource variant, delegates it to the Stremio service and writes the result as a JSON response.
Unsupported catalogs and unknown content yield empty lists, never errors.
*/
func (a *App) ResourceHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	common.Log.DebugContext(ctx, "ResourceHandler")

	req, err := stremio.ParseRequest(chi.URLParam(r, "resource"), chi.URLParam(r, "type"), escapedWildcard(r))
	if err != nil {
		common.Log.WarnContext(ctx, "Failed to stremio.ParseRequest", "err", err)
		span.RecordError(err)
		if errors.Is(err, stremio.ErrUnsupportedResource) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("params.resource", string(req.Resource())))

	var (
		response any
		count    int
	)
	switch req := req.(type) {
	case stremio.CatalogRequest:
		metas := a.StremioService.ResolveCatalog(ctx, req.Type, req.ID)
		response, count = metas, len(metas.Metas)
	case stremio.StreamRequest:
		streams := a.StremioService.ResolveStream(ctx, req.ID)
		response, count = streams, len(streams.Streams)
	}

	// Empty lists may come from a failing index, keep them short-lived.
	if count > 0 {
		w.Header().Set("Cache-Control", "public, max-age=3600")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=60")
	}

	w.Header().Set("Content-Type", "application/json")

	err = json.NewEncoder(w).Encode(response)
	if err != nil {
		common.Log.ErrorContext(ctx, "Failed to write response", "err", err)
		span.RecordError(err)
		return
	}
}

// escapedWildcard returns the catch-all route param still escaped.
// chi routes on the decoded path when the request has no RawPath, so the param is re-escaped in that case.
func escapedWildcard(r *http.Request) string {
	rest := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		return rest
	}
	return (&url.URL{Path: rest}).EscapedPath()
}
