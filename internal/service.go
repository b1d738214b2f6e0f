package internal

import (
	"context"
	"net/url"

	"github.com/ogero/stremio-speculative/internal/common"
	"github.com/ogero/stremio-speculative/pkg/stremio"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// SpeculativeCatalogID is the only catalog the addon serves.
	SpeculativeCatalogID = "speculative_movies"
	// CatalogSeedQuery is the index search term that fills the speculative catalog.
	CatalogSeedQuery = "speculative"
	// PlaceholderPoster is the poster of every catalog item.
	PlaceholderPoster = "https://via.placeholder.com/300x450/1a1a2e/e0e0e0?text=Speculative"
	// StreamName labels every stream produced by the addon.
	StreamName = "Custom Stream Server"
)

// Resolution outcomes, as reported by the resolutions_total metric.
const (
	outcomeFound       = "found"
	outcomeEmpty       = "empty"
	outcomeUnsupported = "unsupported"
)

// StremioService answers catalog and stream requests from torrent index searches.
// Both methods always return a well formed response, possibly empty.
type StremioService interface {
	// ResolveCatalog lists the items of the catalog id of content type contentType.
	ResolveCatalog(ctx context.Context, contentType, id string) stremio.MetasResponse
	// ResolveStream lists the streams of content id.
	ResolveStream(ctx context.Context, contentID string) stremio.StreamsResponse
}

type stremioService struct {
	searcher     TorrentSearcher
	proxyBaseURL string
}

// NewStremioService creates a new instance of StremioService.
// proxyBaseURL is the validated base URL of the streaming proxy, without trailing slash.
func NewStremioService(searcher TorrentSearcher, proxyBaseURL string) StremioService {
	return &stremioService{
		searcher:     searcher,
		proxyBaseURL: proxyBaseURL,
	}
}

// ResolveCatalog lists the items of the catalog id of content type contentType.
// Only the movie speculative catalog is served, anything else yields no items.
func (s *stremioService) ResolveCatalog(ctx context.Context, contentType, id string) stremio.MetasResponse {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "internal.StremioService.ResolveCatalog")
	defer span.End()
	span.SetAttributes(attribute.String("catalog.type", contentType), attribute.String("catalog.id", id))

	response := stremio.MetasResponse{Metas: []stremio.MetaPreview{}}

	if common.ValidateContentType(contentType) != nil || id != SpeculativeCatalogID {
		common.Log.DebugContext(ctx, "Unsupported catalog", "type", contentType, "id", id)
		common.ResolutionsTotalIncr(ctx, string(stremio.ResourceCatalog), outcomeUnsupported)
		return response
	}

	for _, d := range s.searcher.Search(ctx, CatalogSeedQuery) {
		response.Metas = append(response.Metas, stremio.MetaPreview{
			ID:     d.Magnet,
			Type:   contentType,
			Name:   d.Name,
			Poster: PlaceholderPoster,
		})
	}

	span.SetAttributes(attribute.Int("catalog.metas-count", len(response.Metas)))
	common.ResolutionsTotalIncr(ctx, string(stremio.ResourceCatalog), outcome(len(response.Metas)))

	return response
}

// ResolveStream lists the streams of content id. The id is used verbatim as the search term.
func (s *stremioService) ResolveStream(ctx context.Context, contentID string) stremio.StreamsResponse {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "internal.StremioService.ResolveStream")
	defer span.End()
	span.SetAttributes(attribute.String("stream.id", contentID))

	if err := common.ValidateIMDBTitleID(contentID); err != nil {
		common.Log.DebugContext(ctx, "Stream id is not an IMDB title id, searching it anyway", "id", contentID)
	}

	common.Log.InfoContext(ctx, "Searching torrents", "query", contentID)

	descriptors := s.searcher.Search(ctx, contentID)

	response := stremio.StreamsResponse{Streams: make([]stremio.Stream, 0, len(descriptors))}
	for _, d := range descriptors {
		response.Streams = append(response.Streams, stremio.Stream{
			Name:  StreamName,
			Title: d.Name,
			URL:   s.ProxyURL(d.Magnet),
		})
	}

	span.SetAttributes(attribute.Int("stream.streams-count", len(response.Streams)))
	common.ResolutionsTotalIncr(ctx, string(stremio.ResourceStream), outcome(len(response.Streams)))

	return response
}

// ProxyURL returns the streaming proxy URL playing magnet.
func (s *stremioService) ProxyURL(magnet string) string {
	return s.proxyBaseURL + "/stream?" + url.Values{"torrent": {magnet}}.Encode()
}

func outcome(n int) string {
	if n == 0 {
		return outcomeEmpty
	}
	return outcomeFound
}
