package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ogero/stremio-speculative/internal/common"
	"github.com/ogero/stremio-speculative/pkg/yts"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Search results, also used as the kind of a failed search.
const (
	SearchResultOK        = "ok"
	SearchResultTransport = "transport"
	SearchResultStatus    = "status"
	SearchResultMalformed = "malformed"
	// SearchResultCanceled is a search aborted by its caller. It is not an index failure.
	SearchResultCanceled = "canceled"
)

// Descriptor is a named magnet built from one (movie, torrent) pair of an index response.
type Descriptor struct {
	// Name is "{title} [{quality}]".
	Name string
	// Magnet is "magnet:?xt=urn:btih:{hash}".
	Magnet string
}

// NewDescriptor builds the Descriptor of torrent t of the movie titled title.
func NewDescriptor(title string, t yts.Torrent) Descriptor {
	return Descriptor{
		Name:   fmt.Sprintf("%s [%s]", title, t.Quality),
		Magnet: "magnet:?xt=urn:btih:" + t.Hash,
	}
}

// SearchOutcome describes how a single index search went.
type SearchOutcome struct {
	Query       string    `json:"query"`
	Result      string    `json:"result"`
	Descriptors int       `json:"descriptors"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// SearchReporter receives the outcome of every search.
type SearchReporter interface {
	ReportSearch(ctx context.Context, outcome SearchOutcome)
}

// TorrentSearcher finds torrents by free-text term.
type TorrentSearcher interface {
	// Search returns the descriptors for query. It never fails: index errors are
	// logged and reported, and yield an empty slice.
	Search(ctx context.Context, query string) []Descriptor
}

type torrentSearcher struct {
	yts      yts.YTS
	reporter SearchReporter
	now      func() time.Time
}

// NewTorrentSearcher creates a TorrentSearcher backed by the YTS client.
// reporter may be nil.
func NewTorrentSearcher(client yts.YTS, reporter SearchReporter) TorrentSearcher {
	return &torrentSearcher{
		yts:      client,
		reporter: reporter,
		now:      time.Now,
	}
}

// Search returns the descriptors for query, in index order, or an empty slice on any index error.
func (s *torrentSearcher) Search(ctx context.Context, query string) []Descriptor {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "internal.TorrentSearcher.Search")
	defer span.End()
	span.SetAttributes(attribute.String("search.query", query))

	movies, err := s.yts.ListMovies(ctx, query)
	if err != nil {
		kind := searchErrorKind(err)
		if kind == SearchResultCanceled {
			common.Log.DebugContext(ctx, "Torrent search canceled", "query", query, "err", err)
		} else {
			common.Log.WarnContext(ctx, "Torrent search failed", "query", query, "kind", kind, "err", err)
			span.RecordError(err)
		}
		span.SetAttributes(attribute.String("search.result", kind))
		common.TorrentSearchesTotalIncr(ctx, kind)
		s.report(ctx, SearchOutcome{Query: query, Result: kind, Error: err.Error()})
		return []Descriptor{}
	}

	descriptors := make([]Descriptor, 0, len(movies))
	for _, movie := range movies {
		for _, torrent := range movie.Torrents {
			descriptors = append(descriptors, NewDescriptor(movie.Title, torrent))
		}
	}

	common.Log.InfoContext(ctx, "Torrent search completed", "query", query, "movies", len(movies), "descriptors", len(descriptors))
	span.SetAttributes(attribute.String("search.result", SearchResultOK))
	span.SetAttributes(attribute.Int("search.descriptors-count", len(descriptors)))
	common.TorrentSearchesTotalIncr(ctx, SearchResultOK)
	s.report(ctx, SearchOutcome{Query: query, Result: SearchResultOK, Descriptors: len(descriptors)})

	return descriptors
}

func (s *torrentSearcher) report(ctx context.Context, outcome SearchOutcome) {
	if s.reporter == nil {
		return
	}
	outcome.At = s.now()
	s.reporter.ReportSearch(ctx, outcome)
}

func searchErrorKind(err error) string {
	var statusErr *yts.StatusError
	switch {
	case errors.Is(err, context.Canceled):
		return SearchResultCanceled
	case errors.Is(err, yts.ErrMalformedResponse):
		return SearchResultMalformed
	case errors.As(err, &statusErr):
		return SearchResultStatus
	default:
		return SearchResultTransport
	}
}
