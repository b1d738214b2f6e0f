package yts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ogero/stremio-speculative/pkg/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBaseURL is the public YTS API host.
const DefaultBaseURL = "https://yts.mx"

const maxResponseBytes = 8 * 1024 * 1024

// ErrMalformedResponse is returned when the index answers with a payload that
// does not have the {data:{movies:[{title, torrents:[...]}]}} shape.
var ErrMalformedResponse = errors.New("malformed index response")

// StatusError is returned when the index answers with a non-2xx status code.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

// Movie is a single movie entry of a list_movies response.
type Movie struct {
	Title    string    `json:"title"`
	Torrents []Torrent `json:"torrents"`
}

// Torrent is one downloadable release of a Movie.
type Torrent struct {
	Quality string `json:"quality"`
	Hash    string `json:"hash"`
}

// YTS defines the methods to interact with the YTS torrent index.
type YTS interface {
	// ListMovies searches the index by free-text term and returns the movies in the order the index sent them.
	ListMovies(ctx context.Context, query string) ([]Movie, error)
}

type yts struct {
	httpClient *http.Client
	baseURL    string
}

// NewYTS creates a new instance of the YTS client against baseURL.
// An empty baseURL falls back to DefaultBaseURL.
func NewYTS(baseURL string) YTS {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	rt := transport.NewModifyHeadersRoundTripper(transport.NewPooledTransport(),
		transport.WithAccept("application/json"),
		transport.WithUserAgent("stremio-speculative/1.0"),
	)

	return &yts{
		httpClient: &http.Client{
			Timeout:   time.Second * 10,
			Transport: rt,
		},
		baseURL: baseURL,
	}
}

type listMoviesResponse struct {
	Status        string `json:"status"`
	StatusMessage string `json:"status_message"`
	Data          *struct {
		Movies []Movie `json:"movies"`
	} `json:"data"`
}

// ListMovies searches the index by free-text term and returns the movies in the order the index sent them.
func (c *yts) ListMovies(ctx context.Context, query string) ([]Movie, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "yts.YTS.ListMovies")
	defer span.End()
	span.SetAttributes(attribute.String("yts.query", query))

	u := c.baseURL + "/api/v2/list_movies.json?" + url.Values{"query_term": {query}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to http.NewRequestWithContext: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to http.Client.Do: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{URL: u, StatusCode: res.StatusCode}
	}

	var payload listMoviesResponse
	err = json.NewDecoder(limitReader(res.Body, maxResponseBytes, ErrResponseTooLarge)).Decode(&payload)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to json.Decoder.Decode: %w", ErrMalformedResponse, err)
	}

	if payload.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrMalformedResponse)
	}
	if payload.Data.Movies == nil {
		return nil, fmt.Errorf("%w: missing data.movies", ErrMalformedResponse)
	}
	for i, movie := range payload.Data.Movies {
		if movie.Torrents == nil {
			return nil, fmt.Errorf("%w: missing data.movies[%d].torrents", ErrMalformedResponse, i)
		}
	}
	span.SetAttributes(attribute.Int("yts.movies-count", len(payload.Data.Movies)))

	return payload.Data.Movies, nil
}
