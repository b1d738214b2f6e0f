package stremio

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Resource is the kind of resource a protocol request asks for.
type Resource string

const (
	ResourceCatalog Resource = "catalog"
	ResourceStream  Resource = "stream"
)

// ErrUnsupportedResource is returned by ParseRequest for resources the addon does not route.
var ErrUnsupportedResource = errors.New("unsupported resource")

// Request is a parsed protocol request. It is implemented only by CatalogRequest and StreamRequest.
type Request interface {
	Resource() Resource
	isRequest()
}

// CatalogRequest asks for the items of catalog ID of content Type.
type CatalogRequest struct {
	Type  string
	ID    string
	// Extra holds the protocol extra properties (search, skip, genre). It is not used for the seed search.
	Extra url.Values
}

// Resource returns ResourceCatalog.
func (CatalogRequest) Resource() Resource { return ResourceCatalog }
func (CatalogRequest) isRequest()         {}

// StreamRequest asks for the streams of content ID of content Type.
type StreamRequest struct {
	Type string
	ID   string
}

// Resource returns ResourceStream.
func (StreamRequest) Resource() Resource { return ResourceStream }
func (StreamRequest) isRequest()         {}

/*
ParseRequest builds the request variant addressed by a protocol path of the form
/{resource}/{type}/{id}.json or /{resource}/{type}/{id}/{extra}.json.

Parameters:
  - resource: The resource path segment.
  - contentType: The type path segment.
  - rest: Everything after the type segment, still escaped.

Returns ErrUnsupportedResource for resources other than catalog and stream.
*/
func ParseRequest(resource, contentType, rest string) (Request, error) {
	rest = strings.TrimSuffix(strings.TrimPrefix(rest, "/"), ".json")

	rawID, rawExtra, _ := strings.Cut(rest, "/")
	id, err := url.PathUnescape(rawID)
	if err != nil {
		return nil, fmt.Errorf("failed to url.PathUnescape id: %w", err)
	}
	if id == "" {
		return nil, errors.New("empty id")
	}

	switch Resource(resource) {
	case ResourceCatalog:
		extra, err := url.ParseQuery(rawExtra)
		if err != nil {
			return nil, fmt.Errorf("failed to url.ParseQuery extra: %w", err)
		}
		return CatalogRequest{Type: contentType, ID: id, Extra: extra}, nil
	case ResourceStream:
		return StreamRequest{Type: contentType, ID: id}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedResource, resource)
	}
}
