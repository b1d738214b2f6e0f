package transport

import (
	"net/http"
)

// ModifyHeadersOption is a function type used to modify HTTP headers in a request.
// It takes a function that sets a header key and value, allowing for flexible header modification.
type ModifyHeadersOption func(func(key string, value string))

type modifyHeadersRoundTripper struct {
	roundTripper http.RoundTripper
	options      []ModifyHeadersOption
}

// NewModifyHeadersRoundTripper will add headers to every outgoing request.
// The request is cloned before mutation so callers can reuse it.
func NewModifyHeadersRoundTripper(rt http.RoundTripper, opts ...ModifyHeadersOption) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &modifyHeadersRoundTripper{roundTripper: rt, options: opts}
}

func (rt *modifyHeadersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for _, opt := range rt.options {
		opt(r.Header.Set)
	}
	return rt.roundTripper.RoundTrip(r)
}

// WithUserAgent is a functional option to set the HTTP client user agent.
func WithUserAgent(userAgent string) ModifyHeadersOption {
	return WithHeader("User-Agent", userAgent)
}

// WithAccept is a functional option to set the accepted response media type.
func WithAccept(accept string) ModifyHeadersOption {
	return WithHeader("Accept", accept)
}

// WithHeader sets an arbitrary header on every request.
func WithHeader(key, value string) ModifyHeadersOption {
	return func(f func(key string, value string)) {
		f(key, value)
	}
}

// NewPooledTransport clones the default transport with the connection pool
// sizing used by every upstream client of the addon.
func NewPooledTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxConnsPerHost = 100
	t.MaxIdleConnsPerHost = 100
	return t
}
