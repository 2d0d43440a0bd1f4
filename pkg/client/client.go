// Package client is the Go client for a Verita server. Responses marked
// confidential by the server are transparently decrypted with the
// caller's own bearer token.
package client

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

type Option func(*Client)

// WithAuthToken sets the bearer token used for authentication. The same
// token also opens encrypted response bodies.
func WithAuthToken(token string) Option {
	return func(c *Client) { c.authToken = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type urlBuilder struct {
	base   string
	path   string
	params map[string]string
	query  url.Values
}

func (c *Client) url() *urlBuilder {
	return &urlBuilder{base: c.baseURL}
}

// setPath takes a route pattern, e.g. "/v1/requests/{id}/approve".
func (b *urlBuilder) setPath(pattern string) *urlBuilder {
	b.path = pattern
	return b
}

func (b *urlBuilder) setPathParam(name, value string) *urlBuilder {
	if b.params == nil {
		b.params = make(map[string]string)
	}
	b.params[name] = value
	return b
}

func (b *urlBuilder) setQueryParam(name, value string) *urlBuilder {
	if b.query == nil {
		b.query = url.Values{}
	}
	b.query.Set(name, value)
	return b
}

func (b *urlBuilder) build() string {
	path := b.path
	for name, value := range b.params {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(value))
	}
	out := b.base + path
	if len(b.query) > 0 {
		out += "?" + b.query.Encode()
	}
	return out
}
