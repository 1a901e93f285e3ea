package es

import (
	"bytes"
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/samber/lo"
)

const (
	ContentTypeJSON   = "application/json"
	ContentTypeNDJSON = "application/x-ndjson"
)

// Request is the transport agnostic description of one HTTP call. It is
// immutable once built; use ToBuilder to derive a modified copy.
type Request struct {
	method         string
	pathComponents []string
	params         map[string]string
	bodyParts      []json.RawMessage
	ndjson         bool
}

func (r *Request) Method() string {
	return r.method
}

func (r *Request) PathComponents() []string {
	return append([]string(nil), r.pathComponents...)
}

// Path returns the request path with every component escaped on its own, so
// a document id containing "/" stays a single segment.
func (r *Request) Path() string {
	escaped := lo.Map(r.pathComponents, func(component string, _ int) string {
		return url.PathEscape(component)
	})
	return "/" + strings.Join(escaped, "/")
}

// RawPath is the unescaped form of Path.
func (r *Request) RawPath() string {
	return "/" + strings.Join(r.pathComponents, "/")
}

func (r *Request) Params() map[string]string {
	return lo.Assign(r.params)
}

func (r *Request) Param(name string) (string, bool) {
	value, ok := r.params[name]
	return value, ok
}

// Query renders the parameters sorted by name.
func (r *Request) Query() string {
	if len(r.params) == 0 {
		return ""
	}
	values := url.Values{}
	for name, value := range r.params {
		values.Set(name, value)
	}
	return values.Encode()
}

func (r *Request) BodyParts() []json.RawMessage {
	return lo.Map(r.bodyParts, func(part json.RawMessage, _ int) json.RawMessage {
		return append(json.RawMessage(nil), part...)
	})
}

func (r *Request) IsNDJSON() bool {
	return r.ndjson
}

// Body renders the wire body: nil without parts, the single part verbatim for
// plain requests, and newline delimited parts with a trailing newline for
// NDJSON requests.
func (r *Request) Body() []byte {
	if len(r.bodyParts) == 0 {
		return nil
	}
	if !r.ndjson {
		return append([]byte(nil), r.bodyParts[0]...)
	}

	var buf bytes.Buffer
	for _, part := range r.bodyParts {
		buf.Write(part)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func (r *Request) ContentType() string {
	if r.ndjson {
		return ContentTypeNDJSON
	}
	return ContentTypeJSON
}

func (r *Request) String() string {
	if query := r.Query(); query != "" {
		return r.method + " " + r.Path() + "?" + query
	}
	return r.method + " " + r.Path()
}

func (r *Request) ToBuilder() *RequestBuilder {
	b := NewRequestBuilder(r.method).PathComponents(r.pathComponents...)
	names := lo.Keys(r.params)
	sort.Strings(names)
	for _, name := range names {
		b.Param(name, r.params[name])
	}
	for _, part := range r.bodyParts {
		b.Body(part)
	}
	if r.ndjson {
		b.NDJSON()
	}
	return b
}

type RequestBuilder struct {
	method         string
	pathComponents []string
	params         map[string]string
	bodyParts      []json.RawMessage
	ndjson         bool
}

func NewRequestBuilder(method string) *RequestBuilder {
	return &RequestBuilder{
		method: method,
		params: make(map[string]string),
	}
}

func (b *RequestBuilder) PathComponent(component string) *RequestBuilder {
	b.pathComponents = append(b.pathComponents, component)
	return b
}

func (b *RequestBuilder) PathComponents(components ...string) *RequestBuilder {
	b.pathComponents = append(b.pathComponents, components...)
	return b
}

func (b *RequestBuilder) Param(name, value string) *RequestBuilder {
	b.params[name] = value
	return b
}

// ParamIfNotEmpty skips empty values, which is what optional engine
// parameters such as routing want.
func (b *RequestBuilder) ParamIfNotEmpty(name, value string) *RequestBuilder {
	if lo.IsNotEmpty(value) {
		b.params[name] = value
	}
	return b
}

func (b *RequestBuilder) Body(part json.RawMessage) *RequestBuilder {
	b.bodyParts = append(b.bodyParts, append(json.RawMessage(nil), part...))
	return b
}

func (b *RequestBuilder) NDJSON() *RequestBuilder {
	b.ndjson = true
	return b
}

func (b *RequestBuilder) Build() *Request {
	request := &Request{
		method:         b.method,
		pathComponents: append([]string(nil), b.pathComponents...),
		bodyParts:      make([]json.RawMessage, 0, len(b.bodyParts)),
		ndjson:         b.ndjson,
	}
	if err := copier.CopyWithOption(&request.params, &b.params, copier.Option{DeepCopy: true}); err != nil {
		request.params = lo.Assign(b.params)
	}
	if request.params == nil {
		request.params = make(map[string]string)
	}
	for _, part := range b.bodyParts {
		request.bodyParts = append(request.bodyParts, append(json.RawMessage(nil), part...))
	}
	return request
}
