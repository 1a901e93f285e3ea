package es

import (
	"net/http"

	"github.com/goccy/go-json"
)

// Response is what came back for one Request. Body is nil when the server sent
// no JSON object, which is normal for HEAD requests.
type Response struct {
	host          string
	statusCode    int
	statusMessage string
	body          map[string]interface{}
	raw           []byte
}

func NewResponse(host string, statusCode int, statusMessage string, raw []byte) *Response {
	if statusMessage == "" {
		statusMessage = http.StatusText(statusCode)
	}

	var body map[string]interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			body = nil
		}
	}

	return &Response{
		host:          host,
		statusCode:    statusCode,
		statusMessage: statusMessage,
		body:          body,
		raw:           append([]byte(nil), raw...),
	}
}

// Host is the host:port that served the request.
func (r *Response) Host() string {
	return r.host
}

func (r *Response) StatusCode() int {
	return r.statusCode
}

func (r *Response) StatusMessage() string {
	return r.statusMessage
}

func (r *Response) Body() map[string]interface{} {
	return r.body
}

func (r *Response) RawBody() []byte {
	return r.raw
}
