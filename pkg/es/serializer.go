package es

import (
	"bytes"
	stdjson "encoding/json"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

type JSONSerializer struct{}

var DefaultSerializer Serializer = JSONSerializer{}

// Marshal passes already encoded documents through after checking they are
// valid JSON; a document spanning lines would break the bulk framing.
func (JSONSerializer) Marshal(v interface{}) (stdjson.RawMessage, error) {
	var raw []byte
	switch doc := v.(type) {
	case stdjson.RawMessage:
		raw = doc
	case []byte:
		raw = doc
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return encoded, nil
	}

	if !json.Valid(raw) {
		return nil, errors.New("document is not valid json")
	}
	return compact(raw)
}

func compact(raw []byte) (stdjson.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}
