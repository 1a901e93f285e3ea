package client

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/CharellKing/ela-work/config"
	"github.com/CharellKing/ela-work/pkg/es"
	elasticsearch5 "github.com/elastic/go-elasticsearch/v5"
	elasticsearch6 "github.com/elastic/go-elasticsearch/v6"
	elasticsearch7 "github.com/elastic/go-elasticsearch/v7"
	elasticsearch8 "github.com/elastic/go-elasticsearch/v8"
	"github.com/hashicorp/go-version"
	"github.com/pkg/errors"
)

type performer interface {
	Perform(req *http.Request) (*http.Response, error)
}

// ElasticTransport sends requests through the official client matching the
// cluster's major version, so node discovery and product checks behave the
// way the cluster expects.
type ElasticTransport struct {
	client       performer
	roundTripper *http.Transport
	major        int
}

func NewElasticTransport(esCfg *config.ESConfig, clientCfg *config.ClientCfg, clusterVersion string) (*ElasticTransport, error) {
	parsed, err := version.NewVersion(clusterVersion)
	if err != nil {
		return nil, errors.Wrapf(err, "cluster version %q", clusterVersion)
	}
	major := parsed.Segments()[0]
	roundTripper := newHTTPRoundTripper(esCfg, clientCfg)

	var client performer
	switch major {
	case 5:
		client, err = elasticsearch5.NewClient(elasticsearch5.Config{
			Addresses: esCfg.Addresses,
			Username:  esCfg.User,
			Password:  esCfg.Password,
			Transport: roundTripper,
		})
	case 6:
		client, err = elasticsearch6.NewClient(elasticsearch6.Config{
			Addresses: esCfg.Addresses,
			Username:  esCfg.User,
			Password:  esCfg.Password,
			Transport: roundTripper,
		})
	case 7:
		client, err = elasticsearch7.NewClient(elasticsearch7.Config{
			Addresses: esCfg.Addresses,
			Username:  esCfg.User,
			Password:  esCfg.Password,
			Transport: roundTripper,
		})
	case 8:
		client, err = elasticsearch8.NewClient(elasticsearch8.Config{
			Addresses: esCfg.Addresses,
			Username:  esCfg.User,
			Password:  esCfg.Password,
			Transport: roundTripper,
		})
	default:
		return nil, errors.Errorf("unsupported cluster version %s", clusterVersion)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &ElasticTransport{
		client:       client,
		roundTripper: roundTripper,
		major:        major,
	}, nil
}

func (t *ElasticTransport) Major() int {
	return t.major
}

func (t *ElasticTransport) Perform(ctx context.Context, req *es.Request) (*es.Response, error) {
	target := req.Path()
	if query := req.Query(); query != "" {
		target += "?" + query
	}

	var body io.Reader
	if raw := req.Body(); raw != nil {
		body = bytes.NewReader(raw)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method(), target, body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", req.ContentType())
	}

	resp, err := t.client.Perform(httpReq)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	host := httpReq.URL.Host
	if resp.Request != nil && resp.Request.URL != nil {
		host = resp.Request.URL.Host
	}
	return formatResponse(host, resp)
}

func (t *ElasticTransport) Close() {
	t.roundTripper.CloseIdleConnections()
}
