package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/CharellKing/ela-work/config"
	"github.com/CharellKing/ela-work/pkg/es"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Transport sends one request and returns whatever response arrived. Any
// status code is a response; only failures to get one are errors.
type Transport interface {
	Perform(ctx context.Context, req *es.Request) (*es.Response, error)
}

// HTTPTransport talks to the cluster with net/http, rotating over the
// configured addresses.
type HTTPTransport struct {
	addresses []string
	user      string
	password  string
	client    *http.Client
	next      atomic.Uint64
}

func newHTTPRoundTripper(esCfg *config.ESConfig, clientCfg *config.ClientCfg) *http.Transport {
	dialer := &net.Dialer{Timeout: clientCfg.ConnectionTimeout}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          clientCfg.MaxTotalConnections,
		MaxIdleConnsPerHost:   clientCfg.MaxConnectionsPerRoute,
		MaxConnsPerHost:       clientCfg.MaxConnectionsPerRoute,
		ResponseHeaderTimeout: clientCfg.ReadTimeout,
		TLSHandshakeTimeout:   clientCfg.ConnectionTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: esCfg.InsecureSkipVerify, //nolint:gosec
		},
	}
}

func NewHTTPTransport(esCfg *config.ESConfig, clientCfg *config.ClientCfg) (*HTTPTransport, error) {
	if len(esCfg.Addresses) == 0 {
		return nil, errors.New("no elasticsearch address configured")
	}
	return &HTTPTransport{
		addresses: lo.Map(esCfg.Addresses, func(address string, _ int) string {
			return strings.TrimRight(address, "/")
		}),
		user:     esCfg.User,
		password: esCfg.Password,
		client:   &http.Client{Transport: newHTTPRoundTripper(esCfg, clientCfg)},
	}, nil
}

func (t *HTTPTransport) address() string {
	idx := t.next.Add(1) - 1
	return t.addresses[idx%uint64(len(t.addresses))]
}

func (t *HTTPTransport) Perform(ctx context.Context, req *es.Request) (*es.Response, error) {
	targetUrl := t.address() + req.Path()
	if query := req.Query(); query != "" {
		targetUrl += "?" + query
	}

	var body io.Reader
	if raw := req.Body(); raw != nil {
		body = bytes.NewReader(raw)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method(), targetUrl, body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if lo.IsNotEmpty(t.user) {
		httpReq.SetBasicAuth(t.user, t.password)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", req.ContentType())
	}
	httpReq.Header.Set("Accept", es.ContentTypeJSON)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return formatResponse(httpReq.URL.Host, resp)
}

func (t *HTTPTransport) Close() {
	t.client.CloseIdleConnections()
}

func formatResponse(host string, resp *http.Response) (*es.Response, error) {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return es.NewResponse(host, resp.StatusCode, statusMessage(resp), bodyBytes), nil
}

// statusMessage strips the code from "404 Not Found".
func statusMessage(resp *http.Response) string {
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
}
