package client

import (
	"context"
	"sync"
	"time"

	"github.com/CharellKing/ela-work/config"
	"github.com/CharellKing/ela-work/pkg/es"
	"github.com/CharellKing/ela-work/utils"
	"github.com/alitto/pond"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cast"
)

var (
	ErrClientClosed = errors.New("client is closed")
	errTaskPanicked = errors.New("request task panicked")
)

// Executor is what the orchestrator needs from a client.
type Executor interface {
	Execute(ctx context.Context, req *es.Request) *es.Future[*es.Response]
}

type closer interface {
	Close()
}

// Client dispatches requests on a bounded worker pool. It never retries;
// every failure to obtain a response completes the future with a
// *es.TransportError.
type Client struct {
	transport      Transport
	pool           *pond.WorkerPool
	interceptors   []Interceptor
	requestTimeout time.Duration
	meta           RequestMeta

	mu     sync.RWMutex
	closed bool
}

type Option func(*Client)

func WithInterceptor(interceptors ...Interceptor) Option {
	return func(c *Client) {
		c.interceptors = append(c.interceptors, interceptors...)
	}
}

func WithRequestMeta(meta RequestMeta) Option {
	return func(c *Client) {
		c.meta = meta
	}
}

func NewClient(transport Transport, clientCfg *config.ClientCfg, opts ...Option) *Client {
	c := &Client{
		transport:      transport,
		pool:           pond.New(cast.ToInt(clientCfg.Parallelism), cast.ToInt(clientCfg.QueueSize)),
		requestTimeout: clientCfg.RequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// New builds the client for one configured cluster. The cluster version is
// taken from configuration or detected over plain HTTP when absent.
func New(ctx context.Context, esCfg *config.ESConfig, clientCfg *config.ClientCfg, opts ...Option) (*Client, error) {
	httpTransport, err := NewHTTPTransport(esCfg, clientCfg)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	clusterVersion := esCfg.Version
	if lo.IsEmpty(clusterVersion) {
		detectCtx, cancel := context.WithTimeout(ctx, clientCfg.RequestTimeout)
		info, err := DetectVersion(detectCtx, httpTransport)
		cancel()
		if err != nil {
			return nil, errors.Wrap(err, "detect cluster version")
		}
		clusterVersion = info.Version.Number
		utils.GetLogger(ctx).Infof("detected cluster %s version %s", info.ClusterName, clusterVersion)
	}

	var transport Transport = httpTransport
	if esCfg.Transport != config.TransportTypeHTTP {
		if transport, err = NewElasticTransport(esCfg, clientCfg, clusterVersion); err != nil {
			return nil, errors.WithStack(err)
		}
		httpTransport.Close()
	}

	opts = append([]Option{WithRequestMeta(newRequestMeta(esCfg.Addresses, clusterVersion))}, opts...)
	return NewClient(transport, clientCfg, opts...), nil
}

func (c *Client) ClusterVersion() string {
	return c.meta.ClusterVersion
}

// Execute runs the interceptors on the calling goroutine, then hands the
// request to the pool. It only blocks while the pool queue is full.
func (c *Client) Execute(ctx context.Context, req *es.Request) *es.Future[*es.Response] {
	req, err := intercept(req, c.meta, c.interceptors)
	if err != nil {
		return es.FailedFuture[*es.Response](es.NewTransportError(err))
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return es.FailedFuture[*es.Response](es.NewTransportError(ErrClientClosed))
	}

	future := es.NewFuture[*es.Response]()
	c.pool.Submit(func() {
		defer future.Fail(es.NewTransportError(errTaskPanicked))
		defer utils.Recovery(ctx)
		c.perform(ctx, req, future)
	})
	return future
}

func (c *Client) perform(ctx context.Context, req *es.Request, future *es.Future[*es.Response]) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		future.Fail(es.NewTransportError(err))
		return
	}

	start := time.Now()
	resp, err := c.transport.Perform(ctx, req)
	if err != nil {
		utils.GetLogger(ctx).Warnf("%s failed after %s: %+v", req, time.Since(start), err)
		future.Fail(es.NewTransportError(err))
		return
	}
	utils.GetLogger(ctx).Debugf("%s -> %d from %s in %s", req, resp.StatusCode(), resp.Host(), time.Since(start))
	future.Complete(resp)
}

// Close rejects new requests, waits for queued ones and releases idle
// connections.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.pool.StopAndWait()
	if transportCloser, ok := c.transport.(closer); ok {
		transportCloser.Close()
	}
}
