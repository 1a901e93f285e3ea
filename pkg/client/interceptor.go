package client

import (
	"net/url"

	"github.com/CharellKing/ela-work/pkg/es"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// RequestMeta is what an interceptor may look at besides the request. It is
// a copy; changing it has no effect.
type RequestMeta struct {
	Scheme         string
	Host           string
	ClusterVersion string
}

// Interceptor runs synchronously before a request is dispatched. It returns
// the request to send, which may be req itself or a rewritten copy built
// with req.ToBuilder(). An error fails the request without sending it.
type Interceptor func(req *es.Request, meta RequestMeta) (*es.Request, error)

// ParamInterceptor adds a query parameter to every request that does not
// already carry it, e.g. a default ingest pipeline.
func ParamInterceptor(name, value string) Interceptor {
	return func(req *es.Request, _ RequestMeta) (*es.Request, error) {
		if _, ok := req.Param(name); ok {
			return req, nil
		}
		return req.ToBuilder().Param(name, value).Build(), nil
	}
}

func newRequestMeta(addresses []string, clusterVersion string) RequestMeta {
	meta := RequestMeta{ClusterVersion: clusterVersion}
	address, ok := lo.First(addresses)
	if !ok {
		return meta
	}
	if u, err := url.Parse(address); err == nil {
		meta.Scheme = u.Scheme
		meta.Host = u.Host
	}
	return meta
}

func intercept(req *es.Request, meta RequestMeta, interceptors []Interceptor) (*es.Request, error) {
	for _, interceptor := range interceptors {
		newReq, err := interceptor(req, meta)
		if err != nil {
			return nil, errors.Wrapf(err, "intercept %s", req)
		}
		if newReq != nil {
			req = newReq
		}
	}
	return req, nil
}
