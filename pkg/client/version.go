package client

import (
	"context"

	"github.com/CharellKing/ela-work/pkg/es"
	"github.com/pkg/errors"
)

// DetectVersion asks the cluster for its root info over transport.
func DetectVersion(ctx context.Context, transport Transport) (es.ClusterInfo, error) {
	ec := es.NewExecutionContext()
	work := es.NewClusterInfoWork()

	req, err := work.BuildRequest(ec)
	if err != nil {
		return es.ClusterInfo{}, err
	}
	resp, err := transport.Perform(ctx, req)
	if err != nil {
		return es.ClusterInfo{}, es.NewTransportError(err)
	}
	if err := work.Assessor().Check(work.Kind(), resp.StatusCode(), resp.StatusMessage(), resp.Body()); err != nil {
		return es.ClusterInfo{}, err
	}

	info, err := work.ExtractResult(ec, resp)
	if err != nil {
		return es.ClusterInfo{}, err
	}
	if _, err := info.ParsedVersion(); err != nil {
		return es.ClusterInfo{}, errors.Wrapf(err, "cluster at %s", resp.Host())
	}
	return info, nil
}
