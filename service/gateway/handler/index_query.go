package handler

import (
	"context"

	"github.com/CharellKing/ela-work/pkg/es"
	"github.com/CharellKing/ela-work/service/orchestrator"
)

type IndexExists struct {
	orchestrator *orchestrator.Orchestrator
	work         *es.IndexExistsWork
}

func newIndexExists(o *orchestrator.Orchestrator, event *ChangeEvent) (ActionHandler, error) {
	return &IndexExists{
		orchestrator: o,
		work:         es.NewIndexExistsWork(event.Index),
	}, nil
}

func (handler *IndexExists) Submit(ctx context.Context) Pending {
	return await(orchestrator.Submit[bool](ctx, handler.orchestrator, handler.work))
}

type DocumentCount struct {
	orchestrator *orchestrator.Orchestrator
	work         *es.CountDocumentsWork
}

func newDocumentCount(o *orchestrator.Orchestrator, event *ChangeEvent) (ActionHandler, error) {
	work := es.NewCountDocumentsWork(event.Index)
	if len(event.Query) > 0 {
		work = work.WithQuery(event.Query)
	}
	return &DocumentCount{orchestrator: o, work: work}, nil
}

func (handler *DocumentCount) Submit(ctx context.Context) Pending {
	return await(orchestrator.Submit[int64](ctx, handler.orchestrator, handler.work))
}

func init() {
	registerHandler(es.WorkKindIndexExists, newIndexExists)
	registerHandler(es.WorkKindCountDocuments, newDocumentCount)
}
