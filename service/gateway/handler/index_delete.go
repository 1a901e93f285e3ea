package handler

import (
	"context"

	"github.com/CharellKing/ela-work/pkg/es"
	"github.com/CharellKing/ela-work/service/orchestrator"
)

type IndexDelete struct {
	orchestrator *orchestrator.Orchestrator
	work         *es.DeleteIndexWork
}

func newIndexDelete(o *orchestrator.Orchestrator, event *ChangeEvent) (ActionHandler, error) {
	return &IndexDelete{
		orchestrator: o,
		work:         es.NewDeleteIndexWork(event.Index),
	}, nil
}

func init() {
	registerHandler(es.WorkKindDeleteIndex, newIndexDelete)
}

func (handler *IndexDelete) Submit(ctx context.Context) Pending {
	return awaitVoid(orchestrator.Submit[es.Void](ctx, handler.orchestrator, handler.work))
}
