package handler

import (
	"context"

	"github.com/CharellKing/ela-work/pkg/es"
	"github.com/CharellKing/ela-work/service/orchestrator"
)

type DocumentDelete struct {
	orchestrator *orchestrator.Orchestrator
	work         *es.DeleteDocumentWork
}

func newDocumentDelete(o *orchestrator.Orchestrator, event *ChangeEvent) (ActionHandler, error) {
	refresh, err := refreshOf(event)
	if err != nil {
		return nil, err
	}
	return &DocumentDelete{
		orchestrator: o,
		work:         es.NewDeleteDocumentWork(event.Index, event.ID).WithRouting(event.Routing).WithRefresh(refresh),
	}, nil
}

func init() {
	registerHandler(es.WorkKindDeleteDocument, newDocumentDelete)
}

func (handler *DocumentDelete) Submit(ctx context.Context) Pending {
	return awaitVoid(orchestrator.Submit[es.Void](ctx, handler.orchestrator, handler.work))
}
