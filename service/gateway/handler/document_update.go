package handler

import (
	"context"

	"github.com/CharellKing/ela-work/pkg/es"
	"github.com/CharellKing/ela-work/service/orchestrator"
	"github.com/CharellKing/ela-work/utils"
)

type DocumentUpdate struct {
	orchestrator *orchestrator.Orchestrator
	work         *es.UpdateDocumentWork
}

func newDocumentUpdate(o *orchestrator.Orchestrator, event *ChangeEvent) (ActionHandler, error) {
	refresh, err := refreshOf(event)
	if err != nil {
		return nil, err
	}
	if event.Doc == nil {
		return nil, utils.NewCustomError(utils.InvalidRequest, "%s: doc is required", event.Op)
	}
	work := es.NewUpdateDocumentWork(event.Index, event.ID, event.Doc).
		WithRouting(event.Routing).
		WithRefresh(refresh).
		WithDocAsUpsert(event.DocAsUpsert)
	return &DocumentUpdate{orchestrator: o, work: work}, nil
}

func init() {
	registerHandler(es.WorkKindUpdateDocument, newDocumentUpdate)
}

func (handler *DocumentUpdate) Submit(ctx context.Context) Pending {
	return awaitVoid(orchestrator.Submit[es.Void](ctx, handler.orchestrator, handler.work))
}
