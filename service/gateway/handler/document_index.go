package handler

import (
	"context"

	"github.com/CharellKing/ela-work/pkg/es"
	"github.com/CharellKing/ela-work/service/orchestrator"
	"github.com/CharellKing/ela-work/utils"
)

type DocumentIndex struct {
	orchestrator *orchestrator.Orchestrator
	work         *es.IndexDocumentWork
}

func newDocumentIndex(o *orchestrator.Orchestrator, event *ChangeEvent) (ActionHandler, error) {
	refresh, err := refreshOf(event)
	if err != nil {
		return nil, err
	}
	if event.Doc == nil {
		return nil, utils.NewCustomError(utils.InvalidRequest, "%s: doc is required", event.Op)
	}
	return &DocumentIndex{
		orchestrator: o,
		work:         es.NewIndexDocumentWork(event.Index, event.ID, event.Doc).WithRouting(event.Routing).WithRefresh(refresh),
	}, nil
}

func init() {
	registerHandler(es.WorkKindIndexDocument, newDocumentIndex)
}

func (handler *DocumentIndex) Submit(ctx context.Context) Pending {
	return awaitVoid(orchestrator.Submit[es.Void](ctx, handler.orchestrator, handler.work))
}
