package handler

import (
	"context"

	"github.com/CharellKing/ela-work/pkg/es"
	"github.com/CharellKing/ela-work/service/orchestrator"
)

type IndexCreate struct {
	orchestrator *orchestrator.Orchestrator
	work         *es.CreateIndexWork
}

func newIndexCreate(o *orchestrator.Orchestrator, event *ChangeEvent) (ActionHandler, error) {
	return &IndexCreate{
		orchestrator: o,
		work:         es.NewCreateIndexWork(event.Index, event.Definition),
	}, nil
}

func init() {
	registerHandler(es.WorkKindCreateIndex, newIndexCreate)
}

func (handler *IndexCreate) Submit(ctx context.Context) Pending {
	return awaitVoid(orchestrator.Submit[es.Void](ctx, handler.orchestrator, handler.work))
}
