package handler

import (
	"context"

	"github.com/CharellKing/ela-work/pkg/es"
	"github.com/CharellKing/ela-work/service/orchestrator"
)

type IndexRefresh struct {
	orchestrator *orchestrator.Orchestrator
	work         *es.RefreshIndexWork
}

func newIndexRefresh(o *orchestrator.Orchestrator, event *ChangeEvent) (ActionHandler, error) {
	return &IndexRefresh{
		orchestrator: o,
		work:         es.NewRefreshIndexWork(event.Index),
	}, nil
}

func (handler *IndexRefresh) Submit(ctx context.Context) Pending {
	return awaitVoid(orchestrator.Submit[es.Void](ctx, handler.orchestrator, handler.work))
}

// IndexPurge empties an index, or one routing key of it.
type IndexPurge struct {
	orchestrator *orchestrator.Orchestrator
	work         *es.PurgeIndexWork
}

func newIndexPurge(o *orchestrator.Orchestrator, event *ChangeEvent) (ActionHandler, error) {
	refresh, err := refreshOf(event)
	if err != nil {
		return nil, err
	}
	return &IndexPurge{
		orchestrator: o,
		work:         es.NewPurgeIndexWork(event.Index).WithRouting(event.Routing).WithRefresh(refresh),
	}, nil
}

func (handler *IndexPurge) Submit(ctx context.Context) Pending {
	return awaitVoid(orchestrator.Submit[es.Void](ctx, handler.orchestrator, handler.work))
}

func init() {
	registerHandler(es.WorkKindRefreshIndex, newIndexRefresh)
	registerHandler(es.WorkKindPurgeIndex, newIndexPurge)
}
