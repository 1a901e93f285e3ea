package handler

import (
	"context"

	"github.com/CharellKing/ela-work/pkg/es"
	"github.com/CharellKing/ela-work/service/orchestrator"
	"github.com/CharellKing/ela-work/utils"
	"github.com/samber/lo"
)

// ChangeEvent is one mutation or lookup received by the gateway. Op is the
// work kind it turns into.
type ChangeEvent struct {
	Op          string                 `json:"op"`
	Index       string                 `json:"index"`
	ID          string                 `json:"id,omitempty"`
	Routing     string                 `json:"routing,omitempty"`
	Refresh     string                 `json:"refresh,omitempty"`
	DocAsUpsert bool                   `json:"doc_as_upsert,omitempty"`
	Doc         map[string]interface{} `json:"doc,omitempty"`
	Query       map[string]interface{} `json:"query,omitempty"`
	Definition  *es.IndexDefinition    `json:"definition,omitempty"`
}

// Pending waits for the result of a submitted event.
type Pending func(ctx context.Context) (interface{}, error)

type ActionHandler interface {
	Submit(ctx context.Context) Pending
}

type newActionHandler func(o *orchestrator.Orchestrator, event *ChangeEvent) (ActionHandler, error)

var actionHandlerMap map[es.WorkKind]newActionHandler

func registerHandler(kind es.WorkKind, handler newActionHandler) {
	if actionHandlerMap == nil {
		actionHandlerMap = make(map[es.WorkKind]newActionHandler)
	}

	actionHandlerMap[kind] = handler
}

// GetHandler returns the handler for event.Op, or a coded error when the op
// is unknown or the event cannot be turned into a work.
func GetHandler(o *orchestrator.Orchestrator, event *ChangeEvent) (ActionHandler, error) {
	handler, ok := actionHandlerMap[es.WorkKind(event.Op)]
	if !ok {
		return nil, utils.NewCustomError(utils.UnknownOperation, "unknown op %q", event.Op)
	}
	return handler(o, event)
}

// Ops lists the registered operations.
func Ops() []string {
	return lo.Map(lo.Keys(actionHandlerMap), func(kind es.WorkKind, _ int) string {
		return string(kind)
	})
}

func refreshOf(event *ChangeEvent) (es.RefreshPolicy, error) {
	refresh, err := es.ParseRefreshPolicy(event.Refresh)
	if err != nil {
		return es.RefreshNone, utils.NewCustomError(utils.InvalidRequest, "%s: %v", event.Op, err)
	}
	return refresh, nil
}

func await[R any](future *es.Future[R]) Pending {
	return func(ctx context.Context) (interface{}, error) {
		result, err := future.Get(ctx)
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

// acknowledged is what works without a value report back.
type acknowledged struct {
	Acknowledged bool `json:"acknowledged"`
}

func awaitVoid(future *es.Future[es.Void]) Pending {
	return func(ctx context.Context) (interface{}, error) {
		if _, err := future.Get(ctx); err != nil {
			return nil, err
		}
		return acknowledged{Acknowledged: true}, nil
	}
}
