package orchestrator

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CharellKing/ela-work/config"
	"github.com/CharellKing/ela-work/pkg/client"
	"github.com/CharellKing/ela-work/pkg/es"
	"github.com/CharellKing/ela-work/utils"
	"github.com/bytedance/gopkg/collection/skipmap"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var ErrOrchestratorClosed = errors.New("orchestrator is closed")

// Orchestrator queues bulkable works into one open batch and turns each
// flushed batch into a single _bulk request. Other works are sent on their
// own right away.
type Orchestrator struct {
	ctx      context.Context
	executor client.Executor
	ec       *es.ExecutionContext

	flushThresholdCount int
	flushThresholdSize  int
	flushInterval       time.Duration

	mu      sync.Mutex
	current *batch
	closed  bool

	inFlight *skipmap.StringMap
	pending  sync.WaitGroup

	works          *utils.Progress
	succeeded      atomic.Uint64
	failed         atomic.Uint64
	flushedBatches atomic.Uint64
}

// NewExecutionContext derives the context works are built with from the
// orchestrator settings and the cluster version.
func NewExecutionContext(cfg *config.OrchestratorCfg, clusterVersion string) (*es.ExecutionContext, error) {
	ec := es.NewExecutionContext()
	if lo.IsNotEmpty(clusterVersion) {
		var err error
		if ec, err = ec.WithClusterVersion(clusterVersion); err != nil {
			return nil, err
		}
	}

	refresh, err := es.ParseRefreshPolicy(cfg.Refresh)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	ec = ec.WithRefresh(refresh)
	if lo.IsNotEmpty(cfg.DocType) {
		ec.DocType = cfg.DocType
	}
	return ec, nil
}

func NewOrchestrator(ctx context.Context, executor client.Executor, cfg *config.OrchestratorCfg, ec *es.ExecutionContext) *Orchestrator {
	return &Orchestrator{
		ctx:                 ctx,
		executor:            executor,
		ec:                  ec,
		flushThresholdCount: int(cfg.FlushThresholdCount),
		flushThresholdSize:  int(cfg.FlushThresholdSize),
		flushInterval:       cfg.FlushInterval,
		current:             newBatch(),
		inFlight:            skipmap.NewString(),
		works:               utils.NewProgress("works"),
	}
}

func (o *Orchestrator) ExecutionContext() *es.ExecutionContext {
	return o.ec
}

// Submit hands work to the orchestrator and returns its pending result. It
// never waits for I/O on the bulk path.
func Submit[R any](ctx context.Context, o *Orchestrator, work es.Work[R]) *es.Future[R] {
	ctx = utils.SetCtxKeyIndex(utils.SetCtxKeyWorkKind(ctx, string(work.Kind())), work.Index())
	if bulkable, ok := work.(es.BulkableWork[R]); ok {
		return submitBulk(ctx, o, bulkable)
	}
	return submitSingle(ctx, o, work)
}

func submitSingle[R any](ctx context.Context, o *Orchestrator, work es.Work[R]) *es.Future[R] {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return es.FailedFuture[R](ErrOrchestratorClosed)
	}
	o.pending.Add(1)
	o.mu.Unlock()

	o.works.Add(1)
	req, err := work.BuildRequest(o.ec)
	if err != nil {
		o.finish(err)
		o.pending.Done()
		return es.FailedFuture[R](err)
	}

	future := es.NewFuture[R]()
	o.executor.Execute(ctx, req).OnComplete(func(resp *es.Response, err error) {
		defer o.pending.Done()
		if err != nil {
			future.Fail(err)
			o.finish(err)
			return
		}
		if err := work.Assessor().Check(work.Kind(), resp.StatusCode(), resp.StatusMessage(), resp.Body()); err != nil {
			utils.GetLogger(ctx).Debugf("%s answered %d: %v", req, resp.StatusCode(), err)
			future.Fail(err)
			o.finish(err)
			return
		}
		result, err := work.ExtractResult(o.ec, resp)
		if err != nil {
			future.Fail(err)
			o.finish(err)
			return
		}
		future.Complete(result)
		o.finish(nil)
	})
	return future
}

func submitBulk[R any](ctx context.Context, o *Orchestrator, work es.BulkableWork[R]) *es.Future[R] {
	item, err := es.NewBulkRequestItem[R](o.ec, work)
	if err != nil {
		return es.FailedFuture[R](err)
	}
	future := es.NewFuture[R]()
	e := &bulkEntry[R]{work: work, future: future, item: item}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return es.FailedFuture[R](ErrOrchestratorClosed)
	}
	if err := o.current.admit(work.Kind(), work.Assessor()); err != nil {
		o.mu.Unlock()
		utils.GetLogger(ctx).Warnf("reject work: %v", err)
		return es.FailedFuture[R](err)
	}
	o.current.append(e, work.Assessor())
	o.works.Add(1)
	if o.current.len() == 1 {
		o.armTimerLocked(o.current)
	}
	var full *batch
	if o.thresholdReachedLocked() {
		full = o.swapLocked()
	}
	o.mu.Unlock()

	// the batch outlives the submitter that happened to fill it
	if full != nil {
		_ = o.dispatch(o.ctx, full)
	}
	return future
}

func (o *Orchestrator) thresholdReachedLocked() bool {
	if o.flushThresholdCount > 0 && o.current.len() >= o.flushThresholdCount {
		return true
	}
	return o.flushThresholdSize > 0 && o.current.size >= o.flushThresholdSize
}

func (o *Orchestrator) armTimerLocked(b *batch) {
	if o.flushInterval <= 0 {
		return
	}
	b.timer = time.AfterFunc(o.flushInterval, func() {
		o.mu.Lock()
		if o.current != b {
			o.mu.Unlock()
			return
		}
		swapped := o.swapLocked()
		o.mu.Unlock()

		if swapped != nil {
			_ = o.dispatch(o.ctx, swapped)
		}
	})
}

// swapLocked detaches the open batch and installs an empty one. It returns
// nil when there was nothing to flush.
func (o *Orchestrator) swapLocked() *batch {
	b := o.current
	o.current = newBatch()
	if b.timer != nil {
		b.timer.Stop()
	}
	if b.len() == 0 {
		return nil
	}
	b.flushedAt = time.Now()
	o.inFlight.Store(b.id, b)
	o.pending.Add(1)
	return b
}

// Flush sends the open batch, if any, and returns once the bulk request is
// dispatched. Outcomes arrive through the futures.
func (o *Orchestrator) Flush(ctx context.Context) error {
	o.mu.Lock()
	swapped := o.swapLocked()
	o.mu.Unlock()

	if swapped == nil {
		return nil
	}
	return o.dispatch(ctx, swapped)
}

func (o *Orchestrator) dispatch(ctx context.Context, b *batch) error {
	ctx = utils.SetCtxKeyBatchID(ctx, b.id)
	o.flushedBatches.Add(1)

	if err := ctx.Err(); err != nil {
		transportErr := es.NewTransportError(err)
		o.complete(ctx, b, nil, transportErr)
		return transportErr
	}

	req := es.BuildBulkRequest(b.requestItems())
	utils.GetLogger(ctx).Debugf("flush batch with %d items, %d bytes, kinds %v", b.len(), b.size, b.kinds())
	o.executor.Execute(ctx, req).OnComplete(func(resp *es.Response, err error) {
		o.complete(ctx, b, resp, err)
	})
	return nil
}

// complete runs on whichever goroutine finished the bulk request and only
// does CPU work.
func (o *Orchestrator) complete(ctx context.Context, b *batch, resp *es.Response, err error) {
	defer o.pending.Done()
	defer o.inFlight.Delete(b.id)

	if err != nil {
		utils.GetLogger(ctx).Errorf("bulk request of %d items failed: %v", b.len(), err)
		o.failAll(b, es.NewTransportError(err))
		return
	}

	if err := es.DefaultSuccessAssessor.Check(es.WorkKindBulk, resp.StatusCode(), resp.StatusMessage(), resp.Body()); err != nil {
		utils.GetLogger(ctx).Errorf("bulk request of %d items answered %d: %v", b.len(), resp.StatusCode(), err)
		o.failAll(b, err)
		return
	}

	items, err := es.ParseBulkResponse(resp.Body(), b.len())
	if err != nil {
		utils.GetLogger(ctx).Errorf("bulk response from %s: %v", resp.Host(), err)
		o.failAll(b, err)
		return
	}

	var failures int
	for i, e := range b.entries {
		itemErr := e.resolve(o.ec, items[i])
		if itemErr != nil {
			failures++
		}
		o.finish(itemErr)
	}
	if failures > 0 {
		utils.GetLogger(ctx).Warnf("%d of %d bulk items failed", failures, b.len())
	}
}

func (o *Orchestrator) failAll(b *batch, err error) {
	b.failAll(err)
	for range b.entries {
		o.finish(err)
	}
}

func (o *Orchestrator) finish(err error) {
	o.works.Increment(1)
	if err != nil {
		o.failed.Add(1)
		return
	}
	o.succeeded.Add(1)
}

// Close stops accepting works, flushes the open batch and waits until every
// dispatched request has been answered or ctx ends.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	swapped := o.swapLocked()
	o.mu.Unlock()

	if swapped != nil {
		_ = o.dispatch(ctx, swapped)
	}

	done := make(chan struct{})
	go func() {
		o.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "close with %d batches in flight", o.inFlight.Len())
	}
}

type Stats struct {
	Submitted      uint64 `json:"submitted"`
	Pending        uint64 `json:"pending"`
	Succeeded      uint64 `json:"succeeded"`
	Failed         uint64 `json:"failed"`
	FlushedBatches uint64 `json:"flushed_batches"`
	OpenItems      int    `json:"open_items"`
}

func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	openItems := o.current.len()
	o.mu.Unlock()

	return Stats{
		Submitted:      o.works.Total.Load(),
		Pending:        o.works.Pending(),
		Succeeded:      o.succeeded.Load(),
		Failed:         o.failed.Load(),
		FlushedBatches: o.flushedBatches.Load(),
		OpenItems:      openItems,
	}
}

// InFlight lists flushed batches still waiting for their response, oldest
// first.
func (o *Orchestrator) InFlight() []BatchInfo {
	var infos []BatchInfo
	o.inFlight.Range(func(_ string, value interface{}) bool {
		infos = append(infos, value.(*batch).info())
		return true
	})
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].FlushedAt.Before(infos[j].FlushedAt)
	})
	return infos
}
