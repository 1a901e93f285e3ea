package orchestrator

import (
	"net/http"
	"time"

	"github.com/CharellKing/ela-work/pkg/es"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// entry is a queued bulkable work with its result type erased.
type entry interface {
	kind() es.WorkKind
	index() string
	request() *es.BulkRequestItem
	resolve(ec *es.ExecutionContext, item *es.BulkResponseItem) error
	fail(err error)
}

type bulkEntry[R any] struct {
	work   es.BulkableWork[R]
	future *es.Future[R]
	item   *es.BulkRequestItem
}

func (e *bulkEntry[R]) kind() es.WorkKind {
	return e.work.Kind()
}

func (e *bulkEntry[R]) index() string {
	return e.work.Index()
}

func (e *bulkEntry[R]) request() *es.BulkRequestItem {
	return e.item
}

// resolve judges the item with the work's own assessor and completes the
// future. The returned error is what the future failed with.
func (e *bulkEntry[R]) resolve(ec *es.ExecutionContext, item *es.BulkResponseItem) error {
	if err := e.work.Assessor().Check(e.work.Kind(), item.Status, http.StatusText(item.Status), item.Body); err != nil {
		e.future.Fail(err)
		return err
	}
	result, err := e.work.ExtractBulkResult(ec, item.Body)
	if err != nil {
		e.future.Fail(err)
		return err
	}
	e.future.Complete(result)
	return nil
}

func (e *bulkEntry[R]) fail(err error) {
	e.future.Fail(err)
}

// batch is OPEN while it is the orchestrator's current batch and FLUSHING
// once swapped out. Entries are only appended under the orchestrator lock and
// never touched again after the swap.
type batch struct {
	id        string
	entries   []entry
	size      int
	assessors map[es.WorkKind]*es.SuccessAssessor
	createdAt time.Time
	flushedAt time.Time
	timer     *time.Timer
}

func newBatch() *batch {
	return &batch{
		id:        uuid.New().String(),
		assessors: make(map[es.WorkKind]*es.SuccessAssessor),
		createdAt: time.Now(),
	}
}

// admit checks that works of one kind in this batch judge statuses alike.
func (b *batch) admit(kind es.WorkKind, assessor *es.SuccessAssessor) error {
	current, ok := b.assessors[kind]
	if !ok {
		return nil
	}
	if !current.IsCompatibleWith(assessor) {
		return es.NewIncompatibleAssessorsError(kind, current, assessor)
	}
	return nil
}

func (b *batch) append(e entry, assessor *es.SuccessAssessor) {
	if _, ok := b.assessors[e.kind()]; !ok {
		b.assessors[e.kind()] = assessor
	}
	b.entries = append(b.entries, e)
	b.size += e.request().Size()
}

func (b *batch) len() int {
	return len(b.entries)
}

func (b *batch) requestItems() []*es.BulkRequestItem {
	return lo.Map(b.entries, func(e entry, _ int) *es.BulkRequestItem {
		return e.request()
	})
}

func (b *batch) failAll(err error) {
	for _, e := range b.entries {
		e.fail(err)
	}
}

func (b *batch) kinds() []es.WorkKind {
	return lo.Uniq(lo.Map(b.entries, func(e entry, _ int) es.WorkKind {
		return e.kind()
	}))
}

// BatchInfo describes a batch whose bulk request has not answered yet.
type BatchInfo struct {
	ID        string        `json:"id"`
	Items     int           `json:"items"`
	Size      int           `json:"size"`
	Kinds     []es.WorkKind `json:"kinds"`
	CreatedAt time.Time     `json:"created_at"`
	FlushedAt time.Time     `json:"flushed_at"`
}

func (b *batch) info() BatchInfo {
	return BatchInfo{
		ID:        b.id,
		Items:     b.len(),
		Size:      b.size,
		Kinds:     b.kinds(),
		CreatedAt: b.createdAt,
		FlushedAt: b.flushedAt,
	}
}
