package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CharellKing/ela-work/config"
	"github.com/CharellKing/ela-work/pkg/es"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	mu       sync.Mutex
	requests []*es.Request
	hold     chan struct{}
	respond  func(req *es.Request) (*es.Response, error)
}

func (f *fakeExecutor) Execute(_ context.Context, req *es.Request) *es.Future[*es.Response] {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	future := es.NewFuture[*es.Response]()
	go func() {
		if f.hold != nil {
			<-f.hold
		}
		resp, err := f.respond(req)
		if err != nil {
			future.Fail(es.NewTransportError(err))
			return
		}
		future.Complete(resp)
	}()
	return future
}

func (f *fakeExecutor) recorded() []*es.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*es.Request(nil), f.requests...)
}

func bulkResponse(items ...string) *es.Response {
	body := fmt.Sprintf(`{"took":1,"errors":false,"items":[%s]}`, strings.Join(items, ","))
	return es.NewResponse("es:9200", http.StatusOK, "", []byte(body))
}

func respondWith(resp *es.Response) func(*es.Request) (*es.Response, error) {
	return func(*es.Request) (*es.Response, error) {
		return resp, nil
	}
}

func testCfg() *config.OrchestratorCfg {
	return &config.OrchestratorCfg{
		FlushThresholdCount: 1000,
		FlushThresholdSize:  10 * 1024 * 1024,
	}
}

func newTestOrchestrator(t *testing.T, executor *fakeExecutor, cfg *config.OrchestratorCfg) *Orchestrator {
	t.Helper()
	ec, err := NewExecutionContext(cfg, "8.14.0")
	require.NoError(t, err)
	o := NewOrchestrator(context.Background(), executor, cfg, ec)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = o.Close(ctx)
	})
	return o
}

func waitFor[R any](t *testing.T, f *es.Future[R]) (R, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	value, err := f.Get(ctx)
	require.False(t, errors.Is(err, context.DeadlineExceeded), "future left pending")
	return value, err
}

func doc(n int) map[string]interface{} {
	return map[string]interface{}{"n": n}
}

func TestPositionalCorrelation(t *testing.T) {
	executor := &fakeExecutor{respond: respondWith(bulkResponse(
		`{"index":{"_index":"logs","_id":"1","status":201,"result":"created"}}`,
		`{"delete":{"_index":"logs","_id":"2","status":404,"result":"not_found"}}`,
		`{"index":{"_index":"logs","_id":"3","status":409,"error":{"type":"version_conflict_engine_exception","reason":"[3]: version conflict"}}}`,
		`{"update":{"_index":"logs","_id":"4","status":200,"result":"updated"}}`,
	))}
	o := newTestOrchestrator(t, executor, testCfg())
	ctx := context.Background()

	first := Submit[es.Void](ctx, o, es.NewIndexDocumentWork("logs", "1", doc(1)))
	second := Submit[es.Void](ctx, o, es.NewDeleteDocumentWork("logs", "2"))
	third := Submit[es.Void](ctx, o, es.NewIndexDocumentWork("logs", "3", doc(3)))
	fourth := Submit[es.Void](ctx, o, es.NewUpdateDocumentWork("logs", "4", doc(4)))
	require.NoError(t, o.Flush(ctx))

	_, err := waitFor(t, first)
	assert.NoError(t, err)
	_, err = waitFor(t, second)
	assert.NoError(t, err)
	_, err = waitFor(t, fourth)
	assert.NoError(t, err)

	_, err = waitFor(t, third)
	var workErr *es.WorkError
	require.True(t, errors.As(err, &workErr))
	assert.Equal(t, es.WorkKindIndexDocument, workErr.Kind)
	assert.Equal(t, http.StatusConflict, workErr.StatusCode)
	assert.Equal(t, "version_conflict_engine_exception: [3]: version conflict", workErr.Reason())

	recorded := executor.recorded()
	require.Len(t, recorded, 1)
	assert.Equal(t, "POST /_bulk", recorded[0].String())
	lines := strings.Split(strings.TrimSuffix(string(recorded[0].Body()), "\n"), "\n")
	assert.Equal(t, []string{
		`{"index":{"_id":"1","_index":"logs"}}`, `{"n":1}`,
		`{"delete":{"_id":"2","_index":"logs"}}`,
		`{"index":{"_id":"3","_index":"logs"}}`, `{"n":3}`,
		`{"update":{"_id":"4","_index":"logs"}}`, `{"doc":{"n":4}}`,
	}, lines)

	require.NoError(t, o.Close(ctx))
	stats := o.Stats()
	assert.EqualValues(t, 4, stats.Submitted)
	assert.EqualValues(t, 3, stats.Succeeded)
	assert.EqualValues(t, 1, stats.Failed)
	assert.EqualValues(t, 1, stats.FlushedBatches)
}

func TestBulkItemMismatchFailsWholeBatch(t *testing.T) {
	executor := &fakeExecutor{respond: respondWith(bulkResponse(
		`{"index":{"_id":"1","status":201}}`,
		`{"index":{"_id":"2","status":201}}`,
	))}
	o := newTestOrchestrator(t, executor, testCfg())
	ctx := context.Background()

	futures := make([]*es.Future[es.Void], 0, 3)
	for i := 0; i < 3; i++ {
		futures = append(futures, Submit[es.Void](ctx, o, es.NewIndexDocumentWork("logs", fmt.Sprint(i), doc(i))))
	}
	require.NoError(t, o.Flush(ctx))

	for _, future := range futures {
		_, err := waitFor(t, future)
		var protocolErr *es.ProtocolError
		require.True(t, errors.As(err, &protocolErr))
		assert.Equal(t, 3, protocolErr.Expected)
		assert.Equal(t, 2, protocolErr.Actual)
	}
}

func TestMalformedItemFailsWholeBatch(t *testing.T) {
	executor := &fakeExecutor{respond: respondWith(bulkResponse(
		`{"index":{"_id":"1","status":201}}`,
		`{"index":{"_id":"2"}}`,
	))}
	o := newTestOrchestrator(t, executor, testCfg())
	ctx := context.Background()

	first := Submit[es.Void](ctx, o, es.NewIndexDocumentWork("logs", "1", doc(1)))
	second := Submit[es.Void](ctx, o, es.NewIndexDocumentWork("logs", "2", doc(2)))
	require.NoError(t, o.Flush(ctx))

	for _, future := range []*es.Future[es.Void]{first, second} {
		_, err := waitFor(t, future)
		var protocolErr *es.ProtocolError
		assert.True(t, errors.As(err, &protocolErr))
	}
}

func TestTransportFailureFanOut(t *testing.T) {
	networkErr := errors.New("dial tcp 10.0.0.1:9200: connection refused")
	executor := &fakeExecutor{respond: func(*es.Request) (*es.Response, error) {
		return nil, networkErr
	}}
	o := newTestOrchestrator(t, executor, testCfg())
	ctx := context.Background()

	futures := make([]*es.Future[es.Void], 0, 5)
	for i := 0; i < 5; i++ {
		futures = append(futures, Submit[es.Void](ctx, o, es.NewDeleteDocumentWork("logs", fmt.Sprint(i))))
	}
	require.NoError(t, o.Flush(ctx))

	for _, future := range futures {
		_, err := waitFor(t, future)
		var transportErr *es.TransportError
		require.True(t, errors.As(err, &transportErr))
		assert.ErrorIs(t, err, networkErr)
	}
	require.NoError(t, o.Close(ctx))
	assert.EqualValues(t, 5, o.Stats().Failed)
}

func TestBulkStatusFailureFailsWholeBatch(t *testing.T) {
	executor := &fakeExecutor{respond: respondWith(es.NewResponse("es:9200", http.StatusTooManyRequests, "",
		[]byte(`{"error":{"type":"es_rejected_execution_exception","reason":"queue full"},"status":429}`)))}
	o := newTestOrchestrator(t, executor, testCfg())
	ctx := context.Background()

	first := Submit[es.Void](ctx, o, es.NewIndexDocumentWork("logs", "1", doc(1)))
	second := Submit[es.Void](ctx, o, es.NewDeleteDocumentWork("logs", "2"))
	require.NoError(t, o.Flush(ctx))

	for _, future := range []*es.Future[es.Void]{first, second} {
		_, err := waitFor(t, future)
		var workErr *es.WorkError
		require.True(t, errors.As(err, &workErr))
		assert.Equal(t, es.WorkKindBulk, workErr.Kind)
		assert.Equal(t, http.StatusTooManyRequests, workErr.StatusCode)
	}
}

func TestNonBulkableBypassesOpenBatch(t *testing.T) {
	executor := &fakeExecutor{respond: func(req *es.Request) (*es.Response, error) {
		if req.Method() == http.MethodHead {
			return es.NewResponse("es:9200", http.StatusNotFound, "", nil), nil
		}
		return bulkResponse(`{"index":{"_id":"1","status":201}}`), nil
	}}
	o := newTestOrchestrator(t, executor, testCfg())
	ctx := context.Background()

	indexed := Submit[es.Void](ctx, o, es.NewIndexDocumentWork("logs", "1", doc(1)))
	exists, err := waitFor(t, Submit[bool](ctx, o, es.NewIndexExistsWork("missing")))
	require.NoError(t, err)
	assert.False(t, exists)

	assert.False(t, indexed.IsDone())
	assert.Equal(t, 1, o.Stats().OpenItems)
	recorded := executor.recorded()
	require.Len(t, recorded, 1)
	assert.Equal(t, "HEAD /missing", recorded[0].String())

	require.NoError(t, o.Flush(ctx))
	_, err = waitFor(t, indexed)
	assert.NoError(t, err)
}

func TestStandaloneWorkFailure(t *testing.T) {
	executor := &fakeExecutor{respond: respondWith(es.NewResponse("es:9200", http.StatusBadRequest, "",
		[]byte(`{"error":{"type":"resource_already_exists_exception","reason":"index [logs] already exists"},"status":400}`)))}
	o := newTestOrchestrator(t, executor, testCfg())

	_, err := waitFor(t, Submit[es.Void](context.Background(), o, es.NewCreateIndexWork("logs", nil)))
	var workErr *es.WorkError
	require.True(t, errors.As(err, &workErr))
	assert.Equal(t, es.WorkKindCreateIndex, workErr.Kind)
	assert.Equal(t, "resource_already_exists_exception: index [logs] already exists", workErr.Reason())

	_, err = waitFor(t, Submit[es.Void](context.Background(), o, es.NewDeleteIndexWork("")))
	assert.True(t, errors.Is(err, es.ErrInvalidWork))
}

func TestIncompatibleAssessorsRejectedAtSubmit(t *testing.T) {
	executor := &fakeExecutor{respond: respondWith(bulkResponse(
		`{"delete":{"_id":"1","status":404}}`,
		`{"index":{"_id":"2","status":201}}`,
	))}
	o := newTestOrchestrator(t, executor, testCfg())
	ctx := context.Background()

	lenient := Submit[es.Void](ctx, o, es.NewDeleteDocumentWork("logs", "1"))
	strict := Submit[es.Void](ctx, o, es.NewDeleteDocumentWork("logs", "2").WithAssessor(es.DefaultSuccessAssessor))
	otherKind := Submit[es.Void](ctx, o, es.NewIndexDocumentWork("logs", "2", doc(2)))

	require.True(t, strict.IsDone())
	_, err := strict.Get(ctx)
	var configErr *es.ConfigError
	require.True(t, errors.As(err, &configErr))
	assert.True(t, errors.Is(err, es.ErrIncompatibleAssessors))
	assert.Empty(t, executor.recorded())

	require.NoError(t, o.Flush(ctx))
	_, err = waitFor(t, lenient)
	assert.NoError(t, err)
	_, err = waitFor(t, otherKind)
	assert.NoError(t, err)

	// a fresh batch accepts the stricter assessor
	retried := Submit[es.Void](ctx, o, es.NewDeleteDocumentWork("logs", "2").WithAssessor(es.DefaultSuccessAssessor))
	assert.False(t, retried.IsDone())
}

func TestFlushOnCountThreshold(t *testing.T) {
	executor := &fakeExecutor{respond: respondWith(bulkResponse(
		`{"index":{"_id":"0","status":201}}`,
		`{"index":{"_id":"1","status":201}}`,
	))}
	cfg := testCfg()
	cfg.FlushThresholdCount = 2
	o := newTestOrchestrator(t, executor, cfg)
	ctx := context.Background()

	first := Submit[es.Void](ctx, o, es.NewIndexDocumentWork("logs", "0", doc(0)))
	assert.Empty(t, executor.recorded())
	second := Submit[es.Void](ctx, o, es.NewIndexDocumentWork("logs", "1", doc(1)))

	_, err := waitFor(t, first)
	assert.NoError(t, err)
	_, err = waitFor(t, second)
	assert.NoError(t, err)
	assert.Len(t, executor.recorded(), 1)
	assert.Equal(t, 0, o.Stats().OpenItems)
}

func TestFlushOnSizeThreshold(t *testing.T) {
	executor := &fakeExecutor{respond: respondWith(bulkResponse(`{"index":{"_id":"big","status":201}}`))}
	cfg := testCfg()
	cfg.FlushThresholdSize = 64
	o := newTestOrchestrator(t, executor, cfg)

	big := map[string]interface{}{"payload": strings.Repeat("x", 128)}
	_, err := waitFor(t, Submit[es.Void](context.Background(), o, es.NewIndexDocumentWork("logs", "big", big)))
	assert.NoError(t, err)
	assert.Len(t, executor.recorded(), 1)
}

func TestFlushOnTimer(t *testing.T) {
	executor := &fakeExecutor{respond: respondWith(bulkResponse(`{"delete":{"_id":"1","status":200}}`))}
	cfg := testCfg()
	cfg.FlushInterval = 20 * time.Millisecond
	o := newTestOrchestrator(t, executor, cfg)

	_, err := waitFor(t, Submit[es.Void](context.Background(), o, es.NewDeleteDocumentWork("logs", "1")))
	assert.NoError(t, err)
	assert.Len(t, executor.recorded(), 1)
}

func TestBulkCarriesStrongestRefresh(t *testing.T) {
	executor := &fakeExecutor{respond: respondWith(bulkResponse(
		`{"index":{"_id":"1","status":201}}`,
		`{"index":{"_id":"2","status":201}}`,
		`{"delete":{"_id":"3","status":200}}`,
	))}
	cfg := testCfg()
	cfg.Refresh = string(es.RefreshFalse)
	o := newTestOrchestrator(t, executor, cfg)
	ctx := context.Background()

	Submit[es.Void](ctx, o, es.NewIndexDocumentWork("logs", "1", doc(1)))
	Submit[es.Void](ctx, o, es.NewIndexDocumentWork("logs", "2", doc(2)).WithRefresh(es.RefreshWaitFor))
	last := Submit[es.Void](ctx, o, es.NewDeleteDocumentWork("logs", "3"))
	require.NoError(t, o.Flush(ctx))
	_, err := waitFor(t, last)
	require.NoError(t, err)

	refresh, ok := executor.recorded()[0].Param("refresh")
	require.True(t, ok)
	assert.Equal(t, "wait_for", refresh)
}

func TestCloseFlushesAndRejects(t *testing.T) {
	executor := &fakeExecutor{respond: respondWith(bulkResponse(`{"index":{"_id":"1","status":201}}`))}
	o := newTestOrchestrator(t, executor, testCfg())
	ctx := context.Background()

	pending := Submit[es.Void](ctx, o, es.NewIndexDocumentWork("logs", "1", doc(1)))
	require.NoError(t, o.Close(ctx))
	assert.True(t, pending.IsDone())

	_, err := Submit[es.Void](ctx, o, es.NewIndexDocumentWork("logs", "2", doc(2))).Get(ctx)
	assert.ErrorIs(t, err, ErrOrchestratorClosed)
	_, err = Submit[bool](ctx, o, es.NewIndexExistsWork("logs")).Get(ctx)
	assert.ErrorIs(t, err, ErrOrchestratorClosed)
	assert.NoError(t, o.Close(ctx))
}

func TestInFlightBatches(t *testing.T) {
	executor := &fakeExecutor{
		hold:    make(chan struct{}),
		respond: respondWith(bulkResponse(`{"index":{"_id":"1","status":201}}`)),
	}
	o := newTestOrchestrator(t, executor, testCfg())
	ctx := context.Background()

	future := Submit[es.Void](ctx, o, es.NewIndexDocumentWork("logs", "1", doc(1)))
	require.NoError(t, o.Flush(ctx))

	inFlight := o.InFlight()
	require.Len(t, inFlight, 1)
	assert.Equal(t, 1, inFlight[0].Items)
	assert.Equal(t, []es.WorkKind{es.WorkKindIndexDocument}, inFlight[0].Kinds)
	assert.NotEmpty(t, inFlight[0].ID)

	close(executor.hold)
	_, err := waitFor(t, future)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return len(o.InFlight()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestFlushWithCancelledContext(t *testing.T) {
	executor := &fakeExecutor{respond: respondWith(bulkResponse())}
	o := newTestOrchestrator(t, executor, testCfg())

	future := Submit[es.Void](context.Background(), o, es.NewIndexDocumentWork("logs", "1", doc(1)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := o.Flush(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = waitFor(t, future)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, executor.recorded())
}

func TestConcurrentSubmitters(t *testing.T) {
	executor := &fakeExecutor{respond: func(req *es.Request) (*es.Response, error) {
		count := bytes.Count(req.Body(), []byte(`{"index":`))
		items := make([]string, 0, count)
		for i := 0; i < count; i++ {
			items = append(items, `{"index":{"status":201}}`)
		}
		return bulkResponse(items...), nil
	}}
	cfg := testCfg()
	cfg.FlushThresholdCount = 7
	o := newTestOrchestrator(t, executor, cfg)
	ctx := context.Background()

	const workers, perWorker = 10, 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		futures []*es.Future[es.Void]
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				future := Submit[es.Void](ctx, o, es.NewIndexDocumentWork("logs", fmt.Sprintf("%d-%d", w, i), doc(i)))
				mu.Lock()
				futures = append(futures, future)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, o.Flush(ctx))

	for _, future := range futures {
		_, err := waitFor(t, future)
		require.NoError(t, err)
	}

	var sent int
	for _, req := range executor.recorded() {
		sent += bytes.Count(req.Body(), []byte(`{"index":`))
	}
	assert.Equal(t, workers*perWorker, sent)
	require.NoError(t, o.Close(ctx))
	assert.EqualValues(t, workers*perWorker, o.Stats().Succeeded)
}
