package gateway

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/CharellKing/ela-work/config"
	"github.com/CharellKing/ela-work/pkg/es"
	"github.com/CharellKing/ela-work/service/gateway/handler"
	"github.com/CharellKing/ela-work/service/orchestrator"
	"github.com/CharellKing/ela-work/utils"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cast"
)

const shutdownTimeout = 10 * time.Second

// ESGateway turns HTTP calls shaped like the Elasticsearch document API into
// works for the orchestrator.
type ESGateway struct {
	Engine   *gin.Engine
	Address  string
	User     string
	Password string

	Orchestrator *orchestrator.Orchestrator
}

func basicAuth(username, password string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, pass, hasAuth := c.Request.BasicAuth()
		if hasAuth && user == username && pass == password {
			c.Next()
		} else {
			c.Header("WWW-Authenticate", `Basic realm="Restricted"`)
			c.AbortWithStatus(http.StatusUnauthorized)
		}
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if lo.IsEmpty(id) {
			id = uuid.New().String()
		}
		c.Header("X-Request-Id", id)
		c.Request = c.Request.WithContext(utils.SetCtxKeyRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func NewESGateway(cfg *config.GatewayCfg, o *orchestrator.Orchestrator) *ESGateway {
	engine := gin.Default()
	engine.Use(requestID())
	if lo.IsNotEmpty(cfg.User) {
		engine.Use(basicAuth(cfg.User, cfg.Password))
	}

	gateway := &ESGateway{
		Engine:       engine,
		Address:      cfg.Address,
		User:         cfg.User,
		Password:     cfg.Password,
		Orchestrator: o,
	}
	gateway.onRequest()
	return gateway
}

func (gateway *ESGateway) onRequest() {
	gateway.Engine.PUT("/:index/_doc/:id", gateway.onDocument(es.WorkKindIndexDocument))
	gateway.Engine.POST("/:index/_doc/:id", gateway.onDocument(es.WorkKindIndexDocument))
	gateway.Engine.POST("/:index/_doc", gateway.onDocument(es.WorkKindIndexDocument))
	gateway.Engine.POST("/:index/_update/:id", gateway.onDocument(es.WorkKindUpdateDocument))
	gateway.Engine.DELETE("/:index/_doc/:id", gateway.onDocument(es.WorkKindDeleteDocument))

	gateway.Engine.HEAD("/:index", gateway.onIndexExists)
	gateway.Engine.GET("/:index/_count", gateway.onCount)

	gateway.Engine.POST("/_changes", gateway.onChanges)
	gateway.Engine.POST("/_flush", gateway.onFlush)
	gateway.Engine.GET("/_stats", gateway.onStats)

	gateway.Engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": utils.NewCustomError(utils.UnknownOperation, "invalid uri %s %s", c.Request.Method, c.Request.URL.Path).Error(),
		})
	})
}

// eventFromRequest maps a document API call onto the change event the same
// work would be built from.
func eventFromRequest(c *gin.Context, kind es.WorkKind) (*handler.ChangeEvent, error) {
	event := &handler.ChangeEvent{
		Op:      string(kind),
		Index:   c.Param("index"),
		ID:      c.Param("id"),
		Routing: c.Query("routing"),
		Refresh: c.Query("refresh"),
	}
	if kind == es.WorkKindDeleteDocument {
		return event, nil
	}

	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		return nil, utils.NewCustomError(utils.InvalidRequest, "invalid json body: %v", err)
	}

	if kind == es.WorkKindUpdateDocument {
		if doc, ok := utils.GetValueFromMapByPath(body, "doc"); ok {
			event.Doc = cast.ToStringMap(doc)
		}
		docAsUpsert, _ := utils.GetValueFromMapByPath(body, "doc_as_upsert")
		event.DocAsUpsert = cast.ToBool(docAsUpsert)
		return event, nil
	}
	event.Doc = body
	return event, nil
}

func (gateway *ESGateway) onDocument(kind es.WorkKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		event, err := eventFromRequest(c, kind)
		if err != nil {
			gateway.onError(c, err)
			return
		}
		actionHandler, err := handler.GetHandler(gateway.Orchestrator, event)
		if err != nil {
			gateway.onError(c, err)
			return
		}

		result, err := actionHandler.Submit(c.Request.Context())(c.Request.Context())
		if err != nil {
			gateway.onError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"_index": event.Index,
			"_id":    event.ID,
			"result": result,
		})
	}
}

func (gateway *ESGateway) onIndexExists(c *gin.Context) {
	actionHandler, err := handler.GetHandler(gateway.Orchestrator, &handler.ChangeEvent{
		Op:    string(es.WorkKindIndexExists),
		Index: c.Param("index"),
	})
	if err != nil {
		gateway.onError(c, err)
		return
	}
	exists, err := actionHandler.Submit(c.Request.Context())(c.Request.Context())
	if err != nil {
		gateway.onError(c, err)
		return
	}
	if cast.ToBool(exists) {
		c.Status(http.StatusOK)
		return
	}
	c.Status(http.StatusNotFound)
}

func (gateway *ESGateway) onCount(c *gin.Context) {
	actionHandler, err := handler.GetHandler(gateway.Orchestrator, &handler.ChangeEvent{
		Op:    string(es.WorkKindCountDocuments),
		Index: c.Param("index"),
	})
	if err != nil {
		gateway.onError(c, err)
		return
	}
	count, err := actionHandler.Submit(c.Request.Context())(c.Request.Context())
	if err != nil {
		gateway.onError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

type changeOutcome struct {
	Op     string      `json:"op"`
	Index  string      `json:"index"`
	ID     string      `json:"id,omitempty"`
	Status int         `json:"status"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// onChanges submits every event before waiting on any of them so that
// bulkable events share batches. The open batch is flushed once the whole
// change set is queued.
func (gateway *ESGateway) onChanges(c *gin.Context) {
	ctx := c.Request.Context()
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		gateway.onError(c, errors.WithStack(err))
		return
	}
	var events []*handler.ChangeEvent
	if err := json.Unmarshal(bodyBytes, &events); err != nil {
		gateway.onError(c, utils.NewCustomError(utils.InvalidRequest, "invalid change set: %v", err))
		return
	}

	outcomes := make([]*changeOutcome, len(events))
	pendings := make([]handler.Pending, len(events))
	for i, event := range events {
		if event == nil {
			err := utils.NewCustomError(utils.InvalidRequest, "change %d is null", i)
			outcomes[i] = &changeOutcome{Status: statusOf(err), Error: err.Error()}
			continue
		}
		outcomes[i] = &changeOutcome{Op: event.Op, Index: event.Index, ID: event.ID}
		actionHandler, err := handler.GetHandler(gateway.Orchestrator, event)
		if err != nil {
			outcomes[i].Status, outcomes[i].Error = statusOf(err), err.Error()
			continue
		}
		pendings[i] = actionHandler.Submit(ctx)
	}
	// The open batch may hold other callers' works.
	if err := gateway.Orchestrator.Flush(context.WithoutCancel(ctx)); err != nil {
		utils.GetLogger(ctx).Warnf("flush change set: %+v", err)
	}

	var errs utils.Errs
	for i, pending := range pendings {
		if pending == nil {
			errs.Add(errors.New(outcomes[i].Error))
			continue
		}
		result, err := pending(ctx)
		if err != nil {
			errs.Add(err)
			outcomes[i].Status, outcomes[i].Error = statusOf(err), err.Error()
			continue
		}
		outcomes[i].Status, outcomes[i].Result = http.StatusOK, result
	}
	if err := errs.Ret(); err != nil {
		rejected := lo.CountValuesBy(utils.ErrorsAs[*es.WorkError](&errs), func(workErr *es.WorkError) int {
			return workErr.StatusCode
		})
		utils.GetLogger(ctx).Warnf("%d of %d changes failed, rejected by status %v: %v", errs.Len(), len(events), rejected, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"errors": !errs.IsEmpty(),
		"items":  outcomes,
	})
}

func (gateway *ESGateway) onFlush(c *gin.Context) {
	if err := gateway.Orchestrator.Flush(context.WithoutCancel(c.Request.Context())); err != nil {
		gateway.onError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}

func (gateway *ESGateway) onStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stats":     gateway.Orchestrator.Stats(),
		"in_flight": gateway.Orchestrator.InFlight(),
	})
}

func (gateway *ESGateway) onError(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		utils.GetLogger(c.Request.Context()).Errorf("%s %s: %+v", c.Request.Method, c.Request.URL.Path, err)
	}
	if c.Request.Method == http.MethodHead {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// statusOf maps a work failure onto the status the gateway answers with.
func statusOf(err error) int {
	var (
		workErr      *es.WorkError
		protocolErr  *es.ProtocolError
		transportErr *es.TransportError
		configErr    *es.ConfigError
	)
	switch {
	case errors.As(err, &workErr):
		return workErr.StatusCode
	case errors.As(err, &protocolErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &transportErr), errors.Is(err, orchestrator.ErrOrchestratorClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &configErr):
		return http.StatusConflict
	case errors.Is(err, es.ErrInvalidWork),
		utils.IsCustomError(err, utils.InvalidRequest),
		utils.IsCustomError(err, utils.UnknownOperation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Run serves until ctx ends, then drains open connections.
func (gateway *ESGateway) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    gateway.Address,
		Handler: gateway.Engine,
	}

	serveErr := make(chan error, 1)
	utils.GoRecovery(ctx, func() {
		utils.GetLogger(ctx).Infof("gateway listening on %s", gateway.Address)
		serveErr <- server.ListenAndServe()
	})

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WithStack(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.WithStack(server.Shutdown(shutdownCtx))
}
