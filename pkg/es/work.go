package es

import "encoding/json"

type WorkKind string

const (
	WorkKindIndexDocument  WorkKind = "index_document"
	WorkKindUpdateDocument WorkKind = "update_document"
	WorkKindDeleteDocument WorkKind = "delete_document"
	WorkKindIndexExists    WorkKind = "index_exists"
	WorkKindCreateIndex    WorkKind = "create_index"
	WorkKindDeleteIndex    WorkKind = "delete_index"
	WorkKindRefreshIndex   WorkKind = "refresh_index"
	WorkKindPurgeIndex     WorkKind = "purge_index"
	WorkKindCountDocuments WorkKind = "count_documents"
	WorkKindClusterInfo    WorkKind = "cluster_info"

	// WorkKindBulk labels errors of a whole bulk request.
	WorkKindBulk WorkKind = "bulk"
)

// Void is the result of works that only report success or failure.
type Void struct{}

// Work is one logical operation against the engine. BuildRequest must be a
// pure function of the work and ec; ExtractResult is only called once the
// work's assessor accepted the status.
type Work[R any] interface {
	Kind() WorkKind
	Index() string
	Assessor() *SuccessAssessor
	BuildRequest(ec *ExecutionContext) (*Request, error)
	ExtractResult(ec *ExecutionContext, resp *Response) (R, error)
}

// BulkableWork can also travel as one action of a _bulk request.
// BulkActionBody returns false for actions without a source line.
type BulkableWork[R any] interface {
	Work[R]
	BulkActionMetadata(ec *ExecutionContext) (map[string]interface{}, error)
	BulkActionBody(ec *ExecutionContext) (json.RawMessage, bool, error)
	ExtractBulkResult(ec *ExecutionContext, item map[string]interface{}) (R, error)
}

// RefreshAware works carry their own refresh override.
type RefreshAware interface {
	RefreshPolicy() RefreshPolicy
}
