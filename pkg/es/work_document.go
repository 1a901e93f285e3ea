package es

import (
	"encoding/json"
	"net/http"

	"github.com/samber/lo"
)

var deleteDocumentAssessor = NewSuccessAssessorBuilder().IgnoreErrorStatuses(http.StatusNotFound).Build()

// documentTarget holds what every document level work addresses.
type documentTarget struct {
	index    string
	id       string
	routing  string
	refresh  RefreshPolicy
	assessor *SuccessAssessor
}

func (t documentTarget) Index() string {
	return t.index
}

func (t documentTarget) ID() string {
	return t.id
}

func (t documentTarget) Routing() string {
	return t.routing
}

func (t documentTarget) RefreshPolicy() RefreshPolicy {
	return t.refresh
}

func (t documentTarget) validate(kind WorkKind, needID bool) error {
	if lo.IsEmpty(t.index) {
		return invalidWork(kind, "index is required")
	}
	if needID && lo.IsEmpty(t.id) {
		return invalidWork(kind, "document id is required")
	}
	return nil
}

// params are the standalone counterparts of the bulk metadata fields.
func (t documentTarget) params(b *RequestBuilder, ec *ExecutionContext) *RequestBuilder {
	b.ParamIfNotEmpty("routing", t.routing)
	b.ParamIfNotEmpty("refresh", string(ec.ResolveRefresh(t.refresh)))
	return b
}

func (t documentTarget) metadata(action string, ec *ExecutionContext) map[string]interface{} {
	meta := map[string]interface{}{
		"_index": t.index,
	}
	if lo.IsNotEmpty(t.id) {
		meta["_id"] = t.id
	}
	if ec.TypedDocuments() {
		meta["_type"] = ec.docType()
	}
	if lo.IsNotEmpty(t.routing) {
		meta[ec.routingKey()] = t.routing
	}
	return map[string]interface{}{
		action: meta,
	}
}

// IndexDocumentWork creates or replaces a document. Without an id the engine
// generates one.
type IndexDocumentWork struct {
	documentTarget
	document interface{}
}

func NewIndexDocumentWork(index string, id string, document interface{}) *IndexDocumentWork {
	return &IndexDocumentWork{
		documentTarget: documentTarget{index: index, id: id, assessor: DefaultSuccessAssessor},
		document:       document,
	}
}

func (w *IndexDocumentWork) WithRouting(routing string) *IndexDocumentWork {
	newWork := *w
	newWork.routing = routing
	return &newWork
}

func (w *IndexDocumentWork) WithRefresh(refresh RefreshPolicy) *IndexDocumentWork {
	newWork := *w
	newWork.refresh = refresh
	return &newWork
}

func (w *IndexDocumentWork) WithAssessor(assessor *SuccessAssessor) *IndexDocumentWork {
	newWork := *w
	newWork.assessor = assessor
	return &newWork
}

func (w *IndexDocumentWork) Kind() WorkKind {
	return WorkKindIndexDocument
}

func (w *IndexDocumentWork) Assessor() *SuccessAssessor {
	return w.assessor
}

func (w *IndexDocumentWork) BuildRequest(ec *ExecutionContext) (*Request, error) {
	if err := w.validate(w.Kind(), false); err != nil {
		return nil, err
	}
	body, err := ec.serializer().Marshal(w.document)
	if err != nil {
		return nil, err
	}

	method := http.MethodPut
	if lo.IsEmpty(w.id) {
		method = http.MethodPost
	}
	b := NewRequestBuilder(method).PathComponents(ec.documentPath(w.index, w.id)...)
	return w.params(b, ec).Body(body).Build(), nil
}

func (w *IndexDocumentWork) ExtractResult(_ *ExecutionContext, _ *Response) (Void, error) {
	return Void{}, nil
}

func (w *IndexDocumentWork) BulkActionMetadata(ec *ExecutionContext) (map[string]interface{}, error) {
	if err := w.validate(w.Kind(), false); err != nil {
		return nil, err
	}
	return w.metadata("index", ec), nil
}

func (w *IndexDocumentWork) BulkActionBody(ec *ExecutionContext) (json.RawMessage, bool, error) {
	body, err := ec.serializer().Marshal(w.document)
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

func (w *IndexDocumentWork) ExtractBulkResult(_ *ExecutionContext, _ map[string]interface{}) (Void, error) {
	return Void{}, nil
}

// UpdateDocumentWork merges a partial document into an existing one.
type UpdateDocumentWork struct {
	documentTarget
	partial     interface{}
	docAsUpsert bool
}

func NewUpdateDocumentWork(index string, id string, partial interface{}) *UpdateDocumentWork {
	return &UpdateDocumentWork{
		documentTarget: documentTarget{index: index, id: id, assessor: DefaultSuccessAssessor},
		partial:        partial,
	}
}

func (w *UpdateDocumentWork) WithRouting(routing string) *UpdateDocumentWork {
	newWork := *w
	newWork.routing = routing
	return &newWork
}

func (w *UpdateDocumentWork) WithRefresh(refresh RefreshPolicy) *UpdateDocumentWork {
	newWork := *w
	newWork.refresh = refresh
	return &newWork
}

func (w *UpdateDocumentWork) WithAssessor(assessor *SuccessAssessor) *UpdateDocumentWork {
	newWork := *w
	newWork.assessor = assessor
	return &newWork
}

// WithDocAsUpsert indexes the partial document when the target is missing.
func (w *UpdateDocumentWork) WithDocAsUpsert(docAsUpsert bool) *UpdateDocumentWork {
	newWork := *w
	newWork.docAsUpsert = docAsUpsert
	return &newWork
}

func (w *UpdateDocumentWork) Kind() WorkKind {
	return WorkKindUpdateDocument
}

func (w *UpdateDocumentWork) Assessor() *SuccessAssessor {
	return w.assessor
}

func (w *UpdateDocumentWork) body(ec *ExecutionContext) (json.RawMessage, error) {
	partial, err := ec.serializer().Marshal(w.partial)
	if err != nil {
		return nil, err
	}
	body := map[string]interface{}{
		"doc": partial,
	}
	if w.docAsUpsert {
		body["doc_as_upsert"] = true
	}
	return ec.serializer().Marshal(body)
}

func (w *UpdateDocumentWork) BuildRequest(ec *ExecutionContext) (*Request, error) {
	if err := w.validate(w.Kind(), true); err != nil {
		return nil, err
	}
	body, err := w.body(ec)
	if err != nil {
		return nil, err
	}

	b := NewRequestBuilder(http.MethodPost)
	if ec.TypedDocuments() {
		b.PathComponents(ec.documentPath(w.index, w.id)...).PathComponent("_update")
	} else {
		b.PathComponents(w.index, "_update", w.id)
	}
	return w.params(b, ec).Body(body).Build(), nil
}

func (w *UpdateDocumentWork) ExtractResult(_ *ExecutionContext, _ *Response) (Void, error) {
	return Void{}, nil
}

func (w *UpdateDocumentWork) BulkActionMetadata(ec *ExecutionContext) (map[string]interface{}, error) {
	if err := w.validate(w.Kind(), true); err != nil {
		return nil, err
	}
	return w.metadata("update", ec), nil
}

func (w *UpdateDocumentWork) BulkActionBody(ec *ExecutionContext) (json.RawMessage, bool, error) {
	body, err := w.body(ec)
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

func (w *UpdateDocumentWork) ExtractBulkResult(_ *ExecutionContext, _ map[string]interface{}) (Void, error) {
	return Void{}, nil
}

// DeleteDocumentWork removes a document. A missing document is not an error
// unless a stricter assessor is supplied.
type DeleteDocumentWork struct {
	documentTarget
}

func NewDeleteDocumentWork(index string, id string) *DeleteDocumentWork {
	return &DeleteDocumentWork{
		documentTarget: documentTarget{index: index, id: id, assessor: deleteDocumentAssessor},
	}
}

func (w *DeleteDocumentWork) WithRouting(routing string) *DeleteDocumentWork {
	newWork := *w
	newWork.routing = routing
	return &newWork
}

func (w *DeleteDocumentWork) WithRefresh(refresh RefreshPolicy) *DeleteDocumentWork {
	newWork := *w
	newWork.refresh = refresh
	return &newWork
}

func (w *DeleteDocumentWork) WithAssessor(assessor *SuccessAssessor) *DeleteDocumentWork {
	newWork := *w
	newWork.assessor = assessor
	return &newWork
}

func (w *DeleteDocumentWork) Kind() WorkKind {
	return WorkKindDeleteDocument
}

func (w *DeleteDocumentWork) Assessor() *SuccessAssessor {
	return w.assessor
}

func (w *DeleteDocumentWork) BuildRequest(ec *ExecutionContext) (*Request, error) {
	if err := w.validate(w.Kind(), true); err != nil {
		return nil, err
	}
	b := NewRequestBuilder(http.MethodDelete).PathComponents(ec.documentPath(w.index, w.id)...)
	return w.params(b, ec).Build(), nil
}

func (w *DeleteDocumentWork) ExtractResult(_ *ExecutionContext, _ *Response) (Void, error) {
	return Void{}, nil
}

func (w *DeleteDocumentWork) BulkActionMetadata(ec *ExecutionContext) (map[string]interface{}, error) {
	if err := w.validate(w.Kind(), true); err != nil {
		return nil, err
	}
	return w.metadata("delete", ec), nil
}

func (w *DeleteDocumentWork) BulkActionBody(_ *ExecutionContext) (json.RawMessage, bool, error) {
	return nil, false, nil
}

func (w *DeleteDocumentWork) ExtractBulkResult(_ *ExecutionContext, _ map[string]interface{}) (Void, error) {
	return Void{}, nil
}
