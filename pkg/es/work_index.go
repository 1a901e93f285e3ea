package es

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cast"
)

var notFoundIgnoredAssessor = NewSuccessAssessorBuilder().IgnoreErrorStatuses(http.StatusNotFound).Build()

type indexTarget struct {
	index    string
	assessor *SuccessAssessor
}

func (t indexTarget) Index() string {
	return t.index
}

func (t indexTarget) Assessor() *SuccessAssessor {
	return t.assessor
}

func (t indexTarget) validate(kind WorkKind) error {
	if lo.IsEmpty(t.index) {
		return invalidWork(kind, "index is required")
	}
	return nil
}

// IndexExistsWork probes an index with HEAD. A 404 is an expected answer.
type IndexExistsWork struct {
	indexTarget
}

func NewIndexExistsWork(index string) *IndexExistsWork {
	return &IndexExistsWork{indexTarget{index: index, assessor: notFoundIgnoredAssessor}}
}

func (w *IndexExistsWork) WithAssessor(assessor *SuccessAssessor) *IndexExistsWork {
	newWork := *w
	newWork.assessor = assessor
	return &newWork
}

func (w *IndexExistsWork) Kind() WorkKind {
	return WorkKindIndexExists
}

func (w *IndexExistsWork) BuildRequest(_ *ExecutionContext) (*Request, error) {
	if err := w.validate(w.Kind()); err != nil {
		return nil, err
	}
	return NewRequestBuilder(http.MethodHead).PathComponent(w.index).Build(), nil
}

func (w *IndexExistsWork) ExtractResult(_ *ExecutionContext, resp *Response) (bool, error) {
	return w.assessor.Assess(resp.StatusCode()) == OutcomeSuccess, nil
}

// IndexDefinition is the body of an index creation.
type IndexDefinition struct {
	Settings map[string]interface{} `json:"settings,omitempty"`
	Mappings map[string]interface{} `json:"mappings,omitempty"`
	Aliases  map[string]interface{} `json:"aliases,omitempty"`
}

// forCluster nests the mappings under the document type on clusters that
// still have mapping types.
func (d *IndexDefinition) forCluster(ec *ExecutionContext) *IndexDefinition {
	if !ec.TypedDocuments() || len(d.Mappings) == 0 {
		return d
	}
	if _, typed := d.Mappings[ec.docType()]; typed {
		return d
	}
	definition := *d
	definition.Mappings = map[string]interface{}{
		ec.docType(): d.Mappings,
	}
	return &definition
}

type CreateIndexWork struct {
	indexTarget
	definition *IndexDefinition
}

func NewCreateIndexWork(index string, definition *IndexDefinition) *CreateIndexWork {
	return &CreateIndexWork{
		indexTarget: indexTarget{index: index, assessor: DefaultSuccessAssessor},
		definition:  definition,
	}
}

func (w *CreateIndexWork) WithAssessor(assessor *SuccessAssessor) *CreateIndexWork {
	newWork := *w
	newWork.assessor = assessor
	return &newWork
}

func (w *CreateIndexWork) Kind() WorkKind {
	return WorkKindCreateIndex
}

func (w *CreateIndexWork) BuildRequest(ec *ExecutionContext) (*Request, error) {
	if err := w.validate(w.Kind()); err != nil {
		return nil, err
	}
	b := NewRequestBuilder(http.MethodPut).PathComponent(w.index)
	if w.definition != nil {
		body, err := ec.serializer().Marshal(w.definition.forCluster(ec))
		if err != nil {
			return nil, err
		}
		b.Body(body)
	}
	return b.Build(), nil
}

func (w *CreateIndexWork) ExtractResult(_ *ExecutionContext, _ *Response) (Void, error) {
	return Void{}, nil
}

// DeleteIndexWork drops an index; deleting a missing index is tolerated.
type DeleteIndexWork struct {
	indexTarget
}

func NewDeleteIndexWork(index string) *DeleteIndexWork {
	return &DeleteIndexWork{indexTarget{index: index, assessor: notFoundIgnoredAssessor}}
}

func (w *DeleteIndexWork) WithAssessor(assessor *SuccessAssessor) *DeleteIndexWork {
	newWork := *w
	newWork.assessor = assessor
	return &newWork
}

func (w *DeleteIndexWork) Kind() WorkKind {
	return WorkKindDeleteIndex
}

func (w *DeleteIndexWork) BuildRequest(_ *ExecutionContext) (*Request, error) {
	if err := w.validate(w.Kind()); err != nil {
		return nil, err
	}
	return NewRequestBuilder(http.MethodDelete).PathComponent(w.index).Build(), nil
}

func (w *DeleteIndexWork) ExtractResult(_ *ExecutionContext, _ *Response) (Void, error) {
	return Void{}, nil
}

type RefreshIndexWork struct {
	indexTarget
}

func NewRefreshIndexWork(index string) *RefreshIndexWork {
	return &RefreshIndexWork{indexTarget{index: index, assessor: DefaultSuccessAssessor}}
}

func (w *RefreshIndexWork) WithAssessor(assessor *SuccessAssessor) *RefreshIndexWork {
	newWork := *w
	newWork.assessor = assessor
	return &newWork
}

func (w *RefreshIndexWork) Kind() WorkKind {
	return WorkKindRefreshIndex
}

func (w *RefreshIndexWork) BuildRequest(_ *ExecutionContext) (*Request, error) {
	if err := w.validate(w.Kind()); err != nil {
		return nil, err
	}
	return NewRequestBuilder(http.MethodPost).PathComponents(w.index, "_refresh").Build(), nil
}

func (w *RefreshIndexWork) ExtractResult(_ *ExecutionContext, _ *Response) (Void, error) {
	return Void{}, nil
}

// PurgeIndexWork deletes every document of an index, or only those of one
// routing key, while keeping the index itself.
type PurgeIndexWork struct {
	indexTarget
	routing string
	refresh RefreshPolicy
}

func NewPurgeIndexWork(index string) *PurgeIndexWork {
	return &PurgeIndexWork{indexTarget: indexTarget{index: index, assessor: DefaultSuccessAssessor}}
}

func (w *PurgeIndexWork) WithRouting(routing string) *PurgeIndexWork {
	newWork := *w
	newWork.routing = routing
	return &newWork
}

func (w *PurgeIndexWork) WithRefresh(refresh RefreshPolicy) *PurgeIndexWork {
	newWork := *w
	newWork.refresh = refresh
	return &newWork
}

func (w *PurgeIndexWork) WithAssessor(assessor *SuccessAssessor) *PurgeIndexWork {
	newWork := *w
	newWork.assessor = assessor
	return &newWork
}

func (w *PurgeIndexWork) Kind() WorkKind {
	return WorkKindPurgeIndex
}

func (w *PurgeIndexWork) RefreshPolicy() RefreshPolicy {
	return w.refresh
}

func (w *PurgeIndexWork) BuildRequest(ec *ExecutionContext) (*Request, error) {
	if err := w.validate(w.Kind()); err != nil {
		return nil, err
	}
	body, err := ec.serializer().Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"match_all": map[string]interface{}{},
		},
	})
	if err != nil {
		return nil, err
	}

	// delete_by_query only understands true/false
	refresh := ec.ResolveRefresh(w.refresh)
	if refresh == RefreshWaitFor {
		refresh = RefreshTrue
	}
	return NewRequestBuilder(http.MethodPost).
		PathComponents(w.index, "_delete_by_query").
		Param("conflicts", "proceed").
		ParamIfNotEmpty("routing", w.routing).
		ParamIfNotEmpty("refresh", string(refresh)).
		Body(body).
		Build(), nil
}

func (w *PurgeIndexWork) ExtractResult(_ *ExecutionContext, _ *Response) (Void, error) {
	return Void{}, nil
}

type CountDocumentsWork struct {
	indexTarget
	query map[string]interface{}
}

func NewCountDocumentsWork(index string) *CountDocumentsWork {
	return &CountDocumentsWork{indexTarget: indexTarget{index: index, assessor: DefaultSuccessAssessor}}
}

// WithQuery restricts the count to documents matching query.
func (w *CountDocumentsWork) WithQuery(query map[string]interface{}) *CountDocumentsWork {
	newWork := *w
	newWork.query = query
	return &newWork
}

func (w *CountDocumentsWork) WithAssessor(assessor *SuccessAssessor) *CountDocumentsWork {
	newWork := *w
	newWork.assessor = assessor
	return &newWork
}

func (w *CountDocumentsWork) Kind() WorkKind {
	return WorkKindCountDocuments
}

func (w *CountDocumentsWork) BuildRequest(ec *ExecutionContext) (*Request, error) {
	if err := w.validate(w.Kind()); err != nil {
		return nil, err
	}
	if len(w.query) == 0 {
		return NewRequestBuilder(http.MethodGet).PathComponents(w.index, "_count").Build(), nil
	}

	body, err := ec.serializer().Marshal(map[string]interface{}{"query": w.query})
	if err != nil {
		return nil, err
	}
	return NewRequestBuilder(http.MethodPost).PathComponents(w.index, "_count").Body(body).Build(), nil
}

func (w *CountDocumentsWork) ExtractResult(_ *ExecutionContext, resp *Response) (int64, error) {
	count, ok := resp.Body()["count"]
	if !ok {
		return 0, errors.Errorf("count response of %s has no count field", w.index)
	}
	value, err := cast.ToInt64E(count)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return value, nil
}
