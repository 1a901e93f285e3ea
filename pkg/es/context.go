package es

import (
	"encoding/json"

	"github.com/hashicorp/go-version"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

type RefreshPolicy string

const (
	RefreshNone    RefreshPolicy = ""
	RefreshFalse   RefreshPolicy = "false"
	RefreshTrue    RefreshPolicy = "true"
	RefreshWaitFor RefreshPolicy = "wait_for"
)

func ParseRefreshPolicy(value string) (RefreshPolicy, error) {
	policy := RefreshPolicy(value)
	if !lo.Contains([]RefreshPolicy{RefreshNone, RefreshFalse, RefreshTrue, RefreshWaitFor}, policy) {
		return RefreshNone, errors.Errorf("unknown refresh policy %q", value)
	}
	return policy, nil
}

func (p RefreshPolicy) rank() int {
	switch p {
	case RefreshTrue:
		return 2
	case RefreshWaitFor:
		return 1
	default:
		return 0
	}
}

// StrongestRefresh picks the policy a bulk request must carry so that no
// entry gets weaker visibility than it asked for.
func StrongestRefresh(policies ...RefreshPolicy) RefreshPolicy {
	strongest := RefreshNone
	for _, policy := range policies {
		if policy.rank() > strongest.rank() || (strongest == RefreshNone && policy == RefreshFalse) {
			strongest = policy
		}
	}
	return strongest
}

type Serializer interface {
	Marshal(v interface{}) (json.RawMessage, error)
}

var (
	legacyTypeConstraint    version.Constraints
	legacyRoutingConstraint version.Constraints
)

func init() {
	legacyTypeConstraint, _ = version.NewConstraint("< 7.0")
	legacyRoutingConstraint, _ = version.NewConstraint("< 6.0")
}

// ExecutionContext carries what works need from the engine side to build
// themselves. It is supplied by the orchestrator and never owned by a work.
type ExecutionContext struct {
	ClusterVersion *version.Version
	Serializer     Serializer
	Refresh        RefreshPolicy
	DocType        string
}

func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		Serializer: DefaultSerializer,
		DocType:    "_doc",
	}
}

func (ec *ExecutionContext) WithClusterVersion(clusterVersion string) (*ExecutionContext, error) {
	parsed, err := version.NewVersion(clusterVersion)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	newEC := *ec
	newEC.ClusterVersion = parsed
	return &newEC, nil
}

func (ec *ExecutionContext) WithRefresh(refresh RefreshPolicy) *ExecutionContext {
	newEC := *ec
	newEC.Refresh = refresh
	return &newEC
}

func (ec *ExecutionContext) serializer() Serializer {
	if ec == nil || ec.Serializer == nil {
		return DefaultSerializer
	}
	return ec.Serializer
}

// TypedDocuments reports whether the cluster still addresses documents by
// mapping type. Unknown versions are treated as typeless.
func (ec *ExecutionContext) TypedDocuments() bool {
	return ec != nil && ec.ClusterVersion != nil && legacyTypeConstraint.Check(ec.ClusterVersion)
}

func (ec *ExecutionContext) docType() string {
	if ec == nil || lo.IsEmpty(ec.DocType) {
		return "_doc"
	}
	return ec.DocType
}

func (ec *ExecutionContext) routingKey() string {
	if ec != nil && ec.ClusterVersion != nil && legacyRoutingConstraint.Check(ec.ClusterVersion) {
		return "_routing"
	}
	return "routing"
}

// ResolveRefresh applies a work level override on top of the default.
func (ec *ExecutionContext) ResolveRefresh(override RefreshPolicy) RefreshPolicy {
	if override != RefreshNone {
		return override
	}
	if ec == nil {
		return RefreshNone
	}
	return ec.Refresh
}

// documentPath is /{index}/_doc/{id} on typeless clusters and
// /{index}/{type}/{id} before 7.0.
func (ec *ExecutionContext) documentPath(index string, id string) []string {
	components := []string{index, "_doc"}
	if ec.TypedDocuments() {
		components[1] = ec.docType()
	}
	if lo.IsNotEmpty(id) {
		components = append(components, id)
	}
	return components
}
