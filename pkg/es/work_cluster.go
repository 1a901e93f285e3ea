package es

import (
	"net/http"

	"github.com/hashicorp/go-version"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

type ClusterInfoVersion struct {
	Number        string `mapstructure:"number"`
	Distribution  string `mapstructure:"distribution"`
	LuceneVersion string `mapstructure:"lucene_version"`
}

type ClusterInfo struct {
	Name        string             `mapstructure:"name"`
	ClusterName string             `mapstructure:"cluster_name"`
	ClusterUUID string             `mapstructure:"cluster_uuid"`
	Version     ClusterInfoVersion `mapstructure:"version"`
	Tagline     string             `mapstructure:"tagline"`
}

func (info ClusterInfo) ParsedVersion() (*version.Version, error) {
	if lo.IsEmpty(info.Version.Number) {
		return nil, errors.New("cluster info has no version number")
	}
	parsed, err := version.NewVersion(info.Version.Number)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return parsed, nil
}

// Major is the major version, 0 when the version is unknown.
func (info ClusterInfo) Major() int {
	parsed, err := info.ParsedVersion()
	if err != nil {
		return 0
	}
	return parsed.Segments()[0]
}

// ClusterInfoWork reads the root endpoint. It is how the client learns the
// cluster version before any version gated work gets built.
type ClusterInfoWork struct {
	assessor *SuccessAssessor
}

func NewClusterInfoWork() *ClusterInfoWork {
	return &ClusterInfoWork{assessor: DefaultSuccessAssessor}
}

func (w *ClusterInfoWork) Kind() WorkKind {
	return WorkKindClusterInfo
}

func (w *ClusterInfoWork) Index() string {
	return ""
}

func (w *ClusterInfoWork) Assessor() *SuccessAssessor {
	return w.assessor
}

func (w *ClusterInfoWork) BuildRequest(_ *ExecutionContext) (*Request, error) {
	return NewRequestBuilder(http.MethodGet).Build(), nil
}

func (w *ClusterInfoWork) ExtractResult(_ *ExecutionContext, resp *Response) (ClusterInfo, error) {
	var info ClusterInfo
	if resp.Body() == nil {
		return info, errors.New("cluster info response has no body")
	}
	if err := mapstructure.Decode(resp.Body(), &info); err != nil {
		return info, errors.WithStack(err)
	}
	return info, nil
}
