package es

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeIgnoredFailure is a non-2xx status the work declared acceptable,
	// e.g. 404 for an existence probe. It reaches result extraction as data.
	OutcomeIgnoredFailure
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeIgnoredFailure:
		return "ignored_failure"
	default:
		return "failure"
	}
}

// SuccessAssessor decides whether a status code means the work succeeded.
// Any 2xx is a success; codes in the ignore set are tolerated failures.
type SuccessAssessor struct {
	ignored map[int]struct{}
}

var DefaultSuccessAssessor = NewSuccessAssessorBuilder().Build()

type SuccessAssessorBuilder struct {
	ignored []int
}

func NewSuccessAssessorBuilder() *SuccessAssessorBuilder {
	return &SuccessAssessorBuilder{}
}

func (b *SuccessAssessorBuilder) IgnoreErrorStatuses(codes ...int) *SuccessAssessorBuilder {
	b.ignored = append(b.ignored, codes...)
	return b
}

func (b *SuccessAssessorBuilder) Build() *SuccessAssessor {
	ignored := make(map[int]struct{}, len(b.ignored))
	for _, code := range b.ignored {
		ignored[code] = struct{}{}
	}
	return &SuccessAssessor{ignored: ignored}
}

func (a *SuccessAssessor) IgnoredStatuses() []int {
	if a == nil {
		return nil
	}
	codes := lo.Keys(a.ignored)
	sort.Ints(codes)
	return codes
}

// Assess never fails; a nil assessor behaves like DefaultSuccessAssessor.
func (a *SuccessAssessor) Assess(statusCode int) Outcome {
	if statusCode >= 200 && statusCode < 300 {
		return OutcomeSuccess
	}
	if a != nil {
		if _, ok := a.ignored[statusCode]; ok {
			return OutcomeIgnoredFailure
		}
	}
	return OutcomeFailure
}

// Check turns an OutcomeFailure into a *WorkError and lets everything else
// through.
func (a *SuccessAssessor) Check(kind WorkKind, statusCode int, statusMessage string, body map[string]interface{}) error {
	if a.Assess(statusCode) != OutcomeFailure {
		return nil
	}
	return &WorkError{
		Kind:          kind,
		StatusCode:    statusCode,
		StatusMessage: statusMessage,
		Body:          body,
	}
}

// IsCompatibleWith reports whether both assessors ignore exactly the same
// statuses, which is the condition for sharing a bulk batch.
func (a *SuccessAssessor) IsCompatibleWith(other *SuccessAssessor) bool {
	left, right := a.IgnoredStatuses(), other.IgnoredStatuses()
	if len(left) != len(right) {
		return false
	}
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	return true
}

func (a *SuccessAssessor) String() string {
	return fmt.Sprintf("SuccessAssessor{ignore: %v}", a.IgnoredStatuses())
}
