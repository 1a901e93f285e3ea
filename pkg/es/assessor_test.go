package es

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssessIgnoreSet(t *testing.T) {
	assessor := NewSuccessAssessorBuilder().IgnoreErrorStatuses(http.StatusNotFound).Build()

	testCases := []struct {
		status int
		want   Outcome
	}{
		{http.StatusOK, OutcomeSuccess},
		{http.StatusCreated, OutcomeSuccess},
		{http.StatusNotFound, OutcomeIgnoredFailure},
		{http.StatusConflict, OutcomeFailure},
		{http.StatusInternalServerError, OutcomeFailure},
		{0, OutcomeFailure},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, assessor.Assess(tc.status), "status %d", tc.status)
	}
}

func TestDefaultAssessor(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, DefaultSuccessAssessor.Assess(http.StatusNoContent))
	assert.Equal(t, OutcomeFailure, DefaultSuccessAssessor.Assess(http.StatusNotFound))
	assert.Empty(t, DefaultSuccessAssessor.IgnoredStatuses())

	var nilAssessor *SuccessAssessor
	assert.Equal(t, OutcomeFailure, nilAssessor.Assess(http.StatusNotFound))
	assert.Equal(t, OutcomeSuccess, nilAssessor.Assess(http.StatusOK))
}

func TestAssessorCheck(t *testing.T) {
	assessor := NewSuccessAssessorBuilder().IgnoreErrorStatuses(http.StatusNotFound).Build()

	assert.NoError(t, assessor.Check(WorkKindDeleteDocument, http.StatusNotFound, "Not Found", nil))

	body := map[string]interface{}{
		"error": map[string]interface{}{
			"type":   "version_conflict_engine_exception",
			"reason": "document already exists",
		},
	}
	err := assessor.Check(WorkKindIndexDocument, http.StatusConflict, "Conflict", body)
	require.Error(t, err)

	var workErr *WorkError
	require.True(t, errors.As(err, &workErr))
	assert.Equal(t, http.StatusConflict, workErr.StatusCode)
	assert.Equal(t, "version_conflict_engine_exception: document already exists", workErr.Reason())
	assert.Contains(t, err.Error(), "index_document failed with status 409")
}

func TestAssessorCompatibility(t *testing.T) {
	a := NewSuccessAssessorBuilder().IgnoreErrorStatuses(404, 409).Build()
	b := NewSuccessAssessorBuilder().IgnoreErrorStatuses(409, 404, 404).Build()
	c := NewSuccessAssessorBuilder().IgnoreErrorStatuses(404).Build()

	assert.True(t, a.IsCompatibleWith(b))
	assert.True(t, b.IsCompatibleWith(a))
	assert.False(t, a.IsCompatibleWith(c))
	assert.False(t, c.IsCompatibleWith(DefaultSuccessAssessor))
	assert.True(t, DefaultSuccessAssessor.IsCompatibleWith(nil))
	assert.Equal(t, []int{404, 409}, a.IgnoredStatuses())
}
