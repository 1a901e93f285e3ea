package utils

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return "status error"
}

func TestErrs(t *testing.T) {
	var errs Errs
	assert.NoError(t, errs.Ret())

	errs.Add(nil)
	errs.Add(&statusError{status: 409})
	errs.Add(NewCustomError(InvalidRequest, "bad %s", "doc"))
	errs.Add(errors.Wrap(&statusError{status: 404}, "delete"))

	assert.Equal(t, 3, errs.Len())
	assert.Error(t, errs.Ret())
	assert.True(t, IsCustomError(errs.Ret(), InvalidRequest))
	assert.False(t, IsCustomError(errs.Ret(), UnknownOperation))

	matched := ErrorsAs[*statusError](&errs)
	assert.Len(t, matched, 2)
	assert.Equal(t, 409, matched[0].status)
	assert.Equal(t, 404, matched[1].status)
	assert.Empty(t, ErrorsAs[*CustomError](&Errs{}))
}
