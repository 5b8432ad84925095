package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/unifanctl/internal/errors"
	"github.com/stretchr/testify/assert"
)

const errTest = errors.ErrorCode("test_failure")

func TestErrorMessage(t *testing.T) {
	f := errors.New()

	assert.Equal(t, "Invalid configuration", f.New(errors.ErrInvalidConfig).Error())
	assert.Equal(t, "test_failure", f.New(errTest).Error())
	assert.Equal(t, "custom", f.WithMessage(errTest, "custom").Error())
	assert.Equal(t, "test_failure: 42", f.WithData(errTest, 42).Error())
	assert.Equal(t, "test_failure: boom", f.Wrap(errTest, fmt.Errorf("boom")).Error())
}

func TestRegisterMessages(t *testing.T) {
	code := errors.ErrorCode("registered_code")
	errors.RegisterMessages(map[errors.ErrorCode]string{code: "Registered"})

	assert.Equal(t, "Registered", errors.GetErrorMessage(code))
}

func TestHasCode(t *testing.T) {
	f := errors.New()
	inner := f.New(errors.ErrTimeout)
	outer := f.Wrap(errors.ErrMainLoop, fmt.Errorf("cycle: %w", inner))

	assert.True(t, errors.HasCode(outer, errors.ErrMainLoop))
	assert.True(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.False(t, errors.HasCode(outer, errors.ErrInvalidConfig))
	assert.False(t, errors.HasCode(nil, errors.ErrTimeout))
	assert.False(t, errors.HasCode(fmt.Errorf("plain"), errors.ErrTimeout))
}

func TestCodeOf(t *testing.T) {
	f := errors.New()

	assert.Equal(t, errTest, errors.CodeOf(fmt.Errorf("wrapped: %w", f.New(errTest))))
	assert.Equal(t, errors.ErrInternal, errors.CodeOf(fmt.Errorf("plain")))
}
