package httperrors_test

import (
	"testing"

	"github.com/SafeMPC/aa-keyring/internal/api/httperrors"
	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestFromError(t *testing.T) {
	assert.Nil(t, httperrors.FromError(nil))

	tests := []struct {
		err  error
		code int
	}{
		{errors.Wrap(types.ErrAccountNotFound, "abc"), httperrors.CodeAccountNotFound},
		{errors.Wrap(types.ErrRequestNotFound, "abc"), httperrors.CodeRequestNotFound},
		{types.ErrInvalidRequestID, httperrors.CodeInvalidParams},
		{types.ErrDuplicateRequestID, httperrors.CodeDuplicateRequestID},
		{errors.Wrap(types.ErrUnsupportedSigningMethod, "x"), httperrors.CodeUnsupportedMethod},
		{errors.Wrap(types.ErrBundlerSubmissionFailed, types.ErrBundlerNotConfigured.Error()), httperrors.CodeBundlerSubmissionFailed},
		{errors.New("boom"), httperrors.CodeInternalError},
		{httperrors.ErrMethodNotFound, httperrors.CodeMethodNotFound},
	}
	for _, tt := range tests {
		got := httperrors.FromError(tt.err)
		assert.Equal(t, tt.code, got.Code, tt.err.Error())
	}

	wrapped := errors.Wrap(types.ErrDuplicateAccountName, `"Alice"`)
	assert.Equal(t, wrapped.Error(), httperrors.FromError(wrapped).Message)
}
