package response

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	apperrors "vlogclip/pkg/errors"
)

func TestFromError(t *testing.T) {
	status, body := FromError(apperrors.WrapWithDetail(apperrors.CodeBatchTooLarge, "Maximum 6 videos allowed per batch", "got 7", nil))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperrors.CodeBatchTooLarge, body.Code)
	assert.Equal(t, "got 7", body.Detail)

	status, body = FromError(apperrors.ErrBusy)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Another job is already processing", body.Error)

	status, _ = FromError(context.Canceled)
	assert.Equal(t, apperrors.StatusClientClosed, status)

	status, body = FromError(errors.New("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, apperrors.CodeUnknown, body.Code)
}
