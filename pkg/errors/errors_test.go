package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{InvalidInput("month", "bad"), http.StatusBadRequest},
		{OutOfRange("settingValue", 99, 1, 5), http.StatusBadRequest},
		{NotFound("priority", "x"), http.StatusNotFound},
		{Ineligible("s1", "2024-03-01", "overlap"), http.StatusUnprocessableEntity},
		{GenerationInProgress("d1", "2024-03"), http.StatusConflict},
		{AlreadyGenerated("d1", "2024-03", 4), http.StatusConflict},
		{ShiftBusy("sh1", "2024-03-01"), http.StatusConflict},
		{RosterBusy("d1"), http.StatusConflict},
		{Forbidden("d1"), http.StatusForbidden},
		{Unauthorized("no token"), http.StatusUnauthorized},
		{Database(sql.ErrConnDone), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.HTTPStatus, string(tt.err.Code))
		assert.Equal(t, tt.want, GetHTTPStatus(tt.err))
	}
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(fmt.Errorf("plain")))
}

func TestIsThroughWrapping(t *testing.T) {
	base := Ineligible("s1", "2024-03-01", "on-leave")
	wrapped := fmt.Errorf("create: %w", base)

	assert.True(t, Is(wrapped, CodeIneligible))
	assert.False(t, Is(wrapped, CodeNotFound))
	assert.Equal(t, CodeIneligible, GetCode(wrapped))
	assert.Equal(t, CodeUnknown, GetCode(fmt.Errorf("plain")))
	assert.Equal(t, "on-leave", base.Fields["reason"])
}

func TestPersistenceKeepsCause(t *testing.T) {
	err := Persistence(sql.ErrTxDone, "insert assignment")
	assert.ErrorIs(t, err, sql.ErrTxDone)
	assert.Equal(t, "insert assignment", err.Details)
	assert.Contains(t, err.Error(), string(CodePersistence))
}

func TestFromValidator(t *testing.T) {
	type req struct {
		Month string `validate:"required"`
		Value int    `validate:"min=1,max=5"`
	}
	err := validator.New().Struct(req{Value: 9})
	require.Error(t, err)

	appErr := FromValidator(err)
	assert.Equal(t, CodeValidationFail, appErr.Code)
	assert.Equal(t, "required", appErr.Fields["Month"])
	assert.Equal(t, "max=5", appErr.Fields["Value"])

	other := FromValidator(fmt.Errorf("eof"))
	assert.Equal(t, CodeInvalidInput, other.Code)
}
