package api

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/tarsy/internal/apperr"
)

func TestStatusForMapsKnownKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperr.NotFound("missing"), 404},
		{apperr.Validation("bad input"), 400},
		{apperr.Parse("bad json"), 400},
		{apperr.Auth("nope"), 401},
		{apperr.Cancelled("t1"), 409},
		{apperr.LLM("", 500, "boom"), 500},
		{apperr.ToolExecution("calc", errors.New("boom")), 500},
		{errors.New("unstructured"), 500},
	}
	for _, tc := range cases {
		status, _ := statusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}

func TestWriteErrorAndForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	writeError(c, apperr.NotFound("session not found"))
	assert.Equal(t, 404, w.Code)
	assert.Contains(t, w.Body.String(), "session not found")

	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	forbidden(c2, "access denied")
	assert.Equal(t, 403, w2.Code)
	assert.Contains(t, w2.Body.String(), "access denied")
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(errors.New("task t1 not found")))
	assert.False(t, isNotFound(errors.New("boom")))
	assert.False(t, isNotFound(nil))
}
