package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/tarsy/internal/apperr"
)

// writeError maps an apperr.Kind to an HTTP status code and writes a
// JSON error body, the gin equivalent of pkg/api/errors.go's
// mapServiceError (that switched on services.* sentinels; this
// switches on apperr.Kind since internal/* packages all return
// *apperr.Error instead).
func writeError(c *gin.Context, err error) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("unexpected api error", "error", err)
	}
	c.JSON(status, gin.H{"error": message})
}

func statusFor(err error) (int, string) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, "internal server error"
	}

	switch appErr.Kind {
	case apperr.KindNotFound:
		return http.StatusNotFound, appErr.Message
	case apperr.KindValidation, apperr.KindParse:
		return http.StatusBadRequest, appErr.Message
	case apperr.KindAuth:
		return http.StatusUnauthorized, appErr.Message
	case apperr.KindCancelled:
		return http.StatusConflict, appErr.Message
	case apperr.KindLLM, apperr.KindToolExecution, apperr.KindConfig:
		return http.StatusInternalServerError, appErr.Message
	default:
		return http.StatusInternalServerError, appErr.Message
	}
}

// isNotFound recognizes internal/store's plain fmt.Errorf "not found"
// rows (e.g. PgRepo.GetTask, GetAgent, GetLLMConfiguration), which --
// unlike session.Repo's bool-found contract -- don't carry a
// structured apperr.Kind.
func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}

// forbidden writes a plain 403, used by the cross-user session checks
// (SPEC_FULL.md §12) that have no apperr.Kind of their own -- access
// control is a handler-level decision, not a store-layer error.
func forbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, gin.H{"error": message})
}
