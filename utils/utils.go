package utils

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"researchhub/models"
)

// GenerateDashlessUUID creates a new UUID v4 and returns its string representation
// with all dashes removed.
func GenerateDashlessUUID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")
}

// SetupLogging configures the global zerolog logger. A console writer is used when
// stderr is a terminal, JSON lines otherwise.
func SetupLogging(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

// APIError is a standard structure for returning errors as JSON.
type APIError struct {
	Error string `json:"error"`
}

// GinError sends a JSON error response with a specific status code.
// It logs the error server-side as well.
func GinError(c *gin.Context, statusCode int, message string) {
	log.Warn().
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", statusCode).
		Msg(message)
	c.AbortWithStatusJSON(statusCode, APIError{Error: message})
}

// GinBadRequest sends a 400 Bad Request error response.
func GinBadRequest(c *gin.Context, message string) {
	GinError(c, http.StatusBadRequest, message)
}

// GinUnauthorized sends a 401 Unauthorized error response.
func GinUnauthorized(c *gin.Context, message string) {
	GinError(c, http.StatusUnauthorized, message)
}

// GinForbidden sends a 403 Forbidden error response.
func GinForbidden(c *gin.Context, message string) {
	GinError(c, http.StatusForbidden, message)
}

// GinNotFound sends a 404 Not Found error response.
func GinNotFound(c *gin.Context, message string) {
	GinError(c, http.StatusNotFound, message)
}

// GinInternalServerError sends a 500 Internal Server Error response.
func GinInternalServerError(c *gin.Context, message string) {
	GinError(c, http.StatusInternalServerError, message)
}

// GinBadGateway sends a 502 Bad Gateway error response, used when the object store fails.
func GinBadGateway(c *gin.Context, message string) {
	GinError(c, http.StatusBadGateway, message)
}

// GinServiceUnavailable sends a 503 Service Unavailable error response.
func GinServiceUnavailable(c *gin.Context, message string) {
	GinError(c, http.StatusServiceUnavailable, message)
}

// GinFromError maps the application error taxonomy to a status code.
func GinFromError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		GinBadRequest(c, err.Error())
	case errors.Is(err, models.ErrInvalidCredentials):
		GinUnauthorized(c, err.Error())
	case errors.Is(err, models.ErrPendingApproval):
		GinForbidden(c, err.Error())
	case errors.Is(err, models.ErrNotFound):
		GinNotFound(c, err.Error())
	case errors.Is(err, models.ErrStoreUnavailable):
		GinServiceUnavailable(c, err.Error())
	case errors.Is(err, models.ErrUploadFailure), errors.Is(err, models.ErrListFailure):
		GinBadGateway(c, err.Error())
	default:
		GinInternalServerError(c, err.Error())
	}
}
