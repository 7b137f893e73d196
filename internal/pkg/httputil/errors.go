package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/ops-triage-hub/internal/pkg/ctxlog"
)

// ErrorMapping binds a sentinel error to the status it is reported with.
type ErrorMapping struct {
	Error  error
	Status int
	// Message replaces err.Error() in the response when set.
	Message string
}

// HandleError reports err using the first mapping it matches with errors.Is.
// Unmapped errors are logged and hidden behind a generic 500.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	logger := ctxlog.FromContext(ctx)

	for _, m := range mappings {
		if !errors.Is(err, m.Error) {
			continue
		}
		msg := m.Message
		if msg == "" {
			msg = err.Error()
		}
		logger.Debug("request rejected", "status", m.Status, "error", err)
		Error(w, m.Status, msg)
		return
	}

	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
