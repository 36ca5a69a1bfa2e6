package server

import (
	"context"
	"net/http"

	"cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/dgellow/line-relay/internal/background"
	"github.com/dgellow/line-relay/internal/log"
)

// TaskEnqueuer submits the dispatcher's task
type TaskEnqueuer interface {
	Ready() error
	Enqueue(ctx context.Context) (*cloudtaskspb.Task, error)
}

// DispatcherHandlers serves the Cloud Tasks trigger
type DispatcherHandlers struct {
	tasks  TaskEnqueuer
	runner *background.Runner
}

// NewDispatcherHandlers creates the dispatcher handlers
func NewDispatcherHandlers(tasks TaskEnqueuer, runner *background.Runner) *DispatcherHandlers {
	return &DispatcherHandlers{tasks: tasks, runner: runner}
}

// Register adds the dispatcher routes to mux
func (h *DispatcherHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /kick", h.KickHandler)
}

// KickHandler answers 200 right away and creates the task in the background.
// Only failures detectable before spawning produce a 500.
func (h *DispatcherHandlers) KickHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.Ready(); err != nil {
		log.LogErrorWithFields("dispatcher", "createHttpTask() error", map[string]any{
			"error": err.Error(),
		})
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.runner.Go(r.Context(), "create http task", func(ctx context.Context) error {
		if _, err := h.tasks.Enqueue(ctx); err != nil {
			// The 200 has already gone out; the 500 this failure maps to cannot be delivered
			log.LogErrorWithFields("dispatcher", "createHttpTask() error", map[string]any{
				"error":          err.Error(),
				"intendedStatus": http.StatusInternalServerError,
				"delivered":      false,
			})
			return err
		}
		log.LogInfoWithFields("dispatcher", "createHttpTask() completed.", nil)
		return nil
	})

	w.WriteHeader(http.StatusOK)
}
