package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/projectcraftbeer/PendoSmart/internal/evaluate"
	"github.com/projectcraftbeer/PendoSmart/internal/smartling"
	"github.com/projectcraftbeer/PendoSmart/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Syncer is the slice of the sync service the handlers need.
type Syncer interface {
	DiscoverJobFiles(ctx context.Context, projectID string) (int, error)
	SyncSourceStrings(ctx context.Context, projectID, locale string) (int, error)
	FetchTranslations(ctx context.Context, projectID, locale string) (int, error)
	FlagMatching(ctx context.Context, projectID, locale string) (int64, error)
}

type Deps struct {
	Store     *storage.Store
	Client    *smartling.Client
	Session   *smartling.Session
	Sync      Syncer
	Evaluator *evaluate.Evaluator
	Token     string
	Log       *slog.Logger
}

// NewHandler builds the full HTTP surface: public review endpoints at the
// root, platform administration under /admin behind bearer auth.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", handleHealth)
	r.Get("/strings", handleListStrings(deps))
	r.Post("/strings", handleCreateString(deps))
	r.Post("/evaluate", handleEvaluateString(deps))
	r.Post("/evaluate-translation", handleEvaluateTranslation(deps))

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(BearerAuth(deps.Token))
		mountAdmin(admin, deps)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}
