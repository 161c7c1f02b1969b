package api

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erazemk/dustgatherer/internal/assets"
	"github.com/erazemk/dustgatherer/internal/backup"
	"github.com/erazemk/dustgatherer/internal/metrics"
)

// Deps are the collaborators shared by every handler.
type Deps struct {
	DB        *sql.DB
	JWTSecret string
	Assets    *assets.Local
	Backup    *backup.Service
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	// HTTPMetrics may be nil.
	HTTPMetrics *metrics.HTTP
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(deps Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: deps.DB, JWTSecret: deps.JWTSecret}
	itemsHandler := &ItemsHandler{DB: deps.DB, Assets: deps.Assets, Validate: newValidator()}
	analyticsHandler := &AnalyticsHandler{DB: deps.DB}
	backupHandler := &BackupHandler{DB: deps.DB, Service: deps.Backup}

	authMW := AuthMiddleware(deps.JWTSecret, deps.DB)
	protect := func(h http.HandlerFunc) http.Handler { return authMW(h) }

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Session.
	mux.Handle("POST /api/auth/logout", protect(authHandler.Logout))
	mux.Handle("PUT /api/auth/password", protect(authHandler.ChangePassword))

	// Items.
	mux.Handle("GET /api/items", protect(itemsHandler.List))
	mux.Handle("POST /api/items", protect(itemsHandler.Create))
	mux.Handle("GET /api/items/{id}", protect(itemsHandler.Get))
	mux.Handle("PUT /api/items/{id}", protect(itemsHandler.Update))
	mux.Handle("DELETE /api/items/{id}", protect(itemsHandler.Delete))
	mux.Handle("PUT /api/items/{id}/image", protect(itemsHandler.UploadImage))
	mux.Handle("GET /api/items/{id}/image", protect(itemsHandler.GetImage))
	mux.Handle("DELETE /api/items/{id}/image", protect(itemsHandler.DeleteImage))

	// Analytics.
	mux.Handle("GET /api/stats", protect(analyticsHandler.Stats))
	mux.Handle("GET /api/calendar", protect(analyticsHandler.Calendar))

	// Backup.
	mux.Handle("GET /api/backup/export", protect(backupHandler.Export))
	mux.Handle("POST /api/backup/preview", protect(backupHandler.Preview))
	mux.Handle("POST /api/backup/import", protect(backupHandler.Import))
	mux.Handle("GET /api/backup/jobs", protect(backupHandler.Jobs))

	return LoggingMiddleware(deps.HTTPMetrics)(mux)
}
