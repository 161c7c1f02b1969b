package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/dustgatherer/internal/model"
	"github.com/erazemk/dustgatherer/internal/store"
)

// calendarSpan is the default calendar window in days.
const calendarSpan = 30

// AnalyticsHandler serves totals and the posting calendar.
type AnalyticsHandler struct {
	DB *sql.DB
}

// Stats handles GET /api/stats.
func (h *AnalyticsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := store.GetStats(r.Context(), h.DB)
	if err != nil {
		slog.Error("computing stats", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

// Calendar handles GET /api/calendar?from=&to=. Both bounds are inclusive
// and default to today and the following thirty days.
func (h *AnalyticsHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	from, err := dateParam(r, "from", model.Today())
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := dateParam(r, "to", model.DateOf(from.Time().AddDate(0, 0, calendarSpan)))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if to.Before(from) {
		jsonError(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	items, err := store.ListScheduledBetween(r.Context(), h.DB, from, to)
	if err != nil {
		slog.Error("listing calendar", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list calendar")
		return
	}

	days := make(map[string][]itemResponse)
	for i := range items {
		key := items[i].ScheduledPostDate.String()
		days[key] = append(days[key], newItemResponse(&items[i]))
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"from": from,
		"to":   to,
		"days": days,
	})
}

var errBadDate = errors.New("dates must be YYYY-MM-DD")

// dateParam parses an optional YYYY-MM-DD query parameter.
func dateParam(r *http.Request, name string, fallback model.Date) (model.Date, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	d, err := model.ParseDate(v)
	if err != nil {
		return model.Date{}, errBadDate
	}
	return d, nil
}
