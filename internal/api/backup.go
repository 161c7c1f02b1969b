package api

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/erazemk/dustgatherer/internal/backup"
	"github.com/erazemk/dustgatherer/internal/model"
	"github.com/erazemk/dustgatherer/internal/store"
)

// maxArchiveSize bounds uploaded archives.
const maxArchiveSize = 512 << 20

// BackupHandler exposes export, preview and import.
type BackupHandler struct {
	DB      *sql.DB
	Service *backup.Service
}

// Export handles GET /api/backup/export by streaming the archive.
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	// Spool to disk so a failed export is reported as an error, not as a
	// truncated download.
	tmp, err := os.CreateTemp("", "dustgatherer-export-*.zip")
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to create archive")
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := h.Service.Export(r.Context(), tmp, nil); err != nil {
		writeBackupError(w, err)
		return
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to read archive")
		return
	}

	name := fmt.Sprintf("dustgatherer-backup-%s.zip", time.Now().Format("2006-01-02-150405"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, time.Now(), tmp)
}

// Preview handles POST /api/backup/preview.
func (h *BackupHandler) Preview(w http.ResponseWriter, r *http.Request) {
	archive, ok := receiveArchive(w, r)
	if !ok {
		return
	}
	defer archive.close()

	count, err := h.Service.Preview(archive.file, archive.size)
	if err != nil {
		writeBackupError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"item_count": count})
}

// Import handles POST /api/backup/import?strategy=skip|replace|new.
func (h *BackupHandler) Import(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("strategy")
	if name == "" {
		name = backup.SkipExisting.String()
	}
	strategy, err := backup.ParseStrategy(name)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	archive, ok := receiveArchive(w, r)
	if !ok {
		return
	}
	defer archive.close()

	outcome, err := h.Service.Import(r.Context(), archive.file, archive.size, strategy, nil)
	if err != nil {
		writeBackupError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, outcome)
}

// Jobs handles GET /api/backup/jobs?limit=.
func (h *BackupHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	jobs, err := store.ListJobs(r.Context(), h.DB, limit)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []model.BackupJob{}
	}
	jsonResponse(w, http.StatusOK, jobs)
}

// uploadedArchive is a multipart upload spooled to disk.
type uploadedArchive struct {
	file *os.File
	size int64
}

func (a *uploadedArchive) close() {
	a.file.Close()
	os.Remove(a.file.Name())
}

// receiveArchive copies the multipart "file" field to a temp file so the zip
// reader can seek in it.
func receiveArchive(w http.ResponseWriter, r *http.Request) (*uploadedArchive, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxArchiveSize)
	reader, err := r.MultipartReader()
	if err != nil {
		jsonError(w, http.StatusBadRequest, "multipart form required")
		return nil, false
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			jsonError(w, http.StatusBadRequest, "archive file required")
			return nil, false
		}
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid multipart form")
			return nil, false
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		tmp, err := os.CreateTemp("", "dustgatherer-upload-*.zip")
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to store upload")
			return nil, false
		}
		archive := &uploadedArchive{file: tmp}
		archive.size, err = io.Copy(tmp, part)
		part.Close()
		if err != nil {
			archive.close()
			jsonError(w, http.StatusBadRequest, "archive too large or upload interrupted")
			return nil, false
		}
		return archive, true
	}
}

// writeBackupError maps backup errors to status codes.
func writeBackupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, backup.ErrJobInProgress):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, backup.ErrUnsupportedVersion),
		errors.Is(err, backup.ErrMissingManifest),
		errors.Is(err, backup.ErrInvalidArchive):
		jsonError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("backup request failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "backup failed")
	}
}
