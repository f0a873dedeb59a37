package claims

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/claimtrack/platform/pkg/common/logger"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	validator *Validator
	importer  *Importer
	store     Store
	maxUpload int64
}

func NewHTTPHandler(validator *Validator, importer *Importer, store Store, maxUpload int64) *HTTPHandler {
	return &HTTPHandler{validator: validator, importer: importer, store: store, maxUpload: maxUpload}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/claims/import", h.handleImport).Methods(http.MethodPost)
	router.HandleFunc("/claims/export", h.handleExport).Methods(http.MethodGet)
	router.HandleFunc("/claims", h.handleList).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleImport(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		http.Error(w, "invalid multipart upload", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	mode, err := ParseMode(r.FormValue("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	updateExisting := parseBool(r.FormValue("update_existing"))

	rows, err := h.validator.ParseUpload(file)
	if err != nil {
		if IsSchemaError(err) || errors.Is(err, ErrEmptyInput) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		logger.Log.WithError(err).Error("failed to read upload")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	result, err := h.importer.Import(r.Context(), rows, ImportOptions{
		Mode:           mode,
		UpdateExisting: updateExisting,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyInput):
			writeError(w, http.StatusBadRequest, err)
		case IsStorageError(err):
			logger.Log.WithError(err).Error("import aborted by storage failure")
			writeError(w, http.StatusInternalServerError, err)
		default:
			logger.Log.WithError(err).Error("import failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ds, err := h.store.Snapshot(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("failed to read claim snapshot")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Query(ds, filter))
}

func (h *HTTPHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ds, err := h.store.Snapshot(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("failed to read claim snapshot")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="claims_export.csv"`)
	if err := Export(w, ds, filter); err != nil {
		logger.Log.WithError(err).Error("failed to stream export")
	}
}

func parseFilter(r *http.Request) (Filter, error) {
	query := r.URL.Query()
	filter := Filter{
		Search: query.Get("search"),
		Sort:   query.Get("sort"),
		Desc:   parseBool(query.Get("desc")),
		Page:   1,
	}

	if raw := query.Get("status"); raw != "" {
		status := Status(strings.ToLower(raw))
		if !status.Valid() {
			return Filter{}, fmt.Errorf("unknown status %q", raw)
		}
		filter.Status = status
	}

	if raw := query.Get("flagged"); raw != "" {
		flagged := parseBool(raw)
		filter.Flagged = &flagged
	}

	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return Filter{}, fmt.Errorf("invalid page %q", raw)
		}
		filter.Page = page
	}

	return filter, nil
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
