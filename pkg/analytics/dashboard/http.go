package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/claimtrack/platform/pkg/claims"
	"github.com/claimtrack/platform/pkg/common/logger"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/dashboard", h.handleSnapshot).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var opts Options

	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse(claims.DateLayout, raw)
		if err != nil {
			http.Error(w, "invalid from date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		opts.From = &from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse(claims.DateLayout, raw)
		if err != nil {
			http.Error(w, "invalid to date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		opts.To = &to
	}

	snapshot, err := h.service.Snapshot(r.Context(), opts)
	if err != nil {
		logger.Log.WithError(err).Error("failed to compute dashboard snapshot")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}
