package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/enroll/queue-server-go/internal/httputil"
	"github.com/enroll/queue-server-go/internal/service"
)

// QueueHandler serves the participant-facing endpoints.
type QueueHandler struct {
	queueService  *service.QueueService
	registerLimit func(http.Handler) http.Handler
}

func NewQueueHandler(queueService *service.QueueService, registerLimit func(http.Handler) http.Handler) *QueueHandler {
	return &QueueHandler{
		queueService:  queueService,
		registerLimit: registerLimit,
	}
}

func (h *QueueHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/queue", h.Overview)
	r.Get("/queue/{phone}", h.Rank)
	r.Get("/settings/sms", h.SMSSetting)

	if h.registerLimit != nil {
		r.With(h.registerLimit).Post("/register/{type}", h.Register)
	} else {
		r.Post("/register/{type}", h.Register)
	}

	return r
}

func (h *QueueHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.queueService.Overview(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *QueueHandler) Rank(w http.ResponseWriter, r *http.Request) {
	rank, err := h.queueService.Rank(r.Context(), chi.URLParam(r, "phone"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rank)
}

func (h *QueueHandler) Register(w http.ResponseWriter, r *http.Request) {
	fields, err := requestFields(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.queueService.Register(r.Context(), chi.URLParam(r, "type"), stringField(fields, "phone")); err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (h *QueueHandler) SMSSetting(w http.ResponseWriter, r *http.Request) {
	value, err := h.queueService.SMSThreshold(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingResponse{Value: value})
}
