package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/enroll/queue-server-go/internal/audit"
	"github.com/enroll/queue-server-go/internal/httputil"
	"github.com/enroll/queue-server-go/internal/middleware"
	"github.com/enroll/queue-server-go/internal/service"
	"github.com/enroll/queue-server-go/internal/util"
)

const msgDeleted = "삭제되었습니다."

type AdminHandler struct {
	queueService *service.QueueService
}

func NewAdminHandler(queueService *service.QueueService) *AdminHandler {
	return &AdminHandler{queueService: queueService}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Patch("/settings/sms", h.UpdateSMSSetting)
	r.Get("/{type}", h.ListEntries)
	r.Delete("/{type}", h.DeleteEntry)

	return r
}

func (h *AdminHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.queueService.List(r.Context(), chi.URLParam(r, "type"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *AdminHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	fields, err := requestFields(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	queueType := chi.URLParam(r, "type")
	phone := stringField(fields, "phone")

	if err := h.queueService.Delete(r.Context(), queueType, phone); err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventEntryDelete,
		AuthUser: middleware.GetAuthUser(r.Context()),
		Details: map[string]interface{}{
			"type":  queueType,
			"phone": util.MaskPhone(phone),
		},
	})

	writeJSON(w, http.StatusOK, messageResponse{Message: msgDeleted})
}

func (h *AdminHandler) UpdateSMSSetting(w http.ResponseWriter, r *http.Request) {
	fields, err := requestFields(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	value, err := service.ParseThreshold(fields["value"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.queueService.SetSMSThreshold(r.Context(), value); err != nil {
		log.Warn().Err(err).Int("value", value).Msg("sms threshold update rejected")
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventSMSThresholdSet,
		AuthUser: middleware.GetAuthUser(r.Context()),
		Details:  map[string]interface{}{"value": value},
	})

	writeJSON(w, http.StatusOK, settingResponse{Value: value})
}
