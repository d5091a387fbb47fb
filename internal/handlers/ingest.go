package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	pkgerrors "github.com/veilhq/veil-backend/internal/pkg/errors"
	"github.com/veilhq/veil-backend/internal/services"
)

type IngestHandler struct {
	ingestService services.IngestService
}

func NewIngestHandler(ingestService services.IngestService) *IngestHandler {
	return &IngestHandler{ingestService: ingestService}
}

// SubmitFeedback receives one raw feedback message from the Slack bridge.
// The raw identity and body never make it past the service call below, so
// nothing in this handler may log or echo them.
func (ih *IngestHandler) SubmitFeedback(c *gin.Context) {
	var req struct {
		OrgSlug  string `json:"org_slug"`
		Identity string `json:"identity"`
		Body     string `json:"body"`
		Channel  string `json:"channel"`
		Dept     string `json:"dept"`
		ThreadID string `json:"thread_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("invalid request body"))
		return
	}
	in := services.IngestInput{
		OrgSlug:  req.OrgSlug,
		Identity: req.Identity,
		Body:     req.Body,
		Channel:  req.Channel,
		Dept:     req.Dept,
	}
	if req.ThreadID != "" {
		id, err := uuid.Parse(req.ThreadID)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_thread_id", errors.New("thread_id is not a valid uuid"))
			return
		}
		in.ThreadID = &id
	}
	result, err := ih.ingestService.SubmitFeedback(c.Request.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrInvalidArgument):
			RespondError(c, http.StatusBadRequest, "invalid_argument", err)
		case errors.Is(err, pkgerrors.ErrNotFound):
			RespondError(c, http.StatusNotFound, "org_not_found", err)
		case errors.Is(err, pkgerrors.ErrMissingOrgSalt):
			RespondError(c, http.StatusServiceUnavailable, "keys_unavailable", err)
		default:
			RespondError(c, http.StatusInternalServerError, "ingest_failed", err)
		}
		return
	}
	RespondOK(c, gin.H{"thread_id": result.ThreadID, "accepted": true})
}
