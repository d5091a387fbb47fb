package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	pkgerrors "github.com/veilhq/veil-backend/internal/pkg/errors"
	"github.com/veilhq/veil-backend/internal/requestdata"
	"github.com/veilhq/veil-backend/internal/services"
)

type ThreadHandler struct {
	aggregateService services.AggregateService
}

func NewThreadHandler(aggregateService services.AggregateService) *ThreadHandler {
	return &ThreadHandler{aggregateService: aggregateService}
}

func (th *ThreadHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusForbidden, "forbidden", errors.New("forbidden"))
		return
	}
	views, err := th.aggregateService.ThreadViews(c.Request.Context(), rd.OrgID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "threads_failed", err)
		return
	}
	RespondOK(c, gin.H{"threads": views})
}

func (th *ThreadHandler) GetByID(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusForbidden, "forbidden", errors.New("forbidden"))
		return
	}
	threadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_thread_id", errors.New("id is not a valid uuid"))
		return
	}
	view, err := th.aggregateService.ThreadViewByID(c.Request.Context(), rd.OrgID, threadID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "thread_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "thread_failed", err)
		return
	}
	RespondOK(c, gin.H{"thread": view})
}
