package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/veilhq/veil-backend/internal/requestdata"
	"github.com/veilhq/veil-backend/internal/services"
)

type RotationHandler struct {
	keyRotationService services.KeyRotationService
}

func NewRotationHandler(keyRotationService services.KeyRotationService) *RotationHandler {
	return &RotationHandler{keyRotationService: keyRotationService}
}

func (rh *RotationHandler) Rotate(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusForbidden, "forbidden", errors.New("forbidden"))
		return
	}
	userID := rd.UserID
	version, err := rh.keyRotationService.Rotate(c.Request.Context(), rd.OrgID, &userID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "rotation_failed", err)
		return
	}
	RespondOK(c, gin.H{"key_version": version})
}

func (rh *RotationHandler) History(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusForbidden, "forbidden", errors.New("forbidden"))
		return
	}
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			RespondError(c, http.StatusBadRequest, "invalid_limit", errors.New("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	events := rh.keyRotationService.History(c.Request.Context(), rd.OrgID, limit)
	RespondOK(c, gin.H{"events": events})
}
