package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veilhq/veil-backend/internal/requestdata"
	"github.com/veilhq/veil-backend/internal/services"
)

type ThemeHandler struct {
	aggregateService  services.AggregateService
	themeBuildService services.ThemeBuildService
}

func NewThemeHandler(aggregateService services.AggregateService, themeBuildService services.ThemeBuildService) *ThemeHandler {
	return &ThemeHandler{aggregateService: aggregateService, themeBuildService: themeBuildService}
}

func (th *ThemeHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusForbidden, "forbidden", errors.New("forbidden"))
		return
	}
	views, err := th.aggregateService.ThemeViews(c.Request.Context(), rd.OrgID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "themes_failed", err)
		return
	}
	RespondOK(c, gin.H{"themes": views})
}

func (th *ThemeHandler) Rebuild(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusForbidden, "forbidden", errors.New("forbidden"))
		return
	}
	result, err := th.themeBuildService.RebuildForOrg(c.Request.Context(), rd.OrgID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "theme_rebuild_failed", err)
		return
	}
	RespondOK(c, result)
}
