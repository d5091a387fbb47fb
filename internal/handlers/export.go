package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veilhq/veil-backend/internal/requestdata"
	"github.com/veilhq/veil-backend/internal/services"
)

type ExportHandler struct {
	exportService services.ExportService
}

func NewExportHandler(exportService services.ExportService) *ExportHandler {
	return &ExportHandler{exportService: exportService}
}

// Download streams the org export in the requested format. The payload comes
// off the same evaluated views the dashboard renders, so a suppressed thread
// is just as suppressed here.
func (eh *ExportHandler) Download(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusForbidden, "forbidden", errors.New("forbidden"))
		return
	}
	format := c.DefaultQuery("format", "csv")
	switch format {
	case "csv":
		data, err := eh.exportService.ExportCSV(c.Request.Context(), rd.OrgID)
		if err != nil {
			RespondError(c, http.StatusInternalServerError, "export_failed", err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="feedback-export.csv"`)
		c.Data(http.StatusOK, "text/csv", data)
	case "json":
		data, err := eh.exportService.ExportJSON(c.Request.Context(), rd.OrgID)
		if err != nil {
			RespondError(c, http.StatusInternalServerError, "export_failed", err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="feedback-export.json"`)
		c.Data(http.StatusOK, "application/json", data)
	default:
		RespondError(c, http.StatusBadRequest, "invalid_format", errors.New("format must be csv or json"))
	}
}

func (eh *ExportHandler) ToBucket(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusForbidden, "forbidden", errors.New("forbidden"))
		return
	}
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "json" {
		RespondError(c, http.StatusBadRequest, "invalid_format", errors.New("format must be csv or json"))
		return
	}
	url, err := eh.exportService.ExportToBucket(c.Request.Context(), rd.OrgID, format)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "export_failed", err)
		return
	}
	RespondOK(c, gin.H{"url": url})
}
