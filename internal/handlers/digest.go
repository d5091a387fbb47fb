package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veilhq/veil-backend/internal/requestdata"
	"github.com/veilhq/veil-backend/internal/services"
)

type DigestHandler struct {
	digestService services.DigestService
}

func NewDigestHandler(digestService services.DigestService) *DigestHandler {
	return &DigestHandler{digestService: digestService}
}

// Preview builds the digest for the caller's org on demand, same composition
// the scheduled job produces.
func (dh *DigestHandler) Preview(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusForbidden, "forbidden", errors.New("forbidden"))
		return
	}
	digest, err := dh.digestService.BuildForOrg(c.Request.Context(), rd.OrgID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "digest_failed", err)
		return
	}
	RespondOK(c, digest)
}
