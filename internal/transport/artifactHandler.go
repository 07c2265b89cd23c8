package transport

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rosehq/screening-backend/pkg/storage"
)

// ArtifactHandler serves stored result artifacts. Downloads require the
// signed link produced for a verified OTP, never the bare key.
type ArtifactHandler struct {
	artifactStore storage.ArtifactStore
}

func NewArtifactHandler(artifactStore storage.ArtifactStore) *ArtifactHandler {
	return &ArtifactHandler{artifactStore: artifactStore}
}

func (h *ArtifactHandler) Download(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")

	if !h.artifactStore.VerifySignedURL(key, c.Query("expires"), c.Query("signature")) {
		c.JSON(http.StatusForbidden, ErrorResponse{Success: false, Error: "invalid or expired link"})
		return
	}

	file, err := h.artifactStore.Open(key)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Error: "artifact not found"})
		return
	}
	defer file.Close()

	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", file, nil)
}
