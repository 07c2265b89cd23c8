package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity issuance lives in an upstream gateway; these middlewares only
// read the forwarded identity headers and reject requests without them.
const (
	ParticipantIDKey = "participantID"
	AdminIDKey       = "adminID"

	participantHeader = "X-Participant-ID"
	adminHeader       = "X-Admin-ID"
)

func ParticipantIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(participantHeader)
		if _, err := uuid.Parse(id); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "participant identity required"})
			return
		}

		c.Set(ParticipantIDKey, id)
		c.Next()
	}
}

func AdminIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(adminHeader)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin identity required"})
			return
		}

		c.Set(AdminIDKey, id)
		c.Next()
	}
}
