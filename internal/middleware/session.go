package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"ckd-egfr-server/internal/models"
	"ckd-egfr-server/internal/utils"
)

// Session headers set by the client after login
const (
	HeaderUserType = "X-User-Type"
	HeaderUserID   = "X-User-ID"
)

const (
	userTypeKey = "userType"
	userIDKey   = "userID"
)

// SessionMiddleware reads the caller identity from the session headers.
// Callers without a user type are guests. Patients are identified by NHS number,
// clinicians by HCP ID.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userType := models.UserType(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserType))))
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))

		switch userType {
		case "", models.UserTypeGuest:
			userType = models.UserTypeGuest
			userID = ""
		case models.UserTypePatient:
			if !utils.ValidNHSNumber(userID) {
				utils.Unauthorized(c, utils.FieldMessage("NHSNumber"))
				c.Abort()
				return
			}
		case models.UserTypeClinician:
			if userID == "" {
				utils.Unauthorized(c, utils.FieldMessage("HCPID"))
				c.Abort()
				return
			}
		default:
			utils.BadRequest(c, "Unknown user type: "+string(userType))
			c.Abort()
			return
		}

		c.Set(userTypeKey, userType)
		c.Set(userIDKey, userID)

		c.Next()
	}
}

// RequireUserType rejects callers whose user type is not listed.
// It should be used *after* SessionMiddleware.
func RequireUserType(allowed ...models.UserType) gin.HandlerFunc {
	return func(c *gin.Context) {
		userType, exists := GetUserTypeFromContext(c)
		if !exists {
			utils.InternalServerError(c, "User type not found in context. SessionMiddleware might be missing.")
			c.Abort()
			return
		}

		for _, t := range allowed {
			if userType == t {
				c.Next()
				return
			}
		}

		utils.Forbidden(c, "You do not have permission to access this resource.")
		c.Abort()
	}
}

// GetUserIDFromContext returns the caller's NHS number or HCP ID.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return "", false
	}
	idStr, ok := userID.(string)
	return idStr, ok
}

// GetUserTypeFromContext returns the caller's user type.
func GetUserTypeFromContext(c *gin.Context) (models.UserType, bool) {
	userType, exists := c.Get(userTypeKey)
	if !exists {
		return "", false
	}
	t, ok := userType.(models.UserType)
	return t, ok
}
