package middleware

import "github.com/gin-gonic/gin"

// accountIDKey is the key used to store the authenticated account's ID in the
// request context.
const accountIDKey = contextKey("accountID")

// GetAccountIDFromContext retrieves the authenticated account ID from the Gin
// context. It returns the account ID and a boolean indicating if it was found.
func GetAccountIDFromContext(c *gin.Context) (string, bool) {
	accountID, ok := c.Request.Context().Value(accountIDKey).(string)
	if !ok || accountID == "" {
		return "", false
	}
	return accountID, true
}
