package httpapi

import (
	"net/http"
	"strings"

	"github.com/Makazone/howhappy-api/internal/token"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID = "userID"
	ctxClaims = "claims"
)

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(tok string) (*token.Claims, error)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireUser admits only requests carrying a valid user token and stores
// the user ID on the context.
func RequireUser(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c)
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			return
		}
		claims, err := verifier.Verify(tok)
		if err != nil || !token.IsUserToken(claims) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(ctxUserID, claims.Subject)
		c.Next()
	}
}

// OptionalUser records the user ID when a valid user token is present and
// lets the request through either way. An invalid token is treated as
// absent, not rejected, so anonymous respondents are never blocked.
func OptionalUser(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := bearerToken(c); tok != "" {
			if claims, err := verifier.Verify(tok); err == nil && token.IsUserToken(claims) {
				c.Set(ctxUserID, claims.Subject)
			}
		}
		c.Next()
	}
}

// RequireResponseToken admits only requests carrying a valid response-scoped
// token and stores its claims for the handler's scope check.
func RequireResponseToken(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c)
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Response token required"})
			return
		}
		claims, err := verifier.Verify(tok)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func responseClaims(c *gin.Context) *token.Claims {
	v, ok := c.Get(ctxClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*token.Claims)
	return claims
}
