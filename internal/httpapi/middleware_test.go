package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Makazone/howhappy-api/internal/token"
	"github.com/Makazone/howhappy-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init(true)
}

func newTokenService() *token.Service {
	return token.NewService("test-secret", time.Hour, 15*time.Minute)
}

func userRouter(verifier TokenVerifier) *gin.Engine {
	r := gin.New()
	r.GET("/private", RequireUser(verifier), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": userID(c)})
	})
	r.GET("/open", OptionalUser(verifier), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": userID(c)})
	})
	r.GET("/scoped", RequireResponseToken(verifier), func(c *gin.Context) {
		claims := responseClaims(c)
		c.JSON(http.StatusOK, gin.H{"responseId": claims.ResponseID})
	})
	return r
}

func doGet(t *testing.T, r *gin.Engine, path, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireUserAcceptsUserToken(t *testing.T) {
	tokens := newTokenService()
	r := userRouter(tokens)

	tok, err := tokens.IssueUserToken("user-1")
	require.NoError(t, err)

	w := doGet(t, r, "/private", tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-1")
}

func TestRequireUserRejectsMissingToken(t *testing.T) {
	r := userRouter(newTokenService())

	w := doGet(t, r, "/private", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireUserRejectsResponseToken(t *testing.T) {
	tokens := newTokenService()
	r := userRouter(tokens)

	tok, err := tokens.IssueResponseToken("survey-1", "response-1")
	require.NoError(t, err)

	w := doGet(t, r, "/private", tok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireUserRejectsForgedToken(t *testing.T) {
	tokens := newTokenService()
	other := token.NewService("other-secret", time.Hour, 15*time.Minute)
	r := userRouter(tokens)

	tok, err := other.IssueUserToken("user-1")
	require.NoError(t, err)

	w := doGet(t, r, "/private", tok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalUserPassesAnonymous(t *testing.T) {
	r := userRouter(newTokenService())

	w := doGet(t, r, "/open", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userId":""`)
}

func TestOptionalUserIgnoresGarbageToken(t *testing.T) {
	r := userRouter(newTokenService())

	w := doGet(t, r, "/open", "not-a-jwt")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userId":""`)
}

func TestRequireResponseTokenCarriesClaims(t *testing.T) {
	tokens := newTokenService()
	r := userRouter(tokens)

	tok, err := tokens.IssueResponseToken("survey-1", "response-1")
	require.NoError(t, err)

	w := doGet(t, r, "/scoped", tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "response-1")
}

func TestRequireResponseTokenRejectsExpired(t *testing.T) {
	expired := token.NewService("test-secret", time.Hour, -time.Minute)
	r := userRouter(expired)

	tok, err := expired.IssueResponseToken("survey-1", "response-1")
	require.NoError(t, err)

	w := doGet(t, r, "/scoped", tok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerTokenParsing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	c.Request.Header.Set("Authorization", "Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", bearerToken(c))

	c.Request.Header.Set("Authorization", "bearer abc")
	assert.Equal(t, "abc", bearerToken(c))

	c.Request.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Equal(t, "", bearerToken(c))

	c.Request.Header.Del("Authorization")
	assert.Equal(t, "", bearerToken(c))
}
