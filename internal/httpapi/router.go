package httpapi

import (
	"net/http"

	"github.com/Makazone/howhappy-api/internal/auth"
	"github.com/Makazone/howhappy-api/internal/pipeline"
	"github.com/Makazone/howhappy-api/internal/surveys"

	"github.com/gin-gonic/gin"
)

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	auth     *auth.Service
	surveys  *surveys.Service
	pipeline *pipeline.Service
	verifier TokenVerifier
}

func NewHandler(authSvc *auth.Service, surveySvc *surveys.Service, pipelineSvc *pipeline.Service, verifier TokenVerifier) *Handler {
	return &Handler{
		auth:     authSvc,
		surveys:  surveySvc,
		pipeline: pipelineSvc,
		verifier: verifier,
	}
}

// Router builds the full route table.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")

	v1.POST("/auth/register", h.register)
	v1.POST("/auth/login", h.login)
	v1.GET("/auth/me", RequireUser(h.verifier), h.profile)

	// Respondent-facing routes. Preparing a response works with or without
	// a login; completing one needs the response-scoped token issued at
	// prepare time.
	v1.GET("/public/surveys/:surveyId", h.getPublicSurvey)
	v1.POST("/surveys/:surveyId/responses", OptionalUser(h.verifier), h.prepareResponse)
	v1.PATCH("/surveys/:surveyId/responses/:responseId", RequireResponseToken(h.verifier), h.completeUpload)
	v1.POST("/surveys/:surveyId/responses/submit", RequireResponseToken(h.verifier), h.submitResponse)

	// Owner-facing routes.
	owner := v1.Group("")
	owner.Use(RequireUser(h.verifier))
	{
		owner.POST("/surveys", h.createSurvey)
		owner.GET("/surveys", h.listSurveys)
		owner.GET("/surveys/:surveyId", h.getSurvey)
		owner.PATCH("/surveys/:surveyId", h.updateSurvey)
		owner.GET("/surveys/:surveyId/responses", h.listResponses)
		owner.GET("/surveys/:surveyId/responses/:responseId", h.getResponse)
	}

	return r
}
