package httpapi

import (
	"net/http"
	"strconv"

	"github.com/Makazone/howhappy-api/internal/surveys"
	"github.com/Makazone/howhappy-api/pkg/model"

	"github.com/gin-gonic/gin"
)

type RegisterRequest struct {
	Email       string  `json:"email" binding:"required,email"`
	Password    string  `json:"password" binding:"required,min=8"`
	DisplayName *string `json:"displayName"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateSurveyRequest struct {
	Title  string `json:"title" binding:"required"`
	Prompt string `json:"prompt"`
}

type UpdateSurveyRequest struct {
	Title  *string             `json:"title"`
	Prompt *string             `json:"prompt"`
	Status *model.SurveyStatus `json:"status"`
}

type PrepareResponseRequest struct {
	AnonymousEmail *string `json:"anonymousEmail"`
}

type CompleteUploadRequest struct {
	AudioURL string `json:"audioUrl" binding:"required,url"`
}

type SubmitRequest struct {
	ResponseID string `json:"responseId" binding:"required"`
	AudioURL   string `json:"audioUrl" binding:"required,url"`
}

func (h *Handler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.auth.Register(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) profile(c *gin.Context) {
	user, err := h.auth.Profile(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) createSurvey(c *gin.Context) {
	var req CreateSurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	survey, err := h.surveys.Create(c.Request.Context(), userID(c), surveys.CreateParams{
		Title:  req.Title,
		Prompt: req.Prompt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, survey)
}

func (h *Handler) listSurveys(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	list, err := h.surveys.ListByOwner(c.Request.Context(), userID(c), c.Query("cursor"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"surveys": list})
}

func (h *Handler) getSurvey(c *gin.Context) {
	survey, err := h.surveys.Get(c.Request.Context(), c.Param("surveyId"), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, survey)
}

// getPublicSurvey serves the respondent-facing view, no login needed.
func (h *Handler) getPublicSurvey(c *gin.Context) {
	survey, err := h.surveys.GetPublic(c.Request.Context(), c.Param("surveyId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     survey.ID,
		"title":  survey.Title,
		"prompt": survey.Prompt,
		"status": survey.Status,
	})
}

func (h *Handler) updateSurvey(c *gin.Context) {
	var req UpdateSurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	survey, err := h.surveys.Update(c.Request.Context(), c.Param("surveyId"), userID(c), surveys.UpdateParams{
		Title:  req.Title,
		Prompt: req.Prompt,
		Status: req.Status,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, survey)
}

// prepareResponse opens an upload slot: creates the response row, presigns
// the audio upload and issues the response-scoped token.
func (h *Handler) prepareResponse(c *gin.Context) {
	var req PrepareResponseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var actor *string
	if id := userID(c); id != "" {
		actor = &id
	}

	result, err := h.pipeline.Prepare(c.Request.Context(), c.Param("surveyId"), actor, req.AnonymousEmail)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) completeUpload(c *gin.Context) {
	var req CompleteUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.pipeline.Complete(c.Request.Context(),
		c.Param("surveyId"), c.Param("responseId"), req.AudioURL, responseClaims(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// submitResponse is completeUpload plus an explicit job receipt, for
// clients that want to poll the processing status.
func (h *Handler) submitResponse(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, jobID, err := h.pipeline.Submit(c.Request.Context(),
		c.Param("surveyId"), req.ResponseID, req.AudioURL, responseClaims(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": response, "jobId": jobID})
}

func (h *Handler) listResponses(c *gin.Context) {
	list, err := h.pipeline.ListBySurvey(c.Request.Context(), c.Param("surveyId"), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"responses": list})
}

func (h *Handler) getResponse(c *gin.Context) {
	response, err := h.pipeline.GetResponse(c.Request.Context(),
		c.Param("surveyId"), c.Param("responseId"), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}
