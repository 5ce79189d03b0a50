package handler

import (
	"errors"
	"net/http"

	"github.com/acefrcr/acefrcr-backend/internal/middleware"
	"github.com/acefrcr/acefrcr-backend/internal/model"
	"github.com/acefrcr/acefrcr-backend/internal/response"
	"github.com/acefrcr/acefrcr-backend/internal/service"
	"github.com/acefrcr/acefrcr-backend/internal/session"
	"github.com/acefrcr/acefrcr-backend/internal/validator"
	"github.com/gin-gonic/gin"
)

// AttemptHandler handles the attempt lifecycle endpoints.
type AttemptHandler struct {
	attemptService  *service.AttemptService
	questionService *service.QuestionService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, questionService *service.QuestionService) *AttemptHandler {
	return &AttemptHandler{
		attemptService:  attemptService,
		questionService: questionService,
	}
}

// Start godoc
// POST /api/v1/attempts/:module/start
// Resumes the latest incomplete cycle or starts the next one.
func (h *AttemptHandler) Start(c *gin.Context) {
	claims, module, ok := h.attemptContext(c)
	if !ok {
		return
	}

	state, warnings, err := h.attemptService.Start(c.Request.Context(), claims.UserID, module)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	body := gin.H{"state": state}
	if len(warnings) > 0 {
		body["warnings"] = warnings
	}
	response.Success(c, http.StatusOK, body)
}

// Select godoc
// POST /api/v1/attempts/:module/select
// Records an answer value for the current question. Local to the attempt;
// nothing is persisted until submit.
func (h *AttemptHandler) Select(c *gin.Context) {
	claims, module, ok := h.attemptContext(c)
	if !ok {
		return
	}

	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.attemptService.Select(c.Request.Context(), claims.UserID, module, req.TargetID, req.Value)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// Submit godoc
// POST /api/v1/attempts/:module/submit
// Grades the current question and returns the outcome with explanations.
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims, module, ok := h.attemptContext(c)
	if !ok {
		return
	}

	outcome, err := h.attemptService.Submit(c.Request.Context(), claims.UserID, module)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, outcome)
}

// Next godoc
// POST /api/v1/attempts/:module/next
// Advances to the following question after submission.
func (h *AttemptHandler) Next(c *gin.Context) {
	claims, module, ok := h.attemptContext(c)
	if !ok {
		return
	}

	outcome, err := h.attemptService.Next(c.Request.Context(), claims.UserID, module)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, outcome)
}

// Finalize godoc
// POST /api/v1/attempts/:module/finalize
// Completes the cycle after the last question is submitted.
func (h *AttemptHandler) Finalize(c *gin.Context) {
	claims, module, ok := h.attemptContext(c)
	if !ok {
		return
	}

	outcome, err := h.attemptService.Finalize(c.Request.Context(), claims.UserID, module)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, outcome)
}

// GetState godoc
// GET /api/v1/attempts/:module/state
// Returns the current attempt view without mutating anything.
func (h *AttemptHandler) GetState(c *gin.Context) {
	claims, module, ok := h.attemptContext(c)
	if !ok {
		return
	}

	state, err := h.attemptService.GetState(c.Request.Context(), claims.UserID, module)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// GetPaper godoc
// GET /api/v1/attempts/:module/paper
// Returns the answer-stripped question set for a module from the cache.
func (h *AttemptHandler) GetPaper(c *gin.Context) {
	_, module, ok := h.attemptContext(c)
	if !ok {
		return
	}

	payload, err := h.questionService.GetModulePayload(c.Request.Context(), module)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": payload})
}

// History godoc
// GET /api/v1/attempts/history
// Lists per-cycle summaries across every module the user attempted.
func (h *AttemptHandler) History(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	entries, err := h.attemptService.History(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if entries == nil {
		entries = []model.AttemptHistoryEntry{}
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": entries})
}

// attemptContext extracts the claims and module param shared by every
// attempt endpoint.
func (h *AttemptHandler) attemptContext(c *gin.Context) (*service.Claims, string, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, "", false
	}

	module := c.Param("module")
	if module == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownModule)
		return nil, "", false
	}

	return claims, module, true
}

// failAttemptError maps domain errors onto HTTP statuses and typed codes.
func failAttemptError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrEmptyPool):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
	case errors.Is(err, service.ErrNoActiveAttempt):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	case errors.Is(err, session.ErrFinalized):
		response.Fail(c, http.StatusConflict, response.ErrAttemptCompleted)
	case errors.Is(err, session.ErrIncomplete):
		response.Fail(c, http.StatusBadRequest, response.ErrIncompleteAnswer)
	case errors.Is(err, session.ErrUnknownTarget):
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownTarget)
	case errors.Is(err, session.ErrValueShape):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
	case errors.Is(err, session.ErrNotUnanswered),
		errors.Is(err, session.ErrNotSubmitted),
		errors.Is(err, session.ErrLastQuestion),
		errors.Is(err, session.ErrNotLastQuestion):
		response.Fail(c, http.StatusConflict, response.ErrInvalidTransition)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
