package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"notesai/internal/auth"
	"notesai/internal/extract"
	"notesai/internal/models"
	"notesai/internal/prompt"
	"notesai/internal/service/ai"
	"notesai/internal/service/notes"
	"notesai/internal/web"
)

const summaryFileName = "summary.txt"

// multipart framing allowance on top of the file limit
const multipartOverhead = 1 << 20

// Handler wires HTTP routes to the notes service and the session auth service.
type Handler struct {
	notes          *notes.Service
	auth           *auth.Service
	maxUploadBytes int64
}

// NewHandler constructs a Handler instance.
func NewHandler(notesService *notes.Service, authService *auth.Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Handler{
		notes:          notesService,
		auth:           authService,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", web.Index)

	api := router.Group("/api")
	api.POST("/sessions", h.startSession)

	sessionRoutes := api.Group("")
	sessionRoutes.Use(h.auth.Middleware(), h.auth.CSRFMiddleware())
	sessionRoutes.GET("/session", h.getSession)
	sessionRoutes.DELETE("/session", h.endSession)
	sessionRoutes.POST("/documents", h.uploadDocument)
	sessionRoutes.POST("/operations/summary", h.summarize)
	sessionRoutes.POST("/operations/qa", h.generateQA)
	sessionRoutes.POST("/operations/answer", h.answerQuestion)
	sessionRoutes.GET("/summary/download", h.downloadSummary)
}

func (h *Handler) authorizedSessionID(c *gin.Context) (string, bool) {
	sessionID, ok := auth.SessionIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session required"})
		return "", false
	}
	return sessionID, true
}

func (h *Handler) startSession(c *gin.Context) {
	session, token, err := h.auth.StartSession(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "start session failed"})
		return
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate csrf token failed"})
		return
	}
	h.setSessionCookies(c, token, csrfToken)
	c.JSON(http.StatusCreated, gin.H{
		"session_id":    session.ID,
		"session_token": token,
		"csrf_token":    csrfToken,
		"expires_at":    session.ExpiresAt,
	})
}

type workspaceResponse struct {
	SessionID  string             `json:"session_id"`
	Document   *models.Document   `json:"document"`
	Text       string             `json:"text"`
	Revision   int64              `json:"revision"`
	HasSummary bool               `json:"has_summary"`
	Operations []models.Operation `json:"operations"`
}

func (h *Handler) getSession(c *gin.Context) {
	sessionID, ok := h.authorizedSessionID(c)
	if !ok {
		return
	}
	ws, err := h.notes.Workspace(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ops, err := h.notes.Operations(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ops == nil {
		ops = []models.Operation{}
	}
	c.JSON(http.StatusOK, workspaceResponse{
		SessionID:  sessionID,
		Document:   ws.Document,
		Text:       ws.Text,
		Revision:   ws.Revision,
		HasSummary: ws.Summary != "",
		Operations: ops,
	})
}

func (h *Handler) endSession(c *gin.Context) {
	sessionID, ok := h.authorizedSessionID(c)
	if !ok {
		return
	}
	token, _ := auth.SessionTokenFromContext(c)
	if err := h.notes.EndSession(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.auth.RevokeToken(c.Request.Context(), token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.clearSessionCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) uploadDocument(c *gin.Context) {
	sessionID, ok := h.authorizedSessionID(c)
	if !ok {
		return
	}
	if c.Request.ContentLength > h.maxUploadBytes+multipartOverhead {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return
	}
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read file failed"})
		return
	}

	ws, err := h.notes.Upload(c.Request.Context(), sessionID, file.Filename, data)
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
	case errors.Is(err, extract.ErrExtractionFailure):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    err.Error(),
			"document": ws.Document,
			"text":     ws.Text,
			"revision": ws.Revision,
		})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusCreated, gin.H{
			"document": ws.Document,
			"text":     ws.Text,
			"revision": ws.Revision,
		})
	}
}

func (h *Handler) summarize(c *gin.Context) {
	h.runOperation(c, prompt.Summarize())
}

func (h *Handler) generateQA(c *gin.Context) {
	h.runOperation(c, prompt.GenerateQA())
}

type answerRequest struct {
	Question string `json:"question"`
}

func (h *Handler) answerQuestion(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.runOperation(c, prompt.AnswerQuestion(req.Question))
}

func (h *Handler) runOperation(c *gin.Context, op prompt.Operation) {
	sessionID, ok := h.authorizedSessionID(c)
	if !ok {
		return
	}
	result, err := h.notes.Run(c.Request.Context(), sessionID, op)
	switch {
	case errors.Is(err, prompt.ErrMissingQuestion):
		c.JSON(http.StatusBadRequest, gin.H{"warning": prompt.MissingQuestionWarning})
	case errors.Is(err, ai.ErrCompletion):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, result)
	}
}

func (h *Handler) downloadSummary(c *gin.Context) {
	sessionID, ok := h.authorizedSessionID(c)
	if !ok {
		return
	}
	summary, err := h.notes.Summary(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, notes.ErrNoSummary) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+summaryFileName)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(summary))
}

func (h *Handler) setSessionCookies(c *gin.Context, token, csrfToken string) {
	ttl := int(h.auth.TokenTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	setCookie(c, &http.Cookie{
		Name:     h.auth.SessionCookieName(),
		Value:    token,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setCookie(c, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearSessionCookies(c *gin.Context) {
	for _, name := range []string{h.auth.SessionCookieName(), h.auth.CSRFCookieName()} {
		setCookie(c, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.auth.SessionCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}
