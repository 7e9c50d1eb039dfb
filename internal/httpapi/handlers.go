package httpapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"casebot/internal/domain"
	"casebot/internal/factstore"
	"casebot/internal/logger"
	"casebot/internal/service"
)

//go:embed admin.html
var adminPage []byte

const maxIngestBody = 8 << 20

// RAGPort is the subset of the service the HTTP layer calls.
type RAGPort interface {
	Ask(ctx context.Context, question string, topK int) (domain.Answer, error)
	Ingest(ctx context.Context, facts []domain.Fact) (domain.IngestResult, error)
	Size() int
	GenerationID() string
}

// Handler serves the casebot HTTP API.
type Handler struct {
	svc         RAGPort
	log         *logger.Logger
	defaultTopK int
}

// NewHandler creates a Handler. defaultTopK applies when /ask omits top_k.
func NewHandler(svc RAGPort, defaultTopK int, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	if defaultTopK <= 0 {
		defaultTopK = 6
	}
	return &Handler{svc: svc, log: log, defaultTopK: defaultTopK}
}

type askRequest struct {
	Question *string `json:"question"`
	TopK     *int   `json:"top_k"`
}

type askResponse struct {
	Answer string `json:"answer"`
	Count  int    `json:"count"`
}

type ingestRequest struct {
	Items []json.RawMessage `json:"items"`
}

type ingestResponse struct {
	Added int `json:"added"`
	Total int `json:"total"`
}

// Health reports liveness and the size of the current corpus.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"facts":      h.svc.Size(),
		"generation": h.svc.GenerationID(),
	})
}

// Ask answers a question from the current corpus.
func (h *Handler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	if req.Question == nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "question is required"})
		return
	}
	// A blank question still gets a composed answer.
	question := strings.TrimSpace(*req.Question)
	topK := h.defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	ans, err := h.svc.Ask(c.Request.Context(), question, topK)
	if err != nil {
		h.log.WithError(err).WithField("request_id", c.GetString("request_id")).Error("ask failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to answer question"})
		return
	}
	c.JSON(http.StatusOK, askResponse{Answer: ans.Text, Count: ans.Count})
}

// Ingest appends new facts. Every item must decode before anything is written.
func (h *Handler) Ingest(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxIngestBody)
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	facts := make([]domain.Fact, 0, len(req.Items))
	for i, raw := range req.Items {
		var f domain.Fact
		if err := json.Unmarshal(raw, &f); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("item %d: %v", i, err)})
			return
		}
		facts = append(facts, f)
	}

	res, err := h.svc.Ingest(c.Request.Context(), facts)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, ingestResponse{Added: res.Added, Total: res.Total})
	case errors.Is(err, factstore.ErrPersist):
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to store facts"})
	case errors.Is(err, service.ErrRebuild):
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "facts stored but index rebuild failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "ingestion failed"})
	}
}

// Admin serves the ingestion page.
func (h *Handler) Admin(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", adminPage)
}
