// Package httpapi exposes the question and ingestion endpoints over HTTP.
package httpapi

import (
	"github.com/gin-gonic/gin"

	"casebot/internal/logger"
)

// Options configures the router.
type Options struct {
	AdminToken     string
	AllowedOrigins []string
	AskRate        float64
	AskBurst       int
	DefaultTopK    int
}

// NewRouter wires handlers and middleware into a gin engine.
func NewRouter(svc RAGPort, opts Options, log *logger.Logger) *gin.Engine {
	if log == nil {
		log = logger.Discard()
	}
	h := NewHandler(svc, opts.DefaultTopK, log)

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(log), CORS(opts.AllowedOrigins))

	r.GET("/health", h.Health)
	r.POST("/ask", RateLimit(opts.AskRate, opts.AskBurst), h.Ask)
	r.POST("/ingest", AdminAuth(opts.AdminToken), h.Ingest)
	r.GET("/admin", h.Admin)
	return r
}
