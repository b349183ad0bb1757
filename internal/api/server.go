package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"invoicematch/internal/config"
	"invoicematch/internal/documents"
	"invoicematch/internal/export"
	"invoicematch/internal/metrics"
	"invoicematch/internal/models"
	"invoicematch/internal/redaction"
	"invoicematch/internal/util"
	"invoicematch/internal/workflows"
)

type DocumentStore interface {
	Store(ctx context.Context, content []byte, meta documents.Metadata) (string, error)
}

type AuditLog interface {
	Append(ctx context.Context, ev models.AuditEvent) error
}

type InvoiceReader interface {
	Get(ctx context.Context, transactionID string) (models.ProcessedInvoice, error)
}

type ScoreReader interface {
	ListScores(ctx context.Context, transactionID string) ([]models.LineItemScore, error)
}

type Exporter interface {
	Publish(ctx context.Context, payload export.Payload) error
}

// Workflows is the slice of the job queue the HTTP surface needs.
type Workflows interface {
	Start(ctx context.Context, transactionID, documentID string) (runID string, err error)
	Status(ctx context.Context, transactionID string) (workflows.InvoiceStatus, error)
}

type Deps struct {
	Documents DocumentStore
	Audit     AuditLog
	Invoices  InvoiceReader
	Scores    ScoreReader
	Exporter  Exporter
	Workflows Workflows
}

type Server struct {
	cfg config.APIConfig
	Deps
	log *zap.Logger
	now func() time.Time
}

func NewServer(cfg config.APIConfig, deps Deps, log *zap.Logger) *Server {
	return &Server{cfg: cfg, Deps: deps, log: log.Named("api"), now: time.Now}
}

type submitForm struct {
	TransactionID string                `form:"transaction_id" binding:"required,max=128"`
	File          *multipart.FileHeader `form:"file" binding:"required"`
}

type transactionURI struct {
	TransactionID string `uri:"transactionId" binding:"required,max=128"`
}

func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = s.cfg.MaxUploadBytes
	r.Use(gin.Recovery(), s.requestLog(), withCORS())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.POST("/invoices", s.handleSubmit)
	r.GET("/invoices/:transactionId/status", s.handleStatus)
	r.POST("/invoices/:transactionId/export", s.handleExport)
	return r
}

// handleSubmit stores the uploaded PDF, records ENQUEUED and starts the
// pipeline for the transaction.
func (s *Server) handleSubmit(c *gin.Context) {
	var form submitForm
	if err := c.ShouldBind(&form); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	tx := strings.TrimSpace(form.TransactionID)
	if tx == "" {
		writeErr(c, http.StatusBadRequest, fmt.Errorf("%w: transaction_id is blank", util.ErrInput))
		return
	}
	if s.cfg.MaxUploadBytes > 0 && form.File.Size > s.cfg.MaxUploadBytes {
		writeErr(c, http.StatusRequestEntityTooLarge, fmt.Errorf("%w: upload of %d bytes", util.ErrInput, form.File.Size))
		return
	}
	content, err := readUpload(form.File)
	if err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	if _, err := redaction.PageSizes(content); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	ctx := c.Request.Context()
	sum := util.SHA256Hex(content)

	docID, err := s.Documents.Store(ctx, content, documents.Metadata{
		FileName: "invoice_" + tx + ".pdf",
		MimeType: "application/pdf",
	})
	if err != nil {
		s.log.Error("document upload failed", zap.String("transaction_id", tx), zap.Error(err))
		s.audit(ctx, models.AuditEvent{
			TransactionID: tx,
			Action:        models.ActionUploadError,
			Payload:       jsonPayload(map[string]any{"error": err.Error(), "sha256": sum}),
		})
		writeErr(c, http.StatusBadGateway, err)
		return
	}
	s.audit(ctx, models.AuditEvent{
		TransactionID: tx,
		Action:        models.StateEnqueued,
		DocumentID:    docID,
		Payload:       jsonPayload(map[string]any{"document_id": docID, "sha256": sum}),
	})

	runID, err := s.Workflows.Start(ctx, tx, docID)
	if err != nil {
		if errors.Is(err, ErrAlreadyEnqueued) {
			writeErr(c, http.StatusConflict, err)
			return
		}
		s.log.Error("start workflow failed", zap.String("transaction_id", tx), zap.Error(err))
		writeErr(c, http.StatusInternalServerError, err)
		return
	}
	s.log.Info("invoice enqueued", zap.String("transaction_id", tx), zap.String("document_id", docID), zap.String("run_id", runID))
	c.JSON(http.StatusAccepted, gin.H{
		"transaction_id": tx,
		"document_id":    docID,
		"workflow_id":    workflows.WorkflowID(tx),
		"run_id":         runID,
		"state":          models.StateEnqueued,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	var uri transactionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	st, err := s.Workflows.Status(c.Request.Context(), uri.TransactionID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			writeErr(c, http.StatusNotFound, err)
			return
		}
		writeErr(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// handleExport publishes the valid line items of a processed invoice.
func (s *Server) handleExport(c *gin.Context) {
	var uri transactionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	ctx := c.Request.Context()
	inv, err := s.Invoices.Get(ctx, uri.TransactionID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			writeErr(c, http.StatusNotFound, err)
			return
		}
		writeErr(c, http.StatusInternalServerError, err)
		return
	}
	scores, err := s.Scores.ListScores(ctx, uri.TransactionID)
	if err != nil {
		writeErr(c, http.StatusInternalServerError, err)
		return
	}
	payload := export.BuildPayload(inv, scores, s.now())
	if err := s.Exporter.Publish(ctx, payload); err != nil {
		s.log.Error("export publish failed", zap.String("transaction_id", uri.TransactionID), zap.Error(err))
		writeErr(c, http.StatusBadGateway, err)
		return
	}
	s.audit(ctx, models.AuditEvent{
		TransactionID: inv.TransactionID,
		Action:        models.ActionExport,
		InvoiceNumber: inv.InvoiceNumber,
		DocumentID:    inv.DocumentID,
		Payload:       jsonPayload(map[string]any{"products": len(payload.ClassificationResult.Products)}),
	})
	c.JSON(http.StatusOK, payload)
}

// audit is best-effort; the request outcome never depends on it.
func (s *Server) audit(ctx context.Context, ev models.AuditEvent) {
	if err := s.Audit.Append(ctx, ev); err != nil {
		metrics.AuditFailuresTotal.WithLabelValues(ev.Action).Inc()
		s.log.Warn("audit write failed",
			zap.String("transaction_id", ev.TransactionID),
			zap.String("action", ev.Action),
			zap.Error(err))
	}
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open upload: %v", util.ErrInput, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %v", util.ErrInput, err)
	}
	return b, nil
}

func jsonPayload(v map[string]any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func withCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
