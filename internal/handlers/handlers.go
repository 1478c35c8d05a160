package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/salesmail-ingest/internal/extract"
	"github.com/imrishuroy/salesmail-ingest/internal/logger"
	"github.com/imrishuroy/salesmail-ingest/internal/mailbox"
	"github.com/imrishuroy/salesmail-ingest/internal/sales"
	"github.com/imrishuroy/salesmail-ingest/internal/scan"
	"github.com/imrishuroy/salesmail-ingest/internal/validation"
)

// Runner performs one scan.
type Runner interface {
	Run(ctx context.Context) (scan.Result, error)
}

// MessageStore accepts new candidate threads.
type MessageStore interface {
	Put(ctx context.Context, c mailbox.Candidate) error
}

// RecordLookup finds an already recorded sale.
type RecordLookup interface {
	Get(ctx context.Context, orderID int64) (*sales.SaleRecord, error)
}

// HandlerConfig groups dependencies for the ops routes.
type HandlerConfig struct {
	Runner    Runner
	Extractor scan.Extractor
	Validator *validatorv10.Validate
	Messages  MessageStore // optional; POST /messages is not registered without it
	Records   RecordLookup // optional; POST /extract then reports already recorded orders
}

// RegisterRoutes registers the run, dry-run extraction and ingest routes.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := cfg.Validator
	if v == nil {
		v = validation.New()
	}

	r.POST("/runs", func(c *gin.Context) {
		res, err := cfg.Runner.Run(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "run_failed", "detail": err.Error(), "result": res})
			return
		}
		c.JSON(runStatusCode(res.Status), res)
	})

	r.POST("/extract", func(c *gin.Context) {
		var req validation.ExtractRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		fields, err := cfg.Extractor.Extract(req.Body)
		if errors.Is(err, extract.ErrNotSaleNotification) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "not_sale_notification"})
			return
		}
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "rejected", "reason": err.Error(), "fields": fields})
			return
		}

		rec, err := validation.Validate(v, fields)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "rejected", "reason": err.Error(), "fields": fields})
			return
		}
		resp := gin.H{"fields": fields, "record": rec}
		if cfg.Records != nil {
			existing, err := cfg.Records.Get(c.Request.Context(), rec.OrderID)
			if err != nil {
				logger.Ctx(c.Request.Context()).Error().Err(err).Int64("order_id", rec.OrderID).Msg("lookup sale failed")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
				return
			}
			resp["already_recorded"] = existing != nil
			if existing != nil {
				resp["existing"] = existing
			}
		}
		c.JSON(http.StatusOK, resp)
	})

	if cfg.Messages == nil {
		return
	}
	r.POST("/messages", func(c *gin.Context) {
		var cand mailbox.Candidate
		if err := validation.BindAndValidate(c, &cand, v); err != nil {
			return
		}
		if err := cfg.Messages.Put(c.Request.Context(), cand); err != nil {
			logger.Ctx(c.Request.Context()).Error().Err(err).Str("thread_id", cand.ID).Msg("store message failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"thread_id": cand.ID})
	})
}

func runStatusCode(s scan.Status) int {
	switch s {
	case scan.StatusCompleted:
		return http.StatusOK
	case scan.StatusInterrupted:
		return http.StatusAccepted
	case scan.StatusSkipped:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
