package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopkit/order-lifecycle/internal/lifecycle"
	"github.com/shopkit/order-lifecycle/internal/validation"
)

// EventPipeline is the reconciliation flow the handlers sit on top of.
type EventPipeline interface {
	HandlePaymentNotification(ctx context.Context, paymentID string) lifecycle.WebhookResult
	HandleConfirmation(ctx context.Context, orderID, token string) lifecycle.ConfirmResult
}

// Config groups the handler dependencies.
type Config struct {
	Pipeline EventPipeline
	Provider string // provider name served by the webhook route
	Logger   *slog.Logger
}

// RegisterRoutes mounts the engine's endpoints on the router.
func RegisterRoutes(r *gin.Engine, cfg Config) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	v := validation.New()

	// Payment provider webhook. The resource id arrives either as query
	// parameters (id/topic) or as a JSON body with data.id; embedded status
	// fields are ignored in favor of the authoritative re-fetch.
	r.POST("/webhooks/:provider", func(c *gin.Context) {
		ctx := c.Request.Context()

		provider := c.Param("provider")
		if provider != cfg.Provider {
			logger.WarnContext(ctx, "webhook for unsupported provider", "provider", provider)
			c.JSON(http.StatusOK, lifecycle.WebhookResponse{Received: false})
			return
		}

		topic := c.Query("topic")
		if topic == "" {
			topic = c.Query("type")
		}

		paymentID := c.Query("id")
		if paymentID == "" {
			paymentID = c.Query("data.id")
		}
		if paymentID == "" {
			var note validation.WebhookNotification
			if err := c.ShouldBindJSON(&note); err == nil {
				paymentID = note.Data.ID
				if topic == "" {
					topic = note.Type
				}
			}
		}

		// Non-payment topics (merchant orders, plan updates) are acknowledged
		// and ignored so the provider stops redelivering them.
		if topic != "" && topic != "payment" {
			c.JSON(http.StatusOK, lifecycle.WebhookResponse{Received: false})
			return
		}

		if paymentID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_payment_id"})
			return
		}

		res := cfg.Pipeline.HandlePaymentNotification(ctx, paymentID)
		if res.RawBody != "" {
			c.Data(res.HTTPStatus, "application/json", []byte(res.RawBody))
			return
		}
		c.JSON(res.HTTPStatus, res.Body)
	})

	confirmHandler := func(c *gin.Context) {
		ctx := c.Request.Context()
		orderID := c.Param("id")

		var req validation.ConfirmRequest
		if c.Request.Method == http.MethodGet {
			req.Token = c.Query("token")
			if req.Token == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "missing_token"})
				return
			}
		} else if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		res := cfg.Pipeline.HandleConfirmation(ctx, orderID, req.Token)
		c.JSON(res.HTTPStatus, gin.H{"status": res.Status, "message": res.Message})
	}

	// Browser-clicked links arrive as GET with the token in the query;
	// programmatic callers POST a JSON body.
	r.GET("/orders/:id/confirm", confirmHandler)
	r.POST("/orders/:id/confirm", confirmHandler)
}
