package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/shopkit/order-lifecycle/internal/audit"
	"github.com/shopkit/order-lifecycle/internal/awsx"
	"github.com/shopkit/order-lifecycle/internal/config"
	"github.com/shopkit/order-lifecycle/internal/confirm"
	"github.com/shopkit/order-lifecycle/internal/coupons"
	"github.com/shopkit/order-lifecycle/internal/gateway"
	"github.com/shopkit/order-lifecycle/internal/handlers"
	"github.com/shopkit/order-lifecycle/internal/idempotency"
	"github.com/shopkit/order-lifecycle/internal/inventory"
	"github.com/shopkit/order-lifecycle/internal/lifecycle"
	"github.com/shopkit/order-lifecycle/internal/metrics"
	"github.com/shopkit/order-lifecycle/internal/notify"
	"github.com/shopkit/order-lifecycle/internal/orders"
)

func setupRouter(cfg handlers.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterRoutes(r, cfg)

	return r
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if os.Getenv("RUN_LOCAL") == "true" {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	clients, err := awsx.NewClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	orderStore := orders.NewStore(clients.DynamoDB, cfg.OrdersTable)
	ledger := idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.ClaimTTL, cfg.ClaimStaleAfter)
	stock := inventory.NewStore(clients.DynamoDB, cfg.StockTable, cfg.LowStockThreshold)
	couponStore := coupons.NewStore(clients.DynamoDB, cfg.CouponsTable)
	auditLog := audit.NewLog(clients.DynamoDB, cfg.AuditTable, logger)

	emailer := notify.NewEmailQueuePublisher(awsx.NewPublisher(clients.SQS, cfg.EmailQueueURL))
	alerter := notify.NewAlertQueuePublisher(awsx.NewPublisher(clients.SQS, cfg.AlertQueueURL))
	emitter := metrics.NewEmitter(clients.CloudWatch, cfg.MetricsNamespace, logger)

	gw := gateway.NewClient(cfg.GatewayName, cfg.GatewayBaseURL, cfg.GatewayAccessToken, cfg.GatewayTimeout, logger)
	tokens := confirm.NewSigner(cfg.ConfirmSecret, cfg.ConfirmTTL)

	orch := lifecycle.NewOrchestrator(orderStore, stock, couponStore, emailer, alerter, auditLog, logger)
	pipeline := lifecycle.NewPipeline(gw, tokens, orderStore, ledger, orch, auditLog, emitter, logger)

	r := setupRouter(handlers.Config{
		Pipeline: pipeline,
		Provider: cfg.GatewayName,
		Logger:   logger,
	})

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		addr := ":8080"
		log.Printf("running local server on %s", addr)
		if err := r.Run(addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
