package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"

	"github.com/shopkit/order-lifecycle/internal/awsx"
)

// Action tags for audit entries.
const (
	ActionEventProcessed   = "event_processed"
	ActionEventDuplicate   = "event_duplicate"
	ActionEventRejected    = "event_rejected"
	ActionSideEffectFailed = "side_effect_failed"
	ActionOrderConfirmed   = "order_confirmed"
)

// Entry is the append-only record written for every inbound event.
type Entry struct {
	EntryID    string            `dynamodbav:"entry_id"` // PK
	Action     string            `dynamodbav:"action"`
	EntityType string            `dynamodbav:"entity_type"`
	EntityID   string            `dynamodbav:"entity_id"`
	Metadata   map[string]string `dynamodbav:"metadata,omitempty"`
	CreatedAt  time.Time         `dynamodbav:"created_at"`
}

// Log appends entries to the audit table. Writes are fire-and-forget:
// a failed append is logged and never blocks the primary transition.
type Log struct {
	client    awsx.DynamoDBAPI
	tableName string
	logger    *slog.Logger
	nowFunc   func() time.Time
}

// NewLog creates an audit Log.
func NewLog(client awsx.DynamoDBAPI, tableName string, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		client:    client,
		tableName: tableName,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// Record appends an audit entry. Errors are swallowed after logging;
// the audit trail is diagnostic, not authoritative.
func (l *Log) Record(ctx context.Context, action, entityType, entityID string, metadata map[string]string) {
	entry := Entry{
		EntryID:    uuid.NewString(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   metadata,
		CreatedAt:  l.nowFunc(),
	}

	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		l.logger.ErrorContext(ctx, "audit entry marshal failed", "action", action, "entity_id", entityID, "err", err)
		return
	}

	if _, err := l.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &l.tableName,
		Item:      item,
	}); err != nil {
		l.logger.ErrorContext(ctx, "audit entry write failed", "action", action, "entity_id", entityID, "err", err)
	}
}
