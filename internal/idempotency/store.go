package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/shopkit/order-lifecycle/internal/awsx"
)

// Store encapsulates idempotency operations against DynamoDB.
type Store struct {
	client     awsx.DynamoDBAPI
	tableName  string
	ttlWindow  time.Duration // TTL window for ledger entries
	staleAfter time.Duration // IN_PROGRESS older than this may be re-claimed
	nowFunc    func() time.Time
}

// NewStore returns a configured Store.
func NewStore(client awsx.DynamoDBAPI, tableName string, ttlWindow, staleAfter time.Duration) *Store {
	return &Store{
		client:     client,
		tableName:  tableName,
		ttlWindow:  ttlWindow,
		staleAfter: staleAfter,
		nowFunc:    time.Now,
	}
}

// claimCondition admits fresh keys, released FAILED claims, and IN_PROGRESS
// claims abandoned by a crashed processor.
const claimCondition = "attribute_not_exists(event_key) OR #s = :failed OR (#s = :inprog AND claimed_at < :stale)"

// Claim attempts to take exclusive ownership of (provider, eventID).
// Exactly one concurrent caller gets claimed=true and proceeds; the rest get
// claimed=false plus the existing record so they can replay its outcome.
func (s *Store) Claim(ctx context.Context, provider, eventID, orderID string) (bool, *Record, error) {
	if eventID == "" {
		return false, nil, fmt.Errorf("event id is required for idempotency claim")
	}

	now := s.nowFunc().UTC().Truncate(time.Second)
	rec := Record{
		EventKey:  Key(provider, eventID),
		Status:    StatusInProgress,
		OrderID:   orderID,
		ClaimedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttlWindow).Unix(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, nil, fmt.Errorf("marshal record: %w", err)
	}

	stale := now.Add(-s.staleAfter)
	input := &dyn.PutItemInput{
		TableName:                &s.tableName,
		Item:                     item,
		ConditionExpression:      awsString(claimCondition),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed": &types.AttributeValueMemberS{Value: StatusFailed},
			":inprog": &types.AttributeValueMemberS{Value: StatusInProgress},
			":stale":  &types.AttributeValueMemberS{Value: stale.Format(time.RFC3339)},
		},
	}

	_, err = s.client.PutItem(ctx, input)
	if err != nil {
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			prior, getErr := s.Get(ctx, provider, eventID)
			if getErr != nil {
				return false, nil, getErr
			}
			return false, prior, nil
		}
		return false, nil, fmt.Errorf("put item: %w", err)
	}

	return true, nil, nil
}

// Get retrieves a ledger record. If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, provider, eventID string) (*Record, error) {
	input := &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"event_key": &types.AttributeValueMemberS{Value: Key(provider, eventID)},
		},
	}
	out, err := s.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &rec, nil
}

// MarkDone commits the claim permanently, storing the outcome so duplicate
// deliveries can return the original response.
func (s *Store) MarkDone(ctx context.Context, provider, eventID, responseBody string, responseStatus int) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"event_key": &types.AttributeValueMemberS{Value: Key(provider, eventID)},
		},
		UpdateExpression: awsString("SET #s = :done, response_body = :rb, response_status = :rs, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":done": &types.AttributeValueMemberS{Value: StatusDone},
			":rb":   &types.AttributeValueMemberS{Value: responseBody},
			":rs":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", responseStatus)},
			":ua":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		return fmt.Errorf("update item (mark done): %w", err)
	}
	return nil
}

// MarkFailed releases the claim so a provider redelivery can reprocess the
// event, keeping a note for diagnostics.
func (s *Store) MarkFailed(ctx context.Context, provider, eventID, note string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"event_key": &types.AttributeValueMemberS{Value: Key(provider, eventID)},
		},
		UpdateExpression: awsString("SET #s = :failed, note = :n, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed": &types.AttributeValueMemberS{Value: StatusFailed},
			":n":      &types.AttributeValueMemberS{Value: note},
			":ua":     &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		return fmt.Errorf("update item (mark failed): %w", err)
	}
	return nil
}

// Helper
func awsString(s string) *string { return &s }
