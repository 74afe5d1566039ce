package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/shopkit/order-lifecycle/internal/awsx"
)

// Store encapsulates stock-quantity operations on the stock table.
// One row per variant, keyed by variant_id, with a numeric quantity.
type Store struct {
	client    awsx.DynamoDBAPI
	tableName string
	threshold int
	nowFunc   func() time.Time
}

// NewStore creates a stock Store. threshold is the low-stock alert level.
func NewStore(client awsx.DynamoDBAPI, tableName string, threshold int) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		threshold: threshold,
		nowFunc:   time.Now,
	}
}

// Threshold returns the configured low-stock level.
func (s *Store) Threshold() int { return s.threshold }

// Decrement reduces a variant's stock by qty, floored at zero, and returns the
// remaining quantity. The subtraction is conditional on sufficient stock; when
// the condition fails the quantity is clamped to zero instead of going negative.
func (s *Store) Decrement(ctx context.Context, variantID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("quantity must be positive, got %d", qty)
	}
	now := s.nowFunc()
	key := map[string]types.AttributeValue{
		"variant_id": &types.AttributeValueMemberS{Value: variantID},
	}

	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 key,
		UpdateExpression:    awsString("SET quantity = quantity - :q, updated_at = :ua"),
		ConditionExpression: awsString("quantity >= :q"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":q":  &types.AttributeValueMemberN{Value: strconv.Itoa(qty)},
			":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var sc *types.ConditionalCheckFailedException
		if !errors.As(err, &sc) {
			return 0, fmt.Errorf("decrement stock: %w", err)
		}
		// Not enough stock to subtract in full: clamp to zero.
		_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
			TableName:        &s.tableName,
			Key:              key,
			UpdateExpression: awsString("SET quantity = :zero, updated_at = :ua"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":zero": &types.AttributeValueMemberN{Value: "0"},
				":ua":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			},
		})
		if err != nil {
			return 0, fmt.Errorf("clamp stock to zero: %w", err)
		}
		return 0, nil
	}

	return remainingQuantity(out.Attributes)
}

func remainingQuantity(attrs map[string]types.AttributeValue) (int, error) {
	n, ok := attrs["quantity"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("quantity attribute missing from update response")
	}
	q, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("parse quantity: %w", err)
	}
	return q, nil
}

func awsString(s string) *string { return &s }
