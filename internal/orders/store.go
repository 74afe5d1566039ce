package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/shopkit/order-lifecycle/internal/awsx"
)

// ErrStatusMismatch indicates the conditional status update lost to a
// concurrent transition (the order was no longer in the expected state).
var ErrStatusMismatch = errors.New("status mismatch/conditional failed")

// ErrPaymentRefConflict indicates the order already carries a different
// provider payment reference. The reference is set at most once.
var ErrPaymentRefConflict = errors.New("payment reference conflict")

// Store encapsulates operations on the orders table.
type Store struct {
	client    awsx.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client awsx.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// StatusUpdate describes the fields a transition writes onto an order.
// PaymentRef, when non-empty, is written set-once: the update fails with
// ErrPaymentRefConflict if the order already has a different reference.
type StatusUpdate struct {
	OrderStatus   OrderStatus
	PaymentStatus PaymentStatus
	PaymentRef    string
	ReceivedAt    *time.Time
}

// ApplyTransition conditionally moves an order from the expected status pair
// to the new one. The condition guards against concurrent transitions on the
// same order interleaving into an invalid state.
func (s *Store) ApplyTransition(ctx context.Context, orderID string, expectedOrder OrderStatus, expectedPayment PaymentStatus, upd StatusUpdate) error {
	now := s.nowFunc()

	updateExpr := "SET order_status = :no, payment_status = :np, updated_at = :ua"
	condExpr := "order_status = :eo AND payment_status = :ep"
	values := map[string]types.AttributeValue{
		":no": &types.AttributeValueMemberS{Value: string(upd.OrderStatus)},
		":np": &types.AttributeValueMemberS{Value: string(upd.PaymentStatus)},
		":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		":eo": &types.AttributeValueMemberS{Value: string(expectedOrder)},
		":ep": &types.AttributeValueMemberS{Value: string(expectedPayment)},
	}

	if upd.PaymentRef != "" {
		updateExpr += ", payment_ref = :pr"
		condExpr += " AND (attribute_not_exists(payment_ref) OR payment_ref = :pr)"
		values[":pr"] = &types.AttributeValueMemberS{Value: upd.PaymentRef}
	}
	if upd.ReceivedAt != nil {
		updateExpr += ", received_at = :ra"
		values[":ra"] = &types.AttributeValueMemberS{Value: upd.ReceivedAt.Format(time.RFC3339)}
	}

	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:          &updateExpr,
		ConditionExpression:       &condExpr,
		ExpressionAttributeValues: values,
	}

	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var sc *types.ConditionalCheckFailedException
		if errors.As(err, &sc) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}
