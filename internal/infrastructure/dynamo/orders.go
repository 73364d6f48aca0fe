package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/storefront-api/internal/domain"
)

// PendingOrderRepo holds orders reserved with the gateway but not yet paid.
// PK: gateway_order_id.
type PendingOrderRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewPendingOrderRepo(client *dynamodb.Client, tableName string) *PendingOrderRepo {
	return &PendingOrderRepo{client: client, tableName: tableName}
}

// Put stores a new pending order. Fails with ErrConflict if the gateway id was already used.
func (r *PendingOrderRepo) Put(ctx context.Context, o *domain.PendingOrder) error {
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal pending order: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": fieldGatewayOrderID},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("pending order %s: %w", o.GatewayOrderID, domain.ErrConflict)
	}
	return err
}

func (r *PendingOrderRepo) Get(ctx context.Context, gatewayOrderID string) (*domain.PendingOrder, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldGatewayOrderID, gatewayOrderID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, domain.ErrOrderNotFound
	}
	var o domain.PendingOrder
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// MarkPaid moves a PENDING order to PAID and returns the updated order.
// Fails with ErrConflict when the order is missing or no longer PENDING.
func (r *PendingOrderRepo) MarkPaid(ctx context.Context, gatewayOrderID, paymentID string, at time.Time) (*domain.PendingOrder, error) {
	verifiedAt, err := attributevalue.Marshal(at)
	if err != nil {
		return nil, err
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldGatewayOrderID, gatewayOrderID),
		UpdateExpression:    aws.String("SET #s = :paid, #p = :pid, #va = :va"),
		ConditionExpression: aws.String("#s = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#s": fieldStatus, "#p": fieldPaymentID, "#va": fieldVerifiedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":paid":    strVal(string(domain.OrderStatusPaid)),
			":pending": strVal(string(domain.OrderStatusPending)),
			":pid":     strVal(paymentID),
			":va":      verifiedAt,
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return nil, fmt.Errorf("order %s not pending: %w", gatewayOrderID, domain.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	var o domain.PendingOrder
	if err := attributevalue.UnmarshalMap(out.Attributes, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Delete removes the pending order. Deleting an absent order is not an error.
func (r *PendingOrderRepo) Delete(ctx context.Context, gatewayOrderID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldGatewayOrderID, gatewayOrderID),
	})
	return err
}
