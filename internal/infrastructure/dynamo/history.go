package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/storefront-api/internal/domain"
)

// HistoryRepo holds paid orders. PK: gateway_order_id,
// GSI user_id-created_at-index for per-user listing.
type HistoryRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewHistoryRepo(client *dynamodb.Client, tableName string) *HistoryRepo {
	return &HistoryRepo{client: client, tableName: tableName}
}

// PutIfAbsent inserts rec unless a record with the same gateway order id
// exists. Returns true only when this call created it.
func (r *HistoryRepo) PutIfAbsent(ctx context.Context, rec *domain.OrderHistoryRecord) (bool, error) {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal order history: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": fieldGatewayOrderID},
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *HistoryRepo) Get(ctx context.Context, gatewayOrderID string) (*domain.OrderHistoryRecord, error) {
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
	var rec domain.OrderHistoryRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByUser returns every paid order of the user, newest first.
func (r *HistoryRepo) ListByUser(ctx context.Context, userID string) ([]domain.OrderHistoryRecord, error) {
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexUserCreatedAt),
		KeyConditionExpression:    aws.String("#u = :u"),
		ExpressionAttributeNames:  map[string]string{"#u": fieldUserID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":u": strVal(userID)},
		ScanIndexForward:          aws.Bool(false),
	}
	records := []domain.OrderHistoryRecord{}
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []domain.OrderHistoryRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		records = append(records, batch...)
	}
	return records, nil
}
