package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// legacyCartCond matches users whose cart is missing or not a map
// (older records stored the cart as a list).
const legacyCartCond = "attribute_exists(#id) AND (attribute_not_exists(#c) OR NOT attribute_type(#c, :m))"

// MigrateLegacyCarts rewrites every missing or list-shaped cart as an empty map.
// Each rewrite is conditional on the cart still being legacy, so it never
// clobbers a cart written concurrently by AddCartItem. Returns the number of
// users migrated.
func MigrateLegacyCarts(ctx context.Context, client *dynamodb.Client, tableName string) (int, error) {
	names := map[string]string{"#id": fieldUserID, "#c": fieldCart}
	input := &dynamodb.ScanInput{
		TableName:                aws.String(tableName),
		ProjectionExpression:     aws.String("#id"),
		FilterExpression:         aws.String("attribute_not_exists(#c) OR NOT attribute_type(#c, :m)"),
		ExpressionAttributeNames: names,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":m": strVal("M"),
		},
	}
	migrated := 0
	paginator := dynamodb.NewScanPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return migrated, fmt.Errorf("scan legacy carts: %w", err)
		}
		for _, item := range page.Items {
			idAV, ok := item[fieldUserID].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			_, err := client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
				TableName:                aws.String(tableName),
				Key:                      strKey(fieldUserID, idAV.Value),
				UpdateExpression:         aws.String("SET #c = :empty, #u = :now"),
				ConditionExpression:      aws.String(legacyCartCond),
				ExpressionAttributeNames: map[string]string{"#id": fieldUserID, "#c": fieldCart, "#u": fieldUpdatedAt},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":empty": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}},
					":m":     strVal("M"),
					":now":   strVal(time.Now().UTC().Format(time.RFC3339Nano)),
				},
			})
			if isConditionFailed(err) {
				continue
			}
			if err != nil {
				return migrated, fmt.Errorf("migrate cart for %s: %w", idAV.Value, err)
			}
			migrated++
		}
	}
	if migrated > 0 {
		slog.Info("migrated legacy carts", "table", tableName, "count", migrated)
	}
	return migrated, nil
}
