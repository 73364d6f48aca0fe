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

// cartAddAttempts bounds retries when concurrent writers keep changing the cart shape.
const cartAddAttempts = 3

// AddCartItem increments the entry for (ProductID, Size) by e.Quantity,
// creating the entry or the whole cart map when missing. Each step is a single
// conditional write so concurrent adds never lose quantity.
func (r *UserRepo) AddCartItem(ctx context.Context, userID string, e domain.CartEntry) error {
	key := domain.CartKey(e.ProductID, e.Size)
	entryAV, err := attributevalue.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal cart entry: %w", err)
	}
	freshAV, err := attributevalue.Marshal(domain.Cart{key: e})
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	names := map[string]string{
		"#id": fieldUserID, "#c": fieldCart, "#k": key, "#q": fieldQuantity, "#u": fieldUpdatedAt,
	}

	for attempt := 0; attempt < cartAddAttempts; attempt++ {
		now := strVal(time.Now().UTC().Format(time.RFC3339Nano))

		// Existing entry: bump quantity.
		err := r.cartUpdate(ctx, userID,
			"SET #c.#k.#q = #c.#k.#q + :q, #u = :now",
			"attribute_exists(#c.#k)",
			names,
			map[string]types.AttributeValue{
				":q":   &types.AttributeValueMemberN{Value: fmt.Sprint(e.Quantity)},
				":now": now,
			})
		if !isConditionFailed(err) {
			return err
		}

		// Cart map exists, entry does not.
		err = r.cartUpdate(ctx, userID,
			"SET #c.#k = :e, #u = :now",
			"attribute_exists(#id) AND attribute_type(#c, :m) AND attribute_not_exists(#c.#k)",
			names,
			map[string]types.AttributeValue{":e": entryAV, ":m": strVal("M"), ":now": now})
		if !isConditionFailed(err) {
			return err
		}

		// No cart, or a legacy non-map cart: start a fresh map.
		err = r.cartUpdate(ctx, userID,
			"SET #c = :fresh, #u = :now",
			"attribute_exists(#id) AND NOT attribute_type(#c, :m)",
			names,
			map[string]types.AttributeValue{":fresh": freshAV, ":m": strVal("M"), ":now": now})
		if !isConditionFailed(err) {
			return err
		}

		if _, err := r.GetCart(ctx, userID); err != nil {
			return err
		}
	}
	return fmt.Errorf("add to cart: concurrent updates on %s: %w", key, domain.ErrConflict)
}

// RemoveCartItem deletes one entry. Fails with ErrNotFound when absent.
func (r *UserRepo) RemoveCartItem(ctx context.Context, userID, key string) error {
	err := r.cartUpdate(ctx, userID,
		"REMOVE #c.#k SET #u = :now",
		"attribute_exists(#c.#k)",
		map[string]string{"#c": fieldCart, "#k": key, "#u": fieldUpdatedAt},
		map[string]types.AttributeValue{":now": strVal(time.Now().UTC().Format(time.RFC3339Nano))})
	if isConditionFailed(err) {
		return fmt.Errorf("cart item %s %w", key, domain.ErrNotFound)
	}
	return err
}

// ClearCart replaces the cart with an empty map.
func (r *UserRepo) ClearCart(ctx context.Context, userID string) error {
	err := r.cartUpdate(ctx, userID,
		"SET #c = :empty, #u = :now",
		"attribute_exists(#id)",
		map[string]string{"#id": fieldUserID, "#c": fieldCart, "#u": fieldUpdatedAt},
		map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}},
			":now":   strVal(time.Now().UTC().Format(time.RFC3339Nano)),
		})
	if isConditionFailed(err) {
		return fmt.Errorf("user %w", domain.ErrNotFound)
	}
	return err
}

// GetCart reads only the cart attribute of the user item.
func (r *UserRepo) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(fieldUserID, userID),
		ProjectionExpression:     aws.String("#id, #c"),
		ExpressionAttributeNames: map[string]string{"#id": fieldUserID, "#c": fieldCart},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user %w", domain.ErrNotFound)
	}
	return decodeCart(out.Item[fieldCart])
}

func (r *UserRepo) cartUpdate(ctx context.Context, userID, update, cond string, names map[string]string, values map[string]types.AttributeValue) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  usedNames(names, update+" "+cond),
		ExpressionAttributeValues: values,
	})
	return err
}

// decodeCart turns the stored attribute into a Cart. Missing or legacy
// (list-shaped) carts decode as empty.
func decodeCart(av types.AttributeValue) (domain.Cart, error) {
	m, ok := av.(*types.AttributeValueMemberM)
	if !ok {
		return domain.Cart{}, nil
	}
	cart := domain.Cart{}
	if err := attributevalue.UnmarshalMap(m.Value, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return cart, nil
}
