package dynamo

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/storefront-api/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table.
// The cart and wishlist live on the same item; see carts.go.
type UserRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewUserRepo(client *dynamodb.Client, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

// Put creates a user. Fails with ErrConflict if the user_id is taken.
func (r *UserRepo) Put(ctx context.Context, u *domain.User) error {
	if u.Cart == nil {
		u.Cart = domain.Cart{}
	}
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": fieldUserID},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("user %s already exists: %w", u.UserID, domain.ErrConflict)
	}
	return err
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldUserID, userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user %w", domain.ErrNotFound)
	}
	return unmarshalUser(out.Item)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.queryEmail(ctx, email, "")
}

// GetCredentials reads only what login needs, skipping the cart and wishlist.
func (r *UserRepo) GetCredentials(ctx context.Context, email string) (*domain.User, error) {
	return r.queryEmail(ctx, email, "user_id, email, password_hash, first_name, last_name")
}

// Update sets the given fields and stamps updated_at. Fails with ErrNotFound
// when the user does not exist.
func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#id"] = fieldUserID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("user %w", domain.ErrNotFound)
	}
	return err
}

// Wishlist returns the user's saved product ids, sorted.
func (r *UserRepo) Wishlist(ctx context.Context, userID string) ([]string, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(fieldUserID, userID),
		ProjectionExpression:     aws.String("#id, #w"),
		ExpressionAttributeNames: map[string]string{"#id": fieldUserID, "#w": fieldWishlist},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	slices.Sort(u.Wishlist)
	if u.Wishlist == nil {
		u.Wishlist = []string{}
	}
	return u.Wishlist, nil
}

// ToggleWishlist adds productID to the wishlist set, or removes it when
// already present. Returns true when the product was added.
func (r *UserRepo) ToggleWishlist(ctx context.Context, userID, productID string) (bool, error) {
	current, err := r.Wishlist(ctx, userID)
	if err != nil {
		return false, err
	}
	added := !slices.Contains(current, productID)
	action := "ADD"
	if !added {
		action = "DELETE"
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(fieldUserID, userID),
		UpdateExpression:         aws.String(action + " #w :p SET #u = :now"),
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#w": fieldWishlist, "#u": fieldUpdatedAt, "#id": fieldUserID},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p":   &types.AttributeValueMemberSS{Value: []string{productID}},
			":now": strVal(time.Now().UTC().Format(time.RFC3339Nano)),
		},
	})
	if isConditionFailed(err) {
		return false, fmt.Errorf("user %w", domain.ErrNotFound)
	}
	if err != nil {
		return false, err
	}
	return added, nil
}

func (r *UserRepo) queryEmail(ctx context.Context, email, projection string) (*domain.User, error) {
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexEmail),
		KeyConditionExpression:    aws.String("email = :v"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": strVal(email)},
		Limit:                     aws.Int32(1),
	}
	if projection != "" {
		input.ProjectionExpression = aws.String(projection)
	}
	out, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("user %w", domain.ErrNotFound)
	}
	return unmarshalUser(out.Items[0])
}

// unmarshalUser decodes a user item. A legacy list-shaped cart decodes as empty.
func unmarshalUser(item map[string]types.AttributeValue) (*domain.User, error) {
	cartAV, hasCart := item[fieldCart]
	if hasCart {
		item = maps.Clone(item)
		delete(item, fieldCart)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	cart, err := decodeCart(cartAV)
	if err != nil {
		return nil, err
	}
	u.Cart = cart
	return &u, nil
}
