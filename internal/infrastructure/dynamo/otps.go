package dynamo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/storefront-api/internal/domain"
)

// OTPRepo stores one-time passwords.
// PK: email, SK: purpose. Expired items are purged by DynamoDB TTL on expires_at.
type OTPRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOTPRepo(client *dynamodb.Client, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

// Put writes the record, replacing any previous code for the same key.
func (r *OTPRepo) Put(ctx context.Context, rec *domain.OTPRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *OTPRepo) Get(ctx context.Context, email string, purpose domain.OTPPurpose) (*domain.OTPRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            r.key(email, purpose),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, domain.ErrOTPNotFound
	}
	var rec domain.OTPRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *OTPRepo) Delete(ctx context.Context, email string, purpose domain.OTPPurpose) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       r.key(email, purpose),
	})
	return err
}

// MarkVerified flags the record as verified for the code it currently holds.
// A re-issue between read and write changes the code and fails the condition.
func (r *OTPRepo) MarkVerified(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      r.key(email, purpose),
		UpdateExpression:         aws.String("SET #v = :t"),
		ConditionExpression:      aws.String("#c = :code"),
		ExpressionAttributeNames: map[string]string{"#v": fieldVerified, "#c": "code"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":    &types.AttributeValueMemberBOOL{Value: true},
			":code": strVal(code),
		},
	})
	if isConditionFailed(err) {
		return domain.ErrOTPNotFound
	}
	return err
}

// IncrementAttempts atomically bumps the failed-attempt counter and returns the new value.
func (r *OTPRepo) IncrementAttempts(ctx context.Context, email string, purpose domain.OTPPurpose) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       r.key(email, purpose),
		UpdateExpression:          aws.String("ADD #a :one"),
		ConditionExpression:       aws.String("attribute_exists(#e)"),
		ExpressionAttributeNames:  map[string]string{"#a": fieldAttempts, "#e": fieldEmail},
		ExpressionAttributeValues: map[string]types.AttributeValue{":one": &types.AttributeValueMemberN{Value: "1"}},
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if isConditionFailed(err) {
		return 0, domain.ErrOTPNotFound
	}
	if err != nil {
		return 0, err
	}
	n, ok := out.Attributes[fieldAttempts].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attempts missing from update result")
	}
	return strconv.Atoi(n.Value)
}

func (r *OTPRepo) key(email string, purpose domain.OTPPurpose) map[string]types.AttributeValue {
	return compositeKey(fieldEmail, email, fieldPurpose, string(purpose))
}
