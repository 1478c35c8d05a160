package lock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/imrishuroy/salesmail-ingest/internal/aws"
)

// DynamoLocker holds a named lease row in a DynamoDB table.
// A row whose lease has expired may be taken over, so a crashed holder
// blocks other runs for at most one lease.
type DynamoLocker struct {
	client        aws.DynamoDBAPI
	tableName     string
	name          string
	lease         time.Duration
	retryInterval time.Duration
	nowFunc       func() time.Time

	mu    sync.Mutex
	owner string
}

// NewDynamoLocker returns a locker for the row lock_id = name.
// lease should exceed the longest run.
func NewDynamoLocker(client aws.DynamoDBAPI, tableName, name string, lease time.Duration) *DynamoLocker {
	return &DynamoLocker{
		client:        client,
		tableName:     tableName,
		name:          name,
		lease:         lease,
		retryInterval: defaultRetryInterval,
		nowFunc:       time.Now,
	}
}

// TryAcquire implements Locker.
func (l *DynamoLocker) TryAcquire(ctx context.Context, timeout time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner != "" {
		return false, nil
	}
	owner := uuid.NewString()
	ok, err := retry(ctx, timeout, l.retryInterval, l.nowFunc, func() (bool, error) {
		return l.put(ctx, owner)
	})
	if ok {
		l.owner = owner
	}
	return ok, err
}

func (l *DynamoLocker) put(ctx context.Context, owner string) (bool, error) {
	now := l.nowFunc()
	item, err := attributevalue.MarshalMap(Record{
		LockID:     l.name,
		Owner:      owner,
		AcquiredAt: now,
		ExpiresAt:  now.Add(l.lease).Unix(),
	})
	if err != nil {
		return false, fmt.Errorf("marshal lock record: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &l.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(lock_id) OR expires_at < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("put lock %s: %w", l.name, err)
	}
	return true, nil
}

// Release implements Locker. The row is deleted only if this locker still owns it.
func (l *DynamoLocker) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner == "" {
		return ErrNotHeld
	}
	owner := l.owner
	l.owner = ""

	_, err := l.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &l.tableName,
		Key: map[string]types.AttributeValue{
			"lock_id": &types.AttributeValueMemberS{Value: l.name},
		},
		ConditionExpression:      awsString("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{"#owner": "owner"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrNotHeld
		}
		return fmt.Errorf("delete lock %s: %w", l.name, err)
	}
	return nil
}

func isConditionFailed(err error) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }
