package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBAPI is the subset of the DynamoDB client used by DynamoDBLock.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DefaultLeaseTTL bounds how long a crashed run can block the next one.
const DefaultLeaseTTL = 30 * time.Minute

// Compile-time interface satisfaction check.
var _ Locker = (*DynamoDBLock)(nil)

// DynamoDBLock is an externally leased lock backed by a conditional PutItem:
// it succeeds only when no lock item exists or the existing lease expired.
type DynamoDBLock struct {
	client    DynamoDBAPI
	tableName string
	key       string
	ttl       time.Duration
	now       func() time.Time
}

// DynamoDBLockOption configures a DynamoDBLock.
type DynamoDBLockOption func(*DynamoDBLock)

// WithDynamoDBClient sets a custom DynamoDB client (useful for testing).
func WithDynamoDBClient(c DynamoDBAPI) DynamoDBLockOption {
	return func(l *DynamoDBLock) { l.client = c }
}

// WithLeaseTTL overrides the lease duration.
func WithLeaseTTL(ttl time.Duration) DynamoDBLockOption {
	return func(l *DynamoDBLock) { l.ttl = ttl }
}

// WithClock sets the clock (useful for testing).
func WithClock(now func() time.Time) DynamoDBLockOption {
	return func(l *DynamoDBLock) { l.now = now }
}

// NewDynamoDBLock creates a lock in the given table keyed by pipeline name.
func NewDynamoDBLock(ctx context.Context, tableName, pipeline, region string, opts ...DynamoDBLockOption) (*DynamoDBLock, error) {
	if tableName == "" {
		return nil, fmt.Errorf("lock table name required")
	}
	l := &DynamoDBLock{
		tableName: tableName,
		key:       "LOCK#" + pipeline,
		ttl:       DefaultLeaseTTL,
		now:       time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	if l.client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		l.client = dynamodb.NewFromConfig(cfg)
	}
	return l, nil
}

// Acquire attempts to take the lease with a conditional PutItem that
// succeeds only if the lock doesn't exist or has expired.
func (l *DynamoDBLock) Acquire(ctx context.Context) (bool, error) {
	now := fmt.Sprintf("%d", l.now().Unix())
	expires := fmt.Sprintf("%d", l.now().Add(l.ttl).Unix())

	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item: map[string]ddbtypes.AttributeValue{
			"PK":  &ddbtypes.AttributeValueMemberS{Value: l.key},
			"ttl": &ddbtypes.AttributeValueMemberN{Value: expires},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK) OR #ttl < :now"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": "ttl",
		},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":now": &ddbtypes.AttributeValueMemberN{Value: now},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("acquiring lock %s: %w", l.key, err)
	}
	return true, nil
}

// Release deletes the lease item.
func (l *DynamoDBLock) Release(ctx context.Context) error {
	_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: l.key},
		},
	})
	if err != nil {
		return fmt.Errorf("releasing lock %s: %w", l.key, err)
	}
	return nil
}

func isConditionalCheckFailed(err error) bool {
	var ccf *ddbtypes.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
