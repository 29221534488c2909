package runlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDynamoDBClient struct {
	putErr     error
	putInputs  []*dynamodb.PutItemInput
	deleteKeys []string
}

func (m *mockDynamoDBClient) PutItem(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInputs = append(m.putInputs, input)
	if m.putErr != nil {
		return nil, m.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDynamoDBClient) DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if pk, ok := input.Key["PK"].(*ddbtypes.AttributeValueMemberS); ok {
		m.deleteKeys = append(m.deleteKeys, pk.Value)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func newTestLock(t *testing.T, mock *mockDynamoDBClient) *DynamoDBLock {
	t.Helper()
	l, err := NewDynamoDBLock(context.Background(), "songflow-locks", "songflow", "us-east-1",
		WithDynamoDBClient(mock),
		WithLeaseTTL(10*time.Minute),
		WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }),
	)
	require.NoError(t, err)
	return l
}

func TestDynamoDBLock_RequiresTableName(t *testing.T) {
	_, err := NewDynamoDBLock(context.Background(), "", "songflow", "us-east-1")
	assert.Error(t, err)
}

func TestDynamoDBLock_AcquireWritesLease(t *testing.T) {
	mock := &mockDynamoDBClient{}
	l := newTestLock(t, mock)

	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, mock.putInputs, 1)
	in := mock.putInputs[0]
	assert.Equal(t, "songflow-locks", aws.ToString(in.TableName))
	assert.Equal(t, "attribute_not_exists(PK) OR #ttl < :now", aws.ToString(in.ConditionExpression))

	pk := in.Item["PK"].(*ddbtypes.AttributeValueMemberS)
	assert.Equal(t, "LOCK#songflow", pk.Value)
	ttl := in.Item["ttl"].(*ddbtypes.AttributeValueMemberN)
	assert.Equal(t, "1700000600", ttl.Value) // now + 10 minutes
}

func TestDynamoDBLock_HeldLeaseIsNotAnError(t *testing.T) {
	mock := &mockDynamoDBClient{putErr: &ddbtypes.ConditionalCheckFailedException{}}
	l := newTestLock(t, mock)

	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDynamoDBLock_AcquireErrorPropagates(t *testing.T) {
	mock := &mockDynamoDBClient{putErr: errors.New("throttled")}
	l := newTestLock(t, mock)

	_, err := l.Acquire(context.Background())
	assert.ErrorContains(t, err, "throttled")
}

func TestDynamoDBLock_ReleaseDeletesLease(t *testing.T) {
	mock := &mockDynamoDBClient{}
	l := newTestLock(t, mock)

	require.NoError(t, l.Release(context.Background()))
	assert.Equal(t, []string{"LOCK#songflow"}, mock.deleteKeys)
}
