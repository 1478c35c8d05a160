package sales

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/salesmail-ingest/internal/aws"
)

// Store encapsulates operations on the sales table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new sales Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Ping verifies the table exists and is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dyn.DescribeTableInput{TableName: &s.tableName})
	if err != nil {
		return fmt.Errorf("describe table %s: %w", s.tableName, err)
	}
	return nil
}

// Append writes one sale. The put is conditional on the order id being absent,
// so a concurrent or replayed write returns ErrDuplicate instead of overwriting.
func (s *Store) Append(ctx context.Context, rec SaleRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = s.nowFunc()
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal sale: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(order_id)"),
	})
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException" {
			return ErrDuplicate
		}
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// OrderIDs returns the raw order_id cell of every row. Numeric and string cells are
// returned as text; any other attribute type comes back as an empty string.
func (s *Store) OrderIDs(ctx context.Context) ([]string, error) {
	p := dyn.NewScanPaginator(s.client, &dyn.ScanInput{
		TableName:            &s.tableName,
		ProjectionExpression: awsString("order_id"),
	})

	var out []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan order ids: %w", err)
		}
		for _, item := range page.Items {
			out = append(out, cellText(item["order_id"]))
		}
	}
	return out, nil
}

// Get fetches a sale by order id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID int64) (*SaleRecord, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberN{Value: strconv.FormatInt(orderID, 10)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec SaleRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal sale: %w", err)
	}
	return &rec, nil
}

// Close is a no-op; the DynamoDB client is shared.
func (s *Store) Close() error { return nil }

func cellText(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberS:
		return v.Value
	default:
		return ""
	}
}

func awsString(s string) *string { return &s }
