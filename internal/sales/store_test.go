package sales

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/salesmail-ingest/internal/aws"
)

// mockDynamo keeps one table in memory keyed by the order_id cell.
// Only the calls the sales store makes are implemented.
type mockDynamo struct {
	aws.DynamoDBAPI

	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	extra    []map[string]types.AttributeValue // rows with odd order_id cells
	putErr   error
	putCalls int
	pageSize int
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{items: map[string]map[string]types.AttributeValue{}, pageSize: 2}
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.putErr != nil {
		return nil, m.putErr
	}
	pk := params.Item["order_id"].(*types.AttributeValueMemberN).Value
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(order_id)" {
		if _, exists := m.items[pk]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.items[pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := params.Key["order_id"].(*types.AttributeValueMemberN).Value
	return &dyn.GetItemOutput{Item: m.items[pk]}, nil
}

func (m *mockDynamo) DescribeTable(ctx context.Context, params *dyn.DescribeTableInput, optFns ...func(*dyn.Options)) (*dyn.DescribeTableOutput, error) {
	if *params.TableName != "sales" {
		return nil, &types.ResourceNotFoundException{}
	}
	return &dyn.DescribeTableOutput{}, nil
}

// Scan pages through the rows pageSize at a time using the index in ExclusiveStartKey.
func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var all []map[string]types.AttributeValue
	for _, k := range keys {
		all = append(all, map[string]types.AttributeValue{"order_id": m.items[k]["order_id"]})
	}
	all = append(all, m.extra...)

	start := 0
	if params.ExclusiveStartKey != nil {
		start, _ = strconv.Atoi(params.ExclusiveStartKey["idx"].(*types.AttributeValueMemberN).Value)
	}
	end := start + m.pageSize
	out := &dyn.ScanOutput{}
	if end < len(all) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"idx": &types.AttributeValueMemberN{Value: strconv.Itoa(end)},
		}
	} else {
		end = len(all)
	}
	out.Items = all[start:end]
	return out, nil
}

func sampleSale(id int64) SaleRecord {
	return SaleRecord{
		OrderID:     id,
		OrderedAt:   time.Date(2025, 3, 1, 14, 5, 0, 0, time.UTC),
		ProductName: "CategoryItemName",
		Amount:      1200,
		PaymentKind: PaymentInstant,
	}
}

func TestAppend_WritesAndRejectsDuplicate(t *testing.T) {
	mock := newMockDynamo()
	store := NewStore(mock, "sales")
	fixed := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	store.nowFunc = func() time.Time { return fixed }

	if err := store.Append(context.Background(), sampleSale(20250001)); err != nil {
		t.Fatalf("first append: %v", err)
	}
	err := store.Append(context.Background(), sampleSale(20250001))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if len(mock.items) != 1 {
		t.Fatalf("expected 1 row, got %d", len(mock.items))
	}

	got, err := store.Get(context.Background(), 20250001)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Amount != 1200 || got.ProductName != "CategoryItemName" {
		t.Fatalf("unexpected row: %+v", got)
	}
	if !got.RecordedAt.Equal(fixed) {
		t.Fatalf("expected recorded_at %v, got %v", fixed, got.RecordedAt)
	}
	if _, ok := mock.items["20250001"]["product_variant"]; ok {
		t.Fatalf("empty variant should be omitted")
	}
}

func TestAppend_WrapsBackendError(t *testing.T) {
	mock := newMockDynamo()
	mock.putErr = errors.New("throttled")
	store := NewStore(mock, "sales")

	err := store.Append(context.Background(), sampleSale(1))
	if err == nil || errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
}

func TestGet_Missing(t *testing.T) {
	store := NewStore(newMockDynamo(), "sales")
	got, err := store.Get(context.Background(), 42)
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", got, err)
	}
}

func TestOrderIDs_PagesAndKeepsOddCells(t *testing.T) {
	mock := newMockDynamo()
	store := NewStore(mock, "sales")
	for _, id := range []int64{11111111, 22222222, 33333333} {
		if err := store.Append(context.Background(), sampleSale(id)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	mock.extra = []map[string]types.AttributeValue{
		{"order_id": &types.AttributeValueMemberS{Value: "44444444"}},
		{"order_id": &types.AttributeValueMemberBOOL{Value: true}},
	}

	ids, err := store.OrderIDs(context.Background())
	if err != nil {
		t.Fatalf("order ids: %v", err)
	}
	if len(ids) != 5 {
		t.Fatalf("expected 5 cells across pages, got %d: %v", len(ids), ids)
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	for _, want := range []string{"11111111", "22222222", "33333333", "44444444", ""} {
		if !seen[want] {
			t.Fatalf("missing cell %q in %v", want, ids)
		}
	}
}

func TestPing(t *testing.T) {
	if err := NewStore(newMockDynamo(), "sales").Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := NewStore(newMockDynamo(), "nope").Ping(context.Background()); err == nil {
		t.Fatalf("expected error for missing table")
	}
}
