package mailbox

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/salesmail-ingest/internal/aws"
)

// maxTransactItems is the DynamoDB limit on items per TransactWriteItems call.
const maxTransactItems = 100

// Store reads candidate threads from the mailbox table and edits their labels.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a new mailbox Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Put stores a thread, replacing any previous version.
func (s *Store) Put(ctx context.Context, c Candidate) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal thread: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{TableName: &s.tableName, Item: item}); err != nil {
		return fmt.Errorf("put thread %s: %w", c.ID, err)
	}
	return nil
}

// Search returns matching threads oldest first, at most q.Limit of them when Limit > 0.
func (s *Store) Search(ctx context.Context, q Query) ([]Candidate, error) {
	input := &dyn.ScanInput{TableName: &s.tableName}
	if expr, names, values := filterFor(q); expr != "" {
		input.FilterExpression = &expr
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}

	var out []Candidate
	p := dyn.NewScanPaginator(s.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan mailbox: %w", err)
		}
		var batch []Candidate
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal threads: %w", err)
		}
		out = append(out, batch...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func filterFor(q Query) (string, map[string]string, map[string]types.AttributeValue) {
	var conds []string
	names := map[string]string{}
	values := map[string]types.AttributeValue{}

	if q.Sender != "" {
		conds = append(conds, "#sender = :sender")
		names["#sender"] = "sender"
		values[":sender"] = &types.AttributeValueMemberS{Value: q.Sender}
	}
	if q.Subject != "" {
		conds = append(conds, "contains(#subject, :subject)")
		names["#subject"] = "subject"
		values[":subject"] = &types.AttributeValueMemberS{Value: q.Subject}
	}
	if q.RequireLabel != "" {
		conds = append(conds, "contains(#labels, :require)")
		names["#labels"] = "labels"
		values[":require"] = &types.AttributeValueMemberS{Value: q.RequireLabel}
	}
	for i, l := range q.ExcludeLabels {
		key := fmt.Sprintf(":exclude%d", i)
		conds = append(conds, fmt.Sprintf("NOT contains(#labels, %s)", key))
		names["#labels"] = "labels"
		values[key] = &types.AttributeValueMemberS{Value: l}
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return strings.Join(conds, " AND "), names, values
}

// AddLabel adds label to every listed thread.
func (s *Store) AddLabel(ctx context.Context, ids []string, label string) error {
	return s.editLabels(ctx, ids, "ADD #labels :set", label)
}

// RemoveLabel removes label from every listed thread.
func (s *Store) RemoveLabel(ctx context.Context, ids []string, label string) error {
	return s.editLabels(ctx, ids, "DELETE #labels :set", label)
}

// editLabels applies update to ids in transactions of at most maxTransactItems.
// A transaction may not touch the same item twice, so ids are deduplicated first.
func (s *Store) editLabels(ctx context.Context, ids []string, update, label string) error {
	ids = uniq(ids)
	for start := 0; start < len(ids); start += maxTransactItems {
		end := start + maxTransactItems
		if end > len(ids) {
			end = len(ids)
		}

		items := make([]types.TransactWriteItem, 0, end-start)
		for _, id := range ids[start:end] {
			items = append(items, types.TransactWriteItem{
				Update: &types.Update{
					TableName: &s.tableName,
					Key: map[string]types.AttributeValue{
						"thread_id": &types.AttributeValueMemberS{Value: id},
					},
					UpdateExpression:         awsString(update),
					ExpressionAttributeNames: map[string]string{"#labels": "labels"},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":set": &types.AttributeValueMemberSS{Value: []string{label}},
					},
				},
			})
		}
		if _, err := s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: items}); err != nil {
			return fmt.Errorf("label %q on %d threads: %w", label, len(items), err)
		}
	}
	return nil
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func awsString(s string) *string { return &s }
