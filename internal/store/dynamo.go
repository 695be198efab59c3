package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

const (
	// pendingIndex is the sparse GSI on the queue table. Hash key
	// queueState is only present on unposted items; range key createdAt.
	pendingIndex = "pending-by-created"

	// queueStatePending is the single queueState value. MarkPosted removes
	// the attribute, dropping the item out of the sparse index.
	queueStatePending = "PENDING"
)

// DynamoStore implements QueueStore on two DynamoDB tables.
type DynamoStore struct {
	client       *dynamodb.Client
	queueTable   string
	historyTable string
}

// Compile-time interface check.
var _ QueueStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore over the queue and history tables.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client *dynamodb.Client, queueTable, historyTable string) *DynamoStore {
	return &DynamoStore{
		client:       client,
		queueTable:   queueTable,
		historyTable: historyTable,
	}
}

// textHash returns the hex SHA-256 of the exact part text, used as the
// history table hash key. DynamoDB caps key values at 2KB; parts can be
// longer, so the text itself cannot be the key.
func textHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (s *DynamoStore) FetchNextPending(ctx context.Context) (*PendingPost, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.queueTable,
		IndexName:              aws.String(pendingIndex),
		KeyConditionExpression: aws.String("queueState = :pending"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: queueStatePending},
		},
		// Most recent first.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, &UnavailableError{Op: "fetch next pending", Err: err}
	}
	if len(result.Items) == 0 {
		log.Debug().Str("table", s.queueTable).Msg("No pending posts in queue")
		return nil, nil
	}

	item := result.Items[0]
	var post PendingPost
	if err := attributevalue.UnmarshalMap(item, &post); err != nil {
		return nil, &UnavailableError{Op: "fetch next pending", Err: fmt.Errorf("unmarshal: %w", err)}
	}
	if idAttr, ok := item["id"].(*types.AttributeValueMemberS); ok {
		post.ID = idAttr.Value
	}
	if post.ID == "" {
		return nil, &UnavailableError{Op: "fetch next pending", Err: fmt.Errorf("queue item missing id attribute")}
	}

	log.Debug().
		Str("postId", post.ID).
		Int("parts", len(post.Parts)).
		Int64("createdAt", post.CreatedAt).
		Bool("hasImage", post.ImageID != "").
		Msg("Fetched next pending post")
	return &post, nil
}

func (s *DynamoStore) ExistsPublishedText(ctx context.Context, text string) (bool, error) {
	hash := textHash(text)
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.historyTable,
		Key: map[string]types.AttributeValue{
			"textHash": &types.AttributeValueMemberS{Value: hash},
		},
	})
	if err != nil {
		return false, &UnavailableError{Op: "published text lookup", Err: err}
	}
	if result.Item == nil {
		return false, nil
	}

	var part PublishedPart
	if err := attributevalue.UnmarshalMap(result.Item, &part); err != nil {
		return false, &UnavailableError{Op: "published text lookup", Err: fmt.Errorf("unmarshal: %w", err)}
	}

	// The hash is only the key. Exact-match semantics come from comparing
	// the stored text itself.
	return part.Text == text, nil
}

func (s *DynamoStore) MarkPosted(ctx context.Context, postID string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.queueTable,
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: postID},
		},
		UpdateExpression: aws.String("SET posted = :true REMOVE queueState"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return &UnavailableError{Op: fmt.Sprintf("mark posted %s", postID), Err: err}
	}

	log.Info().Str("postId", postID).Msg("Post marked as posted")
	return nil
}

func (s *DynamoStore) RecordPublished(ctx context.Context, part PublishedPart) error {
	if part.PublishedAt == 0 {
		part.PublishedAt = time.Now().Unix()
	}

	item, err := attributevalue.MarshalMap(part)
	if err != nil {
		return &UnavailableError{Op: "record published part", Err: fmt.Errorf("marshal: %w", err)}
	}
	item["textHash"] = &types.AttributeValueMemberS{Value: textHash(part.Text)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.historyTable,
		Item:      item,
	})
	if err != nil {
		return &UnavailableError{Op: "record published part", Err: err}
	}

	log.Debug().Str("postId", part.PostID).Msg("Published part recorded in history")
	return nil
}
