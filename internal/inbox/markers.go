package inbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"design-desk/request-portal/request-portal-backend/internal/requests"
)

// Epoch identifies one stay of a request in a status. Version moves on every
// transition, so returning to an earlier status starts a new epoch.
type Epoch struct {
	Status  requests.Status
	Version int
}

// EpochOf returns the epoch req is currently in.
func EpochOf(req *requests.Request) Epoch {
	return Epoch{Status: req.Status, Version: req.Version}
}

// Viewed maps a request to the epochs its viewer has seen it in.
type Viewed map[uuid.UUID]map[Epoch]bool

func (v Viewed) add(requestID uuid.UUID, epoch Epoch) {
	if v[requestID] == nil {
		v[requestID] = map[Epoch]bool{}
	}
	v[requestID][epoch] = true
}

// MarkerStore persists view markers.
type MarkerStore interface {
	// MarkViewed is idempotent per (user, request, epoch).
	MarkViewed(ctx context.Context, userID, requestID uuid.UUID, epoch Epoch, at time.Time) error
	ViewedBy(ctx context.Context, userID uuid.UUID) (Viewed, error)
}

type gormMarkerStore struct {
	db *gorm.DB
}

// NewMarkerStore stores markers in the view_markers table.
func NewMarkerStore(db *gorm.DB) MarkerStore {
	return &gormMarkerStore{db: db}
}

func (s *gormMarkerStore) MarkViewed(ctx context.Context, userID, requestID uuid.UUID, epoch Epoch, at time.Time) error {
	marker := ViewMarker{UserID: userID, RequestID: requestID, Status: epoch.Status, Version: epoch.Version, ViewedAt: at}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&marker).Error
	if err != nil {
		return fmt.Errorf("failed to save view marker: %w", err)
	}
	return nil
}

func (s *gormMarkerStore) ViewedBy(ctx context.Context, userID uuid.UUID) (Viewed, error) {
	var rows []ViewMarker
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load view markers: %w", err)
	}
	out := Viewed{}
	for _, r := range rows {
		out.add(r.RequestID, Epoch{Status: r.Status, Version: r.Version})
	}
	return out, nil
}

// DynamoDBAPI is the subset of the DynamoDB client used for markers.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// dynamoMarker is one item keyed by user (pk) and request#status#version (sk).
type dynamoMarker struct {
	UserID    string `dynamodbav:"pk"`
	Key       string `dynamodbav:"sk"`
	RequestID string `dynamodbav:"request_id"`
	Status    int    `dynamodbav:"status"`
	Version   int    `dynamodbav:"version"`
	ViewedAt  string `dynamodbav:"viewed_at"`
}

type dynamoMarkerStore struct {
	client DynamoDBAPI
	table  string
}

// NewDynamoMarkerStore stores markers in a DynamoDB table with string keys
// pk and sk.
func NewDynamoMarkerStore(client DynamoDBAPI, table string) MarkerStore {
	return &dynamoMarkerStore{client: client, table: table}
}

func markerKey(requestID uuid.UUID, epoch Epoch) string {
	return requestID.String() + "#" + strconv.Itoa(int(epoch.Status)) + "#" + strconv.Itoa(epoch.Version)
}

func (s *dynamoMarkerStore) MarkViewed(ctx context.Context, userID, requestID uuid.UUID, epoch Epoch, at time.Time) error {
	item, err := attributevalue.MarshalMap(dynamoMarker{
		UserID:    userID.String(),
		Key:       markerKey(requestID, epoch),
		RequestID: requestID.String(),
		Status:    int(epoch.Status),
		Version:   epoch.Version,
		ViewedAt:  at.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal view marker: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(sk)"),
	})
	var exists *types.ConditionalCheckFailedException
	if errors.As(err, &exists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to put view marker: %w", err)
	}
	return nil
}

func (s *dynamoMarkerStore) ViewedBy(ctx context.Context, userID uuid.UUID) (Viewed, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: userID.String()},
		},
	})

	out := Viewed{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query view markers: %w", err)
		}
		var items []dynamoMarker
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal view markers: %w", err)
		}
		for _, item := range items {
			id, err := uuid.Parse(strings.SplitN(item.Key, "#", 2)[0])
			if err != nil {
				continue
			}
			out.add(id, Epoch{Status: requests.Status(item.Status), Version: item.Version})
		}
	}
	return out, nil
}
