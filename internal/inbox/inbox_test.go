package inbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"design-desk/request-portal/request-portal-backend/internal/apierrors"
	"design-desk/request-portal/request-portal-backend/internal/identity"
	"design-desk/request-portal/request-portal-backend/internal/requests"
)

type memorySource struct {
	mu    sync.Mutex
	items map[uuid.UUID]*requests.Request
}

func (s *memorySource) GetRequest(ctx context.Context, id uuid.UUID) (*requests.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.items[id]
	if !ok {
		return nil, apierrors.NotFound("request", id.String())
	}
	cp := *req
	return &cp, nil
}

func (s *memorySource) ListRequests(ctx context.Context, filter requests.ListFilter) ([]requests.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []requests.Request
	for _, req := range s.items {
		if filter.ParticipantID != nil && !req.IsParty(*filter.ParticipantID) {
			continue
		}
		out = append(out, *req)
	}
	return out, nil
}

// setStatus moves a request the way a committed transition does.
func (s *memorySource) setStatus(id uuid.UUID, status requests.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id].Status = status
	s.items[id].Version++
}

type countingPusher struct {
	mu     sync.Mutex
	pushed map[uuid.UUID]int
}

func (p *countingPusher) PushInboxChanged(ctx context.Context, userID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed[userID]++
}

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func newMarkerDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&ViewMarker{}))
	return db
}

func TestClassify(t *testing.T) {
	requester, designer, approver := uuid.New(), uuid.New(), uuid.New()
	req := &requests.Request{RequesterID: requester, DesignerID: ptr(designer), ApproverID: ptr(approver)}

	tests := []struct {
		status   requests.Status
		role     identity.Role
		viewer   uuid.UUID
		want     Category
		wantShow bool
	}{
		{requests.StatusDesignerReview, identity.RoleRequester, requester, CategoryUnderReview, true},
		{requests.StatusDesignInProgress, identity.RoleDesigner, designer, CategoryInProgress, true},
		{requests.StatusPendingCorrection, identity.RoleRequester, requester, CategoryActionRequired, true},
		{requests.StatusPendingCorrection, identity.RoleDesigner, designer, CategoryWaitingOnRequester, true},
		{requests.StatusPendingApproval, identity.RoleApprover, approver, CategoryToApprove, true},
		{requests.StatusPendingRedesign, identity.RoleDesigner, designer, CategoryRedesign, true},
		{requests.StatusDesignInProgress, identity.RoleApprover, approver, "", false},
		{requests.StatusDesignerReview, identity.RoleDesigner, requester, "", false},
		{requests.StatusCompleted, identity.RoleAdmin, uuid.New(), CategoryAll, true},
	}

	for _, tt := range tests {
		t.Run(tt.status.String()+"/"+string(tt.role), func(t *testing.T) {
			req.Status = tt.status
			got, ok := Classify(req, tt.role, tt.viewer)
			assert.Equal(t, tt.wantShow, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_EveryStatusHasABucket(t *testing.T) {
	requester, designer := uuid.New(), uuid.New()
	for _, status := range requests.Statuses {
		req := &requests.Request{Status: status, RequesterID: requester, DesignerID: ptr(designer)}
		_, ok := Classify(req, identity.RoleRequester, requester)
		assert.True(t, ok, "requester bucket for %s", status)
		_, ok = Classify(req, identity.RoleDesigner, designer)
		assert.True(t, ok, "designer bucket for %s", status)
	}
}

type inboxFixture struct {
	svc       *Service
	source    *memorySource
	cache     *MemoryCache
	pusher    *countingPusher
	requester identity.Actor
	designer  identity.Actor
	admin     identity.Actor
	requestID uuid.UUID
}

func newInboxFixture(t *testing.T) *inboxFixture {
	t.Helper()
	f := &inboxFixture{
		requester: identity.Actor{ID: uuid.New(), Roles: []identity.Role{identity.RoleRequester}},
		designer:  identity.Actor{ID: uuid.New(), Roles: []identity.Role{identity.RoleDesigner}},
		admin:     identity.Actor{ID: uuid.New(), Roles: []identity.Role{identity.RoleAdmin}},
		requestID: uuid.New(),
		pusher:    &countingPusher{pushed: map[uuid.UUID]int{}},
	}
	other := uuid.New()
	f.source = &memorySource{items: map[uuid.UUID]*requests.Request{
		f.requestID: {ID: f.requestID, Status: requests.StatusDesignerReview, RequesterID: f.requester.ID, DesignerID: ptr(f.designer.ID)},
		other:       {ID: other, Status: requests.StatusDesignInProgress, RequesterID: uuid.New(), DesignerID: ptr(f.designer.ID)},
	}}
	f.cache = NewMemoryCache(time.Minute)
	t.Cleanup(f.cache.Stop)
	f.svc = NewService(f.source, NewMarkerStore(newMarkerDB(t)), f.cache, f.pusher, nil, zap.NewNop())
	return f
}

func TestProject_UnreadRearmsOnStatusChange(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()

	in, err := f.svc.Project(ctx, f.requester, identity.RoleRequester, "")
	require.NoError(t, err)
	require.Len(t, in.Items, 1)
	assert.True(t, in.Items[0].Unread)
	assert.Equal(t, CategoryCount{Total: 1, Unread: 1}, in.Counts[CategoryUnderReview])
	assert.Equal(t, CategoryCount{}, in.Counts[CategoryCompleted])

	require.NoError(t, f.svc.MarkViewed(ctx, f.requester, f.requestID))
	require.NoError(t, f.svc.MarkViewed(ctx, f.requester, f.requestID), "marking twice is idempotent")
	assert.Equal(t, 2, f.pusher.pushed[f.requester.ID])

	in, err = f.svc.Project(ctx, f.requester, identity.RoleRequester, "")
	require.NoError(t, err)
	assert.False(t, in.Items[0].Unread)

	f.source.setStatus(f.requestID, requests.StatusPendingCorrection)
	f.svc.InvalidateUsers(ctx, f.requester.ID, f.designer.ID, f.requester.ID)
	assert.Equal(t, 3, f.pusher.pushed[f.requester.ID], "duplicates are pushed once")

	in, err = f.svc.Project(ctx, f.requester, identity.RoleRequester, CategoryActionRequired)
	require.NoError(t, err)
	require.Len(t, in.Items, 1)
	assert.True(t, in.Items[0].Unread)
}

func TestProject_UnreadRearmsOnRevisitedStatus(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.MarkViewed(ctx, f.designer, f.requestID))
	in, err := f.svc.Project(ctx, f.designer, identity.RoleDesigner, CategoryNewRequests)
	require.NoError(t, err)
	require.Len(t, in.Items, 1)
	assert.False(t, in.Items[0].Unread)

	f.source.setStatus(f.requestID, requests.StatusPendingCorrection)
	f.svc.InvalidateUsers(ctx, f.designer.ID)
	f.source.setStatus(f.requestID, requests.StatusDesignerReview)
	f.svc.InvalidateUsers(ctx, f.designer.ID)

	in, err = f.svc.Project(ctx, f.designer, identity.RoleDesigner, CategoryNewRequests)
	require.NoError(t, err)
	require.Len(t, in.Items, 1)
	assert.True(t, in.Items[0].Unread, "back in DesignerReview after a correction round")
	assert.Equal(t, CategoryCount{Total: 1, Unread: 1}, in.Counts[CategoryNewRequests])

	require.NoError(t, f.svc.MarkViewed(ctx, f.designer, f.requestID))
	in, err = f.svc.Project(ctx, f.designer, identity.RoleDesigner, CategoryNewRequests)
	require.NoError(t, err)
	assert.False(t, in.Items[0].Unread)
}

func TestProject_ApproverSeesResubmittedDesignAsUnread(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()
	approver := identity.Actor{ID: uuid.New(), Roles: []identity.Role{identity.RoleApprover}}
	f.source.mu.Lock()
	f.source.items[f.requestID].ApproverID = ptr(approver.ID)
	f.source.mu.Unlock()
	f.source.setStatus(f.requestID, requests.StatusPendingApproval)

	require.NoError(t, f.svc.MarkViewed(ctx, approver, f.requestID))
	f.source.setStatus(f.requestID, requests.StatusPendingRedesign)
	f.source.setStatus(f.requestID, requests.StatusPendingApproval)
	f.svc.InvalidateUsers(ctx, approver.ID)

	in, err := f.svc.Project(ctx, approver, identity.RoleApprover, CategoryToApprove)
	require.NoError(t, err)
	require.Len(t, in.Items, 1)
	assert.True(t, in.Items[0].Unread)
}

func TestMarkerStore_KeysByEpoch(t *testing.T) {
	store := NewMarkerStore(newMarkerDB(t))
	ctx := context.Background()
	user, request := uuid.New(), uuid.New()
	first := Epoch{Status: requests.StatusDesignerReview, Version: 1}
	again := Epoch{Status: requests.StatusDesignerReview, Version: 3}

	require.NoError(t, store.MarkViewed(ctx, user, request, first, time.Now()))
	require.NoError(t, store.MarkViewed(ctx, user, request, first, time.Now()))
	viewed, err := store.ViewedBy(ctx, user)
	require.NoError(t, err)
	assert.Len(t, viewed[request], 1)
	assert.True(t, viewed[request][first])
	assert.False(t, viewed[request][again])

	require.NoError(t, store.MarkViewed(ctx, user, request, again, time.Now()))
	viewed, err = store.ViewedBy(ctx, user)
	require.NoError(t, err)
	assert.Len(t, viewed[request], 2)
	assert.True(t, viewed[request][again])
}

func TestProject_CacheAndInvalidation(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()

	in, err := f.svc.Project(ctx, f.designer, identity.RoleDesigner, "")
	require.NoError(t, err)
	assert.Len(t, in.Items, 2)
	assert.Equal(t, 1, f.cache.Size())

	f.source.setStatus(f.requestID, requests.StatusDesignInProgress)
	cached, err := f.svc.Project(ctx, f.designer, identity.RoleDesigner, CategoryInProgress)
	require.NoError(t, err)
	assert.Len(t, cached.Items, 1, "cached projection is served until invalidated")

	f.svc.InvalidateUsers(ctx, f.designer.ID)
	assert.Equal(t, 0, f.cache.Size())
	fresh, err := f.svc.Project(ctx, f.designer, identity.RoleDesigner, CategoryInProgress)
	require.NoError(t, err)
	assert.Len(t, fresh.Items, 2)
}

func TestProject_RoleRules(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()

	_, err := f.svc.Project(ctx, f.requester, identity.RoleDesigner, "")
	assert.Equal(t, apierrors.KindForbidden, apierrors.KindOf(err))

	_, err = f.svc.Project(ctx, f.requester, identity.RoleRequester, CategoryToApprove)
	assert.Equal(t, apierrors.KindValidation, apierrors.KindOf(err))

	all, err := f.svc.Project(ctx, f.admin, "", "")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleAdmin, all.Role)
	assert.Len(t, all.Items, 2)
	assert.Equal(t, 0, f.cache.Size(), "admin inboxes are not cached")

	err = f.svc.MarkViewed(ctx, identity.Actor{ID: uuid.New(), Roles: []identity.Role{identity.RoleRequester}}, f.requestID)
	assert.Equal(t, apierrors.KindForbidden, apierrors.KindOf(err))

	err = f.svc.MarkViewed(ctx, f.requester, uuid.New())
	assert.Equal(t, apierrors.KindNotFound, apierrors.KindOf(err))
}

type MockDynamoDB struct {
	mock.Mock
}

func (m *MockDynamoDB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	return &dynamodb.PutItemOutput{}, args.Error(0)
}

func (m *MockDynamoDB) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(*dynamodb.QueryOutput), args.Error(1)
}

func TestDynamoMarkerStore(t *testing.T) {
	client := new(MockDynamoDB)
	store := NewDynamoMarkerStore(client, "view-markers")
	user, request := uuid.New(), uuid.New()
	epoch := Epoch{Status: requests.StatusPendingCorrection, Version: 4}
	ctx := context.Background()

	client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		sk, ok := in.Item["sk"].(*types.AttributeValueMemberS)
		return ok && sk.Value == request.String()+"#3#4" && *in.ConditionExpression == "attribute_not_exists(sk)"
	})).Return(&types.ConditionalCheckFailedException{}).Once()
	assert.NoError(t, store.MarkViewed(ctx, user, request, epoch, time.Now()), "existing marker is not an error")

	item, err := attributevalue.MarshalMap(dynamoMarker{
		UserID:    user.String(),
		Key:       markerKey(request, epoch),
		RequestID: request.String(),
		Status:    int(epoch.Status),
		Version:   epoch.Version,
	})
	require.NoError(t, err)
	client.On("Query", mock.Anything, mock.Anything).
		Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}, nil).Once()

	viewed, err := store.ViewedBy(ctx, user)
	require.NoError(t, err)
	assert.True(t, viewed[request][epoch])
	assert.False(t, viewed[request][Epoch{Status: requests.StatusPendingCorrection, Version: 6}], "a later stay in the same status is a new epoch")
	assert.False(t, viewed[request][Epoch{Status: requests.StatusDesignerReview, Version: 4}])
	client.AssertExpectations(t)
}
