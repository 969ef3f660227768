package inbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/internal/apierrors"
	"design-desk/request-portal/request-portal-backend/internal/identity"
	"design-desk/request-portal/request-portal-backend/internal/metrics"
	"design-desk/request-portal/request-portal-backend/internal/requests"
)

// RequestSource reads requests. requests.Repository satisfies it.
type RequestSource interface {
	GetRequest(ctx context.Context, id uuid.UUID) (*requests.Request, error)
	ListRequests(ctx context.Context, filter requests.ListFilter) ([]requests.Request, error)
}

// Pusher tells live clients that a user's inbox changed.
type Pusher interface {
	PushInboxChanged(ctx context.Context, userID uuid.UUID)
}

// Service computes inbox projections. Projections are derived data: they
// are cached per (user, role) and recomputed after any invalidation.
type Service struct {
	source  RequestSource
	markers MarkerStore
	cache   Cache
	pusher  Pusher
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates the inbox service. cache, pusher and m may be nil.
func NewService(source RequestSource, markers MarkerStore, cache Cache, pusher Pusher, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		source:  source,
		markers: markers,
		cache:   cache,
		pusher:  pusher,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Project returns the inbox of actor acting in role, narrowed to category
// when one is given. An empty role picks the actor's first role.
func (s *Service) Project(ctx context.Context, actor identity.Actor, role identity.Role, category Category) (*Inbox, error) {
	if actor.ID == uuid.Nil {
		return nil, apierrors.Unauthorized("an authenticated actor is required")
	}
	if role == "" {
		if len(actor.Roles) == 0 {
			return nil, apierrors.Forbidden("no workflow role assigned")
		}
		role = actor.Roles[0]
	}
	if !actor.HasRole(role) {
		return nil, apierrors.Forbidden("role " + string(role) + " is not held by the caller")
	}
	if category != "" && !hasCategory(role, category) {
		return nil, apierrors.Validation("category", "unknown category "+string(category)+" for role "+string(role))
	}

	// Admin inboxes change with every request, so they are never cached.
	cacheable := s.cache != nil && role != identity.RoleAdmin
	if cacheable {
		cached, hit := s.cache.Get(ctx, actor.ID, role)
		s.metrics.InboxCacheLookup(hit)
		if hit {
			return cached.Filter(category), nil
		}
	}

	inbox, err := s.compute(ctx, actor, role)
	if err != nil {
		return nil, err
	}
	if cacheable {
		if err := s.cache.Set(ctx, actor.ID, role, inbox); err != nil {
			s.logger.Warn("Failed to cache inbox", zap.String("user_id", actor.ID.String()), zap.Error(err))
		}
	}
	return inbox.Filter(category), nil
}

func (s *Service) compute(ctx context.Context, actor identity.Actor, role identity.Role) (*Inbox, error) {
	filter := requests.ListFilter{}
	if role != identity.RoleAdmin {
		id := actor.ID
		filter.ParticipantID = &id
	}
	all, err := s.source.ListRequests(ctx, filter)
	if err != nil {
		return nil, classify("list requests", err)
	}
	viewed, err := s.markers.ViewedBy(ctx, actor.ID)
	if err != nil {
		return nil, classify("load view markers", err)
	}

	inbox := &Inbox{
		Role:     role,
		Counts:   make(map[Category]CategoryCount),
		Items:    []Item{},
		Computed: s.now().UTC(),
	}
	for _, c := range Categories(role) {
		inbox.Counts[c] = CategoryCount{}
	}
	for i := range all {
		req := &all[i]
		category, ok := Classify(req, role, actor.ID)
		if !ok {
			continue
		}
		unread := Unread(req, viewed[req.ID])
		inbox.Items = append(inbox.Items, Item{Request: *req, Category: category, Unread: unread})

		count := inbox.Counts[category]
		count.Total++
		if unread {
			count.Unread++
		}
		inbox.Counts[category] = count
	}
	return inbox, nil
}

// MarkViewed records that actor saw the request in its current epoch.
func (s *Service) MarkViewed(ctx context.Context, actor identity.Actor, requestID uuid.UUID) error {
	if actor.ID == uuid.Nil {
		return apierrors.Unauthorized("an authenticated actor is required")
	}
	req, err := s.source.GetRequest(ctx, requestID)
	if err != nil {
		return classify("get request", err)
	}
	if !actor.IsAdmin() && !req.IsParty(actor.ID) {
		return apierrors.Forbidden("you are not a party to this request")
	}
	if err := s.markers.MarkViewed(ctx, actor.ID, requestID, EpochOf(req), s.now().UTC()); err != nil {
		return classify("mark viewed", err)
	}
	s.InvalidateUsers(ctx, actor.ID)
	return nil
}

// InvalidateUsers drops cached projections and notifies live clients.
func (s *Service) InvalidateUsers(ctx context.Context, userIDs ...uuid.UUID) {
	seen := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s.cache != nil {
			if err := s.cache.DeleteUser(ctx, id); err != nil {
				s.logger.Warn("Failed to invalidate inbox", zap.String("user_id", id.String()), zap.Error(err))
			}
		}
		if s.pusher != nil {
			s.pusher.PushInboxChanged(ctx, id)
		}
	}
}

func hasCategory(role identity.Role, category Category) bool {
	for _, c := range Categories(role) {
		if c == category {
			return true
		}
	}
	return false
}

func classify(op string, err error) error {
	var typed *apierrors.Error
	if errors.As(err, &typed) {
		return err
	}
	return apierrors.Persistence(op, err)
}
