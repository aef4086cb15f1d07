// Package bookmark stores presence-only saves of posts and comments.
package bookmark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecoforum/pkg/common"
	"ecoforum/pkg/gateway"
	"ecoforum/pkg/tables"
	"ecoforum/pkg/user"
)

type Service struct {
	store gateway.Gateway
	locks *common.KeyedMutex
	Now   func() time.Time
}

func NewService(store gateway.Gateway) *Service {
	return &Service{store: store, locks: common.NewKeyedMutex(), Now: time.Now}
}

func key(userId, targetType, targetId string) []gateway.Filter {
	return []gateway.Filter{
		gateway.Eq("user_id", userId),
		gateway.Eq("target_id", targetId),
		gateway.Eq("target_type", targetType),
	}
}

// Toggle saves the target, or unsaves it when already saved. It returns whether
// the target is saved afterwards.
func (s *Service) Toggle(ctx context.Context, u *user.User, targetType, targetId string) (bool, error) {
	if u == nil || u.Id == "" {
		return false, fmt.Errorf("bookmark: toggle: %w", common.ErrUnauthenticated)
	}
	if targetType != tables.TargetPost && targetType != tables.TargetComment {
		return false, common.Invalid("target_type", "must be post or comment")
	}
	if targetId == "" {
		return false, common.Invalid("target_id", "must not be empty")
	}

	unlock := s.locks.Lock(u.Id + "|" + targetType + "|" + targetId)
	defer unlock()

	n, err := s.store.Delete(ctx, tables.Saves, key(u.Id, targetType, targetId))
	if err != nil {
		return false, common.GatewayError("bookmark: unsave", err)
	}
	if n > 0 {
		return false, nil
	}

	err = s.store.Insert(ctx, tables.Saves, gateway.Row{
		"user_id":     u.Id,
		"target_id":   targetId,
		"target_type": targetType,
		"created":     s.Now(),
	})
	if err != nil && !errors.Is(err, gateway.ErrDuplicate) {
		return false, common.GatewayError("bookmark: save", err)
	}
	return true, nil
}

// SavedIds returns the subset of targetIds the user has saved.
func (s *Service) SavedIds(ctx context.Context, userId, targetType string, targetIds []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if userId == "" || len(targetIds) == 0 {
		return out, nil
	}
	rows, err := s.store.Select(ctx, tables.Saves, gateway.Where(
		gateway.Eq("user_id", userId),
		gateway.Eq("target_type", targetType),
		gateway.In("target_id", gateway.Strings(targetIds)...),
	))
	if err != nil {
		return nil, common.GatewayError("bookmark: saved ids", err)
	}
	for _, r := range rows {
		out[r.String("target_id")] = true
	}
	return out, nil
}

// Purge removes the saves of deleted targets.
func (s *Service) Purge(ctx context.Context, targetType string, targetIds []string) error {
	if len(targetIds) == 0 {
		return nil
	}
	_, err := s.store.Delete(ctx, tables.Saves, []gateway.Filter{
		gateway.Eq("target_type", targetType),
		gateway.In("target_id", gateway.Strings(targetIds)...),
	})
	if err != nil {
		return common.GatewayError("bookmark: purge", err)
	}
	return nil
}
