package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

const approvedKey = "approved_users"

// AccessService is the AccessRegistry backed by a single approved-set document.
// The set is re-read on every call so that several bot processes can share a
// store; mutations are serialised in-process.
type AccessService struct {
	store Store
	mu    sync.Mutex
}

func NewAccessService(store Store) *AccessService {
	return &AccessService{store: store}
}

func (s *AccessService) load(ctx context.Context) (map[int64]struct{}, error) {
	set := make(map[int64]struct{})
	data, err := s.store.Get(ctx, approvedKey)
	if errors.Is(err, ErrNotFound) {
		return set, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load approved set: %w", err)
	}
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode approved set: %w", err)
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *AccessService) persist(ctx context.Context, set map[int64]struct{}) error {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, approvedKey, data); err != nil {
		return fmt.Errorf("save approved set: %w", err)
	}
	return nil
}

func (s *AccessService) IsApproved(ctx context.Context, chatID int64) (bool, error) {
	set, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	_, ok := set[chatID]
	return ok, nil
}

func (s *AccessService) Approve(ctx context.Context, chatID int64) error {
	return s.mutate(ctx, func(set map[int64]struct{}) { set[chatID] = struct{}{} })
}

func (s *AccessService) Revoke(ctx context.Context, chatID int64) error {
	return s.mutate(ctx, func(set map[int64]struct{}) { delete(set, chatID) })
}

func (s *AccessService) mutate(ctx context.Context, fn func(map[int64]struct{})) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.load(ctx)
	if err != nil {
		return err
	}
	fn(set)
	if err := s.persist(ctx, set); err != nil {
		return err
	}
	log.Debug().Int("approved", len(set)).Msg("approved set updated")
	return nil
}

// List returns the approved ids in ascending order.
func (s *AccessService) List(ctx context.Context) ([]int64, error) {
	set, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
