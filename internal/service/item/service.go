package item

import (
	"context"
	"fmt"
	"time"

	"uk.co.dudmesh.todo/internal/model"
	"uk.co.dudmesh.todo/internal/service"
	"uk.co.dudmesh.todo/internal/store"
	"uk.co.dudmesh.todo/pkg/ident"
)

type svc struct {
	store store.Store
	now   func() time.Time
}

type Option func(*svc)

func WithClock(now func() time.Time) Option {
	return func(s *svc) {
		s.now = now
	}
}

func New(store store.Store, opts ...Option) *svc {
	s := &svc{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IDFor derives the item id from its text, owner and creation time.
func IDFor(todo string, user model.UserID, created int64) model.ItemID {
	return model.ItemID(ident.Derive(ident.Seed{"todo": todo, "user": string(user), "created": created}))
}

func (s *svc) Create(ctx context.Context, params *model.CreateItemParams) (*model.Item, error) {
	created := s.now().UnixMilli()
	item := &model.Item{
		ID:      IDFor(params.Todo, params.User, created),
		Todo:    params.Todo,
		User:    params.User,
		Done:    false,
		Created: created,
	}
	if err := s.store.Upsert(ctx, store.CollectionTodo, item); err != nil {
		return nil, service.StoreError(fmt.Errorf("creating item: %w", err), model.ErrorItemNotFound)
	}
	return item, nil
}

func (s *svc) List(ctx context.Context) ([]model.Item, error) {
	items := []model.Item{}
	err := s.store.FetchMany(ctx, store.CollectionTodo, store.Query{Projection: model.ItemFields}, &items)
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("listing items: %w", err), model.ErrorItemNotFound)
	}
	return items, nil
}

func (s *svc) Fetch(ctx context.Context, itemID model.ItemID) (*model.Item, error) {
	item := &model.Item{}
	err := s.store.FetchOne(ctx, store.CollectionTodo, string(itemID), model.ItemFields, item)
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("fetching item: %w", err), model.ErrorItemNotFound)
	}
	return item, nil
}

func (s *svc) Update(ctx context.Context, itemID model.ItemID, patch *model.ItemPatch) (*model.Item, error) {
	if patch.IsEmpty() {
		return s.Fetch(ctx, itemID)
	}

	set := store.Assignments{}
	if patch.Todo != nil {
		set["Todo"] = *patch.Todo
	}
	if patch.Done != nil {
		set["Done"] = *patch.Done
	}

	item := &model.Item{}
	if err := s.store.PartialUpdate(ctx, store.CollectionTodo, string(itemID), set, item); err != nil {
		return nil, service.StoreError(fmt.Errorf("updating item: %w", err), model.ErrorItemNotFound)
	}
	return item, nil
}

func (s *svc) Delete(ctx context.Context, itemID model.ItemID) error {
	if err := s.store.Delete(ctx, store.CollectionTodo, string(itemID)); err != nil {
		return service.StoreError(fmt.Errorf("deleting item: %w", err), model.ErrorItemNotFound)
	}
	return nil
}
