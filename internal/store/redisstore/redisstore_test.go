package redisstore

import (
	"context"
	"os"
	"reflect"
	"testing"

	"github.com/nrednav/cuid2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uk.co.dudmesh.todo/internal/model"
	"uk.co.dudmesh.todo/internal/store"
)

func newTestStore(t *testing.T) *redisStore {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	prefix := cuid2.Generate()
	s, err := New(context.Background(), url, store.Tables{
		store.CollectionUser: prefix + "-user",
		store.CollectionTodo: prefix + "-todo",
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserRecords(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := newTestStore(t)

	alice := &model.User{ID: "u1", Handle: "alice", Email: "a@x.com", Password: "hash", Jwt: "tok-1"}

	assert.Nil(s.Create(ctx, store.CollectionUser, alice))
	assert.ErrorIs(s.Create(ctx, store.CollectionUser, alice), store.ErrConflict)

	t.Run("Projection", func(t *testing.T) {
		var user model.User
		assert.Nil(s.FetchOne(ctx, store.CollectionUser, "u1", model.UserFields, &user))
		assert.Equal("alice", user.Handle)
		assert.Empty(user.Password)
	})

	t.Run("Index follows updates", func(t *testing.T) {
		var user model.User
		assert.Nil(s.PartialUpdate(ctx, store.CollectionUser, "u1", store.Assignments{"Jwt": "tok-2"}, &user))
		assert.Equal("tok-2", user.Jwt)

		var users []model.User
		assert.Nil(s.FetchMany(ctx, store.CollectionUser, store.Query{Index: store.JwtIndex, Value: "tok-1"}, &users))
		assert.Empty(users)
		assert.Nil(s.FetchMany(ctx, store.CollectionUser, store.Query{Index: store.JwtIndex, Value: "tok-2"}, &users))
		assert.Len(users, 1)
	})

	t.Run("Clear", func(t *testing.T) {
		var user model.User
		assert.Nil(s.PartialUpdate(ctx, store.CollectionUser, "u1", store.Assignments{"Jwt": nil}, &user))
		assert.Empty(user.Jwt)

		var users []model.User
		assert.Nil(s.FetchMany(ctx, store.CollectionUser, store.Query{Index: store.JwtIndex, Value: "tok-2"}, &users))
		assert.Empty(users)
	})

	t.Run("Delete", func(t *testing.T) {
		assert.Nil(s.Delete(ctx, store.CollectionUser, "u1"))
		var user model.User
		assert.ErrorIs(s.FetchOne(ctx, store.CollectionUser, "u1", nil, &user), store.ErrNotFound)

		var users []model.User
		assert.Nil(s.FetchMany(ctx, store.CollectionUser, store.Query{Index: store.HandleIndex, Value: "alice"}, &users))
		assert.Empty(users)
	})
}

func TestItemRecords(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := newTestStore(t)

	assert.Nil(s.Upsert(ctx, store.CollectionTodo, &model.Item{ID: "i1", Todo: "milk", User: "u1", Created: 42}))

	var item model.Item
	assert.Nil(s.PartialUpdate(ctx, store.CollectionTodo, "i1", store.Assignments{"Done": true}, &item))
	assert.True(item.Done)
	assert.Equal("milk", item.Todo)
	assert.Equal(int64(42), item.Created)

	var items []model.Item
	assert.Nil(s.FetchMany(ctx, store.CollectionTodo, store.Query{}, &items))
	assert.Len(items, 1)

	assert.ErrorIs(s.PartialUpdate(ctx, store.CollectionTodo, "missing", store.Assignments{"Done": true}, &item), store.ErrNotFound)
}

func TestFieldsOf(t *testing.T) {
	fields, err := fieldsOf(&model.Item{ID: "i1", Todo: "milk", User: "u1", Done: true, Created: 42})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Id": "i1", "Todo": "milk", "User": "u1", "Done": true, "Created": int64(42)}, fields)

	_, err = fieldsOf("nope")
	assert.ErrorIs(t, err, store.ErrInvalidDestination)
}

func TestNormalise(t *testing.T) {
	assert.Equal(t, "u1", normalise(reflect.ValueOf(model.UserID("u1"))))
	assert.Equal(t, uint64(3), normalise(reflect.ValueOf(uint8(3))))
}
