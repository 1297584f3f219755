package sqlstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/nrednav/cuid2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uk.co.dudmesh.todo/internal/model"
	"uk.co.dudmesh.todo/internal/store"
)

func newTestStore(t *testing.T) *sqlStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", cuid2.Generate())
	s, err := New(context.Background(), DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserRecords(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := newTestStore(t)

	alice := &model.User{ID: "u1", Handle: "alice", Email: "a@x.com", Password: "hash", Jwt: "tok-1"}
	bob := &model.User{ID: "u2", Handle: "bob", Email: "b@x.com", Password: "hash"}

	t.Run("Create", func(t *testing.T) {
		assert.Nil(s.Create(ctx, store.CollectionUser, alice))
		assert.Nil(s.Create(ctx, store.CollectionUser, bob))
	})

	t.Run("Create existing", func(t *testing.T) {
		err := s.Create(ctx, store.CollectionUser, &model.User{ID: "u1", Handle: "mallory", Email: "m@x.com"})
		assert.ErrorIs(err, store.ErrConflict)

		var user model.User
		assert.Nil(s.FetchOne(ctx, store.CollectionUser, "u1", nil, &user))
		assert.Equal("alice", user.Handle)
	})

	t.Run("Fetch one projected", func(t *testing.T) {
		var user model.User
		assert.Nil(s.FetchOne(ctx, store.CollectionUser, "u1", model.UserFields, &user))
		assert.Equal("alice", user.Handle)
		assert.Equal("tok-1", user.Jwt)
		assert.Empty(user.Password)
	})

	t.Run("Fetch one missing", func(t *testing.T) {
		var user model.User
		assert.ErrorIs(s.FetchOne(ctx, store.CollectionUser, "nope", nil, &user), store.ErrNotFound)
	})

	t.Run("Scan", func(t *testing.T) {
		var users []model.User
		assert.Nil(s.FetchMany(ctx, store.CollectionUser, store.Query{Projection: model.UserFields}, &users))
		assert.Len(users, 2)
	})

	t.Run("Index lookup", func(t *testing.T) {
		var users []model.User
		assert.Nil(s.FetchMany(ctx, store.CollectionUser, store.Query{Index: store.HandleIndex, Value: "bob"}, &users))
		require.Len(t, users, 1)
		assert.Equal(model.UserID("u2"), users[0].ID)
		assert.Equal("hash", users[0].Password)

		users = nil
		assert.Nil(s.FetchMany(ctx, store.CollectionUser, store.Query{Index: store.JwtIndex, Value: "tok-1"}, &users))
		require.Len(t, users, 1)
		assert.Equal("alice", users[0].Handle)
	})

	t.Run("Unknown index", func(t *testing.T) {
		var items []model.Item
		err := s.FetchMany(ctx, store.CollectionTodo, store.Query{Index: store.HandleIndex, Value: "x"}, &items)
		assert.ErrorIs(err, store.ErrUnsupportedIndex)
	})

	t.Run("Partial update", func(t *testing.T) {
		var user model.User
		assert.Nil(s.PartialUpdate(ctx, store.CollectionUser, "u1", store.Assignments{"Jwt": nil, "Email": "new@x.com"}, &user))
		assert.Equal("new@x.com", user.Email)
		assert.Equal("", user.Jwt)
		assert.Equal("alice", user.Handle)
	})

	t.Run("Partial update missing", func(t *testing.T) {
		var user model.User
		err := s.PartialUpdate(ctx, store.CollectionUser, "nope", store.Assignments{"Jwt": "x"}, &user)
		assert.ErrorIs(err, store.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		assert.Nil(s.Delete(ctx, store.CollectionUser, "u2"))
		var user model.User
		assert.ErrorIs(s.FetchOne(ctx, store.CollectionUser, "u2", nil, &user), store.ErrNotFound)
		assert.Nil(s.Delete(ctx, store.CollectionUser, "u2"))
	})
}

func TestItemRecords(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := newTestStore(t)

	item := &model.Item{ID: "i1", Todo: "milk", User: "u1", Created: 1700000000000}

	t.Run("Upsert", func(t *testing.T) {
		assert.Nil(s.Upsert(ctx, store.CollectionTodo, item))
		item.Todo = "oat milk"
		assert.Nil(s.Upsert(ctx, store.CollectionTodo, item))

		var items []model.Item
		assert.Nil(s.FetchMany(ctx, store.CollectionTodo, store.Query{Projection: model.ItemFields}, &items))
		require.Len(t, items, 1)
		assert.Equal("oat milk", items[0].Todo)
		assert.False(items[0].Done)
		assert.Equal(int64(1700000000000), items[0].Created)
	})

	t.Run("Mark done", func(t *testing.T) {
		var updated model.Item
		assert.Nil(s.PartialUpdate(ctx, store.CollectionTodo, "i1", store.Assignments{"Done": true}, &updated))
		assert.True(updated.Done)
		assert.Equal("oat milk", updated.Todo)
	})

	t.Run("Empty update", func(t *testing.T) {
		var updated model.Item
		assert.Nil(s.PartialUpdate(ctx, store.CollectionTodo, "i1", store.Assignments{}, &updated))
		assert.True(updated.Done)
	})
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(context.Background(), "mysql", "")
	assert.Error(t, err)
}

func TestInsertStatement(t *testing.T) {
	s := &sqlStore{tables: store.DefaultTables()}

	query, err := s.insertStatement(store.CollectionTodo, &model.Item{}, true)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "todo" ("Id", "Todo", "User", "Done", "Created") VALUES (:Id, :Todo, :User, :Done, :Created) ON CONFLICT ("Id") DO UPDATE SET "Todo" = excluded."Todo", "User" = excluded."User", "Done" = excluded."Done", "Created" = excluded."Created"`, query)

	query, err = s.insertStatement(store.CollectionUser, &model.User{}, false)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "user" ("Id", "Handle", "Email", "Password", "Jwt") VALUES (:Id, :Handle, :Email, :Password, :Jwt) ON CONFLICT ("Id") DO NOTHING`, query)
}
