package user

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nrednav/cuid2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"uk.co.dudmesh.todo/internal/model"
	"uk.co.dudmesh.todo/internal/store"
	"uk.co.dudmesh.todo/internal/store/sqlstore"
	"uk.co.dudmesh.todo/pkg/crypt"
	"uk.co.dudmesh.todo/pkg/token"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

type fixture struct {
	svc    *svc
	store  store.Store
	clock  *clock
	issuer *token.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", cuid2.Generate())
	s, err := sqlstore.New(context.Background(), sqlstore.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := &clock{now: time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)}
	issuer, err := token.New([]byte("test-secret"), "todo-api.test",
		token.WithClock(c.Now), token.WithIDGenerator(model.CreateID))
	require.NoError(t, err)

	return &fixture{New(s, crypt.NewHasher(bcrypt.MinCost), issuer), s, c, issuer}
}

var alice = &model.RegisterParams{
	Handle:   "alice",
	Email:    "alice@example.com",
	Password: "correct horse",
}

func TestRegister(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	user, err := f.svc.Register(ctx, alice)
	require.NoError(t, err)
	assert.Equal(IDFor(alice.Handle, alice.Email), user.ID)
	assert.Equal(alice.Handle, user.Handle)
	assert.Empty(user.Password)
	assert.NotEmpty(user.Jwt)

	subject, err := f.issuer.Verify(user.Jwt)
	assert.NoError(err)
	assert.Equal(string(user.ID), subject)

	t.Run("Password is stored hashed", func(t *testing.T) {
		stored := &model.User{}
		require.NoError(t, f.store.FetchOne(ctx, store.CollectionUser, string(user.ID), nil, stored))
		assert.NotEqual(alice.Password, stored.Password)
		assert.True(crypt.NewHasher(bcrypt.MinCost).Verify(alice.Password, stored.Password))
	})

	t.Run("Same registration twice", func(t *testing.T) {
		_, err := f.svc.Register(ctx, alice)
		assert.Equal(model.KindConflict, model.KindOf(err))
	})

	t.Run("Handle taken with another email", func(t *testing.T) {
		_, err := f.svc.Register(ctx, &model.RegisterParams{Handle: "alice", Email: "other@example.com", Password: "x"})
		assert.Equal(model.KindConflict, model.KindOf(err))
		assert.ErrorIs(err, model.ErrorHandleTaken)
	})
}

func TestLogin(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	registered, err := f.svc.Register(ctx, alice)
	require.NoError(t, err)

	t.Run("Wrong password", func(t *testing.T) {
		session, err := f.svc.Login(ctx, &model.LoginParams{Handle: "alice", Password: "wrong"})
		assert.Nil(session)
		assert.Equal(model.KindAuth, model.KindOf(err))

		stored, err := f.svc.Fetch(ctx, registered.ID)
		require.NoError(t, err)
		assert.Equal(registered.Jwt, stored.Jwt)
	})

	t.Run("Unknown handle", func(t *testing.T) {
		_, err := f.svc.Login(ctx, &model.LoginParams{Handle: "bob", Password: "correct horse"})
		assert.Equal(model.KindAuth, model.KindOf(err))
		assert.ErrorIs(err, model.ErrorInvalidUsernameOrPassword)
	})

	t.Run("Success", func(t *testing.T) {
		f.clock.now = f.clock.now.Add(time.Minute)
		session, err := f.svc.Login(ctx, &model.LoginParams{Handle: "alice", Password: "correct horse"})
		require.NoError(t, err)
		assert.NotEqual(registered.Jwt, session.Jwt)

		stored, err := f.svc.Fetch(ctx, registered.ID)
		require.NoError(t, err)
		assert.Equal(session.Jwt, stored.Jwt)

		claims, err := f.issuer.Parse(session.Jwt)
		require.NoError(t, err)
		assert.Equal(7*24*time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
	})
}

func TestSessions(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, alice)
	require.NoError(t, err)
	session, err := f.svc.Login(ctx, &model.LoginParams{Handle: "alice", Password: "correct horse"})
	require.NoError(t, err)

	t.Run("Passive finds the holder", func(t *testing.T) {
		users, err := f.svc.Passive(ctx, session.Jwt)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal("alice", users[0].Handle)
		assert.Empty(users[0].Password)
	})

	t.Run("Passive rejects garbage", func(t *testing.T) {
		_, err := f.svc.Passive(ctx, "not-a-token")
		assert.Equal(model.KindToken, model.KindOf(err))
	})

	t.Run("Passive rejects expired tokens", func(t *testing.T) {
		saved := f.clock.now
		f.clock.now = f.clock.now.Add(7*24*time.Hour + time.Second)
		defer func() { f.clock.now = saved }()

		_, err := f.svc.Passive(ctx, session.Jwt)
		assert.Equal(model.KindToken, model.KindOf(err))
		assert.ErrorIs(err, token.ErrTokenExpired)
	})

	t.Run("Logout clears the session", func(t *testing.T) {
		require.NoError(t, f.svc.Logout(ctx, session.Jwt))

		users, err := f.svc.Passive(ctx, session.Jwt)
		require.NoError(t, err)
		assert.Empty(users)
	})

	t.Run("Logout of an unknown token", func(t *testing.T) {
		assert.NoError(f.svc.Logout(ctx, "unknown"))
	})
}

func TestProfile(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	registered, err := f.svc.Register(ctx, alice)
	require.NoError(t, err)

	t.Run("List", func(t *testing.T) {
		users, err := f.svc.List(ctx)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(registered.ID, users[0].ID)
		assert.Empty(users[0].Password)
	})

	t.Run("Fetch missing", func(t *testing.T) {
		_, err := f.svc.Fetch(ctx, "missing")
		assert.Equal(model.KindNotFound, model.KindOf(err))
		assert.ErrorIs(err, model.ErrorUserNotFound)
	})

	t.Run("Empty patch", func(t *testing.T) {
		user, err := f.svc.Update(ctx, registered.ID, &model.UserPatch{})
		require.NoError(t, err)
		assert.Equal(alice.Email, user.Email)
	})

	t.Run("Change email and password", func(t *testing.T) {
		email, password := "alice@new.example.com", "battery staple"
		user, err := f.svc.Update(ctx, registered.ID, &model.UserPatch{Email: &email, Password: &password})
		require.NoError(t, err)
		assert.Equal(email, user.Email)
		assert.Equal("alice", user.Handle)
		assert.Empty(user.Password)

		_, err = f.svc.Login(ctx, &model.LoginParams{Handle: "alice", Password: password})
		assert.NoError(err)
	})

	t.Run("Update missing", func(t *testing.T) {
		email := "nobody@example.com"
		_, err := f.svc.Update(ctx, "missing", &model.UserPatch{Email: &email})
		assert.Equal(model.KindNotFound, model.KindOf(err))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, f.svc.Delete(ctx, registered.ID))
		_, err := f.svc.Fetch(ctx, registered.ID)
		assert.Equal(model.KindNotFound, model.KindOf(err))
	})
}
