package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/labstack/gommon/log"

	"uk.co.dudmesh.todo/internal/model"
	"uk.co.dudmesh.todo/internal/service"
	"uk.co.dudmesh.todo/internal/store"
	"uk.co.dudmesh.todo/pkg/ident"
)

type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
}

type TokenIssuer interface {
	Issue(subject string) (string, error)
	Verify(token string) (string, error)
}

type svc struct {
	store  store.Store
	hasher Hasher
	tokens TokenIssuer
}

func New(store store.Store, hasher Hasher, tokens TokenIssuer) *svc {
	return &svc{store, hasher, tokens}
}

// IDFor derives the user id from the registration handle and email.
func IDFor(handle, email string) model.UserID {
	return model.UserID(ident.Derive(ident.Seed{"handle": handle, "email": email}))
}

func (s *svc) Register(ctx context.Context, params *model.RegisterParams) (*model.User, error) {
	userID := IDFor(params.Handle, params.Email)

	var holders []model.User
	err := s.store.FetchMany(ctx, store.CollectionUser, store.Query{
		Index:      store.HandleIndex,
		Value:      params.Handle,
		Projection: []string{store.KeyAttribute},
	}, &holders)
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("looking up handle: %w", err), model.ErrorUserNotFound)
	}
	if len(holders) > 0 {
		return nil, model.ConflictError(model.ErrorHandleTaken)
	}

	encodedPassword, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, model.NewError(model.KindInternal, "generating encoded password", err)
	}

	jwt, err := s.tokens.Issue(string(userID))
	if err != nil {
		return nil, model.NewError(model.KindInternal, "issuing token", err)
	}

	user := &model.User{
		ID:       userID,
		Handle:   params.Handle,
		Email:    params.Email,
		Password: encodedPassword,
		Jwt:      jwt,
	}
	if err := s.store.Create(ctx, store.CollectionUser, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, model.ConflictError(model.ErrorHandleTaken)
		}
		return nil, service.StoreError(fmt.Errorf("creating user: %w", err), model.ErrorUserNotFound)
	}

	authEvents.WithLabelValues("register").Inc()
	log.Infof("registered user %s", userID)

	user.Password = ""
	return user, nil
}

// Login checks the credentials for handle and starts a new session. Any
// failure leaves the stored session untouched.
func (s *svc) Login(ctx context.Context, params *model.LoginParams) (*model.Session, error) {
	var users []model.User
	err := s.store.FetchMany(ctx, store.CollectionUser, store.Query{
		Index: store.HandleIndex,
		Value: params.Handle,
	}, &users)
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("looking up handle: %w", err), model.ErrorUserNotFound)
	}
	if len(users) != 1 {
		authEvents.WithLabelValues("login_failed").Inc()
		return nil, model.AuthError(model.ErrorInvalidUsernameOrPassword)
	}
	user := users[0]

	if !s.hasher.Verify(params.Password, user.Password) {
		authEvents.WithLabelValues("login_failed").Inc()
		return nil, model.AuthError(model.ErrorInvalidUsernameOrPassword)
	}

	jwt, err := s.tokens.Issue(string(user.ID))
	if err != nil {
		return nil, model.NewError(model.KindInternal, "issuing token", err)
	}

	var updated model.User
	err = s.store.PartialUpdate(ctx, store.CollectionUser, string(user.ID), store.Assignments{"Jwt": jwt}, &updated)
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("storing session: %w", err), model.ErrorUserNotFound)
	}

	authEvents.WithLabelValues("login").Inc()
	log.Infof("user %s logged in", user.ID)

	return &model.Session{Jwt: jwt}, nil
}

// Passive reports the users currently holding jwt. An empty result means the
// token is well formed but no longer bound to a session.
func (s *svc) Passive(ctx context.Context, jwt string) ([]model.User, error) {
	if _, err := s.tokens.Verify(jwt); err != nil {
		return nil, model.TokenError(err)
	}

	users := []model.User{}
	err := s.store.FetchMany(ctx, store.CollectionUser, store.Query{
		Index:      store.JwtIndex,
		Value:      jwt,
		Projection: model.UserFields,
	}, &users)
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("looking up session: %w", err), model.ErrorUserNotFound)
	}
	return users, nil
}

func (s *svc) Logout(ctx context.Context, jwt string) error {
	var users []model.User
	err := s.store.FetchMany(ctx, store.CollectionUser, store.Query{
		Index:      store.JwtIndex,
		Value:      jwt,
		Projection: []string{store.KeyAttribute},
	}, &users)
	if err != nil {
		return service.StoreError(fmt.Errorf("looking up session: %w", err), model.ErrorUserNotFound)
	}

	for _, user := range users {
		var updated model.User
		err := s.store.PartialUpdate(ctx, store.CollectionUser, string(user.ID), store.Assignments{"Jwt": nil}, &updated)
		if err != nil {
			return service.StoreError(fmt.Errorf("clearing session: %w", err), model.ErrorUserNotFound)
		}
		authEvents.WithLabelValues("logout").Inc()
		log.Infof("user %s logged out", user.ID)
	}
	return nil
}

func (s *svc) List(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	err := s.store.FetchMany(ctx, store.CollectionUser, store.Query{Projection: model.UserFields}, &users)
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("listing users: %w", err), model.ErrorUserNotFound)
	}
	return users, nil
}

func (s *svc) Fetch(ctx context.Context, userID model.UserID) (*model.User, error) {
	user := &model.User{}
	err := s.store.FetchOne(ctx, store.CollectionUser, string(userID), model.UserFields, user)
	if err != nil {
		return nil, service.StoreError(fmt.Errorf("fetching user: %w", err), model.ErrorUserNotFound)
	}
	return user, nil
}

func (s *svc) Update(ctx context.Context, userID model.UserID, patch *model.UserPatch) (*model.User, error) {
	if patch.IsEmpty() {
		return s.Fetch(ctx, userID)
	}

	set := store.Assignments{}
	if patch.Email != nil {
		set["Email"] = *patch.Email
	}
	if patch.Password != nil {
		encodedPassword, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return nil, model.NewError(model.KindInternal, "generating encoded password", err)
		}
		set["Password"] = encodedPassword
	}

	user := &model.User{}
	if err := s.store.PartialUpdate(ctx, store.CollectionUser, string(userID), set, user); err != nil {
		return nil, service.StoreError(fmt.Errorf("updating user: %w", err), model.ErrorUserNotFound)
	}
	user.Password = ""
	return user, nil
}

func (s *svc) Delete(ctx context.Context, userID model.UserID) error {
	if err := s.store.Delete(ctx, store.CollectionUser, string(userID)); err != nil {
		return service.StoreError(fmt.Errorf("deleting user: %w", err), model.ErrorUserNotFound)
	}
	return nil
}
