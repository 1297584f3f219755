package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"uk.co.dudmesh.todo/internal/model"
)

type UserService interface {
	Register(ctx context.Context, params *model.RegisterParams) (*model.User, error)
	Login(ctx context.Context, params *model.LoginParams) (*model.Session, error)
	Passive(ctx context.Context, jwt string) ([]model.User, error)
	Logout(ctx context.Context, jwt string) error
	List(ctx context.Context) ([]model.User, error)
	Fetch(ctx context.Context, userID model.UserID) (*model.User, error)
	Update(ctx context.Context, userID model.UserID, patch *model.UserPatch) (*model.User, error)
	Delete(ctx context.Context, userID model.UserID) error
}

func Register(userService UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := &model.RegisterParams{}
		if err := bind(c, params); err != nil {
			return err
		}
		user, err := userService.Register(c.Request().Context(), params)
		if err != nil {
			return err
		}
		return respond(c, user)
	}
}

func Login(userService UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := &model.LoginParams{}
		if err := bind(c, params); err != nil {
			return err
		}
		session, err := userService.Login(c.Request().Context(), params)
		if err != nil {
			return err
		}
		return respond(c, session)
	}
}

func Passive(userService UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := &model.SessionParams{}
		if err := bind(c, params); err != nil {
			return err
		}
		users, err := userService.Passive(c.Request().Context(), params.Jwt)
		if err != nil {
			return err
		}
		return respond(c, users)
	}
}

func Logout(userService UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := &model.SessionParams{}
		if err := bind(c, params); err != nil {
			return err
		}
		if err := userService.Logout(c.Request().Context(), params.Jwt); err != nil {
			return err
		}
		return respond(c, struct{}{})
	}
}

func ListUsers(userService UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		users, err := userService.List(c.Request().Context())
		if err != nil {
			return err
		}
		return respond(c, users)
	}
}

func GetUser(userService UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := userService.Fetch(c.Request().Context(), model.UserID(c.Param("id")))
		if err != nil {
			return err
		}
		return respond(c, user)
	}
}

func UpdateUser(userService UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		patch := &model.UserPatch{}
		if err := bind(c, patch); err != nil {
			return err
		}
		user, err := userService.Update(c.Request().Context(), model.UserID(c.Param("id")), patch)
		if err != nil {
			return err
		}
		return respond(c, user)
	}
}

// DeleteUser takes the id from the path, or from the body on the bare
// collection route.
func DeleteUser(userService UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := &deleteParams{}
		if err := bind(c, params); err != nil {
			return err
		}
		if err := userService.Delete(c.Request().Context(), model.UserID(params.ID)); err != nil {
			return err
		}
		return respond(c, deleted{params.ID})
	}
}
