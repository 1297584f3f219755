package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"uk.co.dudmesh.todo/internal/model"
)

type ItemService interface {
	Create(ctx context.Context, params *model.CreateItemParams) (*model.Item, error)
	List(ctx context.Context) ([]model.Item, error)
	Fetch(ctx context.Context, itemID model.ItemID) (*model.Item, error)
	Update(ctx context.Context, itemID model.ItemID, patch *model.ItemPatch) (*model.Item, error)
	Delete(ctx context.Context, itemID model.ItemID) error
}

func CreateItem(itemService ItemService) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := &model.CreateItemParams{}
		if err := bind(c, params); err != nil {
			return err
		}
		item, err := itemService.Create(c.Request().Context(), params)
		if err != nil {
			return err
		}
		return respond(c, item)
	}
}

func ListItems(itemService ItemService) echo.HandlerFunc {
	return func(c echo.Context) error {
		items, err := itemService.List(c.Request().Context())
		if err != nil {
			return err
		}
		return respond(c, items)
	}
}

func GetItem(itemService ItemService) echo.HandlerFunc {
	return func(c echo.Context) error {
		item, err := itemService.Fetch(c.Request().Context(), model.ItemID(c.Param("id")))
		if err != nil {
			return err
		}
		return respond(c, item)
	}
}

func UpdateItem(itemService ItemService) echo.HandlerFunc {
	return func(c echo.Context) error {
		patch := &model.ItemPatch{}
		if err := bind(c, patch); err != nil {
			return err
		}
		item, err := itemService.Update(c.Request().Context(), model.ItemID(c.Param("id")), patch)
		if err != nil {
			return err
		}
		return respond(c, item)
	}
}

func DeleteItem(itemService ItemService) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := &deleteParams{}
		if err := bind(c, params); err != nil {
			return err
		}
		if err := itemService.Delete(c.Request().Context(), model.ItemID(params.ID)); err != nil {
			return err
		}
		return respond(c, deleted{params.ID})
	}
}
