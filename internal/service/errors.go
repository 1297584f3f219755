// Package service holds what the user and item services share.
package service

import (
	"errors"

	"uk.co.dudmesh.todo/internal/model"
	"uk.co.dudmesh.todo/internal/store"
)

// StoreError classifies an error returned by the store. notFound replaces
// store.ErrNotFound so callers see which record was missing.
func StoreError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return model.NotFoundError(notFound)
	case errors.Is(err, store.ErrConflict):
		return model.ConflictError(err)
	}
	return model.StoreError(err)
}
