package migrations

import (
	"context"
	"errors"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"

	"rifa/internal/status"
	"rifa/internal/store"
)

func init() {
	m.Register(func(app core.App) error {
		if err := store.EnsureCollections(app); err != nil {
			return err
		}

		_, err := store.NewPocketBaseStore(app).Seed(context.Background(), false)
		if errors.Is(err, status.ErrAlreadySeeded) {
			return nil
		}
		return err
	}, func(app core.App) error {
		for _, name := range []string{store.DrawsCollection, store.TicketsCollection} {
			collection, err := app.FindCollectionByNameOrId(name)
			if err != nil {
				continue
			}
			if err := app.Delete(collection); err != nil {
				return err
			}
		}
		return nil
	})
}
