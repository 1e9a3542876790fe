package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rifa/internal/status"
	"rifa/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

// PocketBaseStore keeps tickets as records of the embedded PocketBase app.
type PocketBaseStore struct {
	app core.App
}

func NewPocketBaseStore(app core.App) *PocketBaseStore {
	return &PocketBaseStore{app: app}
}

// EnsureCollections creates the boletas and sorteos collections when missing.
func EnsureCollections(app core.App) error {
	if err := ensureCollection(app, TicketsCollection, func(c *core.Collection) {
		c.Fields.Add(
			&core.TextField{Name: "numero", Required: true, Min: 2, Max: 2, Pattern: `^\d{2}$`},
			&core.SelectField{
				Name:      "estado",
				Required:  true,
				MaxSelect: 1,
				Values: []string{
					string(models.StatusAvailable),
					string(models.StatusReserved),
					string(models.StatusPaid),
				},
			},
			&core.TextField{Name: "nombre", Max: 100},
			&core.TextField{Name: "telefono", Max: 30},
			&core.TextField{Name: "comprobante", Max: 500},
			&core.DateField{Name: "reservada_en"},
			&core.DateField{Name: "expira_en"},
			&core.DateField{Name: "pagada_en"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)
		c.AddIndex("idx_boletas_numero", true, "numero", "")
		c.AddIndex("idx_boletas_estado", false, "estado", "")
	}); err != nil {
		return err
	}

	return ensureCollection(app, DrawsCollection, func(c *core.Collection) {
		c.Fields.Add(
			&core.BoolField{Name: "finalizado"},
			&core.TextField{Name: "numero_ganador", Max: 2, Pattern: `^\d{2}$`},
			&core.DateField{Name: "finalizado_en"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)
	})
}

func ensureCollection(app core.App, name string, define func(c *core.Collection)) error {
	_, err := app.FindCollectionByNameOrId(name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("find collection %s: %w", name, err)
	}

	collection := core.NewBaseCollection(name)
	define(collection)

	if err := app.Save(collection); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}

	slog.Info("Created collection", "collection", name)
	return nil
}

func (s *PocketBaseStore) EnsureSchema(ctx context.Context) error {
	return EnsureCollections(s.app)
}

func (s *PocketBaseStore) Seed(ctx context.Context, reset bool) (int, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 && !reset {
		return count, status.ErrAlreadySeeded
	}

	err = s.app.RunInTransaction(func(txApp core.App) error {
		if count > 0 {
			existing, err := txApp.FindAllRecords(TicketsCollection)
			if err != nil {
				return err
			}
			for _, record := range existing {
				if err := txApp.DeleteWithContext(ctx, record); err != nil {
					return err
				}
			}

			draws, err := txApp.FindAllRecords(DrawsCollection)
			if err != nil {
				return err
			}
			for _, record := range draws {
				if err := txApp.DeleteWithContext(ctx, record); err != nil {
					return err
				}
			}
		}

		collection, err := txApp.FindCollectionByNameOrId(TicketsCollection)
		if err != nil {
			return err
		}

		for _, number := range models.AllNumbers() {
			record := core.NewRecord(collection)
			record.Set("numero", number)
			record.Set("estado", string(models.StatusAvailable))
			if err := txApp.SaveWithContext(ctx, record); err != nil {
				return fmt.Errorf("seed boleta %s: %w", number, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return models.TotalTickets, nil
}

func (s *PocketBaseStore) Count(ctx context.Context) (int, error) {
	total, err := s.app.CountRecords(TicketsCollection)
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

func (s *PocketBaseStore) Ping(ctx context.Context) error {
	_, err := s.app.DB().NewQuery("SELECT 1").WithContext(ctx).Execute()
	return err
}

func (s *PocketBaseStore) List(ctx context.Context) ([]models.Ticket, error) {
	records := []*core.Record{}
	err := s.app.RecordQuery(TicketsCollection).
		WithContext(ctx).
		OrderBy("numero ASC").
		All(&records)
	if err != nil {
		return nil, err
	}

	tickets := make([]models.Ticket, len(records))
	for i, record := range records {
		tickets[i] = recordToTicket(record)
	}
	return tickets, nil
}

func (s *PocketBaseStore) Find(ctx context.Context, number string) (*models.Ticket, error) {
	record, err := findTicketRecord(s.app, number)
	if err != nil {
		return nil, err
	}

	ticket := recordToTicket(record)
	return &ticket, nil
}

func (s *PocketBaseStore) StatusCounts(ctx context.Context) (map[models.Status]int, error) {
	rows := []struct {
		Estado string `db:"estado"`
		Total  int    `db:"total"`
	}{}

	err := s.app.DB().
		Select("estado", "COUNT(*) AS total").
		From(TicketsCollection).
		GroupBy("estado").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, err
	}

	counts := make(map[models.Status]int, len(rows))
	for _, row := range rows {
		if st := models.Status(row.Estado); st.Valid() {
			counts[st] = row.Total
		}
	}
	return counts, nil
}

func (s *PocketBaseStore) Reserve(ctx context.Context, req ReserveRequest) (*models.Ticket, error) {
	var reserved models.Ticket

	err := s.app.RunInTransaction(func(txApp core.App) error {
		record, err := findTicketRecord(txApp, req.Number)
		if err != nil {
			return err
		}

		current := recordToTicket(record)
		if current.Status != models.StatusAvailable && !current.Expired(req.Now) {
			return status.ErrTicketUnavailable
		}

		record.Set("estado", string(models.StatusReserved))
		record.Set("nombre", req.Buyer.Name)
		record.Set("telefono", req.Buyer.Phone)
		record.Set("comprobante", req.ProofKey)
		record.Set("reservada_en", req.Now)
		record.Set("pagada_en", "")
		if req.ExpiresAt != nil {
			record.Set("expira_en", *req.ExpiresAt)
		} else {
			record.Set("expira_en", "")
		}

		if err := txApp.SaveWithContext(ctx, record); err != nil {
			return err
		}

		reserved = recordToTicket(record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &reserved, nil
}

func (s *PocketBaseStore) MarkPaid(ctx context.Context, number string, now time.Time) (*models.Ticket, error) {
	var paid models.Ticket

	err := s.app.RunInTransaction(func(txApp core.App) error {
		record, err := findTicketRecord(txApp, number)
		if err != nil {
			return err
		}

		if models.Status(record.GetString("estado")) != models.StatusReserved {
			return status.ErrInvalidTransition
		}

		record.Set("estado", string(models.StatusPaid))
		record.Set("pagada_en", now)
		record.Set("expira_en", "")

		if err := txApp.SaveWithContext(ctx, record); err != nil {
			return err
		}

		paid = recordToTicket(record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &paid, nil
}

func (s *PocketBaseStore) Release(ctx context.Context, number string) (*models.Ticket, error) {
	var previous models.Ticket

	err := s.app.RunInTransaction(func(txApp core.App) error {
		record, err := findTicketRecord(txApp, number)
		if err != nil {
			return err
		}

		previous = recordToTicket(record)
		if previous.Status != models.StatusReserved {
			return status.ErrInvalidTransition
		}

		clearTicketRecord(record)
		return txApp.SaveWithContext(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	return &previous, nil
}

func (s *PocketBaseStore) ReleaseExpired(ctx context.Context, now time.Time) ([]models.Ticket, error) {
	cutoff, err := types.ParseDateTime(now)
	if err != nil {
		return nil, err
	}

	var released []models.Ticket

	err = s.app.RunInTransaction(func(txApp core.App) error {
		records := []*core.Record{}
		err := txApp.RecordQuery(TicketsCollection).
			WithContext(ctx).
			AndWhere(dbx.HashExp{"estado": string(models.StatusReserved)}).
			AndWhere(dbx.NewExp("expira_en != '' AND expira_en <= {:cutoff}", dbx.Params{"cutoff": cutoff.String()})).
			OrderBy("numero ASC").
			All(&records)
		if err != nil {
			return err
		}

		for _, record := range records {
			previous := recordToTicket(record)
			clearTicketRecord(record)
			if err := txApp.SaveWithContext(ctx, record); err != nil {
				return err
			}
			released = append(released, previous)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return released, nil
}

func (s *PocketBaseStore) Draw(ctx context.Context) (models.Draw, error) {
	record, err := findDrawRecord(s.app)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Draw{}, nil
	}
	if err != nil {
		return models.Draw{}, err
	}
	return recordToDraw(record), nil
}

func (s *PocketBaseStore) FinalizeDraw(ctx context.Context, winning string, now time.Time) (models.Draw, error) {
	var draw models.Draw

	err := s.app.RunInTransaction(func(txApp core.App) error {
		record, err := findDrawRecord(txApp)
		if errors.Is(err, sql.ErrNoRows) {
			collection, err := txApp.FindCollectionByNameOrId(DrawsCollection)
			if err != nil {
				return err
			}
			record = core.NewRecord(collection)
		} else if err != nil {
			return err
		}

		if record.GetBool("finalizado") {
			return status.ErrDrawFinalized
		}

		record.Set("finalizado", true)
		record.Set("numero_ganador", winning)
		record.Set("finalizado_en", now)

		if err := txApp.SaveWithContext(ctx, record); err != nil {
			return err
		}

		draw = recordToDraw(record)
		return nil
	})
	if err != nil {
		return models.Draw{}, err
	}

	return draw, nil
}

func (s *PocketBaseStore) Close(ctx context.Context) error {
	return nil
}

func findTicketRecord(app core.App, number string) (*core.Record, error) {
	record, err := app.FindFirstRecordByData(TicketsCollection, "numero", number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func findDrawRecord(app core.App) (*core.Record, error) {
	record := &core.Record{}
	err := app.RecordQuery(DrawsCollection).
		OrderBy("created ASC").
		Limit(1).
		One(record)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func clearTicketRecord(record *core.Record) {
	record.Set("estado", string(models.StatusAvailable))
	record.Set("nombre", "")
	record.Set("telefono", "")
	record.Set("comprobante", "")
	record.Set("reservada_en", "")
	record.Set("expira_en", "")
	record.Set("pagada_en", "")
}

func recordToTicket(record *core.Record) models.Ticket {
	ticket := models.Ticket{
		Number:     record.GetString("numero"),
		Status:     models.Status(record.GetString("estado")),
		ProofKey:   record.GetString("comprobante"),
		ReservedAt: optionalTime(record.GetDateTime("reservada_en")),
		ExpiresAt:  optionalTime(record.GetDateTime("expira_en")),
		PaidAt:     optionalTime(record.GetDateTime("pagada_en")),
		CreatedAt:  optionalTime(record.GetDateTime("created")),
		UpdatedAt:  optionalTime(record.GetDateTime("updated")),
	}

	name, phone := record.GetString("nombre"), record.GetString("telefono")
	if name != "" || phone != "" {
		ticket.Buyer = &models.Buyer{Name: name, Phone: phone}
	}

	return ticket
}

func recordToDraw(record *core.Record) models.Draw {
	return models.Draw{
		Finalized:     record.GetBool("finalizado"),
		WinningNumber: record.GetString("numero_ganador"),
		FinalizedAt:   optionalTime(record.GetDateTime("finalizado_en")),
	}
}

func optionalTime(dt types.DateTime) *time.Time {
	if dt.IsZero() {
		return nil
	}
	t := dt.Time()
	return &t
}
