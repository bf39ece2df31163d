package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ReturnRow records a faulty-return or replacement request for an order line.
type ReturnRow struct {
	ID             pgtype.UUID
	OrderID        pgtype.UUID
	OrderItemID    pgtype.UUID
	Kind           string
	Reason         string
	Status         string
	ResolutionNote pgtype.Text
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
	ResolvedAt     pgtype.Timestamptz
}

const returnColumns = `id, order_id, order_item_id, kind, reason, status, resolution_note, created_at, updated_at, resolved_at`

func scanReturn(row pgx.Row) (ReturnRow, error) {
	var r ReturnRow
	err := row.Scan(&r.ID, &r.OrderID, &r.OrderItemID, &r.Kind, &r.Reason, &r.Status,
		&r.ResolutionNote, &r.CreatedAt, &r.UpdatedAt, &r.ResolvedAt)
	return r, mapError(err)
}

// CreateReturnParams carries fields for return creation.
type CreateReturnParams struct {
	OrderID     pgtype.UUID
	OrderItemID pgtype.UUID
	Kind        string
	Reason      string
}

// CreateReturn opens a return record.
func (s *Store) CreateReturn(ctx context.Context, arg CreateReturnParams) (ReturnRow, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO returns (order_id, order_item_id, kind, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING `+returnColumns,
		arg.OrderID, arg.OrderItemID, arg.Kind, arg.Reason)
	return scanReturn(row)
}

// GetReturnByID loads a return record.
func (s *Store) GetReturnByID(ctx context.Context, id pgtype.UUID) (ReturnRow, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+returnColumns+` FROM returns WHERE id = $1`, id)
	return scanReturn(row)
}

// ListReturns returns records newest first, optionally filtered by status.
func (s *Store) ListReturns(ctx context.Context, status string, limit, offset int32) ([]ReturnRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+returnColumns+` FROM returns
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var out []ReturnRow
	for rows.Next() {
		r, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, mapError(rows.Err())
}

// ResolveReturn closes a return with the given status and note.
func (s *Store) ResolveReturn(ctx context.Context, id pgtype.UUID, status string, note pgtype.Text) (ReturnRow, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE returns
		SET status = $2, resolution_note = $3, resolved_at = now(), updated_at = now()
		WHERE id = $1
		RETURNING `+returnColumns, id, status, note)
	return scanReturn(row)
}
