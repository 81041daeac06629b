package line

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"cart-engine/internal/db"
	"cart-engine/internal/domain"
	"cart-engine/internal/port"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const lineColumns = `id::text, cart_id::text, product_id, attributes, quantity, unit_price, created_at, updated_at`

type postgresRepo struct {
	q      db.DBTX
	logger *log.Logger
}

func NewPostgres(q db.DBTX, logger *log.Logger) port.LineStore {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{q: q, logger: logger}
}

func NewPostgresWithTx(tx pgx.Tx, logger *log.Logger) port.LineStore {
	return NewPostgres(tx, logger)
}

func (r *postgresRepo) FindByCartAndKey(ctx context.Context, cartID, productID string, attrs domain.Attributes) (*domain.LineItem, error) {
	const q = `
SELECT ` + lineColumns + `
FROM cart_lines
WHERE cart_id = $1 AND product_id = $2 AND attributes = $3::jsonb`
	line, err := scanLine(r.q.QueryRow(ctx, q, cartID, productID, attrs.Clone()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return line, nil
}

func (r *postgresRepo) ListByCart(ctx context.Context, cartID string) ([]domain.LineItem, error) {
	const q = `
SELECT ` + lineColumns + `
FROM cart_lines
WHERE cart_id = $1
ORDER BY seq ASC`
	rows, err := r.q.Query(ctx, q, cartID)
	if err != nil {
		r.logger.Printf("line repo: list cart_id=%s error=%v", cartID, err)
		return nil, err
	}
	defer rows.Close()

	var lines []domain.LineItem
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *postgresRepo) Create(ctx context.Context, in domain.NewLine) (*domain.LineItem, error) {
	const q = `
INSERT INTO cart_lines (cart_id, product_id, attributes, quantity, unit_price)
VALUES ($1, $2, $3::jsonb, $4, $5)
RETURNING ` + lineColumns
	line, err := scanLine(r.q.QueryRow(ctx, q, in.CartID, in.ProductID, in.Attributes.Clone(), in.Quantity, in.UnitPrice))
	if err != nil {
		r.logger.Printf("line repo: create cart_id=%s product_id=%s error=%v", in.CartID, in.ProductID, err)
		return nil, err
	}
	r.logger.Printf("line repo: created id=%s cart_id=%s product_id=%s qty=%d", line.ID, line.CartID, line.ProductID, line.Quantity)
	return line, nil
}

func (r *postgresRepo) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	return r.exec(ctx, "update quantity", lineID, `
UPDATE cart_lines
SET quantity = $2, updated_at = now()
WHERE id = $1`, lineID, quantity)
}

func (r *postgresRepo) Update(ctx context.Context, lineID string, quantity int, unitPrice decimal.Decimal) error {
	return r.exec(ctx, "update", lineID, `
UPDATE cart_lines
SET quantity = $2, unit_price = $3, updated_at = now()
WHERE id = $1`, lineID, quantity, unitPrice)
}

func (r *postgresRepo) Delete(ctx context.Context, lineID string) error {
	return r.exec(ctx, "delete", lineID, `DELETE FROM cart_lines WHERE id = $1`, lineID)
}

func (r *postgresRepo) DeleteByCart(ctx context.Context, cartID string) (int64, error) {
	cmd, err := r.q.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID)
	if err != nil {
		r.logger.Printf("line repo: delete by cart cart_id=%s error=%v", cartID, err)
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *postgresRepo) ReassignOwner(ctx context.Context, lineID, newCartID string) error {
	return r.exec(ctx, "reassign", lineID, `
UPDATE cart_lines
SET cart_id = $2, updated_at = now()
WHERE id = $1`, lineID, newCartID)
}

func (r *postgresRepo) exec(ctx context.Context, op, lineID, q string, args ...any) error {
	cmd, err := r.q.Exec(ctx, q, args...)
	if err != nil {
		r.logger.Printf("line repo: %s id=%s error=%v", op, lineID, err)
		return fmt.Errorf("line repo: %s id=%s: %w", op, lineID, err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanLine(row pgx.Row) (*domain.LineItem, error) {
	var line domain.LineItem
	if err := row.Scan(
		&line.ID,
		&line.CartID,
		&line.ProductID,
		&line.Attributes,
		&line.Quantity,
		&line.UnitPrice,
		&line.CreatedAt,
		&line.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if line.Attributes == nil {
		line.Attributes = domain.Attributes{}
	}
	return &line, nil
}
