package cart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"cart-engine/internal/db"
	"cart-engine/internal/domain"
	"cart-engine/internal/port"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const cartColumns = `id::text, user_id, session_key, instance, status, total_price, item_count, placed_at, completed_at, created_at, updated_at`

type postgresRepo struct {
	q      db.DBTX
	lock   bool
	logger *log.Logger
}

// NewPostgres returns a repository running each statement on its own.
func NewPostgres(q db.DBTX, logger *log.Logger) port.CartRepository {
	return newRepo(q, false, logger)
}

// NewPostgresWithTx returns a repository bound to tx. Carts it reads stay
// locked until the transaction ends.
func NewPostgresWithTx(tx pgx.Tx, logger *log.Logger) port.CartRepository {
	return newRepo(tx, true, logger)
}

func newRepo(q db.DBTX, lock bool, logger *log.Logger) *postgresRepo {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{q: q, lock: lock, logger: logger}
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Cart, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	cart, err := r.fetchOne(ctx, `
SELECT `+cartColumns+`
FROM carts
WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, domain.ErrNotFound
	}
	return cart, nil
}

func (r *postgresRepo) FindActiveByUser(ctx context.Context, userID, instance string) (*domain.Cart, error) {
	return r.fetchOne(ctx, `
SELECT `+cartColumns+`
FROM carts
WHERE user_id = $1 AND instance = $2 AND status = 'active'`, userID, instance)
}

func (r *postgresRepo) FindActiveBySession(ctx context.Context, sessionKey, instance string) (*domain.Cart, error) {
	return r.fetchOne(ctx, `
SELECT `+cartColumns+`
FROM carts
WHERE session_key = $1 AND instance = $2 AND status = 'active'`, sessionKey, instance)
}

func (r *postgresRepo) CreateActive(ctx context.Context, owner domain.Owner, instance string) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("cart repo: create: owner must be either user or session, got %+v", owner)
	}
	const q = `
INSERT INTO carts (user_id, session_key, instance, status)
VALUES ($1, $2, $3, 'active')
RETURNING ` + cartColumns
	cart, err := scanCart(r.q.QueryRow(ctx, q, nullable(owner.UserID), nullable(owner.SessionKey), instance))
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			r.logger.Printf("cart repo: create owner=%s instance=%s lost race", owner, instance)
			return nil, fmt.Errorf("cart repo: create owner=%s instance=%s: %w", owner, instance, domain.ErrDuplicateActiveCart)
		}
		return nil, err
	}
	r.logger.Printf("cart repo: created id=%s owner=%s instance=%s", cart.ID, owner, instance)
	return cart, nil
}

func (r *postgresRepo) FirstOrCreateBySession(ctx context.Context, sessionKey, instance string) (*domain.Cart, error) {
	const q = `
INSERT INTO carts (session_key, instance, status)
VALUES ($1, $2, 'active')
ON CONFLICT (session_key, instance) WHERE status = 'active' AND session_key IS NOT NULL DO NOTHING
RETURNING ` + cartColumns
	cart, err := scanCart(r.q.QueryRow(ctx, q, sessionKey, instance))
	if err == nil {
		r.logger.Printf("cart repo: created id=%s session=%s instance=%s", cart.ID, sessionKey, instance)
		return cart, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	existing, err := r.FindActiveBySession(ctx, sessionKey, instance)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		// Another writer moved the cart out of active between both statements.
		return nil, fmt.Errorf("cart repo: first-or-create session=%s instance=%s: %w", sessionKey, instance, domain.ErrTransactionAborted)
	}
	return existing, nil
}

func (r *postgresRepo) Save(ctx context.Context, cart *domain.Cart) error {
	const q = `
UPDATE carts
SET user_id = $2,
    session_key = $3,
    instance = $4,
    status = $5,
    total_price = $6,
    item_count = $7,
    placed_at = $8,
    completed_at = $9,
    updated_at = now()
WHERE id = $1
RETURNING updated_at`
	err := r.q.QueryRow(ctx, q,
		cart.ID,
		cart.UserID,
		cart.SessionKey,
		cart.Instance,
		string(cart.Status),
		cart.TotalPrice,
		cart.ItemCount,
		cart.PlacedAt,
		cart.CompletedAt,
	).Scan(&cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if db.IsUniqueViolation(err, "") {
			return fmt.Errorf("cart repo: save id=%s: %w", cart.ID, domain.ErrDuplicateActiveCart)
		}
		r.logger.Printf("cart repo: save id=%s error=%v", cart.ID, err)
		return err
	}
	return nil
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id)
	if err != nil {
		r.logger.Printf("cart repo: delete id=%s error=%v", id, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	r.logger.Printf("cart repo: deleted id=%s", id)
	return nil
}

func (r *postgresRepo) ExpireStale(ctx context.Context, untouchedSince time.Time) (int64, error) {
	cmd, err := r.q.Exec(ctx, `
UPDATE carts
SET status = 'expired', updated_at = now()
WHERE status = 'active' AND updated_at < $1`, untouchedSince)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *postgresRepo) DeleteExpired(ctx context.Context, untouchedSince time.Time) (int64, error) {
	cmd, err := r.q.Exec(ctx, `
DELETE FROM carts
WHERE status = 'expired' AND updated_at < $1`, untouchedSince)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *postgresRepo) fetchOne(ctx context.Context, q string, args ...any) (*domain.Cart, error) {
	if r.lock {
		q += "\nFOR UPDATE"
	}
	cart, err := scanCart(r.q.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return cart, nil
}

func scanCart(row pgx.Row) (*domain.Cart, error) {
	var (
		cart   domain.Cart
		status string
	)
	if err := row.Scan(
		&cart.ID,
		&cart.UserID,
		&cart.SessionKey,
		&cart.Instance,
		&status,
		&cart.TotalPrice,
		&cart.ItemCount,
		&cart.PlacedAt,
		&cart.CompletedAt,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := domain.ToStatus(status)
	if err != nil {
		return nil, err
	}
	cart.Status = parsed
	return &cart, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
