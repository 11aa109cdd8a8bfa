package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the subscription domain in PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// StoreOption configures PostgresStore.
type StoreOption func(*PostgresStore) error

// WithSchema sets the DB schema used by the store (default: "carteira").
func WithSchema(schema string) StoreOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return ErrInvalidInput
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...StoreOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "carteira"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, ErrInvalidInput
	}
	return st, nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, u User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	users := pgIdent(s.schema, "users")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+users+` (id, email, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET email = EXCLUDED.email, name = EXCLUDED.name, updated_at = EXCLUDED.updated_at`,
		u.ID, u.Email, u.Name, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	users := pgIdent(s.schema, "users")
	_, err := s.pool.Exec(ctx, `DELETE FROM `+users+` WHERE id = $1`, id)
	return err
}

const subscriptionColumns = `id, owner_id, template_id, name, description, type,
	max_members, price_in_cents, renewal_day, status, created_at, updated_at`

func (s *PostgresStore) CreateSubscription(ctx context.Context, sub Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subs := pgIdent(s.schema, "subscriptions")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+subs+` (`+subscriptionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sub.ID, sub.OwnerID, sub.TemplateID, sub.Name, sub.Description, sub.Type,
		sub.MaxMembers, sub.PriceInCents, sub.RenewalDay, sub.Status, sub.CreatedAt, sub.UpdatedAt,
	)
	return mapPgError(err)
}

func (s *PostgresStore) GetSubscription(ctx context.Context, id string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return Subscription{}, err
	}
	subs := pgIdent(s.schema, "subscriptions")
	row := s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM `+subs+` WHERE id = $1`, id)
	return scanSubscription(row)
}

func (s *PostgresStore) ListVisibleSubscriptions(ctx context.Context, userID string) ([]Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	subs := pgIdent(s.schema, "subscriptions")
	members := pgIdent(s.schema, "subscription_members")
	rows, err := s.pool.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM `+subs+`
		 WHERE owner_id = $1
		    OR id IN (SELECT subscription_id FROM `+members+` WHERE user_id = $1)
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateSubscription(ctx context.Context, sub Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subs := pgIdent(s.schema, "subscriptions")
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+subs+`
		 SET name = $2, description = $3, type = $4, max_members = $5,
		     price_in_cents = $6, renewal_day = $7, status = $8, updated_at = $9
		 WHERE id = $1`,
		sub.ID, sub.Name, sub.Description, sub.Type, sub.MaxMembers,
		sub.PriceInCents, sub.RenewalDay, sub.Status, sub.UpdatedAt,
	)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteSubscription(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Members and the account cascade via their foreign keys.
	subs := pgIdent(s.schema, "subscriptions")
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+subs+` WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, subscriptionID string) ([]Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	members := pgIdent(s.schema, "subscription_members")
	rows, err := s.pool.Query(ctx,
		`SELECT id, subscription_id, user_id, created_at
		 FROM `+members+` WHERE subscription_id = $1 ORDER BY created_at`, subscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.SubscriptionID, &m.UserID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddMember(ctx context.Context, m Member) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	members := pgIdent(s.schema, "subscription_members")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+members+` (id, subscription_id, user_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (subscription_id, user_id) DO NOTHING`,
		m.ID, m.SubscriptionID, m.UserID, m.CreatedAt,
	)
	return mapPgError(err)
}

func (s *PostgresStore) RemoveMember(ctx context.Context, subscriptionID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	members := pgIdent(s.schema, "subscription_members")
	_, err := s.pool.Exec(ctx,
		`DELETE FROM `+members+` WHERE subscription_id = $1 AND user_id = $2`,
		subscriptionID, userID,
	)
	return mapPgError(err)
}

func (s *PostgresStore) UpsertAccount(ctx context.Context, a Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	accounts := pgIdent(s.schema, "subscription_accounts")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+accounts+` (id, subscription_id, account_username, sealed_account_password, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (subscription_id) DO UPDATE
		 SET account_username = EXCLUDED.account_username,
		     sealed_account_password = EXCLUDED.sealed_account_password,
		     updated_at = EXCLUDED.updated_at`,
		a.ID, a.SubscriptionID, a.Username, a.SealedPassword, a.CreatedAt, a.UpdatedAt,
	)
	return mapPgError(err)
}

func (s *PostgresStore) GetAccount(ctx context.Context, subscriptionID string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	accounts := pgIdent(s.schema, "subscription_accounts")
	var a Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, subscription_id, account_username, sealed_account_password, created_at, updated_at
		 FROM `+accounts+` WHERE subscription_id = $1`, subscriptionID).
		Scan(&a.ID, &a.SubscriptionID, &a.Username, &a.SealedPassword, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, mapPgError(err)
	}
	return a, nil
}

const templateColumns = `id, name, description, type, category, provider, plan_name,
	recommended_max_members, recommended_price_in_cents, approved, created_at, updated_at`

func (s *PostgresStore) ListApprovedTemplates(ctx context.Context) ([]Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	templates := pgIdent(s.schema, "subscription_templates")
	rows, err := s.pool.Query(ctx,
		`SELECT `+templateColumns+` FROM `+templates+`
		 WHERE approved ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetTemplate(ctx context.Context, id string) (Template, error) {
	if err := ctx.Err(); err != nil {
		return Template{}, err
	}
	templates := pgIdent(s.schema, "subscription_templates")
	row := s.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM `+templates+` WHERE id = $1`, id)
	return scanTemplate(row)
}

func scanSubscription(row pgx.Row) (Subscription, error) {
	var sub Subscription
	err := row.Scan(&sub.ID, &sub.OwnerID, &sub.TemplateID, &sub.Name, &sub.Description,
		&sub.Type, &sub.MaxMembers, &sub.PriceInCents, &sub.RenewalDay, &sub.Status,
		&sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subscription{}, ErrNotFound
	}
	if err != nil {
		return Subscription{}, mapPgError(err)
	}
	return sub, nil
}

func scanTemplate(row pgx.Row) (Template, error) {
	var t Template
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Type, &t.Category, &t.Provider,
		&t.PlanName, &t.RecommendedMaxMembers, &t.RecommendedPriceInCents, &t.Approved,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Template{}, ErrNotFound
	}
	if err != nil {
		return Template{}, mapPgError(err)
	}
	return t, nil
}

func pgIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

// Postgres error codes raised by request-shaped values rather than by
// infrastructure failures.
const (
	pgCodeInvalidTextRepresentation = "22P02"
	pgCodeForeignKeyViolation       = "23503"
)

// mapPgError translates Postgres errors caused by caller-supplied values into
// the store's sentinel errors. A value the key column cannot hold names no
// row, and a broken foreign key is a bad reference in the request. Everything
// else passes through unchanged.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgCodeInvalidTextRepresentation:
		return ErrNotFound
	case pgCodeForeignKeyViolation:
		return fmt.Errorf("%w: unknown reference: %s", ErrInvalidInput, pgErr.ConstraintName)
	}
	return err
}
