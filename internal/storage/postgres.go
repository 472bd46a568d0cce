package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"cardhall/internal/models"
	"cardhall/internal/pagination"
)

// PostgresConfig tunes the connection pool behind a PostgresRepository.
// Zero values defer to pgxpool defaults.
type PostgresConfig struct {
	DSN                 string
	MaxConnections      int32
	MinConnections      int32
	MaxConnLifetime     time.Duration
	MaxConnIdleTime     time.Duration
	HealthCheckInterval time.Duration
	ConnectTimeout      time.Duration
	ApplicationName     string
}

// PostgresRepository persists users and cards in Postgres, allowing multiple
// API replicas to share catalog state.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository opens a Postgres-backed repository. Call Migrate
// before serving requests.
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    kind TEXT NOT NULL DEFAULT 'normal',
    email TEXT NOT NULL UNIQUE,
    nickname TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cards (
    id UUID PRIMARY KEY,
    rating DOUBLE PRECISION NOT NULL,
    owned_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    owner_id UUID REFERENCES users (id)
);

CREATE INDEX IF NOT EXISTS cards_owner_owned_at_idx ON cards (owner_id, owned_at);
CREATE INDEX IF NOT EXISTS cards_owner_rating_idx ON cards (owner_id, rating);
`

// Migrate applies the schema. Statements are idempotent so repeated startup
// runs are safe.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// CreateUser registers an account with a hashed password and normalized
// identifiers.
func (r *PostgresRepository) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	email, err := NormalizeEmail(params.Email)
	if err != nil {
		return models.User{}, err
	}
	nickname, err := NormalizeNickname(params.Nickname)
	if err != nil {
		return models.User{}, err
	}
	hash, err := HashPassword(params.Password)
	if err != nil {
		return models.User{}, err
	}
	kind := params.Kind
	if kind == "" {
		kind = models.UserKindNormal
	}

	user := models.User{ID: uuid.New(), Kind: kind, Email: email, Nickname: nickname, PasswordHash: hash}
	row := r.pool.QueryRow(ctx, `
INSERT INTO users (id, kind, email, nickname, password_hash)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at
`, user.ID, string(user.Kind), user.Email, user.Nickname, user.PasswordHash)
	if err := row.Scan(&user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// GetUser fetches a user by identifier.
func (r *PostgresRepository) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, `
SELECT id, kind, email, nickname, password_hash, created_at
FROM users
WHERE id = $1
`, id))
}

// AuthenticateUser verifies credentials and returns the matching user.
func (r *PostgresRepository) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return models.User{}, err
	}
	user, err := r.scanUser(r.pool.QueryRow(ctx, `
SELECT id, kind, email, nickname, password_hash, created_at
FROM users
WHERE email = $1
`, normalized))
	if err != nil {
		return models.User{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// CreateCard mints a card owned by the provided user.
func (r *PostgresRepository) CreateCard(ctx context.Context, params CreateCardParams) (models.Card, error) {
	ownedAt := params.OwnedAt
	if ownedAt.IsZero() {
		ownedAt = time.Now()
	}
	card := models.Card{
		ID:     uuid.New(),
		Rating: params.Rating,
		// Truncate before the insert so the returned card matches the
		// microsecond precision timestamptz keeps.
		OwnedAt: ownedAt.UTC().Truncate(time.Microsecond),
		OwnerID: &params.OwnerID,
	}
	row := r.pool.QueryRow(ctx, `
INSERT INTO cards (id, rating, owned_at, owner_id)
VALUES ($1, $2, $3, $4)
RETURNING created_at
`, card.ID, card.Rating, card.OwnedAt, card.OwnerID)
	if err := row.Scan(&card.CreatedAt); err != nil {
		return models.Card{}, fmt.Errorf("insert card: %w", err)
	}
	return card, nil
}

// ListCards executes the planned range scan as a single bounded keyset query.
// The card identifier acts as a tie-break so equal keys keep a stable order.
func (r *PostgresRepository) ListCards(ctx context.Context, ownerID uuid.UUID, spec pagination.QuerySpec) ([]models.Card, error) {
	column := "owned_at"
	var lower, upper any = spec.Lower.OwnedAt, spec.Upper.OwnedAt
	if spec.Kind == pagination.KindRating {
		column = "rating"
		lower, upper = spec.Lower.Rating, spec.Upper.Rating
	}
	direction := "ASC"
	if spec.Descending {
		direction = "DESC"
	}
	query := fmt.Sprintf(`
SELECT id, rating, owned_at, created_at, owner_id
FROM cards
WHERE owner_id = $1 AND %[1]s > $2 AND %[1]s < $3
ORDER BY %[1]s %[2]s, id %[2]s
LIMIT $4
`, column, direction)

	rows, err := r.pool.Query(ctx, query, ownerID, lower, upper, spec.FetchLimit())
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		var card models.Card
		if err := rows.Scan(&card.ID, &card.Rating, &card.OwnedAt, &card.CreatedAt, &card.OwnerID); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}

// Ping verifies the pool can reach Postgres.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the Postgres connection pool resources.
func (r *PostgresRepository) Close(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *PostgresRepository) scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	var kind string
	if err := row.Scan(&user.ID, &kind, &user.Email, &user.Nickname, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	parsed, err := models.ParseUserKind(kind)
	if err != nil {
		return models.User{}, fmt.Errorf("stored user kind: %w", err)
	}
	user.Kind = parsed
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
