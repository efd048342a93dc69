// Package postgresdb provides a PostgreSQL-based implementation of the
// storage facade for persisting and retrieving users and links.
// The schema is managed with goose migrations.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"linkfeed/internal/models"
)

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
const uniqueViolation = "23505"

// PostgresDB is a PostgreSQL-backed implementation of the storage facade.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset enables resetting the database schema before migration.
// It can be used for test setups or development purposes.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil, fmt.Errorf("error while `result.resetDB()` calling: %w", err)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("error while `goose.SetDialect()` calling: %w", err)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil, fmt.Errorf("error while `goose.Up()` calling: %w", err)
	}

	return result, nil
}

// CreateUser inserts a new user record. A duplicate email maps to
// models.ErrEmailTaken.
func (db *PostgresDB) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			INSERT INTO users (name, email, password_hash)
				VALUES ($1, $2, $3)
				RETURNING id, created_at
		`,
		name,
		email,
		passwordHash,
	)

	usr := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
	}
	err := row.Scan(&usr.ID, &usr.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, models.ErrEmailTaken
		}
		return nil, storeFailure(err)
	}

	return usr, nil
}

// FindUserByID fetches a user by id. Returns models.ErrNotFound when absent.
func (db *PostgresDB) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE id = $1`,
		id,
	)

	return scanUser(row)
}

// FindUserByEmail fetches a user by email. Returns models.ErrNotFound when absent.
func (db *PostgresDB) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE email = $1`,
		email,
	)

	return scanUser(row)
}

// CreateLink inserts a new link record, optionally owned by a user.
func (db *PostgresDB) CreateLink(ctx context.Context, description, url string, postedByID *int64) (*models.Link, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			INSERT INTO links (description, url, posted_by)
				VALUES ($1, $2, $3)
				RETURNING id, created_at
		`,
		description,
		url,
		postedByID,
	)

	link := &models.Link{
		Description: description,
		URL:         url,
		PostedByID:  postedByID,
	}
	err := row.Scan(&link.ID, &link.CreatedAt)
	if err != nil {
		return nil, storeFailure(err)
	}

	return link, nil
}

// FindLinks returns one page of links matching the filter plus the total
// match count. The count query ignores paging.
func (db *PostgresDB) FindLinks(ctx context.Context, filter models.LinkFilter) ([]models.Link, int32, error) {
	where := ""
	args := []interface{}{}
	if filter.Contains != nil {
		where = ` WHERE description LIKE '%' || $1 || '%' OR url LIKE '%' || $1 || '%'`
		args = append(args, *filter.Contains)
	}

	countRow := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM links`+where, args...)
	var count int32
	if err := countRow.Scan(&count); err != nil {
		return nil, 0, storeFailure(err)
	}

	query := `SELECT id, description, url, posted_by, created_at FROM links` + where
	if filter.OrderBy != nil {
		query += ` ORDER BY ` + orderByClause(*filter.OrderBy)
	}
	if filter.Take != nil {
		query += fmt.Sprintf(` LIMIT %d`, *filter.Take)
	}
	if filter.Skip != nil {
		query += fmt.Sprintf(` OFFSET %d`, *filter.Skip)
	}

	rows, err := db.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, storeFailure(err)
	}
	defer rows.Close()

	links, err := scanLinks(rows)
	if err != nil {
		return nil, 0, err
	}

	return links, count, nil
}

// FindLinksByUser returns every link owned by the given user.
func (db *PostgresDB) FindLinksByUser(ctx context.Context, userID int64) ([]models.Link, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`SELECT id, description, url, posted_by, created_at FROM links WHERE posted_by = $1`,
		userID,
	)
	if err != nil {
		return nil, storeFailure(err)
	}
	defer rows.Close()

	return scanLinks(rows)
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func scanUser(row *sql.Row) (*models.User, error) {
	usr := &models.User{}
	err := row.Scan(&usr.ID, &usr.Name, &usr.Email, &usr.PasswordHash, &usr.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, storeFailure(err)
	}

	return usr, nil
}

func scanLinks(rows *sql.Rows) ([]models.Link, error) {
	result := []models.Link{}
	for rows.Next() {
		var link models.Link
		err := rows.Scan(&link.ID, &link.Description, &link.URL, &link.PostedByID, &link.CreatedAt)
		if err != nil {
			return nil, storeFailure(err)
		}

		result = append(result, link)
	}

	if err := rows.Err(); err != nil {
		return nil, storeFailure(err)
	}

	return result, nil
}

// orderByClause maps the validated order specification to SQL. Field and
// direction come from closed enums, never from raw client input.
func orderByClause(order models.LinkOrder) string {
	column := "created_at"
	switch order.Field {
	case models.OrderByDescription:
		column = "description"
	case models.OrderByURL:
		column = "url"
	}

	direction := "ASC"
	if order.Direction == models.SortDesc {
		direction = "DESC"
	}

	return column + " " + direction
}

func storeFailure(err error) error {
	return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf("error while `db.database.ExecContext()` calling: %w", err)
	}
	return nil
}
