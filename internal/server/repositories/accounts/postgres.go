package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

const accountColumns = `id, email, password_hash, display_name, bio, avatar, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query :=
		`SELECT ` + accountColumns + ` FROM accounts
		 WHERE email = $1
		 `

	return scanAccount(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query :=
		`SELECT ` + accountColumns + ` FROM accounts
		 WHERE id = $1
		 `

	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (email, password_hash, display_name, bio, avatar)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at
		 `

	saved := *account
	err := r.db.QueryRowContext(ctx, query,
		account.Email, account.PasswordHash, account.DisplayName, account.Bio, account.Avatar,
	).Scan(&saved.ID, &saved.CreatedAt)

	if err != nil {
		return nil, mapError(err)
	}

	return &saved, nil
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) (*models.Account, error) {
	query :=
		`DELETE FROM accounts
		 WHERE id = $1
		 RETURNING ` + accountColumns + `
		 `

	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) Update(ctx context.Context, id string, update models.ProfileUpdate) (*models.Account, error) {
	query :=
		`UPDATE accounts SET
		   display_name = COALESCE($2, display_name),
		   bio = COALESCE($3, bio),
		   avatar = COALESCE($4, avatar)
		 WHERE id = $1
		 RETURNING ` + accountColumns + `
		 `

	return scanAccount(r.db.QueryRowContext(ctx, query, id,
		nullable(update.DisplayName), nullable(update.Bio), nullable(update.Avatar)))
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.Bio, &a.Avatar, &a.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

// mapError turns driver errors into repository sentinels. An id that is not
// a valid uuid cannot exist, so it is reported as not found.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return common.ErrorConflict
		case pgerrcode.InvalidTextRepresentation:
			return common.ErrorNotFound
		}
	}

	return fmt.Errorf("db error: %w", err)
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
