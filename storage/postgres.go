package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/veldtec/accountauth/storage/migrations"
)

// Postgres is the production Store, backed by database/sql over the pgx
// driver.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool for dsn, verifies connectivity, and
// applies pending migrations.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	store := &Postgres{db: db}
	if err := store.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return store, nil
}

// RunMigrations applies the embedded goose migrations.
func (p *Postgres) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, p.db, ".")
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Accounts describes the accounts operation and its observable behavior.
func (p *Postgres) Accounts() AccountRepo { return &pgAccountRepo{db: p.db} }

// PendingAccounts describes the pendingaccounts operation and its observable behavior.
func (p *Postgres) PendingAccounts() PendingAccountRepo { return &pgPendingAccountRepo{db: p.db} }

// PasswordResets describes the passwordresets operation and its observable behavior.
func (p *Postgres) PasswordResets() PasswordResetRepo { return &pgPasswordResetRepo{db: p.db} }

// PersistentLogins describes the persistentlogins operation and its observable behavior.
func (p *Postgres) PersistentLogins() PersistentLoginRepo { return &pgPersistentLoginRepo{db: p.db} }

// Begin opens a transaction scoped to ctx.
func (p *Postgres) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx   *sql.Tx
	done bool
}

func (t *pgTx) Accounts() AccountRepo                 { return &pgAccountRepo{db: t.tx} }
func (t *pgTx) PendingAccounts() PendingAccountRepo   { return &pgPendingAccountRepo{db: t.tx} }
func (t *pgTx) PasswordResets() PasswordResetRepo     { return &pgPasswordResetRepo{db: t.tx} }
func (t *pgTx) PersistentLogins() PersistentLoginRepo { return &pgPersistentLoginRepo{db: t.tx} }

func (t *pgTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Commit()
}

// Rollback discards the transaction. After Commit it is a no-op, so flows
// can defer it unconditionally.
func (t *pgTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

type pgAccountRepo struct {
	db DBTX
}

func (r *pgAccountRepo) Create(ctx context.Context, account *Account) error {
	const query = `
		INSERT INTO account (email, password_hash, display_name, time_activated, time_last_login)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		account.Email,
		account.PasswordHash,
		account.DisplayName,
		account.TimeActivated,
		account.TimeLastLogin,
	).Scan(&account.ID)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *pgAccountRepo) FindByID(ctx context.Context, id int64) (*Account, error) {
	const query = `
		SELECT id, email, password_hash, display_name, time_activated, time_last_login
		FROM account
		WHERE id = $1
	`
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

func (r *pgAccountRepo) FindByEmail(ctx context.Context, email string) (*Account, error) {
	const query = `
		SELECT id, email, password_hash, display_name, time_activated, time_last_login
		FROM account
		WHERE email = $1
	`
	return scanAccount(r.db.QueryRowContext(ctx, query, email))
}

func scanAccount(row *sql.Row) (*Account, error) {
	account := &Account{}
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.DisplayName,
		&account.TimeActivated,
		&account.TimeLastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return account, nil
}

func (r *pgAccountRepo) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	return execOne(ctx, r.db, `UPDATE account SET password_hash = $2 WHERE id = $1`, id, passwordHash)
}

func (r *pgAccountRepo) UpdateDisplayName(ctx context.Context, id int64, displayName string) error {
	return execOne(ctx, r.db, `UPDATE account SET display_name = $2 WHERE id = $1`, id, displayName)
}

func (r *pgAccountRepo) UpdateLastLogin(ctx context.Context, id int64, timeLastLogin int64) error {
	return execOne(ctx, r.db, `UPDATE account SET time_last_login = $2 WHERE id = $1`, id, timeLastLogin)
}

func (r *pgAccountRepo) Delete(ctx context.Context, id int64) error {
	return execOne(ctx, r.db, `DELETE FROM account WHERE id = $1`, id)
}

type pgPendingAccountRepo struct {
	db DBTX
}

func (r *pgPendingAccountRepo) Create(ctx context.Context, pending *PendingAccount) error {
	const query = `
		INSERT INTO pendingaccount (email, password_hash, display_name, activation_code, time_registered)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		pending.Email,
		pending.PasswordHash,
		pending.DisplayName,
		pending.ActivationCode,
		pending.TimeRegistered,
	).Scan(&pending.ID)
	if err != nil {
		return fmt.Errorf("insert pending account: %w", err)
	}
	return nil
}

func (r *pgPendingAccountRepo) FindByEmail(ctx context.Context, email string) (*PendingAccount, error) {
	const query = `
		SELECT id, email, password_hash, display_name, activation_code, time_registered
		FROM pendingaccount
		WHERE email = $1
	`
	return scanPendingAccount(r.db.QueryRowContext(ctx, query, email))
}

func (r *pgPendingAccountRepo) FindByActivationCode(ctx context.Context, code string) (*PendingAccount, error) {
	const query = `
		SELECT id, email, password_hash, display_name, activation_code, time_registered
		FROM pendingaccount
		WHERE activation_code = $1
	`
	return scanPendingAccount(r.db.QueryRowContext(ctx, query, code))
}

func scanPendingAccount(row *sql.Row) (*PendingAccount, error) {
	pending := &PendingAccount{}
	err := row.Scan(
		&pending.ID,
		&pending.Email,
		&pending.PasswordHash,
		&pending.DisplayName,
		&pending.ActivationCode,
		&pending.TimeRegistered,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan pending account: %w", err)
	}
	return pending, nil
}

func (r *pgPendingAccountRepo) Delete(ctx context.Context, id int64) error {
	return execOne(ctx, r.db, `DELETE FROM pendingaccount WHERE id = $1`, id)
}

type pgPasswordResetRepo struct {
	db DBTX
}

func (r *pgPasswordResetRepo) Save(ctx context.Context, reset *PasswordReset) error {
	const query = `
		INSERT INTO passwordreset (account_id, reset_code, time_requested)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id)
		DO UPDATE SET
			reset_code = EXCLUDED.reset_code,
			time_requested = EXCLUDED.time_requested
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		reset.AccountID,
		reset.ResetCode,
		reset.TimeRequested,
	).Scan(&reset.ID)
	if err != nil {
		return fmt.Errorf("save password reset: %w", err)
	}
	return nil
}

func (r *pgPasswordResetRepo) FindByAccountID(ctx context.Context, accountID int64) (*PasswordReset, error) {
	const query = `
		SELECT id, account_id, reset_code, time_requested
		FROM passwordreset
		WHERE account_id = $1
	`
	return scanPasswordReset(r.db.QueryRowContext(ctx, query, accountID))
}

func (r *pgPasswordResetRepo) FindByResetCode(ctx context.Context, code string) (*PasswordReset, error) {
	const query = `
		SELECT id, account_id, reset_code, time_requested
		FROM passwordreset
		WHERE reset_code = $1
	`
	return scanPasswordReset(r.db.QueryRowContext(ctx, query, code))
}

func scanPasswordReset(row *sql.Row) (*PasswordReset, error) {
	reset := &PasswordReset{}
	err := row.Scan(&reset.ID, &reset.AccountID, &reset.ResetCode, &reset.TimeRequested)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan password reset: %w", err)
	}
	return reset, nil
}

func (r *pgPasswordResetRepo) Delete(ctx context.Context, id int64) error {
	return execOne(ctx, r.db, `DELETE FROM passwordreset WHERE id = $1`, id)
}

func (r *pgPasswordResetRepo) DeleteByAccountID(ctx context.Context, accountID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM passwordreset WHERE account_id = $1`, accountID)
	return err
}

type pgPersistentLoginRepo struct {
	db DBTX
}

func (r *pgPersistentLoginRepo) Save(ctx context.Context, login *PersistentLogin) error {
	const query = `
		INSERT INTO persistentlogin (account_id, client_signature, lookup_key, token_hash, time_expires)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id, client_signature)
		DO UPDATE SET
			lookup_key = EXCLUDED.lookup_key,
			token_hash = EXCLUDED.token_hash,
			time_expires = EXCLUDED.time_expires
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		login.AccountID,
		login.ClientSignature,
		login.LookupKey,
		login.TokenHash,
		login.TimeExpires,
	).Scan(&login.ID)
	if err != nil {
		return fmt.Errorf("save persistent login: %w", err)
	}
	return nil
}

func (r *pgPersistentLoginRepo) FindByLookupKey(ctx context.Context, lookupKey string) (*PersistentLogin, error) {
	const query = `
		SELECT id, account_id, client_signature, lookup_key, token_hash, time_expires
		FROM persistentlogin
		WHERE lookup_key = $1
	`
	return scanPersistentLogin(r.db.QueryRowContext(ctx, query, lookupKey))
}

func (r *pgPersistentLoginRepo) FindByAccountAndSignature(ctx context.Context, accountID int64, signature string) (*PersistentLogin, error) {
	const query = `
		SELECT id, account_id, client_signature, lookup_key, token_hash, time_expires
		FROM persistentlogin
		WHERE account_id = $1 AND client_signature = $2
	`
	return scanPersistentLogin(r.db.QueryRowContext(ctx, query, accountID, signature))
}

func scanPersistentLogin(row *sql.Row) (*PersistentLogin, error) {
	login := &PersistentLogin{}
	err := row.Scan(
		&login.ID,
		&login.AccountID,
		&login.ClientSignature,
		&login.LookupKey,
		&login.TokenHash,
		&login.TimeExpires,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan persistent login: %w", err)
	}
	return login, nil
}

func (r *pgPersistentLoginRepo) Delete(ctx context.Context, id int64) error {
	return execOne(ctx, r.db, `DELETE FROM persistentlogin WHERE id = $1`, id)
}

func (r *pgPersistentLoginRepo) DeleteByAccountID(ctx context.Context, accountID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM persistentlogin WHERE account_id = $1`, accountID)
	return err
}

func execOne(ctx context.Context, db DBTX, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
