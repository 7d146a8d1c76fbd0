package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var _ UserStore = (*PGUsers)(nil)

const pgUniqueViolation = "23505"

const userColumns = `id, email, phone_number, password_hash, first_name, last_name, created_at, updated_at`

// PGUsers implements UserStore using PostgreSQL.
type PGUsers struct {
	db *sql.DB
}

func NewPGUsers(db *sql.DB) *PGUsers {
	return &PGUsers{db: db}
}

func (s *PGUsers) FindByID(ctx context.Context, id string) (*User, error) {
	return s.findOne(ctx, `select `+userColumns+` from users where id=$1`, id)
}

func (s *PGUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrUserNotFound
	}
	return s.findOne(ctx, `select `+userColumns+` from users where email=$1`, email)
}

func (s *PGUsers) FindByPhoneNumber(ctx context.Context, phone string) (*User, error) {
	phone = normalizePhone(phone)
	if phone == "" {
		return nil, ErrUserNotFound
	}
	return s.findOne(ctx, `select `+userColumns+` from users where phone_number=$1`, phone)
}

func (s *PGUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `select exists(select 1 from users where email=$1)`, normalizeEmail(email))
}

func (s *PGUsers) ExistsByPhoneNumber(ctx context.Context, phone string) (bool, error) {
	return s.exists(ctx, `select exists(select 1 from users where phone_number=$1)`, normalizePhone(phone))
}

func (s *PGUsers) Save(ctx context.Context, u *User) error {
	if u == nil || u.ID == "" {
		return ErrInvalidInput
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		insert into users(id, email, phone_number, password_hash, first_name, last_name, created_at, updated_at)
		values($1,$2,$3,$4,$5,$6,$7,$8)
		on conflict (id) do update set
			email = excluded.email,
			phone_number = excluded.phone_number,
			password_hash = excluded.password_hash,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			updated_at = excluded.updated_at
	`, u.ID, nullString(normalizeEmail(u.Email)), nullString(normalizePhone(u.PhoneNumber)),
		u.PasswordHash, u.FirstName, u.LastName, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return Errorf(KindConflict, "email or phone number already in use")
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PGUsers) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PGUsers) findOne(ctx context.Context, query string, arg string) (*User, error) {
	var (
		u            User
		email, phone sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &email, &phone, &u.PasswordHash, &u.FirstName, &u.LastName, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Email, u.PhoneNumber = email.String, phone.String
	return &u, nil
}

func (s *PGUsers) exists(ctx context.Context, query, arg string) (bool, error) {
	if arg == "" {
		return false, nil
	}
	var ok bool
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
