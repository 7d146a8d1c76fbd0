package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"rolodex.dev/internal/contacts"
	"rolodex.dev/internal/ids"
)

const pgErrForeignKeyViolation = "23503"

// Store persists contacts in PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ contacts.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const contactColumns = `id, owner_id, first_name, last_name, title, profile_image, tags, is_favorite, created_at, updated_at`

var sortColumns = map[string]string{
	contacts.SortFirstName: "lower(first_name)",
	contacts.SortLastName:  "lower(last_name)",
	contacts.SortTitle:     "lower(title)",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (contacts.Contact, error) {
	var (
		c    contacts.Contact
		tags []byte
	)
	if err := row.Scan(&c.ID, &c.OwnerID, &c.FirstName, &c.LastName, &c.Title, &c.ProfileImage,
		&tags, &c.Favorite, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return contacts.Contact{}, err
	}
	c.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &c.Tags); err != nil {
			return contacts.Contact{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	return c, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (contacts.Contact, error) {
	c, err := scanContact(s.db.QueryRowContext(ctx,
		`select `+contactColumns+` from contacts where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return contacts.Contact{}, contacts.ErrNotFound
	}
	if err != nil {
		return contacts.Contact{}, err
	}
	if err := s.loadDetails(ctx, &c); err != nil {
		return contacts.Contact{}, err
	}
	return c, nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string, req contacts.PageRequest) ([]contacts.Contact, int, error) {
	return s.page(ctx, `owner_id=$1`, []any{ownerID}, req)
}

// Search matches names, title, tags, emails and phones with a
// case-insensitive substring test.
func (s *Store) Search(ctx context.Context, ownerID, query string, req contacts.PageRequest) ([]contacts.Contact, int, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	where := `owner_id=$1 and (
		lower(first_name) like $2
		or lower(last_name) like $2
		or lower(title) like $2
		or exists (select 1 from jsonb_array_elements_text(contacts.tags) t where lower(t) like $2)
		or exists (select 1 from contact_emails e where e.contact_id=contacts.id and lower(e.email) like $2)
		or exists (select 1 from contact_phones p where p.contact_id=contacts.id and lower(p.phone) like $2)
	)`
	return s.page(ctx, where, []any{ownerID, pattern}, req)
}

func (s *Store) page(ctx context.Context, where string, args []any, req contacts.PageRequest) ([]contacts.Contact, int, error) {
	req = req.Normalize()

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from contacts where `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 || req.Offset() >= total {
		return []contacts.Contact{}, total, nil
	}

	n := len(args)
	query := fmt.Sprintf(`select %s from contacts where %s order by %s, id limit $%d offset $%d`,
		contactColumns, where, sortColumns[req.SortBy], n+1, n+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, req.Size, req.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	res := make([]contacts.Contact, 0, req.Size)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range res {
		if err := s.loadDetails(ctx, &res[i]); err != nil {
			return nil, 0, err
		}
	}
	return res, total, nil
}

func (s *Store) loadDetails(ctx context.Context, c *contacts.Contact) error {
	rows, err := s.db.QueryContext(ctx,
		`select id, email, label from contact_emails where contact_id=$1 order by position`, c.ID)
	if err != nil {
		return err
	}
	c.EmailAddresses = []contacts.Email{}
	for rows.Next() {
		var e contacts.Email
		if err := rows.Scan(&e.ID, &e.Email, &e.Label); err != nil {
			rows.Close()
			return err
		}
		c.EmailAddresses = append(c.EmailAddresses, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx,
		`select id, phone, label from contact_phones where contact_id=$1 order by position`, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	c.PhoneNumbers = []contacts.Phone{}
	for rows.Next() {
		var p contacts.Phone
		if err := rows.Scan(&p.ID, &p.Phone, &p.Label); err != nil {
			return err
		}
		c.PhoneNumbers = append(c.PhoneNumbers, p)
	}
	return rows.Err()
}

// Save upserts c and replaces its emails and phones in one transaction. An
// existing row owned by someone else is left untouched and reported as
// access denied.
func (s *Store) Save(ctx context.Context, c contacts.Contact) error {
	if c.ID == "" || c.OwnerID == "" {
		return contacts.ErrInvalidContact
	}
	tags, err := json.Marshal(nonNil(c.Tags))
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		insert into contacts(id, owner_id, first_name, last_name, title, profile_image, tags, is_favorite, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		on conflict (id) do update set
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			title = excluded.title,
			profile_image = excluded.profile_image,
			tags = excluded.tags,
			is_favorite = excluded.is_favorite,
			updated_at = excluded.updated_at
		where contacts.owner_id = excluded.owner_id
	`, c.ID, c.OwnerID, c.FirstName, c.LastName, c.Title, c.ProfileImage, tags, c.Favorite, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("save contact: owner %s: %w", c.OwnerID, contacts.ErrInvalidContact)
		}
		return fmt.Errorf("save contact: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return contacts.ErrAccessDenied
	}

	if err := replaceDetails(ctx, tx, c); err != nil {
		return err
	}
	return tx.Commit()
}

// Update rewrites an existing contact of c.OwnerID. Unlike Save it never
// inserts, so a contact deleted concurrently stays deleted and reports
// not found.
func (s *Store) Update(ctx context.Context, c contacts.Contact) error {
	if c.ID == "" || c.OwnerID == "" {
		return contacts.ErrInvalidContact
	}
	tags, err := json.Marshal(nonNil(c.Tags))
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update contacts set
			first_name = $3,
			last_name = $4,
			title = $5,
			profile_image = $6,
			tags = $7,
			is_favorite = $8,
			updated_at = $9
		where id = $1 and owner_id = $2
	`, c.ID, c.OwnerID, c.FirstName, c.LastName, c.Title, c.ProfileImage, tags, c.Favorite, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return contacts.ErrNotFound
	}
	if err := replaceDetails(ctx, tx, c); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceDetails(ctx context.Context, tx *sql.Tx, c contacts.Contact) error {
	if _, err := tx.ExecContext(ctx, `delete from contact_emails where contact_id=$1`, c.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from contact_phones where contact_id=$1`, c.ID); err != nil {
		return err
	}
	for i, e := range c.EmailAddresses {
		if e.ID == "" {
			e.ID = ids.New()
		}
		if _, err := tx.ExecContext(ctx,
			`insert into contact_emails(id, contact_id, email, label, position) values ($1,$2,$3,$4,$5)`,
			e.ID, c.ID, e.Email, e.Label, i); err != nil {
			return err
		}
	}
	for i, p := range c.PhoneNumbers {
		if p.ID == "" {
			p.ID = ids.New()
		}
		if _, err := tx.ExecContext(ctx,
			`insert into contact_phones(id, contact_id, phone, label, position) values ($1,$2,$3,$4,$5)`,
			p.ID, c.ID, p.Phone, p.Label, i); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from contacts where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return contacts.ErrNotFound
	}
	return nil
}

// DeleteByOwner removes all contacts of ownerID; emails and phones follow
// through on delete cascade.
func (s *Store) DeleteByOwner(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx, `delete from contacts where owner_id=$1`, ownerID)
	return err
}

// --- helpers ---
func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
