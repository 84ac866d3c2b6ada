package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) EnsureUserByName(ctx context.Context, name string) (User, error) {
	const findUser = `SELECT id, display_name, email FROM users WHERE display_name = $1`
	var user User
	err := s.db.QueryRowContext(ctx, findUser, name).Scan(&user.ID, &user.DisplayName, &user.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	const insertUser = `
		INSERT INTO users (id, display_name, email)
		VALUES (gen_random_uuid(), $1, CONCAT(LOWER(REPLACE($1, ' ', '.')), '@local.greetbox.dev'))
		RETURNING id, display_name, email
	`
	if err := s.db.QueryRowContext(ctx, insertUser, name).Scan(&user.ID, &user.DisplayName, &user.Email); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, email FROM users WHERE id=$1`, userID,
	).Scan(&user.ID, &user.DisplayName, &user.Email)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

const greetingColumns = `
	g.id, g.title, g.content_markup, g.content_text, g.author_id,
	g.access_type, COALESCE(g.access_code, ''), COALESCE(g.notification_email, ''),
	g.created_at, g.updated_at, COALESCE(u.display_name, '')
`

func scanGreeting(row *sql.Row) (Greeting, error) {
	var g Greeting
	err := row.Scan(
		&g.ID, &g.Title, &g.Markup, &g.Text, &g.AuthorID,
		&g.AccessType, &g.AccessCode, &g.NotificationEmail,
		&g.CreatedAt, &g.UpdatedAt, &g.AuthorName,
	)
	return g, err
}

func (s *PostgresStore) InsertGreeting(ctx context.Context, g Greeting) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO greetings (id, title, content_markup, content_text, author_id, access_type, access_code, notification_email)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''))
	`, g.ID, g.Title, g.Markup, g.Text, g.AuthorID, g.AccessType, g.AccessCode, g.NotificationEmail)
	if err != nil {
		return fmt.Errorf("insert greeting: %w", err)
	}
	return nil
}

// UpdateGreeting replaces the mutable fields of a greeting owned by
// authorID. AuthorID and CreatedAt are immutable by construction.
func (s *PostgresStore) UpdateGreeting(ctx context.Context, g Greeting) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE greetings
		SET title=$3, content_markup=$4, content_text=$5,
			access_type=$6, access_code=NULLIF($7, ''), notification_email=NULLIF($8, ''),
			updated_at=NOW()
		WHERE id=$1 AND author_id=$2
	`, g.ID, g.AuthorID, g.Title, g.Markup, g.Text, g.AccessType, g.AccessCode, g.NotificationEmail)
	if err != nil {
		return fmt.Errorf("update greeting: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update greeting rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteGreeting(ctx context.Context, id, authorID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM greetings WHERE id=$1 AND author_id=$2`, id, authorID)
	if err != nil {
		return fmt.Errorf("delete greeting: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete greeting rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetGreetingPolicy reads only the access metadata; it never touches
// the content columns.
func (s *PostgresStore) GetGreetingPolicy(ctx context.Context, id string) (GreetingPolicy, error) {
	var p GreetingPolicy
	err := s.db.QueryRowContext(ctx,
		`SELECT id, access_type FROM greetings WHERE id=$1`, id,
	).Scan(&p.ID, &p.AccessType)
	if err != nil {
		return GreetingPolicy{}, err
	}
	return p, nil
}

func (s *PostgresStore) GetGreeting(ctx context.Context, id string) (Greeting, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+greetingColumns+`
		FROM greetings g
		LEFT JOIN users u ON u.id = g.author_id
		WHERE g.id = $1
	`, id)
	return scanGreeting(row)
}

// GetGreetingByCode fetches the full record only when the submitted
// code exactly matches the stored one.
func (s *PostgresStore) GetGreetingByCode(ctx context.Context, id, code string) (Greeting, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+greetingColumns+`
		FROM greetings g
		LEFT JOIN users u ON u.id = g.author_id
		WHERE g.id = $1 AND g.access_code = $2
	`, id, code)
	return scanGreeting(row)
}

func (s *PostgresStore) ListGreetingsByAuthor(ctx context.Context, authorID string) ([]Greeting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+greetingColumns+`
		FROM greetings g
		LEFT JOIN users u ON u.id = g.author_id
		WHERE g.author_id = $1
		ORDER BY g.created_at DESC
	`, authorID)
	if err != nil {
		return nil, fmt.Errorf("list greetings: %w", err)
	}
	defer rows.Close()

	var greetings []Greeting
	for rows.Next() {
		var g Greeting
		if err := rows.Scan(
			&g.ID, &g.Title, &g.Markup, &g.Text, &g.AuthorID,
			&g.AccessType, &g.AccessCode, &g.NotificationEmail,
			&g.CreatedAt, &g.UpdatedAt, &g.AuthorName,
		); err != nil {
			return nil, fmt.Errorf("scan greeting: %w", err)
		}
		greetings = append(greetings, g)
	}
	return greetings, rows.Err()
}

func (s *PostgresStore) InsertMediaRef(ctx context.Context, ref MediaRef) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media_refs (id, author_id, greeting_id, kind, object_path, url)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ref.ID, ref.AuthorID, ref.GreetingID, ref.Kind, ref.ObjectPath, ref.URL)
	if err != nil {
		return fmt.Errorf("insert media ref: %w", err)
	}
	return nil
}

// ClaimMediaRefs attaches the author's unclaimed uploads to the
// greeting whose markup references them.
func (s *PostgresStore) ClaimMediaRefs(ctx context.Context, greetingID, authorID string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	for _, url := range urls {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE media_refs SET greeting_id=$1
			WHERE author_id=$2 AND url=$3 AND greeting_id IS NULL
		`, greetingID, authorID, url); err != nil {
			return fmt.Errorf("claim media ref: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListMediaRefsByGreeting(ctx context.Context, greetingID string) ([]MediaRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author_id, greeting_id, kind, object_path, url, created_at
		FROM media_refs
		WHERE greeting_id = $1
	`, greetingID)
	if err != nil {
		return nil, fmt.Errorf("list media refs: %w", err)
	}
	defer rows.Close()

	var refs []MediaRef
	for rows.Next() {
		var ref MediaRef
		if err := rows.Scan(&ref.ID, &ref.AuthorID, &ref.GreetingID, &ref.Kind, &ref.ObjectPath, &ref.URL, &ref.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan media ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (s *PostgresStore) DeleteMediaRef(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM media_refs WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete media ref: %w", err)
	}
	return nil
}

// View grant storage, the Postgres fallback when Redis is not
// configured.

func (s *PostgresStore) SaveViewGrant(ctx context.Context, token, greetingID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO view_grants (token, greeting_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE SET greeting_id=EXCLUDED.greeting_id, expires_at=EXCLUDED.expires_at
	`, token, greetingID, expiresAt)
	if err != nil {
		return fmt.Errorf("save view grant: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupViewGrant(ctx context.Context, token string) (string, error) {
	var greetingID string
	err := s.db.QueryRowContext(ctx, `
		SELECT greeting_id FROM view_grants
		WHERE token=$1 AND expires_at > NOW()
	`, token).Scan(&greetingID)
	if err != nil {
		return "", err
	}
	return greetingID, nil
}

func (s *PostgresStore) RevokeViewGrant(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM view_grants WHERE token=$1`, token); err != nil {
		return fmt.Errorf("revoke view grant: %w", err)
	}
	return nil
}
