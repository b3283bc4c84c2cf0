// Package sqlite provides a SQLite-backed Store for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"example.com/mergington/internal/domain"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store persists users, activities and enrollments in SQLite. Writes run in
// immediate transactions over a single connection, which serializes them.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func applyMigrations(sqlDB *sql.DB) error {
	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (name TEXT PRIMARY KEY, applied_at INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		var found int
		err := sqlDB.QueryRow(`SELECT 1 FROM schema_migrations WHERE name = ?`, file).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", file, err)
		}

		content, err := migrationFS.ReadFile("migrations/" + file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration transaction %s: %w", file, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, file, toMillis(time.Now())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// FindUserByEmail implements domain.Store.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	var createdAt int64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT user_id, email, name, created_at FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &u.Name, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const activityColumns = `activity_id, name, description, schedule, max_participants, created_at, updated_at`

func scanActivity(row rowScanner) (domain.Activity, error) {
	var a domain.Activity
	var createdAt, updatedAt int64
	if err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Schedule, &a.MaxParticipants, &createdAt, &updatedAt); err != nil {
		return domain.Activity{}, err
	}
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}

// FindActivityByName implements domain.Store.
func (s *Store) FindActivityByName(ctx context.Context, name string) (*domain.Activity, error) {
	a, err := scanActivity(s.sqlDB.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE name = ?`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// CreateUser implements domain.Store.
func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	_, err := s.sqlDB.ExecContext(ctx, `INSERT INTO users (user_id, email, name, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, toMillis(user.CreatedAt))
	if isUniqueViolation(err) {
		return domain.ErrUserExists
	}
	return err
}

// CreateActivity implements domain.Store.
func (s *Store) CreateActivity(ctx context.Context, activity domain.Activity) error {
	_, err := s.sqlDB.ExecContext(ctx, `INSERT INTO activities (activity_id, name, description, schedule, max_participants, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		activity.ID, activity.Name, activity.Description, activity.Schedule, activity.MaxParticipants,
		toMillis(activity.CreatedAt), toMillis(activity.UpdatedAt))
	if isUniqueViolation(err) {
		return domain.ErrActivityExists
	}
	return err
}

// UpdateActivity implements domain.Store.
func (s *Store) UpdateActivity(ctx context.Context, activity domain.Activity) error {
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE activities SET description = ?, schedule = ?, max_participants = ?, updated_at = ? WHERE name = ?`,
		activity.Description, activity.Schedule, activity.MaxParticipants, toMillis(activity.UpdatedAt), activity.Name)
	if err != nil {
		return err
	}
	return requireAffected(res, domain.ErrActivityNotFound)
}

// DeleteActivity implements domain.Store. Enrollments go with the activity
// through ON DELETE CASCADE.
func (s *Store) DeleteActivity(ctx context.Context, name string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM activities WHERE name = ?`, name)
	if err != nil {
		return err
	}
	return requireAffected(res, domain.ErrActivityNotFound)
}

// AddEnrollment implements domain.Store.
func (s *Store) AddEnrollment(ctx context.Context, enrollment domain.Enrollment) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var activityID string
	var capacity int
	err = tx.QueryRowContext(ctx, `SELECT activity_id, max_participants FROM activities WHERE name = ?`, enrollment.ActivityName).
		Scan(&activityID, &capacity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrActivityNotFound
		}
		return err
	}

	var userID string
	if err := tx.QueryRowContext(ctx, `SELECT user_id FROM users WHERE email = ?`, enrollment.UserEmail).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return err
	}

	var enrolled, already int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(user_id = ?), 0) FROM enrollments WHERE activity_id = ?`, userID, activityID).
		Scan(&enrolled, &already)
	if err != nil {
		return err
	}
	if already > 0 {
		return domain.ErrAlreadyEnrolled
	}
	if enrolled >= capacity {
		return domain.ErrActivityFull
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO enrollments (user_id, activity_id, enrolled_at) VALUES (?, ?, ?)`,
		userID, activityID, toMillis(enrollment.EnrolledAt)); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveEnrollment implements domain.Store.
func (s *Store) RemoveEnrollment(ctx context.Context, activityName, email string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM enrollments
        WHERE activity_id = (SELECT activity_id FROM activities WHERE name = ?)
          AND user_id = (SELECT user_id FROM users WHERE email = ?)`, activityName, email)
	if err != nil {
		return err
	}
	return requireAffected(res, domain.ErrNotEnrolled)
}

// CountEnrollments implements domain.Store.
func (s *Store) CountEnrollments(ctx context.Context, activityName string) (int, error) {
	var count int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM enrollments e JOIN activities a ON a.activity_id = e.activity_id WHERE a.name = ?`,
		activityName).Scan(&count)
	return count, err
}

// CountUsers implements domain.Store.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// ListActivitiesWithParticipants implements domain.Store.
func (s *Store) ListActivitiesWithParticipants(ctx context.Context) ([]domain.ActivityRoster, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT a.activity_id, a.name, a.description, a.schedule, a.max_participants, a.created_at, a.updated_at, u.email
        FROM activities a
        LEFT JOIN enrollments e ON e.activity_id = a.activity_id
        LEFT JOIN users u ON u.user_id = e.user_id
        ORDER BY a.position, e.position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.ActivityRoster, 0)
	for rows.Next() {
		var a domain.Activity
		var createdAt, updatedAt int64
		var email sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Schedule, &a.MaxParticipants, &createdAt, &updatedAt, &email); err != nil {
			return nil, err
		}
		a.CreatedAt = fromMillis(createdAt)
		a.UpdatedAt = fromMillis(updatedAt)
		if n := len(results); n == 0 || results[n-1].ID != a.ID {
			results = append(results, domain.ActivityRoster{Activity: a, Participants: make([]string, 0)})
		}
		if email.Valid {
			last := &results[len(results)-1]
			last.Participants = append(last.Participants, email.String)
		}
	}
	return results, rows.Err()
}

// ListUserActivities implements domain.Store.
func (s *Store) ListUserActivities(ctx context.Context, email string) ([]domain.Activity, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT a.activity_id, a.name, a.description, a.schedule, a.max_participants, a.created_at, a.updated_at
        FROM enrollments e
        JOIN activities a ON a.activity_id = e.activity_id
        JOIN users u ON u.user_id = e.user_id
        WHERE u.email = ?
        ORDER BY e.position`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// ListEnrollmentsByUser implements domain.Store.
func (s *Store) ListEnrollmentsByUser(ctx context.Context) ([]domain.UserEnrollments, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT u.email, a.name
        FROM enrollments e
        JOIN activities a ON a.activity_id = e.activity_id
        JOIN users u ON u.user_id = e.user_id
        ORDER BY a.position, e.position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byEmail := make(map[string]int)
	results := make([]domain.UserEnrollments, 0)
	for rows.Next() {
		var email, activity string
		if err := rows.Scan(&email, &activity); err != nil {
			return nil, err
		}
		idx, ok := byEmail[email]
		if !ok {
			idx = len(results)
			byEmail[email] = idx
			results = append(results, domain.UserEnrollments{Email: email})
		}
		results[idx].Activities = append(results[idx].Activities, activity)
	}
	return results, rows.Err()
}

func requireAffected(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
