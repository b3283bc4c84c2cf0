package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/platform/events"
)

const uniqueViolation = "23505"

// Repository provides Postgres-backed persistence for users, activities and
// enrollments. When events are enabled every write also records outbox rows
// inside the same transaction.
type Repository struct {
	pool         *pgxpool.Pool
	recordEvents bool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool, recordEvents bool) *Repository {
	return &Repository{pool: pool, recordEvents: recordEvents}
}

const activityColumns = `activity_id::text, name, description, schedule, max_participants, created_at, updated_at`

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var a domain.Activity
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Schedule, &a.MaxParticipants, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// FindUserByEmail implements domain.Store.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT user_id::text, email, name, created_at FROM users WHERE email=$1`, email)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// FindActivityByName implements domain.Store.
func (r *Repository) FindActivityByName(ctx context.Context, name string) (*domain.Activity, error) {
	a, err := scanActivity(r.pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE name=$1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// CreateUser implements domain.Store.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO users (user_id, email, name, created_at) VALUES ($1,$2,$3,$4)`,
		user.ID, user.Email, user.Name, user.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrUserExists
	}
	return err
}

// CreateActivity implements domain.Store.
func (r *Repository) CreateActivity(ctx context.Context, activity domain.Activity) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `INSERT INTO activities (activity_id, name, description, schedule, max_participants, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		activity.ID, activity.Name, activity.Description, activity.Schedule, activity.MaxParticipants, activity.CreatedAt, activity.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrActivityExists
		}
		return err
	}

	if err = r.insertOutbox(ctx, tx, events.TypeActivityCreated, activity.ID, activity.Name, activityChanged(activity)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateActivity implements domain.Store.
func (r *Repository) UpdateActivity(ctx context.Context, activity domain.Activity) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	var id string
	err = tx.QueryRow(ctx, `UPDATE activities SET description=$2, schedule=$3, max_participants=$4, updated_at=$5
        WHERE name=$1 RETURNING activity_id::text`,
		activity.Name, activity.Description, activity.Schedule, activity.MaxParticipants, activity.UpdatedAt).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrActivityNotFound
		}
		return err
	}
	activity.ID = id

	if err = r.insertOutbox(ctx, tx, events.TypeActivityUpdated, activity.ID, activity.Name, activityChanged(activity)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DeleteActivity implements domain.Store. Enrollments go with the activity
// through ON DELETE CASCADE.
func (r *Repository) DeleteActivity(ctx context.Context, name string) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	var id string
	var dropped int
	err = tx.QueryRow(ctx, `SELECT a.activity_id::text, (SELECT COUNT(*) FROM enrollments e WHERE e.activity_id = a.activity_id)
        FROM activities a WHERE a.name=$1 FOR UPDATE`, name).Scan(&id, &dropped)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrActivityNotFound
		}
		return err
	}

	if _, err = tx.Exec(ctx, `DELETE FROM activities WHERE activity_id=$1`, id); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err = r.insertOutbox(ctx, tx, events.TypeActivityDeleted, id, name, events.ActivityDeleted{
		ActivityID:         id,
		Name:               name,
		DroppedEnrollments: dropped,
		OccurredAt:         now,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// AddEnrollment implements domain.Store. The activity row is locked for the
// duration of the duplicate check, head count and insert, so concurrent
// signups for one activity are serialized.
func (r *Repository) AddEnrollment(ctx context.Context, enrollment domain.Enrollment) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	var activityID string
	var capacity int
	err = tx.QueryRow(ctx, `SELECT activity_id::text, max_participants FROM activities WHERE name=$1 FOR UPDATE`,
		enrollment.ActivityName).Scan(&activityID, &capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrActivityNotFound
		}
		return err
	}

	var userID string
	if err = tx.QueryRow(ctx, `SELECT user_id::text FROM users WHERE email=$1`, enrollment.UserEmail).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return err
	}

	var enrolled int
	var already bool
	err = tx.QueryRow(ctx, `SELECT COUNT(*), COALESCE(BOOL_OR(user_id = $2), false) FROM enrollments WHERE activity_id=$1`,
		activityID, userID).Scan(&enrolled, &already)
	if err != nil {
		return err
	}
	if already {
		return domain.ErrAlreadyEnrolled
	}
	if enrolled >= capacity {
		return domain.ErrActivityFull
	}

	if _, err = tx.Exec(ctx, `INSERT INTO enrollments (user_id, activity_id, enrolled_at) VALUES ($1,$2,$3)`,
		userID, activityID, enrollment.EnrolledAt); err != nil {
		return err
	}

	if err = r.insertOutbox(ctx, tx, events.TypeEnrollmentCreated, activityID, enrollment.ActivityName, events.EnrollmentChanged{
		ActivityName: enrollment.ActivityName,
		UserEmail:    enrollment.UserEmail,
		Enrolled:     enrolled + 1,
		Capacity:     capacity,
		OccurredAt:   enrollment.EnrolledAt,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RemoveEnrollment implements domain.Store.
func (r *Repository) RemoveEnrollment(ctx context.Context, activityName, email string) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	var activityID string
	var capacity int
	err = tx.QueryRow(ctx, `SELECT activity_id::text, max_participants FROM activities WHERE name=$1 FOR UPDATE`,
		activityName).Scan(&activityID, &capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrActivityNotFound
		}
		return err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM enrollments e USING users u
        WHERE e.user_id = u.user_id AND u.email=$1 AND e.activity_id=$2`, email, activityID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = domain.ErrNotEnrolled
		return err
	}

	var remaining int
	if err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM enrollments WHERE activity_id=$1`, activityID).Scan(&remaining); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err = r.insertOutbox(ctx, tx, events.TypeEnrollmentRemoved, activityID, activityName, events.EnrollmentChanged{
		ActivityName: activityName,
		UserEmail:    email,
		Enrolled:     remaining,
		Capacity:     capacity,
		OccurredAt:   now,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CountEnrollments implements domain.Store.
func (r *Repository) CountEnrollments(ctx context.Context, activityName string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM enrollments e JOIN activities a ON a.activity_id = e.activity_id
        WHERE a.name=$1`, activityName).Scan(&count)
	return count, err
}

// CountUsers implements domain.Store.
func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// ListActivitiesWithParticipants implements domain.Store.
func (r *Repository) ListActivitiesWithParticipants(ctx context.Context) ([]domain.ActivityRoster, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.activity_id::text, a.name, a.description, a.schedule, a.max_participants, a.created_at, a.updated_at, u.email
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
		var email *string
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Schedule, &a.MaxParticipants, &a.CreatedAt, &a.UpdatedAt, &email); err != nil {
			return nil, err
		}
		if n := len(results); n == 0 || results[n-1].ID != a.ID {
			results = append(results, domain.ActivityRoster{Activity: a, Participants: make([]string, 0)})
		}
		if email != nil {
			last := &results[len(results)-1]
			last.Participants = append(last.Participants, *email)
		}
	}
	return results, rows.Err()
}

// ListUserActivities implements domain.Store.
func (r *Repository) ListUserActivities(ctx context.Context, email string) ([]domain.Activity, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.activity_id::text, a.name, a.description, a.schedule, a.max_participants, a.created_at, a.updated_at
        FROM enrollments e
        JOIN activities a ON a.activity_id = e.activity_id
        JOIN users u ON u.user_id = e.user_id
        WHERE u.email=$1
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
func (r *Repository) ListEnrollmentsByUser(ctx context.Context) ([]domain.UserEnrollments, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.email, a.name
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

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, eventType, aggregateID, partitionKey string, payload interface{}) error {
	if !r.recordEvents {
		return nil
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		meta.AggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		uuid.NewString(),
	)
	return err
}

func activityChanged(a domain.Activity) events.ActivityChanged {
	return events.ActivityChanged{
		ActivityID:      a.ID,
		Name:            a.Name,
		Description:     a.Description,
		Schedule:        a.Schedule,
		MaxParticipants: a.MaxParticipants,
		OccurredAt:      a.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	AggregateType string
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeActivityCreated: {
		AggregateType: "activity",
		Topic:         "activity_events",
		SchemaSubject: "activity_events-value",
	},
	events.TypeActivityUpdated: {
		AggregateType: "activity",
		Topic:         "activity_events",
		SchemaSubject: "activity_events-value",
	},
	events.TypeActivityDeleted: {
		AggregateType: "activity",
		Topic:         "activity_events",
		SchemaSubject: "activity_deleted-value",
	},
	events.TypeEnrollmentCreated: {
		AggregateType: "enrollment",
		Topic:         "enrollment_events",
		SchemaSubject: "enrollment_events-value",
	},
	events.TypeEnrollmentRemoved: {
		AggregateType: "enrollment",
		Topic:         "enrollment_events",
		SchemaSubject: "enrollment_events-value",
	},
}
