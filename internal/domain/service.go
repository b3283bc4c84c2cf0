// Package domain defines the enrollment rules for Mergington extracurricular activities.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"example.com/mergington/internal/observability"
)

// Store captures persistence operations. Find methods return (nil, nil) when
// the record is absent. Guarded writes report rule violations with the
// sentinel errors in this package; implementations must make AddEnrollment's
// duplicate check, capacity check and insert a single atomic step.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindActivityByName(ctx context.Context, name string) (*Activity, error)
	CreateUser(ctx context.Context, user User) error
	CreateActivity(ctx context.Context, activity Activity) error
	UpdateActivity(ctx context.Context, activity Activity) error
	DeleteActivity(ctx context.Context, name string) error
	AddEnrollment(ctx context.Context, enrollment Enrollment) error
	RemoveEnrollment(ctx context.Context, activityName, email string) error
	CountEnrollments(ctx context.Context, activityName string) (int, error)
	CountUsers(ctx context.Context) (int, error)
	ListActivitiesWithParticipants(ctx context.Context) ([]ActivityRoster, error)
	ListUserActivities(ctx context.Context, email string) ([]Activity, error)
	ListEnrollmentsByUser(ctx context.Context) ([]UserEnrollments, error)
}

// Service orchestrates enrollment workflows.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// ActivityInput is the admin-supplied content of an activity.
type ActivityInput struct {
	Name            string
	Description     string
	Schedule        string
	MaxParticipants int
}

func (in ActivityInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("activity name is required")
	}
	if in.MaxParticipants <= 0 {
		return invalid("max_participants must be > 0")
	}
	return nil
}

// DisplayName derives a user's name from the local part of their email:
// first letter upper-cased, remainder lower-cased.
func DisplayName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return ""
	}
	first, size := utf8.DecodeRuneInString(local)
	return string(unicode.ToUpper(first)) + strings.ToLower(local[size:])
}

// ResolveOrCreateUser returns the user with the given email, creating it on first sight.
func (s *Service) ResolveOrCreateUser(ctx context.Context, email string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, invalid("email is required")
	}

	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, storeErr("find user", err)
	}
	if existing != nil {
		return existing, nil
	}

	user := User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      DisplayName(email),
		CreatedAt: s.now(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, ErrUserExists) {
			return nil, storeErr("create user", err)
		}
		// Lost a race with a concurrent first login; the winner's record is authoritative.
		winner, findErr := s.store.FindUserByEmail(ctx, email)
		if findErr != nil {
			return nil, storeErr("find user", findErr)
		}
		if winner == nil {
			return nil, storeErr("find user", err)
		}
		return winner, nil
	}
	return &user, nil
}

// ListActivities returns every activity with its current participants.
func (s *Service) ListActivities(ctx context.Context) ([]ActivityRoster, error) {
	rosters, err := s.store.ListActivitiesWithParticipants(ctx)
	if err != nil {
		return nil, storeErr("list activities", err)
	}
	return rosters, nil
}

// GetSchedule returns the activities a known user is enrolled in.
func (s *Service) GetSchedule(ctx context.Context, email string) (*Schedule, error) {
	user, err := s.store.FindUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, storeErr("find user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	activities, err := s.store.ListUserActivities(ctx, user.Email)
	if err != nil {
		return nil, storeErr("list user activities", err)
	}
	return &Schedule{User: *user, Activities: activities}, nil
}

// SignUp enrolls the user, creating them if needed, in the named activity.
// The user is resolved before the activity is looked up, so a known email
// is registered even when the activity does not exist.
func (s *Service) SignUp(ctx context.Context, activityName, email string) error {
	var user *User
	if strings.TrimSpace(email) != "" {
		resolved, err := s.ResolveOrCreateUser(ctx, email)
		if err != nil {
			return err
		}
		user = resolved
	}

	activity, err := s.store.FindActivityByName(ctx, activityName)
	if err != nil {
		return storeErr("find activity", err)
	}
	if activity == nil {
		return ErrActivityNotFound
	}
	if user == nil {
		return invalid("email is required")
	}

	enrolledAt := s.now()
	err = s.store.AddEnrollment(ctx, Enrollment{
		UserEmail:    user.Email,
		ActivityName: activity.Name,
		EnrolledAt:   enrolledAt,
	})
	if err != nil {
		return storeErr("add enrollment", err)
	}
	observability.RecordEnrollmentChanged(enrolledAt)
	return nil
}

// Unregister removes the user's seat in the named activity.
func (s *Service) Unregister(ctx context.Context, activityName, email string) error {
	user, err := s.store.FindUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return storeErr("find user", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	activity, err := s.store.FindActivityByName(ctx, activityName)
	if err != nil {
		return storeErr("find activity", err)
	}
	if activity == nil {
		return ErrActivityNotFound
	}

	if err := s.store.RemoveEnrollment(ctx, activity.Name, user.Email); err != nil {
		return storeErr("remove enrollment", err)
	}
	observability.RecordEnrollmentChanged(s.now())
	return nil
}

// CreateActivity adds a new activity with no participants. Callers must
// have passed the admin gate.
func (s *Service) CreateActivity(ctx context.Context, in ActivityInput) (*Activity, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.FindActivityByName(ctx, in.Name)
	if err != nil {
		return nil, storeErr("find activity", err)
	}
	if existing != nil {
		return nil, ErrActivityExists
	}

	now := s.now()
	activity := Activity{
		ID:              uuid.NewString(),
		Name:            in.Name,
		Description:     in.Description,
		Schedule:        in.Schedule,
		MaxParticipants: in.MaxParticipants,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateActivity(ctx, activity); err != nil {
		return nil, storeErr("create activity", err)
	}
	return &activity, nil
}

// UpdateActivity overwrites description, schedule and capacity. Existing
// enrollments are kept even when the new capacity is below the head count.
func (s *Service) UpdateActivity(ctx context.Context, in ActivityInput) (*Activity, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	activity, err := s.store.FindActivityByName(ctx, in.Name)
	if err != nil {
		return nil, storeErr("find activity", err)
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}

	activity.Description = in.Description
	activity.Schedule = in.Schedule
	activity.MaxParticipants = in.MaxParticipants
	activity.UpdatedAt = s.now()
	if err := s.store.UpdateActivity(ctx, *activity); err != nil {
		return nil, storeErr("update activity", err)
	}
	return activity, nil
}

// DeleteActivity removes the activity and all of its enrollments.
func (s *Service) DeleteActivity(ctx context.Context, name string) error {
	activity, err := s.store.FindActivityByName(ctx, name)
	if err != nil {
		return storeErr("find activity", err)
	}
	if activity == nil {
		return ErrActivityNotFound
	}

	dropped, err := s.store.CountEnrollments(ctx, activity.Name)
	if err != nil {
		return storeErr("count enrollments", err)
	}
	if err := s.store.DeleteActivity(ctx, activity.Name); err != nil {
		return storeErr("delete activity", err)
	}
	if dropped > 0 {
		observability.RecordEnrollmentChanged(s.now())
	}
	return nil
}
