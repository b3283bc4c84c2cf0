// Package memory provides an in-process Store for local development and tests.
package memory

import (
	"context"
	"sync"

	"example.com/mergington/internal/domain"
)

// Store keeps users, activities and enrollments in insertion-ordered slices
// guarded by a single lock, so every guarded write is atomic.
type Store struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	activities  []domain.Activity
	enrollments []domain.Enrollment
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{users: make(map[string]domain.User)}
}

// FindUserByEmail implements domain.Store.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[email]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// FindActivityByName implements domain.Store.
func (s *Store) FindActivityByName(ctx context.Context, name string) (*domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.activityIndex(name)
	if idx < 0 {
		return nil, nil
	}
	activity := s.activities[idx]
	return &activity, nil
}

// CreateUser implements domain.Store.
func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Email]; ok {
		return domain.ErrUserExists
	}
	s.users[user.Email] = user
	return nil
}

// CreateActivity implements domain.Store.
func (s *Store) CreateActivity(ctx context.Context, activity domain.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activityIndex(activity.Name) >= 0 {
		return domain.ErrActivityExists
	}
	s.activities = append(s.activities, activity)
	return nil
}

// UpdateActivity implements domain.Store.
func (s *Store) UpdateActivity(ctx context.Context, activity domain.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.activityIndex(activity.Name)
	if idx < 0 {
		return domain.ErrActivityNotFound
	}
	current := &s.activities[idx]
	current.Description = activity.Description
	current.Schedule = activity.Schedule
	current.MaxParticipants = activity.MaxParticipants
	current.UpdatedAt = activity.UpdatedAt
	return nil
}

// DeleteActivity implements domain.Store and drops the activity's enrollments.
func (s *Store) DeleteActivity(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.activityIndex(name)
	if idx < 0 {
		return domain.ErrActivityNotFound
	}
	s.activities = append(s.activities[:idx], s.activities[idx+1:]...)

	kept := s.enrollments[:0]
	for _, e := range s.enrollments {
		if e.ActivityName != name {
			kept = append(kept, e)
		}
	}
	s.enrollments = kept
	return nil
}

// AddEnrollment implements domain.Store.
func (s *Store) AddEnrollment(ctx context.Context, enrollment domain.Enrollment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[enrollment.UserEmail]; !ok {
		return domain.ErrUserNotFound
	}
	idx := s.activityIndex(enrollment.ActivityName)
	if idx < 0 {
		return domain.ErrActivityNotFound
	}

	count := 0
	for _, e := range s.enrollments {
		if e.ActivityName != enrollment.ActivityName {
			continue
		}
		if e.UserEmail == enrollment.UserEmail {
			return domain.ErrAlreadyEnrolled
		}
		count++
	}
	if count >= s.activities[idx].MaxParticipants {
		return domain.ErrActivityFull
	}

	s.enrollments = append(s.enrollments, enrollment)
	return nil
}

// RemoveEnrollment implements domain.Store.
func (s *Store) RemoveEnrollment(ctx context.Context, activityName, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.enrollments {
		if e.ActivityName == activityName && e.UserEmail == email {
			s.enrollments = append(s.enrollments[:i], s.enrollments[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotEnrolled
}

// CountEnrollments implements domain.Store.
func (s *Store) CountEnrollments(ctx context.Context, activityName string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.enrollments {
		if e.ActivityName == activityName {
			count++
		}
	}
	return count, nil
}

// CountUsers implements domain.Store.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// ListActivitiesWithParticipants implements domain.Store.
func (s *Store) ListActivitiesWithParticipants(ctx context.Context) ([]domain.ActivityRoster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ActivityRoster, 0, len(s.activities))
	for _, activity := range s.activities {
		participants := make([]string, 0)
		for _, e := range s.enrollments {
			if e.ActivityName == activity.Name {
				participants = append(participants, e.UserEmail)
			}
		}
		out = append(out, domain.ActivityRoster{Activity: activity, Participants: participants})
	}
	return out, nil
}

// ListUserActivities implements domain.Store.
func (s *Store) ListUserActivities(ctx context.Context, email string) ([]domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Activity, 0)
	for _, e := range s.enrollments {
		if e.UserEmail != email {
			continue
		}
		if idx := s.activityIndex(e.ActivityName); idx >= 0 {
			out = append(out, s.activities[idx])
		}
	}
	return out, nil
}

// ListEnrollmentsByUser implements domain.Store. Each user's activity names
// follow activity insertion order.
func (s *Store) ListEnrollmentsByUser(ctx context.Context) ([]domain.UserEnrollments, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	byEmail := make(map[string]int)
	out := make([]domain.UserEnrollments, 0)
	for _, activity := range s.activities {
		for _, e := range s.enrollments {
			if e.ActivityName != activity.Name {
				continue
			}
			idx, ok := byEmail[e.UserEmail]
			if !ok {
				idx = len(out)
				byEmail[e.UserEmail] = idx
				out = append(out, domain.UserEnrollments{Email: e.UserEmail})
			}
			out[idx].Activities = append(out[idx].Activities, activity.Name)
		}
	}
	return out, nil
}

func (s *Store) activityIndex(name string) int {
	for i, activity := range s.activities {
		if activity.Name == name {
			return i
		}
	}
	return -1
}
