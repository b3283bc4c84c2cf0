// Package storetest holds behaviour checks every domain.Store implementation must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/mergington/internal/domain"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) domain.Store

// Run executes the store behaviour suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("FindMissingReturnsNil", func(t *testing.T) { testFindMissing(t, newStore(t)) })
	t.Run("UniqueNames", func(t *testing.T) { testUniqueNames(t, newStore(t)) })
	t.Run("EnrollmentGuards", func(t *testing.T) { testEnrollmentGuards(t, newStore(t)) })
	t.Run("InsertionOrder", func(t *testing.T) { testInsertionOrder(t, newStore(t)) })
	t.Run("UpdateKeepsEnrollments", func(t *testing.T) { testUpdateKeepsEnrollments(t, newStore(t)) })
	t.Run("DeleteCascades", func(t *testing.T) { testDeleteCascades(t, newStore(t)) })
	t.Run("ConcurrentSignupsRespectCapacity", func(t *testing.T) { testConcurrentCapacity(t, newStore(t)) })
}

func activity(name string, capacity int) domain.Activity {
	now := time.Date(2025, time.September, 1, 15, 0, 0, 0, time.UTC)
	return domain.Activity{
		ID:              uuid.NewString(),
		Name:            name,
		Description:     name + " description",
		Schedule:        "Mondays 3:00 PM",
		MaxParticipants: capacity,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func user(email string) domain.User {
	return domain.User{ID: uuid.NewString(), Email: email, Name: domain.DisplayName(email), CreatedAt: time.Now().UTC()}
}

func enroll(activityName, email string) domain.Enrollment {
	return domain.Enrollment{UserEmail: email, ActivityName: activityName, EnrolledAt: time.Now().UTC()}
}

func testFindMissing(t *testing.T, store domain.Store) {
	ctx := context.Background()

	u, err := store.FindUserByEmail(ctx, "nobody@mergington.edu")
	require.NoError(t, err)
	require.Nil(t, u)

	a, err := store.FindActivityByName(ctx, "Nonexistent")
	require.NoError(t, err)
	require.Nil(t, a)

	rosters, err := store.ListActivitiesWithParticipants(ctx)
	require.NoError(t, err)
	require.Empty(t, rosters)
}

func testUniqueNames(t *testing.T, store domain.Store) {
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, user("test1@mergington.edu")))
	require.ErrorIs(t, store.CreateUser(ctx, user("test1@mergington.edu")), domain.ErrUserExists)

	require.NoError(t, store.CreateActivity(ctx, activity("Chess Club", 12)))
	require.ErrorIs(t, store.CreateActivity(ctx, activity("Chess Club", 5)), domain.ErrActivityExists)

	stored, err := store.FindActivityByName(ctx, "Chess Club")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, 12, stored.MaxParticipants)

	count, err := store.CountUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func testEnrollmentGuards(t *testing.T, store domain.Store) {
	ctx := context.Background()

	require.NoError(t, store.CreateActivity(ctx, activity("Math Club", 1)))
	require.NoError(t, store.CreateUser(ctx, user("james@mergington.edu")))
	require.NoError(t, store.CreateUser(ctx, user("benjamin@mergington.edu")))

	require.ErrorIs(t, store.AddEnrollment(ctx, enroll("Nonexistent", "james@mergington.edu")), domain.ErrActivityNotFound)
	require.ErrorIs(t, store.AddEnrollment(ctx, enroll("Math Club", "ghost@mergington.edu")), domain.ErrUserNotFound)

	require.NoError(t, store.AddEnrollment(ctx, enroll("Math Club", "james@mergington.edu")))
	require.ErrorIs(t, store.AddEnrollment(ctx, enroll("Math Club", "james@mergington.edu")), domain.ErrAlreadyEnrolled)
	require.ErrorIs(t, store.AddEnrollment(ctx, enroll("Math Club", "benjamin@mergington.edu")), domain.ErrActivityFull)

	count, err := store.CountEnrollments(ctx, "Math Club")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.ErrorIs(t, store.RemoveEnrollment(ctx, "Math Club", "benjamin@mergington.edu"), domain.ErrNotEnrolled)
	require.NoError(t, store.RemoveEnrollment(ctx, "Math Club", "james@mergington.edu"))

	count, err = store.CountEnrollments(ctx, "Math Club")
	require.NoError(t, err)
	require.Zero(t, count)
}

func testInsertionOrder(t *testing.T, store domain.Store) {
	ctx := context.Background()

	for _, name := range []string{"Soccer Team", "Art Club", "Drama Club"} {
		require.NoError(t, store.CreateActivity(ctx, activity(name, 10)))
	}
	for _, email := range []string{"liam@mergington.edu", "ava@mergington.edu", "ella@mergington.edu"} {
		require.NoError(t, store.CreateUser(ctx, user(email)))
	}
	require.NoError(t, store.AddEnrollment(ctx, enroll("Drama Club", "liam@mergington.edu")))
	require.NoError(t, store.AddEnrollment(ctx, enroll("Soccer Team", "liam@mergington.edu")))
	require.NoError(t, store.AddEnrollment(ctx, enroll("Soccer Team", "ella@mergington.edu")))
	require.NoError(t, store.AddEnrollment(ctx, enroll("Soccer Team", "ava@mergington.edu")))

	rosters, err := store.ListActivitiesWithParticipants(ctx)
	require.NoError(t, err)
	require.Len(t, rosters, 3)
	require.Equal(t, "Soccer Team", rosters[0].Name)
	require.Equal(t, []string{"liam@mergington.edu", "ella@mergington.edu", "ava@mergington.edu"}, rosters[0].Participants)
	require.Equal(t, "Art Club", rosters[1].Name)
	require.Empty(t, rosters[1].Participants)
	require.Equal(t, "Drama Club", rosters[2].Name)

	mine, err := store.ListUserActivities(ctx, "liam@mergington.edu")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, "Drama Club", mine[0].Name)
	require.Equal(t, "Soccer Team", mine[1].Name)

	grouped, err := store.ListEnrollmentsByUser(ctx)
	require.NoError(t, err)
	byEmail := make(map[string][]string)
	for _, g := range grouped {
		byEmail[g.Email] = g.Activities
	}
	require.Len(t, byEmail, 3)
	require.Equal(t, []string{"Soccer Team", "Drama Club"}, byEmail["liam@mergington.edu"])
	require.Equal(t, []string{"Soccer Team"}, byEmail["ava@mergington.edu"])
}

func testUpdateKeepsEnrollments(t *testing.T, store domain.Store) {
	ctx := context.Background()

	a := activity("Debate Team", 3)
	require.NoError(t, store.CreateActivity(ctx, a))
	for _, email := range []string{"charlotte@mergington.edu", "henry@mergington.edu"} {
		require.NoError(t, store.CreateUser(ctx, user(email)))
		require.NoError(t, store.AddEnrollment(ctx, enroll("Debate Team", email)))
	}

	a.Description = "Sharpen your arguments"
	a.Schedule = "Fridays, 4:00 PM - 5:30 PM"
	a.MaxParticipants = 1
	a.UpdatedAt = a.UpdatedAt.Add(time.Hour)
	require.NoError(t, store.UpdateActivity(ctx, a))

	stored, err := store.FindActivityByName(ctx, "Debate Team")
	require.NoError(t, err)
	require.Equal(t, "Sharpen your arguments", stored.Description)
	require.Equal(t, 1, stored.MaxParticipants)

	count, err := store.CountEnrollments(ctx, "Debate Team")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.ErrorIs(t, store.UpdateActivity(ctx, activity("Nonexistent", 3)), domain.ErrActivityNotFound)
}

func testDeleteCascades(t *testing.T, store domain.Store) {
	ctx := context.Background()

	require.NoError(t, store.CreateActivity(ctx, activity("Test Club", 10)))
	require.NoError(t, store.CreateActivity(ctx, activity("Gym Class", 30)))
	for _, email := range []string{"test1@mergington.edu", "test2@mergington.edu"} {
		require.NoError(t, store.CreateUser(ctx, user(email)))
		require.NoError(t, store.AddEnrollment(ctx, enroll("Test Club", email)))
	}
	require.NoError(t, store.AddEnrollment(ctx, enroll("Gym Class", "test1@mergington.edu")))

	require.NoError(t, store.DeleteActivity(ctx, "Test Club"))
	require.ErrorIs(t, store.DeleteActivity(ctx, "Test Club"), domain.ErrActivityNotFound)

	rosters, err := store.ListActivitiesWithParticipants(ctx)
	require.NoError(t, err)
	require.Len(t, rosters, 1)
	require.Equal(t, "Gym Class", rosters[0].Name)

	mine, err := store.ListUserActivities(ctx, "test2@mergington.edu")
	require.NoError(t, err)
	require.Empty(t, mine)

	count, err := store.CountUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count, "users survive activity deletion")
}

func testConcurrentCapacity(t *testing.T, store domain.Store) {
	ctx := context.Background()

	const capacity = 5
	require.NoError(t, store.CreateActivity(ctx, activity("Test Team", capacity)))

	emails := make([]string, 12)
	for i := range emails {
		emails[i] = fmt.Sprintf("student%02d@mergington.edu", i)
		require.NoError(t, store.CreateUser(ctx, user(emails[i])))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(emails))
	for i, email := range emails {
		wg.Add(1)
		go func(i int, email string) {
			defer wg.Done()
			errs[i] = store.AddEnrollment(ctx, enroll("Test Team", email))
		}(i, email)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, domain.ErrActivityFull)
	}
	require.Equal(t, capacity, succeeded)

	count, err := store.CountEnrollments(ctx, "Test Team")
	require.NoError(t, err)
	require.Equal(t, capacity, count)
}
