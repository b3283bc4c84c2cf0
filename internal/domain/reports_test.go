package domain_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/mergington/internal/domain"
)

func TestComputeStatsEmpty(t *testing.T) {
	stats, err := newService(t).ComputeStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.Stats{}, stats)
}

func TestComputeStats(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	createActivity(t, svc, "Chess Club", 12)
	createActivity(t, svc, "Programming Class", 20)
	createActivity(t, svc, "Gym Class", 30)

	require.NoError(t, svc.SignUp(ctx, "Chess Club", "michael@mergington.edu"))
	require.NoError(t, svc.SignUp(ctx, "Chess Club", "daniel@mergington.edu"))
	require.NoError(t, svc.SignUp(ctx, "Programming Class", "michael@mergington.edu"))
	_, err := svc.ResolveOrCreateUser(ctx, "idle@mergington.edu")
	require.NoError(t, err)

	stats, err := svc.ComputeStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalStudents)
	require.Equal(t, 3, stats.TotalActivities)
	require.Equal(t, 3, stats.TotalEnrollments)
	require.Equal(t, 62, stats.TotalCapacity)
	require.Equal(t, stats.TotalEnrollments, stats.TotalEnrolled)
	require.InDelta(t, 4.84, stats.CapacityUtilization, 1e-9)
}

func TestComputePopularityIsStable(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	createActivity(t, svc, "Art Club", 15)
	createActivity(t, svc, "Drama Club", 20)
	createActivity(t, svc, "Math Club", 3)
	createActivity(t, svc, "Debate Team", 12)

	require.NoError(t, svc.SignUp(ctx, "Math Club", "james@mergington.edu"))
	require.NoError(t, svc.SignUp(ctx, "Math Club", "benjamin@mergington.edu"))
	require.NoError(t, svc.SignUp(ctx, "Drama Club", "ella@mergington.edu"))
	require.NoError(t, svc.SignUp(ctx, "Debate Team", "henry@mergington.edu"))

	rows, err := svc.ComputePopularity(ctx)
	require.NoError(t, err)

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Name)
	}
	require.Equal(t, []string{"Math Club", "Drama Club", "Debate Team", "Art Club"}, names)
	require.InDelta(t, 66.67, rows[0].Utilization, 1e-9)
	require.Equal(t, 3, rows[0].Capacity)
	require.Equal(t, "Mondays 3:00 PM", rows[0].Schedule)
	require.Zero(t, rows[3].Utilization)
}

func TestListUsersWithActivitiesSortedByEmail(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	createActivity(t, svc, "Soccer Team", 22)
	createActivity(t, svc, "Basketball Team", 15)

	require.NoError(t, svc.SignUp(ctx, "Soccer Team", "lucas@mergington.edu"))
	require.NoError(t, svc.SignUp(ctx, "Basketball Team", "ava@mergington.edu"))
	require.NoError(t, svc.SignUp(ctx, "Soccer Team", "ava@mergington.edu"))
	_, err := svc.ResolveOrCreateUser(ctx, "idle@mergington.edu")
	require.NoError(t, err)

	users, err := svc.ListUsersWithActivities(ctx)
	require.NoError(t, err)
	require.Equal(t, []domain.UserEnrollments{
		{Email: "ava@mergington.edu", Activities: []string{"Soccer Team", "Basketball Team"}},
		{Email: "lucas@mergington.edu", Activities: []string{"Soccer Team"}},
	}, users)
}
