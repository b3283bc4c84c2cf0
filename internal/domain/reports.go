package domain

import (
	"context"
	"math"
	"sort"
)

// Stats aggregates enrollment totals across all activities.
type Stats struct {
	TotalStudents       int
	TotalActivities     int
	TotalEnrollments    int
	TotalCapacity       int
	TotalEnrolled       int
	CapacityUtilization float64
}

// Popularity is one activity's enrollment against its capacity.
type Popularity struct {
	Name        string
	Enrollment  int
	Capacity    int
	Utilization float64
	Schedule    string
}

// ComputeStats derives aggregate counts from the current store contents.
func (s *Service) ComputeStats(ctx context.Context) (Stats, error) {
	students, err := s.store.CountUsers(ctx)
	if err != nil {
		return Stats{}, storeErr("count users", err)
	}
	rosters, err := s.store.ListActivitiesWithParticipants(ctx)
	if err != nil {
		return Stats{}, storeErr("list activities", err)
	}

	stats := Stats{TotalStudents: students, TotalActivities: len(rosters)}
	for _, roster := range rosters {
		stats.TotalEnrollments += len(roster.Participants)
		stats.TotalCapacity += roster.MaxParticipants
	}
	stats.TotalEnrolled = stats.TotalEnrollments
	stats.CapacityUtilization = percentage(stats.TotalEnrolled, stats.TotalCapacity)
	return stats, nil
}

// ComputePopularity ranks activities by enrollment, most popular first.
// Activities with equal enrollment keep their insertion order.
func (s *Service) ComputePopularity(ctx context.Context) ([]Popularity, error) {
	rosters, err := s.store.ListActivitiesWithParticipants(ctx)
	if err != nil {
		return nil, storeErr("list activities", err)
	}

	rows := make([]Popularity, 0, len(rosters))
	for _, roster := range rosters {
		enrolled := len(roster.Participants)
		rows = append(rows, Popularity{
			Name:        roster.Name,
			Enrollment:  enrolled,
			Capacity:    roster.MaxParticipants,
			Utilization: percentage(enrolled, roster.MaxParticipants),
			Schedule:    roster.Schedule,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Enrollment > rows[j].Enrollment
	})
	return rows, nil
}

// ListUsersWithActivities returns every enrolled user ordered by email.
func (s *Service) ListUsersWithActivities(ctx context.Context) ([]UserEnrollments, error) {
	grouped, err := s.store.ListEnrollmentsByUser(ctx)
	if err != nil {
		return nil, storeErr("list enrollments", err)
	}

	out := make([]UserEnrollments, 0, len(grouped))
	for _, entry := range grouped {
		if len(entry.Activities) == 0 {
			continue
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Email < out[j].Email
	})
	return out, nil
}

// percentage returns part/whole*100 rounded to two decimals, or 0 for an empty whole.
func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*100*100) / 100
}
