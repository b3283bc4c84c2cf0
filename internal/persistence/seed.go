// Package persistence contains helpers shared by Store implementations.
package persistence

import (
	"context"
	"errors"
	"fmt"

	"example.com/mergington/internal/domain"
)

// SampleActivity describes one seeded activity and its initial participants.
type SampleActivity struct {
	Name            string
	Description     string
	Schedule        string
	MaxParticipants int
	Participants    []string
}

// SampleActivities is the Mergington High School starter catalogue.
var SampleActivities = []SampleActivity{
	{
		Name:            "Chess Club",
		Description:     "Learn strategies and compete in chess tournaments",
		Schedule:        "Fridays, 3:30 PM - 5:00 PM",
		MaxParticipants: 12,
		Participants:    []string{"michael@mergington.edu", "daniel@mergington.edu"},
	},
	{
		Name:            "Programming Class",
		Description:     "Learn programming fundamentals and build software projects",
		Schedule:        "Tuesdays and Thursdays, 3:30 PM - 4:30 PM",
		MaxParticipants: 20,
		Participants:    []string{"emma@mergington.edu", "sophia@mergington.edu"},
	},
	{
		Name:            "Gym Class",
		Description:     "Physical education and sports activities",
		Schedule:        "Mondays, Wednesdays, Fridays, 2:00 PM - 3:00 PM",
		MaxParticipants: 30,
		Participants:    []string{"john@mergington.edu", "olivia@mergington.edu"},
	},
	{
		Name:            "Soccer Team",
		Description:     "Join the school soccer team and compete in matches",
		Schedule:        "Tuesdays and Thursdays, 4:00 PM - 5:30 PM",
		MaxParticipants: 22,
		Participants:    []string{"liam@mergington.edu", "noah@mergington.edu"},
	},
	{
		Name:            "Basketball Team",
		Description:     "Practice and play basketball with the school team",
		Schedule:        "Wednesdays and Fridays, 3:30 PM - 5:00 PM",
		MaxParticipants: 15,
		Participants:    []string{"ava@mergington.edu", "mia@mergington.edu"},
	},
	{
		Name:            "Art Club",
		Description:     "Explore your creativity through painting and drawing",
		Schedule:        "Thursdays, 3:30 PM - 5:00 PM",
		MaxParticipants: 15,
		Participants:    []string{"amelia@mergington.edu", "harper@mergington.edu"},
	},
	{
		Name:            "Drama Club",
		Description:     "Act, direct, and produce plays and performances",
		Schedule:        "Mondays and Wednesdays, 4:00 PM - 5:30 PM",
		MaxParticipants: 20,
		Participants:    []string{"ella@mergington.edu", "scarlett@mergington.edu"},
	},
	{
		Name:            "Math Club",
		Description:     "Solve challenging problems and participate in math competitions",
		Schedule:        "Tuesdays, 3:30 PM - 4:30 PM",
		MaxParticipants: 10,
		Participants:    []string{"james@mergington.edu", "benjamin@mergington.edu"},
	},
	{
		Name:            "Debate Team",
		Description:     "Develop public speaking and argumentation skills",
		Schedule:        "Fridays, 4:00 PM - 5:30 PM",
		MaxParticipants: 12,
		Participants:    []string{"charlotte@mergington.edu", "henry@mergington.edu"},
	},
}

// SeedResult reports what Seed wrote.
type SeedResult struct {
	Skipped    bool
	Activities int
	Users      int
}

// Seed loads the sample catalogue through the domain service. It does nothing
// when the store already holds activities unless force is set, in which case
// sample activities that already exist are left untouched.
func Seed(ctx context.Context, service *domain.Service, samples []SampleActivity, force bool) (SeedResult, error) {
	existing, err := service.ListActivities(ctx)
	if err != nil {
		return SeedResult{}, err
	}
	if len(existing) > 0 && !force {
		return SeedResult{Skipped: true}, nil
	}

	before, err := service.ComputeStats(ctx)
	if err != nil {
		return SeedResult{}, err
	}

	var result SeedResult
	for _, sample := range samples {
		_, err := service.CreateActivity(ctx, domain.ActivityInput{
			Name:            sample.Name,
			Description:     sample.Description,
			Schedule:        sample.Schedule,
			MaxParticipants: sample.MaxParticipants,
		})
		if err != nil {
			if errors.Is(err, domain.ErrActivityExists) {
				continue
			}
			return result, fmt.Errorf("seed activity %q: %w", sample.Name, err)
		}
		result.Activities++

		for _, email := range sample.Participants {
			if err := service.SignUp(ctx, sample.Name, email); err != nil {
				return result, fmt.Errorf("seed enrollment %q in %q: %w", email, sample.Name, err)
			}
		}
	}

	after, err := service.ComputeStats(ctx)
	if err != nil {
		return result, err
	}
	result.Users = after.TotalStudents - before.TotalStudents
	return result, nil
}
