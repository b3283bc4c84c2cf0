package api

import (
	"bytes"
	"encoding/json"
	"time"

	"example.com/mergington/internal/domain"
)

// MessageResponse is the body of simple acknowledgements.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserView is the public shape of a user.
type UserView struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// LoginResponse is returned by POST /users/login.
type LoginResponse struct {
	User    UserView `json:"user"`
	Message string   `json:"message"`
}

// ScheduleEntry is one activity in a user's schedule.
type ScheduleEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schedule    string `json:"schedule"`
}

// ScheduleResponse is returned by GET /users/{email}/schedule.
type ScheduleResponse struct {
	User     UserView        `json:"user"`
	Schedule []ScheduleEntry `json:"schedule"`
}

// ActivityDetails is the value of each entry in GET /activities.
type ActivityDetails struct {
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

// activityDirectory renders rosters as a JSON object keyed by activity name,
// keeping store order. encoding/json sorts map keys, so it is written by hand.
type activityDirectory []domain.ActivityRoster

func (d activityDirectory) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, roster := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(roster.Name)
		if err != nil {
			return nil, err
		}
		participants := roster.Participants
		if participants == nil {
			participants = []string{}
		}
		value, err := json.Marshal(ActivityDetails{
			Description:     roster.Description,
			Schedule:        roster.Schedule,
			MaxParticipants: roster.MaxParticipants,
			Participants:    participants,
		})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ActivityView exposes full details about an activity.
type ActivityView struct {
	ActivityID      string    `json:"activity_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Schedule        string    `json:"schedule"`
	MaxParticipants int       `json:"max_participants"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ActivityMutationResponse is returned by admin create and update.
type ActivityMutationResponse struct {
	Message  string       `json:"message"`
	Activity ActivityView `json:"activity"`
}

// StatsResponse is returned by GET /admin/stats.
type StatsResponse struct {
	TotalStudents       int     `json:"total_students"`
	TotalActivities     int     `json:"total_activities"`
	TotalEnrollments    int     `json:"total_enrollments"`
	TotalCapacity       int     `json:"total_capacity"`
	TotalEnrolled       int     `json:"total_enrolled"`
	CapacityUtilization float64 `json:"capacity_utilization"`
}

// PopularActivityView is one row of GET /admin/activities/popular.
type PopularActivityView struct {
	Name        string  `json:"name"`
	Enrollment  int     `json:"enrollment"`
	Capacity    int     `json:"capacity"`
	Utilization float64 `json:"utilization"`
	Schedule    string  `json:"schedule"`
}

// PopularActivitiesResponse packages popularity rows.
type PopularActivitiesResponse struct {
	Activities []PopularActivityView `json:"activities"`
}

// UserActivitiesView is one row of GET /admin/users.
type UserActivitiesView struct {
	Email         string   `json:"email"`
	Activities    []string `json:"activities"`
	ActivityCount int      `json:"activity_count"`
}

// UsersResponse packages admin user rows.
type UsersResponse struct {
	Users []UserActivitiesView `json:"users"`
}

func toUserView(u domain.User) UserView {
	return UserView{Email: u.Email, Name: u.Name}
}

func toActivityView(a domain.Activity) ActivityView {
	return ActivityView{
		ActivityID:      a.ID,
		Name:            a.Name,
		Description:     a.Description,
		Schedule:        a.Schedule,
		MaxParticipants: a.MaxParticipants,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}
