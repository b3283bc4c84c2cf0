package domain

import "time"

// User is a student identified by email.
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

// Activity is an extracurricular offering with a fixed capacity.
type Activity struct {
	ID              string
	Name            string
	Description     string
	Schedule        string
	MaxParticipants int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Enrollment records that a user holds a seat in an activity.
type Enrollment struct {
	UserEmail    string
	ActivityName string
	EnrolledAt   time.Time
}

// ActivityRoster is an activity together with its participant emails in enrollment order.
type ActivityRoster struct {
	Activity
	Participants []string
}

// UserEnrollments groups the activity names a single user is enrolled in.
type UserEnrollments struct {
	Email      string
	Activities []string
}

// Schedule is a user's personal view of their enrolled activities.
type Schedule struct {
	User       User
	Activities []Activity
}
