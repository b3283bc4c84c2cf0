// Package events defines event payloads shared by the API, outbox and consumer.
package events

import "time"

// Event type names recorded in the outbox and carried in the event_type Kafka header.
const (
	TypeActivityCreated   = "activity.created"
	TypeActivityUpdated   = "activity.updated"
	TypeActivityDeleted   = "activity.deleted"
	TypeEnrollmentCreated = "enrollment.created"
	TypeEnrollmentRemoved = "enrollment.removed"
)

// ActivityChanged is emitted when an admin creates or updates an activity.
type ActivityChanged struct {
	ActivityID      string    `json:"activity_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Schedule        string    `json:"schedule"`
	MaxParticipants int       `json:"max_participants"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// ActivityDeleted is emitted when an activity and its enrollments are removed.
type ActivityDeleted struct {
	ActivityID         string    `json:"activity_id"`
	Name               string    `json:"name"`
	DroppedEnrollments int       `json:"dropped_enrollments"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// EnrollmentChanged tracks a seat being taken or released.
type EnrollmentChanged struct {
	ActivityName string    `json:"activity_name"`
	UserEmail    string    `json:"user_email"`
	Enrolled     int       `json:"enrolled"`
	Capacity     int       `json:"capacity"`
	OccurredAt   time.Time `json:"occurred_at"`
}
