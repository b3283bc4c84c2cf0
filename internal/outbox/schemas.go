package outbox

import "example.com/mergington/internal/platform/events"

const activityChangedSchema = `{
  "type": "object",
  "title": "ActivityChanged",
  "properties": {
    "activity_id": {"type": "string"},
    "name": {"type": "string"},
    "description": {"type": "string"},
    "schedule": {"type": "string"},
    "max_participants": {"type": "integer", "minimum": 1},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "name", "description", "schedule", "max_participants", "occurred_at"],
  "additionalProperties": false
}`

const activityDeletedSchema = `{
  "type": "object",
  "title": "ActivityDeleted",
  "properties": {
    "activity_id": {"type": "string"},
    "name": {"type": "string"},
    "dropped_enrollments": {"type": "integer", "minimum": 0},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "name", "dropped_enrollments", "occurred_at"],
  "additionalProperties": false
}`

const enrollmentChangedSchema = `{
  "type": "object",
  "title": "EnrollmentChanged",
  "properties": {
    "activity_name": {"type": "string"},
    "user_email": {"type": "string"},
    "enrolled": {"type": "integer", "minimum": 0},
    "capacity": {"type": "integer", "minimum": 1},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_name", "user_email", "enrolled", "capacity", "occurred_at"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeActivityCreated:   {Schema: activityChangedSchema},
	events.TypeActivityUpdated:   {Schema: activityChangedSchema},
	events.TypeActivityDeleted:   {Schema: activityDeletedSchema},
	events.TypeEnrollmentCreated: {Schema: enrollmentChangedSchema},
	events.TypeEnrollmentRemoved: {Schema: enrollmentChangedSchema},
}
