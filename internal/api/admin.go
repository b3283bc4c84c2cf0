package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.ComputeStats(r.Context())
	record("compute_stats", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		TotalStudents:       stats.TotalStudents,
		TotalActivities:     stats.TotalActivities,
		TotalEnrollments:    stats.TotalEnrollments,
		TotalCapacity:       stats.TotalCapacity,
		TotalEnrolled:       stats.TotalEnrolled,
		CapacityUtilization: stats.CapacityUtilization,
	})
}

func (h *Handler) popularActivities(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ComputePopularity(r.Context())
	record("compute_popularity", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := PopularActivitiesResponse{Activities: make([]PopularActivityView, 0, len(rows))}
	for _, row := range rows {
		resp.Activities = append(resp.Activities, PopularActivityView{
			Name:        row.Name,
			Enrollment:  row.Enrollment,
			Capacity:    row.Capacity,
			Utilization: row.Utilization,
			Schedule:    row.Schedule,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) users(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsersWithActivities(r.Context())
	record("list_users", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := UsersResponse{Users: make([]UserActivitiesView, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, UserActivitiesView{
			Email:         u.Email,
			Activities:    u.Activities,
			ActivityCount: len(u.Activities),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeActivityRequest(w, r)
	if !ok {
		return
	}

	activity, err := h.service.CreateActivity(r.Context(), req.input())
	record("create_activity", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ActivityMutationResponse{
		Message:  fmt.Sprintf("Activity '%s' created successfully", activity.Name),
		Activity: toActivityView(*activity),
	})
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeActivityRequest(w, r)
	if !ok {
		return
	}
	req.Name = mux.Vars(r)["name"]

	activity, err := h.service.UpdateActivity(r.Context(), req.input())
	record("update_activity", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ActivityMutationResponse{
		Message:  fmt.Sprintf("Activity '%s' updated successfully", activity.Name),
		Activity: toActivityView(*activity),
	})
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	err := h.service.DeleteActivity(r.Context(), name)
	record("delete_activity", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Activity '%s' deleted successfully", name)})
}
