package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicops/clinic-scheduling/internal/booking"
	"github.com/clinicops/clinic-scheduling/internal/schedule"
)

// canEditSchedule: admins manage any calendar, doctors only their own.
func canEditSchedule(actor booking.Actor, doctorID uuid.UUID) bool {
	if actor.Role == booking.RoleAdmin {
		return true
	}
	return actor.Role == booking.RoleDoctor && actor.ID == doctorID
}

func parseRanges(in []RangeRequest) ([]schedule.TimeRange, error) {
	out := make([]schedule.TimeRange, 0, len(in))
	for _, rr := range in {
		start, err := schedule.ParseMinute(rr.Start)
		if err != nil {
			return nil, err
		}
		end, err := schedule.ParseMinute(rr.End)
		if err != nil {
			return nil, err
		}
		tr := schedule.TimeRange{Start: start, End: end}
		if !tr.Valid() {
			return nil, fmt.Errorf("invalid range %s-%s", rr.Start, rr.End)
		}
		out = append(out, tr)
	}
	return out, nil
}

func replaceScheduleHandler(repo schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}
		if !canEditSchedule(actor, doctorID) {
			writeError(w, http.StatusForbidden, "forbidden", "only admins or the doctor may edit this schedule")
			return
		}

		var req ReplaceScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		tmpl := make(schedule.WeeklyTemplate)
		for _, entry := range req.Entries {
			if entry.Weekday < 0 || entry.Weekday > 6 {
				writeError(w, http.StatusBadRequest, "invalid_weekday", "weekday must be 0 (Sunday) through 6 (Saturday)")
				return
			}
			ranges, err := parseRanges(entry.Ranges)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
				return
			}
			wd := time.Weekday(entry.Weekday)
			tmpl[wd] = append(tmpl[wd], ranges...)
		}

		// Verify the doctor exists before writing their calendar.
		if _, err := repo.GetDoctorByID(r.Context(), doctorID); err != nil {
			handleServiceError(w, err)
			return
		}

		if err := repo.ReplaceWeeklyTemplate(r.Context(), doctorID, tmpl); err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func upsertExceptionHandler(repo schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}
		if !canEditSchedule(actor, doctorID) {
			writeError(w, http.StatusForbidden, "forbidden", "only admins or the doctor may edit this schedule")
			return
		}
		date, err := time.Parse(dateLayout, chi.URLParam(r, "date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		var req ExceptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		added, err := parseRanges(req.Add)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
			return
		}
		removed, err := parseRanges(req.Remove)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
			return
		}

		if _, err := repo.GetDoctorByID(r.Context(), doctorID); err != nil {
			handleServiceError(w, err)
			return
		}

		exc := schedule.ScheduleException{
			DoctorID: doctorID,
			Date:     date,
			DayOff:   req.DayOff,
			Added:    added,
			Removed:  removed,
		}
		if err := repo.UpsertException(r.Context(), exc); err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func deleteExceptionHandler(repo schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}
		if !canEditSchedule(actor, doctorID) {
			writeError(w, http.StatusForbidden, "forbidden", "only admins or the doctor may edit this schedule")
			return
		}
		date, err := time.Parse(dateLayout, chi.URLParam(r, "date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		if err := repo.DeleteException(r.Context(), doctorID, date); err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func upsertHolidayHandler(repo schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		if actor.Role != booking.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "only admins may manage holidays")
			return
		}
		date, err := time.Parse(dateLayout, chi.URLParam(r, "date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		var req HolidayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "name is required")
			return
		}

		h := schedule.Holiday{Date: date, Name: req.Name, Mandatory: req.Mandatory}
		if err := repo.UpsertHoliday(r.Context(), h); err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func deleteHolidayHandler(repo schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		if actor.Role != booking.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "only admins may manage holidays")
			return
		}
		date, err := time.Parse(dateLayout, chi.URLParam(r, "date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		if err := repo.DeleteHoliday(r.Context(), date); err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
