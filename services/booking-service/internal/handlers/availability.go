package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/expertmarket/bookingengine/libs/httpx"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/availability"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/model"
)

type ruleItem struct {
	ID     int64  `json:"id,omitempty"`
	Day    int    `json:"day"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Active bool   `json:"active"`
}

func toRuleItems(rules []model.AvailabilityRule) []ruleItem {
	out := make([]ruleItem, 0, len(rules))
	for _, r := range rules {
		out = append(out, ruleItem{ID: r.ID, Day: r.DayOfWeek, Start: r.Start.String(), End: r.End.String(), Active: r.Active})
	}
	return out
}

// dayValue accepts the weekday as a JSON number or string; forms post both.
type dayValue string

func (d *dayValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = dayValue(s)
		return nil
	}
	*d = dayValue(string(b))
	return nil
}

type proposedRuleItem struct {
	Day    dayValue `json:"day"`
	Start  string   `json:"start"`
	End    string   `json:"end"`
	Active *bool    `json:"active,omitempty"`
}

type replaceScheduleRequest struct {
	Rules []proposedRuleItem `json:"rules"`
}

type rejectedRuleItem struct {
	Index  int    `json:"index"`
	Day    string `json:"day"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Reason string `json:"reason"`
}

type replaceScheduleResponse struct {
	Accepted []ruleItem         `json:"accepted"`
	Rejected []rejectedRuleItem `json:"rejected"`
}

// Availability lists a provider's weekly rules (GET) or replaces the caller's own schedule (PUT).
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet, http.MethodPut) {
		return
	}
	if r.Method == http.MethodPut {
		h.replaceSchedule(w, r)
		return
	}

	providerID := h.providerParam(r)
	if providerID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "provider_id is required")
		return
	}
	var (
		rules []model.AvailabilityRule
		err   error
	)
	if raw := r.URL.Query().Get("day"); raw != "" {
		day, convErr := strconv.Atoi(raw)
		if convErr != nil {
			httpx.WriteError(w, http.StatusBadRequest, "day must be 1..7")
			return
		}
		rules, err = h.svc.RulesForDay(r.Context(), providerID, day)
	} else {
		rules, err = h.svc.ListRules(r.Context(), providerID)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"provider_id": providerID, "rules": toRuleItems(rules)})
}

func (h *Handler) replaceSchedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if actor.Role != model.RoleProvider {
		httpx.WriteError(w, http.StatusForbidden, "only providers manage availability")
		return
	}
	var req replaceScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	proposed := make([]availability.ProposedRule, 0, len(req.Rules))
	for _, p := range req.Rules {
		proposed = append(proposed, availability.ProposedRule{Day: string(p.Day), Start: p.Start, End: p.End, Active: p.Active})
	}

	res, err := h.svc.ReplaceSchedule(r.Context(), actor.ID, proposed)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	resp := replaceScheduleResponse{Accepted: toRuleItems(res.Accepted), Rejected: []rejectedRuleItem{}}
	for _, rej := range res.Rejected {
		resp.Rejected = append(resp.Rejected, rejectedRuleItem{
			Index:  rej.Index,
			Day:    rej.Rule.Day,
			Start:  rej.Rule.Start,
			End:    rej.Rule.End,
			Reason: rej.Reason.Error(),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) AvailableDays(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	providerID := h.providerParam(r)
	if providerID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "provider_id is required")
		return
	}
	days, err := h.svc.AvailableDays(r.Context(), providerID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if days == nil {
		days = []int{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"provider_id": providerID, "days": days})
}

type slotsResponse struct {
	ProviderID      string   `json:"provider_id"`
	Date            string   `json:"date"`
	DurationMinutes int      `json:"duration_minutes"`
	Slots           []string `json:"slots"`
}

// Slots lists bookable start times: ?provider_id=&date=YYYY-MM-DD&duration=minutes.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	providerID := strings.TrimSpace(q.Get("provider_id"))
	if providerID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "provider_id is required")
		return
	}
	date, err := h.parseDate(q.Get("date"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	duration, err := strconv.Atoi(q.Get("duration"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "duration must be minutes")
		return
	}

	slots, err := h.svc.FreeSlots(r.Context(), providerID, date, duration)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, slotsResponse{
		ProviderID:      providerID,
		Date:            date.Format(time.DateOnly),
		DurationMinutes: duration,
		Slots:           clockStrings(slots),
	})
}

// Ticks lists the grid marks covered by active bookings: ?provider_id=&date=YYYY-MM-DD.
func (h *Handler) Ticks(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	providerID := h.providerParam(r)
	if providerID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "provider_id is required")
		return
	}
	date, err := h.parseDate(r.URL.Query().Get("date"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	ticks, err := h.svc.BookedTicks(r.Context(), providerID, date)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"provider_id": providerID,
		"date":        date.Format(time.DateOnly),
		"ticks":       clockStrings(ticks),
	})
}

// providerParam reads ?provider_id=, defaulting to the caller when they are a provider.
func (h *Handler) providerParam(r *http.Request) string {
	if id := strings.TrimSpace(r.URL.Query().Get("provider_id")); id != "" {
		return id
	}
	if actor, ok := actorFrom(r); ok && actor.Role == model.RoleProvider {
		return actor.ID
	}
	return ""
}

func clockStrings(cs []model.Clock) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.String())
	}
	return out
}
