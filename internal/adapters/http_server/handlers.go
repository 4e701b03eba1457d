package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"kaki_store/internal/adapters/observability"
	"kaki_store/internal/app"
	"kaki_store/internal/domain"
)

type Handlers struct {
	Q *app.QueryService
	A *app.AdminService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1", func(r chi.Router) {
		r.Get("/stores", h.listStores)
		r.Get("/stores/nearby", h.nearbyStores)
		r.Get("/stores/{id}", h.getStore)
		r.Get("/stores/{id}/status", h.storeStatus)
		r.Get("/stores/{id}/hours", h.weekView)
		r.Get("/stores/{id}/special-hours", h.specialHours)
		r.Get("/stores/{id}/delivery-windows", h.deliveryWindows)
		r.Get("/stores/{id}/notifications", h.notifications)
		r.Post("/stores/{id}/updates", h.requestUpdate)

		r.Get("/membership/tiers", h.membershipTiers)
		r.Get("/membership/summary", h.membershipSummary)

		r.Put("/admin/stores/{id}/hours", h.updateHours)
		r.Post("/admin/stores/{id}/special-hours", h.addSpecialHours)
		r.Post("/admin/stores/{id}/updates/{updateID}/approve", h.approveUpdate)
	})
}

// ---- response shapes ----

type dayDTO struct {
	Closed bool   `json:"closed,omitempty"`
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
}

type overrideDTO struct {
	Date   string `json:"date"`
	Label  string `json:"label,omitempty"`
	Closed bool   `json:"closed,omitempty"`
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
}

type storeDTO struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Address      *string           `json:"address,omitempty"`
	Phone        *string           `json:"phone,omitempty"`
	Email        *string           `json:"email,omitempty"`
	Lat          *float64          `json:"latitude,omitempty"`
	Lon          *float64          `json:"longitude,omitempty"`
	Services     []string          `json:"services,omitempty"`
	Verified     bool              `json:"is_verified"`
	BaseHours    map[string]dayDTO `json:"base_hours"`
	SpecialHours []overrideDTO     `json:"special_hours,omitempty"`
}

type upcomingDTO struct {
	Label     string `json:"label,omitempty"`
	Date      string `json:"date"`
	DateLabel string `json:"date_label"`
	Window    string `json:"window"`
	IsToday   bool   `json:"is_today"`
}

type statusDTO struct {
	StoreID         string       `json:"store_id"`
	IsOpen          bool         `json:"is_open"`
	StatusLabel     string       `json:"status_label"`
	TodayRange      string       `json:"today_range"`
	Detail          string       `json:"detail"`
	SpecialToday    *string      `json:"special_today,omitempty"`
	UpcomingSpecial *upcomingDTO `json:"upcoming_special,omitempty"`
}

func toStoreDTO(loc domain.Location) storeDTO {
	out := storeDTO{
		ID: loc.ID, Name: loc.Name,
		Address: loc.Address, Phone: loc.Phone, Email: loc.Email,
		Lat: loc.Lat, Lon: loc.Lon,
		Services: loc.Services, Verified: loc.Verified,
		BaseHours: make(map[string]dayDTO, 7),
	}
	for wd, day := range loc.BaseHours {
		out.BaseHours[strings.ToLower(wd.String())] = dayDTO(day)
	}
	for _, ov := range loc.SpecialHours {
		out.SpecialHours = append(out.SpecialHours, overrideDTO(ov))
	}
	return out
}

func toStatusDTO(id string, st domain.ResolvedStatus) statusDTO {
	out := statusDTO{
		StoreID:      id,
		IsOpen:       st.IsOpen,
		StatusLabel:  st.StatusLabel,
		TodayRange:   st.TodayRange,
		Detail:       st.Detail,
		SpecialToday: st.SpecialToday,
	}
	if up := st.UpcomingSpecial; up != nil {
		out.UpcomingSpecial = &upcomingDTO{
			Label: up.Label, Date: up.Date, DateLabel: up.DateLabel,
			Window: up.Window, IsToday: up.IsToday,
		}
	}
	return out
}

// ---- helpers ----

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached serves v with an ETag, short-circuiting to 304 on If-None-Match.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func queryFloat(r *http.Request, key string) (float64, bool) {
	f, err := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	return f, err == nil
}

// ---- store reads ----

func (h *Handlers) listStores(w http.ResponseWriter, r *http.Request) {
	q := domain.StoresQuery{}
	if svc := r.URL.Query().Get("service"); svc != "" {
		q.Service = &svc
	}
	if r.URL.Query().Get("verified") == "true" {
		q.VerifiedOnly = true
	}
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		q.Limit = l
	}

	locs, err := h.Q.ListStores(r.Context(), q)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "failed to list stores")
		return
	}
	out := make([]storeDTO, 0, len(locs))
	for _, loc := range locs {
		out = append(out, toStoreDTO(loc))
	}
	writeCached(w, r, out)
}

func (h *Handlers) getStore(w http.ResponseWriter, r *http.Request) {
	loc, err := h.Q.GetStore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "store not found")
		return
	}
	writeCached(w, r, toStoreDTO(loc))
}

func (h *Handlers) storeStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := h.Q.StoreStatus(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "store not found")
		return
	}
	observability.ObserveResolution(st.IsOpen)
	writeJSON(w, http.StatusOK, toStatusDTO(id, st))
}

func (h *Handlers) weekView(w http.ResponseWriter, r *http.Request) {
	days, err := h.Q.WeekView(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "store not found")
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (h *Handlers) specialHours(w http.ResponseWriter, r *http.Request) {
	ovs, err := h.Q.SpecialHours(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "failed to list special hours")
		return
	}
	out := make([]overrideDTO, 0, len(ovs))
	for _, ov := range ovs {
		out = append(out, overrideDTO(ov))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) deliveryWindows(w http.ResponseWriter, r *http.Request) {
	wins, err := h.Q.DeliveryWindows(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "failed to list delivery windows")
		return
	}
	type winDTO struct {
		Day   string `json:"day"`
		Start string `json:"start"`
		End   string `json:"end"`
	}
	out := make([]winDTO, 0, len(wins))
	for _, wd := range wins {
		out = append(out, winDTO{Day: strings.ToLower(wd.Day.String()), Start: wd.Start, End: wd.End})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) notifications(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}
	ns, err := h.Q.Notifications(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "failed to list notifications")
		return
	}
	type notifDTO struct {
		ID        int64     `json:"id"`
		Type      string    `json:"type"`
		Message   string    `json:"message"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]notifDTO, 0, len(ns))
	for _, n := range ns {
		out = append(out, notifDTO{ID: n.ID, Type: n.Type, Message: n.Message, CreatedAt: n.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) nearbyStores(w http.ResponseWriter, r *http.Request) {
	lat, okLat := queryFloat(r, "latitude")
	lon, okLon := queryFloat(r, "longitude")
	if !okLat || !okLon {
		writeProblem(w, http.StatusBadRequest, "Invalid coordinates", "latitude and longitude are required")
		return
	}
	radius := 5.0
	if v, ok := queryFloat(r, "radius_km"); ok {
		radius = v
	}

	near, err := h.Q.NearbyStores(r.Context(), lat, lon, radius)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "failed to search stores")
		return
	}
	type nearDTO struct {
		Store      storeDTO `json:"store"`
		DistanceKm float64  `json:"distance_km"`
	}
	out := make([]nearDTO, 0, len(near))
	for _, n := range near {
		out = append(out, nearDTO{Store: toStoreDTO(n.Store), DistanceKm: n.DistanceKm})
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- membership ----

func (h *Handlers) membershipTiers(w http.ResponseWriter, r *http.Request) {
	type tierDTO struct {
		ID        string   `json:"id"`
		Label     string   `json:"label"`
		Headline  string   `json:"headline"`
		MinPoints int      `json:"min_points"`
		Perks     []string `json:"perks"`
	}
	out := make([]tierDTO, 0, len(domain.Tiers))
	for _, t := range domain.Tiers {
		out = append(out, tierDTO{ID: t.ID, Label: t.Label, Headline: t.Headline, MinPoints: t.MinPoints, Perks: t.Perks})
	}
	writeCached(w, r, out)
}

func (h *Handlers) membershipSummary(w http.ResponseWriter, r *http.Request) {
	points, err := strconv.Atoi(r.URL.Query().Get("points"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid points", "points must be an integer")
		return
	}
	s := domain.SummarizeMembership(points)

	type voucherDTO struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Cost  int    `json:"cost"`
		Type  string `json:"type"`
		Value int    `json:"value"`
	}
	resp := struct {
		Points       int          `json:"points"`
		Tier         string       `json:"tier"`
		TierLabel    string       `json:"tier_label"`
		NextTier     *string      `json:"next_tier,omitempty"`
		PointsToNext int          `json:"points_to_next"`
		Progress     float64      `json:"progress"`
		Affordable   []voucherDTO `json:"affordable_vouchers"`
	}{
		Points: s.Points, Tier: s.Tier.ID, TierLabel: s.Tier.Label,
		PointsToNext: s.PointsToNext, Progress: s.Progress,
	}
	if s.NextTier != nil {
		resp.NextTier = &s.NextTier.ID
	}
	for _, v := range s.Affordable {
		resp.Affordable = append(resp.Affordable, voucherDTO{ID: v.ID, Title: v.Title, Cost: v.Cost, Type: v.Type, Value: v.Value})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---- writes ----

func (h *Handlers) updateHours(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected a weekday→hours object")
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.A.UpdateBaseHours(r.Context(), id, app.MapBaseHours(body)); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "failed to update hours")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) addSpecialHours(w http.ResponseWriter, r *http.Request) {
	var body overrideDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected a special-hours object")
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.A.AddSpecialHours(r.Context(), id, domain.DateOverride(body)); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid override", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (h *Handlers) requestUpdate(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil || len(patch) == 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected a non-empty field patch")
		return
	}
	id := chi.URLParam(r, "id")
	updateID, err := h.A.RequestStoreUpdate(r.Context(), id, patch)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "failed to record update request")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "pending", "update_id": updateID})
}

func (h *Handlers) approveUpdate(w http.ResponseWriter, r *http.Request) {
	updateID, err := strconv.ParseInt(chi.URLParam(r, "updateID"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "updateID must be a number")
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.A.ApproveStoreUpdate(r.Context(), id, updateID); err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "update not found for store")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}
