package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"kaki_store/internal/domain"
)

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// ---- JSON codecs for schedule columns ----

type dayRecord struct {
	Closed bool   `json:"closed,omitempty"`
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
}

var weekdayNames = map[time.Weekday]string{
	time.Sunday:    "sunday",
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
}

func marshalWeek(ws domain.WeekSchedule) ([]byte, error) {
	out := make(map[string]dayRecord, len(ws))
	for wd, day := range ws {
		out[weekdayNames[wd]] = dayRecord(day)
	}
	return json.Marshal(out)
}

func unmarshalWeek(b []byte) domain.WeekSchedule {
	ws := make(domain.WeekSchedule, 7)
	if len(b) == 0 {
		return ws
	}
	var raw map[string]dayRecord
	if err := json.Unmarshal(b, &raw); err != nil {
		return ws
	}
	for wd, name := range weekdayNames {
		if rec, ok := raw[name]; ok {
			ws[wd] = domain.DaySchedule(rec)
		}
	}
	return ws
}

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// ---- write paths ----

func (r *Repo) UpsertStore(ctx context.Context, loc domain.Location) error {
	services, _ := json.Marshal(loc.Services)
	hours, err := marshalWeek(loc.BaseHours)
	if err != nil {
		return err
	}
	raw := loc.RawJSON
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	_, err = r.db.ExecContext(ctx, upsertStoreSQL,
		loc.ID,
		loc.Name,
		valStr(loc.Address),
		valStr(loc.Phone),
		valStr(loc.Email),
		valF64(loc.Lat),
		valF64(loc.Lon),
		string(services),
		loc.Verified,
		string(hours),
		string(raw),
	)
	return err
}

func (r *Repo) UpsertOverrides(ctx context.Context, storeID string, ovs []domain.DateOverride) error {
	if len(ovs) == 0 {
		return nil
	}
	values := make([]string, 0, len(ovs))
	args := make([]any, 0, len(ovs)*6)
	for _, ov := range ovs {
		values = append(values, "(?,?,?,?,?,?)")
		var open, closeAt any
		if !ov.Closed {
			open, closeAt = ov.Open, ov.Close
		}
		args = append(args, storeID, ov.Date, ov.Label, ov.Closed, open, closeAt)
	}
	sqlStr := insertOverridesPrefix + strings.Join(values, ",") + insertOverridesOnDup
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *Repo) ReplaceBaseHours(ctx context.Context, storeID string, hours domain.WeekSchedule) error {
	b, err := marshalWeek(hours)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, replaceBaseHoursSQL, string(b), storeID)
	if err != nil {
		return err
	}
	// MatchedRows would be the right check, but the driver only exposes
	// affected rows; a no-op update on an existing store is fine either way.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var one int
		if scanErr := r.db.QueryRowContext(ctx, "SELECT 1 FROM stores WHERE id = ?", storeID).Scan(&one); scanErr == sql.ErrNoRows {
			return domain.ErrNotFound
		}
	}
	return nil
}

func (r *Repo) InsertNotification(ctx context.Context, n domain.Notification) error {
	_, err := r.db.ExecContext(ctx, insertNotificationSQL, n.StoreID, n.Type, n.Message)
	return err
}

func (r *Repo) InsertStoreUpdate(ctx context.Context, u domain.StoreUpdate) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertStoreUpdateSQL, u.StoreID, string(u.ProposedJSON))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repo) GetStoreUpdate(ctx context.Context, id int64) (domain.StoreUpdate, error) {
	var u domain.StoreUpdate
	var proposed []byte
	err := r.db.QueryRowContext(ctx, getStoreUpdateSQL, id).
		Scan(&u.ID, &u.StoreID, &proposed, &u.Approved, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.StoreUpdate{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.StoreUpdate{}, err
	}
	u.ProposedJSON = proposed
	return u, nil
}

func (r *Repo) ApproveStoreUpdate(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, approveStoreUpdateSQL, id)
	return err
}

// patchColumns maps accepted patch fields to store columns. Anything else in
// a proposal is ignored rather than rejected.
var patchColumns = map[string]string{
	"name":      "name",
	"address":   "address",
	"phone":     "phone",
	"email":     "email",
	"latitude":  "lat",
	"longitude": "lon",
}

func (r *Repo) ApplyStorePatch(ctx context.Context, storeID string, patchJSON []byte) error {
	var patch map[string]any
	if err := json.Unmarshal(patchJSON, &patch); err != nil {
		return fmt.Errorf("decode store patch: %w", err)
	}

	sets := []string{"is_verified = 1"}
	args := []any{}
	for key, col := range patchColumns {
		if v, ok := patch[key]; ok {
			sets = append(sets, col+" = ?")
			args = append(args, v)
		}
	}
	if v, ok := patch["services"]; ok {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		sets = append(sets, "services = ?")
		args = append(args, string(b))
	}
	args = append(args, storeID)

	q := "UPDATE stores SET " + strings.Join(sets, ", ") + ", updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var one int
		if scanErr := r.db.QueryRowContext(ctx, "SELECT 1 FROM stores WHERE id = ?", storeID).Scan(&one); scanErr == sql.ErrNoRows {
			return domain.ErrNotFound
		}
	}
	return nil
}

func (r *Repo) LogMiss(ctx context.Context, storeID string, status int, reason string) error {
	_, err := r.db.ExecContext(ctx, insertMissSQL, storeID, status, reason)
	return err
}

// ---- read paths ----

func (r *Repo) GetStore(ctx context.Context, id string) (domain.Location, error) {
	row := r.db.QueryRowContext(ctx, getStoreSQL, id)
	loc, err := scanStore(row)
	if err == sql.ErrNoRows {
		return domain.Location{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Location{}, err
	}
	ovs, err := r.ListOverrides(ctx, id)
	if err != nil {
		return domain.Location{}, err
	}
	loc.SpecialHours = ovs
	return loc, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanStore(row rowScanner) (domain.Location, error) {
	var loc domain.Location
	var address, phone, email sql.NullString
	var lat, lon sql.NullFloat64
	var servicesJSON, hoursJSON []byte

	if err := row.Scan(
		&loc.ID, &loc.Name, &address, &phone, &email,
		&lat, &lon, &servicesJSON, &loc.Verified, &hoursJSON,
	); err != nil {
		return domain.Location{}, err
	}
	if address.Valid {
		a := address.String
		loc.Address = &a
	}
	if phone.Valid {
		p := phone.String
		loc.Phone = &p
	}
	if email.Valid {
		e := email.String
		loc.Email = &e
	}
	if lat.Valid {
		v := lat.Float64
		loc.Lat = &v
	}
	if lon.Valid {
		v := lon.Float64
		loc.Lon = &v
	}
	_ = json.Unmarshal(servicesJSON, &loc.Services)
	loc.BaseHours = unmarshalWeek(hoursJSON)
	return loc, nil
}

func (r *Repo) ListStores(ctx context.Context, q domain.StoresQuery) ([]domain.Location, error) {
	where := []string{"1=1"}
	args := []any{}
	if q.VerifiedOnly {
		where = append(where, "is_verified = 1")
	}
	if q.Service != nil {
		where = append(where, "JSON_CONTAINS(services, JSON_QUOTE(?))")
		args = append(args, *q.Service)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	query := `
SELECT id, name, address, phone, email, lat, lon, services, is_verified, base_hours
FROM stores
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY id
LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Location
	index := map[string]int{}
	for rows.Next() {
		loc, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		index[loc.ID] = len(out)
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	// one batch query for the overrides of every listed store
	ph := make([]string, len(out))
	ovArgs := make([]any, len(out))
	for i, loc := range out {
		ph[i] = "?"
		ovArgs[i] = loc.ID
	}
	ovRows, err := r.db.QueryContext(ctx, `
SELECT store_id, date, label, closed, open_time, close_time
FROM special_hours
WHERE store_id IN (`+strings.Join(ph, ",")+`)
ORDER BY date`, ovArgs...)
	if err != nil {
		return nil, err
	}
	defer ovRows.Close()
	for ovRows.Next() {
		storeID, ov, err := scanOverride(ovRows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[storeID]; ok {
			out[i].SpecialHours = append(out[i].SpecialHours, ov)
		}
	}
	return out, ovRows.Err()
}

func scanOverride(row rowScanner) (string, domain.DateOverride, error) {
	var storeID string
	var ov domain.DateOverride
	var date time.Time
	var open, closeAt sql.NullString
	if err := row.Scan(&storeID, &date, &ov.Label, &ov.Closed, &open, &closeAt); err != nil {
		return "", domain.DateOverride{}, err
	}
	ov.Date = date.Format("2006-01-02")
	if !ov.Closed {
		ov.Open = open.String
		ov.Close = closeAt.String
	}
	return storeID, ov, nil
}

func (r *Repo) ListOverrides(ctx context.Context, storeID string) ([]domain.DateOverride, error) {
	rows, err := r.db.QueryContext(ctx, listOverridesSQL, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DateOverride
	for rows.Next() {
		_, ov, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ov)
	}
	return out, rows.Err()
}

func (r *Repo) ListDeliveryWindows(ctx context.Context, storeID string) ([]domain.DeliveryWindow, error) {
	rows, err := r.db.QueryContext(ctx, listWindowsSQL, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DeliveryWindow
	for rows.Next() {
		var w domain.DeliveryWindow
		var day int
		if err := rows.Scan(&w.ID, &w.StoreID, &day, &w.Start, &w.End); err != nil {
			return nil, err
		}
		w.Day = time.Weekday(day)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *Repo) ListNotifications(ctx context.Context, storeID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, listNotificationsSQL, storeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.StoreID, &n.Type, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
