//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"kaki_store/internal/domain"
	mysqlrepo "kaki_store/internal/storage/mysql"
)

// ---------- small helpers ----------
func pstr(s string) *string     { return &s }
func pfloat(f float64) *float64 { return &f }

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/migrations)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=kaki",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "kaki")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

// ---------- the test ----------
func TestRepo_MySQL_StoreLifecycle(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	loc := domain.Location{
		ID:       "kaki-central",
		Name:     "Kaki Central",
		Address:  pstr("1 Orchard Way"),
		Phone:    pstr("+65 6100 0000"),
		Email:    pstr("central@kaki.sg"),
		Lat:      pfloat(1.3521),
		Lon:      pfloat(103.8198),
		Services: []string{"pickup", "delivery"},
		Verified: true,
		BaseHours: domain.WeekSchedule{
			time.Monday:   {Open: "09:00", Close: "18:00"},
			time.Saturday: {Closed: true},
			time.Sunday:   {Closed: true},
		},
		RawJSON: []byte(`{}`),
	}
	if err := repo.UpsertStore(ctx, loc); err != nil {
		t.Fatalf("UpsertStore: %v", err)
	}

	ovs := []domain.DateOverride{
		{Date: "2025-12-24", Label: "Christmas Eve", Open: "09:00", Close: "13:00"},
		{Date: "2025-12-25", Label: "Christmas", Closed: true},
	}
	if err := repo.UpsertOverrides(ctx, loc.ID, ovs); err != nil {
		t.Fatalf("UpsertOverrides: %v", err)
	}
	// same date again: unique key replaces instead of duplicating
	if err := repo.UpsertOverrides(ctx, loc.ID, []domain.DateOverride{
		{Date: "2025-12-25", Label: "Christmas Day", Closed: true},
	}); err != nil {
		t.Fatalf("UpsertOverrides replace: %v", err)
	}

	got, err := repo.GetStore(ctx, "kaki-central")
	if err != nil {
		t.Fatalf("GetStore: %v", err)
	}
	if got.Name != "Kaki Central" || !got.Verified {
		t.Fatalf("unexpected store: %+v", got)
	}
	if got.BaseHours[time.Monday].Open != "09:00" || !got.BaseHours[time.Sunday].Closed {
		t.Fatalf("base hours did not round-trip: %+v", got.BaseHours)
	}
	if len(got.SpecialHours) != 2 {
		t.Fatalf("expected 2 overrides, got %+v", got.SpecialHours)
	}
	if got.SpecialHours[1].Label != "Christmas Day" {
		t.Fatalf("override replace failed: %+v", got.SpecialHours[1])
	}

	if _, err := repo.GetStore(ctx, "ghost"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepo_MySQL_HoursAndUpdates(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	loc := domain.Location{
		ID: "kaki-east", Name: "Kaki East",
		BaseHours: domain.WeekSchedule{time.Monday: {Open: "08:00", Close: "20:00"}},
		RawJSON:   []byte(`{}`),
	}
	if err := repo.UpsertStore(ctx, loc); err != nil {
		t.Fatalf("UpsertStore: %v", err)
	}

	if err := repo.ReplaceBaseHours(ctx, "kaki-east", domain.WeekSchedule{
		time.Monday: {Open: "10:00", Close: "16:00"},
	}); err != nil {
		t.Fatalf("ReplaceBaseHours: %v", err)
	}
	got, _ := repo.GetStore(ctx, "kaki-east")
	if got.BaseHours[time.Monday].Open != "10:00" {
		t.Fatalf("hours not replaced: %+v", got.BaseHours)
	}
	if err := repo.ReplaceBaseHours(ctx, "ghost", domain.WeekSchedule{}); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// notifications
	if err := repo.InsertNotification(ctx, domain.Notification{
		StoreID: "kaki-east", Type: "hours_update", Message: "Store operating hours updated.",
	}); err != nil {
		t.Fatalf("InsertNotification: %v", err)
	}
	ns, err := repo.ListNotifications(ctx, "kaki-east", 10)
	if err != nil || len(ns) != 1 || ns[0].Type != "hours_update" {
		t.Fatalf("notifications: %v %+v", err, ns)
	}

	// proposal flow
	id, err := repo.InsertStoreUpdate(ctx, domain.StoreUpdate{
		StoreID:      "kaki-east",
		ProposedJSON: []byte(`{"phone":"+65 6300 0000","name":"Kaki East Point"}`),
	})
	if err != nil {
		t.Fatalf("InsertStoreUpdate: %v", err)
	}
	u, err := repo.GetStoreUpdate(ctx, id)
	if err != nil || u.StoreID != "kaki-east" || u.Approved {
		t.Fatalf("GetStoreUpdate: %v %+v", err, u)
	}
	if err := repo.ApplyStorePatch(ctx, "kaki-east", u.ProposedJSON); err != nil {
		t.Fatalf("ApplyStorePatch: %v", err)
	}
	if err := repo.ApproveStoreUpdate(ctx, id); err != nil {
		t.Fatalf("ApproveStoreUpdate: %v", err)
	}

	got, _ = repo.GetStore(ctx, "kaki-east")
	if got.Name != "Kaki East Point" || got.Phone == nil || *got.Phone != "+65 6300 0000" {
		t.Fatalf("patch not applied: %+v", got)
	}
	if !got.Verified {
		t.Fatal("approval should mark the store verified")
	}

	// misses are keyed by (store, reason)
	if err := repo.LogMiss(ctx, "ghost", 404, "not found"); err != nil {
		t.Fatalf("LogMiss: %v", err)
	}
	if err := repo.LogMiss(ctx, "ghost", 404, "not found"); err != nil {
		t.Fatalf("LogMiss repeat: %v", err)
	}
}
