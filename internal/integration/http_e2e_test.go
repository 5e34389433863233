//go:build integration || !unit

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/rs/zerolog"

	server "food_discovery/internal/adapters/http_server"
	redisad "food_discovery/internal/adapters/redis"
	"food_discovery/internal/app"
	"food_discovery/internal/domain"
	"food_discovery/internal/engine"
	mysqlrepo "food_discovery/internal/storage/mysql"
)

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/sql)", k)
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
			"MYSQL_DATABASE=fooddisco",
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
		"root", hostPort, "fooddisco")

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
	return db
}

// postJSON posts v and decodes the response into out (when out != nil).
func postJSON(t *testing.T, url string, v any, out any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(v)
	res, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { _ = res.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return res
}

func TestHTTP_EndToEnd_ReviewLifecycle(t *testing.T) {
	db := startMySQL(t)
	applyMigrations(t, db)

	// Full wiring: mysql repo, miniredis-backed cache, warm engine, chi server.
	repo := mysqlrepo.New(db)
	rs := miniredis.RunT(t)
	cache := redisad.New(rs.Addr(), "", 0)

	eng := engine.New(zerolog.Nop())
	if err := eng.Load(context.Background(), repo); err != nil {
		t.Fatalf("warm load: %v", err)
	}
	cmd := app.NewCommandService(eng, repo, cache, zerolog.Nop())
	q := app.NewQueryService(eng, cache, time.Minute)

	srv := server.New()
	srv.MountHandlers(&server.Handlers{Q: q, C: cmd})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	// Create a place and a review over HTTP.
	var place domain.Place
	res := postJSON(t, ts.URL+"/v1/places", domain.Place{
		Name: "Teranga Market", City: "Philadelphia", Type: domain.PlaceMarket,
	}, &place)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create place status %d", res.StatusCode)
	}

	var review domain.Review
	res = postJSON(t, ts.URL+"/v1/reviews", domain.Review{
		UserID: 3, PlaceID: place.ID, Rating: 4, Text: "thiéboudienne on fridays",
	}, &review)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create review status %d", res.StatusCode)
	}
	if review.State != domain.ReviewSubmitted {
		t.Fatalf("expected submitted review, got %s", review.State)
	}

	// Approve it; the place aggregate must reflect the review.
	res = postJSON(t, fmt.Sprintf("%s/v1/reviews/%d/moderate", ts.URL, review.ID),
		map[string]string{"State": "approved"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("moderate status %d", res.StatusCode)
	}

	getRes, err := http.Get(fmt.Sprintf("%s/v1/places/%d", ts.URL, place.ID))
	if err != nil {
		t.Fatalf("GET place: %v", err)
	}
	defer getRes.Body.Close()
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get place status %d", getRes.StatusCode)
	}
	var got domain.Place
	if err := json.NewDecoder(getRes.Body).Decode(&got); err != nil {
		t.Fatalf("decode place: %v", err)
	}
	if got.Rating != 4.0 || got.ReviewCount != 1 {
		t.Fatalf("expected 4.0/1 after approval, got %v/%d", got.Rating, got.ReviewCount)
	}
	if etag := getRes.Header.Get("ETag"); etag == "" {
		t.Fatal("expected ETag on place response")
	}

	// Illegal transition surfaces as a conflict.
	res = postJSON(t, fmt.Sprintf("%s/v1/reviews/%d/moderate", ts.URL, review.ID),
		map[string]string{"State": "rejected"}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for approved→rejected, got %d", res.StatusCode)
	}

	// The row survived the trip to MySQL: a fresh engine warm-loaded from
	// the same database sees the approved review and the aggregate.
	eng2 := engine.New(zerolog.Nop())
	if err := eng2.Load(context.Background(), repo); err != nil {
		t.Fatalf("second warm load: %v", err)
	}
	reloaded, err := eng2.PlaceByID(place.ID)
	if err != nil {
		t.Fatalf("reloaded place: %v", err)
	}
	if reloaded.Rating != 4.0 || reloaded.ReviewCount != 1 {
		t.Fatalf("aggregate lost across restart: %v/%d", reloaded.Rating, reloaded.ReviewCount)
	}

	// Search finds the place by name over HTTP.
	searchRes, err := http.Get(ts.URL + "/v1/search?q=teranga")
	if err != nil {
		t.Fatalf("GET search: %v", err)
	}
	defer searchRes.Body.Close()
	var page struct {
		Total int
	}
	if err := json.NewDecoder(searchRes.Body).Decode(&page); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected 1 search hit, got %d", page.Total)
	}
}
