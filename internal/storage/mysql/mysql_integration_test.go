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

	"food_discovery/internal/domain"
	mysqlrepo "food_discovery/internal/storage/mysql"
)

func pfloat(f float64) *float64 { return &f }
func pint64(i int64) *int64     { return &i }

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

func TestRepo_MySQL_UpsertAndWarmLoad(t *testing.T) {
	// Start isolated MySQL; let Docker pick a free host port.
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

	applyMigrations(t, db)

	repo := mysqlrepo.New(db)
	ctx := context.Background()

	place := domain.Place{
		ID:                10001,
		Name:              "Mama Ngozi African Grocery",
		City:              "Houston",
		Region:            "TX",
		PostalCode:        "77002",
		Lat:               pfloat(29.76),
		Lon:               pfloat(-95.36),
		Type:              domain.PlaceGrocery,
		Specialization:    "West African staples",
		AcceptsCash:       true,
		AcceptsCard:       true,
		DeliveryAvailable: true,
		Hours:             [7]*domain.HourWindow{1: {Open: "09:00", Close: "19:00"}},
		OwnerVerified:     true,
		OwnerUserID:       pint64(42),
	}
	if err := repo.UpsertPlace(ctx, place); err != nil {
		t.Fatalf("UpsertPlace: %v", err)
	}

	product := domain.Product{
		ID:            20001,
		Name:          "Egusi",
		NamesByLocale: map[string]string{"fr": "graines de courge"},
		AltNames:      []string{"melon seeds"},
		Category:      "staples",
		CuisineRegion: "west_african",
	}
	if err := repo.UpsertProduct(ctx, product); err != nil {
		t.Fatalf("UpsertProduct: %v", err)
	}

	link := domain.InventoryLink{
		ID:                30001,
		PlaceID:           10001,
		ProductID:         20001,
		CommonlyAvailable: true,
		TypicalPrice:      pfloat(6.99),
		Currency:          "USD",
		LastVerifiedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if err := repo.UpsertInventoryLink(ctx, link); err != nil {
		t.Fatalf("UpsertInventoryLink: %v", err)
	}
	// Same pair again must update in place, not duplicate.
	link.TypicalPrice = pfloat(7.49)
	if err := repo.UpsertInventoryLink(ctx, link); err != nil {
		t.Fatalf("UpsertInventoryLink (update): %v", err)
	}

	review := domain.Review{
		ID:      40001,
		UserID:  7,
		PlaceID: 10001,
		Rating:  5,
		Text:    "Fresh egusi every week",
		Kind:    domain.ReviewGeneral,
		State:   domain.ReviewApproved,
	}
	if err := repo.UpsertReview(ctx, review); err != nil {
		t.Fatalf("UpsertReview: %v", err)
	}

	if err := repo.SavePlaceAggregates(ctx, 10001, 5.0, 1, 3); err != nil {
		t.Fatalf("SavePlaceAggregates: %v", err)
	}

	vote := domain.Vote{UserID: 7, TargetKind: domain.VoteReview, TargetID: 40001, Direction: domain.VoteHelpful}
	if err := repo.UpsertVote(ctx, vote); err != nil {
		t.Fatalf("UpsertVote: %v", err)
	}
	// Re-vote flips direction in place.
	vote.Direction = domain.VoteUnhelpful
	if err := repo.UpsertVote(ctx, vote); err != nil {
		t.Fatalf("UpsertVote (flip): %v", err)
	}

	// Assert through the warm-load path the engine uses at startup.
	places, err := repo.ListPlaces(ctx)
	if err != nil {
		t.Fatalf("ListPlaces: %v", err)
	}
	if len(places) != 1 {
		t.Fatalf("expected 1 place, got %d", len(places))
	}
	got := places[0]
	if got.Name != place.Name || got.Rating != 5.0 || got.ReviewCount != 1 || got.ViewCount != 3 {
		t.Fatalf("unexpected place row: %+v", got)
	}
	if got.Hours[1] == nil || got.Hours[1].Open != "09:00" {
		t.Fatalf("hours did not round-trip: %+v", got.Hours)
	}

	links, err := repo.ListInventoryLinks(ctx)
	if err != nil {
		t.Fatalf("ListInventoryLinks: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("pair uniqueness violated: %d links", len(links))
	}
	if links[0].TypicalPrice == nil || *links[0].TypicalPrice != 7.49 {
		t.Fatalf("link update lost: %+v", links[0])
	}

	votes, err := repo.ListVotes(ctx)
	if err != nil {
		t.Fatalf("ListVotes: %v", err)
	}
	if len(votes) != 1 || votes[0].Direction != domain.VoteUnhelpful {
		t.Fatalf("vote flip lost: %+v", votes)
	}

	// Tombstone survives the round trip.
	if err := repo.TombstonePlace(ctx, 10001, time.Now().UTC()); err != nil {
		t.Fatalf("TombstonePlace: %v", err)
	}
	places, _ = repo.ListPlaces(ctx)
	if len(places) != 1 || !places[0].Deleted() {
		t.Fatalf("expected tombstoned place, got %+v", places)
	}
	if err := repo.TombstonePlace(ctx, 99999, time.Now().UTC()); err == nil {
		t.Fatal("expected not found for missing place")
	}
}
