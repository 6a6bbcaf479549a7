package aggregator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"greenmoment-go/internal/common"
	"greenmoment-go/internal/database"
	"greenmoment-go/internal/intensity"
	"greenmoment-go/internal/league"
	"greenmoment-go/internal/models"
	"greenmoment-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var testFactors = map[string]float64{
	"Coal": 900,
	"LNG":  400,
}

var testAppliances = map[string]float64{
	"dryer":      2.0,
	"dishwasher": 1.5,
}

func testCarbonConfig() models.CarbonConfig {
	return models.CarbonConfig{
		CadenceMinutes:     10,
		GapTolerance:       time.Hour,
		FallbackIntensity:  500,
		FallbackWorstCase:  600,
		DefaultPowerDrawKW: 1.0,
	}
}

func testLadder(t *testing.T) *league.Ladder {
	t.Helper()
	ladder, err := league.NewLadder([]common.LeagueConfig{
		{Name: "bronze", ThresholdG: 30},
		{Name: "silver", ThresholdG: 300},
		{Name: "gold", ThresholdG: 500},
		{Name: "emerald", ThresholdG: 1000},
		{Name: "diamond"},
	})
	if err != nil {
		t.Fatalf("failed to build ladder: %v", err)
	}
	return ladder
}

func setupService(t *testing.T) (*Service, *database.Service) {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(db.Close)

	cfg := testCarbonConfig()
	seriesCfg := intensity.Config{CadenceMinutes: cfg.CadenceMinutes, GapTolerance: cfg.GapTolerance}
	loader := intensity.NewLoader(db, testFactors, seriesCfg)
	svc := NewService(db, loader, testAppliances, cfg, testLadder(t))
	return svc, db
}

func createTestUser(t *testing.T, db *database.Service, username string) models.User {
	t.Helper()
	ctx := context.Background()
	if _, err := db.CreateUser(ctx, username, username+"@example.com"); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	user, err := db.GetUserByUsername(ctx, username)
	if err != nil {
		t.Fatalf("failed to load user: %v", err)
	}
	return *user
}

// seedFlatDay writes a full day of generation data at a single constant
// intensity, plus an elevated evening block so worst windows are never
// equal to the mean.
func seedFlatDay(t *testing.T, db *database.Service, date time.Time, base, peak float64) {
	t.Helper()
	ctx := context.Background()
	y, m, d := date.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, date.Location())

	for i := 0; i < 24*6; i++ {
		at := dayStart.Add(time.Duration(i) * 10 * time.Minute)
		target := base
		if at.Hour() >= 18 && at.Hour() < 20 {
			target = peak
		}
		// Mix Coal (900) and LNG (400) so the weighted mean hits target.
		coalShare := (target - 400) / 500
		if err := db.InsertGenerationRecords(ctx, at, map[string]float64{
			"Coal": coalShare * 1000,
			"LNG":  (1 - coalShare) * 1000,
		}); err != nil {
			t.Fatalf("failed to seed generation data: %v", err)
		}
	}
}

func insertTestChore(t *testing.T, db *database.Service, userId string, start, end time.Time, appliance string) models.Chore {
	t.Helper()
	chore, err := db.InsertChore(context.Background(), store.LogChoreParams{
		Id:            uuid.New().String(),
		UserId:        userId,
		ApplianceType: appliance,
		StartTime:     start,
		EndTime:       end,
	})
	if err != nil {
		t.Fatalf("failed to insert chore: %v", err)
	}
	return *chore
}

func fixNow(svc *Service, at time.Time) {
	svc.now = func() time.Time { return at }
}

func localDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.Local)
}

func TestComputeUserDateIdempotent(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	date := localDate(2025, 8, 15)
	fixNow(svc, date.Add(18*time.Hour))
	user := createTestUser(t, db, "alice")
	seedFlatDay(t, db, date, 500, 800)

	// Dryer, 2 kW, one hour at 500 g/kWh while the evening peak runs at
	// 800: saved = (800-500)*2*1 = 600 g.
	insertTestChore(t, db, user.Id,
		date.Add(10*time.Hour), date.Add(11*time.Hour), "dryer")

	for run := 0; run < 2; run++ {
		if err := svc.ComputeUserDate(ctx, user.Id, date); err != nil {
			t.Fatalf("run %d failed: %v", run, err)
		}
	}

	rows, err := db.GetMonthProgress(ctx, user.Id, 2025, 8)
	if err != nil {
		t.Fatalf("failed to load month progress: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one daily row after two runs, got %d", len(rows))
	}
	if got := rows[0].Daily.InexactFloat64(); got < 599 || got > 601 {
		t.Errorf("daily saved = %v g, want ~600", got)
	}
	if !rows[0].Cumulative.Equal(rows[0].Daily) {
		t.Errorf("single-day cumulative %s != daily %s", rows[0].Cumulative, rows[0].Daily)
	}

	updated, err := db.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if !updated.CurrentMonthSaved.Equal(rows[0].Cumulative) {
		t.Errorf("month cache %s != cumulative %s", updated.CurrentMonthSaved, rows[0].Cumulative)
	}

	chores, err := db.GetChoresForUserDate(ctx, user.Id, date)
	if err != nil {
		t.Fatalf("failed to reload chores: %v", err)
	}
	if !chores[0].Recalculated {
		t.Error("chore not marked recalculated")
	}
}

func TestMonthBoundaryResetsCumulative(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	user := createTestUser(t, db, "bob")

	// Close out August with 950 g on the ledger.
	august := []store.MonthEntry{
		{Date: localDate(2025, 8, 30), Daily: decimal.NewFromInt(450), Cumulative: decimal.NewFromInt(450)},
		{Date: localDate(2025, 8, 31), Daily: decimal.NewFromInt(500), Cumulative: decimal.NewFromInt(950)},
	}
	if err := db.WriteMonthProgress(ctx, user.Id, august, nil); err != nil {
		t.Fatalf("failed to seed August: %v", err)
	}

	sept1 := localDate(2025, 9, 1)
	fixNow(svc, sept1.Add(18*time.Hour))
	seedFlatDay(t, db, sept1, 500, 520)

	// 20 g/kWh uplift for a 2 kW dryer over one hour: 40 g saved.
	insertTestChore(t, db, user.Id,
		sept1.Add(10*time.Hour), sept1.Add(11*time.Hour), "dryer")

	if err := svc.ComputeUserDate(ctx, user.Id, sept1); err != nil {
		t.Fatalf("aggregation failed: %v", err)
	}

	rows, err := db.GetMonthProgress(ctx, user.Id, 2025, 9)
	if err != nil {
		t.Fatalf("failed to load September: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one September row, got %d", len(rows))
	}
	if got := rows[0].Cumulative.InexactFloat64(); got < 39 || got > 41 {
		t.Errorf("September 1 cumulative = %v g, want ~40 (not 990)", got)
	}

	updated, _ := db.GetUserByUsername(ctx, "bob")
	if got := updated.CurrentMonthSaved.InexactFloat64(); got < 39 || got > 41 {
		t.Errorf("month cache = %v g, want ~40", got)
	}

	// The August rows are untouched by the new month.
	augRows, _ := db.GetMonthProgress(ctx, user.Id, 2025, 8)
	if !augRows[len(augRows)-1].Cumulative.Equal(decimal.NewFromInt(950)) {
		t.Errorf("August cumulative changed to %s", augRows[len(augRows)-1].Cumulative)
	}
}

func TestBackfillCascadesThroughMonth(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	user := createTestUser(t, db, "carol")

	existing := []store.MonthEntry{
		{Date: localDate(2025, 8, 10), Daily: decimal.NewFromInt(100), Cumulative: decimal.NewFromInt(100)},
		{Date: localDate(2025, 8, 20), Daily: decimal.NewFromInt(200), Cumulative: decimal.NewFromInt(300)},
	}
	if err := db.WriteMonthProgress(ctx, user.Id, existing, nil); err != nil {
		t.Fatalf("failed to seed month: %v", err)
	}

	day15 := localDate(2025, 8, 15)
	fixNow(svc, localDate(2025, 8, 21))
	seedFlatDay(t, db, day15, 500, 800)
	insertTestChore(t, db, user.Id,
		day15.Add(10*time.Hour), day15.Add(11*time.Hour), "dryer")

	if err := svc.ComputeUserDate(ctx, user.Id, day15); err != nil {
		t.Fatalf("backfill failed: %v", err)
	}

	rows, err := db.GetMonthProgress(ctx, user.Id, 2025, 8)
	if err != nil {
		t.Fatalf("failed to load month: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	// Every row at or after the inserted date shifts by the new daily.
	wantCumulative := []float64{100, 700, 900}
	for i, want := range wantCumulative {
		got := rows[i].Cumulative.InexactFloat64()
		if got < want-1 || got > want+1 {
			t.Errorf("row %d (%s) cumulative = %v, want ~%v",
				i, rows[i].Date.Format("2006-01-02"), got, want)
		}
	}

	updated, _ := db.GetUserByUsername(ctx, "carol")
	if got := updated.CurrentMonthSaved.InexactFloat64(); got < 899 || got > 901 {
		t.Errorf("month cache = %v, want ~900", got)
	}
}

func TestFinalizeMonthPromotesAndIsRerunSafe(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	user := createTestUser(t, db, "dave")

	entries := []store.MonthEntry{
		{Date: localDate(2025, 8, 10), Daily: decimal.NewFromInt(20), Cumulative: decimal.NewFromInt(20)},
		{Date: localDate(2025, 8, 11), Daily: decimal.NewFromInt(15), Cumulative: decimal.NewFromInt(35)},
	}
	if err := db.WriteMonthProgress(ctx, user.Id, entries, nil); err != nil {
		t.Fatalf("failed to seed month: %v", err)
	}

	outcome, err := svc.FinalizeMonth(ctx, user, 2025, 8)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if !outcome.Promoted || outcome.NewLeague != "silver" {
		t.Errorf("bronze with 35 g should promote to silver, got %+v", outcome)
	}

	summary, err := db.GetMonthlySummary(ctx, user.Id, 2025, 8)
	if err != nil || summary == nil {
		t.Fatalf("missing monthly summary: %v", err)
	}
	if !summary.TotalSaved.Equal(decimal.NewFromInt(35)) || !summary.Upgraded {
		t.Errorf("summary = %+v", summary)
	}

	updated, _ := db.GetUserByUsername(ctx, "dave")
	if updated.CurrentLeague != "silver" {
		t.Errorf("league = %s, want silver", updated.CurrentLeague)
	}
	if !updated.TotalSaved.Equal(decimal.NewFromInt(35)) {
		t.Errorf("lifetime total = %s, want 35", updated.TotalSaved)
	}

	// Rerunning with unchanged data must not double the lifetime total,
	// and the summary must keep recording the promotion even though the
	// user already sits in the promoted league.
	rerun, err := svc.FinalizeMonth(ctx, *updated, 2025, 8)
	if err != nil {
		t.Fatalf("second finalize failed: %v", err)
	}
	if !rerun.Promoted || rerun.OldLeague != "bronze" || rerun.NewLeague != "silver" {
		t.Errorf("rerun outcome = %+v, want bronze promoted to silver", rerun)
	}
	again, _ := db.GetUserByUsername(ctx, "dave")
	if !again.TotalSaved.Equal(decimal.NewFromInt(35)) {
		t.Errorf("lifetime total after rerun = %s, want 35", again.TotalSaved)
	}
	if again.CurrentLeague != "silver" {
		t.Errorf("league after rerun = %s, want silver", again.CurrentLeague)
	}
	summary, err = db.GetMonthlySummary(ctx, user.Id, 2025, 8)
	if err != nil || summary == nil {
		t.Fatalf("monthly summary missing after rerun: %v", err)
	}
	if summary.LeagueAtStart != "bronze" || summary.LeagueAtEnd != "silver" || !summary.Upgraded {
		t.Errorf("summary after rerun = %+v, want bronze start, silver end, upgraded", summary)
	}
}

func TestDataGapDefersAndRetryResolves(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	user := createTestUser(t, db, "erin")

	date := localDate(2025, 8, 15)
	fixNow(svc, date.Add(18*time.Hour))

	// No generation data seeded yet: the day must defer, not record zero.
	insertTestChore(t, db, user.Id,
		date.Add(10*time.Hour), date.Add(11*time.Hour), "dishwasher")

	err := svc.ComputeUserDate(ctx, user.Id, date)
	if !errors.Is(err, store.ErrInsufficientData) {
		t.Fatalf("expected insufficient data error, got %v", err)
	}

	deferrals, _ := db.ListDeferrals(ctx)
	if len(deferrals) != 1 {
		t.Fatalf("expected 1 deferral, got %d", len(deferrals))
	}

	rows, _ := db.GetMonthProgress(ctx, user.Id, 2025, 8)
	if len(rows) != 0 {
		t.Fatalf("deferred day must not write ledger rows, got %d", len(rows))
	}

	// Data arrives late; the retry pass picks the day back up.
	seedFlatDay(t, db, date, 500, 800)
	if err := svc.RetryDeferred(ctx); err != nil {
		t.Fatalf("retry failed: %v", err)
	}

	deferrals, _ = db.ListDeferrals(ctx)
	if len(deferrals) != 0 {
		t.Errorf("deferral not cleared after resolution")
	}
	rows, _ = db.GetMonthProgress(ctx, user.Id, 2025, 8)
	if len(rows) != 1 {
		t.Fatalf("expected the day on the ledger after retry, got %d rows", len(rows))
	}
	// Dishwasher 1.5 kW: (800-500)*1.5*1 = 450 g.
	if got := rows[0].Daily.InexactFloat64(); got < 449 || got > 451 {
		t.Errorf("daily saved = %v, want ~450", got)
	}
}

func TestRepairDetectsAndFixesDrift(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	user := createTestUser(t, db, "frank")
	fixNow(svc, localDate(2025, 8, 20))

	entries := []store.MonthEntry{
		{Date: localDate(2025, 8, 10), Daily: decimal.NewFromInt(120), Cumulative: decimal.NewFromInt(120)},
	}
	if err := db.WriteMonthProgress(ctx, user.Id, entries, nil); err != nil {
		t.Fatalf("failed to seed month: %v", err)
	}

	// Corrupt the cache behind the ledger's back.
	if err := db.OverwriteMonthCache(ctx, user.Id, decimal.NewFromInt(999)); err != nil {
		t.Fatalf("failed to corrupt cache: %v", err)
	}

	corrupted, _ := db.GetUserByUsername(ctx, "frank")
	drifted, err := svc.Repair(ctx, *corrupted)
	if err != nil {
		t.Fatalf("repair failed: %v", err)
	}
	if !drifted {
		t.Fatal("expected drift to be detected")
	}

	fixed, _ := db.GetUserByUsername(ctx, "frank")
	if !fixed.CurrentMonthSaved.Equal(decimal.NewFromInt(120)) {
		t.Errorf("cache after repair = %s, want 120", fixed.CurrentMonthSaved)
	}

	drifted, err = svc.Repair(ctx, *fixed)
	if err != nil {
		t.Fatalf("second repair failed: %v", err)
	}
	if drifted {
		t.Error("clean cache reported as drifted")
	}
}

func TestRunDailyFinalizesPreviousMonthOnRollover(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	user := createTestUser(t, db, "grace")

	august := []store.MonthEntry{
		{Date: localDate(2025, 8, 20), Daily: decimal.NewFromInt(40), Cumulative: decimal.NewFromInt(40)},
	}
	if err := db.WriteMonthProgress(ctx, user.Id, august, nil); err != nil {
		t.Fatalf("failed to seed August: %v", err)
	}

	sept1 := localDate(2025, 9, 1)
	fixNow(svc, sept1.Add(18*time.Hour))
	stats, err := svc.RunDaily(ctx, sept1)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stats.Promotions != 1 {
		t.Errorf("promotions = %d, want 1", stats.Promotions)
	}

	summary, err := db.GetMonthlySummary(ctx, user.Id, 2025, 8)
	if err != nil || summary == nil {
		t.Fatalf("August summary missing: %v", err)
	}
	if summary.LeagueAtEnd != "silver" {
		t.Errorf("league at end = %s, want silver", summary.LeagueAtEnd)
	}
}

// The ledger keys days by the deployment's wall clock. Pin the zone ahead
// of UTC so a chore early in the local day lands on the previous UTC day
// and a stored deferral date must round-trip to the same local day.
func TestRetryDeferredKeepsLocalCalendarDay(t *testing.T) {
	originalLocal := time.Local
	time.Local = time.FixedZone("UTC+8", 8*60*60)
	t.Cleanup(func() { time.Local = originalLocal })

	svc, db := setupService(t)
	ctx := context.Background()
	user := createTestUser(t, db, "heidi")

	date := localDate(2025, 8, 15)
	fixNow(svc, date.Add(18*time.Hour))

	// 05:00 local is still the previous day in UTC.
	insertTestChore(t, db, user.Id,
		date.Add(5*time.Hour), date.Add(6*time.Hour), "dishwasher")

	err := svc.ComputeUserDate(ctx, user.Id, date)
	if !errors.Is(err, store.ErrInsufficientData) {
		t.Fatalf("expected insufficient data error, got %v", err)
	}

	deferrals, err := db.ListDeferrals(ctx)
	if err != nil {
		t.Fatalf("failed to list deferrals: %v", err)
	}
	if len(deferrals) != 1 {
		t.Fatalf("expected 1 deferral, got %d", len(deferrals))
	}
	if !deferrals[0].Date.Equal(date) {
		t.Fatalf("deferral date %v does not round-trip to local day %v", deferrals[0].Date, date)
	}

	seedFlatDay(t, db, date, 500, 800)
	if err := svc.RetryDeferred(ctx); err != nil {
		t.Fatalf("retry failed: %v", err)
	}

	deferrals, _ = db.ListDeferrals(ctx)
	if len(deferrals) != 0 {
		t.Errorf("deferral not cleared after resolution")
	}
	rows, _ := db.GetMonthProgress(ctx, user.Id, 2025, 8)
	if len(rows) != 1 {
		t.Fatalf("expected the day on the ledger after retry, got %d rows", len(rows))
	}
	// Dishwasher 1.5 kW: (800-500)*1.5*1 = 450 g.
	if got := rows[0].Daily.InexactFloat64(); got < 449 || got > 451 {
		t.Errorf("daily saved = %v, want ~450", got)
	}
}

// failingLedger passes everything through to the real store except month
// writes, which can be made to fail on demand.
type failingLedger struct {
	store.CarbonStore
	failWrites bool
}

func (f *failingLedger) WriteMonthProgress(ctx context.Context, userId string, entries []store.MonthEntry, monthCache *decimal.Decimal) error {
	if f.failWrites {
		return errors.New("ledger write refused")
	}
	return f.CarbonStore.WriteMonthProgress(ctx, userId, entries, monthCache)
}

func TestLedgerWriteFailureLeavesChoresUnmarked(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	user := createTestUser(t, db, "ivan")

	date := localDate(2025, 8, 15)
	seedFlatDay(t, db, date, 500, 800)
	insertTestChore(t, db, user.Id,
		date.Add(10*time.Hour), date.Add(11*time.Hour), "dryer")

	ledger := &failingLedger{CarbonStore: db, failWrites: true}
	broken := NewService(ledger, svc.loader, testAppliances, testCarbonConfig(), testLadder(t))
	fixNow(broken, date.Add(18*time.Hour))

	if err := broken.ComputeUserDate(ctx, user.Id, date); err == nil {
		t.Fatal("expected the failed ledger write to surface")
	}

	// A day that never reached the ledger must leave its chores pending so
	// a rerun recomputes them.
	chores, err := db.GetChoresForUserDate(ctx, user.Id, date)
	if err != nil {
		t.Fatalf("failed to reload chores: %v", err)
	}
	if chores[0].Recalculated {
		t.Error("chore marked recalculated despite failed ledger write")
	}
	rows, _ := db.GetMonthProgress(ctx, user.Id, 2025, 8)
	if len(rows) != 0 {
		t.Fatalf("expected no ledger rows after failed write, got %d", len(rows))
	}

	ledger.failWrites = false
	if err := broken.ComputeUserDate(ctx, user.Id, date); err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	chores, _ = db.GetChoresForUserDate(ctx, user.Id, date)
	if !chores[0].Recalculated {
		t.Error("chore not marked recalculated after successful rerun")
	}
	rows, _ = db.GetMonthProgress(ctx, user.Id, 2025, 8)
	if len(rows) != 1 {
		t.Fatalf("expected one ledger row after rerun, got %d", len(rows))
	}
}
