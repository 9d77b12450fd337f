package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agrozone/agricache/record"
	"github.com/agrozone/agricache/store"
)

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	cfg := store.DefaultConfig(":memory:")
	cfg.PurgeInterval = 0
	s, err := store.NewSQLiteStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func saveCrop(t *testing.T, s store.RecordStore, crop, actor string) string {
	t.Helper()
	id, err := s.Save(context.Background(), record.TypeCropRecommendation, record.CropRecommendation{
		Nitrogen: 90, Phosphorus: 42, Potassium: 43,
		Temperature: 20.88, Humidity: 82.0, PH: 6.5, Rainfall: 202.94,
		Crop: crop, Confidence: 0.9,
	}, record.Metadata{Actor: actor})
	require.NoError(t, err)
	return id
}

func savePrice(t *testing.T, s store.RecordStore, actor string) string {
	t.Helper()
	id, err := s.Save(context.Background(), record.TypeMarketPrice, record.MarketPrice{
		Commodity: "wheat", Market: "indore",
		MinPrice: 1800, MaxPrice: 2200, ModalPrice: 2000,
	}, record.Metadata{Actor: actor})
	require.NoError(t, err)
	return id
}

func TestUsageStatistics(t *testing.T) {
	s := newStore(t)
	saveCrop(t, s, "rice", "farmer-1")
	saveCrop(t, s, "rice", "farmer-2")
	saveCrop(t, s, "maize", "farmer-1")
	savePrice(t, s, "trader-1")
	savePrice(t, s, "") // anonymous, must not count as an actor

	svc := NewService(s, 10)
	stats, err := svc.GetUsageStatistics(context.Background(), time.Hour)
	require.NoError(t, err)

	require.Equal(t, 5, stats.TotalRecords)
	require.Equal(t, 3, stats.CountsByType[record.TypeCropRecommendation])
	require.Equal(t, 2, stats.CountsByType[record.TypeMarketPrice])
	require.Equal(t, 3, stats.DistinctActors)
	require.Equal(t, []CategoryCount{
		{Name: "rice", Count: 2},
		{Name: "maize", Count: 1},
	}, stats.TopCrops)
}

func TestUsageStatisticsWindowExcludesOldRecords(t *testing.T) {
	s := newStore(t)
	saveCrop(t, s, "rice", "farmer-1")
	time.Sleep(20 * time.Millisecond)

	svc := NewService(s, 10)
	stats, err := svc.GetUsageStatistics(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 0, stats.TotalRecords)
	require.Empty(t, stats.TopCrops)
}

func TestTopCropsRankingAndCap(t *testing.T) {
	s := newStore(t)
	for i := 0; i < 3; i++ {
		saveCrop(t, s, "rice", "a")
	}
	saveCrop(t, s, "maize", "a")
	saveCrop(t, s, "cotton", "a")

	svc := NewService(s, 2)
	stats, err := svc.GetUsageStatistics(context.Background(), time.Hour)
	require.NoError(t, err)

	// Capped at two entries, ties broken by name.
	require.Equal(t, []CategoryCount{
		{Name: "rice", Count: 3},
		{Name: "cotton", Count: 1},
	}, stats.TopCrops)
}

func TestDataQualityReport(t *testing.T) {
	s := newStore(t)
	saveCrop(t, s, "rice", "farmer-1")
	// Identical payloads produce identical checksums.
	dup1 := saveCrop(t, s, "maize", "farmer-1")
	dup2 := saveCrop(t, s, "maize", "farmer-2")
	require.NotEqual(t, dup1, dup2)

	deleted := savePrice(t, s, "trader-1")
	require.NoError(t, s.SoftDelete(context.Background(), deleted))

	svc := NewService(s, 10)
	report, err := svc.GetDataQualityReport(context.Background())
	require.NoError(t, err)

	require.Equal(t, 4, report.TotalRecords)
	require.Equal(t, 3, report.CountsByType[record.TypeCropRecommendation])
	require.Equal(t, 1, report.CountsByType[record.TypeMarketPrice])
	require.Equal(t, 1, report.SoftDeleted)
	require.Equal(t, 2, report.DuplicateChecksum)
	require.Equal(t, 0, report.MissingChecksum)
	require.Equal(t, 0, report.ChecksumMismatches)
	require.Equal(t, 0, report.OlderThanOneYear)
}

func TestDataQualityReportEmptyStore(t *testing.T) {
	svc := NewService(newStore(t), 10)
	report, err := svc.GetDataQualityReport(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, report.TotalRecords)
	require.Empty(t, report.CountsByType)
}
