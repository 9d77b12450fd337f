// Package analytics computes aggregate reports by scanning the record
// store. Full scans are acceptable at this system's scale; no secondary
// indexing beyond type and date is assumed.
package analytics

import (
	"context"
	"sort"
	"time"

	agrierrors "github.com/agrozone/agricache/errors"
	"github.com/agrozone/agricache/record"
	"github.com/agrozone/agricache/store"
)

// CategoryCount is one entry of a descending frequency ranking.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// UsageStatistics aggregates activity over a time window.
type UsageStatistics struct {
	WindowStart    time.Time           `json:"window_start"`
	WindowEnd      time.Time           `json:"window_end"`
	TotalRecords   int                 `json:"total_records"`
	CountsByType   map[record.Type]int `json:"counts_by_type"`
	DistinctActors int                 `json:"distinct_actors"`
	TopCrops       []CategoryCount     `json:"top_crops"`
}

// DataQualityReport summarizes integrity across the whole store.
type DataQualityReport struct {
	GeneratedAt        time.Time           `json:"generated_at"`
	TotalRecords       int                 `json:"total_records"`
	CountsByType       map[record.Type]int `json:"counts_by_type"`
	SoftDeleted        int                 `json:"soft_deleted"`
	MissingChecksum    int                 `json:"missing_checksum"`
	DuplicateChecksum  int                 `json:"duplicate_checksum"`
	OlderThanOneYear   int                 `json:"older_than_one_year"`
	ChecksumMismatches int                 `json:"checksum_mismatches"`
}

// Service computes reports over a record store.
type Service struct {
	store store.RecordStore
	topN  int
}

// NewService creates an analytics service. topN caps the category ranking
// length; values <= 0 default to 10.
func NewService(rs store.RecordStore, topN int) *Service {
	if topN <= 0 {
		topN = 10
	}
	return &Service{store: rs, topN: topN}
}

// GetUsageStatistics scans active records created within the window ending
// now and aggregates per-type counts, the distinct actor count, and the
// most-recommended crops in descending frequency order.
func (s *Service) GetUsageStatistics(ctx context.Context, window time.Duration) (*UsageStatistics, error) {
	now := time.Now().UTC()
	since := now.Add(-window)

	records, err := s.store.ListSince(ctx, since)
	if err != nil {
		return nil, agrierrors.Wrap("GetUsageStatistics", nil, err)
	}

	stats := &UsageStatistics{
		WindowStart:  since,
		WindowEnd:    now,
		TotalRecords: len(records),
		CountsByType: make(map[record.Type]int),
	}

	actors := make(map[string]struct{})
	crops := make(map[string]int)
	for _, rec := range records {
		stats.CountsByType[rec.Type]++
		if rec.Metadata.Actor != "" {
			actors[rec.Metadata.Actor] = struct{}{}
		}
		if cr, ok := rec.Payload.(record.CropRecommendation); ok && cr.Crop != "" {
			crops[cr.Crop]++
		}
	}
	stats.DistinctActors = len(actors)
	stats.TopCrops = topCategories(crops, s.topN)

	return stats, nil
}

// GetDataQualityReport performs a full scan and reports integrity counters:
// totals, per-type counts, soft-deleted rows, missing and duplicate
// checksums, checksum mismatches, and records older than one year.
func (s *Service) GetDataQualityReport(ctx context.Context) (*DataQualityReport, error) {
	records, err := s.store.All(ctx)
	if err != nil {
		return nil, agrierrors.Wrap("GetDataQualityReport", nil, err)
	}

	now := time.Now().UTC()
	oneYearAgo := now.AddDate(-1, 0, 0)

	report := &DataQualityReport{
		GeneratedAt:  now,
		TotalRecords: len(records),
		CountsByType: make(map[record.Type]int),
	}

	seen := make(map[string]int)
	for _, rec := range records {
		report.CountsByType[rec.Type]++
		if rec.Status == record.StatusDeleted {
			report.SoftDeleted++
		}
		if rec.Checksum == "" {
			report.MissingChecksum++
		} else {
			seen[rec.Checksum]++
			if !rec.VerifyChecksum() {
				report.ChecksumMismatches++
			}
		}
		if rec.CreatedAt.Before(oneYearAgo) {
			report.OlderThanOneYear++
		}
	}
	for _, n := range seen {
		if n > 1 {
			report.DuplicateChecksum += n
		}
	}

	return report, nil
}

// topCategories ranks counts descending, ties broken by name, capped at n.
func topCategories(counts map[string]int, n int) []CategoryCount {
	ranked := make([]CategoryCount, 0, len(counts))
	for name, count := range counts {
		ranked = append(ranked, CategoryCount{Name: name, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
