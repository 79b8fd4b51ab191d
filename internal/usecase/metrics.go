package usecase

import "context"

// MetricsSummary represents aggregated classification insights.
type MetricsSummary struct {
	TotalClassifications int64   `json:"total_classifications"`
	RealCount            int64   `json:"real_count"`
	FakeCount            int64   `json:"fake_count"`
	RealRate             float64 `json:"real_rate"`
	AverageConfidence    float64 `json:"average_confidence"`
}

// GetMetricsSummary aggregates classification metrics from persisted records.
func (uc *AdminUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	stats, err := uc.records.AggregateStats(ctx)
	if err != nil {
		return nil, &StorageError{Operation: "aggregate stats", Err: err}
	}

	summary := &MetricsSummary{
		TotalClassifications: stats.TotalCount,
		RealCount:            stats.RealCount,
		FakeCount:            stats.FakeCount,
		AverageConfidence:    stats.AverageConfidence,
	}

	if stats.TotalCount > 0 {
		summary.RealRate = float64(stats.RealCount) / float64(stats.TotalCount)
	}

	return summary, nil
}
