package usecase

import "context"

// EnrollmentSummary represents aggregated enrollment insights.
type EnrollmentSummary struct {
	TotalEnrollments          int64   `json:"total_enrollments"`
	DistinctUsers             int64   `json:"distinct_users"`
	AverageEnrollmentsPerUser float64 `json:"average_enrollments_per_user"`
}

// GetSummary aggregates enrollment metrics from the store.
func (uc *EnrollmentUseCase) GetSummary(ctx context.Context) (*EnrollmentSummary, error) {
	aggregation, err := uc.repo.Summarize(ctx)
	if err != nil {
		return nil, err
	}

	summary := &EnrollmentSummary{
		TotalEnrollments: aggregation.TotalEnrollments,
		DistinctUsers:    aggregation.DistinctUsers,
	}
	if aggregation.DistinctUsers > 0 {
		summary.AverageEnrollmentsPerUser = float64(aggregation.TotalEnrollments) / float64(aggregation.DistinctUsers)
	}
	return summary, nil
}
