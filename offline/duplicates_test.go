package offline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/fieldsync/report"
)

func TestFindDuplicates(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	first, err := repo.Save(ctx, inspection(42, "2024-05-01"), 7)
	require.NoError(t, err)
	_, err = repo.Save(ctx, inspection(42, "2024-05-01"), 7)
	require.NoError(t, err)

	// different type, date, client or owner do not count
	_, err = repo.Save(ctx, report.Payload{ClientID: 42, ReportType: report.TypeFumigation, DateOfService: "2024-05-01"}, 7)
	require.NoError(t, err)
	_, err = repo.Save(ctx, inspection(42, "2024-05-02"), 7)
	require.NoError(t, err)
	_, err = repo.Save(ctx, inspection(43, "2024-05-01"), 7)
	require.NoError(t, err)
	_, err = repo.Save(ctx, inspection(42, "2024-05-01"), 8)
	require.NoError(t, err)

	tests := []struct {
		name      string
		excludeID string
		want      DuplicateReport
	}{
		{name: "no exclusion", want: DuplicateReport{HasDuplicates: true, Count: 2}},
		{name: "exclude one", excludeID: first, want: DuplicateReport{HasDuplicates: true, Count: 1}},
		{name: "exclude unknown", excludeID: "offline_0_x", want: DuplicateReport{HasDuplicates: true, Count: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindDuplicates(ctx, 7, 42, "2024-05-01", report.TypeInspection, tt.excludeID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindDuplicates_None(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	id, err := repo.Save(ctx, inspection(42, "2024-05-01"), 7)
	require.NoError(t, err)

	got, err := repo.FindDuplicates(ctx, 7, 42, "2024-05-01", report.TypeInspection, id)
	require.NoError(t, err)
	assert.Equal(t, DuplicateReport{}, got)
}
