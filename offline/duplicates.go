package offline

import (
	"context"

	"github.com/c0deZ3R0/fieldsync/report"
)

// DuplicateReport is the result of FindDuplicates.
type DuplicateReport struct {
	HasDuplicates bool `json:"hasDuplicates"`
	Count         int  `json:"count"`
}

// FindDuplicates counts ownerID's queued entries with the same client,
// service date and report type, skipping excludeID. Only the local queue is
// consulted; reports the server already holds are not detected. The result
// is advisory.
func (r *Repository) FindDuplicates(ctx context.Context, ownerID, clientID int64, serviceDate, reportType, excludeID string) (DuplicateReport, error) {
	entries, err := r.ListByOwner(ctx, ownerID)
	if err != nil {
		return DuplicateReport{}, err
	}

	want := report.DuplicateKey{ClientID: clientID, DateOfService: serviceDate, ReportType: reportType}
	var n int
	for _, e := range entries {
		if excludeID != "" && e.ID == excludeID {
			continue
		}
		if e.Payload.Key() == want {
			n++
		}
	}
	return DuplicateReport{HasDuplicates: n > 0, Count: n}, nil
}
