// Package report holds the domain types shared by the offline queue, the
// sync engine and the remote API client.
package report

import (
	"encoding/json"
	"time"
)

// Report types accepted by the server.
const (
	TypeInspection = "inspection"
	TypeFumigation = "fumigation"
)

// Payload is a fully formed report submission. Apart from ClientID,
// DateOfService and ReportType it is opaque to the sync subsystem.
type Payload struct {
	ClientID            int64           `json:"client_id"`
	ReportType          string          `json:"report_type"`
	DateOfService       string          `json:"date_of_service"`
	Remarks             string          `json:"remarks,omitempty"`
	Stations            json.RawMessage `json:"stations,omitempty"`
	Fumigations         json.RawMessage `json:"fumigations,omitempty"`
	PCOSignatureData    string          `json:"pco_signature_data,omitempty"`
	ClientSignatureData string          `json:"client_signature_data,omitempty"`
}

// DuplicateKey is the triple two payloads must share to count as the same
// logical report.
type DuplicateKey struct {
	ClientID      int64
	DateOfService string
	ReportType    string
}

// Key returns the duplicate-detection key of p.
func (p Payload) Key() DuplicateKey {
	return DuplicateKey{ClientID: p.ClientID, DateOfService: p.DateOfService, ReportType: p.ReportType}
}

// PendingReport is one entry of the offline queue.
type PendingReport struct {
	ID            string     `json:"id"`
	OwnerID       int64      `json:"ownerId"`
	Payload       Payload    `json:"payload"`
	CreatedAt     time.Time  `json:"createdAt"`
	Attempts      int        `json:"attempts"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

// SyncResult is the outcome of one submission attempt during a sync run.
type SyncResult struct {
	Success  bool   `json:"success"`
	LocalID  string `json:"localId"`
	ServerID int64  `json:"serverId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// CreateResult is the server's answer to a create-report call.
type CreateResult struct {
	Success  bool   `json:"success"`
	ReportID int64  `json:"report_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Summary counts the outcomes of a batch of results.
type Summary struct {
	Succeeded int
	Failed    int
}

// Summarize counts successes and failures in results.
func Summarize(results []SyncResult) Summary {
	var s Summary
	for _, r := range results {
		if r.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
