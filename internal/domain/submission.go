// Package domain contains the core data types shared across the application.
package domain

import "time"

type Urgency string

const (
	UrgencyCritical Urgency = "CRITICAL"
	UrgencyModerate Urgency = "MODERATE"
	UrgencyLow      Urgency = "LOW"
	UrgencyUnknown  Urgency = "UNKNOWN"
)

type ResponseStatus string

const (
	ResponseStatusPending    ResponseStatus = "pending"
	ResponseStatusInProgress ResponseStatus = "in_progress"
	ResponseStatusResolved   ResponseStatus = "resolved"
	ResponseStatusDuplicate  ResponseStatus = "duplicate"
)

// Classification is the urgency assessment attached to a submission.
type Classification struct {
	Urgency   Urgency `json:"urgency"`
	Reasoning string  `json:"reasoning"`
}

// SubmissionPayload is the body of one intake submission. The offline queue
// treats it as opaque and passes it through to the remote store unmodified.
type SubmissionPayload struct {
	IncidentID     string          `json:"incident_id"`
	ClientRef      string          `json:"client_ref,omitempty"`
	Name           string          `json:"name"`
	Contact        string          `json:"contact,omitempty"`
	Needs          string          `json:"needs"`
	Location       string          `json:"location,omitempty"`
	Region         string          `json:"region,omitempty"`
	District       string          `json:"district,omitempty"`
	ImageURLs      []string        `json:"image_urls,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
}

// StoredResponse is a submission as persisted by the remote crisis store.
type StoredResponse struct {
	ID             string          `json:"id"`
	IncidentID     string          `json:"incident_id"`
	ClientRef      string          `json:"client_ref,omitempty"`
	Name           string          `json:"name"`
	Contact        string          `json:"contact,omitempty"`
	Needs          string          `json:"needs"`
	Location       string          `json:"location,omitempty"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	Status         ResponseStatus  `json:"status,omitempty"`
	AssignedTo     string          `json:"assigned_to,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
}
