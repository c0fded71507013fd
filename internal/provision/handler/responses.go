package handler

import (
	"encoding/json"
	"time"

	"detour/internal/provision/models"
)

// ClientResponse is the HTTP projection of a registry record.
type ClientResponse struct {
	Name      string                             `json:"name"`
	Email     string                             `json:"email,omitempty"`
	Platform  string                             `json:"platform"`
	Regions   map[string]models.RemoteIdentity   `json:"regions"`
	Document  DocumentResponse                   `json:"document"`
	CreatedAt time.Time                          `json:"created_at"`
	UpdatedAt time.Time                          `json:"updated_at"`
}

// DocumentResponse locates the synthesized document for a client.
type DocumentResponse struct {
	FileName  string `json:"file_name"`
	PublicURL string `json:"public_url"`
}

// CreateClientResponse is the response for POST /api/clients and the
// reconcile endpoint: the record plus the full document inline.
type CreateClientResponse struct {
	ClientResponse
	Config json.RawMessage `json:"config"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token string `json:"token"`
}

// FromRecord converts a registry record to an HTTP response.
func FromRecord(record *models.Record) ClientResponse {
	return ClientResponse{
		Name:     record.Client.Name,
		Email:    record.Client.Email,
		Platform: string(record.Client.Platform),
		Regions:  record.Client.Regions,
		Document: DocumentResponse{
			FileName:  record.Document.FileName,
			PublicURL: record.Document.PublicURL,
		},
		CreatedAt: record.Client.CreatedAt,
		UpdatedAt: record.Client.UpdatedAt,
	}
}

// FromRecords converts a list of registry records.
func FromRecords(records []*models.Record) []ClientResponse {
	out := make([]ClientResponse, 0, len(records))
	for _, record := range records {
		out = append(out, FromRecord(record))
	}
	return out
}
