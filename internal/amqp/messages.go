package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ReportRequest asks the worker to build one report job. The job row in the
// snapshot DB is the source of truth; the message only points at it.
type ReportRequest struct {
	JobID string `json:"job_id"`
	User  string `json:"user"`
	// Token is forwarded to the backend when the worker reads from the API.
	Token     string    `json:"token,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReportRequest creates a request stamped with the current time.
func NewReportRequest(jobID, user, token string) *ReportRequest {
	return &ReportRequest{
		JobID:     jobID,
		User:      user,
		Token:     token,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReportRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportRequestFromJSON decodes a message and checks it names a job.
func ReportRequestFromJSON(data []byte) (*ReportRequest, error) {
	var msg ReportRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.JobID == "" {
		return nil, errors.New("report request without job id")
	}
	return &msg, nil
}
