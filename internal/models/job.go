package models

import (
	"encoding/json"
	"fmt"
)

type JobKind string

const (
	JobKindImage            JobKind = "image"
	JobKindAudio            JobKind = "audio"
	JobKindPdf              JobKind = "pdf"
	JobKindOfx              JobKind = "ofx"
	JobKindCsv              JobKind = "csv"
	JobKindXlsx             JobKind = "xlsx"
	JobKindText             JobKind = "text"
	JobKindRetryPdfPassword JobKind = "retry_pdf_password"
)

// KnownJobKinds lists every kind a job may carry. Kind is immutable once
// the job is enqueued.
var KnownJobKinds = []JobKind{
	JobKindImage, JobKindAudio, JobKindPdf, JobKindOfx,
	JobKindCsv, JobKindXlsx, JobKindText, JobKindRetryPdfPassword,
}

// InboundJob is one unit of queued work: a single inbound media item or a
// password retry for a previously submitted encrypted PDF.
type InboundJob struct {
	JobID     string  `json:"job_id"`
	Kind      JobKind `json:"kind"`
	ChatID    string  `json:"chat_id"`
	UserID    string  `json:"user_id"`
	MediaData []byte  `json:"media_data,omitempty"`
	MimeType  string  `json:"mime_type,omitempty"`
	Filename  string  `json:"filename,omitempty"`
	Body      string  `json:"body,omitempty"`
	Password  string  `json:"password,omitempty"`
}

func (j *InboundJob) Validate() error {
	if j.UserID == "" {
		return fmt.Errorf("job %s: user_id is required", j.JobID)
	}
	if j.ChatID == "" {
		return fmt.Errorf("job %s: chat_id is required", j.JobID)
	}
	known := false
	for _, k := range KnownJobKinds {
		if j.Kind == k {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("job %s: unknown kind %q", j.JobID, j.Kind)
	}
	if j.Kind == JobKindRetryPdfPassword && j.Password == "" {
		return fmt.Errorf("job %s: password retry without password", j.JobID)
	}
	return nil
}

// Encode serializes the job into a queue task payload.
func (j *InboundJob) Encode() ([]byte, error) {
	return json.Marshal(j)
}

// DecodeInboundJob deserializes a queue task payload.
func DecodeInboundJob(payload []byte) (*InboundJob, error) {
	var job InboundJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("failed to decode inbound job: %w", err)
	}
	return &job, nil
}
