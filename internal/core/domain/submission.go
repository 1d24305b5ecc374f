package domain

import (
	"strings"
	"time"
)

type SummaryStatus string

const (
	StatusProcessing SummaryStatus = "processing"
	StatusCompleted  SummaryStatus = "completed"
	StatusFailed     SummaryStatus = "failed"
)

type InputKind string

const (
	InputKindFile InputKind = "file"
	InputKindText InputKind = "text"
)

// SubmissionRecord is the remote representation of one submission's
// processing lifecycle.
type SubmissionRecord struct {
	ID           string        `json:"id"`
	OwnerID      string        `json:"user_id"`
	InputKind    InputKind     `json:"input_type"`
	InputText    string        `json:"input_text,omitempty"`
	FileName     string        `json:"file_name,omitempty"`
	MimeType     string        `json:"mime_type,omitempty"`
	Status       SummaryStatus `json:"status"`
	SummaryText  string        `json:"summary_text,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// RecordUpdate carries the mutable fields of a record as seen by the change
// feed or by a polling read.
type RecordUpdate struct {
	ID           string        `json:"id"`
	Status       SummaryStatus `json:"status"`
	SummaryText  string        `json:"summary_text,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// Terminal reports whether the update settles the record: completed with a
// non-empty summary, or failed.
func (u RecordUpdate) Terminal() bool {
	switch u.Status {
	case StatusCompleted:
		return strings.TrimSpace(u.SummaryText) != ""
	case StatusFailed:
		return true
	default:
		return false
	}
}

func (r *SubmissionRecord) Update() RecordUpdate {
	return RecordUpdate{
		ID:           r.ID,
		Status:       r.Status,
		SummaryText:  r.SummaryText,
		ErrorMessage: r.ErrorMessage,
	}
}

// InputMeta is what the client knows about an input before any content is
// resolved.
type InputMeta struct {
	Kind      InputKind
	InputText string
	FileName  string
	MimeType  string
}

type InputMode string

const (
	InputModeFile InputMode = "FILE"
	InputModeText InputMode = "TEXT"
)

type FileInput struct {
	Name     string
	MimeType string
	Data     []byte
}

// Input is one user submission before resolution.
type Input struct {
	Mode InputMode
	File *FileInput
	Text string
}

func (in Input) Meta() InputMeta {
	if in.Mode == InputModeFile && in.File != nil {
		return InputMeta{
			Kind:     InputKindFile,
			FileName: in.File.Name,
			MimeType: in.File.MimeType,
		}
	}
	return InputMeta{
		Kind:      InputKindText,
		InputText: strings.TrimSpace(in.Text),
	}
}

// DispatchPayload is the body sent to the automation endpoint. Type is always
// "text" because file content is extracted before dispatch.
type DispatchPayload struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	FileName string `json:"fileName,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	ID       string `json:"id,omitempty"`
}

// DispatchResult is what the automation endpoint answered. Primary is set
// only when the response carried the "summary" field itself.
type DispatchResult struct {
	Summary string
	Primary bool
}
