package disk

import "fmt"

// OperationStatus is the remote classification of an async upload.
type OperationStatus string

const (
	OperationInProgress OperationStatus = "in-progress"
	OperationSuccess    OperationStatus = "success"
	OperationFailed     OperationStatus = "failed"
)

// Error is a structured error body from the storage API.
type Error struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("disk: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// Human returns the remote description suitable for user-facing text.
func (e *Error) Human() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Description
}

// Link is the operation handle returned for async requests.
type Link struct {
	Href      string `json:"href"`
	Method    string `json:"method"`
	Templated bool   `json:"templated"`
}

// Resource is metadata of a stored file or folder.
type Resource struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	MimeType  string `json:"mime_type"`
	Size      int64  `json:"size"`
	Created   string `json:"created"`
	Modified  string `json:"modified"`
	PublicURL string `json:"public_url"`
	Preview   string `json:"preview"`
}

// Quota is the account-level space report, in bytes.
type Quota struct {
	TotalSpace int64 `json:"total_space"`
	UsedSpace  int64 `json:"used_space"`
	TrashSize  int64 `json:"trash_size"`
}
