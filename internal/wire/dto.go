package wire

import "encoding/json"

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	User        User   `json:"user"`
}

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

// Answer carries a value in exactly one of two shapes: list values in
// AnswerValue, everything else stringified in AnswerText. Both absent means
// no value.
type Answer struct {
	ID          string   `json:"id"`
	QuestionID  string   `json:"questionId"`
	AnswerText  *string  `json:"answerText,omitempty"`
	AnswerValue []string `json:"answerValue,omitempty"`
	FileIDs     []string `json:"fileIds,omitempty"`
}

// MarshalJSON keeps an empty but non-nil AnswerValue as [] instead of
// dropping it.
func (a Answer) MarshalJSON() ([]byte, error) {
	type plain Answer
	if a.AnswerValue == nil || len(a.AnswerValue) > 0 {
		return json.Marshal(plain(a))
	}
	return json.Marshal(struct {
		plain
		AnswerValue []string `json:"answerValue"`
	}{plain: plain(a), AnswerValue: a.AnswerValue})
}

type File struct {
	ID         string  `json:"id"`
	StepID     string  `json:"stepId"`
	QuestionID *string `json:"questionId,omitempty"`
	FileName   string  `json:"fileName"`
	// FileData is the base64 (standard encoding) of the file bytes.
	FileData string `json:"fileData"`
	MimeType string `json:"mimeType"`
	FileSize int64  `json:"fileSize"`
}

type Submission struct {
	ID          string         `json:"id"`
	FormID      string         `json:"formId"`
	UserID      string         `json:"userId"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	StartedAt   string         `json:"startedAt"`
	CompletedAt *string        `json:"completedAt,omitempty"`
	Answers     []Answer       `json:"answers"`
	Files       []File         `json:"files"`
}

type SyncRequest struct {
	Submissions []Submission `json:"submissions"`
}

type SyncedFile struct {
	ID         string `json:"id"`
	RemotePath string `json:"remotePath"`
}

type SyncError struct {
	SubmissionID string `json:"submissionId"`
	Error        string `json:"error"`
}

type SyncResponse struct {
	SyncedSubmissions []string     `json:"syncedSubmissions"`
	SyncedFiles       []SyncedFile `json:"syncedFiles"`
	Errors            []SyncError  `json:"errors"`
	HasErrors         bool         `json:"hasErrors"`
}

// RemoteSubmission is what GET /submissions returns per item.
type RemoteSubmission struct {
	ID          string         `json:"id"`
	FormID      string         `json:"formId"`
	UserID      string         `json:"userId"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Answers     []Answer       `json:"answers"`
	StartedAt   string         `json:"startedAt"`
	CompletedAt *string        `json:"completedAt,omitempty"`
	CreatedAt   string         `json:"createdAt"`
	UpdatedAt   string         `json:"updatedAt"`
}

type Question struct {
	ID           string         `json:"id"`
	QuestionText string         `json:"questionText"`
	Type         string         `json:"type"`
	Options      []string       `json:"options"`
	IsRequired   bool           `json:"isRequired"`
	OrderNumber  int            `json:"orderNumber"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type Step struct {
	ID         string     `json:"id"`
	StepNumber int        `json:"stepNumber"`
	Title      string     `json:"title"`
	Questions  []Question `json:"questions"`
}

type Form struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Version         int      `json:"version"`
	Steps           []Step   `json:"steps"`
	AssignedUserIDs []string `json:"assignedUserIds,omitempty"`
	UpdatedAt       string   `json:"updatedAt"`
}

type Site struct {
	ID        string  `json:"id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	UpdatedAt string  `json:"updatedAt"`
}

type InventoryItem struct {
	ID           string `json:"id"`
	SiteID       string `json:"siteId"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	SerialNumber string `json:"serialNumber"`
	Quantity     int    `json:"quantity"`
}

// Pending is the bulk payload of GET /sync/pending.
type Pending struct {
	Sites       []Site          `json:"sites"`
	InventoryEE []InventoryItem `json:"inventoryEe"`
	InventoryEP []InventoryItem `json:"inventoryEp"`
}

type Export struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
}
