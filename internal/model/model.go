// Package model contains struct definitions shared across packages.
package model

import (
	"fmt"
	"strings"
	"time"
)

// UploadStatus describes the lifecycle of a global ledger entry.
type UploadStatus string

const (
	UploadProcessing UploadStatus = "processing"
	UploadProcessed  UploadStatus = "processed"
	UploadSkipped    UploadStatus = "skipped"
)

// HistoryStatus describes the lifecycle of a per-account history entry.
type HistoryStatus string

const (
	HistoryProcessing HistoryStatus = "processing"
	HistoryCompleted  HistoryStatus = "completed"
	HistoryFailed     HistoryStatus = "failed"
)

// UploadRecord is one entry in the global upload ledger.
type UploadRecord struct {
	Name        string       `json:"name"`
	Stored      string       `json:"stored"`
	Size        int64        `json:"size"`
	ContentHash string       `json:"contentHash"`
	At          int64        `json:"at"`
	Status      UploadStatus `json:"status"`
	UserID      *string      `json:"userId"`
}

// UploadHistoryEntry is one entry in an account's embedded upload history.
type UploadHistoryEntry struct {
	FileName         string        `json:"fileName"`
	OriginalName     string        `json:"originalName"`
	FileSize         int64         `json:"fileSize"`
	UploadedAt       time.Time     `json:"uploadedAt"`
	Status           HistoryStatus `json:"status"`
	SummaryGenerated bool          `json:"summaryGenerated"`
}

// ModelSize selects the transcription model the summarizer loads.
type ModelSize string

const (
	ModelTiny    ModelSize = "tiny"
	ModelBase    ModelSize = "base"
	ModelSmall   ModelSize = "small"
	ModelMedium  ModelSize = "medium"
	ModelLargeV3 ModelSize = "large-v3"

	DefaultModelSize = ModelBase
)

// ParseModelSize validates a user-supplied model size. An empty value falls
// back to the default.
func ParseModelSize(s string) (ModelSize, error) {
	if s == "" {
		return DefaultModelSize, nil
	}
	switch ModelSize(s) {
	case ModelTiny, ModelBase, ModelSmall, ModelMedium, ModelLargeV3:
		return ModelSize(s), nil
	}
	return "", fmt.Errorf("invalid model size %q", s)
}

// Preferences holds per-account summarizer settings.
type Preferences struct {
	ModelSize    ModelSize `json:"modelSize"`
	GeminiAPIKey *string   `json:"geminiApiKey"`
}

// DefaultPreferences returns the preference set assigned at signup.
func DefaultPreferences() Preferences {
	return Preferences{ModelSize: DefaultModelSize}
}

// Account is a registered user's persisted identity.
type Account struct {
	ID            string
	Email         string
	PasswordHash  string
	Name          string
	Avatar        *string
	Preferences   Preferences
	UploadHistory []UploadHistoryEntry
	CreatedAt     time.Time
	LastLogin     time.Time
}

// Initials derives an up-to-two-letter avatar label from the account name.
func (a *Account) Initials() string {
	var initials []rune
	for _, word := range strings.Fields(a.Name) {
		r := []rune(word)[0]
		initials = append(initials, []rune(strings.ToUpper(string(r)))...)
		if len(initials) >= 2 {
			break
		}
	}
	if len(initials) > 2 {
		initials = initials[:2]
	}
	return string(initials)
}

// NormalizeEmail applies the canonical form stored and compared everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
