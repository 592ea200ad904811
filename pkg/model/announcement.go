package model

import (
	"time"
)

// TriggerType is the category of event that justifies an announcement.
type TriggerType string

const (
	TriggerTrainDelay        TriggerType = "train_delay"
	TriggerTrainCancellation TriggerType = "train_cancellation"
	TriggerPlatformChange    TriggerType = "platform_change"
	TriggerBoardingStarted   TriggerType = "boarding_started"
	TriggerHealthAlert       TriggerType = "health_alert"
	TriggerCustom            TriggerType = "custom"
)

// Template is a reusable multilingual message pattern with {placeholder} tokens.
type Template struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	TriggerType  TriggerType `json:"triggerType"`
	TextEnglish  string      `json:"textEnglish"`
	TextHindi    string      `json:"textHindi"`
	TextRegional string      `json:"textRegional"`
	Enabled      bool        `json:"enabled"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// Text returns the template text for the given language.
// Unknown languages fall back to English.
func (t *Template) Text(lang Language) string {
	switch lang {
	case LanguageHindi:
		return t.TextHindi
	case LanguageRegional:
		return t.TextRegional
	default:
		return t.TextEnglish
	}
}

// RecordStatus is the delivery state of an announcement record.
type RecordStatus string

const (
	RecordPending   RecordStatus = "pending"
	RecordAnnounced RecordStatus = "announced"
	RecordFailed    RecordStatus = "failed"
)

// IsTerminal reports whether the status is announced or failed.
func (s RecordStatus) IsTerminal() bool {
	return s == RecordAnnounced || s == RecordFailed
}

// Record is one concrete, fully resolved announcement with its own delivery lifecycle.
type Record struct {
	ID          string       `json:"id"`
	TemplateID  string       `json:"templateId"`
	TriggerType TriggerType  `json:"triggerType"`
	TrainNumber string       `json:"trainNumber,omitempty"`
	Message     string       `json:"message"`
	Language    Language     `json:"language"`
	Status      RecordStatus `json:"status"`
	AudioURL    string       `json:"audioUrl,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	AnnouncedAt *time.Time   `json:"announcedAt,omitempty"`
}

// RecordPatch holds the fields a status transition may overwrite.
// Nil fields are left untouched.
type RecordPatch struct {
	Status      *RecordStatus
	AudioURL    *string
	AnnouncedAt *time.Time
}

// Apply merges the patch onto r and returns the result.
func (p RecordPatch) Apply(r Record) Record {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.AudioURL != nil {
		r.AudioURL = *p.AudioURL
	}
	if p.AnnouncedAt != nil {
		at := *p.AnnouncedAt
		r.AnnouncedAt = &at
	}
	return r
}
