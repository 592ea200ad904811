package announcement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stationpa/pkg/logging"
	"stationpa/pkg/model"
	"stationpa/pkg/store"
	"stationpa/pkg/tracker"
	"stationpa/pkg/validation"
)

// Publisher receives every newly created record for push delivery.
type Publisher interface {
	PublishRecord(r model.Record)
}

// Translator fills a missing template language variant from English.
// Implementations must keep {placeholder} tokens verbatim.
type Translator interface {
	Translate(ctx context.Context, text string, lang model.Language) (string, error)
}

// CreateTemplateRequest is the payload for a new template.
type CreateTemplateRequest struct {
	Name         string            `json:"name" validate:"required"`
	TriggerType  model.TriggerType `json:"triggerType" validate:"required,oneof=train_delay train_cancellation platform_change boarding_started health_alert custom"`
	TextEnglish  string            `json:"textEnglish" validate:"required"`
	TextHindi    string            `json:"textHindi"`
	TextRegional string            `json:"textRegional"`
}

// TriggerRequest fires an announcement from a template.
type TriggerRequest struct {
	TemplateID  string         `json:"templateId"`
	Language    model.Language `json:"language,omitempty" validate:"omitempty,oneof=en hi regional"`
	TrainNumber string         `json:"trainNumber,omitempty"`
	Variables   map[string]any `json:"variables,omitempty"`
}

// Snapshot is the combined listing served to consoles.
type Snapshot struct {
	Templates []model.Template `json:"templates"`
	Records   []model.Record   `json:"records"`
}

// Service owns templates and records: it resolves triggers into records,
// tracks their delivery status and publishes new records.
type Service struct {
	templates  store.TemplateStore
	records    store.RecordStore
	publisher  Publisher
	translator Translator
	tracker    *tracker.Tracker

	recentLimit int
	now         func() time.Time
}

// NewService creates the announcement service. The publisher and tracker may be nil.
func NewService(templates store.TemplateStore, records store.RecordStore, pub Publisher, tr *tracker.Tracker) *Service {
	return &Service{
		templates:   templates,
		records:     records,
		publisher:   pub,
		tracker:     tr,
		recentLimit: 50,
		now:         time.Now,
	}
}

// SetTranslator enables translation of missing language variants on template creation.
func (s *Service) SetTranslator(t Translator) {
	s.translator = t
}

// SetRecentLimit sets how many records the snapshot carries.
func (s *Service) SetRecentLimit(n int) {
	if n > 0 {
		s.recentLimit = n
	}
}

// --- Templates ---

// ListEnabled returns the enabled templates in insertion order.
func (s *Service) ListEnabled(ctx context.Context) ([]model.Template, error) {
	return s.templates.ListEnabledTemplates(ctx)
}

// ListTemplates returns every template, enabled or not.
func (s *Service) ListTemplates(ctx context.Context) ([]model.Template, error) {
	return s.templates.ListTemplates(ctx)
}

// GetTemplate looks up a template by id.
func (s *Service) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	t, err := s.templates.GetTemplate(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return t, err
}

// CreateTemplate validates and stores a new enabled template.
// Missing Hindi or regional text is translated from English when a translator
// is set, otherwise (or on translation failure) the English text is used.
func (s *Service) CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*model.Template, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	now := s.now()
	t := &model.Template{
		ID:           "tpl_" + uuid.New().String(),
		Name:         req.Name,
		TriggerType:  req.TriggerType,
		TextEnglish:  req.TextEnglish,
		TextHindi:    s.fillVariant(ctx, req.TextHindi, req.TextEnglish, model.LanguageHindi),
		TextRegional: s.fillVariant(ctx, req.TextRegional, req.TextEnglish, model.LanguageRegional),
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.templates.CreateTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to store template: %w", err)
	}
	slog.Info("Template created", "id", t.ID, "name", t.Name, "trigger", t.TriggerType)
	return t, nil
}

func (s *Service) fillVariant(ctx context.Context, given, english string, lang model.Language) string {
	if given != "" {
		return given
	}
	if s.translator == nil {
		return english
	}
	out, err := s.translator.Translate(ctx, english, lang)
	if err != nil || out == "" {
		slog.Warn("Template translation failed, using English", "lang", lang, "error", err)
		return english
	}
	return out
}

// --- Records ---

// Trigger resolves a template into a new pending record (the manual path).
// Unknown templates yield ErrTemplateNotFound and disabled ones ErrTemplateDisabled;
// in both cases nothing is created.
func (s *Service) Trigger(ctx context.Context, req TriggerRequest) (*model.Record, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.resolve(ctx, req, true)
}

// resolve is the single resolve-and-substitute path shared by manual triggers
// and the rule engine. honorDisabled controls whether a disabled template is refused.
func (s *Service) resolve(ctx context.Context, req TriggerRequest, honorDisabled bool) (*model.Record, error) {
	tpl, err := s.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if honorDisabled && !tpl.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrTemplateDisabled, tpl.ID)
	}

	lang := req.Language
	if lang == "" {
		lang = model.DefaultLanguage
	}
	text := tpl.Text(lang)
	if text == "" {
		text = tpl.TextEnglish
	}

	rec := &model.Record{
		ID:          "rec_" + uuid.New().String(),
		TemplateID:  tpl.ID,
		TriggerType: tpl.TriggerType,
		TrainNumber: req.TrainNumber,
		Message:     Substitute(text, req.Variables),
		Language:    lang,
		Status:      model.RecordPending,
		CreatedAt:   s.now(),
	}
	if err := s.records.CreateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store record: %w", err)
	}

	slog.Info("Announcement created", "id", rec.ID, "trigger", rec.TriggerType, "lang", rec.Language, "train", rec.TrainNumber)
	logging.LogEvent("created", rec)
	s.tracker.TrackCreated(string(rec.TriggerType))
	if s.publisher != nil {
		s.publisher.PublishRecord(*rec)
	}
	return rec, nil
}

// GetRecord looks up a record by id.
func (s *Service) GetRecord(ctx context.Context, id string) (*model.Record, error) {
	r, err := s.records.GetRecord(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return r, err
}

// MarkAnnounced sets the record announced, stamps announcedAt and attaches
// audioURL when given. Repeated calls overwrite; createdAt never changes.
func (s *Service) MarkAnnounced(ctx context.Context, id, audioURL string) (*model.Record, error) {
	status := model.RecordAnnounced
	now := s.now()
	patch := model.RecordPatch{Status: &status, AnnouncedAt: &now}
	if audioURL != "" {
		patch.AudioURL = &audioURL
	}
	return s.transition(ctx, id, patch)
}

// MarkFailed sets the record failed. Other fields are kept.
func (s *Service) MarkFailed(ctx context.Context, id string) (*model.Record, error) {
	status := model.RecordFailed
	return s.transition(ctx, id, model.RecordPatch{Status: &status})
}

func (s *Service) transition(ctx context.Context, id string, patch model.RecordPatch) (*model.Record, error) {
	r, err := s.records.UpdateRecord(ctx, id, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return nil, err
	}

	slog.Info("Announcement status changed", "id", r.ID, "status", r.Status)
	logging.LogEvent(string(r.Status), r)
	if r.Status == model.RecordAnnounced {
		s.tracker.TrackAnnounced(string(r.TriggerType))
	} else {
		s.tracker.TrackFailed(string(r.TriggerType))
	}
	return r, nil
}

// Recent returns the newest records up to the configured limit.
func (s *Service) Recent(ctx context.Context) ([]model.Record, error) {
	return s.records.ListRecentRecords(ctx, s.recentLimit)
}

// Pending returns pending records, oldest first.
func (s *Service) Pending(ctx context.Context, limit int) ([]model.Record, error) {
	return s.records.ListPendingRecords(ctx, limit)
}

// Snapshot returns templates and the newest records. With allTemplates false
// only enabled templates are listed.
func (s *Service) Snapshot(ctx context.Context, allTemplates bool) (*Snapshot, error) {
	var tpls []model.Template
	var err error
	if allTemplates {
		tpls, err = s.ListTemplates(ctx)
	} else {
		tpls, err = s.ListEnabled(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	recs, err := s.Recent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	if tpls == nil {
		tpls = []model.Template{}
	}
	if recs == nil {
		recs = []model.Record{}
	}
	return &Snapshot{Templates: tpls, Records: recs}, nil
}
