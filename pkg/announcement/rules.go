package announcement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"stationpa/pkg/config"
	"stationpa/pkg/model"
	"stationpa/pkg/store"
)

// Rule turns a train transition into an automatic announcement.
type Rule struct {
	Trigger   model.TriggerType
	Fires     func(old, cur *model.Train) bool
	Variables func(cur *model.Train) map[string]any
}

func statusEntered(s model.TrainStatus) func(old, cur *model.Train) bool {
	return func(old, cur *model.Train) bool {
		return old.Status != s && cur.Status == s
	}
}

// DefaultRules are evaluated in this order. Each is independent; one update may fire several.
var DefaultRules = []Rule{
	{
		Trigger: model.TriggerTrainDelay,
		Fires:   statusEntered(model.TrainDelayed),
		Variables: func(t *model.Train) map[string]any {
			return map[string]any{"trainNumber": t.TrainNumber, "minutes": t.DelayMinutes}
		},
	},
	{
		Trigger: model.TriggerTrainCancellation,
		Fires:   statusEntered(model.TrainCancelled),
		Variables: func(t *model.Train) map[string]any {
			return map[string]any{"trainNumber": t.TrainNumber, "destination": t.Destination}
		},
	},
	{
		Trigger: model.TriggerBoardingStarted,
		Fires:   statusEntered(model.TrainBoarding),
		Variables: func(t *model.Train) map[string]any {
			return map[string]any{"trainNumber": t.TrainNumber, "platform": t.Platform}
		},
	},
	{
		Trigger: model.TriggerPlatformChange,
		Fires: func(old, cur *model.Train) bool {
			return old.Platform != cur.Platform
		},
		Variables: func(t *model.Train) map[string]any {
			return map[string]any{"trainNumber": t.TrainNumber, "newPlatform": t.Platform}
		},
	},
}

// RuleEngine compares old and new train state and creates records for every rule that fires.
type RuleEngine struct {
	svc             *Service
	rules           []Rule
	templates       map[model.TriggerType]string
	language        model.Language
	respectDisabled bool
}

// NewRuleEngine builds an engine over DefaultRules. cfg may be nil.
func NewRuleEngine(svc *Service, cfg *config.RulesConfig) *RuleEngine {
	e := &RuleEngine{
		svc:   svc,
		rules: DefaultRules,
		templates: map[model.TriggerType]string{
			model.TriggerTrainDelay:        store.TemplateDelay,
			model.TriggerTrainCancellation: store.TemplateCancellation,
			model.TriggerPlatformChange:    store.TemplatePlatform,
			model.TriggerBoardingStarted:   store.TemplateBoarding,
		},
		language: model.LanguageEnglish,
	}
	if cfg == nil {
		return e
	}

	for trigger, id := range cfg.Templates {
		e.templates[model.TriggerType(trigger)] = id
	}
	if lang := model.Language(cfg.Language); lang.Valid() {
		e.language = lang
	}
	e.respectDisabled = cfg.RespectDisabled
	return e
}

// Evaluate runs every rule against the (old, cur) pair. Records are created
// through the same resolve path as manual triggers. A rule whose canonical
// template is missing (or disabled, when configured to respect that) is
// skipped; other failures are collected and returned after all rules ran.
func (e *RuleEngine) Evaluate(ctx context.Context, old, cur model.Train) ([]model.Record, error) {
	var created []model.Record
	var errs []error

	for _, r := range e.rules {
		if !r.Fires(&old, &cur) {
			continue
		}

		tplID, ok := e.templates[r.Trigger]
		if !ok || tplID == "" {
			slog.Warn("Rule fired without a canonical template", "trigger", r.Trigger, "train", cur.ID)
			continue
		}

		rec, err := e.svc.resolve(ctx, TriggerRequest{
			TemplateID:  tplID,
			Language:    e.language,
			TrainNumber: cur.TrainNumber,
			Variables:   r.Variables(&cur),
		}, e.respectDisabled)

		switch {
		case err == nil:
			created = append(created, *rec)
		case errors.Is(err, ErrTemplateNotFound):
			slog.Warn("Canonical template missing, rule skipped", "trigger", r.Trigger, "template", tplID)
		case errors.Is(err, ErrTemplateDisabled):
			slog.Info("Canonical template disabled, rule skipped", "trigger", r.Trigger, "template", tplID)
		default:
			errs = append(errs, fmt.Errorf("rule %s: %w", r.Trigger, err))
		}
	}

	return created, errors.Join(errs...)
}
