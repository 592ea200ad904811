package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stationpa/pkg/model"
)

// Canonical template ids for the automatic triggers.
const (
	TemplateDelay        = "tpl_delay_1"
	TemplateCancellation = "tpl_cancel_1"
	TemplatePlatform     = "tpl_platform_1"
	TemplateBoarding     = "tpl_boarding_1"
	TemplateDisplayAlert = "tpl_health_1"
)

// SeedTemplates returns the initial announcement templates.
func SeedTemplates(now time.Time) []model.Template {
	return []model.Template{
		{
			ID:           TemplateDelay,
			Name:         "Train Delay - General",
			TriggerType:  model.TriggerTrainDelay,
			TextEnglish:  "Train number {trainNumber} is delayed by approximately {minutes} minutes",
			TextHindi:    "ट्रेन संख्या {trainNumber} लगभग {minutes} मिनट की देरी से है",
			TextRegional: "Train {trainNumber} is delayed by {minutes} minutes",
			Enabled:      true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           TemplateCancellation,
			Name:         "Train Cancellation",
			TriggerType:  model.TriggerTrainCancellation,
			TextEnglish:  "Train number {trainNumber} to {destination} has been cancelled",
			TextHindi:    "ट्रेन संख्या {trainNumber} से {destination} तक रद्द कर दी गई है",
			TextRegional: "Train {trainNumber} to {destination} is cancelled",
			Enabled:      true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           TemplatePlatform,
			Name:         "Platform Change",
			TriggerType:  model.TriggerPlatformChange,
			TextEnglish:  "Train number {trainNumber} will now depart from platform {newPlatform}. Please move to the correct platform",
			TextHindi:    "ट्रेन संख्या {trainNumber} अब प्लेटफॉर्म {newPlatform} से प्रस्थान करेगी। कृपया सही प्लेटफॉर्म पर जाएं",
			TextRegional: "Train {trainNumber} now departing from platform {newPlatform}",
			Enabled:      true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           TemplateBoarding,
			Name:         "Boarding Started",
			TriggerType:  model.TriggerBoardingStarted,
			TextEnglish:  "Boarding has started for train number {trainNumber} on platform {platform}",
			TextHindi:    "ट्रेन संख्या {trainNumber} के लिए प्लेटफॉर्म {platform} पर बोर्डिंग शुरू हो गई है",
			TextRegional: "Boarding started for train {trainNumber} on platform {platform}",
			Enabled:      true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           TemplateDisplayAlert,
			Name:         "Display Health Alert",
			TriggerType:  model.TriggerHealthAlert,
			TextEnglish:  "Alert: Display board {displayId} in {location} is offline. Please attend immediately",
			TextHindi:    "चेतावनी: {location} में डिस्प्ले बोर्ड {displayId} ऑफलाइन है। कृपया तुरंत ध्यान दें",
			TextRegional: "Alert: Display {displayId} at {location} is offline",
			Enabled:      true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
}

// SeedTrains returns the initial train board.
func SeedTrains() []model.Train {
	return []model.Train{
		{ID: "1", TrainNumber: "12345", Name: "Express Delhi", Source: "Mumbai", Destination: "Delhi", Platform: "1", ETA: "14:30", ETD: "14:45", Status: model.TrainOnTime},
		{ID: "2", TrainNumber: "12346", Name: "Shatabdi Express", Source: "Mumbai", Destination: "Pune", Platform: "2", ETA: "12:15", ETD: "12:30", Status: model.TrainDelayed, DelayMinutes: 15},
		{ID: "3", TrainNumber: "12347", Name: "Rajdhani Express", Source: "Mumbai", Destination: "Bangalore", Platform: "3", ETA: "16:00", ETD: "16:15", Status: model.TrainBoarding},
		{ID: "4", TrainNumber: "12348", Name: "Premier Express", Source: "Mumbai", Destination: "Goa", Platform: "4", ETA: "18:00", ETD: "18:15", Status: model.TrainOnTime},
		{ID: "5", TrainNumber: "12349", Name: "Intercity Express", Source: "Mumbai", Destination: "Ahmedabad", Platform: "5", ETA: "20:00", ETD: "20:15", Status: model.TrainCancelled},
	}
}

// Seed fills an empty store with the initial templates and trains.
// Stores that already hold templates or trains are left untouched, so a durable
// backend keeps operator changes across restarts.
func Seed(ctx context.Context, s Store) error {
	tpls, err := s.ListTemplates(ctx)
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}
	if len(tpls) == 0 {
		seed := SeedTemplates(time.Now())
		for i := range seed {
			if err := s.CreateTemplate(ctx, &seed[i]); err != nil {
				return fmt.Errorf("failed to seed template %s: %w", seed[i].ID, err)
			}
		}
		slog.Info("Seeded announcement templates", "count", len(seed))
	}

	trains, err := s.ListTrains(ctx)
	if err != nil {
		return fmt.Errorf("failed to list trains: %w", err)
	}
	if len(trains) == 0 {
		seed := SeedTrains()
		for i := range seed {
			if err := s.SaveTrain(ctx, &seed[i]); err != nil {
				return fmt.Errorf("failed to seed train %s: %w", seed[i].ID, err)
			}
		}
		slog.Info("Seeded trains", "count", len(seed))
	}
	return nil
}
