package model

// TrainStatus is the operational state of a train.
type TrainStatus string

const (
	TrainOnTime    TrainStatus = "on-time"
	TrainDelayed   TrainStatus = "delayed"
	TrainBoarding  TrainStatus = "boarding"
	TrainCancelled TrainStatus = "cancelled"
)

// Train is the current state of a scheduled train.
type Train struct {
	ID           string      `json:"id"`
	TrainNumber  string      `json:"trainNumber"`
	Name         string      `json:"name"`
	Source       string      `json:"source"`
	Destination  string      `json:"destination"`
	Platform     string      `json:"platform"`
	ETA          string      `json:"eta"`
	ETD          string      `json:"etd"`
	Status       TrainStatus `json:"status"`
	DelayMinutes int         `json:"delayMinutes"`
}

// TrainPatch is a partial train update. Nil fields keep their stored value.
// The id is never patched.
type TrainPatch struct {
	TrainNumber  *string      `json:"trainNumber,omitempty"`
	Name         *string      `json:"name,omitempty"`
	Source       *string      `json:"source,omitempty"`
	Destination  *string      `json:"destination,omitempty"`
	Platform     *string      `json:"platform,omitempty"`
	ETA          *string      `json:"eta,omitempty"`
	ETD          *string      `json:"etd,omitempty"`
	Status       *TrainStatus `json:"status,omitempty" validate:"omitempty,oneof=on-time delayed boarding cancelled"`
	DelayMinutes *int         `json:"delayMinutes,omitempty" validate:"omitempty,gte=0"`
}

// Apply performs a shallow merge of the patch onto t.
func (p *TrainPatch) Apply(t Train) Train {
	if p.TrainNumber != nil {
		t.TrainNumber = *p.TrainNumber
	}
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Source != nil {
		t.Source = *p.Source
	}
	if p.Destination != nil {
		t.Destination = *p.Destination
	}
	if p.Platform != nil {
		t.Platform = *p.Platform
	}
	if p.ETA != nil {
		t.ETA = *p.ETA
	}
	if p.ETD != nil {
		t.ETD = *p.ETD
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.DelayMinutes != nil {
		t.DelayMinutes = *p.DelayMinutes
	}
	return t
}
