package announcement

import "testing"

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name string
		text string
		vars map[string]any
		want string
	}{
		{"NoVars", "Train {trainNumber}", nil, "Train {trainNumber}"},
		{"Single", "Train {trainNumber}", map[string]any{"trainNumber": "12346"}, "Train 12346"},
		{"EveryOccurrence", "{a} and {a}", map[string]any{"a": "X"}, "X and X"},
		{"UnknownLeftVerbatim", "{a} then {b}", map[string]any{"a": "X"}, "X then {b}"},
		{"IntValue", "{minutes} minutes", map[string]any{"minutes": 15}, "15 minutes"},
		{"JSONNumber", "{minutes} minutes", map[string]any{"minutes": float64(15)}, "15 minutes"},
		{"Fraction", "{v}", map[string]any{"v": 2.5}, "2.5"},
		{"ValueNotRescanned", "{a} {b}", map[string]any{"a": "{b}", "b": "Y"}, "{b} Y"},
		{"NilValue", "[{a}]", map[string]any{"a": nil}, "[]"},
		{"BracesWithoutKey", "{} {x", map[string]any{"x": "1"}, "{} {x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Substitute(tt.text, tt.vars); got != tt.want {
				t.Errorf("Substitute() = %q, want %q", got, tt.want)
			}
		})
	}
}
