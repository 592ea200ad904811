package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"10s", 10 * time.Second, false},
		{"1.5h", 90 * time.Minute, false},
		{"1d", Day, false},
		{"2w", 2 * Week, false},
		{"1d12h", 36 * time.Hour, false},
		{"0.5d", 12 * time.Hour, false},
		{" 30d ", 30 * Day, false},
		{"", 0, false},
		{"invalid", 0, true},
		{"d", 0, true},
		{"3dx", 0, true},
		{"1d5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDuration_String(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{30 * time.Second, "30s"},
		{36 * time.Hour, "36h0m0s"},
		{30 * Day, "30d"},
		{2 * Week, "2w"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Duration(tt.in).String())
	}
}

func TestDuration_YAML(t *testing.T) {
	type holder struct {
		Retention Duration `yaml:"retention"`
	}

	var h holder
	assert.NoError(t, yaml.Unmarshal([]byte("retention: 1w\n"), &h))
	assert.Equal(t, Week, time.Duration(h.Retention))

	err := yaml.Unmarshal([]byte("\nretention: soon\n"), &h)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "line 2")
	}

	out, err := yaml.Marshal(holder{Retention: Duration(30 * Day)})
	assert.NoError(t, err)
	assert.Equal(t, "retention: 30d\n", string(out))
}
