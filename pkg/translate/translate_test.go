package translate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stationpa/pkg/config"
	"stationpa/pkg/model"
	"stationpa/pkg/tracker"
)

type fakeGen struct {
	out    string
	err    error
	prompt string
}

func (f *fakeGen) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.out, f.err
}

func TestTranslate(t *testing.T) {
	src := "Train number {trainNumber} is delayed by {minutes} minutes"

	tests := []struct {
		name    string
		lang    model.Language
		out     string
		genErr  error
		want    string
		wantErr bool
	}{
		{
			name: "Hindi",
			lang: model.LanguageHindi,
			out:  "ट्रेन संख्या {trainNumber} {minutes} मिनट देरी से है",
			want: "ट्रेन संख्या {trainNumber} {minutes} मिनट देरी से है",
		},
		{
			name: "Fenced Response",
			lang: model.LanguageRegional,
			out:  "```\n\"ரயில் {trainNumber} {minutes} நிமிடங்கள் தாமதம்\"\n```",
			want: "ரயில் {trainNumber} {minutes} நிமிடங்கள் தாமதம்",
		},
		{
			name:    "Placeholder Dropped",
			lang:    model.LanguageHindi,
			out:     "ट्रेन संख्या {trainNumber} देरी से है",
			wantErr: true,
		},
		{
			name:    "Placeholder Translated",
			lang:    model.LanguageHindi,
			out:     "ट्रेन {ट्रेन} {minutes}",
			wantErr: true,
		},
		{
			name:    "Generator Error",
			lang:    model.LanguageHindi,
			genErr:  errors.New("quota"),
			wantErr: true,
		},
		{
			name:    "Empty Response",
			lang:    model.LanguageHindi,
			out:     "  ",
			wantErr: true,
		},
		{
			name:    "Unknown Language",
			lang:    model.Language("fr"),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := tracker.New()
			gen := &fakeGen{out: tt.out, err: tt.genErr}
			got, err := NewWithGenerator(gen, tr).Translate(context.Background(), src, tt.lang)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, strings.Contains(gen.prompt, src))
			assert.Equal(t, int64(1), tr.Snapshot()["gemini"].APISuccess)
		})
	}
}

func TestTranslate_EnglishPassthrough(t *testing.T) {
	gen := &fakeGen{err: errors.New("must not be called")}
	got, err := NewWithGenerator(gen, nil).Translate(context.Background(), "Platform {platform}", model.LanguageEnglish)
	require.NoError(t, err)
	assert.Equal(t, "Platform {platform}", got)
	assert.Empty(t, gen.prompt)
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(context.Background(), &config.TranslateConfig{Enabled: true}, nil)
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt("Boarding on platform {platform}", "Tamil")
	assert.Contains(t, p, "into Tamil")
	assert.Contains(t, p, "{platform}")
}
