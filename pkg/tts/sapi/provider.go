package sapi

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"stationpa/pkg/tts"
)

const (
	ssfmCreateForWrite = 3
	svsfDefault        = 0
)

// localeLCIDs maps announcement locales to the hex LCIDs carried in the
// "Language" attribute of SAPI voice tokens.
var localeLCIDs = map[string]string{
	"en-IN": "4009",
	"en-US": "409",
	"en-GB": "809",
	"hi-IN": "439",
	"ta-IN": "449",
}

// Provider implements tts.Provider using Windows SAPI5 via OLE.
type Provider struct {
	mu sync.Mutex
}

// NewProvider creates a new SAPI5 provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Synthesize renders text to a .wav file. An explicit voiceID wins; otherwise
// the first installed voice for locale is used, falling back to the system default.
func (p *Provider) Synthesize(ctx context.Context, text, voiceID, locale, outputPath string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	text = tts.SpeakableText(text)
	err := withCOM(func() error {
		return speakToFile(text, voiceID, locale, wavPath(outputPath))
	})
	if err != nil {
		tts.Log("SAPI", locale, text, 0, err)
		return "", err
	}
	tts.Log("SAPI", locale, text, 200, nil)
	return "wav", nil
}

// Voices lists the installed SAPI voices.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var voices []tts.Voice
	err := withCOM(func() error {
		voice, err := createDispatch("SAPI.SpVoice")
		if err != nil {
			return err
		}
		defer voice.Release()

		tokens, err := voiceTokens(voice, "")
		if err != nil {
			return err
		}
		defer tokens.Release()

		return oleutil.ForEach(tokens, func(v *ole.VARIANT) error {
			item := v.ToIDispatch()
			if item == nil {
				return nil
			}
			defer item.Release()
			if id := tokenString(item, "GetId"); id != "" {
				voices = append(voices, tts.Voice{
					ID:       id,
					Name:     tokenString(item, "GetDescription", int32(0)),
					Language: lcidLocale(tokenString(item, "GetAttribute", "Language")),
				})
			}
			return nil
		})
	})
	return voices, err
}

// withCOM runs fn on a locked OS thread with COM initialized.
func withCOM(fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	// A failing CoInitialize means COM is already initialized on this thread
	if err := ole.CoInitialize(0); err == nil {
		defer ole.CoUninitialize()
	}
	return fn()
}

func speakToFile(text, voiceID, locale, path string) error {
	voice, err := createDispatch("SAPI.SpVoice")
	if err != nil {
		return err
	}
	defer voice.Release()

	if token := findVoice(voice, voiceID, locale); token != nil {
		_, err := oleutil.PutPropertyRef(voice, "Voice", token)
		token.Release()
		if err != nil {
			slog.Warn("SAPI: voice selection failed, using default", "voice", voiceID, "locale", locale, "error", err)
		}
	}

	stream, err := createDispatch("SAPI.SpFileStream")
	if err != nil {
		return err
	}
	defer stream.Release()

	if _, err := oleutil.CallMethod(stream, "Open", path, ssfmCreateForWrite, false); err != nil {
		return fmt.Errorf("sapi open %s: %w", path, err)
	}
	defer func() {
		_, _ = oleutil.CallMethod(stream, "Close")
	}()

	if _, err := oleutil.PutPropertyRef(voice, "AudioOutputStream", stream); err != nil {
		return fmt.Errorf("sapi output stream: %w", err)
	}
	if _, err := oleutil.CallMethod(voice, "Speak", text, svsfDefault); err != nil {
		return fmt.Errorf("sapi speak failed: %w", err)
	}
	return nil
}

func createDispatch(progID string) (*ole.IDispatch, error) {
	unknown, err := oleutil.CreateObject(progID)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", progID, err)
	}
	defer unknown.Release()

	disp, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", progID, err)
	}
	return disp, nil
}

// voiceTokens returns the ISpeechObjectTokens matching the required attributes.
func voiceTokens(voice *ole.IDispatch, required string) (*ole.IDispatch, error) {
	res, err := oleutil.CallMethod(voice, "GetVoices", required, "")
	if err != nil {
		return nil, fmt.Errorf("sapi voices: %w", err)
	}
	tokens := res.ToIDispatch()
	if tokens == nil {
		return nil, fmt.Errorf("sapi voices: empty collection")
	}
	return tokens, nil
}

// findVoice returns the token to speak with, or nil for the system default.
// The caller releases a non-nil token.
func findVoice(voice *ole.IDispatch, voiceID, locale string) *ole.IDispatch {
	switch {
	case voiceID != "":
		return firstToken(voice, "", func(t *ole.IDispatch) bool {
			return tokenString(t, "GetId") == voiceID
		})
	case localeLCIDs[locale] != "":
		return firstToken(voice, "Language="+localeLCIDs[locale], nil)
	default:
		return nil
	}
}

func firstToken(voice *ole.IDispatch, required string, match func(*ole.IDispatch) bool) *ole.IDispatch {
	tokens, err := voiceTokens(voice, required)
	if err != nil {
		return nil
	}
	defer tokens.Release()

	var found *ole.IDispatch
	_ = oleutil.ForEach(tokens, func(v *ole.VARIANT) error {
		item := v.ToIDispatch()
		if item == nil {
			return nil
		}
		if found == nil && (match == nil || match(item)) {
			found = item
			return nil
		}
		item.Release()
		return nil
	})
	return found
}

func tokenString(token *ole.IDispatch, method string, args ...any) string {
	res, err := oleutil.CallMethod(token, method, args...)
	if err != nil || res == nil {
		return ""
	}
	return res.ToString()
}

// lcidLocale maps a token Language attribute ("409" or "409;9") back to a locale.
func lcidLocale(attr string) string {
	primary, _, _ := strings.Cut(attr, ";")
	primary = strings.ToLower(strings.TrimSpace(primary))
	for locale, lcid := range localeLCIDs {
		if lcid == primary {
			return locale
		}
	}
	return ""
}

func wavPath(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".wav") {
		return path
	}
	return path + ".wav"
}
