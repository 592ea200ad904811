package edgetts

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stationpa/pkg/request"
	"stationpa/pkg/tracker"
	"stationpa/pkg/tts"
)

const (
	// DefaultVoice is used when neither a voice nor a known locale is given.
	DefaultVoice = "en-IN-NeerjaNeural"

	upstream     = "edge-tts"
	outputFormat = "audio-24khz-48kbitrate-mono-mp3"
	dialAttempts = 3
	// announcements are read slightly slower than conversational speech
	speakingRate = "-5%"
)

// defaultVoices picks a voice per announcement locale.
var defaultVoices = map[string]string{
	"en-IN": "en-IN-NeerjaNeural",
	"hi-IN": "hi-IN-SwaraNeural",
	"ta-IN": "ta-IN-PallaviNeural",
}

// Provider implements tts.Provider for Microsoft Edge TTS.
type Provider struct {
	tracker *tracker.Tracker
	backoff *request.Backoff
	dialer  *websocket.Dialer
}

// NewProvider creates a new Edge TTS provider. The tracker may be nil.
func NewProvider(t *tracker.Tracker) *Provider {
	return &Provider{
		tracker: t,
		backoff: request.NewBackoff(time.Second, time.Minute),
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
	}
}

// Synthesize renders text to an .mp3 file.
func (p *Provider) Synthesize(ctx context.Context, text, voice, locale, outputPath string) (string, error) {
	voice, locale = resolveVoice(voice, locale)

	text = tts.SpeakableText(text)
	if text == "" {
		return "", errors.New("edgetts: nothing to synthesize")
	}

	ep, err := endpointFromEnv()
	if err != nil {
		return "", err
	}
	if err := p.backoff.Wait(ctx, upstream); err != nil {
		return "", err
	}

	path := outputPath
	if !strings.HasSuffix(strings.ToLower(path), ".mp3") {
		path += ".mp3"
	}
	if err := p.synthesizeTo(ctx, ep, voice, locale, text, path); err != nil {
		p.tracker.TrackAPIFailure(upstream)
		tts.Log("EDGETTS", locale, text, tts.StatusCode(err), err)
		return "", err
	}

	p.tracker.TrackAPISuccess(upstream)
	p.backoff.Success(upstream)
	tts.Log("EDGETTS", locale, text, http.StatusOK, nil)
	return "mp3", nil
}

// synthesizeTo streams audio into a temporary file that replaces path on success.
func (p *Provider) synthesizeTo(ctx context.Context, ep endpoint, voice, locale, text, path string) error {
	conn, err := p.dial(ctx, ep)
	if err != nil {
		return err
	}
	defer conn.Close()

	requestID := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := conn.WriteMessage(websocket.TextMessage, configFrame()); err != nil {
		return fmt.Errorf("edgetts: send speech.config: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, ssmlFrame(requestID, buildSSML(voice, locale, text))); err != nil {
		return fmt.Errorf("edgetts: send ssml: %w", err)
	}

	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("edgetts: create output: %w", err)
	}
	n, err := receiveAudio(ctx, conn, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n == 0 {
		err = errors.New("edgetts: no audio received")
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func (p *Provider) dial(ctx context.Context, ep endpoint) (*websocket.Conn, error) {
	header := ep.header()

	var lastErr error
	status := 0
	for attempt := range dialAttempts {
		conn, resp, err := p.dialer.DialContext(ctx, ep.url(time.Now()), header)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if resp != nil {
			status = resp.StatusCode
			slog.Warn("EdgeTTS: handshake rejected", "status", resp.Status, "attempt", attempt+1)
		}
		wait := p.backoff.Failure(upstream)
		if attempt == dialAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(min(wait, 2*time.Second)):
		}
	}
	return nil, tts.NewEngineError(upstream, status, fmt.Errorf("dial failed after %d attempts: %w", dialAttempts, lastErr))
}

// receiveAudio copies audio frames to w until the service reports turn.end.
func receiveAudio(ctx context.Context, conn *websocket.Conn, w *os.File) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return total, fmt.Errorf("edgetts: read: %w", err)
		}
		switch msgType {
		case websocket.TextMessage:
			if framePath(string(data)) == "turn.end" {
				return total, nil
			}
		case websocket.BinaryMessage:
			audio, ok := audioPayload(data)
			if !ok || len(audio) == 0 {
				continue
			}
			n, err := w.Write(audio)
			total += n
			if err != nil {
				return total, fmt.Errorf("edgetts: write audio: %w", err)
			}
		}
	}
}

// audioPayload strips the length-prefixed header from a binary frame.
func audioPayload(data []byte) ([]byte, bool) {
	if len(data) < 2 {
		return nil, false
	}
	headerLen := int(binary.BigEndian.Uint16(data))
	if len(data) < 2+headerLen {
		return nil, false
	}
	return data[2+headerLen:], true
}

// framePath returns the Path header of a text frame.
func framePath(frame string) string {
	head, _, _ := strings.Cut(frame, "\r\n\r\n")
	for line := range strings.SplitSeq(head, "\r\n") {
		if v, ok := strings.CutPrefix(line, "Path:"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func configFrame() []byte {
	return []byte("Content-Type:application/json; charset=utf-8\r\nPath:speech.config\r\n\r\n" +
		`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},"outputFormat":"` + outputFormat + `"}}}}`)
}

func ssmlFrame(requestID, ssml string) []byte {
	return fmt.Appendf(nil, "X-RequestId:%s\r\nContent-Type:application/ssml+xml\r\nPath:ssml\r\n\r\n%s", requestID, ssml)
}

var ssmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

func buildSSML(voice, locale, text string) string {
	return fmt.Sprintf("<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='%s'>"+
		"<voice name='%s'><prosody rate='%s'>%s</prosody></voice></speak>",
		locale, voice, speakingRate, ssmlEscaper.Replace(text))
}

// resolveVoice fills in whichever of voice and locale is missing.
// Voice names carry their locale as a prefix (hi-IN-SwaraNeural).
func resolveVoice(voice, locale string) (string, string) {
	if voice == "" {
		voice = defaultVoices[locale]
	}
	if voice == "" {
		voice = DefaultVoice
	}
	if locale == "" {
		if parts := strings.SplitN(voice, "-", 3); len(parts) == 3 {
			locale = parts[0] + "-" + parts[1]
		} else {
			locale = "en-IN"
		}
	}
	return voice, locale
}

// endpoint holds the service coordinates, supplied through the environment.
type endpoint struct {
	baseURL     string
	origin      string
	userAgent   string
	clientToken string
	gecVersion  string
}

func endpointFromEnv() (endpoint, error) {
	var missing []error
	get := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, fmt.Errorf("%s is not set", key))
		}
		return v
	}
	ep := endpoint{
		baseURL:     get("EDGE_TTS_BASE_URL"),
		origin:      get("EDGE_TTS_ORIGIN"),
		userAgent:   get("EDGE_TTS_USER_AGENT"),
		clientToken: get("EDGE_TTS_TRUSTED_CLIENT_TOKEN"),
		gecVersion:  get("EDGE_TTS_SEC_MS_GEC_VERSION"),
	}
	if len(missing) > 0 {
		return endpoint{}, fmt.Errorf("edgetts: endpoint not configured: %w", errors.Join(missing...))
	}
	return ep, nil
}

func (e endpoint) url(now time.Time) string {
	q := url.Values{}
	q.Set("TrustedClientToken", e.clientToken)
	q.Set("Sec-MS-GEC", secMSGec(e.clientToken, now))
	q.Set("Sec-MS-GEC-Version", e.gecVersion)
	return e.baseURL + "?" + q.Encode()
}

func (e endpoint) header() http.Header {
	h := http.Header{}
	h.Set("Origin", e.origin)
	h.Set("User-Agent", e.userAgent)
	h.Set("Pragma", "no-cache")
	h.Set("Cache-Control", "no-cache")
	h.Set("Accept-Language", "en-IN,en;q=0.9")
	h.Set("Cookie", "muid="+strings.ReplaceAll(uuid.NewString(), "-", ""))
	return h
}

// windowsEpochOffset is the number of seconds between 1601-01-01 and 1970-01-01.
const windowsEpochOffset = 11644473600

// secMSGec derives the request token: SHA-256 over the Windows file time,
// rounded down to five minutes and expressed in 100ns ticks, followed by the client token.
func secMSGec(clientToken string, now time.Time) string {
	secs := now.Unix() + windowsEpochOffset
	secs -= secs % 300
	sum := sha256.Sum256(fmt.Appendf(nil, "%d%s", secs*10_000_000, clientToken))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Voices returns the neural voices suited to station announcements.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{
		{ID: "en-IN-NeerjaNeural", Name: "Neerja (India)", Language: "en-IN", IsNeural: true},
		{ID: "en-IN-PrabhatNeural", Name: "Prabhat (India)", Language: "en-IN", IsNeural: true},
		{ID: "hi-IN-SwaraNeural", Name: "Swara (Hindi)", Language: "hi-IN", IsNeural: true},
		{ID: "hi-IN-MadhurNeural", Name: "Madhur (Hindi)", Language: "hi-IN", IsNeural: true},
		{ID: "ta-IN-PallaviNeural", Name: "Pallavi (Tamil)", Language: "ta-IN", IsNeural: true},
		{ID: "ta-IN-ValluvarNeural", Name: "Valluvar (Tamil)", Language: "ta-IN", IsNeural: true},
	}, nil
}
