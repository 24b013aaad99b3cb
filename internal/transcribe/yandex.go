package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/mindlog/session-worker/internal/config"
	"github.com/mindlog/session-worker/internal/domain"
	"github.com/mindlog/session-worker/internal/platform/logger"
)

// yandexProvider implements the asynchronous long-audio recognition
// flow against the SpeechKit v3 REST API: stage the file in object
// storage, submit a recognition job, wait an estimated processing time,
// poll with adaptive backoff, reconcile the multi-object response, and
// always delete the staged blob.
type yandexProvider struct {
	cfg     config.YandexConfig
	storage ObjectStorage
	http    *http.Client
	log     *slog.Logger

	// now and sleep are injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func newYandexProvider(cfg config.YandexConfig, storage ObjectStorage, log *slog.Logger) (*yandexProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("yandex API key is not configured")
	}
	if cfg.FolderID == "" {
		return nil, fmt.Errorf("yandex folder ID is not configured")
	}
	if storage == nil {
		return nil, fmt.Errorf("yandex provider requires object storage")
	}
	return &yandexProvider{
		cfg:     cfg,
		storage: storage,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log.With(slog.String("component", "yandex_provider")),
		now:     time.Now,
		sleep:   sleepContext,
	}, nil
}

var _ Provider = (*yandexProvider)(nil)

func (p *yandexProvider) Name() string { return "yandex" }

// Transcribe runs the full upload/submit/poll/reconcile lifecycle.
func (p *yandexProvider) Transcribe(
	ctx context.Context,
	audioPath string,
	opts Options,
) (*domain.Transcription, error) {
	log := logger.FromContextOrDefault(ctx, p.log)

	key, err := p.storage.Upload(ctx, audioPath, filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("failed to stage audio for recognition: %w", err)
	}
	// The staged blob is temporary on every exit path. Cleanup failures
	// are logged, never escalated: they must not mask a successful
	// transcription or compound an existing failure.
	defer func() {
		if delErr := p.storage.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			log.Warn("failed to delete staged audio blob",
				slog.String("key", key),
				slog.String("error", delErr.Error()))
		}
	}()

	operationID, err := p.submit(ctx, p.storage.URI(key), filepath.Ext(audioPath))
	if err != nil {
		return nil, err
	}

	log.Info("recognition job submitted",
		slog.String("operation_id", operationID),
		slog.Duration("estimated_duration", opts.EstimatedDuration))

	chunks, err := p.poll(ctx, operationID, opts.EstimatedDuration)
	if err != nil {
		return nil, err
	}

	t, err := reconcile(chunks, p.cfg.Model, p.now().UTC())
	if err != nil {
		return nil, err
	}

	log.Info("recognition job complete",
		slog.String("operation_id", operationID),
		slog.Int("segments", len(t.Segments)))
	return t, nil
}

// submitRequest is the recognition job request body.
type submitRequest struct {
	URI              string           `json:"uri"`
	RecognitionModel recognitionModel `json:"recognitionModel"`
	SpeakerLabeling  speakerLabeling  `json:"speakerLabeling"`
}

type recognitionModel struct {
	Model               string              `json:"model"`
	TextNormalization   textNormalization   `json:"textNormalization"`
	LanguageRestriction languageRestriction `json:"languageRestriction"`
	AudioFormat         audioFormat         `json:"audioFormat"`
}

type textNormalization struct {
	TextNormalization string `json:"textNormalization"`
	ProfanityFilter   bool   `json:"profanityFilter"`
	LiteratureText    bool   `json:"literatureText"`
}

type languageRestriction struct {
	RestrictionType string   `json:"restrictionType"`
	LanguageCode    []string `json:"languageCode"`
}

type audioFormat struct {
	ContainerAudio containerAudio `json:"containerAudio"`
}

type containerAudio struct {
	ContainerAudioType string `json:"containerAudioType"`
}

type speakerLabeling struct {
	SpeakerLabeling string `json:"speakerLabeling"`
}

// submitResponse is either an operation handle or an error payload.
type submitResponse struct {
	ID    string    `json:"id"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// submit posts the recognition job and returns the operation ID. Any
// error payload or missing ID is a contract error, fatal without retry.
func (p *yandexProvider) submit(ctx context.Context, uri, ext string) (string, error) {
	body := submitRequest{
		URI: uri,
		RecognitionModel: recognitionModel{
			Model: p.cfg.Model,
			TextNormalization: textNormalization{
				TextNormalization: "TEXT_NORMALIZATION_ENABLED",
				ProfanityFilter:   false,
				LiteratureText:    true,
			},
			LanguageRestriction: languageRestriction{
				RestrictionType: "WHITELIST",
				LanguageCode:    p.cfg.Languages,
			},
			AudioFormat: audioFormat{
				ContainerAudio: containerAudio{ContainerAudioType: containerType(ext)},
			},
		},
		SpeakerLabeling: speakerLabeling{SpeakerLabeling: "SPEAKER_LABELING_ENABLED"},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal request: %v", ErrSubmitFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.Endpoint+"/recognizeFileAsync", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	p.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrSubmitFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrSubmitFailed, resp.StatusCode, truncateBody(raw))
	}

	var parsed submitResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: unparsable response: %v", ErrSubmitFailed, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: code %d: %s", ErrSubmitFailed, parsed.Error.Code, parsed.Error.Message)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("%w: response carries no operation ID", ErrSubmitFailed)
	}
	return parsed.ID, nil
}

// poll waits an estimated processing time, then polls with adaptive
// backoff until the job produces results, fails, or the maximum wait
// window elapses.
func (p *yandexProvider) poll(
	ctx context.Context,
	operationID string,
	estimated time.Duration,
) ([]pollChunk, error) {
	initial := initialWait(estimated, p.cfg.RealtimeFactor)
	window := maxWindow(initial, p.cfg.WindowMultiplier)
	start := p.now()

	p.log.Debug("waiting for recognition job",
		slog.String("operation_id", operationID),
		slog.Duration("initial_wait", initial),
		slog.Duration("max_window", window))

	if err := p.sleep(ctx, initial); err != nil {
		return nil, err
	}

	for {
		chunks, ready, err := p.fetchResults(ctx, operationID)
		if err != nil {
			return nil, err
		}
		if ready {
			return chunks, nil
		}

		elapsed := p.now().Sub(start)
		if elapsed >= window {
			return nil, fmt.Errorf("%w: operation %s not done after %s",
				ErrPollTimeout, operationID, window)
		}
		if err := p.sleep(ctx, pollInterval(elapsed)); err != nil {
			return nil, err
		}
	}
}

// fetchResults performs one poll. A hard 400 is fatal; any other
// non-200 means the job is not ready yet. A 200 body holds one or more
// boundary-delimited JSON objects; explicit done=false objects also mean
// not ready.
func (p *yandexProvider) fetchResults(ctx context.Context, operationID string) ([]pollChunk, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.cfg.Endpoint+"/getRecognition?operationId="+operationID, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrJobFailed, err)
	}
	p.authorize(req)

	resp, err := p.http.Do(req)
	if err != nil {
		// Network errors during polling are transient: not ready yet.
		p.log.Warn("poll request failed", slog.String("error", err.Error()))
		return nil, false, nil
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, nil
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return nil, false, fmt.Errorf("%w: status 400: %s", ErrJobFailed, truncateBody(raw))
	case resp.StatusCode != http.StatusOK:
		return nil, false, nil
	}

	chunks, err := parsePollBody(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrJobFailed, err)
	}

	var results []pollChunk
	for _, c := range chunks {
		if c.Error != nil {
			return nil, false, fmt.Errorf("%w: code %d: %s", ErrJobFailed, c.Error.Code, c.Error.Message)
		}
		if c.Done != nil && !*c.Done {
			return nil, false, nil
		}
		if c.Result != nil {
			results = append(results, c)
		}
	}
	if len(results) == 0 {
		return nil, false, nil
	}
	return results, true, nil
}

func (p *yandexProvider) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Api-Key "+p.cfg.APIKey)
	req.Header.Set("x-folder-id", p.cfg.FolderID)
}

// parsePollBody decodes a stream of independent JSON objects.
func parsePollBody(raw []byte) ([]pollChunk, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var chunks []pollChunk
	for {
		var c pollChunk
		if err := dec.Decode(&c); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("unparsable poll response object: %v", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// initialWait estimates processing time as audio duration divided by the
// provider's realtime factor, at least one second.
func initialWait(estimated time.Duration, realtimeFactor int) time.Duration {
	if realtimeFactor <= 0 {
		realtimeFactor = 15
	}
	sec := int64(estimated.Seconds()) / int64(realtimeFactor)
	if sec < 1 {
		sec = 1
	}
	return time.Duration(sec) * time.Second
}

// maxWindow scales the initial wait into the total wait budget, clamped
// to [60s, 2h].
func maxWindow(initial time.Duration, multiplier int) time.Duration {
	if multiplier <= 0 {
		multiplier = 2
	}
	w := initial * time.Duration(multiplier)
	if w < 60*time.Second {
		w = 60 * time.Second
	}
	if w > 2*time.Hour {
		w = 2 * time.Hour
	}
	return w
}

// pollInterval grows linearly with elapsed time to avoid rate limiting:
// 5s plus 5s per elapsed minute, capped at 60s.
func pollInterval(elapsed time.Duration) time.Duration {
	interval := 5*time.Second + 5*time.Second*time.Duration(int64(elapsed.Minutes()))
	if interval > 60*time.Second {
		interval = 60 * time.Second
	}
	return interval
}

// containerType maps a file extension onto the API's container enum.
func containerType(ext string) string {
	switch strings.ToLower(ext) {
	case ".mp3":
		return "MP3"
	case ".wav":
		return "WAV"
	default:
		return "OGG_OPUS"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncateBody(raw []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(raw))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
