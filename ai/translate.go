package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"

	"educhat/errors"
)

// TranslateConfig configures the translation backend.
type TranslateConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// TranslateClient wraps the Google Translate v2 REST API.
type TranslateClient struct {
	cfg    TranslateConfig
	client *http.Client
	log    *slog.Logger
}

func NewTranslateClient(cfg TranslateConfig, log *slog.Logger) *TranslateClient {
	return &TranslateClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

// Translate converts text into the target language. Callers fall back to
// the original text when an error is returned.
func (t *TranslateClient) Translate(ctx context.Context, text, targetLang string) (string, error) {
	form := url.Values{}
	form.Set("q", text)
	form.Set("target", targetLang)
	form.Set("key", t.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.cfg.BaseURL+"/language/translate/v2", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTranslateUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", errors.ErrTranslateUnavailable, resp.StatusCode)
	}

	var parsed translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTranslateUnavailable, err)
	}
	if len(parsed.Data.Translations) == 0 {
		return "", fmt.Errorf("%w: empty response", errors.ErrTranslateUnavailable)
	}
	return parsed.Data.Translations[0].TranslatedText, nil
}

// DetectLanguage returns the ISO 639-1 code of the dominant language, or
// the empty string when detection is unreliable.
func DetectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
