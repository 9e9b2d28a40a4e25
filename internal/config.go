// Package internal holds process-level plumbing: configuration, logging
// bootstrap and the badger inspector used during development.
package internal

import (
	"fmt"
	"time"
)

type Config struct {
	HubBufferSize        int    `env:"HUB_BUFFER_SIZE,default=1024"`
	ConnectionBufferSize int    `env:"CONNECTION_BUFFER_SIZE,default=256"`
	IndexQueueSize       int    `env:"INDEX_QUEUE_SIZE,default=1024"`
	CharReplacement      string `env:"CHARACTER_REPLACEMENT,default=*"`
	LimitMessages        *int   `env:"LIMIT_MESSAGES"`

	MetricInterval    time.Duration `env:"METRIC_INTERVAL,default=30s"`
	BotTimeout        time.Duration `env:"BOT_TIMEOUT,default=15s"`
	TranslateTimeout  time.Duration `env:"TRANSLATE_TIMEOUT,default=10s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	AuthSecret string `env:"AUTH_SECRET,required=true"`
	AuthIssuer string `env:"AUTH_ISSUER,default=educhat"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	UploadDir      string `env:"UPLOAD_DIR,default=uploads"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES,default=10485760"`

	BotBaseURL       string `env:"BOT_BASE_URL,required=true"`
	BotAPIKey        string `env:"BOT_API_KEY,required=true"`
	BotModel         string `env:"BOT_MODEL,default=gpt-4o-mini"`
	TranslateBaseURL string `env:"TRANSLATE_BASE_URL"`
	TranslateAPIKey  string `env:"TRANSLATE_API_KEY"`

	LogLevel string `env:"LOG_LEVEL,default=INFO"`
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=8080"`

	DebugInspector     bool `env:"DEBUG_INSPECTOR,default=false"`
	DebugInspectorPort int  `env:"DEBUG_INSPECTOR_PORT,default=8081"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
