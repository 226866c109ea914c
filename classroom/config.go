package classroom

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ClientConfig carries the endpoints and timeouts of one classroom client.
type ClientConfig struct {
	StoreURL     string // REST base, e.g. http://localhost:9090
	TransportURL string // WebSocket endpoint, e.g. ws://localhost:9090/ws
	AnalysisURL  string // speech/vision/summarizer service
	Token        string // access token used by the store and the transport

	HTTPTimeout     time.Duration
	AnalysisTimeout time.Duration
	Heartbeat       time.Duration
	ReconnectMin    time.Duration
	ReconnectMax    time.Duration

	Language string // default speech-to-text language code
}

// LoadClientConfig builds a ClientConfig from the environment, reading a
// .env file first when one exists.
func LoadClientConfig() (*ClientConfig, error) {
	_ = godotenv.Load()

	storeURL := strings.TrimRight(getEnv("CLASSROOM_STORE_URL", "http://localhost:9090"), "/")
	transportURL := getEnv("CLASSROOM_TRANSPORT_URL", "")
	if transportURL == "" {
		transportURL = wsURL(storeURL) + "/ws"
	}

	cfg := &ClientConfig{
		StoreURL:     storeURL,
		TransportURL: transportURL,
		AnalysisURL:  strings.TrimRight(getEnv("CLASSROOM_ANALYSIS_URL", "http://localhost:5000"), "/"),
		Token:        getEnv("CLASSROOM_TOKEN", ""),
		Language:     getEnv("CLASSROOM_LANGUAGE", "en-US"),
	}

	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"CLASSROOM_HTTP_TIMEOUT", "15s", &cfg.HTTPTimeout},
		{"CLASSROOM_ANALYSIS_TIMEOUT", "60s", &cfg.AnalysisTimeout},
		{"CLASSROOM_HEARTBEAT", "30s", &cfg.Heartbeat},
		{"CLASSROOM_RECONNECT_MIN", "1s", &cfg.ReconnectMin},
		{"CLASSROOM_RECONNECT_MAX", "30s", &cfg.ReconnectMax},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.fallback))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", d.key)
		}
		*d.dst = v
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		return nil, fmt.Errorf("CLASSROOM_RECONNECT_MAX must not be below CLASSROOM_RECONNECT_MIN")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func wsURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	default:
		return httpURL
	}
}
