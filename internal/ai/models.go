package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strings"
	"time"
)

const (
	BackendInference = "inference"
	BackendStub      = "stub"

	TransportHuggingFace = "huggingface"
	TransportProxy       = "proxy"

	DefaultBaseURL = "https://api-inference.huggingface.co"
	DefaultModel   = "openai/clip-vit-base-patch32"
)

// Classifier scores an image against a list of text prompts and returns the
// prompts ranked by score, highest first.
type Classifier interface {
	Classify(ctx context.Context, img Image, prompts []string) ([]LabelScore, error)
	Backend() string
}

// Image is either a remote URL the model can fetch itself, or raw bytes that
// are sent inline. URL is kept alongside Data as the image's identity.
// ContentType, when known, labels inline bytes on the proxy transport.
type Image struct {
	URL         string
	Data        []byte
	ContentType string
}

// Ref identifies the image independently of how it is transported.
func (img Image) Ref() string {
	if img.URL != "" {
		return img.URL
	}
	h := fnv.New64a()
	h.Write(img.Data)
	return fmt.Sprintf("inline:%x", h.Sum64())
}

func (img Image) Inline() bool {
	return len(img.Data) > 0
}

func (img Image) encoded() string {
	return base64.StdEncoding.EncodeToString(img.Data)
}

// dataURI is the encoded bytes with a data: prefix, or plain base64 when the
// content type is unknown.
func (img Image) dataURI() string {
	if img.ContentType == "" {
		return img.encoded()
	}
	return "data:" + img.ContentType + ";base64," + img.encoded()
}

func (img Image) IsRemote() bool {
	return strings.HasPrefix(img.URL, "http://") || strings.HasPrefix(img.URL, "https://")
}

type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type Config struct {
	Backend            string
	Transport          string
	BaseURL            string
	Model              string
	APIToken           string
	TimeoutSeconds     int
	MaxAttempts        int
	InlineRemoteImages bool
}

func NewConfig() *Config {
	return &Config{
		Backend:        BackendInference,
		Transport:      TransportHuggingFace,
		BaseURL:        DefaultBaseURL,
		Model:          DefaultModel,
		TimeoutSeconds: 30,
		MaxAttempts:    2,
	}
}

// NewClassifier builds the backend named by cfg.Backend.
func NewClassifier(cfg *Config, logger *slog.Logger, opts ...Option) (Classifier, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendInference, "":
		client, err := NewInferenceClient(*cfg, opts...)
		if err != nil {
			return nil, err
		}
		logger.Info("classifier backend enabled",
			"backend", BackendInference,
			"transport", client.transport,
			"model", client.cfg.Model,
		)
		return client, nil
	case BackendStub:
		logger.Warn("classifier backend is the offline stub; scores are synthetic", "backend", BackendStub)
		return NewStubClient(), nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Backend)
	}
}

// rank orders scores descending. Equal scores keep their incoming order.
func rank(scores []LabelScore) []LabelScore {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores
}

func (c Config) timeout() time.Duration {
	if c.TimeoutSeconds > 0 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}
	return defaultHTTPTimeout
}
