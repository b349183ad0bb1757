package config

import (
	"fmt"
	"time"

	"invoicematch/internal/matching"
)

// Config is built once at startup and passed by value; nothing mutates it
// afterwards.
type Config struct {
	API        APIConfig      `koanf:"api"`
	Temporal   TemporalConfig `koanf:"temporal"`
	Postgres   PostgresConfig `koanf:"postgres"`
	Redis      RedisConfig    `koanf:"redis"`
	Kafka      KafkaConfig    `koanf:"kafka"`
	Extraction ServiceConfig  `koanf:"extraction"`
	Documents  ServiceConfig  `koanf:"documents"`
	Catalog    CatalogConfig  `koanf:"catalog"`
	Matching   MatchingConfig `koanf:"matching"`
	Pipeline   PipelineConfig `koanf:"pipeline"`
	Log        LogConfig      `koanf:"log"`
	Metrics    MetricsConfig  `koanf:"metrics"`
}

type APIConfig struct {
	Addr           string `koanf:"addr"`
	MaxUploadBytes int64  `koanf:"max_upload_bytes"`
}

type TemporalConfig struct {
	Address   string `koanf:"address"`
	Namespace string `koanf:"namespace"`
	TaskQueue string `koanf:"task_queue"`
}

type PostgresConfig struct {
	URL string `koanf:"url"`
}

type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	TTL      time.Duration `koanf:"ttl"`
}

type KafkaConfig struct {
	Brokers     []string `koanf:"brokers"`
	ExportTopic string   `koanf:"export_topic"`
}

type ServiceConfig struct {
	BaseURL  string        `koanf:"base_url"`
	Token    string        `koanf:"token"`
	Timeout  time.Duration `koanf:"timeout"`
	RetryMax int           `koanf:"retry_max"`
}

type CatalogConfig struct {
	SnapshotPath    string        `koanf:"snapshot_path"`
	CSVPath         string        `koanf:"csv_path"`
	RedisKey        string        `koanf:"redis_key"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

type WeightsConfig struct {
	Token       float64 `koanf:"token"`
	Jaccard     float64 `koanf:"jaccard"`
	Dice        float64 `koanf:"dice"`
	Cosine      float64 `koanf:"cosine"`
	Levenshtein float64 `koanf:"levenshtein"`
}

type InvertedIndexConfig struct {
	MinDocFreq int `koanf:"min_doc_freq"`
}

type MatchingConfig struct {
	AcceptanceThreshold float64             `koanf:"acceptance_threshold"`
	NoneThreshold       float64             `koanf:"none_threshold"`
	Weights             WeightsConfig       `koanf:"weights"`
	InvertedIndex       InvertedIndexConfig `koanf:"inverted_index"`
	CandidateTopN       int                 `koanf:"candidate_top_n"`
}

type PipelineConfig struct {
	PollInterval         time.Duration `koanf:"poll_interval"`
	PollTimeout          time.Duration `koanf:"poll_timeout"`
	MaxAttempts          int           `koanf:"max_attempts"`
	InitialBackoff       time.Duration `koanf:"initial_backoff"`
	BackoffCoefficient   float64       `koanf:"backoff_coefficient"`
	ScoreBatchSize       int           `koanf:"score_batch_size"`
	ActivityStartToClose time.Duration `koanf:"activity_start_to_close"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Engine returns the classification settings in the form the matching
// engine consumes.
func (m MatchingConfig) Engine() matching.Config {
	return matching.Config{
		AcceptanceThreshold: m.AcceptanceThreshold,
		NoneThreshold:       m.NoneThreshold,
		Weights: matching.Weights{
			Token:       m.Weights.Token,
			Jaccard:     m.Weights.Jaccard,
			Dice:        m.Weights.Dice,
			Cosine:      m.Weights.Cosine,
			Levenshtein: m.Weights.Levenshtein,
		},
		CandidateTopN: m.CandidateTopN,
		MinDocFreq:    m.InvertedIndex.MinDocFreq,
	}
}

func (c Config) Validate() error {
	m := c.Matching
	if m.AcceptanceThreshold < 0 || m.AcceptanceThreshold > 1 {
		return fmt.Errorf("matching.acceptance_threshold must be in [0,1], got %v", m.AcceptanceThreshold)
	}
	if m.NoneThreshold < 0 || m.NoneThreshold > 1 {
		return fmt.Errorf("matching.none_threshold must be in [0,1], got %v", m.NoneThreshold)
	}
	w := m.Weights
	for name, v := range map[string]float64{
		"token": w.Token, "jaccard": w.Jaccard, "dice": w.Dice, "cosine": w.Cosine, "levenshtein": w.Levenshtein,
	} {
		if v < 0 {
			return fmt.Errorf("matching.weights.%s must not be negative, got %v", name, v)
		}
	}
	if m.CandidateTopN <= 0 {
		return fmt.Errorf("matching.candidate_top_n must be positive, got %d", m.CandidateTopN)
	}
	p := c.Pipeline
	if p.PollInterval <= 0 || p.PollTimeout <= 0 {
		return fmt.Errorf("pipeline.poll_interval and pipeline.poll_timeout must be positive")
	}
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("pipeline.max_attempts must be positive, got %d", p.MaxAttempts)
	}
	if c.Temporal.TaskQueue == "" {
		return fmt.Errorf("temporal.task_queue is required")
	}
	return nil
}
