package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Pipeline PipelineConfig
	Model    ModelConfig
	Database DatabaseConfig
	Web      WebConfig
}

// PipelineConfig controls identity resolution and lifecycle behavior.
type PipelineConfig struct {
	// DetectionSkipFrames runs identity resolution every Nth frame.
	DetectionSkipFrames int `yaml:"detection_skip_frames"`
	// DetectionConfThreshold is the minimum detection confidence a face
	// needs to qualify for identity resolution.
	DetectionConfThreshold float64 `yaml:"detection_conf_threshold"`
	// SimilarityThreshold is the minimum cosine similarity for an
	// embedding match against the gallery.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// DiversityThreshold gates gallery growth: a new embedding is stored
	// only if its max similarity against the person's recent embeddings
	// stays strictly below this value.
	DiversityThreshold float64 `yaml:"diversity_threshold"`
	// ExitFrameThreshold is the number of consecutive unmatched frames
	// before a person is considered exited.
	ExitFrameThreshold int `yaml:"exit_frame_threshold"`
	// SaveCropped enables evidence crop saving for entry/exit events.
	SaveCropped bool `yaml:"save_cropped"`
	// LogsFolder is the root directory for evidence crops and event logs.
	LogsFolder string `yaml:"logs_folder"`
}

type ModelConfig struct {
	URL string `yaml:"url"` // base URL of the detection/embedding model server
	Dim int    `yaml:"embedding_dim"`
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MariaDBDSN   string // MariaDB DSN, used when DATABASE_URL is unset
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
	HNSWEnabled  bool   // Enable HNSW acceleration for gallery matching
}

type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type defaultsFile struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Model    ModelConfig    `yaml:"model"`
	Web      WebConfig      `yaml:"web"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean.
// Returns the default value if the env var is unset or invalid.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envString reads an environment variable, falling back to a default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Load builds the configuration from the embedded defaults overlaid with
// environment variables. A .env file, if present, is loaded by the CLI
// before this is called.
func Load() *Config {
	var defaults defaultsFile
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Pipeline: PipelineConfig{
			DetectionSkipFrames:    envInt("DETECTION_SKIP_FRAMES", defaults.Pipeline.DetectionSkipFrames),
			DetectionConfThreshold: envFloat("DETECTION_CONF_THRESHOLD", defaults.Pipeline.DetectionConfThreshold),
			SimilarityThreshold:    envFloat("SIMILARITY_THRESHOLD", defaults.Pipeline.SimilarityThreshold),
			DiversityThreshold:     envFloat("DIVERSITY_THRESHOLD", defaults.Pipeline.DiversityThreshold),
			ExitFrameThreshold:     envInt("EXIT_FRAME_THRESHOLD", defaults.Pipeline.ExitFrameThreshold),
			SaveCropped:            envBool("SAVE_CROPPED", defaults.Pipeline.SaveCropped),
			LogsFolder:             envString("LOGS_FOLDER", defaults.Pipeline.LogsFolder),
		},
		Model: ModelConfig{
			URL: envString("MODEL_URL", defaults.Model.URL),
			Dim: envInt("EMBEDDING_DIM", defaults.Model.Dim),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MariaDBDSN:   os.Getenv("MARIADB_DSN"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWEnabled:  envBool("HNSW_INDEX", false),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", defaults.Web.Host),
			Port: envInt("WEB_PORT", defaults.Web.Port),
		},
	}
}
