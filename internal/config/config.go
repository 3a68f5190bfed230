package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed calibration.yaml
var calibrationYAML []byte

type Config struct {
	Registry    RegistryConfig
	Encoding    EncodingConfig
	Database    DatabaseConfig
	MariaDB     MariaDBConfig
	Web         WebConfig
	Calibration CalibrationConfig
}

type RegistryConfig struct {
	Path string // JSON database path (default face_database.json)
}

type EncodingConfig struct {
	URL string // face encoding server URL, defaults to http://localhost:8000
	Dim int    // encoding vector dimension, defaults to 128
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL (optional, JSON file used when empty)
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MariaDBConfig struct {
	DSN string // MariaDB DSN (e.g., faceauth:faceauth@tcp(mariadb:3306)/faceauth)
}

type WebConfig struct {
	Addr string // HTTP listen address, defaults to :8080
}

type CalibrationConfig struct {
	Scoring ScoringConfig `yaml:"scoring"`
}

type ScoringConfig struct {
	MinWeight       float64 `yaml:"min_weight"`
	MeanWeight      float64 `yaml:"mean_weight"`
	Tolerance       float64 `yaml:"tolerance"`
	ConfidenceFloor float64 `yaml:"confidence_floor"`
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

// envFloat reads an environment variable and parses it as a non-negative
// float. Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var calibration CalibrationConfig
	if err := yaml.Unmarshal(calibrationYAML, &calibration); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded calibration.yaml: " + err.Error())
	}

	// FACE_AUTH_TOLERANCE overrides the calibrated default.
	calibration.Scoring.Tolerance = envFloat("FACE_AUTH_TOLERANCE", calibration.Scoring.Tolerance)

	return &Config{
		Registry: RegistryConfig{
			Path: envString("FACE_AUTH_DB", "face_database.json"),
		},
		Encoding: EncodingConfig{
			URL: os.Getenv("ENCODING_URL"),
			Dim: envInt("ENCODING_DIM", 128),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		MariaDB: MariaDBConfig{
			DSN: os.Getenv("MARIADB_DSN"),
		},
		Web: WebConfig{
			Addr: envString("FACE_AUTH_ADDR", ":8080"),
		},
		Calibration: calibration,
	}
}
