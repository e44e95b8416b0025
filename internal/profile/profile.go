package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the router.
type Profile struct {
	Mode    string
	Addr    string
	Data    string
	Driver  string
	DSN     string
	Version string
	Port    int

	// Logging
	LogLevel  string
	LogFormat string

	// AgentProfile is an optional path to a YAML agent profile overriding the embedded one.
	AgentProfile string

	// Learning knobs. Zero values mean "use routing defaults".
	LearningRate         float64
	MLThreshold          float64
	MinPatternConfidence float64
	MaturityThreshold    int
	AutoInit             bool

	// FeedbackRPS limits feedback ingress on the HTTP adapter. Zero disables limiting.
	FeedbackRPS   float64
	FeedbackBurst int
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default value.
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		slog.Warn("Ignoring malformed float env", "key", key, "value", value)
	}
	return defaultValue
}

// FromEnv loads learning and ingress configuration from environment variables.
// Values already set (e.g. from flags) are kept.
func (p *Profile) FromEnv() {
	if p.LearningRate == 0 {
		p.LearningRate = getEnvOrDefaultFloat("AGENTROUTER_LEARNING_RATE", 0)
	}
	if p.MLThreshold == 0 {
		p.MLThreshold = getEnvOrDefaultFloat("AGENTROUTER_ML_THRESHOLD", 0)
	}
	if p.MinPatternConfidence == 0 {
		p.MinPatternConfidence = getEnvOrDefaultFloat("AGENTROUTER_MIN_PATTERN_CONFIDENCE", 0)
	}
	if p.MaturityThreshold == 0 {
		p.MaturityThreshold = getEnvOrDefaultInt("AGENTROUTER_MATURITY_THRESHOLD", 0)
	}
	if p.FeedbackRPS == 0 {
		p.FeedbackRPS = getEnvOrDefaultFloat("AGENTROUTER_FEEDBACK_RPS", 20)
	}
	if p.FeedbackBurst == 0 {
		p.FeedbackBurst = getEnvOrDefaultInt("AGENTROUTER_FEEDBACK_BURST", 40)
	}
	if p.AgentProfile == "" {
		p.AgentProfile = getEnvOrDefault("AGENTROUTER_AGENT_PROFILE", "")
	}
	p.AutoInit = getEnvOrDefault("AGENTROUTER_AUTO_INIT", "true") != "false"
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "agentrouter")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/agentrouter"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	switch p.Driver {
	case "sqlite":
		if p.DSN == "" {
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("agentrouter_%s.db", p.Mode))
		}
	case "postgres":
		if p.DSN == "" {
			return errors.New("dsn required for postgres driver")
		}
	default:
		return errors.Errorf("unsupported driver: %s", p.Driver)
	}

	if p.LearningRate < 0 || p.LearningRate > 1 {
		return errors.Errorf("learning rate must be within [0,1], got %v", p.LearningRate)
	}
	if p.MLThreshold < 0 || p.MLThreshold > 1 {
		return errors.Errorf("ml threshold must be within [0,1], got %v", p.MLThreshold)
	}
	if p.MaturityThreshold < 0 {
		return errors.Errorf("maturity threshold must not be negative, got %d", p.MaturityThreshold)
	}

	return nil
}
