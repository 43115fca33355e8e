package bootstrap

import (
	"os"
	"strconv"
	"time"
)

// Config is the process configuration, loaded from the environment. Stores
// are optional: leaving their addresses empty runs the pipeline without
// frame history or turn persistence.
type Config struct {
	ServerAddr string

	AIEndpoint      string
	AIAPIKey        string
	AIUseBearer     bool
	VisionModel     string
	AudioDeployment string
	CommitInterval  int
	VisionPrompt    string
	AudioPrompt     string
	MaxContextPairs int

	CaptureInterval time.Duration
	FrameMaxWidth   int
	JPEGQuality     int
	DiffThreshold   int

	AudioTargetRate int
	AudioChunkMS    int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	FrameTTL      time.Duration

	DatabaseDSN string
}

const (
	defaultVisionPrompt = "You are observing the user's screen. Describe meaningful changes concisely and point out anything that looks actionable."
	defaultAudioPrompt  = "You are listening to the user's surroundings. Summarize what is being discussed and surface helpful suggestions."
)

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		AIEndpoint:      getEnv("AI_ENDPOINT", ""),
		AIAPIKey:        getEnv("AI_API_KEY", ""),
		AIUseBearer:     getEnv("AI_AUTH_BEARER", "false") == "true",
		VisionModel:     getEnv("VISION_MODEL", "gpt-4.1-mini"),
		AudioDeployment: getEnv("AUDIO_DEPLOYMENT", "gpt-4o-realtime-preview"),
		CommitInterval:  getEnvInt("AUDIO_COMMIT_INTERVAL", 60),
		VisionPrompt:    getEnv("VISION_PROMPT", defaultVisionPrompt),
		AudioPrompt:     getEnv("AUDIO_PROMPT", defaultAudioPrompt),
		MaxContextPairs: getEnvInt("MAX_CONTEXT_PAIRS", 8),

		CaptureInterval: time.Duration(getEnvInt("CAPTURE_INTERVAL_MS", 2000)) * time.Millisecond,
		FrameMaxWidth:   getEnvInt("FRAME_MAX_WIDTH", 1024),
		JPEGQuality:     getEnvInt("JPEG_QUALITY", 75),
		DiffThreshold:   getEnvInt("DIFF_THRESHOLD", 5),

		AudioTargetRate: getEnvInt("AUDIO_TARGET_RATE", 24000),
		AudioChunkMS:    getEnvInt("AUDIO_CHUNK_MS", 250),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		FrameTTL:      time.Duration(getEnvInt("FRAME_TTL_SECONDS", 60)) * time.Second,

		DatabaseDSN: getEnv("DATABASE_DSN", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
