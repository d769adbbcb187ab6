package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string
	NodeEnv       string
	DataDir       string
	JWTSecret     string
	JWTExpiresIn  string
	AdminPassword string

	// Credential vault
	MasterKey        string
	PBKDF2Iterations int

	// Sync
	SyncChunkSize       int
	InitialSyncLookback uint32

	// Detection
	URLLengthHighRisk   int
	URLLengthSuspicious int
	ScoreSuspicious     float64
	ScoreHighRisk       float64
	MLModelPath         string

	// SSE
	SSEQueueCapacity    int
	SSEKeepaliveSeconds int
}

var AppConfig *Config

// Load reads configuration from the environment with sane defaults.
// Every knob can be overridden via MS_* environment variables.
func Load() *Config {
	v := viper.New()
	v.SetEnvPrefix("MS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", "3001")
	v.SetDefault("node_env", "development")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("jwt_expires_in", "168h") // 7 days
	v.SetDefault("pbkdf2_iterations", 100000)
	v.SetDefault("sync_chunk_size", 20)
	v.SetDefault("initial_sync_lookback", 50)
	v.SetDefault("url_length_high_risk", 150)
	v.SetDefault("url_length_suspicious", 100)
	v.SetDefault("score_suspicious", 0.6)
	v.SetDefault("score_high_risk", 0.8)
	v.SetDefault("ml_model_path", "./data/phishing_model.json")
	v.SetDefault("sse_queue_capacity", 100)
	v.SetDefault("sse_keepalive_seconds", 15)

	config := &Config{
		Port:                v.GetString("port"),
		NodeEnv:             v.GetString("node_env"),
		DataDir:             v.GetString("data_dir"),
		JWTSecret:           jwtSecret(v),
		JWTExpiresIn:        v.GetString("jwt_expires_in"),
		AdminPassword:       v.GetString("admin_password"),
		MasterKey:           masterKey(v),
		PBKDF2Iterations:    v.GetInt("pbkdf2_iterations"),
		SyncChunkSize:       v.GetInt("sync_chunk_size"),
		InitialSyncLookback: v.GetUint32("initial_sync_lookback"),
		URLLengthHighRisk:   v.GetInt("url_length_high_risk"),
		URLLengthSuspicious: v.GetInt("url_length_suspicious"),
		ScoreSuspicious:     v.GetFloat64("score_suspicious"),
		ScoreHighRisk:       v.GetFloat64("score_high_risk"),
		MLModelPath:         v.GetString("ml_model_path"),
		SSEQueueCapacity:    v.GetInt("sse_queue_capacity"),
		SSEKeepaliveSeconds: v.GetInt("sse_keepalive_seconds"),
	}
	AppConfig = config
	return config
}

func jwtSecret(v *viper.Viper) string {
	secret := v.GetString("jwt_secret")
	if secret != "" {
		return secret
	}

	if v.GetString("node_env") == "production" {
		log.Println("⚠️ WARNING: MS_JWT_SECRET not set in production. Using generated secret (will change on restart).")
	}

	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Fatal("Failed to generate JWT secret:", err)
	}
	return hex.EncodeToString(bytes)
}

func masterKey(v *viper.Viper) string {
	key := v.GetString("master_key")
	if key != "" {
		return key
	}

	if v.GetString("node_env") == "production" {
		log.Println("⚠️ WARNING: MS_MASTER_KEY not set in production. Stored mailbox credentials will be unreadable after restart.")
	}

	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Fatal("Failed to generate master key:", err)
	}
	return hex.EncodeToString(bytes)
}
