package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/uma-arai/sbcntr-counseling/internal/common/database"
)

// ストアの実装種別
const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

type Config struct {
	Env      string
	AppPort  string
	LogLevel string

	StoreDriver   string
	StoreSeedFile string

	DB    database.Config
	Redis RedisConfig
	SFN   struct {
		TaskToken string
	}

	Booking   BookingConfig
	Screening ScreeningConfig

	RateLimitPerMin int
	EnableTracing   bool
}

type RedisConfig struct {
	Addr     string
	Password string
	CacheDB  int
	QueueDB  int
	// カウンセラープロフィールのキャッシュ有効期間
	CounselorCacheTTL time.Duration
}

type BookingConfig struct {
	MeetingBaseURL string
	// 0の場合は上限なし
	ProfessionalMonthlyLimit int
	ReminderLead             time.Duration
}

// ScreeningConfig はスクリーニング判定に使うキーワード一覧です
// 空のリストはデフォルト値で置き換えられます
type ScreeningConfig struct {
	SevereKeywords       []string `mapstructure:"severe_keywords"`
	ModerateKeywords     []string `mapstructure:"moderate_keywords"`
	AffirmativePrefixes  []string `mapstructure:"affirmative_prefixes"`
	NegativePrefixes     []string `mapstructure:"negative_prefixes"`
	// 自傷の質問への否定の回答から除外する、質問をなぞった語句
	QuestionEchoKeywords []string `mapstructure:"question_echo_keywords"`
}

// LoadConfig は設定を読み込みます
// 環境変数 > config.yaml > デフォルト値 の順に優先されます
func LoadConfig(taskToken string) (*Config, error) {
	// .envがあれば環境変数に展開する（存在しない場合は無視）
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env file: %v", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	cfg := &Config{
		Env:           v.GetString("ENV"),
		AppPort:       v.GetString("APP_PORT"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		StoreDriver:   strings.ToLower(v.GetString("STORE_DRIVER")),
		StoreSeedFile: v.GetString("STORE_SEED_FILE"),
		DB: database.Config{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			UserName: v.GetString("DB_USERNAME"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
		},
		Redis: RedisConfig{
			Addr:              v.GetString("REDIS_ADDR"),
			Password:          v.GetString("REDIS_PASSWORD"),
			CacheDB:           v.GetInt("REDIS_CACHE_DB"),
			QueueDB:           v.GetInt("REDIS_QUEUE_DB"),
			CounselorCacheTTL: v.GetDuration("COUNSELOR_CACHE_TTL"),
		},
		Booking: BookingConfig{
			MeetingBaseURL:           v.GetString("MEETING_BASE_URL"),
			ProfessionalMonthlyLimit: v.GetInt("PROFESSIONAL_MONTHLY_LIMIT"),
			ReminderLead:             v.GetDuration("REMINDER_LEAD"),
		},
		RateLimitPerMin: v.GetInt("RATE_LIMIT_PER_MIN"),
	}
	cfg.SFN.TaskToken = taskToken

	if err := v.UnmarshalKey("screening", &cfg.Screening); err != nil {
		return nil, err
	}

	// 環境変数[SBCNTR_ENABLE_TRACING]を見てトレースを有効にする。対応しているTracingはAWS_XRAYのみ。
	// 環境変数[AWS_XRAY_SDK_DISABLED]がtrueの場合は必ずトレースを無効にする。
	enableKey := os.Getenv("SBCNTR_ENABLE_TRACING")
	if !sdkDisabled() && (strings.ToLower(enableKey) == "true" || enableKey == "1") {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "FALSE")
		cfg.EnableTracing = true
	} else {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")
		cfg.EnableTracing = false
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", StoreDriverMemory)
	v.SetDefault("STORE_SEED_FILE", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USERNAME", "sbcntrapp")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "sbcntrapp")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_CACHE_DB", 0)
	v.SetDefault("REDIS_QUEUE_DB", 1)
	v.SetDefault("COUNSELOR_CACHE_TTL", 5*time.Minute)
	v.SetDefault("MEETING_BASE_URL", "https://meet.google.com")
	v.SetDefault("PROFESSIONAL_MONTHLY_LIMIT", 4)
	v.SetDefault("REMINDER_LEAD", 30*time.Minute)
	v.SetDefault("RATE_LIMIT_PER_MIN", 120)
}

// IsProduction は本番環境かどうかを返します
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// IsLocal はStep Functions等の外部サービスを使わないローカル実行かどうかを返します
func (c *Config) IsLocal() bool {
	return strings.EqualFold(c.Env, "LOCAL")
}

// Check if SDK is disabled
func sdkDisabled() bool {
	disableKey := os.Getenv("AWS_XRAY_SDK_DISABLED")
	return strings.ToLower(disableKey) == "true"
}
