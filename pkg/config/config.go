package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"geranium/pkg/client"
	"geranium/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	ClientURL      string
	AllowedOrigins []string

	StoreBackend      string
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	FirestoreProjectID      string
	FirebaseCredentialsFile string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeCurrency      string

	MpesaEnv            string
	MpesaConsumerKey    string
	MpesaConsumerSecret string
	MpesaShortcode      string
	MpesaPasskey        string
	MpesaHTTPTimeout    time.Duration
	ServerURL           string

	RedisURL string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPass     string
	MailFromName string

	NotifyQueue    string
	NotifyWorkers  int
	NotifyBuffer   int
	KafkaBrokers   []string
	NotifyTopic    string
	NotifyDLQTopic string
	NotifyGroupID  string

	JWTSecret     string
	JWTTTL        time.Duration
	AdminEmail    string
	AdminPassword string

	ReconcileEnabled  bool
	ReconcileInterval time.Duration
	ReconcileAfter    time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

// Load reads a local .env file when one exists, then builds the
// configuration from the environment. Invalid configuration is fatal.
func Load(serviceName string) *Config {
	_ = godotenv.Load()

	cfg := FromEnv()
	cfg.Log = logger.New(logger.Config{
		Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})
	cfg.Client = client.NewClient()

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv reads every setting without validating or connecting anything.
func FromEnv() *Config {
	clientURL := getEnvStr(EnvClientURL, "")
	origins := splitList(getEnvStr(EnvAllowedOrigins, DefaultAllowedOrigins))
	if clientURL != "" {
		origins = append(origins, clientURL)
	}

	return &Config{
		Port:           getEnvStr(EnvPort, DefaultPort),
		ClientURL:      clientURL,
		AllowedOrigins: origins,

		StoreBackend:      strings.ToLower(getEnvStr(EnvStoreBackend, DefaultStoreBackend)),
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		FirestoreProjectID:      getEnvStr(EnvFirestoreProjectID, ""),
		FirebaseCredentialsFile: getEnvStr(EnvFirebaseCredentialsFile, ""),

		StripeSecretKey:     getEnvStr(EnvStripeSecretKey, ""),
		StripeWebhookSecret: getEnvStr(EnvStripeWebhookSecret, ""),
		StripeCurrency:      strings.ToLower(getEnvStr(EnvStripeCurrency, DefaultStripeCurrency)),

		MpesaEnv:            strings.ToLower(getEnvStr(EnvMpesaEnv, DefaultMpesaEnv)),
		MpesaConsumerKey:    getEnvStr(EnvMpesaConsumerKey, ""),
		MpesaConsumerSecret: getEnvStr(EnvMpesaConsumerSecret, ""),
		MpesaShortcode:      getEnvStr(EnvMpesaShortcode, ""),
		MpesaPasskey:        getEnvStr(EnvMpesaPasskey, ""),
		MpesaHTTPTimeout:    getEnvDuration(EnvMpesaHTTPTimeout, DefaultMpesaHTTPTimeout),
		ServerURL:           strings.TrimRight(getEnvStr(EnvServerURL, DefaultServerURL), "/"),

		RedisURL: getEnvStr(EnvRedisURL, ""),

		SMTPHost:     getEnvStr(EnvSMTPHost, ""),
		SMTPPort:     getEnvNum(EnvSMTPPort, DefaultSMTPPort),
		SMTPUser:     getEnvStr(EnvSMTPUser, ""),
		SMTPPass:     getEnvStr(EnvSMTPPass, ""),
		MailFromName: getEnvStr(EnvMailFromName, DefaultMailFromName),

		NotifyQueue:    strings.ToLower(getEnvStr(EnvNotifyQueue, DefaultNotifyQueue)),
		NotifyWorkers:  getEnvNum(EnvNotifyWorkers, DefaultNotifyWorkers),
		NotifyBuffer:   getEnvNum(EnvNotifyBuffer, DefaultNotifyBuffer),
		KafkaBrokers:   splitList(getEnvStr(EnvKafkaBrokers, "")),
		NotifyTopic:    getEnvStr(EnvNotifyTopic, DefaultNotifyTopic),
		NotifyDLQTopic: getEnvStr(EnvNotifyDLQTopic, DefaultNotifyDLQTopic),
		NotifyGroupID:  getEnvStr(EnvNotifyGroupID, DefaultNotifyGroupID),

		JWTSecret:     getEnvStr(EnvJWTSecret, DefaultJWTSecret),
		JWTTTL:        getEnvDuration(EnvJWTTTL, DefaultJWTTTL),
		AdminEmail:    strings.ToLower(getEnvStr(EnvAdminEmail, DefaultAdminEmail)),
		AdminPassword: getEnvStr(EnvAdminPassword, DefaultAdminPassword),

		ReconcileEnabled:  getEnvBool(EnvReconcileEnabled, DefaultReconcileEnabled),
		ReconcileInterval: getEnvDuration(EnvReconcileInterval, DefaultReconcileInterval),
		ReconcileAfter:    getEnvDuration(EnvReconcileAfter, DefaultReconcileAfter),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetFirestore(ctx context.Context) {
	cfg.Client.SetFirestore(ctx, cfg.Log, cfg.FirestoreProjectID, cfg.FirebaseCredentialsFile)
}

// SetRedis connects the shared token cache. Without REDIS_URL the process
// keeps tokens in memory.
func (cfg *Config) SetRedis(ctx context.Context) {
	if cfg.RedisURL == "" {
		return
	}
	cfg.Client.SetRedis(ctx, cfg.Log, cfg.RedisURL)
}

func (cfg *Config) MpesaConfigured() bool {
	return cfg.MpesaConsumerKey != "" && cfg.MpesaConsumerSecret != "" &&
		cfg.MpesaShortcode != "" && cfg.MpesaPasskey != ""
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StoreBackend {
	case StoreMemory:
	case StoreMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	case StoreFirestore:
		if cfg.FirestoreProjectID == "" {
			errors = append(errors, "FirestoreProjectID cannot be empty when StoreBackend is firestore")
		}
	default:
		errors = append(errors, fmt.Sprintf("StoreBackend must be one of memory, mongo, firestore, got: %s", cfg.StoreBackend))
	}

	if cfg.MpesaEnv != MpesaSandbox && cfg.MpesaEnv != MpesaProduction {
		errors = append(errors, fmt.Sprintf("MpesaEnv must be sandbox or production, got: %s", cfg.MpesaEnv))
	}
	if u, err := url.Parse(cfg.ServerURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("ServerURL must be an absolute URL, got: %s", cfg.ServerURL))
	}
	if len(cfg.StripeCurrency) != 3 {
		errors = append(errors, fmt.Sprintf("StripeCurrency must be a 3 letter code, got: %s", cfg.StripeCurrency))
	}

	switch cfg.NotifyQueue {
	case QueueMemory:
	case QueueKafka:
		if len(cfg.KafkaBrokers) == 0 {
			errors = append(errors, "KafkaBrokers cannot be empty when NotifyQueue is kafka")
		}
		if cfg.NotifyTopic == "" || cfg.NotifyGroupID == "" {
			errors = append(errors, "NotifyTopic and NotifyGroupID cannot be empty when NotifyQueue is kafka")
		}
	default:
		errors = append(errors, fmt.Sprintf("NotifyQueue must be memory or kafka, got: %s", cfg.NotifyQueue))
	}
	if cfg.NotifyWorkers <= 0 {
		errors = append(errors, fmt.Sprintf("NotifyWorkers must be positive, got: %d", cfg.NotifyWorkers))
	}
	if cfg.NotifyBuffer <= 0 {
		errors = append(errors, fmt.Sprintf("NotifyBuffer must be positive, got: %d", cfg.NotifyBuffer))
	}
	if cfg.SMTPPort < 1 || cfg.SMTPPort > 65535 {
		errors = append(errors, fmt.Sprintf("SMTPPort must be between 1 and 65535, got: %d", cfg.SMTPPort))
	}

	if cfg.JWTSecret == "" {
		errors = append(errors, "JWTSecret cannot be empty")
	}
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		errors = append(errors, "AdminEmail and AdminPassword cannot be empty")
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"JWTTTL", cfg.JWTTTL},
		{"MpesaHTTPTimeout", cfg.MpesaHTTPTimeout},
		{"ReconcileInterval", cfg.ReconcileInterval},
		{"ReconcileAfter", cfg.ReconcileAfter},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", d.name, d.value))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"port", cfg.Port,
		"allowed_origins", cfg.AllowedOrigins,
		"store_backend", cfg.StoreBackend,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"firestore_project", cfg.FirestoreProjectID,
		"stripe_key_set", cfg.StripeSecretKey != "",
		"stripe_webhook_secret_set", cfg.StripeWebhookSecret != "",
		"stripe_currency", cfg.StripeCurrency,
		"mpesa_env", cfg.MpesaEnv,
		"mpesa_configured", cfg.MpesaConfigured(),
		"server_url", cfg.ServerURL,
		"redis_set", cfg.RedisURL != "",
		"smtp_host", cfg.SMTPHost,
		"smtp_port", cfg.SMTPPort,
		"smtp_user_set", cfg.SMTPUser != "",
		"notify_queue", cfg.NotifyQueue,
		"notify_workers", cfg.NotifyWorkers,
		"notify_buffer", cfg.NotifyBuffer,
		"kafka_brokers", cfg.KafkaBrokers,
		"admin_email", cfg.AdminEmail,
		"jwt_default_secret", cfg.JWTSecret == DefaultJWTSecret,
		"jwt_ttl", cfg.JWTTTL,
		"reconcile_enabled", cfg.ReconcileEnabled,
		"reconcile_interval", cfg.ReconcileInterval,
		"reconcile_after", cfg.ReconcileAfter,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
