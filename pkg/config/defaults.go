package config

import "time"

const (
	StoreMemory    = "memory"
	StoreMongo     = "mongo"
	StoreFirestore = "firestore"

	QueueMemory = "memory"
	QueueKafka  = "kafka"

	MpesaSandbox    = "sandbox"
	MpesaProduction = "production"
)

const (
	DefaultPort           = "5000"
	DefaultLogLevel       = "info"
	DefaultAllowedOrigins = "http://localhost:5173,http://localhost:4173"

	DefaultStoreBackend      = StoreMemory
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "geranium"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultStripeCurrency = "kes"

	DefaultMpesaEnv         = MpesaSandbox
	DefaultMpesaHTTPTimeout = 15 * time.Second
	DefaultServerURL        = "http://localhost:5000"

	DefaultSMTPPort     = 587
	DefaultMailFromName = "Geranium Cleaning Services"

	DefaultNotifyQueue    = QueueMemory
	DefaultNotifyWorkers  = 2
	DefaultNotifyBuffer   = 100
	DefaultNotifyTopic    = "booking-notifications"
	DefaultNotifyDLQTopic = "booking-notifications-dlq"
	DefaultNotifyGroupID  = "geranium-notifier"

	DefaultJWTSecret     = "change-me-in-production"
	DefaultJWTTTL        = 7 * 24 * time.Hour
	DefaultAdminEmail    = "bookings@geraniumcleaning.co.ke"
	DefaultAdminPassword = "admin123"

	DefaultReconcileEnabled  = true
	DefaultReconcileInterval = 2 * time.Minute
	DefaultReconcileAfter    = 5 * time.Minute

	DefaultRateLimitRequests = 100
	DefaultRateLimitWindow   = 15 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 35 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)
