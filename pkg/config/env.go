package config

const (
	EnvPort           = "PORT"
	EnvLogLevel       = "LOG_LEVEL"
	EnvClientURL      = "CLIENT_URL"
	EnvAllowedOrigins = "ALLOWED_ORIGINS"

	EnvStoreBackend      = "STORE_BACKEND"
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvFirestoreProjectID      = "FIRESTORE_PROJECT_ID"
	EnvFirebaseCredentialsFile = "FIREBASE_CREDENTIALS_FILE"

	EnvStripeSecretKey     = "STRIPE_SECRET_KEY"
	EnvStripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"
	EnvStripeCurrency      = "STRIPE_CURRENCY"

	EnvMpesaEnv            = "MPESA_ENV"
	EnvMpesaConsumerKey    = "MPESA_CONSUMER_KEY"
	EnvMpesaConsumerSecret = "MPESA_CONSUMER_SECRET"
	EnvMpesaShortcode      = "MPESA_SHORTCODE"
	EnvMpesaPasskey        = "MPESA_PASSKEY"
	EnvMpesaHTTPTimeout    = "MPESA_HTTP_TIMEOUT"
	EnvServerURL           = "SERVER_URL"

	EnvRedisURL = "REDIS_URL"

	EnvSMTPHost     = "SMTP_HOST"
	EnvSMTPPort     = "SMTP_PORT"
	EnvSMTPUser     = "SMTP_USER"
	EnvSMTPPass     = "SMTP_PASS"
	EnvMailFromName = "MAIL_FROM_NAME"

	EnvNotifyQueue    = "NOTIFY_QUEUE"
	EnvNotifyWorkers  = "NOTIFY_WORKERS"
	EnvNotifyBuffer   = "NOTIFY_BUFFER"
	EnvKafkaBrokers   = "KAFKA_BROKERS"
	EnvNotifyTopic    = "NOTIFY_TOPIC"
	EnvNotifyDLQTopic = "NOTIFY_DLQ_TOPIC"
	EnvNotifyGroupID  = "NOTIFY_GROUP_ID"

	EnvJWTSecret     = "JWT_SECRET"
	EnvJWTTTL        = "JWT_TTL"
	EnvAdminEmail    = "ADMIN_EMAIL"
	EnvAdminPassword = "ADMIN_PASSWORD"

	EnvReconcileEnabled  = "RECONCILE_ENABLED"
	EnvReconcileInterval = "RECONCILE_INTERVAL"
	EnvReconcileAfter    = "RECONCILE_AFTER"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
