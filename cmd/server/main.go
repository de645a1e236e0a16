package main

import (
	"context"

	adminauth "geranium/internal/admin/auth"
	adminhandler "geranium/internal/admin/handler"
	adminservice "geranium/internal/admin/service"
	bookinghandler "geranium/internal/bookings/handler"
	"geranium/internal/bookings/repository"
	bookingservice "geranium/internal/bookings/service"
	"geranium/internal/bookings/validator"
	"geranium/internal/health"
	"geranium/internal/notifications"
	"geranium/internal/payments/card"
	paymenthandler "geranium/internal/payments/handler"
	"geranium/internal/payments/mpesa"
	"geranium/internal/payments/reconciler"
	paymentservice "geranium/internal/payments/service"
	"geranium/pkg/app"
	"geranium/pkg/config"
	"geranium/pkg/kafka"
	kafka_config "geranium/pkg/kafka/config"
	kafkamiddleware "geranium/pkg/kafka/middleware"
)

const ServiceName = "geranium-api"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Geranium booking service")

	store := initStore(ctx, cfg)
	cfg.SetRedis(ctx)

	deadLetters := notifications.NewLogDeadLetters(cfg.Log)
	components := []health.Component{
		{Name: "deadLetters", Snapshot: func() any { return deadLetters.Total() }},
	}

	queue, kafkaMetrics := initQueue(cfg, deadLetters)
	if kafkaMetrics != nil {
		components = append(components, health.Component{
			Name:     "kafka",
			Snapshot: func() any { return kafkaMetrics.Snapshot() },
		})
	}

	dispatcher := notifications.NewDispatcher(queue, initMailer(cfg), initRenderer(cfg), deadLetters, cfg.Log)
	if err := dispatcher.Start(ctx); err != nil {
		cfg.Log.Fatal("Failed to start notification dispatcher", "error", err)
	}
	components = append(components, health.Component{
		Name:     "notifications",
		Snapshot: func() any { return dispatcher.Stats() },
	})

	bookings := bookingservice.NewBookingService(store, validator.NewBookingValidator(cfg.Log), dispatcher, cfg)
	payments := paymentservice.NewPaymentService(store, initCards(cfg), initMpesa(cfg), dispatcher, cfg)

	authenticator, err := adminauth.NewAuthenticator(cfg.AdminEmail, cfg.AdminPassword, cfg.JWTSecret, cfg.JWTTTL, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize admin authentication", "error", err)
	}
	admin := adminservice.NewAdminService(store, bookings, cfg)

	serverApp := app.NewApplication(cfg)
	serverApp.OnShutdown(dispatcher)
	if r := initReconciler(cfg, payments); r != nil {
		serverApp.OnShutdown(r)
	}

	serverApp.SetApp(
		health.NewHealthHandler(store, cfg.StoreBackend, cfg.Log, components...),
		bookinghandler.NewBookingHandler(bookings, authenticator.RequireAdmin, cfg.Log),
		paymenthandler.NewPaymentHandler(payments, cfg.Log),
		adminhandler.NewAdminHandler(admin, authenticator, cfg.Log),
	)
	serverApp.Run()
}

func initStore(ctx context.Context, cfg *config.Config) repository.BookingStore {
	switch cfg.StoreBackend {
	case config.StoreMongo:
		cfg.SetMongo()
		cfg.Log.Info("Booking store initialized", "backend", cfg.StoreBackend, "database", cfg.MongoDatabaseName)
		return repository.NewMongoBookingStore(cfg)
	case config.StoreFirestore:
		cfg.SetFirestore(ctx)
		cfg.Log.Info("Booking store initialized", "backend", cfg.StoreBackend, "project", cfg.FirestoreProjectID)
		return repository.NewFirestoreBookingStore(cfg.Client.Firestore)
	default:
		cfg.Log.Warn("Using in-memory booking store, data is lost on restart")
		return repository.NewMemoryBookingStore()
	}
}

func initQueue(cfg *config.Config, deadLetters notifications.DeadLetterSink) (notifications.Queue, *kafkamiddleware.Metrics) {
	if cfg.NotifyQueue != config.QueueKafka {
		return notifications.NewMemoryQueue(cfg.NotifyBuffer, cfg.NotifyWorkers, deadLetters, cfg.Log), nil
	}

	kafkaCfg, err := kafka_config.Load(cfg.KafkaBrokers)
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	metrics := kafkamiddleware.NewMetrics()

	producer, err := kafka.NewProducer(kafkaCfg, cfg.NotifyTopic, cfg.NotifyDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(metrics.ProducerMiddleware())

	newConsumer := func(handler kafka.MessageHandler) (*kafka.Consumer, error) {
		consumer, err := kafka.NewConsumer(kafkaCfg, cfg.NotifyTopic, cfg.NotifyGroupID, cfg.NotifyDLQTopic, handler, cfg.Log)
		if err != nil {
			return nil, err
		}
		consumer.Use(kafkamiddleware.LoggingConsumerMiddleware(cfg.Log))
		consumer.Use(metrics.ConsumerMiddleware())
		return consumer, nil
	}

	cfg.Log.Info("Notification queue backed by Kafka", "topic", cfg.NotifyTopic, "group", cfg.NotifyGroupID)
	return notifications.NewKafkaQueue(producer, newConsumer, cfg.NotifyBuffer, deadLetters, cfg.Log), metrics
}

func initMailer(cfg *config.Config) notifications.Mailer {
	if cfg.SMTPHost == "" {
		cfg.Log.Warn("SMTP not configured, emails are logged instead of sent")
		return notifications.NewLogMailer(cfg.Log)
	}
	mailer, err := notifications.NewSMTPMailer(notifications.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		FromName: cfg.MailFromName,
	})
	if err != nil {
		cfg.Log.Fatal("Failed to create SMTP mailer", "error", err)
	}
	return mailer
}

func initRenderer(cfg *config.Config) *notifications.Renderer {
	renderer, err := notifications.NewRenderer(cfg.AdminEmail, cfg.ClientURL)
	if err != nil {
		cfg.Log.Fatal("Failed to parse email templates", "error", err)
	}
	return renderer
}

func initCards(cfg *config.Config) card.Gateway {
	if cfg.StripeSecretKey == "" {
		cfg.Log.Warn("Stripe not configured, card payments disabled")
		return nil
	}
	return card.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.Log)
}

func initMpesa(cfg *config.Config) paymentservice.MpesaGateway {
	if !cfg.MpesaConfigured() {
		cfg.Log.Warn("M-Pesa not configured, STK push disabled")
		return nil
	}

	var tokens mpesa.TokenCache
	if cfg.Client.Redis != nil {
		tokens = mpesa.NewRedisTokenCache(cfg.Client.Redis, cfg.Log)
	} else {
		tokens = mpesa.NewMemoryTokenCache()
	}

	return mpesa.NewClient(mpesa.Config{
		BaseURL:        mpesa.BaseURL(cfg.MpesaEnv),
		ConsumerKey:    cfg.MpesaConsumerKey,
		ConsumerSecret: cfg.MpesaConsumerSecret,
		Shortcode:      cfg.MpesaShortcode,
		Passkey:        cfg.MpesaPasskey,
		CallbackURL:    cfg.ServerURL + mpesa.CallbackPath,
		Timeout:        cfg.MpesaHTTPTimeout,
	}, tokens, cfg.Log)
}

func initReconciler(cfg *config.Config, payments paymentservice.PaymentService) *reconciler.Reconciler {
	if !cfg.ReconcileEnabled || !cfg.MpesaConfigured() {
		return nil
	}
	r, err := reconciler.New(payments, cfg.ReconcileInterval, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create payment reconciler", "error", err)
	}
	if err := r.Start(); err != nil {
		cfg.Log.Fatal("Failed to start payment reconciler", "error", err)
	}
	return r
}
