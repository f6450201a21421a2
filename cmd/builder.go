package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"order-service/api"
	"order-service/api/health"
	apiorder "order-service/api/order"
	orderapp "order-service/application/order"
	"order-service/config"
	orderdomain "order-service/domain/order"
	"order-service/domain/shared"
	"order-service/infrastructure/messaging"
	"order-service/infrastructure/messaging/kafka"
	"order-service/infrastructure/messaging/memory"
	"order-service/infrastructure/messaging/rabbitmq"
	"order-service/infrastructure/persistence"
	memrepo "order-service/infrastructure/persistence/memory"
	"order-service/infrastructure/persistence/mysql"
	"order-service/infrastructure/persistence/retry"
	"order-service/infrastructure/resilience/circuitbreaker"
	"order-service/pkg/contracts"
	"order-service/pkg/logger"
	"order-service/pkg/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AppBuilder builds an App, letting callers swap the broker or repository.
type AppBuilder struct {
	cfg    *config.Config
	log    *zap.Logger
	broker messaging.Broker
	repo   orderdomain.Repository
}

// NewBuilder creates a new AppBuilder
func NewBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

// WithLogger skips global logger initialisation and uses log instead.
func (b *AppBuilder) WithLogger(log *zap.Logger) *AppBuilder {
	b.log = log
	return b
}

// WithBroker overrides the broker selected by broker.type.
func (b *AppBuilder) WithBroker(broker messaging.Broker) *AppBuilder {
	b.broker = broker
	return b
}

// WithRepository overrides the repository selected by database.type.
func (b *AppBuilder) WithRepository(repo orderdomain.Repository) *AppBuilder {
	b.repo = repo
	return b
}

// Build wires every component and connects the broker. Nothing is listening
// until App.Run is called.
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	log, err := b.initLogger()
	if err != nil {
		return nil, err
	}

	log.Info("Starting application",
		zap.String("app", b.cfg.App.Name),
		zap.String("version", b.cfg.App.Version),
		zap.String("env", b.cfg.App.Env))

	m := metrics.New()
	breakers := circuitbreaker.NewRegistry(breakerSettings(b.cfg.CircuitBreaker),
		circuitbreaker.WithListener(circuitbreaker.LogListener(log)),
		circuitbreaker.WithListener(func(name string, event circuitbreaker.Event) {
			m.ObserveBreaker(name, string(event))
		}),
	)

	broker := b.broker
	if broker == nil {
		if broker, err = newBroker(b.cfg, log); err != nil {
			return nil, err
		}
	}
	gateway := messaging.NewGateway(broker, log, messaging.WithObserver(m))
	gateway.SubscribeToResponseOf(contracts.TopicUserVerify)
	if err := connectGateway(ctx, b.cfg, gateway, log); err != nil {
		return nil, err
	}

	var db *gorm.DB
	repo := b.repo
	if repo == nil {
		if repo, db, err = newRepository(ctx, b.cfg, log); err != nil {
			_ = gateway.Close()
			return nil, err
		}
	}

	bus := shared.NewEventBus()
	if err := orderapp.NewOrderSaga(log).Register(bus); err != nil {
		_ = gateway.Close()
		return nil, err
	}

	serviceOpts := []orderapp.Option{orderapp.WithLogger(log), orderapp.WithLocalBus(bus)}
	if db != nil {
		serviceOpts = append(serviceOpts, orderapp.WithTransactor(persistence.NewTransactor(db, retry.FromAppConfig(b.cfg))))
	}
	orderService := orderapp.NewApplicationService(
		repo,
		orderapp.NewUserVerifier(gateway, breakers, log),
		messaging.NewOrderEventPublisher(gateway),
		serviceOpts...,
	)

	var pinger health.Pinger
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			pinger = sqlDB
		}
	}

	router := api.NewRouter(b.cfg, m,
		health.NewController(b.cfg, gateway, breakers, pinger),
		apiorder.NewController(orderService),
	)
	router.SetupRoutes()

	server := &http.Server{
		Addr:         ":" + b.cfg.Server.Port,
		Handler:      router.GetEngine(),
		ReadTimeout:  b.cfg.Server.ReadTimeout,
		WriteTimeout: b.cfg.Server.WriteTimeout,
	}

	return &App{
		config:   b.cfg,
		log:      log,
		router:   router,
		server:   server,
		gateway:  gateway,
		breakers: breakers,
		db:       db,
	}, nil
}

func (b *AppBuilder) initLogger() (*zap.Logger, error) {
	if b.log != nil {
		return b.log, nil
	}
	if err := logger.Init(&b.cfg.Log, b.cfg.App.Env); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger.Get(), nil
}

func breakerSettings(c config.CircuitBreakerConfig) circuitbreaker.Settings {
	return circuitbreaker.Settings{
		ErrorThresholdPercentage: c.ErrorThresholdPercentage,
		ResetTimeout:             c.ResetTimeout,
		RollingWindow:            c.RollingWindow,
		CallTimeout:              c.CallTimeout,
		VolumeThreshold:          c.VolumeThreshold,
	}
}

// newBroker selects the transport. The in-memory broker answers user.verify
// itself and accepts every user, which is only meant for local runs.
func newBroker(cfg *config.Config, log *zap.Logger) (messaging.Broker, error) {
	switch cfg.Broker.Type {
	case "kafka":
		log.Info("Using Kafka broker", zap.String("brokers", cfg.Broker.Kafka.Brokers))
		return kafka.NewBroker(kafka.Config{
			Brokers:    kafka.ParseBrokers(cfg.Broker.Kafka.Brokers),
			ClientID:   cfg.Broker.Kafka.ClientID,
			InstanceID: cfg.Broker.Kafka.InstanceID,
		}, log), nil
	case "rabbitmq":
		log.Info("Using RabbitMQ broker", zap.String("exchange", cfg.Broker.RabbitMQ.Exchange))
		return rabbitmq.NewBroker(rabbitmq.Config{
			URL:            cfg.Broker.RabbitMQ.URL,
			Exchange:       cfg.Broker.RabbitMQ.Exchange,
			ConnectionName: cfg.App.Name,
		}, log), nil
	case "memory", "":
		log.Warn("Using in-memory broker, every user id is accepted")
		broker := memory.New()
		memory.NewUserDirectory(true).Install(broker)
		return broker, nil
	default:
		return nil, fmt.Errorf("unsupported broker type %q", cfg.Broker.Type)
	}
}

func connectGateway(ctx context.Context, cfg *config.Config, gateway *messaging.Gateway, log *zap.Logger) error {
	retryCfg := retry.ForConnect(cfg.Broker.ConnectRetry)
	retryCfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Warn("broker connect failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	if err := retry.ExecuteWithRetry(ctx, retryCfg, gateway.Connect); err != nil {
		return fmt.Errorf("broker unavailable after %d attempts: %w", retryCfg.MaxAttempts, err)
	}
	return nil
}

func newRepository(ctx context.Context, cfg *config.Config, log *zap.Logger) (orderdomain.Repository, *gorm.DB, error) {
	switch cfg.Database.Type {
	case "mysql":
		log.Info("Using MySQL/GORM persistence layer")
		db, err := mysql.Connect(ctx, mysql.ConfigFrom(cfg), log)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := mysql.AutoMigrate(ctx, db); err != nil {
				_ = mysql.Close(db)
				return nil, nil, err
			}
		}
		return mysql.NewOrderRepository(db, retry.FromAppConfig(cfg)), db, nil
	case "memory", "":
		log.Info("Using in-memory persistence layer")
		return memrepo.NewOrderRepository(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type %q", cfg.Database.Type)
	}
}
