package main

import (
	"rezerv/internal/bookings/events"
	"rezerv/internal/bookings/handler"
	"rezerv/internal/bookings/repository"
	"rezerv/internal/bookings/service"
	"rezerv/internal/bookings/validator"
	"rezerv/pkg/app"
	"rezerv/pkg/config"
	"rezerv/pkg/kafka"
	kafkaconfig "rezerv/pkg/kafka/config"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)

	cfg.Log.Info("Starting Reservations service")
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	publisher, closeProducer := initPublisher(cfg)
	defer closeProducer()

	bookingService := initServices(cfg, publisher)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewBookingHandler(bookingService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher events.Publisher) service.BookingService {
	bookingValidator := validator.NewBookingValidator(cfg.Log)
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	lockRepo := repository.NewRoomLockRepository(cfg)
	bookingService := service.NewBookingService(
		bookingRepo,
		lockRepo,
		bookingValidator,
		publisher,
		cfg,
	)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)
	return bookingService
}

// initPublisher wires the Kafka event stream when brokers are configured
// and falls back to a no-op publisher otherwise.
func initPublisher(cfg *config.Config) (events.Publisher, func()) {
	kafkaCfg := kafkaconfig.Load()
	if kafkaCfg == nil {
		cfg.Log.Info("Kafka brokers not configured, event publishing disabled")
		return events.NewNoopPublisher(), func() {}
	}

	producer, err := kafka.NewProducer(kafkaCfg, kafkaCfg.Topic)
	if err != nil {
		cfg.Log.Fatal("Could not create Kafka producer", "error", err)
	}

	cfg.Log.Info("Kafka event publishing enabled",
		"brokers", kafkaCfg.Brokers,
		"topic", kafkaCfg.Topic,
	)

	closeProducer := func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Could not close Kafka producer", "error", err)
		}
	}
	return events.NewKafkaPublisher(producer, cfg.Log), closeProducer
}
