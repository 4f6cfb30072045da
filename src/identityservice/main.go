package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/abahm00/shopwise-clone/src/identityservice/pkg/model"
	"github.com/abahm00/shopwise-clone/src/identityservice/pkg/repo"
	"github.com/abahm00/shopwise-clone/src/identityservice/pkg/rest"
	"github.com/abahm00/shopwise-clone/src/identityservice/pkg/service"
)

const defaultPort = "3000"

var log *logrus.Logger

func init() {
	log = logrus.New()
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = os.Stdout
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file, using the process environment")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	if os.Getenv("ENABLE_TRACING") == "1" {
		tp, err := initTracing(ctx, os.Getenv("COLLECTOR_SERVICE_ADDR"))
		if err != nil {
			log.Warnf("warn: failed to start tracer: %+v", err)
		} else {
			defer tp.Shutdown(context.Background())
		}
	} else {
		log.Info("Tracing disabled.")
	}

	db := initDB()
	if err := db.AutoMigrate(&model.User{}); err != nil {
		log.Fatalf("failed to migrate users table: %v", err)
	}

	userRepo := repo.NewUserRepository(db)
	userLogic := service.NewUserServiceLogic(userRepo)
	userHandler := &rest.UserService{Logic: userLogic, Log: log}

	r := mux.NewRouter()
	userHandler.Register(r)
	r.HandleFunc("/_healthz", func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, "ok") })

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(r, "identityservice"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("Gracefully shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("http shutdown: %v", err)
		}
	}()

	log.Printf("IdentityService listening on port %s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("failed to serve: %v", err)
	}
}

// initDB opens postgres when DATABASE_URL is set and mysql otherwise.
func initDB() *gorm.DB {
	var dialector gorm.Dialector
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		dialector = postgres.Open(databaseURL)
		log.Info("using postgres from DATABASE_URL")
	} else {
		mysqlAddr := os.Getenv("MYSQL_ADDR")
		if mysqlAddr == "" {
			mysqlAddr = "root:root_password@tcp(127.0.0.1:3307)/user_db?parseTime=true"
			log.Info("Tried to connect to MySQL, but MYSQL_ADDR is not set. Using default address.")
		}
		dialector = mysql.Open(mysqlAddr)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	log.Info("connected to database")

	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		log.Fatalf("failed to initialize otelgorm plugin: %v", err)
	}
	return db
}

func initTracing(ctx context.Context, collectorAddr string) (*sdktrace.TracerProvider, error) {
	if collectorAddr == "" {
		return nil, fmt.Errorf("COLLECTOR_SERVICE_ADDR not set")
	}
	conn, err := grpc.NewClient(collectorAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()))
	if err != nil {
		return nil, fmt.Errorf("grpc: failed to connect %s: %w", collectorAddr, err)
	}
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("identityservice")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{}))
	return tp, nil
}
