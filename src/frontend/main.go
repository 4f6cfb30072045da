// Copyright 2018 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/profiler"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	redisotel "github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/abahm00/shopwise-clone/src/frontend/cartstore"
	"github.com/abahm00/shopwise-clone/src/frontend/catalog"
	"github.com/abahm00/shopwise-clone/src/frontend/identity"
	"github.com/abahm00/shopwise-clone/src/frontend/localstore"
	"github.com/abahm00/shopwise-clone/src/frontend/restclient"
	"github.com/abahm00/shopwise-clone/src/frontend/session"
)

const (
	port = "8080"

	cookieMaxAge = 60 * 60 * 48

	cookiePrefix    = "shop_"
	cookieSessionID = cookiePrefix + "session-id"
	cookieFlash     = cookiePrefix + "flash"
)

var (
	baseUrl        = ""
	requestCounter metric.Int64Counter
)

type ctxKeySessionID struct{}

type frontendServer struct {
	catalog  catalog.Service
	identity identity.Client
	sessions *session.Store
	carts    *cartstore.Registry
	limiter  *Limiter

	sessionSecret []byte

	catalogSvcAddr  string
	identitySvcAddr string

	collectorAddr string
	collectorConn *grpc.ClientConn
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logrus.New()
	log.Level = logrus.DebugLevel
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = os.Stdout

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file, using the process environment")
	}

	svc := new(frontendServer)

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{}))

	baseUrl = os.Getenv("BASE_URL")

	if os.Getenv("ENABLE_TRACING") == "1" {
		mustMapEnv(&svc.collectorAddr, "COLLECTOR_SERVICE_ADDR")
		mustConnGRPC(ctx, &svc.collectorConn, svc.collectorAddr)

		tp, err := initTracing(ctx, log, svc.collectorConn)
		if err != nil {
			log.Warnf("warn: failed to start tracer: %+v", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					log.Errorf("Error shutting down tracer provider: %v", err)
				}
			}()
		}

		mp, err := initMetrics(ctx, log, svc.collectorConn)
		if err != nil {
			log.Warnf("warn: failed to start metric provider: %+v", err)
		} else {
			defer func() {
				if err := mp.Shutdown(context.Background()); err != nil {
					log.Errorf("Error shutting down metric provider: %v", err)
				}
			}()
		}
	} else {
		log.Info("Tracing disabled.")
	}

	if os.Getenv("DISABLE_PROFILER") == "" {
		log.Info("Profiling enabled.")
		go initProfiling(log, "frontend", "1.0.0")
	} else {
		log.Info("Profiling disabled.")
	}

	srvPort := port
	if os.Getenv("PORT") != "" {
		srvPort = os.Getenv("PORT")
	}
	addr := os.Getenv("LISTEN_ADDR")

	mustMapEnv(&svc.catalogSvcAddr, "CATALOG_SERVICE_ADDR")
	mustMapEnv(&svc.identitySvcAddr, "IDENTITY_SERVICE_ADDR")
	svc.sessionSecret = loadSessionSecret(log)

	rdb := initRedis(ctx, log)
	var storage localstore.Storage
	if rdb != nil {
		storage = localstore.NewRedis(rdb, time.Duration(cookieMaxAge)*time.Second)
		svc.limiter = NewRedisLimiter(rdb, log)
	} else {
		log.Warn("redis unavailable, keeping session storage in memory")
		storage = localstore.NewMemory()
	}

	backendTimeout := restclient.WithTimeout(getEnvDuration("BACKEND_TIMEOUT", restclient.DefaultTimeout))
	svc.catalog = catalog.NewCached(catalog.NewHTTPService(serviceURL(svc.catalogSvcAddr), log, backendTimeout), rdb, log)
	svc.identity = identity.NewHTTPClient(serviceURL(svc.identitySvcAddr), log, backendTimeout)
	svc.sessions = session.New(storage, log)
	svc.carts = cartstore.NewRegistry(ctx, storage, svc.identity, log,
		getEnvDuration("SESSION_IDLE_TIMEOUT", cartstore.DefaultIdleTimeout))
	defer svc.carts.Close()
	svc.sessions.Subscribe(svc.carts.IdentityChanged)

	srv := &http.Server{
		Addr:              addr + ":" + srvPort,
		Handler:           svc.handler(log),
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

	log.Info("starting server on " + addr + ":" + srvPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// handler wires the routes and the middleware chain.
func (fe *frontendServer) handler(log *logrus.Logger) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(baseUrl+"/", fe.homeHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/home", fe.homeHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/category", fe.categoriesHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/category/{category}", fe.homeHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/search", fe.searchHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/search/{query}", fe.homeHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/description/{id}", fe.productHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/cart", fe.viewCartHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/cart", fe.addToCartHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/cart/update", fe.setQuantityHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/cart/remove", fe.removeFromCartHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/cart/checkout", fe.checkoutHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/login", fe.loginPageHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/login", fe.loginHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/signup", fe.signupPageHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/signup", fe.signupHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/forgot-password", fe.forgotPasswordPageHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(baseUrl+"/forgot-password", fe.forgotPasswordHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/logout", fe.logoutHandler).Methods(http.MethodPost)
	r.HandleFunc(baseUrl+"/robots.txt", func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, "User-agent: *\nDisallow: /") })
	r.HandleFunc(baseUrl+"/_healthz", func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, "ok") })
	r.NotFoundHandler = http.HandlerFunc(fe.notFoundHandler)

	var handler http.Handler = fe.withIdentity(foldRouteCase(r))
	if fe.limiter != nil {
		handler = fe.limiter.GlobalAndIPLimiter(handler)
	}
	handler = &logHandler{log: log, next: handler}
	handler = fe.ensureSessionID(handler)
	handler = otelhttp.NewHandler(handler, "frontend")
	return handler
}

func initRedis(ctx context.Context, log logrus.FieldLogger) *redis.Client {
	var rdb *redis.Client
	sentinelAddrs := os.Getenv("REDIS_SENTINEL_ADDRS")
	db := getEnvInt("REDIS_DB", 0)

	if sentinelAddrs != "" {
		masterName := os.Getenv("REDIS_MASTER_NAME")
		if masterName == "" {
			masterName = "mymaster"
		}
		log.Infof("Initializing Redis in Sentinel Mode. Sentinels: %s", sentinelAddrs)
		rdb = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    masterName,
			SentinelAddrs: strings.Split(sentinelAddrs, ","),
			DB:            db,
		})
	} else {
		redisAddr := os.Getenv("REDIS_ADDR")
		if redisAddr == "" {
			redisAddr = "localhost:6379"
			log.Info("Tried to connect to Redis, but REDIS_ADDR is not set. Using default address.")
		}
		log.Infof("Initializing Redis in Single Node Mode. Addr: %s", redisAddr)
		rdb = redis.NewClient(&redis.Options{
			Addr: redisAddr,
			DB:   db,
		})
	}

	if err := redisotel.InstrumentTracing(rdb); err != nil {
		log.Warnf("failed to instrument redis: %v", err)
	}

	maxRetries := getEnvInt("REDIS_CONNECT_RETRIES", 5)
	for i := 0; i < maxRetries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()

		if err == nil {
			log.Info("connected to redis")
			return rdb
		}
		if i == maxRetries-1 {
			log.Warnf("failed to connect to redis after %d retries: %v", maxRetries, err)
			break
		}

		backoff := time.Duration(1<<i) * time.Second
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
		log.Warnf("redis not ready, retry in %v... (%d/%d)", backoff, i+1, maxRetries)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			i = maxRetries
		}
	}
	rdb.Close()
	return nil
}

func initTracing(ctx context.Context, log logrus.FieldLogger, conn *grpc.ClientConn) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		log.Warnf("warn: Failed to create trace exporter: %v", err)
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("frontend"),
			semconv.ServiceVersionKey.String("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.1))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

func initMetrics(ctx context.Context, log logrus.FieldLogger, conn *grpc.ClientConn) (*sdkmetric.MeterProvider, error) {
	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		log.Warnf("warn: Failed to create metric exporter: %v", err)
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("frontend")),
	)
	if err != nil {
		log.Warnf("warn: Failed to create resource: %v", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	requestCounter, err = mp.Meter("frontend").Int64Counter(
		"frontend_home_requests_total",
		metric.WithDescription("Number of product listing pages served"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		log.Warnf("warn: failed to create request counter: %v", err)
	}
	return mp, nil
}

func initProfiling(log logrus.FieldLogger, service, version string) {
	for i := 1; i <= 3; i++ {
		if err := profiler.Start(profiler.Config{
			Service:        service,
			ServiceVersion: version,
			// ProjectID must be set if not running on GCP.
			// ProjectID: "my-project",
		}); err != nil {
			log.Warnf("failed to start profiler: %+v", err)
		} else {
			log.Info("started Stackdriver profiler")
			return
		}
		d := time.Second * 10 * time.Duration(i)
		log.Infof("sleeping %v to retry initializing Stackdriver profiler", d)
		time.Sleep(d)
	}
	log.Warn("could not initialize Stackdriver profiler after retrying, giving up")
}

func mustMapEnv(target *string, envKey string) {
	v := os.Getenv(envKey)
	if v == "" {
		panic(fmt.Sprintf("environment variable %q not set", envKey))
	}
	*target = v
}

func mustConnGRPC(ctx context.Context, conn **grpc.ClientConn, addr string) {
	var err error
	*conn, err = grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()))
	if err != nil {
		panic(errors.Wrapf(err, "grpc: failed to connect %s", addr))
	}
}

// serviceURL accepts either a bare host:port or a full base URL.
func serviceURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return "http://" + addr
}

func loadSessionSecret(log logrus.FieldLogger) []byte {
	if s := os.Getenv("SESSION_SECRET"); s != "" {
		return []byte(s)
	}
	log.Warn("SESSION_SECRET is not set, generating one; sessions will not survive a restart")
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(errors.Wrap(err, "generate session secret"))
	}
	return b
}
