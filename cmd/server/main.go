// Command server starts the card catalog API HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"cardhall/internal/api"
	"cardhall/internal/auth"
	"cardhall/internal/observability/logging"
	"cardhall/internal/server"
	"cardhall/internal/storage"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	mode := flag.String("mode", "", "server runtime mode (development or production)")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log output format (json or text)")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	postgresMaxConns := flag.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := flag.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresMaxConnLifetime := flag.Duration("postgres-max-conn-lifetime", 0, "maximum lifetime for a pooled Postgres connection")
	postgresMaxConnIdle := flag.Duration("postgres-max-conn-idle", 0, "maximum idle time for a pooled Postgres connection")
	postgresHealthInterval := flag.Duration("postgres-health-interval", 0, "interval between Postgres health checks")
	postgresConnectTimeout := flag.Duration("postgres-connect-timeout", 0, "timeout when establishing a Postgres connection")
	postgresAppName := flag.String("postgres-app-name", "", "application_name reported to Postgres")
	sessionStoreDriver := flag.String("session-store", "", "session store driver (memory or redis)")
	sessionTTL := flag.Duration("session-ttl", 0, "session lifetime before expiry")
	sessionRedisAddr := flag.String("session-redis-addr", "", "Redis address for the session store")
	sessionRedisAddrs := flag.String("session-redis-addrs", "", "comma separated Redis addresses for the session store")
	sessionRedisUsername := flag.String("session-redis-username", "", "Redis username for the session store")
	sessionRedisPassword := flag.String("session-redis-password", "", "Redis password for the session store")
	sessionRedisMasterName := flag.String("session-redis-sentinel-master", "", "Redis sentinel master name for the session store")
	sessionRedisPoolSize := flag.Int("session-redis-pool-size", 0, "maximum Redis connections for the session store")
	sessionRedisTLSCA := flag.String("session-redis-tls-ca", "", "path to Redis TLS CA certificate for the session store")
	sessionRedisTLSCert := flag.String("session-redis-tls-cert", "", "path to Redis TLS client certificate for the session store")
	sessionRedisTLSKey := flag.String("session-redis-tls-key", "", "path to Redis TLS client key for the session store")
	sessionRedisTLSServerName := flag.String("session-redis-tls-server-name", "", "override Redis TLS server name for the session store")
	sessionRedisTLSSkipVerify := flag.Bool("session-redis-tls-skip-verify", false, "skip Redis TLS verification for the session store")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	loginLimit := flag.Int("rate-login-limit", 0, "maximum login attempts per window for a single IP")
	loginWindow := flag.Duration("rate-login-window", 0, "window for counting login attempts")
	rateRedisAddr := flag.String("rate-redis-addr", "", "Redis address for distributed login throttling")
	rateRedisPassword := flag.String("rate-redis-password", "", "Redis password for distributed login throttling")
	rateRedisTimeout := flag.Duration("rate-redis-timeout", 0, "timeout for Redis rate limiter operations")
	corsOrigins := flag.String("cors-origins", "", "comma separated browser origins allowed to call the API")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("CARDHALL_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("CARDHALL_LOG_FORMAT")),
	})

	serverMode := modeValue(*mode, os.Getenv("CARDHALL_MODE"))
	listenAddr := resolveListenAddr(*addr, serverMode, os.Getenv("CARDHALL_ADDR"))

	dsn := strings.TrimSpace(firstNonEmpty(*postgresDSN, os.Getenv("CARDHALL_POSTGRES_DSN"), os.Getenv("DATABASE_URL")))
	if serverMode == "production" && dsn == "" {
		logger.Error("production mode requires a Postgres DSN")
		os.Exit(1)
	}

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer bootCancel()

	var store storage.Repository
	if dsn != "" {
		pgCfg := storage.PostgresConfig{
			DSN:                 dsn,
			MaxConnections:      int32(resolveInt(*postgresMaxConns, "CARDHALL_POSTGRES_MAX_CONNS")),
			MinConnections:      int32(resolveInt(*postgresMinConns, "CARDHALL_POSTGRES_MIN_CONNS")),
			MaxConnLifetime:     resolveDuration(*postgresMaxConnLifetime, "CARDHALL_POSTGRES_MAX_CONN_LIFETIME", 0),
			MaxConnIdleTime:     resolveDuration(*postgresMaxConnIdle, "CARDHALL_POSTGRES_MAX_CONN_IDLE", 0),
			HealthCheckInterval: resolveDuration(*postgresHealthInterval, "CARDHALL_POSTGRES_HEALTH_INTERVAL", 0),
			ConnectTimeout:      resolveDuration(*postgresConnectTimeout, "CARDHALL_POSTGRES_CONNECT_TIMEOUT", 0),
			ApplicationName:     firstNonEmpty(*postgresAppName, os.Getenv("CARDHALL_POSTGRES_APP_NAME")),
		}
		repo, err := storage.NewPostgresRepository(bootCtx, pgCfg)
		if err != nil {
			logger.Error("failed to open datastore", "error", err)
			os.Exit(1)
		}
		if err := repo.Migrate(bootCtx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		store = repo
	} else {
		logger.Warn("no Postgres DSN configured, using in-memory catalog")
		store = storage.NewMemoryRepository()
	}

	sessionDriver, err := resolveSessionDriver(
		*sessionStoreDriver,
		os.Getenv("CARDHALL_SESSION_STORE"),
		firstNonEmpty(*sessionRedisAddr, os.Getenv("CARDHALL_SESSION_REDIS_ADDR"), *sessionRedisAddrs, os.Getenv("CARDHALL_SESSION_REDIS_ADDRS")),
	)
	if err != nil {
		logger.Error("failed to resolve session store", "error", err)
		os.Exit(1)
	}
	if serverMode == "production" && sessionDriver != "redis" {
		logger.Error("production mode requires the redis session store")
		os.Exit(1)
	}

	var (
		sessionStore  auth.SessionStore
		sessionCloser func() error
	)
	switch sessionDriver {
	case "memory":
		sessionStore = auth.NewMemorySessionStore()
	case "redis":
		redisStore, err := auth.NewRedisSessionStore(auth.RedisConfig{
			Addr:       firstNonEmpty(*sessionRedisAddr, os.Getenv("CARDHALL_SESSION_REDIS_ADDR")),
			Addrs:      splitAndTrim(firstNonEmpty(*sessionRedisAddrs, os.Getenv("CARDHALL_SESSION_REDIS_ADDRS"))),
			Username:   firstNonEmpty(*sessionRedisUsername, os.Getenv("CARDHALL_SESSION_REDIS_USERNAME")),
			Password:   firstNonEmpty(*sessionRedisPassword, os.Getenv("CARDHALL_SESSION_REDIS_PASSWORD")),
			MasterName: firstNonEmpty(*sessionRedisMasterName, os.Getenv("CARDHALL_SESSION_REDIS_SENTINEL_MASTER")),
			PoolSize:   resolveInt(*sessionRedisPoolSize, "CARDHALL_SESSION_REDIS_POOL_SIZE"),
			TLS: auth.RedisTLSConfig{
				CAFile:             firstNonEmpty(*sessionRedisTLSCA, os.Getenv("CARDHALL_SESSION_REDIS_TLS_CA")),
				CertFile:           firstNonEmpty(*sessionRedisTLSCert, os.Getenv("CARDHALL_SESSION_REDIS_TLS_CERT")),
				KeyFile:            firstNonEmpty(*sessionRedisTLSKey, os.Getenv("CARDHALL_SESSION_REDIS_TLS_KEY")),
				ServerName:         firstNonEmpty(*sessionRedisTLSServerName, os.Getenv("CARDHALL_SESSION_REDIS_TLS_SERVER_NAME")),
				InsecureSkipVerify: resolveBool(*sessionRedisTLSSkipVerify, "CARDHALL_SESSION_REDIS_TLS_SKIP_VERIFY"),
			},
		})
		if err != nil {
			logger.Error("failed to open session store", "error", err)
			os.Exit(1)
		}
		if err := redisStore.Ping(bootCtx); err != nil {
			logger.Error("session store unreachable", "error", err)
			os.Exit(1)
		}
		sessionStore = redisStore
		sessionCloser = redisStore.Close
	default:
		logger.Error("unsupported session store driver", "driver", sessionDriver)
		os.Exit(1)
	}

	ttl := resolveDuration(*sessionTTL, "CARDHALL_SESSION_TTL", auth.DefaultSessionTTL)
	sessions := auth.NewSessionManager(ttl, auth.WithStore(sessionStore))

	handler := api.NewHandler(store, sessions)
	handler.Logger = logging.WithComponent(logger, "api")

	srv, err := server.New(handler, server.Config{
		Addr: listenAddr,
		TLS: server.TLSConfig{
			CertFile: firstNonEmpty(*tlsCert, os.Getenv("CARDHALL_TLS_CERT")),
			KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("CARDHALL_TLS_KEY")),
		},
		RateLimit: server.RateLimitConfig{
			GlobalRPS:     resolveFloat(*globalRPS, "CARDHALL_RATE_GLOBAL_RPS"),
			GlobalBurst:   resolveInt(*globalBurst, "CARDHALL_RATE_GLOBAL_BURST"),
			LoginLimit:    resolveInt(*loginLimit, "CARDHALL_RATE_LOGIN_LIMIT"),
			LoginWindow:   resolveDuration(*loginWindow, "CARDHALL_RATE_LOGIN_WINDOW", 0),
			RedisAddr:     firstNonEmpty(*rateRedisAddr, os.Getenv("CARDHALL_RATE_REDIS_ADDR")),
			RedisPassword: firstNonEmpty(*rateRedisPassword, os.Getenv("CARDHALL_RATE_REDIS_PASSWORD")),
			RedisTimeout:  resolveDuration(*rateRedisTimeout, "CARDHALL_RATE_REDIS_TIMEOUT", 0),
		},
		CORS: server.CORSConfig{
			AllowedOrigins: splitAndTrim(firstNonEmpty(*corsOrigins, os.Getenv("CARDHALL_CORS_ORIGINS"))),
		},
		Logger: logging.WithComponent(logger, "http"),
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		logger.Info("card catalog API listening", "addr", listenAddr, "mode", serverMode)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	exitCode := 0
	if err := group.Wait(); err != nil {
		logger.Error("server error", "error", err)
		exitCode = 1
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Close(closeCtx); err != nil {
		logger.Warn("failed to close datastore", "error", err)
	}
	if sessionCloser != nil {
		if err := sessionCloser(); err != nil {
			logger.Warn("failed to close session store", "error", err)
		}
	}
	os.Exit(exitCode)
}

func resolveListenAddr(flagValue, mode, envAddr string) string {
	listenAddr := strings.TrimSpace(flagValue)
	if listenAddr == "" {
		listenAddr = strings.TrimSpace(envAddr)
	}
	if listenAddr == "" {
		listenAddr = defaultListenForMode(mode)
	}
	return listenAddr
}

func modeValue(flagMode, envMode string) string {
	mode := strings.ToLower(strings.TrimSpace(flagMode))
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(envMode))
	}
	if mode == "" {
		mode = "development"
	}
	return mode
}

func defaultListenForMode(mode string) string {
	if mode == "production" {
		return ":80"
	}
	return ":8080"
}

func resolveSessionDriver(flagValue, envValue, redisAddr string) (string, error) {
	if driver := strings.ToLower(strings.TrimSpace(flagValue)); driver != "" {
		return driver, nil
	}
	if driver := strings.ToLower(strings.TrimSpace(envValue)); driver != "" {
		return driver, nil
	}
	if strings.TrimSpace(redisAddr) != "" {
		return "redis", nil
	}
	return "memory", nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}

func resolveBool(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}
	if env, ok := os.LookupEnv(envKey); ok {
		if value, err := strconv.ParseBool(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return false
}
