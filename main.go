package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"boardflow/api"
	"boardflow/bus"
	"boardflow/realtime"
	"boardflow/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "boardflow.db"
	}
	base, err := storage.Open(dbPath)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	// Redis is optional: with no connection string the snapshot cache is a
	// passthrough and idempotency checks are skipped.
	var rc *redis.Client
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		redisOpts, err := redis.ParseURL(redisConn)
		if err != nil {
			parts := strings.Split(redisConn, ",")
			redisOpts = &redis.Options{Addr: parts[0]}
			for _, p := range parts[1:] {
				kv := strings.SplitN(p, "=", 2)
				if len(kv) != 2 {
					continue
				}
				switch strings.ToLower(kv[0]) {
				case "password":
					redisOpts.Password = kv[1]
				case "ssl":
					if strings.ToLower(kv[1]) == "true" {
						redisOpts.TLSConfig = &tls.Config{}
					}
				}
			}
		}
		rc = redis.NewClient(redisOpts)
	}

	cacheTTL := 5 * time.Minute
	if v := os.Getenv("SNAPSHOT_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid SNAPSHOT_CACHE_TTL: %v", err)
		}
		cacheTTL = d
	}
	store := storage.NewCache(base, rc, cacheTTL)

	var deduper api.Deduper
	if rc != nil {
		dedupeTTL := 24 * time.Hour
		if v := os.Getenv("DEDUPER_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid DEDUPER_TTL: %v", err)
			}
			dedupeTTL = d
		}
		deduper = api.NewRedisDeduper(rc, dedupeTTL)
	}

	var auth *api.Auth
	if jwksURLEnv := os.Getenv("AUTH_DOMAIN"); jwksURLEnv != "" {
		jwtAudience := os.Getenv("AUTH_AUDIENCE")
		if jwtAudience == "" {
			log.Fatal("AUTH_AUDIENCE is required with AUTH_DOMAIN")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", jwksURLEnv)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewJWKSAuth(jwks, jwtAudience, "https://"+jwksURLEnv+"/")
	} else {
		secret := os.Getenv("AUTH_SECRET")
		if secret == "" {
			log.Fatal("set AUTH_SECRET or AUTH_DOMAIN")
		}
		auth = api.NewAuth([]byte(secret), os.Getenv("AUTH_ISSUER"))
	}

	logger := log.New()
	events := bus.New(logger)
	rt := realtime.New(events)

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	api.Register(e, store, auth, deduper, events, rt, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("LISTEN_ADDR"); ok {
		listenAddr = val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}
