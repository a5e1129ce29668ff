package main

import (
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"pinky-api/api"
	"pinky-api/domain"
	"pinky-api/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	secret := os.Getenv("AUTH_SECRET")
	if secret == "" {
		secret = "dev-secret"
		log.Warn("AUTH_SECRET not set, signing tokens with the development fallback secret; do not deploy like this")
	}
	ttl := api.DefaultTokenTTL
	if v := os.Getenv("AUTH_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid AUTH_TOKEN_TTL %q", v)
		}
		ttl = d
	}
	auth := api.NewAuth(secret, ttl)

	if jwksURL := os.Getenv("AUTH_JWKS_URL"); jwksURL != "" {
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth.EnableJWKS(jwks, os.Getenv("AUTH_AUDIENCE"), os.Getenv("AUTH_ISSUER"))
	}

	store := storage.New()
	if path := os.Getenv("SEED_DATA_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("seed data: %v", err)
		}
		var snap domain.Snapshot
		if err := sonic.Unmarshal(data, &snap); err != nil {
			log.Fatalf("seed data: %v", err)
		}
		store.ImportAll(snap)
		log.Infof("imported seed data from %s", path)
	}

	var rc *redis.Client
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		rc = redis.NewClient(parseRedisOptions(redisConn))
	}
	cacheTTL := 30 * time.Second
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid CACHE_TTL %q", v)
		}
		cacheTTL = d
	}
	cached := storage.NewCache(store, rc, cacheTTL)

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, api.HeaderOrgID},
	}))

	logger := log.New()
	gate := api.NewGate(auth, cached)
	api.Register(e, cached, gate, auth, logger)

	listenAddr := ":3001"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// parseRedisOptions accepts a redis URL or the comma separated
// host,key=value form used by managed caches.
func parseRedisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
