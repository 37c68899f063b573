// Package api assembles the HTTP server: storage, authentication, the
// domain services and their routes.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kyri56xcaesar/nexushub/internal/activity"
	"kyri56xcaesar/nexushub/internal/authmw"
	"kyri56xcaesar/nexushub/internal/config"
	"kyri56xcaesar/nexushub/internal/feed"
	"kyri56xcaesar/nexushub/internal/identity"
	"kyri56xcaesar/nexushub/internal/mproject"
	"kyri56xcaesar/nexushub/internal/mtask"
	"kyri56xcaesar/nexushub/internal/mteam"
	"kyri56xcaesar/nexushub/internal/realtime"
	"kyri56xcaesar/nexushub/internal/store"
	"kyri56xcaesar/nexushub/internal/store/memstore"
	"kyri56xcaesar/nexushub/internal/store/pgstore"
	"kyri56xcaesar/nexushub/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const (
	apiVersion = "/api/v1"
)

type API struct {
	config  config.Config
	engine  *gin.Engine
	httpSrv *http.Server
	store   store.Store
	backend string
	broker  *realtime.Broker

	identity *identity.Service
	teams    *mteam.Service
	projects *mproject.Service
	tasks    *mtask.Service
	feed     *feed.Service
}

// New wires every service on top of st. backend names the storage for
// the health endpoint.
func New(cfg config.Config, st store.Store, backend string) (*API, error) {
	setGinMode(cfg.ApiGinMode)

	if len(cfg.JWTSecret) == 0 {
		secret, err := utils.GenerateRandomStringAll(48)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		log.Printf("[WARN] JWT_SECRET is not set, tokens will not survive a restart")
		cfg.JWTSecret = []byte(secret)
	}

	a := &API{
		config:  cfg,
		engine:  gin.Default(),
		store:   st,
		backend: backend,
		broker:  realtime.NewBroker(cfg.EventBuffer),
	}

	var (
		verifier  authmw.Verifier = authmw.NewLocalVerifier(cfg.JWTSecret)
		federated identity.Federated
	)
	if strings.EqualFold(cfg.AuthMode, "keycloak") {
		kc, err := authmw.NewService(cfg.AuthAddress, cfg.Realm, cfg.ClientID, cfg.Issuer, cfg.Audience, cfg.ClientSecret)
		if err != nil {
			return nil, fmt.Errorf("keycloak: %w", err)
		}
		verifier = authmw.Chain{verifier, kc.KCAuth}
		federated = kc
	}

	recorder := activity.NewRecorder(st)
	a.identity = identity.NewService(st, identity.LogMailer{}, federated, identity.Options{
		Secret:          cfg.JWTSecret,
		TokenTTL:        cfg.TokenTTL,
		VerificationTTL: cfg.VerificationTTL,
		ResetTTL:        cfg.ResetTTL,
		PublicBaseURL:   cfg.PublicBaseURL,
	})
	a.teams = mteam.NewService(st, a.broker)
	a.projects = mproject.NewService(st, recorder, a.broker)
	a.tasks = mtask.NewService(st, recorder, a.broker)
	a.feed = feed.NewService(st, a.broker)

	a.setCors()
	a.setRoutes(authmw.Authenticate(verifier, a.identity))

	a.httpSrv = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.engine,
		ReadHeaderTimeout: time.Second * 5,
	}
	return a, nil
}

func (a *API) setCors() {
	corsconfig := cors.DefaultConfig()
	corsconfig.AllowOrigins = a.config.AllowedOrigins
	if len(a.config.AllowedMethods) > 0 {
		corsconfig.AllowMethods = a.config.AllowedMethods
	}
	if len(a.config.AllowedHeaders) > 0 {
		corsconfig.AllowHeaders = a.config.AllowedHeaders
	}
	if len(corsconfig.AllowOrigins) == 0 {
		corsconfig.AllowOrigins = []string{"*"}
	}
	corsconfig.AllowCredentials = !utils.Contains(corsconfig.AllowOrigins, "*")
	a.engine.Use(cors.New(corsconfig))
}

func (a *API) setRoutes(authenticate gin.HandlerFunc) {
	root := a.engine.Group("/")
	{
		root.GET("/healthz", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "alive", "store": a.backend})
		})
	}

	public := a.engine.Group(apiVersion)
	protected := a.engine.Group(apiVersion)
	protected.Use(authenticate)

	identity.NewHandler(a.identity).RegisterRoutes(public, protected)
	mteam.NewHandler(a.teams).RegisterRoutes(protected)
	mproject.NewHandler(a.projects).RegisterRoutes(protected)
	mtask.NewHandler(a.tasks).RegisterRoutes(protected)
	feed.NewHandler(a.feed).RegisterRoutes(protected)
	protected.GET("/events", a.events)
}

// openStore prefers Postgres and falls back to memory when the database is
// unreachable or not configured.
func openStore(cfg config.Config) (store.Store, string) {
	if cfg.DBAddress == "" {
		log.Printf("[INFO] no database configured, using in-memory storage")
		return memstore.NewStorage(), "memory"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dsn := cfg.DSN()
	pg, err := pgstore.NewStorage(ctx, dsn)
	if err != nil {
		log.Printf("[WARN] database unreachable, falling back to in-memory storage: %v", err)
		return memstore.NewStorage(), "memory"
	}
	if err := pgstore.Migration(dsn, cfg.MigrationsPath); err != nil {
		log.Printf("[ERROR] failed to apply migrations, falling back to in-memory storage: %v", err)
		pg.Close()
		return memstore.NewStorage(), "memory"
	}
	log.Printf("[INFO] connected to postgres at %s", cfg.DBAddress)
	return pg, "postgres"
}

func InitAndServe(confPath string) {
	cfg := config.Load(confPath)

	st, backend := openStore(cfg)
	a, err := New(cfg, st, backend)
	if err != nil {
		st.Close()
		log.Fatalf("[ERROR] failed to initialize the api: %v", err)
	}

	// serve http
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("[INFO] listening on %s", a.httpSrv.Addr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-ctx.Done()

	stop()
	log.Println("shutting down gracefully, press Ctrl+C again to force")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(ctx); err != nil {
		log.Printf("[ERROR] server forced to shutdown: %v", err)
	}

	// close db conn
	a.store.Close()

	log.Println("Server exiting")
}

func setGinMode(mode string) {
	switch strings.ToLower(mode) {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "envgin":
		gin.SetMode(gin.EnvGinMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
}
