package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/gatehouse-id/gatehouse/internal/cache"
	"github.com/gatehouse-id/gatehouse/internal/ciba"
	"github.com/gatehouse-id/gatehouse/internal/config"
	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
	cibactrl "github.com/gatehouse-id/gatehouse/internal/http/controllers/ciba"
	oauthctrl "github.com/gatehouse-id/gatehouse/internal/http/controllers/oauth"
	mw "github.com/gatehouse-id/gatehouse/internal/http/middlewares"
	"github.com/gatehouse-id/gatehouse/internal/http/router"
	"github.com/gatehouse-id/gatehouse/internal/jose"
	"github.com/gatehouse-id/gatehouse/internal/metrics"
	"github.com/gatehouse-id/gatehouse/internal/oauth"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
	"github.com/gatehouse-id/gatehouse/internal/store/memory"
	"github.com/gatehouse-id/gatehouse/internal/store/pg"
	"github.com/gatehouse-id/gatehouse/internal/token"
)

var version = "dev"

func main() {
	// .env es opcional; las env vars reales pisan el archivo.
	_ = godotenv.Load()

	var configPath string

	root := &cobra.Command{
		Use:     "gatehouse",
		Short:   "Multi-tenant OAuth 2.0 / OIDC authorization engine",
		Version: version,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "ruta del archivo de configuración")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.AddCommand(serveCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// repos junta las implementaciones de repositorio del driver elegido.
type repos struct {
	tenants      repository.TenantRepository
	configs      repository.ServerConfigurationRepository
	clients      repository.ClientRepository
	users        repository.UserRepository
	requests     repository.AuthorizationRequestRepository
	codes        repository.CodeGrantRepository
	tokens       repository.TokenRepository
	transactions repository.BackchannelAuthRepository
	close        func()
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		ServiceName: "gatehouse",
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// Cache
	cacheClient, err := buildCache(cfg)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer func() { _ = cacheClient.Close() }()

	// Storage
	r, err := buildRepos(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer r.close()

	// Keystore
	keys, err := buildKeystore(cfg)
	if err != nil {
		return fmt.Errorf("keys: %w", err)
	}
	signer := jose.NewSigner(keys)
	verifier := jose.NewVerifier(keys)

	// Engine: authorization endpoint
	gateway := oauth.NewHTTPGateway(oauth.GatewayDeps{
		Client:   &http.Client{Timeout: config.Dur(cfg.Gateway.FetchTimeout)},
		Cache:    cacheClient,
		CacheTTL: config.Dur(cfg.Gateway.CacheTTL),
	})
	issuer := token.NewTokenIssuer(token.IssuerDeps{
		Signer:  signer,
		Tokens:  r.tokens,
		Users:   r.users,
		Clients: r.clients,
		Configs: r.configs,
	})
	authorizeSvc := oauth.NewAuthorizeService(oauth.AuthorizeDeps{
		Resolver: oauth.NewRequestPatternResolver(oauth.ResolverDeps{
			Verifier: verifier,
			Gateway:  gateway,
			Clients:  r.clients,
		}),
		Factory:  oauth.NewAuthorizationRequestFactory(),
		Chain:    oauth.NewAuthorizationValidationChain(),
		Configs:  r.configs,
		Requests: r.requests,
		Codes:    r.codes,
		Issuer:   issuer,
	})

	// Engine: token endpoint
	contextBuilder := token.NewContextBuilder(token.ContextDeps{
		Clients: r.clients,
		Configs: r.configs,
	})
	dispatcher := token.NewGrantDispatcher(
		token.NewAuthorizationCodeHandler(token.CodeGrantDeps{Codes: r.codes, Requests: r.requests, Issuer: issuer}),
		token.NewRefreshTokenHandler(token.RefreshGrantDeps{Tokens: r.tokens, Issuer: issuer}),
		token.NewClientCredentialsHandler(issuer),
		token.NewPasswordHandler(token.PasswordGrantDeps{Users: r.users, Issuer: issuer}),
		token.NewCibaHandler(token.CibaGrantDeps{Transactions: r.transactions, Issuer: issuer}),
	)

	// Engine: CIBA
	flow := ciba.NewFlow(ciba.FlowDeps{
		Transactions: r.transactions,
		Clients:      r.clients,
		Resolvers: []ciba.HintResolver{
			ciba.NewLoginHintResolver(r.users),
			ciba.NewIDTokenHintResolver(r.users),
			ciba.NewLoginHintTokenResolver(r.users),
		},
		Verifiers: []ciba.AdditionalVerifier{
			ciba.NewUserActiveVerifier(),
			ciba.NewUserCodeVerifier(),
		},
		Notifier: ciba.NewLogNotifier(),
	})

	var limiter *mw.RateLimiter
	if cfg.Rate.Enabled {
		limiter = mw.NewRateLimiter(cfg.Rate.PerSecond, cfg.Rate.Burst)
	}

	handler := router.New(router.Deps{
		Tenants:     r.tenants,
		Authorize:   oauthctrl.NewAuthorizeController(authorizeSvc),
		Token:       oauthctrl.NewTokenController(contextBuilder, dispatcher),
		JWKS:        oauthctrl.NewJWKSController(keys),
		Backchannel: cibactrl.NewBackchannelController(contextBuilder, flow),
		Registry:    registry,
		RateLimiter: limiter,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  config.Dur(cfg.Server.ReadTimeout),
		WriteTimeout: config.Dur(cfg.Server.WriteTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Dur(cfg.Server.ShutdownTimeout))
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildCache(cfg *config.Config) (cache.Client, error) {
	cc := cache.Config{
		Driver:   cfg.Cache.Driver,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	}
	if cfg.Cache.Driver == "redis" {
		host, portStr, err := net.SplitHostPort(cfg.Cache.Redis.Addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis addr %q: %w", cfg.Cache.Redis.Addr, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis port %q: %w", portStr, err)
		}
		cc.Host = host
		cc.Port = port
	}
	return cache.New(cc)
}

func buildRepos(ctx context.Context, cfg *config.Config) (*repos, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		st, err := pg.New(ctx, pg.Config{
			DSN:             cfg.Storage.Postgres.DSN,
			MaxConns:        int32(cfg.Storage.Postgres.MaxConns),
			ConnectTimeout:  parseDurOr(cfg.Storage.Postgres.ConnectTimeout, 5*time.Second),
			ApplicationName: "gatehouse",
		})
		if err != nil {
			return nil, err
		}
		return &repos{
			tenants:      st.Tenants(),
			configs:      st.Configs(),
			clients:      st.Clients(),
			users:        st.Users(),
			requests:     st.Requests(),
			codes:        st.Codes(),
			tokens:       st.Tokens(),
			transactions: st.Transactions(),
			close:        st.Close,
		}, nil

	default:
		st := memory.New()
		if seed := cfg.Storage.Memory.SeedFile; seed != "" {
			if err := st.LoadSeed(seed); err != nil {
				return nil, err
			}
		}
		return &repos{
			tenants:      st,
			configs:      st,
			clients:      st,
			users:        st.Users(),
			requests:     st.Requests(),
			codes:        st.Codes(),
			tokens:       st.Tokens(),
			transactions: st.Transactions(),
			close:        func() {},
		}, nil
	}
}

func buildKeystore(cfg *config.Config) (*jose.Keystore, error) {
	ks := jose.NewKeystore()
	for i, kc := range cfg.Keys {
		pemBytes := []byte(kc.PEM)
		if kc.PEMFile != "" {
			b, err := os.ReadFile(kc.PEMFile)
			if err != nil {
				return nil, fmt.Errorf("keys[%d]: %w", i, err)
			}
			pemBytes = b
		}
		key, err := jose.ParsePEMKey(kc.KID, kc.Alg, pemBytes)
		if err != nil {
			return nil, fmt.Errorf("keys[%d]: %w", i, err)
		}
		ks.AddKey(kc.Tenant, key)
		if kc.Active {
			if err := ks.SetActive(kc.Tenant, kc.KID); err != nil {
				return nil, fmt.Errorf("keys[%d]: %w", i, err)
			}
		}
	}
	return ks, nil
}

func parseDurOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
