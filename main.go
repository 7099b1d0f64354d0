//	@title			AuthWave API
//	@version		1.0
//	@description	Multi-tenant authentication service: per-app end-user auth, developer portal, and cPanel SSO handoff

//	@host		localhost:8080
//	@BasePath	/

//	@securityDefinitions.apikey	AppKey
//	@in							header
//	@name						X-API-Key
//	@description				Public API key of the calling application

//	@securityDefinitions.apikey	AppSecret
//	@in							header
//	@name						X-API-Secret
//	@description				Secret paired with the API key; never logged or stored in plaintext

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/authwave/authwave/internal/cache"
	"github.com/authwave/authwave/internal/config"
	"github.com/authwave/authwave/internal/googleauth"
	"github.com/authwave/authwave/internal/handlers"
	"github.com/authwave/authwave/internal/mailer"
	"github.com/authwave/authwave/internal/metrics"
	"github.com/authwave/authwave/internal/middleware"
	"github.com/authwave/authwave/internal/services"
	"github.com/authwave/authwave/internal/store"
	"github.com/authwave/authwave/internal/token"
	"github.com/authwave/authwave/internal/version"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/authwave/authwave/api" // swagger docs
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		version.PrintVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "server":
		runServer()
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Usage: %s [OPTIONS] COMMAND\n\n", os.Args[0])
	fmt.Println("Multi-tenant authentication service")
	fmt.Println("\nCommands:")
	fmt.Println("  server    Start the auth server")
	fmt.Println("\nOptions:")
	fmt.Println("  -v, --version    Show version information")
	fmt.Println("  -h, --help       Show this help message")
}

func newMailSender(cfg *config.Config) mailer.Sender {
	switch cfg.MailProvider {
	case config.MailProviderSES:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sender, err := mailer.NewSESSender(ctx, cfg.AWSRegion, cfg.MailFrom)
		if err != nil {
			log.Fatalf("Failed to initialize SES sender: %v", err)
		}
		log.Printf("Mail provider: SES (region=%s, from=%s)", cfg.AWSRegion, cfg.MailFrom)
		return sender
	default:
		log.Println("Mail provider: console (messages are logged, not delivered)")
		return mailer.ConsoleSender{}
	}
}

func newTicketCache(cfg *config.Config) cache.Cache[string] {
	switch cfg.TicketStore {
	case config.TicketStoreRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c, err := cache.NewRueidisCache[string](ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "")
		if err != nil {
			log.Fatalf("Failed to initialize redis ticket store: %v", err)
		}
		log.Printf("Ticket store: redis (addr=%s, db=%d)", cfg.RedisAddr, cfg.RedisDB)
		return c
	default:
		log.Println("Ticket store: memory (single instance only)")
		return cache.NewMemoryCache[string]()
	}
}

func newRateLimiter(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimitEnabled {
		return nil
	}

	var limiter gin.HandlerFunc
	var err error
	switch cfg.RateLimitStore {
	case "redis":
		limiter, err = middleware.NewRedisRateLimiter(
			cfg.RateLimitPerMin, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		limiter, err = middleware.NewMemoryRateLimiter(cfg.RateLimitPerMin)
	}
	if err != nil {
		log.Fatalf("Failed to initialize rate limiter: %v", err)
	}
	log.Printf("Rate limiting: %d req/min per IP (%s store)", cfg.RateLimitPerMin, cfg.RateLimitStore)
	return limiter
}

func createHealthCheckHandler(db *store.Store, ticketCache cache.Cache[string]) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := ticketCache.Health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "ticket_store": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	}
}

func runServer() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := store.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rec := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Println("Prometheus metrics initialized")
	} else {
		log.Println("Metrics disabled (using noop implementation)")
	}

	mail := newMailSender(cfg)
	ticketCache := newTicketCache(cfg)
	tokens := token.NewProvider(cfg)

	gateService := services.NewGateService(db, rec)
	endUserService := services.NewEndUserService(db, tokens, googleauth.Verifier{}, mail, cfg, rec)
	developerService := services.NewDeveloperService(db, tokens, mail, cfg, rec)
	ticketBroker := services.NewTicketBroker(db, ticketCache, cfg, rec)
	appService := services.NewAppService(db)

	endUserHandler := handlers.NewEndUserHandler(endUserService)
	developerHandler := handlers.NewDeveloperHandler(developerService, appService)
	ssoHandler := handlers.NewSSOHandler(ticketBroker, developerService, cfg)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/health", createHealthCheckHandler(db, ticketCache))

	// Swagger documentation (development only)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		log.Println("Swagger UI enabled at /swagger/index.html")
	}

	if cfg.MetricsEnabled {
		log.Println("Prometheus metrics enabled at /metrics")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	limiter := newRateLimiter(cfg)

	// Link-click endpoints: opened from emails, so no API credentials. The
	// token in the URL is the sole credential.
	links := r.Group("/auth")
	{
		links.GET("/verify-email", endUserHandler.VerifyEmail)
		links.GET("/reset-password", endUserHandler.ResetPasswordPage)
		links.POST("/reset-password", endUserHandler.CompletePasswordReset)
		links.GET("/delete-account", endUserHandler.DeleteAccountPage)
		links.POST("/delete-account/confirm", endUserHandler.ConfirmAccountDeletion)
		links.GET("/set-password", endUserHandler.SetPasswordPage)
		links.POST("/set-password/confirm", endUserHandler.CompleteSetPassword)
		links.GET("/confirm-email-change", endUserHandler.ConfirmEmailChange)
	}

	// App-gated end-user API: every route authenticates the calling app first
	authAPI := r.Group("/auth", middleware.AppGate(gateService))
	if limiter != nil {
		authAPI.Use(limiter)
	}
	{
		authAPI.POST("/register", endUserHandler.Register)
		authAPI.POST("/login", endUserHandler.Login)
		authAPI.POST("/google", endUserHandler.GoogleAuth)
		authAPI.POST("/resend-verification", endUserHandler.ResendVerification)
		authAPI.POST("/forgot-password", endUserHandler.RequestPasswordReset)
		authAPI.POST("/delete-account", endUserHandler.RequestAccountDeletion)
		authAPI.POST("/set-password", endUserHandler.RequestSetPassword)

		user := authAPI.Group("", middleware.RequireEndUser(tokens))
		{
			user.POST("/change-password", endUserHandler.ChangePassword)
			user.GET("/profile", endUserHandler.Profile)
			user.PATCH("/profile", endUserHandler.UpdateProfile)
		}
	}

	// Same API with the key as a path segment instead of a header, for
	// callers that cannot set custom headers. The secret is still a header.
	keyed := r.Group("/:apiKey", middleware.AppGate(gateService))
	if limiter != nil {
		keyed.Use(limiter)
	}
	{
		keyed.POST("/auth/register", endUserHandler.Register)
		keyed.POST("/auth/login", endUserHandler.Login)
		keyed.POST("/auth/google", endUserHandler.GoogleAuth)
		keyed.POST("/auth/resend-verification", endUserHandler.ResendVerification)
		keyed.POST("/auth/forgot-password", endUserHandler.RequestPasswordReset)
		keyed.POST("/auth/delete-account", endUserHandler.RequestAccountDeletion)
		keyed.POST("/auth/set-password", endUserHandler.RequestSetPassword)

		keyedUser := keyed.Group("", middleware.RequireEndUser(tokens))
		{
			keyedUser.POST("/auth/change-password", endUserHandler.ChangePassword)
			keyedUser.GET("/user/profile", endUserHandler.Profile)
			keyedUser.PATCH("/user/profile", endUserHandler.UpdateProfile)
		}
	}

	// Developer portal
	portal := r.Group("/portal")
	if limiter != nil {
		portal.Use(limiter)
	}
	{
		portal.POST("/register", developerHandler.Register)
		portal.POST("/login", developerHandler.Login)
		portal.POST("/refresh", developerHandler.Refresh)
		portal.POST("/logout", developerHandler.Logout)
		portal.POST("/forgot-password", developerHandler.RequestPasswordReset)
		portal.GET("/reset-password", developerHandler.ResetPasswordPage)
		portal.POST("/reset-password", developerHandler.CompletePasswordReset)

		dev := portal.Group("", middleware.RequireDeveloper(tokens))
		{
			dev.GET("/me", developerHandler.Me)
			dev.POST("/change-password", developerHandler.ChangePassword)
			dev.POST("/cpanel-ticket", ssoHandler.IssueTicket)

			dev.POST("/apps", developerHandler.CreateApp)
			dev.GET("/apps", developerHandler.ListApps)
			dev.GET("/apps/:id", developerHandler.GetApp)
			dev.PATCH("/apps/:id", developerHandler.UpdateApp)
			dev.POST("/apps/:id/regenerate-secret", developerHandler.RegenerateSecret)
		}
	}

	// cPanel session endpoints, cookie based
	cpanel := r.Group("/cpanel")
	{
		cpanel.POST("/redeem-ticket", ssoHandler.RedeemTicket)
		cpanel.POST("/refresh", ssoHandler.Refresh)
		cpanel.POST("/logout", ssoHandler.Logout)
		cpanel.GET("/me", middleware.RequireCPanel(tokens), ssoHandler.Me)
	}

	log.Printf("Auth server starting on %s", cfg.ServerAddr)
	log.Printf("Base URL: %s", cfg.BaseURL)

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	m := graceful.NewManager()

	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})

	// Hourly sweep of expired single-use tokens and refresh tokens
	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := db.DeleteExpiredVerificationTokens(); err != nil {
					log.Printf("Failed to sweep expired verification tokens: %v", err)
				}
				if err := db.DeleteExpiredRefreshTokens(); err != nil {
					log.Printf("Failed to sweep expired refresh tokens: %v", err)
				}
			case <-ctx.Done():
				return nil
			}
		}
	})

	m.AddShutdownJob(func() error {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
			return err
		}

		log.Println("Server exited")
		return nil
	})

	m.AddShutdownJob(func() error {
		log.Println("Closing ticket store...")
		return ticketCache.Close()
	})

	<-m.Done()
}
