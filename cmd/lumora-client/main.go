package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	auth "github.com/mahirsiam2004/Lumora-Client"
	"github.com/mahirsiam2004/Lumora-Client/provider/firebase"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatal(err)
	}
}

func run(configPath string) error {
	cfg, err := auth.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := auth.DefaultLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens, err := auth.NewFileTokenStore(cfg.GetTokenStorePath())
	if err != nil {
		return err
	}

	backend := auth.NewBackendClient(cfg.GetBaseURL(), tokens, auth.WithBackendLogger(logger))

	var broker firebase.Broker
	if cfg.Federated.ClientID != "" {
		broker, err = firebase.NewFederatedBroker(ctx, firebase.FederatedBrokerConfig{
			Issuer:       cfg.Federated.Issuer,
			ClientID:     cfg.Federated.ClientID,
			ClientSecret: cfg.Federated.ClientSecret,
			Scopes:       cfg.Federated.Scopes,
			Logger:       logger,
		})
		if err != nil {
			return err
		}
	}

	provider, err := firebase.NewIdentityProvider(firebase.IdentityProviderConfig{
		APIKey:   cfg.Firebase.APIKey,
		Endpoint: cfg.Firebase.Endpoint,
		Broker:   broker,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	session := auth.NewSessionController(
		provider,
		auth.NewExchangeService(backend, tokens),
		auth.NewRoleService(backend),
		auth.NewDirectoryService(backend),
		tokens,
		auth.WithControllerLogger(logger),
		auth.WithControllerDebug(cfg.Logging.Debug),
	)

	if err := session.Start(ctx); err != nil {
		return err
	}
	defer session.Close()

	guard, err := auth.NewRouteGuard(session, cfg)
	if err != nil {
		return err
	}

	engine := django.New("./views", ".html")
	for name, fn := range auth.TemplateHelpers(session) {
		engine.AddFunc(name, fn)
	}

	app := fiber.New(fiber.Config{
		Views: engine,
	})

	app.Get("/", func(c *fiber.Ctx) error {
		current := session.Current()
		return c.Render("home", fiber.Map{
			"session": current,
			"role":    current.Role,
		})
	})

	auth.RegisterAuthRoutes(app,
		auth.WithControllerSession(session),
		auth.WithControllerGuard(guard),
		auth.WithAuthControllerLogger(logger),
		auth.WithAuthControllerDebug(cfg.Logging.Debug),
	)

	dashboard := app.Group("/dashboard")
	dashboard.Get("/", guard.DashboardEntry())
	dashboard.Get("/decorator-home", guard.RequireDecorator(), func(c *fiber.Ctx) error {
		return c.Render("dashboard/decorator", fiber.Map{"session": session.Current()})
	})
	dashboard.Get("/admin-home", guard.RequireAdmin(), func(c *fiber.Ctx) error {
		return c.Render("dashboard/admin", fiber.Map{"session": session.Current()})
	})

	errs := make(chan error, 1)
	go func() {
		errs <- app.Listen(cfg.GetListenAddr())
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		return app.Shutdown()
	}
}
