// Command adomcp runs the Azure DevOps pipelines MCP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okaneconnor/azure-devops-mcp/devops"
	"github.com/okaneconnor/azure-devops-mcp/internal/auth"
	"github.com/okaneconnor/azure-devops-mcp/internal/config"
	"github.com/okaneconnor/azure-devops-mcp/internal/observability"
	"github.com/okaneconnor/azure-devops-mcp/internal/resilience"
	"github.com/okaneconnor/azure-devops-mcp/internal/server"
	"github.com/okaneconnor/azure-devops-mcp/internal/tools"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "adomcp",
		Short:         "MCP server exposing Azure DevOps pipeline tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(version)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	breaker := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.Breaker.Cooldown,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
	})
	limiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		MaxRequests: cfg.RateLimit.MaxRequests,
		Window:      cfg.RateLimit.Window,
	})

	client, err := devops.New(cfg.DevOps.Organization,
		devops.WithLogger(logger),
		devops.WithBreaker(breaker),
		devops.WithTokenProvider(tokenProvider(cfg, logger)),
		devops.WithRetries(cfg.Retry.Attempts, cfg.Retry.Delay),
		devops.WithTimeout(cfg.Retry.Timeout),
	)
	if err != nil {
		return fmt.Errorf("build devops client: %w", err)
	}

	service := tools.NewService(client, cfg.AllowedProjects(), cfg.Default(),
		tools.WithLogger(logger),
		tools.WithRateLimiter(limiter),
	)

	srv := server.New(cfg.Server.Address, service, breaker, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logger.Info("server ready",
		"address", cfg.Server.Address,
		"organization", cfg.DevOps.Organization,
		"projects", cfg.AllowedProjects(),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// tokenProvider picks the credential source: a static token for local
// development, managed identity everywhere else.
func tokenProvider(cfg *config.Config, logger *slog.Logger) devops.TokenProvider {
	if token := os.Getenv("AZURE_DEVOPS_TOKEN"); token != "" {
		logger.Info("using static token from environment")
		return auth.Static(token)
	}
	logger.Info("using managed identity", "client_id", cfg.DevOps.MIClientID)
	return auth.NewManagedIdentity(cfg.DevOps.MIClientID, auth.WithLogger(logger))
}
