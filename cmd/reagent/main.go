// Command reagent runs the tool-routing agent service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/effective-security/reagent/callbacks"
	"github.com/effective-security/reagent/catalog"
	"github.com/effective-security/reagent/llmfactory"
	"github.com/effective-security/reagent/router"
	"github.com/effective-security/reagent/server"
	"github.com/effective-security/reagent/store"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/reagent", "cmd")

type serveFlags struct {
	addr      string
	llmConfig string
	redisAddr string
	maxSteps  int
	debug     bool
}

func main() {
	var flags serveFlags

	rootCmd := &cobra.Command{
		Use:          "reagent",
		Short:        "Tool-routing agent service",
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), &flags)
		},
	}
	serveCmd.Flags().StringVar(&flags.addr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&flags.llmConfig, "llm-config", "", "path to the LLM providers configuration file")
	serveCmd.Flags().StringVar(&flags.redisAddr, "redis", "", "Redis address for chat history, in-memory when empty")
	serveCmd.Flags().IntVar(&flags.maxSteps, "max-steps", router.DefaultMaxSteps, "per-turn step budget")
	serveCmd.Flags().BoolVar(&flags.debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context, flags *serveFlags) error {
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	if flags.debug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	} else {
		xlog.SetGlobalLogLevel(xlog.INFO)
	}

	factory, err := llmfactory.Load(flags.llmConfig)
	if err != nil {
		return err
	}

	var msgStore store.MessageStore
	if flags.redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: flags.redisAddr})
		msgStore = store.NewRedisStore(client, "reagent")
		logger.KV(xlog.INFO, "status", "using_redis_store", "addr", flags.redisAddr)
	} else {
		msgStore = store.NewMemoryStore()
	}

	agent := router.New(factory, catalog.NewProvider(nil),
		router.WithMaxSteps(flags.maxSteps),
		router.WithCallback(callbacks.NewPackageLogger(logger)),
	)

	srv := server.New(server.Config{
		Addr:  flags.addr,
		Debug: flags.debug,
	}, agent, factory, msgStore)

	return srv.ListenAndServe(ctx)
}
