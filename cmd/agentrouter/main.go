package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/agentrouter/ai/configloader"
	"github.com/hrygo/agentrouter/ai/metrics"
	"github.com/hrygo/agentrouter/ai/observability/logging"
	"github.com/hrygo/agentrouter/ai/routing"
	"github.com/hrygo/agentrouter/internal/profile"
	"github.com/hrygo/agentrouter/internal/version"
	"github.com/hrygo/agentrouter/server"
	"github.com/hrygo/agentrouter/store"
	"github.com/hrygo/agentrouter/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "agentrouter",
		Short: `An adaptive agent router. Picks the specialist agent for a message and learns from feedback.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Systemd units provide the environment themselves.
			if !isRunningAsSystemdService() {
				_ = godotenv.Load()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	routeCmd = &cobra.Command{
		Use:   "route <message>",
		Short: "Route one message and print the decision",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, engine *routing.Engine) error {
				userID, _ := cmd.Flags().GetString("user")
				language, _ := cmd.Flags().GetString("language")
				decision := engine.Route(ctx, strings.Join(args, " "), userID, language)
				fmt.Println(decision.Explanation())
				fmt.Printf("agent=%s method=%s confidence=%.3f latency=%s\n",
					decision.AgentID, decision.Method, decision.Confidence, decision.Latency)
				for _, a := range decision.Abstentions {
					fmt.Printf("  abstained: stage=%s reason=%s\n", a.Stage, a.Reason)
				}
				if decision.Kind == routing.NoAgent {
					fmt.Println(decision.Message)
				}
				return nil
			})
		},
	}

	feedbackCmd = &cobra.Command{
		Use:   "feedback <message>",
		Short: "Record a rated interaction for an agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, _ := cmd.Flags().GetString("agent")
			rating, _ := cmd.Flags().GetInt32("rating")
			helpful, _ := cmd.Flags().GetBool("helpful")
			userID, _ := cmd.Flags().GetString("user")
			language, _ := cmd.Flags().GetString("language")
			if agent == "" {
				return fmt.Errorf("--agent is required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, engine *routing.Engine) error {
				if !engine.Registry().Has(agent) {
					return fmt.Errorf("unknown agent %q", agent)
				}
				// A standalone CLI run has no routed turn to attach to, so register one here.
				collector := routing.NewFeedbackCollector(engine, engine, 0)
				id := collector.RegisterInteraction(strings.Join(args, " "), agent, userID, "cli", language)
				if err := collector.CollectExplicit(ctx, id, rating, helpful); err != nil {
					return err
				}
				fmt.Printf("recorded rating %d for %s\n", rating, agent)
				return nil
			})
		},
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print learning statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, engine *routing.Engine) error {
				stats, err := engine.GetLearningStatistics(ctx)
				if err != nil {
					return err
				}
				printStatistics(stats)
				return nil
			})
		},
	}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Record the training patterns and print predictions for the probe messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, engine *routing.Engine) error {
				n := engine.Seed(ctx)
				fmt.Printf("recorded %d training patterns\n\n", n)
				for _, probe := range engine.Probes() {
					p := engine.PredictBestAgent(probe, "")
					fmt.Printf("%-50s -> %-18s %.3f (%s)\n", probe, p.Agent, p.Confidence, p.Method)
				}
				return nil
			})
		},
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Delete all learning data and re-run auto-initialization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, engine *routing.Engine) error {
				if err := engine.Reset(ctx); err != nil {
					return err
				}
				fmt.Println("learning data reset")
				return nil
			})
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("agentrouter %s (commit %s, built %s, schema %s)\n",
				version.GetCurrentVersion(viper.GetString("mode")), version.GitCommit, version.BuildTime, version.SchemaVersion)
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28090)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (sqlite, postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("agent-profile", "", "path to a YAML agent profile overriding the embedded one")
	rootCmd.PersistentFlags().Float64("learning-rate", 0, "EMA learning rate (0 uses the default)")
	rootCmd.PersistentFlags().Float64("ml-threshold", 0, "self-learning acceptance threshold (0 uses the default)")
	rootCmd.PersistentFlags().Int("maturity-threshold", 0, "interactions before a pattern is scored (0 uses the default)")
	rootCmd.PersistentFlags().Float64("feedback-rps", 0, "feedback requests per second (0 uses the env default)")
	rootCmd.PersistentFlags().Int("feedback-burst", 0, "feedback burst size")

	for _, key := range []string{
		"mode", "addr", "port", "data", "driver", "dsn", "log-level", "log-format", "agent-profile",
		"learning-rate", "ml-threshold", "maturity-threshold", "feedback-rps", "feedback-burst",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("agentrouter")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	for _, cmd := range []*cobra.Command{routeCmd, feedbackCmd} {
		cmd.Flags().String("user", "", "user id")
		cmd.Flags().String("language", "ru", "message language")
	}
	feedbackCmd.Flags().String("agent", "", "agent that handled the message")
	feedbackCmd.Flags().Int32("rating", 5, "rating from 1 to 5")
	feedbackCmd.Flags().Bool("helpful", true, "whether the reply was helpful")

	rootCmd.AddCommand(serveCmd, routeCmd, feedbackCmd, statsCmd, seedCmd, resetCmd, versionCmd)
}

func loadProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:              viper.GetString("mode"),
		Addr:              viper.GetString("addr"),
		Port:              viper.GetInt("port"),
		Data:              viper.GetString("data"),
		Driver:            viper.GetString("driver"),
		DSN:               viper.GetString("dsn"),
		LogLevel:          viper.GetString("log-level"),
		LogFormat:         viper.GetString("log-format"),
		AgentProfile:      viper.GetString("agent-profile"),
		LearningRate:      viper.GetFloat64("learning-rate"),
		MLThreshold:       viper.GetFloat64("ml-threshold"),
		MaturityThreshold: viper.GetInt("maturity-threshold"),
		FeedbackRPS:       viper.GetFloat64("feedback-rps"),
		FeedbackBurst:     viper.GetInt("feedback-burst"),
		Version:           version.GetCurrentVersion(viper.GetString("mode")),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}
	logging.Setup(logging.Options{Level: instanceProfile.LogLevel, Format: instanceProfile.LogFormat})
	return instanceProfile, nil
}

func routingConfig(p *profile.Profile) routing.Config {
	cfg := routing.DefaultConfig()
	if p.LearningRate > 0 {
		cfg.LearningRate = p.LearningRate
	}
	if p.MLThreshold > 0 {
		cfg.MLThreshold = p.MLThreshold
	}
	if p.MinPatternConfidence > 0 {
		cfg.MinPatternConfidence = p.MinPatternConfidence
	}
	if p.MaturityThreshold > 0 {
		cfg.MaturityThreshold = p.MaturityThreshold
	}
	cfg.AutoInit = p.AutoInit
	return cfg
}

// openEngine opens the store, migrates it and builds the routing engine.
func openEngine(ctx context.Context, p *profile.Profile, opts ...routing.Option) (*routing.Engine, *store.Store, error) {
	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		printDatabaseError(err, p)
		return nil, nil, err
	}

	storeInstance := store.New(dbDriver, p)
	if err := storeInstance.Migrate(ctx); err != nil {
		_ = storeInstance.Close()
		return nil, nil, fmt.Errorf("failed to migrate: %w", err)
	}

	routingProfile, err := routing.LoadRoutingProfile(configloader.NewLoader(""), p.AgentProfile)
	if err != nil {
		_ = storeInstance.Close()
		return nil, nil, fmt.Errorf("failed to load agent profile: %w", err)
	}

	engine, err := routing.NewEngine(ctx, storeInstance, routingProfile, routingConfig(p), opts...)
	if err != nil {
		_ = storeInstance.Close()
		return nil, nil, fmt.Errorf("failed to create routing engine: %w", err)
	}
	return engine, storeInstance, nil
}

// withEngine runs fn against a freshly opened engine and closes the store afterwards.
func withEngine(ctx context.Context, fn func(context.Context, *routing.Engine) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := loadProfile()
	if err != nil {
		return err
	}
	engine, storeInstance, err := openEngine(ctx, p)
	if err != nil {
		return err
	}
	defer storeInstance.Close()
	return fn(ctx, engine)
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	instanceProfile, err := loadProfile()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
	engine, storeInstance, err := openEngine(ctx, instanceProfile, routing.WithObserver(exporter))
	if err != nil {
		slog.Error("failed to open routing engine", "error", err)
		return err
	}

	feedback := routing.NewFeedbackCollector(engine, engine, 0)
	feedback.SetObserver(exporter)

	s, err := server.NewServer(ctx, instanceProfile, storeInstance, engine, feedback, exporter)
	if err != nil {
		_ = storeInstance.Close()
		slog.Error("failed to create server", "error", err)
		return err
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, terminationSignals...)

	if err := s.Start(ctx); err != nil {
		slog.Error("failed to start server", "error", err)
		_ = storeInstance.Close()
		return err
	}

	printGreetings(instanceProfile)

	go func() {
		<-c
		s.Shutdown(context.Background())
		cancel()
	}()

	<-ctx.Done()
	return nil
}

func printStatistics(stats *routing.LearningStatistics) {
	fmt.Printf("Total interactions: %d\n", stats.TotalInteractions)
	fmt.Printf("Cached patterns:    %d (mature %d, threshold %d)\n", stats.CachedPatterns, stats.MaturePatterns, stats.MaturityThreshold)
	fmt.Printf("Learning rate:      %.2f\n", stats.LearningRate)
	fmt.Printf("ML threshold:       %.2f\n", stats.ConfidenceThreshold)

	fmt.Println("\nAgents:")
	for agent, s := range stats.AgentStatistics {
		fmt.Printf("  %-18s interactions=%d avg_rating=%.2f avg_relevance=%.2f\n",
			agent, s.Interactions, s.AvgRating, s.AvgRelevance)
	}
	fmt.Println("\nModel updates:")
	for agent, m := range stats.ModelUpdates {
		fmt.Printf("  %-18s patterns=%d interactions=%d last_update=%s\n",
			agent, m.PatternCount, m.TotalInteractions, m.LastUpdate.Format("2006-01-02 15:04:05"))
	}
	if c := stats.Classifier; c != nil {
		fmt.Printf("\nClassifier: feedback=%d learned_examples=%d\n", c.TotalFeedback, c.LearnedExamples)
	}
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("agentrouter %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if profile.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
		}
	}

	fmt.Printf("Data directory: %s\n", profile.Data)
	fmt.Printf("Database driver: %s\n", profile.Driver)
	fmt.Printf("Mode: %s\n", profile.Mode)

	if len(profile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
	}
	fmt.Println()
}

// isRunningAsSystemdService detects if the process is running under systemd
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

// printDatabaseError provides user-friendly error messages for database connection issues
func printDatabaseError(err error, profile *profile.Profile) {
	fmt.Fprintln(os.Stderr, "\nDatabase connection failed")

	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host"):
		fmt.Fprintln(os.Stderr, "  PostgreSQL is not reachable.")
		fmt.Fprintln(os.Stderr, "  Use the embedded store instead: --driver=sqlite --data=./data")
	case strings.Contains(errMsg, "sslmode"):
		fmt.Fprintln(os.Stderr, "  Add ?sslmode=disable to your DSN.")
	case strings.Contains(errMsg, "password authentication failed"):
		fmt.Fprintln(os.Stderr, "  Check the credentials in AGENTROUTER_DSN or .env.")
	case strings.Contains(errMsg, "permission denied"):
		fmt.Fprintf(os.Stderr, "  Check that %s is writable.\n", profile.Data)
	default:
		fmt.Fprintln(os.Stderr, "  Error:", errMsg)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
