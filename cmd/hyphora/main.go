package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hyphora/hyphora/ai"
	"github.com/hyphora/hyphora/ai/configloader"
	"github.com/hyphora/hyphora/ai/core/retrieval"
	"github.com/hyphora/hyphora/ai/embedding"
	"github.com/hyphora/hyphora/ai/metrics"
	"github.com/hyphora/hyphora/internal/profile"
	"github.com/hyphora/hyphora/internal/version"
	"github.com/hyphora/hyphora/server"
	"github.com/hyphora/hyphora/store"
	"github.com/hyphora/hyphora/store/db"
	"github.com/hyphora/hyphora/store/vaultsync"
)

const retrievalConfigFile = "retrieval.yaml"

var rootCmd = &cobra.Command{
	Use:   "hyphora",
	Short: "Token-budgeted prompt context from a markdown note vault, fusing semantic search with the wiki-link graph.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		_ = godotenv.Load()
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile, err := loadProfile()
		if err != nil {
			slog.Error("invalid profile", "error", err)
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		storeInstance, pipeline, syncer, exporter, err := bootstrap(ctx, instanceProfile)
		if err != nil {
			slog.Error("failed to bootstrap", "error", err)
			return
		}

		if instanceProfile.VaultPath != "" {
			if _, err := syncer.Sync(ctx, instanceProfile.VaultPath); err != nil {
				slog.Error("initial vault sync failed", "error", err)
				return
			}
		}

		s, err := server.NewServer(ctx, instanceProfile, storeInstance, pipeline, syncer, exporter)
		if err != nil {
			slog.Error("failed to create server", "error", err)
			return
		}

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)

		if err := s.Start(ctx); err != nil {
			slog.Error("failed to start server", "error", err)
			return
		}
		printGreetings(instanceProfile)

		go func() {
			<-c
			s.Shutdown(ctx)
			cancel()
		}()

		<-ctx.Done()
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the vault directory into the store and rebuild the link graph",
	RunE: func(cmd *cobra.Command, _ []string) error {
		instanceProfile, err := loadProfile()
		if err != nil {
			return err
		}
		if instanceProfile.VaultPath == "" {
			return fmt.Errorf("no vault configured, set --vault or HYPHORA_VAULT_PATH")
		}

		ctx := cmd.Context()
		storeInstance, _, syncer, _, err := bootstrap(ctx, instanceProfile)
		if err != nil {
			return err
		}
		defer storeInstance.Close()

		stats, err := syncer.Sync(ctx, instanceProfile.VaultPath)
		if err != nil {
			return err
		}
		fmt.Printf("Synced: %d inserted, %d updated, %d deleted, %d edges, %d dangling\n",
			stats.Inserted, stats.Updated, stats.Deleted, stats.Edges, stats.Dangling)
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query [prompt]",
	Short: "Build a prompt context from the command line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		instanceProfile, err := loadProfile()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		storeInstance, pipeline, _, _, err := bootstrap(ctx, instanceProfile)
		if err != nil {
			return err
		}
		defer storeInstance.Close()

		sc, err := pipeline.BuildContext(ctx, &retrieval.Request{
			Prompt: args[0],
			Budget: viper.GetInt("budget"),
		})
		if err != nil {
			return err
		}
		fmt.Print(retrieval.Render(sc))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("hyphora %s\n", version.GetCurrentVersion(viper.GetString("mode")))
	},
}

func loadProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:      viper.GetString("mode"),
		Addr:      viper.GetString("addr"),
		Port:      viper.GetInt("port"),
		Data:      viper.GetString("data"),
		Driver:    viper.GetString("driver"),
		DSN:       viper.GetString("dsn"),
		VaultPath: viper.GetString("vault"),
		Version:   version.GetCurrentVersion(viper.GetString("mode")),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}
	return instanceProfile, nil
}

// bootstrap wires the store, embedding provider, retrieval pipeline, syncer
// and metrics exporter from the profile.
func bootstrap(ctx context.Context, instanceProfile *profile.Profile) (*store.Store, *retrieval.Pipeline, *vaultsync.Syncer, *metrics.PrometheusExporter, error) {
	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("create db driver: %w", err)
	}
	storeInstance := store.New(dbDriver, instanceProfile)
	if err := storeInstance.Migrate(ctx); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("migrate: %w", err)
	}

	loader := configloader.NewLoader(instanceProfile.Data)
	cfg, err := loader.LoadRetrievalConfig(retrievalConfigFile)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load retrieval config: %w", err)
	}

	embedder := embedding.NewProvider(ai.NewEmbeddingConfigFromProfile(instanceProfile))
	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())

	pipeline := retrieval.NewPipeline(retrieval.Options{
		Store:    storeInstance,
		Embedder: embedder,
		Config:   cfg,
		Metrics:  exporter,
	})
	syncer := vaultsync.New(storeInstance, embedder, slog.Default())

	return storeInstance, pipeline, syncer, exporter, nil
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("Hyphora %s started successfully!\n", p.Version)
	fmt.Printf("Data directory: %s\n", p.Data)
	fmt.Printf("Database driver: %s\n", p.Driver)
	if p.VaultPath != "" {
		fmt.Printf("Vault: %s\n", p.VaultPath)
	}
	if p.Addr == "" {
		fmt.Printf("Server running on port %d\n", p.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", p.Addr, p.Port)
	}
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28091)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28091, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (sqlite, postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("vault", "", "path to the markdown note vault")

	queryCmd.Flags().Int("budget", 0, "token budget override for this query")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn", "vault"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	if err := viper.BindPFlag("budget", queryCmd.Flags().Lookup("budget")); err != nil {
		panic(err)
	}

	viper.SetEnvPrefix("hyphora")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	rootCmd.AddCommand(syncCmd, queryCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
