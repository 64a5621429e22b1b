package main

import (
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/becomeliminal/nim-recall/memory"
	"github.com/becomeliminal/nim-recall/memory/store/memu"
)

var rootCmd = &cobra.Command{
	Use:   "nim-recall",
	Short: "Long-term memory for Nim agents, backed by memU.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env file is fine; the environment may already be set.
		_ = godotenv.Load()

		level, err := logrus.ParseLevel(viper.GetString("log_level"))
		if err != nil {
			return errors.Wrap(err, "parse log level")
		}
		logrus.SetLevel(level)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("api-key", "", "memU API key (env MEMU_API_KEY)")
	flags.String("base-url", memory.DefaultBaseURL, "memU base URL (env MEMU_BASE_URL)")
	flags.String("agent-id", "nim_agent", "default agent id (env MEMU_AGENT_ID)")
	flags.String("agent-name", "Nim Assistant", "default agent name (env MEMU_AGENT_NAME)")
	flags.Int("recall-top-k", 3, "memories injected per reply, 0 disables (env MEMU_RECALL_TOP_K)")
	flags.Duration("timeout", memory.DefaultConfig().Timeout, "timeout for each memU call (env MEMU_TIMEOUT)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	bind := map[string]string{
		memory.KeyAPIKey:     "api-key",
		memory.KeyBaseURL:    "base-url",
		memory.KeyAgentID:    "agent-id",
		memory.KeyAgentName:  "agent-name",
		memory.KeyRecallTopK: "recall-top-k",
		memory.KeyTimeout:    "timeout",
		"log_level":          "log-level",
	}
	for key, flag := range bind {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(serveCmd, recallCmd, rememberCmd, chatCmd)
}

// newWorkflow builds the memory workflow from flags and environment.
// A nil reg disables client metrics.
func newWorkflow(reg prometheus.Registerer) (*memory.Workflow, error) {
	cfg, err := memory.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}

	opts := []memu.Option{memu.WithLogger(logrus.StandardLogger())}
	if reg != nil {
		opts = append(opts, memu.WithMetrics(reg))
	}
	client, err := memu.New(cfg, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create memU client")
	}
	return memory.NewWorkflow(client, cfg, memory.WithLogger(logrus.StandardLogger())), nil
}
