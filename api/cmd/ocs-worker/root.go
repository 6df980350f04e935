package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ocs-worker/api/internal/config"
	"ocs-worker/api/internal/store"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ocs-worker",
		Short:         "Отвечает на вопросы онлайн-работы по найденным ответам",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "YAML config (missing file is fine, env OCS_* still applies)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newCheckConfigCmd())
	root.AddCommand(newSchemaCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

type configSummary struct {
	Worker    string   `json:"worker"`
	Upload    string   `json:"upload"`
	Answerers []string `json:"answerers"`
	Cache     string   `json:"cache,omitempty"`
	Database  string   `json:"database,omitempty"`
	Telegram  bool     `json:"telegram"`
	Browser   string   `json:"browser"`
	Port      string   `json:"port"`
}

func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Проверить конфиг и показать итоговые значения (без секретов)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s := configSummary{
				Worker:   cfg.WorkerConfig().String(),
				Upload:   cfg.Worker.Upload,
				Cache:    cfg.Cache.Addr,
				Telegram: cfg.Telegram.Token != "",
				Browser:  cfg.Browser.ControlURL,
				Port:     cfg.HTTP.Port,
			}
			if cfg.Database.DSN != "" {
				s.Database = config.SafeDSN(cfg.Database.DSN)
			}
			if s.Browser == "" {
				s.Browser = "launch"
			}
			for _, a := range cfg.Answerers {
				s.Answerers = append(s.Answerers, a.Kind+":"+a.Name)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		},
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Напечатать DDL таблиц прогонов",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), store.Schema)
		},
	}
}
