// Package cli implements measurectl, a client for the measurement service
// that goes through the resilient invoker.
package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/actuallystonmai/measurement-service/internal/invoker"
	"github.com/actuallystonmai/measurement-service/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "MEASURECTL"

type app struct {
	v       *viper.Viper
	cfgFile string
	inv     *invoker.Invoker
}

// NewRootCmd builds the measurectl command tree. Settings resolve from flags,
// then MEASURECTL_* environment variables, then an optional config file.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "measurectl",
		Short:         "Normalize measurements and request size recommendations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.initConfig(); err != nil {
				return err
			}
			logging.NewWithWriter(cmd.ErrOrStderr(), a.v.GetString("log-level"))
			a.inv = invoker.New(a.invokerConfig())
			return nil
		},
	}

	defaults := invoker.DefaultConfig()
	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.String("base-url", defaults.BaseURL, "measurement service base URL")
	flags.String("api-key", defaults.APIKey, "value sent in the X-API-Key header")
	flags.Duration("timeout", defaults.Timeout, "per-attempt request timeout")
	flags.Int("max-retries", defaults.MaxRetries, "retries after the first attempt")
	flags.Int("breaker-threshold", defaults.FailureThreshold, "consecutive failures that open the circuit")
	flags.Duration("backoff-unit", defaults.BackoffUnit, "base delay of the exponential backoff")
	flags.Duration("rate-limit-cooldown", defaults.RateLimitCooldown, "wait after a 429 before retrying")
	flags.String("log-level", "warn", "log level: debug|info|warn|error")
	_ = a.v.BindPFlags(flags)

	root.AddCommand(
		newValidateCmd(a),
		newRecommendCmd(a),
		newPipelineCmd(a),
		newToolsCmd(a),
	)
	return root
}

func (a *app) initConfig() error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()

	if a.cfgFile == "" {
		return nil
	}
	a.v.SetConfigFile(a.cfgFile)
	if err := a.v.ReadInConfig(); err != nil {
		notFound := &viper.ConfigFileNotFoundError{}
		if errors.As(err, notFound) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", a.cfgFile, err)
	}
	return nil
}

func (a *app) invokerConfig() invoker.Config {
	return invoker.Config{
		BaseURL:           a.v.GetString("base-url"),
		APIKey:            a.v.GetString("api-key"),
		Timeout:           a.v.GetDuration("timeout"),
		MaxRetries:        a.v.GetInt("max-retries"),
		FailureThreshold:  a.v.GetInt("breaker-threshold"),
		BackoffUnit:       a.v.GetDuration("backoff-unit"),
		RateLimitCooldown: a.v.GetDuration("rate-limit-cooldown"),
	}
}
