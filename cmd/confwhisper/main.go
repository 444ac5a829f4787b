// Command confwhisper streams chat completions from an OpenAI-compatible
// backend, optionally through Oblivious HTTP, and can serve them to other
// clients as an authenticated SSE gateway.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rhuss/confwhisper/pkg/config"
	"github.com/rhuss/confwhisper/pkg/debug"
	"github.com/rhuss/confwhisper/pkg/provider/confwhisper"
)

func main() {
	if err := loadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "error loading .env: %v\n", err)
		os.Exit(1)
	}
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

// loadDotEnv loads environment variables from path. A missing file is
// ignored so .env stays optional.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// rootOptions are the persistent flags shared by all subcommands.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "confwhisper",
		Short:         "Stream chat completions from a confidential inference backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: $CONFWHISPER_CONFIG, ./config.yaml)")

	root.AddCommand(newChatCmd(opts))
	root.AddCommand(newModelCmd(opts))
	root.AddCommand(newModelsCmd(opts))
	root.AddCommand(newServeCmd(opts))
	return root
}

// load reads the configuration and initializes logging from it.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	debug.Init(debug.Settings{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Categories: cfg.Logging.Debug,
	})
	return cfg, nil
}

// handler builds the backend handler described by the configuration.
func (o *rootOptions) handler() (*config.Config, *confwhisper.Handler, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, confwhisper.New(cfg.HandlerOptions(nil)), nil
}
