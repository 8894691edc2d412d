package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/astrax-djp/astrax-rag/internal/app"
	"github.com/astrax-djp/astrax-rag/internal/config"
	"github.com/astrax-djp/astrax-rag/internal/logging"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the tax-service assistant a single question",
		Example: `  ask "Bagaimana cara reset password DJP Online?"
  echo "Apa itu e-Faktur?" | ask`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				q, err := readQuestion(cmd)
				if err != nil {
					return err
				}
				question = q
			}
			if question == "" {
				return fmt.Errorf("no question given")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := "error"
			if verbose {
				level = "debug"
			}
			logger, err := logging.New(level, "console")
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.Service.Answer(ctx, question)
			if res.Fallback {
				color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), res.Text)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline stages to stderr")
	return cmd
}

// readQuestion reads piped input; an interactive terminal yields "".
func readQuestion(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read question from stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
