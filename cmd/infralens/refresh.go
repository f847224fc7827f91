package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/infralens/infralens/internal/backend"
	"github.com/infralens/infralens/internal/config"
	"github.com/infralens/infralens/internal/logging"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const envToken = "INFRALENS_TOKEN"

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Ask the backend to re-run data collection",
	Long: "Triggers a backend refresh. The bearer token is read from --token or " +
		"--token-stdin, then " + envToken + ", then prompted for on an interactive terminal.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.BootstrapFromEnv(logging.BootstrapOptions{
			Command: cmd.CommandPath(),
			Writer:  cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		token, err := resolveRefreshToken(cmd)
		if err != nil {
			return err
		}

		client, err := backend.New(backend.Options{
			BaseURL: cfg.BackendURL,
			Timeout: cfg.BackendTimeout,
			Logger:  logger,
		})
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if token != "" {
			ctx = backend.WithToken(ctx, token)
		}
		res, err := client.TriggerRefresh(ctx)
		if err != nil {
			if backend.IsStatus(err, http.StatusConflict) {
				return &exitError{code: exitBusy, err: fmt.Errorf("refresh already running: %w", err)}
			}
			return err
		}
		logger.Info("refresh started", "status", res.Status, "job_id", res.JobID)
		return nil
	},
}

func init() {
	refreshCmd.Flags().String("token", "", "Bearer token to send to the backend")
	refreshCmd.Flags().Bool("token-stdin", false, "Read the bearer token from stdin")
	refreshCmd.MarkFlagsMutuallyExclusive("token", "token-stdin")
}

// resolveRefreshToken returns "" when no token is available and stdin is not
// a terminal; the backend then decides whether anonymous refresh is allowed.
func resolveRefreshToken(cmd *cobra.Command) (string, error) {
	token, err := cmd.Flags().GetString("token")
	if err != nil {
		return "", err
	}
	if token = strings.TrimSpace(token); token != "" {
		return token, nil
	}
	fromStdin, err := cmd.Flags().GetBool("token-stdin")
	if err != nil {
		return "", err
	}
	if fromStdin {
		token, err := readTokenLine(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		if token == "" {
			return "", errors.New("--token-stdin given but stdin was empty")
		}
		return token, nil
	}
	if token = strings.TrimSpace(os.Getenv(envToken)); token != "" {
		return token, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Bearer token (blank for none): ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// readTokenLine reads a single token line from r.
func readTokenLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
