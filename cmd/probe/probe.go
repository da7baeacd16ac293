package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/SafeMPC/aa-keyring/internal/config"
	"github.com/SafeMPC/aa-keyring/internal/util/command"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	verboseFlag string = "verbose"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("probe",
		newProbe("liveness", "/health/live", "Runs liveness probe against a running server"),
		newProbe("readiness", "/health/ready", "Runs readiness probe against a running server"),
	)
}

func newProbe(use string, path string, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: fmt.Sprintf(`%s

Performs GET <management.probe_base_url>%s and exits non-zero unless the
server answers with 200.`, short, path),
		RunE: func(cmd *cobra.Command, _ []string) error {
			verbose, _ := cmd.Flags().GetBool(verboseFlag)
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}
			body, err := Run(cmd.Context(), cfg.Management, path)
			if verbose && len(body) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), body)
			}
			return err
		},
	}
	cmd.Flags().BoolP(verboseFlag, "v", false, "print the probe response body")
	return cmd
}

// Run 请求探针端点，非 200 时返回错误（同时返回响应体便于排查）
func Run(ctx context.Context, cfg config.Management, path string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	defer cancel()

	url := strings.TrimSuffix(cfg.ProbeBaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create probe request")
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "probe %s failed", url)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read probe response")
	}
	body := strings.TrimSpace(string(raw))

	if res.StatusCode != http.StatusOK {
		return body, errors.Errorf("probe %s returned HTTP %d", url, res.StatusCode)
	}
	return body, nil
}
