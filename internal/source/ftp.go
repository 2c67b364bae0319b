package source

import (
	"context"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lendsight/engage-cli/internal/model"
	"github.com/lendsight/engage-cli/internal/resilience"
)

// FTPConfig locates the ops team's lead-list drop.
type FTPConfig struct {
	Addr     string // host:port
	User     string
	Password string
	Timeout  time.Duration
}

// FetchLeadsFTP downloads a lead CSV from the FTP drop and parses it.
// Transient connection failures are retried before the run is declared
// failed.
func FetchLeadsFTP(ctx context.Context, cfg FTPConfig, remotePath string) ([]model.Lead, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.ShouldRetry = func(error) bool { return true } // FTP errors are wrapped strings
	retryCfg.OnRetry = resilience.RetryLogger("ftp", "fetch leads")

	return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) ([]model.Lead, error) {
		return fetchOnce(ctx, cfg, remotePath)
	})
}

func fetchOnce(ctx context.Context, cfg FTPConfig, remotePath string) ([]model.Lead, error) {
	conn, err := ftp.Dial(cfg.Addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(cfg.Timeout),
	)
	if err != nil {
		return nil, eris.Wrap(err, "source: ftp dial")
	}
	defer func() {
		if quitErr := conn.Quit(); quitErr != nil {
			zap.L().Debug("ftp quit failed", zap.Error(quitErr))
		}
	}()

	if err := conn.Login(cfg.User, cfg.Password); err != nil {
		return nil, eris.Wrap(err, "source: ftp login")
	}

	resp, err := conn.Retr(remotePath)
	if err != nil {
		return nil, eris.Wrapf(err, "source: ftp retrieve %s", remotePath)
	}
	defer resp.Close() //nolint:errcheck

	return parseLeadsCSV(resp)
}
