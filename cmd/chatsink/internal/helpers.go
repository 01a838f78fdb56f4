package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"github.com/tinyland-inc/chatsink/pkg/bus"
	"github.com/tinyland-inc/chatsink/pkg/config"
	"github.com/tinyland-inc/chatsink/pkg/credentials"
	"github.com/tinyland-inc/chatsink/pkg/logger"
	"github.com/tinyland-inc/chatsink/pkg/provider"
	"github.com/tinyland-inc/chatsink/pkg/session"
)

// Exit codes shared by all subcommands.
const (
	ExitOK              = 0
	ExitFailure         = 1
	ExitUsage           = 2
	ExitRestartRequired = 3
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

func GetVersion() string {
	return version
}

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// FlagError turns flag parsing failures, such as --config without a value,
// into usage errors.
func FlagError(_ *cobra.Command, err error) error {
	return &ExitError{Code: ExitUsage, Err: err}
}

// LoadConfig loads the file named by --config. A missing flag is a usage
// error.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if errors.Is(err, config.ErrConfigMissing) {
		return nil, &ExitError{Code: ExitUsage, Err: fmt.Errorf("--config is required: %w", err)}
	}
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

// ConfigureLogging applies --verbose/--quiet and LISTENER_LOG. It reports
// whether one log line per saved message should be written: verbose always
// wins, otherwise quiet from either source turns them off.
func ConfigureLogging(cfg *config.Config, verbose, quiet bool) bool {
	verbose = verbose || cfg.Listener.Verbose()
	quiet = quiet || cfg.Listener.Quiet()
	if verbose {
		logger.SetLevel(logger.DEBUG)
	}
	return verbose || !quiet
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// NewStore opens the credential directory, encrypted when an identity file
// is configured.
func NewStore(cfg *config.Config) (*credentials.Store, error) {
	var opts []credentials.Option
	if path := cfg.IdentityPath(); path != "" {
		id, err := credentials.LoadIdentity(path)
		if err != nil {
			return nil, fmt.Errorf("loading auth identity: %w", err)
		}
		opts = append(opts, credentials.WithEncryption(id))
	}
	return credentials.NewStore(cfg.AuthDirPath(), opts...), nil
}

// NewProvider prefers a bridge subprocess over the websocket bridge when
// whatsapp_bridge_command is set.
func NewProvider(cfg *config.Config) session.Provider {
	if cfg.BridgeCommand != "" {
		return provider.NewCommandBridge(cfg.BridgeCommand)
	}
	return provider.NewWebsocketBridge(cfg.BridgeURL)
}

func RetryPolicy(cfg *config.Config) session.RetryPolicy {
	return session.RetryPolicy{
		MaxAttempts: cfg.Listener.MaxRetries,
		BaseDelay:   cfg.Listener.RetryDelay(),
	}
}

func ResolveVersion(ctx context.Context, cfg *config.Config) bus.Version {
	return provider.NewVersionResolver("").Resolve(ctx, cfg.Version)
}

// QRPresenter renders pairing codes as half-block QR codes.
type QRPresenter struct {
	w io.Writer
}

func NewQRPresenter(w io.Writer) *QRPresenter {
	return &QRPresenter{w: w}
}

func (p *QRPresenter) PresentQR(code string) {
	fmt.Fprintln(p.w, "[whatsapp] scan this QR code with WhatsApp -> Linked Devices")
	qrterminal.GenerateHalfBlock(code, qrterminal.L, p.w)
}

// SessionResult converts the outcome of Manager.Run into a command error.
func SessionResult(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrRestartRequired):
		return &ExitError{Code: ExitRestartRequired, Err: err}
	default:
		return &ExitError{Code: ExitFailure, Err: err}
	}
}
