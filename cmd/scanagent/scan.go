package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tavall/scanagent/internal/capture"
	"github.com/tavall/scanagent/internal/client"
	"github.com/tavall/scanagent/internal/config"
	"github.com/tavall/scanagent/internal/intake"
	"github.com/tavall/scanagent/internal/journal"
	"github.com/tavall/scanagent/internal/log"
	"github.com/tavall/scanagent/internal/model"
	"github.com/tavall/scanagent/internal/notify"
	"github.com/tavall/scanagent/internal/scanner"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a live scan session against a classification server",
		Long: `Scan starts a session: it performs the config handshake, opens the
camera (or an X11 screen share), and polls frames against the server's
classification endpoint until interrupted.

While the session runs, commands are read from stdin:
  confirm   submit the open intake confirmation
  decline   discard the open intake confirmation
  dup       submit the last-seen duplicate label
  camera    switch to the camera source
  screen    switch to the screen-share source
  quit      end the session

Examples:
  # Scan with the server's default camera mode
  scanagent scan --server https://scan.example.com

  # Select a camera mode and a specific device
  scanagent scan -s https://scan.example.com -m driverState -d /dev/video2

  # Share the X11 screen instead of the camera
  scanagent scan -s https://scan.example.com --screen

  # Run embedded: FOUND actions become JSON messages on stdout
  scanagent scan -s https://scan.example.com --embedded

  # Route scanning with an upstream SOCKS5 proxy
  scanagent scan -s https://scan.example.com -m routeScanner -r route-7 --socks-proxy 127.0.0.1:1080`,
		Args: cobra.NoArgs,
		RunE: runScanCmd,
	}

	// Server flags
	cmd.Flags().StringP("server", "s", "",
		"Classification server base URL (required)")
	cmd.Flags().StringP("mode", "m", "",
		"Camera-mode registry key (default: server's default mode)")
	cmd.Flags().StringP("route", "r", "",
		"Route identifier for ROUTE scans")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"HTTP timeout for each upload")
	cmd.Flags().String("socks-proxy", "",
		"Route uploads through a SOCKS5 proxy at the given host:port")

	// Capture flags
	cmd.Flags().StringP("device", "d", config.DefaultDevicePath,
		"V4L2 camera device path")
	cmd.Flags().Bool("screen", false,
		"Start with an X11 screen share instead of the camera")

	// Session flags
	cmd.Flags().Bool("embedded", false,
		"Emit FOUND actions as JSON parent messages instead of navigating")
	cmd.Flags().Bool("no-journal", false,
		"Do not record this session in the local journal")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .scanagent in current or home directory)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Signal-driven teardown: an interrupt cancels the context, the
	// controller drains, and the best-effort close notice fires.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.ServerURL, err = cmd.Flags().GetString("server")
	if err != nil {
		return nil, err
	}

	cfg.ModeKey, err = cmd.Flags().GetString("mode")
	if err != nil {
		return nil, err
	}

	cfg.RouteID, err = cmd.Flags().GetString("route")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.SocksProxy, err = cmd.Flags().GetString("socks-proxy")
	if err != nil {
		return nil, err
	}

	cfg.DevicePath, err = cmd.Flags().GetString("device")
	if err != nil {
		return nil, err
	}

	cfg.UseScreen, err = cmd.Flags().GetBool("screen")
	if err != nil {
		return nil, err
	}

	cfg.Embedded, err = cmd.Flags().GetBool("embedded")
	if err != nil {
		return nil, err
	}

	noJournal, err := cmd.Flags().GetBool("no-journal")
	if err != nil {
		return nil, err
	}
	cfg.SaveJournal = !noJournal
	cfg.JournalDir = config.XDGDataDir()

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load per-server configurations from the config file.
	// An explicitly specified file must exist; an implicit lookup may
	// come up empty.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.ServerConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.ServerConfigs = &config.File{
			Servers: make(map[string]config.ServerConfig),
		}
	}

	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// runScan wires the session together and drives it to completion.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	overrides := cfg.ServerOverrides()

	opts := []client.Option{
		client.WithTimeout(cfg.Timeout),
		client.WithLogger(logger),
	}
	if overrides.CSRFToken != "" {
		opts = append(opts, client.WithCSRFToken(overrides.CSRFToken))
	}
	if overrides.Cookie != "" {
		opts = append(opts, client.WithCookie(overrides.Cookie))
	}
	if len(overrides.Headers) > 0 {
		opts = append(opts, client.WithHeaders(overrides.Headers))
	}
	if cfg.SocksProxy != "" {
		opts = append(opts, client.WithSocksProxy(cfg.SocksProxy))
	}

	c, err := client.New(cfg.ServerURL, opts...)
	if err != nil {
		return err
	}

	// Handshake failure is fatal: without the endpoint document there
	// is nothing to poll.
	hs, err := c.Handshake(ctx)
	if err != nil {
		return fmt.Errorf("server unavailable at %s: %w", cfg.ServerURL, err)
	}

	modeKey := cfg.ModeKey
	if modeKey == "" {
		modeKey = overrides.Mode
	}
	mode, resolvedKey := hs.Mode(modeKey)
	if modeKey != "" && resolvedKey != modeKey {
		logger.Warn("camera mode not advertised by server, using default",
			"requested", modeKey,
			"resolved", resolvedKey,
		)
	}

	session := scanner.NewSession(mode.ScanType(), resolvedKey, mode.Mode, cfg.RouteID)

	var recorder scanner.Recorder
	if cfg.SaveJournal {
		jnl, err := journal.Open(cfg.JournalDir, journal.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer jnl.Close()

		if err := jnl.RecordSession(ctx, journal.SessionRecord{
			Token:     session.Token,
			ScanType:  string(session.ScanType),
			ModeKey:   session.ModeKey,
			Mode:      session.Mode,
			RouteID:   session.RouteID,
			StartedAt: session.StartedAt,
		}); err != nil {
			return fmt.Errorf("failed to record session: %w", err)
		}
		defer func() {
			if err := jnl.CloseSession(context.Background(), session.Token); err != nil {
				logger.Warn("failed to stamp session close", "error", err)
			}
		}()
		recorder = jnl
	}

	grabber := capture.NewGrabber()
	geo := capture.Geometry{
		Width:  cfg.FrameWidth,
		Height: cfg.FrameHeight,
		Rate:   cfg.FrameRate,
	}
	manager := capture.NewManager(grabber,
		func() capture.Source { return capture.NewCameraSource(cfg.DevicePath, geo, logger) },
		func() capture.Source { return capture.NewScreenSource(geo, logger) },
		capture.WithManagerLogger(logger),
	)

	feed := notify.NewFeed(notify.NewWriterSink(os.Stderr),
		notify.WithTTL(cfg.NotifyTTL),
		notify.WithDedupeWindow(cfg.NotifyDedupeWindow),
	)

	gate := scanner.NewGate()
	workflow := intake.NewWorkflow(c, gate, feed, intake.WithLogger(logger))
	duplicates := intake.NewDuplicateAction(c, feed, logger)

	ctrlOpts := []scanner.Option{
		scanner.WithGate(gate),
		scanner.WithWorkflow(workflow),
		scanner.WithDuplicateKeeper(duplicates),
		scanner.WithStatusSink(newStateBadge(os.Stderr)),
		scanner.WithTiming(timingFromConfig(cfg)),
		scanner.WithEmbedded(cfg.Embedded),
		scanner.WithLogger(logger),
	}
	if cfg.Embedded {
		ctrlOpts = append(ctrlOpts,
			scanner.WithParentNotifier(scanner.NewWriterParentNotifier(os.Stdout)))
	} else {
		base := strings.TrimRight(cfg.ServerURL, "/") + "/driver/"
		ctrlOpts = append(ctrlOpts,
			scanner.WithNavigator(scanner.NewWriterNavigator(os.Stdout, base)))
	}
	if recorder != nil {
		ctrlOpts = append(ctrlOpts, scanner.WithRecorder(recorder))
	}

	ctrl := scanner.New(session,
		scanner.NewManagedSource(manager, grabber), c, feed, ctrlOpts...)

	// Media acquisition failure is fatal to the source: surface it and
	// exit rather than retrying against a missing device.
	if cfg.UseScreen {
		err = manager.StartScreenShare(ctx)
	} else {
		err = manager.StartCamera(ctx)
	}
	if err != nil {
		return err
	}
	defer manager.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctrl.Run(gctx); err != nil {
			return err
		}
		// A nil return means the session ended on its own (top-level
		// navigation). Unwind the command loop too.
		return errSessionDone
	})
	g.Go(func() error {
		return commandLoop(gctx, os.Stdin, ctrl, workflow, duplicates, manager)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, errSessionDone) {
		return err
	}
	return nil
}

// errSessionDone unwinds the errgroup when the session ends cleanly,
// either by operator command or by a session-ending scan action.
var errSessionDone = errors.New("session ended")

// commandLoop reads operator commands from stdin until the session
// context ends.
func commandLoop(ctx context.Context, in io.Reader, ctrl *scanner.Controller,
	workflow *intake.Workflow, duplicates *intake.DuplicateAction,
	manager *capture.Manager,
) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- strings.TrimSpace(sc.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				// Stdin closed (embedded parent went away). Keep the
				// session polling until the context ends.
				<-ctx.Done()
				return ctx.Err()
			}
			switch line {
			case "":
			case "confirm", "c":
				if err := workflow.Confirm(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "confirm: %v\n", err)
				}
			case "decline", "d":
				workflow.Decline()
			case "dup":
				if err := duplicates.Submit(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "dup: %v\n", err)
				}
			case "camera":
				if err := manager.StartCamera(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "camera: %v\n", err)
				}
			case "screen":
				if err := manager.StartScreenShare(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "screen: %v\n", err)
				}
			case "quit", "q":
				ctrl.Dispose()
				return errSessionDone
			default:
				fmt.Fprintf(os.Stderr, "unknown command %q (confirm, decline, dup, camera, screen, quit)\n", line)
			}
		}
	}
}

// timingFromConfig maps the config cadence fields onto the controller's
// timing table.
func timingFromConfig(cfg *config.Config) scanner.Timing {
	return scanner.Timing{
		FrameWait:     cfg.FrameWaitDelay,
		Steady:        cfg.SteadyInterval,
		Busy:          cfg.BusyInterval,
		Idle:          cfg.IdleInterval,
		CaptureRetry:  cfg.CaptureRetryDelay,
		Backoff:       cfg.UploadBackoff,
		MinGap:        cfg.MinUploadGap,
		Cooldown:      cfg.CooldownWindow,
		IdleThreshold: cfg.IdleThreshold,
	}
}

// stateBadge renders display-state changes as single lines on a writer.
type stateBadge struct {
	w    io.Writer
	last string
}

func newStateBadge(w io.Writer) *stateBadge {
	return &stateBadge{w: w}
}

// SetState implements scanner.StatusSink. Only changes are printed;
// the steady SEARCHING stream stays quiet.
func (b *stateBadge) SetState(state model.CameraState, sub model.ResponseState) {
	line := state.DisplayName()
	if sub != "" && sub != model.ResponseIdle {
		line += " (" + string(sub) + ")"
	}
	if line == b.last {
		return
	}
	b.last = line
	fmt.Fprintf(b.w, "state: %s\n", line)
}
