package bridge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/VanDung-dev/eric-go/api"
	"github.com/VanDung-dev/eric-go/ffi"
	"github.com/VanDung-dev/eric-go/loader"
	"github.com/VanDung-dev/eric-go/versions"
)

// Usage errors. They indicate a caller bug and are never retried.
var (
	ErrUsage          = errors.New("eric usage error")
	ErrNotInitialized = fmt.Errorf("%w: client is not initialized", ErrUsage)
	ErrAlreadyUsed    = fmt.Errorf("%w: client was already initialized", ErrUsage)
)

// State is the session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateShutDown:
		return "shut down"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures a Client. Zero values select the defaults.
type Options struct {
	// Home is the installation root. Empty means $ERIC_HOME.
	Home string
	// LogDir receives eric.log. Empty means the working directory.
	LogDir string
	// Version is the ERiC release to assume. Empty means detect from Home.
	Version         string
	ExpectedVersion string
	Policy          versions.Policy
	// WriteEngineLog keeps the engine's own eric.log next to the forwarded lines.
	WriteEngineLog bool
	Logger         *zerolog.Logger
	Metrics        *api.Metrics
	// Open binds the engine below home. Defaults to ffi.Load.
	Open func(home string) (*ffi.Library, error)
}

// Client owns one engine session.
type Client struct {
	home     string
	logDir   string
	detected string
	version  versions.Config

	writeEngineLog bool
	open           func(string) (*ffi.Library, error)
	lib            *ffi.Library
	state          State

	log     zerolog.Logger
	metrics *api.Metrics
}

// New resolves the installation root and release without touching native
// code. The client starts Uninitialized.
func New(opts Options) (*Client, error) {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	home, err := loader.ResolveHome(opts.Home)
	if err != nil {
		return nil, err
	}
	logDir := opts.LogDir
	if logDir == "" {
		if logDir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("resolve log dir: %w", err)
		}
	}
	if logDir, err = filepath.Abs(logDir); err != nil {
		return nil, fmt.Errorf("resolve log dir: %w", err)
	}

	detected, _ := versions.Detect(home)
	cfg, err := versions.Resolve(versions.Selection{
		Requested: opts.Version,
		Detected:  detected,
		Expected:  opts.ExpectedVersion,
		Policy:    opts.Policy,
	}, logger)
	if err != nil {
		return nil, err
	}

	open := opts.Open
	if open == nil {
		open = ffi.Load
	}
	return &Client{
		home:           home,
		logDir:         logDir,
		detected:       detected,
		version:        cfg,
		writeEngineLog: opts.WriteEngineLog,
		open:           open,
		log:            logger.With().Str("eric_version", cfg.Version).Logger(),
		metrics:        opts.Metrics,
	}, nil
}

// Open returns an initialized client.
func Open(opts Options) (*Client, error) {
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	if err := c.Initialize(); err != nil {
		return nil, err
	}
	return c, nil
}

// Run opens a client, calls fn and always shuts the session down. Errors from
// fn and from shutdown are joined.
func Run(opts Options, fn func(*Client) error) (err error) {
	c, err := Open(opts)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, c.Close())
	}()
	return fn(c)
}

// Initialize loads the engine and calls EricInitialisiere.
func (c *Client) Initialize() error {
	if c.state != StateUninitialized {
		return ErrAlreadyUsed
	}
	if err := os.MkdirAll(c.logDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	lib, err := c.open(c.home)
	if err != nil {
		return err
	}

	if rc := lib.RegisterLogCallback(c.forwardEngineLog, c.writeEngineLog); rc != ffi.CodeOK {
		c.log.Debug().Int("code", rc).Msg("engine log callback not registered")
	}

	rc := c.call("EricInitialisiere", func() int { return lib.Initialize(c.home, c.logDir) })
	if err := ffi.Check(rc, "EricInitialisiere", lib); err != nil {
		lib.RegisterLogCallback(nil, false)
		return err
	}
	c.lib = lib
	c.state = StateInitialized
	c.metrics.SetSessionActive(true)
	c.log.Debug().Str("home", c.home).Str("log_dir", c.logDir).Msg("engine initialized")
	return nil
}

// Close calls EricBeende once. It is a no-op unless the client is Initialized.
func (c *Client) Close() error {
	if c.state != StateInitialized {
		return nil
	}
	c.state = StateShutDown
	c.metrics.SetSessionActive(false)

	if rc := c.lib.RegisterLogCallback(nil, false); rc != ffi.CodeOK {
		c.log.Debug().Int("code", rc).Msg("engine log callback not unregistered")
	}
	rc := c.call("EricBeende", c.lib.Shutdown)
	if err := ffi.Check(rc, "EricBeende", c.lib); err != nil {
		return err
	}
	c.log.Debug().Msg("engine shut down")
	return nil
}

// State returns the lifecycle state.
func (c *Client) State() State { return c.state }

// VersionConfig returns the resolved release configuration.
func (c *Client) VersionConfig() versions.Config { return c.version }

// DetectedVersion returns the release found in the installation path, if any.
func (c *Client) DetectedVersion() string { return c.detected }

// Home returns the installation root.
func (c *Client) Home() string { return c.home }

// LogDir returns the engine log directory.
func (c *Client) LogDir() string { return c.logDir }

func (c *Client) forwardEngineLog(category string, level ffi.LogLevel, message string) {
	var ev *zerolog.Event
	switch level {
	case ffi.LogError:
		ev = c.log.Error()
	case ffi.LogWarn:
		ev = c.log.Warn()
	case ffi.LogInfo:
		ev = c.log.Info()
	case ffi.LogDebug:
		ev = c.log.Debug()
	default:
		ev = c.log.Trace()
	}
	ev.Str("category", category).Msg(message)
}

// call runs a native call and records it.
func (c *Client) call(function string, fn func() int) int {
	start := time.Now()
	rc := fn()
	c.metrics.RecordCall(function, rc, time.Since(start))
	return rc
}

func (c *Client) ensureInitialized() error {
	if c.state != StateInitialized {
		return fmt.Errorf("%w (state: %s)", ErrNotInitialized, c.state)
	}
	return nil
}

func (c *Client) newBuffer() (*ffi.Buffer, error) {
	buf, rc := c.lib.NewBuffer()
	if err := ffi.Check(rc, "EricRueckgabepufferErzeugen", c.lib); err != nil {
		return nil, err
	}
	c.metrics.HandleOpened(api.HandleBuffer)
	return buf, nil
}

func (c *Client) releaseBuffer(buf *ffi.Buffer) {
	if buf.Released() {
		return
	}
	if rc := buf.Close(); rc != ffi.CodeOK {
		c.log.Warn().Int("code", rc).Msg("release return buffer")
	}
	c.metrics.HandleReleased(api.HandleBuffer)
}
