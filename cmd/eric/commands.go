package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/VanDung-dev/eric-go/api"
	"github.com/VanDung-dev/eric-go/arrow"
	"github.com/VanDung-dev/eric-go/bridge"
	"github.com/VanDung-dev/eric-go/document"
	"github.com/VanDung-dev/eric-go/loader"
	"github.com/VanDung-dev/eric-go/network"
	"github.com/VanDung-dev/eric-go/versions"
)

// EnvPIN is read by `eric send` when -pin is not given.
const EnvPIN = "ERIC_CERT_PIN"

func (env *environment) bridgeOptions(metrics *api.Metrics) bridge.Options {
	opts := env.cfg.BridgeOptions()
	opts.Logger = &env.log
	opts.Metrics = metrics
	opts.Open = openLibrary
	return opts
}

func runVersions(env *environment, args []string) error {
	fs := newFlagSet(env, "versions")
	load := commonFlags(fs, env)
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := load(); err != nil {
		return err
	}

	for _, v := range versions.Supported() {
		cfg, _ := versions.Lookup(v)
		marker := " "
		if v == versions.Default {
			marker = "*"
		}
		fmt.Fprintf(env.stdout, "%s %s (print params v%d, crypto params v%d)\n",
			marker, v, cfg.PrintParamVersion, cfg.CryptoParamVersion)
	}

	home, err := loader.ResolveHome(env.cfg.Home)
	if err != nil {
		fmt.Fprintf(env.stdout, "installation: not configured (%s)\n", loader.EnvHome)
		return nil
	}
	detected, ok := versions.Detect(home)
	switch {
	case !ok:
		fmt.Fprintf(env.stdout, "installation: %s (version not detectable)\n", home)
	case versions.IsSupported(detected):
		fmt.Fprintf(env.stdout, "installation: %s (%s, supported)\n", home, detected)
	default:
		fmt.Fprintf(env.stdout, "installation: %s (%s, not supported)\n", home, detected)
	}
	return nil
}

// docFlags are the input flags shared by validate, check and send.
type docFlags struct {
	fs           *flag.FlagSet
	load         func() error
	dav          *string
	herstellerID *string
	neutral      *bool
}

func newDocFlags(env *environment, cmd string) *docFlags {
	fs := newFlagSet(env, cmd)
	return &docFlags{
		fs:           fs,
		load:         commonFlags(fs, env),
		dav:          fs.String("dav", "", "datenartVersion, e.g. ESt_2020 (required)"),
		herstellerID: fs.String("hersteller-id", "", "replace every HerstellerID element with this value"),
		neutral:      fs.Bool("neutral-hersteller-id", false, "replace HerstellerID with "+document.NeutralHerstellerID+" for validation-only runs"),
	}
}

// parse parses args, loads configuration and returns the document paths.
func (d *docFlags) parse(args []string) ([]string, error) {
	if err := parse(d.fs, args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(*d.dav) == "" {
		return nil, &usageError{msg: "-dav is required"}
	}
	if d.fs.NArg() == 0 {
		return nil, &usageError{msg: "no input documents"}
	}
	if err := d.load(); err != nil {
		return nil, err
	}
	return d.fs.Args(), nil
}

func (d *docFlags) read(path string) (string, error) {
	doc, err := document.Load(path)
	if err != nil {
		return "", err
	}
	switch {
	case *d.herstellerID != "":
		doc = document.ReplaceHerstellerID(doc, *d.herstellerID)
	case *d.neutral:
		doc = document.ReplaceHerstellerID(doc, document.NeutralHerstellerID)
	}
	return doc, nil
}

func runValidate(env *environment, args []string) error {
	d := newDocFlags(env, "validate")
	pdf := d.fs.String("pdf", "", "write a preview PDF (single document only)")
	out := d.fs.String("out", "", "write the validation response of a single document to this file")
	report := d.fs.String("report", "", "write an Arrow IPC report of all results to this file")
	paths, err := d.parse(args)
	if err != nil {
		return err
	}
	if len(paths) > 1 && (*pdf != "" || *out != "") {
		return &usageError{msg: "-pdf and -out take a single document"}
	}

	return runDocuments(env, "validate", *d.dav, paths, *report, *out, func(c *bridge.Client, path string) (*bridge.Result, error) {
		doc, err := d.read(path)
		if err != nil {
			return nil, err
		}
		return c.Validate(bridge.ValidateRequest{XML: doc, DatenartVersion: *d.dav, PDFPath: *pdf})
	})
}

func runCheck(env *environment, args []string) error {
	d := newDocFlags(env, "check")
	report := d.fs.String("report", "", "write an Arrow IPC report of all results to this file")
	paths, err := d.parse(args)
	if err != nil {
		return err
	}

	return runDocuments(env, "check", *d.dav, paths, *report, "", func(c *bridge.Client, path string) (*bridge.Result, error) {
		doc, err := d.read(path)
		if err != nil {
			return nil, err
		}
		return c.CheckXML(doc, *d.dav)
	})
}

func runSend(env *environment, args []string) error {
	d := newDocFlags(env, "send")
	cert := d.fs.String("cert", "", "certificate keystore (.pfx) path (required)")
	pin := d.fs.String("pin", "", "certificate PIN (default: $"+EnvPIN+")")
	pdf := d.fs.String("pdf", "", "write the submitted PDF")
	out := d.fs.String("out", "", "write the validation response to this file")
	report := d.fs.String("report", "", "write an Arrow IPC report to this file")
	transfer := d.fs.Bool("transfer-handle", false, "request a transfer handle and print it")
	paths, err := d.parse(args)
	if err != nil {
		return err
	}
	if len(paths) != 1 {
		return &usageError{msg: "send takes exactly one document"}
	}
	if *cert == "" {
		return &usageError{msg: "-cert is required"}
	}
	if *pin == "" {
		*pin = os.Getenv(EnvPIN)
	}

	return runDocuments(env, "send", *d.dav, paths, *report, *out, func(c *bridge.Client, path string) (*bridge.Result, error) {
		doc, err := d.read(path)
		if err != nil {
			return nil, err
		}
		req := bridge.SendRequest{
			XML:             doc,
			DatenartVersion: *d.dav,
			CertificatePath: *cert,
			PIN:             *pin,
			PDFPath:         *pdf,
		}
		if *transfer {
			req.TransferHandle = new(uint32)
		}
		res, err := c.Send(req)
		if res != nil && res.TransferHandle != nil {
			fmt.Fprintf(env.stdout, "transfer handle: %d\n", *res.TransferHandle)
		}
		if res != nil && res.ServerResponse != "" {
			fmt.Fprintln(env.stdout, res.ServerResponse)
		}
		return res, err
	})
}

type workflowFunc func(c *bridge.Client, path string) (*bridge.Result, error)

// runDocuments runs fn for every path inside one engine session. Rejected
// documents do not stop the batch.
func runDocuments(env *environment, workflow, dav string, paths []string, reportPath, outPath string, fn workflowFunc) error {
	var entries []arrow.Entry
	failed := 0

	err := bridge.Run(env.bridgeOptions(nil), func(c *bridge.Client) error {
		for _, path := range paths {
			started := time.Now()
			res, err := fn(c, path)
			entries = append(entries, arrow.NewEntry(path, workflow, dav, res, err, started))

			if err != nil && isSessionError(err) {
				return err
			}
			if err != nil {
				failed++
				env.log.Error().Err(err).Str("document", path).Msg(workflow + " failed")
			} else {
				env.log.Info().Str("document", path).Msg(workflow + " ok")
			}
			if res == nil {
				continue
			}
			if outPath != "" {
				if werr := writeResponse(outPath, res); werr != nil {
					return werr
				}
			} else if res.ValidationResponse != "" {
				if werr := res.WriteValidationResponse(env.stdout); werr != nil {
					return werr
				}
				fmt.Fprintln(env.stdout)
			}
		}
		return nil
	})

	if reportPath != "" && len(entries) > 0 {
		if rerr := writeReport(reportPath, entries); rerr != nil {
			err = errors.Join(err, rerr)
		} else {
			env.log.Info().Str("report", reportPath).Int("entries", len(entries)).Msg("report written")
		}
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return &rejectedError{failed: failed, total: len(paths)}
	}
	return nil
}

// isSessionError reports whether err ends the whole batch rather than a
// single document.
func isSessionError(err error) bool {
	var loadErr *loader.LoadError
	return errors.Is(err, bridge.ErrUsage) || errors.As(err, &loadErr)
}

func writeResponse(path string, res *bridge.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create response file: %w", err)
	}
	if err := res.WriteValidationResponse(f); err != nil {
		f.Close()
		return fmt.Errorf("write response file: %w", err)
	}
	return f.Close()
}

func writeReport(path string, entries []arrow.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := arrow.NewConverter().WriteReport(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runServe(env *environment, args []string) error {
	fs := newFlagSet(env, "serve")
	load := commonFlags(fs, env)
	addr := fs.String("addr", "", "ZeroMQ bind address (overrides ERIC_SERVICE_ADDR)")
	metricsAddr := fs.String("metrics-addr", "", "metrics listen address, \"off\" to disable (overrides ERIC_METRICS_ADDR)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := load(); err != nil {
		return err
	}
	if *addr != "" {
		env.cfg.Service.Address = *addr
	}
	if *metricsAddr != "" {
		env.cfg.Service.MetricsAddress = *metricsAddr
	}

	reg := prometheus.NewRegistry()
	metrics := api.NewMetrics("eric", reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return bridge.Run(env.bridgeOptions(metrics), func(c *bridge.Client) error {
		if v, err := c.EngineVersion(); err == nil {
			env.log.Debug().Str("engine", v).Msg("engine version")
		}

		if ma := env.cfg.Service.MetricsAddress; ma != "" && ma != "off" {
			ms := api.NewMetricsServer(ma, reg)
			ms.StartAsync()
			defer ms.Stop()
			env.log.Info().Str("address", ma).Msg("metrics listening")
		}

		srv := network.NewServer(env.cfg.Service.Address, c, env.log, metrics)
		if err := srv.Start(); err != nil {
			return err
		}
		<-ctx.Done()
		env.log.Info().Msg("shutting down")
		return srv.Stop()
	})
}
