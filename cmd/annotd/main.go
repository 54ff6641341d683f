// CLAUDE:SUMMARY CLI entry point for annotd — PDF annotation service with HTTP API, MCP over QUIC, and one-shot export/report.
// Command annotd is the PDF annotation service.
//
// Usage:
//
//	annotd -config annot.yaml                    # run with config file
//	annotd -db annot.db                          # run with defaults
//	annotd -db annot.db -report <url>            # print Markdown digest and exit
//	annotd -db annot.db -export <url> -pdf in.pdf -out out.pdf  # annotate a PDF and exit
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/annot/mcpquic"
	"github.com/hazyhaar/annot/server"
	"github.com/hazyhaar/annot/session"
)

func main() {
	configPath := flag.String("config", "", "path to annot.yaml config file")
	dbPath := flag.String("db", "", "path to SQLite database")
	httpAddr := flag.String("addr", "", "HTTP listen address (overrides config)")
	mcpAddr := flag.String("mcp-quic", "", "MCP-over-QUIC listen address (empty = disabled)")
	reportURL := flag.String("report", "", "print a Markdown digest for this document URL and exit")
	exportURL := flag.String("export", "", "export annotations for this document URL and exit")
	pdfIn := flag.String("pdf", "", "source PDF for -export")
	pdfOut := flag.String("out", "annotated.pdf", "output path for -export")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *dbPath, *httpAddr, *mcpAddr, *reportURL, *exportURL, *pdfIn, *pdfOut); err != nil {
		logger.Error("annotd: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, dbPath, httpAddr, mcpAddr, reportURL, exportURL, pdfIn, pdfOut string) error {
	cfg, err := resolveConfig(configPath, dbPath)
	if err != nil {
		return err
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}

	m, err := session.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer m.Close()

	// One-shot: report.
	if reportURL != "" {
		md, err := m.Report(ctx, reportURL)
		if err != nil {
			return fmt.Errorf("report: %w", err)
		}
		fmt.Println(md)
		return nil
	}

	// One-shot: export.
	if exportURL != "" {
		if pdfIn == "" {
			return fmt.Errorf("export: -pdf required")
		}
		src, err := os.ReadFile(pdfIn)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		out, err := m.ExportPDF(ctx, exportURL, src)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if err := os.WriteFile(pdfOut, out, 0o644); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		logger.Info("annotd: exported", "url", exportURL, "out", pdfOut)
		return nil
	}

	// Optional MCP over QUIC.
	if mcpAddr != "" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "annot",
			Version: "1.0.0",
		}, nil)
		m.RegisterMCP(mcpSrv)

		tlsCfg, err := mcpTLSConfig()
		if err != nil {
			return fmt.Errorf("mcp tls: %w", err)
		}
		ql, err := mcpquic.NewListener(mcpAddr, tlsCfg, mcpSrv, logger)
		if err != nil {
			return fmt.Errorf("mcp listener: %w", err)
		}
		go func() {
			logger.Info("annotd: mcp quic starting", "addr", mcpAddr)
			if err := ql.Serve(ctx); err != nil && ctx.Err() == nil {
				logger.Error("annotd: mcp quic", "error", err)
			}
		}()
		defer ql.Close()
	}

	// Daemon mode.
	logger.Info("annotd: running", "db", cfg.DBPath, "addr", cfg.HTTPAddr)
	return server.New(m, logger).ListenAndServe(ctx, cfg.HTTPAddr)
}

// mcpTLSConfig loads TLS_CERT/TLS_KEY when set, otherwise falls back
// to an ephemeral self-signed certificate for dev.
func mcpTLSConfig() (*tls.Config, error) {
	certFile := os.Getenv("TLS_CERT")
	keyFile := os.Getenv("TLS_KEY")
	if certFile != "" && keyFile != "" {
		return mcpquic.ServerTLSConfig(certFile, keyFile)
	}
	return mcpquic.SelfSignedTLSConfig()
}

func resolveConfig(configPath, dbPath string) (*session.Config, error) {
	if configPath != "" {
		return session.LoadConfigFile(configPath)
	}

	cfg := &session.Config{}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if cfg.DBPath == "" {
		fmt.Fprintln(os.Stderr, "usage: annotd -config <file> | -db <path> [-report <url>] [-export <url> -pdf <in> -out <out>]")
		os.Exit(1)
	}
	return cfg, nil
}
