// SPDX-License-Identifier: BSD-3-Clause

// Package clog wires the module's logging frontend: every component logs
// through a *slog.Logger, backed by zerolog for console output and fanned
// out to OpenTelemetry for telemetry pipelines.
package clog

import (
	"io"
	"log/slog"
	"os"

	"github.com/rs/zerolog"
	slogmulti "github.com/samber/slog-multi"
	slogzerolog "github.com/samber/slog-zerolog/v2"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
)

var globalLogger = New("control-core", slog.LevelInfo, os.Stderr)

// New builds a logger that writes human-readable console output through
// zerolog at level, and simultaneously fans out to the global OpenTelemetry
// logger provider under the given instrumentation name (typically the
// listener or orchestrator name, so telemetry backends can attribute log
// records to the process that emitted them).
func New(name string, level slog.Level, w io.Writer) *slog.Logger {
	zeroLogger := zerolog.
		New(zerolog.ConsoleWriter{Out: w}).
		With().
		Timestamp().
		Logger()

	provider := global.GetLoggerProvider()
	otelHandler := otelslog.NewHandler(name, otelslog.WithLoggerProvider(provider))

	return slog.New(slogmulti.Fanout(
		slogzerolog.Option{Level: level, Logger: &zeroLogger}.NewZerologHandler(),
		otelHandler,
	))
}

// Global returns the process-wide default logger. SetGlobal overrides it;
// until then it logs to stderr at info level under the name "control-core".
func Global() *slog.Logger {
	return globalLogger
}

// SetGlobal replaces the process-wide default logger returned by Global.
func SetGlobal(l *slog.Logger) {
	globalLogger = l
}
