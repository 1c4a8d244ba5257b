package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

const otelScope = "github.com/fyrsmithlabs/pkgforge"

// newCore tees stdout and OTEL outputs and applies sampling.
func newCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	var cores []zapcore.Core

	if cfg.Output.Stdout || cfg.Output.Stderr {
		encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return nil, err
		}
		out := os.Stdout
		if cfg.Output.Stderr {
			out = os.Stderr
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(out), cfg.Level))
	}
	if cfg.Output.OTEL && otelProvider != nil {
		cores = append(cores, otelzap.NewCore(otelScope, otelzap.WithLoggerProvider(otelProvider)))
	}

	switch len(cores) {
	case 0:
		return nil, fmt.Errorf("at least one output must be enabled and available")
	case 1:
		return newSampledCore(cores[0], cfg.Sampling), nil
	default:
		return newSampledCore(zapcore.NewTee(cores...), cfg.Sampling), nil
	}
}
