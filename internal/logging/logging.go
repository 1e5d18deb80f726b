// Package logging builds the logr.Logger used across rabbitkind and carries
// it through contexts.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"
	"k8s.io/klog/v2"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Options configure New.
type Options struct {
	// Verbose enables debug output (logr V(1)) and development formatting.
	Verbose bool
	// JSON switches to JSON lines output.
	JSON bool
	// Out defaults to os.Stderr.
	Out io.Writer
}

// New returns a zap-backed logr.Logger.
func New(opts Options) logr.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	zopts := []zap.Opts{
		zap.WriteTo(out),
		zap.Level(level),
		zap.UseDevMode(opts.Verbose && !opts.JSON),
	}
	if !opts.JSON {
		zopts = append(zopts, zap.ConsoleEncoder(func(c *zapcore.EncoderConfig) {
			c.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		}))
	}
	return zap.New(zopts...).WithName("rabbitkind")
}

// SetGlobal routes controller-runtime and client-go logging to log.
func SetGlobal(log logr.Logger) {
	ctrllog.SetLogger(log)
	klog.SetLogger(log.WithName("client-go"))
}

// IntoContext returns a context carrying log.
func IntoContext(ctx context.Context, log logr.Logger) context.Context {
	return logr.NewContext(ctx, log)
}

// FromContext returns the logger in ctx, or a discarding logger.
func FromContext(ctx context.Context) logr.Logger {
	return logr.FromContextOrDiscard(ctx)
}
