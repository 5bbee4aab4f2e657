package gologger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/sirupsen/logrus"
)

// LogrusOptions configures the logrus backed provider.
type LogrusOptions struct {
	Level  string
	Format string
	Output io.Writer
}

// LogrusProvider hands out glog loggers backed by a single logrus instance.
// Each named logger carries a "logger" field.
type LogrusProvider struct {
	base *logrus.Logger
}

// NewLogrusProvider builds a provider. Format is "json" (default) or "text".
func NewLogrusProvider(opts LogrusOptions) (*LogrusProvider, error) {
	base := logrus.New()
	if opts.Output != nil {
		base.SetOutput(opts.Output)
	} else {
		base.SetOutput(os.Stdout)
	}

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("gologger: unsupported log format %q", opts.Format)
	}

	level := strings.TrimSpace(opts.Level)
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("gologger: %w", err)
	}
	base.SetLevel(parsed)

	return &LogrusProvider{base: base}, nil
}

func (p *LogrusProvider) GetLogger(name string) glog.Logger {
	if p == nil || p.base == nil {
		return glog.Nop()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultLoggerName
	}
	return &logrusLogger{entry: p.base.WithField("logger", name)}
}

// Logrus exposes the underlying logger for components that want it directly.
func (p *LogrusProvider) Logrus() *logrus.Logger {
	if p == nil {
		return nil
	}
	return p.base
}

type logrusLogger struct {
	entry *logrus.Entry
}

func (l *logrusLogger) Trace(msg string, args ...any) { l.with(args).Trace(msg) }
func (l *logrusLogger) Debug(msg string, args ...any) { l.with(args).Debug(msg) }
func (l *logrusLogger) Info(msg string, args ...any)  { l.with(args).Info(msg) }
func (l *logrusLogger) Warn(msg string, args ...any)  { l.with(args).Warn(msg) }
func (l *logrusLogger) Error(msg string, args ...any) { l.with(args).Error(msg) }

// Fatal logs at error level. The process is left running; callers decide
// whether to exit.
func (l *logrusLogger) Fatal(msg string, args ...any) {
	l.with(args).WithField("fatal", true).Error(msg)
}

func (l *logrusLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		return l
	}
	return &logrusLogger{entry: l.entry.WithContext(ctx)}
}

func (l *logrusLogger) with(args []any) *logrus.Entry {
	if len(args) == 0 {
		return l.entry
	}
	fields := make(logrus.Fields, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			fields["!BADKEY"] = args[i]
			break
		}
		fields[key] = args[i+1]
	}
	return l.entry.WithFields(fields)
}

var (
	_ glog.LoggerProvider = (*LogrusProvider)(nil)
	_ glog.Logger         = (*logrusLogger)(nil)
)
