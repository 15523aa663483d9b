package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet suppresses all output except critical errors
	LogLevelQuiet LogLevel = "quiet"
	// LogLevelNormal shows standard operational messages
	LogLevelNormal LogLevel = "normal"
	// LogLevelVerbose shows detailed operational information
	LogLevelVerbose LogLevel = "verbose"
	// LogLevelDebug shows all debug information
	LogLevelDebug LogLevel = "debug"
)

// Logger provides structured logging capabilities
type Logger struct {
	logger *logrus.Logger
	level  LogLevel
}

// Config holds logger configuration
type Config struct {
	Level      LogLevel
	Output     io.Writer
	Format     string // "text" or "json"
	ShowCaller bool
	LogFile    string
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	logger := logrus.New()

	if config.Output != nil {
		logger.SetOutput(config.Output)
	} else {
		logger.SetOutput(os.Stdout)
	}

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			DisableColors:   false,
		})
	}

	switch config.Level {
	case LogLevelQuiet:
		logger.SetLevel(logrus.ErrorLevel)
	case LogLevelNormal:
		logger.SetLevel(logrus.InfoLevel)
	case LogLevelVerbose:
		logger.SetLevel(logrus.DebugLevel)
	case LogLevelDebug:
		logger.SetLevel(logrus.TraceLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if config.ShowCaller {
		logger.SetReportCaller(true)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				filename := filepath.Base(f.File)
				return fmt.Sprintf("%s()", f.Function), fmt.Sprintf("%s:%d", filename, f.Line)
			},
		})
	}

	if config.LogFile != "" {
		file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.LogFile, err)
		}

		if config.Output == nil {
			logger.SetOutput(io.MultiWriter(os.Stdout, file))
		} else {
			logger.SetOutput(io.MultiWriter(config.Output, file))
		}
	}

	return &Logger{
		logger: logger,
		level:  config.Level,
	}, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() *Logger {
	config := Config{
		Level:      LogLevelNormal,
		Output:     os.Stdout,
		Format:     "text",
		ShowCaller: false,
	}

	logger, _ := NewLogger(config)
	return logger
}

// WithContext returns a logger with context fields
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.logger.WithContext(ctx)

	if requestID := ctx.Value("request_id"); requestID != nil {
		entry = entry.WithField("request_id", requestID)
	}

	return entry
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.logger.WithFields(fields)
}

// WithField returns a logger with a single additional field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.logger.WithField(key, value)
}

// Domain operation logging methods

// LogStoreConnection logs database connection attempts
func (l *Logger) LogStoreConnection(host string, database string, success bool, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "store_connection",
		"host":      host,
		"database":  database,
		"duration":  duration.String(),
		"success":   success,
	}

	if success {
		l.logger.WithFields(fields).Info("Database connection established")
	} else {
		if err != nil {
			fields["error"] = err.Error()
		}
		l.logger.WithFields(fields).Error("Database connection failed")
	}
}

// LogTableRead logs a full-table read
func (l *Logger) LogTableRead(table string, recordCount int, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":    "table_read",
		"table":        table,
		"record_count": recordCount,
		"duration":     duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Table read failed")
	} else {
		if l.level == LogLevelVerbose || l.level == LogLevelDebug {
			l.logger.WithFields(fields).Debug("Table read completed")
		}
	}
}

// LogValidationReport logs the outcome of an integrity validation pass
func (l *Logger) LogValidationReport(violationCount int, duration time.Duration) {
	fields := logrus.Fields{
		"operation":       "integrity_validation",
		"violation_count": violationCount,
		"duration":        duration.String(),
	}

	if violationCount > 0 {
		l.logger.WithFields(fields).Warn("Integrity violations detected")
	} else {
		l.logger.WithFields(fields).Info("All records passed integrity validation")
	}
}

// LogSnapshotCreated logs a successfully stored snapshot
func (l *Logger) LogSnapshotCreated(snapshotID string, recordCount int, encodedSize int64, compression string) {
	l.logger.WithFields(logrus.Fields{
		"operation":    "snapshot_create",
		"snapshot_id":  snapshotID,
		"record_count": recordCount,
		"encoded_size": encodedSize,
		"compression":  compression,
	}).Info("Snapshot created")
}

// LogRestorePhase logs a restore state machine transition
func (l *Logger) LogRestorePhase(operationID string, phase string, snapshotID string) {
	l.logger.WithFields(logrus.Fields{
		"operation":    "restore",
		"operation_id": operationID,
		"phase":        phase,
		"snapshot_id":  snapshotID,
	}).Info("Restore phase changed")
}

// LogScheduledRun logs the outcome of one scheduled snapshot run
func (l *Logger) LogScheduledRun(outcome string, snapshotID string, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":   "scheduled_run",
		"outcome":     outcome,
		"snapshot_id": snapshotID,
		"duration":    duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Scheduled snapshot run failed")
	} else {
		l.logger.WithFields(fields).Info("Scheduled snapshot run finished")
	}
}

// Standard logging methods

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug(msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.logger.Error(msg)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string) {
	l.logger.Fatal(msg)
}

// Fatalf logs a formatted fatal message and exits
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logger.Fatalf(format, args...)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	switch level {
	case LogLevelQuiet:
		l.logger.SetLevel(logrus.ErrorLevel)
	case LogLevelNormal:
		l.logger.SetLevel(logrus.InfoLevel)
	case LogLevelVerbose:
		l.logger.SetLevel(logrus.DebugLevel)
	case LogLevelDebug:
		l.logger.SetLevel(logrus.TraceLevel)
	}
}

// IsLevelEnabled checks if a log level is enabled
func (l *Logger) IsLevelEnabled(level LogLevel) bool {
	switch level {
	case LogLevelQuiet:
		return l.logger.IsLevelEnabled(logrus.ErrorLevel)
	case LogLevelNormal:
		return l.logger.IsLevelEnabled(logrus.InfoLevel)
	case LogLevelVerbose:
		return l.logger.IsLevelEnabled(logrus.DebugLevel)
	case LogLevelDebug:
		return l.logger.IsLevelEnabled(logrus.TraceLevel)
	default:
		return false
	}
}

// LogOperationStart logs the start of an operation and returns a function to log completion
func (l *Logger) LogOperationStart(operation string, fields map[string]interface{}) func(error) {
	startTime := time.Now()

	logFields := logrus.Fields{
		"operation": operation,
		"status":    "started",
	}

	for k, v := range fields {
		logFields[k] = v
	}

	l.logger.WithFields(logFields).Debug("Operation started")

	return func(err error) {
		duration := time.Since(startTime)
		logFields["status"] = "completed"
		logFields["duration"] = duration.String()

		if err != nil {
			logFields["error"] = err.Error()
			logFields["success"] = false
			l.logger.WithFields(logFields).Error("Operation failed")
		} else {
			logFields["success"] = true
			l.logger.WithFields(logFields).Info("Operation completed")
		}
	}
}

// SanitizeDSN masks the password in a MySQL DSN so connection strings can be
// logged safely. DSN layout is user:password@protocol(address)/database.
func SanitizeDSN(dsn string) string {
	at := strings.Index(dsn, "@")
	if at == -1 {
		return dsn
	}
	colon := strings.Index(dsn[:at], ":")
	if colon == -1 {
		return dsn
	}
	return dsn[:colon+1] + "***" + dsn[at:]
}
