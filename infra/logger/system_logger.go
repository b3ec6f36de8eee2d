package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
	LevelFatal LogLevel = "fatal"
)

var levelOrder = map[LogLevel]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
	LevelFatal: 4,
}

// ParseLevel maps a config string to a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	level := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := levelOrder[level]; ok {
		return level
	}
	return LevelInfo
}

// SystemLog represents a structured system log entry
type SystemLog struct {
	Timestamp   time.Time      `json:"timestamp"`
	Level       LogLevel       `json:"level"`
	Message     string         `json:"message"`
	Component   string         `json:"component"`
	Function    string         `json:"function"`
	File        string         `json:"file"`
	Line        int            `json:"line"`
	Operation   string         `json:"operation,omitempty"`
	Variant     string         `json:"variant,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	Error       string         `json:"error,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
	Environment string         `json:"environment"`
	Service     string         `json:"service"`
	Version     string         `json:"version"`
}

// Sink receives every entry that passes the level filter. The OpenSearch
// logger implements it.
type Sink interface {
	LogSystemEvent(ctx context.Context, entry any) error
}

// SystemLogger handles structured logging to console, daily files and an optional sink
type SystemLogger struct {
	sink          Sink
	enableConsole bool
	output        io.Writer
	logDir        string
	filePrefix    string
	minLevel      LogLevel
	service       string
	version       string
	environment   string

	fileMu sync.Mutex
}

// SystemLoggerConfig represents configuration for system logger
type SystemLoggerConfig struct {
	EnableConsole bool
	// Output defaults to os.Stdout.
	Output io.Writer
	// LogDir enables daily files named <FilePrefix>_YYYY-MM-DD.log.
	LogDir      string
	FilePrefix  string
	MinLevel    LogLevel
	Service     string
	Version     string
	Environment string
}

// NewSystemLogger creates a new system logger. sink may be nil.
func NewSystemLogger(sink Sink, config SystemLoggerConfig) *SystemLogger {
	output := config.Output
	if output == nil {
		output = os.Stdout
	}
	prefix := config.FilePrefix
	if prefix == "" {
		prefix = "app"
	}
	minLevel := config.MinLevel
	if _, ok := levelOrder[minLevel]; !ok {
		minLevel = LevelInfo
	}
	return &SystemLogger{
		sink:          sink,
		enableConsole: config.EnableConsole,
		output:        output,
		logDir:        config.LogDir,
		filePrefix:    prefix,
		minLevel:      minLevel,
		service:       config.Service,
		version:       config.Version,
		environment:   config.Environment,
	}
}

// LogContext holds contextual information for logging
type LogContext struct {
	Operation string
	Variant   string
	RequestID string
	Fields    map[string]any
}

// Debug logs a debug message
func (sl *SystemLogger) Debug(message string, ctx ...LogContext) {
	sl.log(LevelDebug, message, ctx...)
}

// Info logs an info message
func (sl *SystemLogger) Info(message string, ctx ...LogContext) {
	sl.log(LevelInfo, message, ctx...)
}

// Warn logs a warning message
func (sl *SystemLogger) Warn(message string, ctx ...LogContext) {
	sl.log(LevelWarn, message, ctx...)
}

// Error logs an error message
func (sl *SystemLogger) Error(message string, err error, ctx ...LogContext) {
	sl.log(LevelError, message, withError(err, ctx)...)
}

// Fatal logs a fatal message and exits
func (sl *SystemLogger) Fatal(message string, err error, ctx ...LogContext) {
	sl.log(LevelFatal, message, withError(err, ctx)...)
	os.Exit(1)
}

func withError(err error, ctx []LogContext) []LogContext {
	logCtx := LogContext{}
	if len(ctx) > 0 {
		logCtx = ctx[0]
	}
	fields := make(map[string]any, len(logCtx.Fields)+1)
	for k, v := range logCtx.Fields {
		fields[k] = v
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	logCtx.Fields = fields
	return []LogContext{logCtx}
}

// log is the core logging function
func (sl *SystemLogger) log(level LogLevel, message string, ctx ...LogContext) {
	if !sl.shouldLog(level) {
		return
	}
	sl.write(sl.buildEntry(level, message, ctx...))
}

func (sl *SystemLogger) buildEntry(level LogLevel, message string, ctx ...LogContext) SystemLog {
	// log <- Info/Error <- package helper or caller
	pc, file, line, ok := runtime.Caller(3)
	function := "unknown"
	if !ok {
		file = "unknown"
		line = 0
	} else if fn := runtime.FuncForPC(pc); fn != nil {
		function = fn.Name()
		if idx := strings.LastIndex(function, "."); idx != -1 {
			function = function[idx+1:]
		}
	}

	entry := SystemLog{
		Timestamp:   time.Now().UTC(),
		Level:       level,
		Message:     message,
		Component:   extractComponent(file),
		Function:    function,
		File:        file,
		Line:        line,
		Environment: sl.environment,
		Service:     sl.service,
		Version:     sl.version,
	}

	if len(ctx) > 0 {
		logCtx := ctx[0]
		entry.Operation = logCtx.Operation
		entry.Variant = logCtx.Variant
		entry.RequestID = logCtx.RequestID
		entry.Fields = redactFields(logCtx.Fields)
		if errMsg, ok := entry.Fields["error"].(string); ok {
			entry.Error = errMsg
		}
	}
	return entry
}

func (sl *SystemLogger) write(entry SystemLog) {
	if sl.enableConsole {
		sl.logToConsole(entry)
	}
	if sl.logDir != "" {
		if err := sl.logToFile(entry); err != nil {
			log.Printf("Failed to write log file: %v", err)
		}
	}
	if sl.sink != nil {
		go sl.logToSink(entry)
	}
}

// shouldLog checks if the log level should be logged
func (sl *SystemLogger) shouldLog(level LogLevel) bool {
	return levelOrder[level] >= levelOrder[sl.minLevel]
}

var sensitiveKeys = map[string]bool{
	"client_secret": true,
	"authorization": true,
	"access_token":  true,
	"token":         true,
	"signature":     true,
	"private_key":   true,
}

// redactFields copies fields with credential values masked.
func redactFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if sensitiveKeys[strings.ToLower(k)] {
			out[k] = "***"
			continue
		}
		out[k] = v
	}
	return out
}

// extractComponent extracts component name from file path
// e.g. /path/to/gobaokim/baokim/mastersub/orders.go -> baokim/mastersub
func extractComponent(file string) string {
	parts := strings.Split(filepath.ToSlash(file), "/")

	for i, part := range parts {
		if part == "gobaokim" && i+1 < len(parts) {
			if i+2 < len(parts)-1 {
				return parts[i+1] + "/" + parts[i+2]
			}
			return parts[i+1]
		}
	}

	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}

	return "unknown"
}

// logToConsole logs to console with colored output
func (sl *SystemLogger) logToConsole(entry SystemLog) {
	colors := map[LogLevel]string{
		LevelDebug: "\033[36m",
		LevelInfo:  "\033[32m",
		LevelWarn:  "\033[33m",
		LevelError: "\033[31m",
		LevelFatal: "\033[35m",
	}
	reset := "\033[0m"

	levelStr := colors[entry.Level] + strings.ToUpper(string(entry.Level)) + reset
	fmt.Fprintln(sl.output, formatLine(entry, levelStr))

	for key, value := range entry.Fields {
		if key != "error" {
			fmt.Fprintf(sl.output, "  %s: %v\n", key, value)
		}
	}
}

// formatLine renders [TIMESTAMP] [LEVEL] [COMPONENT] [CONTEXT] MESSAGE
func formatLine(entry SystemLog, levelStr string) string {
	var contextParts []string
	if entry.Operation != "" {
		contextParts = append(contextParts, "op="+entry.Operation)
	}
	if entry.Variant != "" {
		contextParts = append(contextParts, "variant="+entry.Variant)
	}
	if entry.RequestID != "" {
		contextParts = append(contextParts, "req_id="+entry.RequestID)
	}

	logContext := ""
	if len(contextParts) > 0 {
		logContext = fmt.Sprintf("[%s] ", strings.Join(contextParts, " "))
	}

	line := fmt.Sprintf("%s [%s] [%s] %s%s",
		entry.Timestamp.Format("2006-01-02 15:04:05"),
		levelStr,
		entry.Component,
		logContext,
		entry.Message,
	)
	if entry.Error != "" {
		line += " - Error: " + entry.Error
	}
	return line
}

// logToFile appends the entry as JSON to the file for its day.
func (sl *SystemLogger) logToFile(entry SystemLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	sl.fileMu.Lock()
	defer sl.fileMu.Unlock()

	if err := os.MkdirAll(sl.logDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(sl.FilePath(entry.Timestamp), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(data, '\n'))
	return err
}

// FilePath returns the daily log file used for t.
func (sl *SystemLogger) FilePath(t time.Time) string {
	return filepath.Join(sl.logDir, fmt.Sprintf("%s_%s.log", sl.filePrefix, t.Format("2006-01-02")))
}

// logToSink forwards the entry asynchronously
func (sl *SystemLogger) logToSink(entry SystemLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sl.sink.LogSystemEvent(ctx, entry); err != nil {
		log.Printf("Failed to forward log entry: %v", err)
	}
}

// WithContext creates a new logger with context
func (sl *SystemLogger) WithContext(ctx LogContext) *ContextLogger {
	return &ContextLogger{
		systemLogger: sl,
		context:      ctx,
	}
}

// ContextLogger wraps SystemLogger with context
type ContextLogger struct {
	systemLogger *SystemLogger
	context      LogContext
}

// Debug logs a debug message with context
func (cl *ContextLogger) Debug(message string) {
	cl.systemLogger.Debug(message, cl.context)
}

// Info logs an info message with context
func (cl *ContextLogger) Info(message string) {
	cl.systemLogger.Info(message, cl.context)
}

// Warn logs a warning message with context
func (cl *ContextLogger) Warn(message string) {
	cl.systemLogger.Warn(message, cl.context)
}

// Error logs an error message with context
func (cl *ContextLogger) Error(message string, err error) {
	cl.systemLogger.Error(message, err, cl.context)
}

// AddField adds a field to the context
func (cl *ContextLogger) AddField(key string, value any) *ContextLogger {
	if cl.context.Fields == nil {
		cl.context.Fields = make(map[string]any)
	}
	cl.context.Fields[key] = value
	return cl
}

// SetOperation sets the operation in context
func (cl *ContextLogger) SetOperation(operation string) *ContextLogger {
	cl.context.Operation = operation
	return cl
}

// SetRequestID sets the request ID in context
func (cl *ContextLogger) SetRequestID(requestID string) *ContextLogger {
	cl.context.RequestID = requestID
	return cl
}
