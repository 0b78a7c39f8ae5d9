// Package telemetry sets up the zap loggers for a run of the bot.
package telemetry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/wordwatch/internal/setup/config"
	"github.com/robalyx/wordwatch/internal/setup/telemetry/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrInvalidLevel is returned for log level names that are not recognized.
var ErrInvalidLevel = errors.New("invalid log level")

// sessionLayout names session directories so they sort chronologically.
const sessionLayout = "2006-01-02_15-04-05"

// Levels lists the level names accepted by ParseLevel.
var Levels = []string{"debug", "info", "warning", "error"}

// ParseLevel maps a level name to a zap level. "warning" is accepted as an
// alias for zap's "warn".
func ParseLevel(name string) (zapcore.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return level, fmt.Errorf("%w: %q", ErrInvalidLevel, name)
	}
	return level, nil
}

// Manager handles the creation of session log directories and loggers. All
// loggers it creates share one atomic level.
type Manager struct {
	instanceID    string
	logDir        string
	sessionDir    string
	level         zap.AtomicLevel
	maxLogsToKeep int
	maxLogLines   int
	stderr        bool

	mu    sync.Mutex
	files []*logger.CappedFile
}

// NewManager creates a new Manager instance writing under logDir.
func NewManager(logDir string, debugCfg *config.Debug) (*Manager, error) {
	level, err := ParseLevel(debugCfg.LogLevel)
	if err != nil {
		return nil, err
	}

	return &Manager{
		instanceID:    uuid.New().String(),
		logDir:        logDir,
		level:         zap.NewAtomicLevelAt(level),
		maxLogsToKeep: debugCfg.MaxLogsToKeep,
		maxLogLines:   debugCfg.MaxLogLines,
		stderr:        true,
	}, nil
}

// DisableStderr stops new loggers from also writing to standard error.
func (lm *Manager) DisableStderr() {
	lm.stderr = false
}

// InstanceID returns the unique identifier for this program run.
func (lm *Manager) InstanceID() string {
	return lm.instanceID
}

// SessionDir returns the current session directory, empty before the first
// logger is created.
func (lm *Manager) SessionDir() string {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.sessionDir
}

// Level returns the current level name.
func (lm *Manager) Level() string {
	return lm.level.Level().String()
}

// SetLevel changes the level of every logger created by the manager.
func (lm *Manager) SetLevel(name string) error {
	level, err := ParseLevel(name)
	if err != nil {
		return err
	}
	lm.level.SetLevel(level)
	return nil
}

// GetLogger returns a logger writing to <session>/<name>.log and, unless
// disabled, to standard error.
func (lm *Manager) GetLogger(name string) (*zap.Logger, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.sessionDir == "" {
		if err := lm.setupLogDirectories(); err != nil {
			return nil, err
		}
	}

	file, err := logger.OpenCapped(filepath.Join(lm.sessionDir, name+".log"), lm.maxLogLines)
	if err != nil {
		return nil, err
	}
	lm.files = append(lm.files, file)

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	cores := []zapcore.Core{zapcore.NewCore(encoder, file, lm.level)}
	if lm.stderr {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), lm.level))
	}

	return zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

// Close closes every log file opened by the manager.
func (lm *Manager) Close() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var errs []error
	for _, f := range lm.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	lm.files = nil
	return errors.Join(errs...)
}

// setupLogDirectories ensures the base directory exists, removes old
// sessions and creates the session directory for this run.
func (lm *Manager) setupLogDirectories() error {
	if err := os.MkdirAll(lm.logDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	if err := lm.rotateLogSessions(); err != nil {
		return fmt.Errorf("failed to rotate log sessions: %w", err)
	}

	dir := filepath.Join(lm.logDir, time.Now().Format(sessionLayout)+"_"+lm.instanceID[:8])
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	lm.sessionDir = dir
	return nil
}

// rotateLogSessions deletes the oldest session directories so that, with the
// new session, at most maxLogsToKeep remain.
func (lm *Manager) rotateLogSessions() error {
	if lm.maxLogsToKeep <= 0 {
		return nil
	}

	entries, err := os.ReadDir(lm.logDir)
	if err != nil {
		return err
	}

	var sessions []string
	for _, entry := range entries {
		if entry.IsDir() {
			sessions = append(sessions, entry.Name())
		}
	}
	slices.Sort(sessions)

	excess := len(sessions) - (lm.maxLogsToKeep - 1)
	for i := range max(excess, 0) {
		if err := os.RemoveAll(filepath.Join(lm.logDir, sessions[i])); err != nil {
			return err
		}
	}
	return nil
}
