package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with platform-specific helpers
type Logger struct {
	*logrus.Logger
}

// New creates a new logger instance
func New(level string) *Logger {
	log := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	log.SetOutput(os.Stdout)

	return &Logger{Logger: log}
}

// WithFields creates a new logger entry with the specified fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.Logger.WithFields(fields)
}

// WithError creates a new logger entry with an error field
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithError(err)
}

// WithService creates a new logger entry with service name field
func (l *Logger) WithService(service string) *logrus.Entry {
	return l.Logger.WithField("service", service)
}

// WithSession creates a new logger entry with a wizard session field
func (l *Logger) WithSession(sessionID string) *logrus.Entry {
	return l.Logger.WithField("session_id", sessionID)
}

// WizardEvent logs an onboarding wizard transition with structured fields.
func (l *Logger) WizardEvent(sessionID, event string, step int, fields map[string]interface{}) {
	entry := l.Logger.WithFields(logrus.Fields{
		"wizard":     true,
		"session_id": sessionID,
		"event":      event,
		"step":       step,
	})
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	entry.Info("Wizard event")
}

// ExternalCall logs a round trip to an external collaborator (KYC provider,
// FCM, object storage, submission endpoint).
func (l *Logger) ExternalCall(target, operation string, success bool, durationMS int64) {
	entry := l.Logger.WithFields(logrus.Fields{
		"external":    true,
		"target":      target,
		"operation":   operation,
		"success":     success,
		"duration_ms": durationMS,
	})
	if success {
		entry.Info("External call completed")
	} else {
		entry.Warn("External call failed")
	}
}

// HTTPRequest logs an HTTP request event
func (l *Logger) HTTPRequest(method, path, clientIP string, statusCode int, durationMS int64) {
	entry := l.Logger.WithFields(logrus.Fields{
		"http_request": true,
		"method":       method,
		"path":         path,
		"client_ip":    clientIP,
		"status_code":  statusCode,
		"duration_ms":  durationMS,
	})
	if statusCode >= 400 {
		entry.Warn("HTTP request completed with error")
	} else {
		entry.Info("HTTP request completed")
	}
}

// Audit logs admin actions against provider records
func (l *Logger) Audit(userID, action, resource string, success bool) {
	entry := l.Logger.WithFields(logrus.Fields{
		"audit":    true,
		"user_id":  userID,
		"action":   action,
		"resource": resource,
		"success":  success,
	})
	if success {
		entry.Info("Audit event")
	} else {
		entry.Warn("Audit event failed")
	}
}
