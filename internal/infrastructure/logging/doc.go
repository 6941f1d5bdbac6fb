// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output
//
// Components receive a *Logger, call Named with their component name and
// attach session ids with the Session field helper so that every line
// about a session can be filtered on session_id.
//
// Example Usage:
//
//	logger := logging.NewDefault().Named("registry")
//	logger.Info("session created", logging.Session(id))
package logging
