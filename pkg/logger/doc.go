// Package logger provides the structured logging interface used across reelgrab.
//
// It wraps zerolog with a small interface so components can take a Logger in
// their constructors and tests can pass NewTestLogger or NewNopLogger instead.
//
//	logger.Initialize(&cfg.Logging)
//	logger.WithField("shortcode", ref.Shortcode).Info("Extraction started")
//
// Console output is coloured; setting Format to "json" emits one JSON object
// per line, and File tees JSON lines into a log file.
package logger
