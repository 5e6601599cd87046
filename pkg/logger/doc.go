// Package logger provides the structured logging interface used across the
// harvester. It wraps zerolog with a small field-oriented API:
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("city_id", 42).Info("location harvest started")
//	log.WithError(err).ErrorWithFields("tile failed", map[string]interface{}{
//	    "tile": "44.4268,26.1025",
//	})
//
// Console output is colourised and goes to stderr so that command output on
// stdout stays machine readable. Set Logging.JSON for plain JSON lines and
// Logging.File to also append to a file.
package logger
