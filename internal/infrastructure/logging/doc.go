// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output
//
// Components take a *Logger and derive a named sub-logger:
//
//	log := logging.NewDefault().Named("dispatcher")
//	log.Info("channel installed", logging.Channel("geckoBridge"))
//
// Output goes to stderr by default so the run command can keep stdout for
// script output.
package logging
