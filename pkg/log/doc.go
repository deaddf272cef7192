/*
Package log provides structured logging via zerolog: a global logger
initialized once with Init(Config), and With* helpers that attach
step/scope/tag context to a child logger so call sites don't repeat
fields by hand.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	stepLog := log.WithStepID("step-123")
	stepLog.Info().Msg("step admitted")

	scopeLog := log.WithScope("etl")
	scopeLog.Debug().Int("candidates", 12).Msg("selecting ready steps")

# Integration Points

  - pkg/scheduler, pkg/protocol and cmd/stepctl log through
    WithComponent child loggers, so their lines carry a component field.
  - pkg/dag logs its blob-GC warnings through the global Logger.
  - pkg/admitter and pkg/workerclient do not log.
*/
package log
