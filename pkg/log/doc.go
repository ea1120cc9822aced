// Package log provides courier's structured logging facade.
//
// The package exposes a small Logger with leveled methods and a Field type
// for structured context, backed by log/slog handlers. Text and JSON output
// are supported; component tagging keeps records attributable:
//
//	l := log.New(log.WithLevel(log.InfoLevel), log.WithFormat(log.TextFormat))
//	l = l.WithComponent("ledger")
//	l.Info("job claimed", log.Str("job", guid), log.Str("claimant", addr))
//
// Loggers are passed explicitly through constructors; there is no package
// level default.
package log
