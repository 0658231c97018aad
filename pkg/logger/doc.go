// Package logger builds *slog.Logger instances for the notification engine.
//
// New takes functional options selecting the output format, level, static
// attributes and ContextExtractor callbacks. Extractors run on every record, so
// values stored in context (request ids, caller identity) land in the log
// without threading them through every call.
//
// Attribute helpers in attr.go keep key names consistent across packages:
//
//	log.InfoContext(ctx, "trigger fired",
//	    logger.TriggerID(t.ID),
//	    logger.UserID(t.Draft.UserID),
//	    logger.FireAt(t.FireAt),
//	)
//
// A process usually configures it once from the environment:
//
//	var cfg logger.Config
//	config.MustLoad(&cfg)
//	log := logger.New(logger.FromConfig(cfg))
//	logger.SetAsDefault(log)
package logger
