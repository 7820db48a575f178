package alert

import (
	"context"
	"log/slog"
)

// LogNotifier logs alerts instead of sending them (dry-run)
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, body string) (string, error) {
	n.log.Info("SMS", slog.String("body", body))
	return "dry-run", nil
}
