package logging

import (
	"log/slog"
	"os"
)

// Setup installs a JSON slog logger on stdout. Called before anything else in
// main; the DB sink is attached later once the database handle exists.
func Setup() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}
