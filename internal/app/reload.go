package app

import (
	"log/slog"

	"github.com/MrWong99/gazevoice/internal/config"
	"github.com/MrWong99/gazevoice/internal/session"
)

// applyConfig is the watcher callback. Stream settings are applied with a
// reactivation when voice input is on; the log level changes immediately.
// Everything else needs a restart and is only logged.
func (a *App) applyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Changed() {
		return
	}

	if d.LogLevelChanged {
		a.level.Set(d.NewLogLevel.Slog())
		slog.Info("app: log level changed", "level", d.NewLogLevel)
	}

	if d.StreamChanged {
		a.session.UpdateConfig(new.Voice.Session())
		if a.session.State() != session.Inactive {
			a.session.Reactivate()
		}
		slog.Info("app: stream settings changed",
			"language", new.Voice.Language,
			"model_command", new.Voice.ModelCommand,
			"model_free", new.Voice.ModelFree,
		)
	}

	if len(d.RestartRequired) > 0 {
		slog.Warn("app: config changes take effect after restart", "fields", d.RestartRequired)
	}

	a.cfgMu.Lock()
	a.cfg = new
	a.cfgMu.Unlock()
}
