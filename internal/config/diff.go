package config

import "slices"

// ConfigDiff describes what changed between two configs and how the change
// can be applied.
type ConfigDiff struct {
	// StreamChanged reports a change to the transcription stream settings.
	// They are applied with session.UpdateConfig followed by a reactivation.
	StreamChanged bool

	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired names the changed fields that only take effect after
	// the process restarts.
	RestartRequired []string
}

// Changed reports whether d carries any change.
func (d ConfigDiff) Changed() bool {
	return d.StreamChanged || d.LogLevelChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Voice.Session() != new.Voice.Session() {
		d.StreamChanged = true
	}

	restart := func(field string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, field)
		}
	}
	ov, nv := old.Voice, new.Voice
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("server.tls", !equalTLS(old.Server.TLS, new.Server.TLS))
	restart("server.monitor_origins", !slices.Equal(old.Server.MonitorOrigins, new.Server.MonitorOrigins))
	restart("voice.scorer", ov.Scorer != nv.Scorer)
	restart("voice.compare_scorers", ov.CompareScorers != nv.CompareScorers)
	restart("voice.periodic_restart", ov.PeriodicRestart != nv.PeriodicRestart)
	restart("voice.run_time_limit", ov.RunTimeLimit != nv.RunTimeLimit)
	restart("voice.frame_rate", ov.FrameRate != nv.FrameRate)
	restart("providers.stt", !equalSTT(old.Providers.STT, new.Providers.STT))
	restart("providers.audio", !equalEntry(old.Providers.Audio, new.Providers.Audio))
	restart("publish.mqtt", old.Publish.MQTT != new.Publish.MQTT)

	return d
}

func equalTLS(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalSTT(a, b STTConfig) bool {
	return equalEntry(a.ProviderEntry, b.ProviderEntry) &&
		a.CircuitBreaker == b.CircuitBreaker &&
		slices.EqualFunc(a.Fallbacks, b.Fallbacks, equalEntry)
}

func equalEntry(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || len(a.Options) != len(b.Options) {
		return false
	}
	for k, av := range a.Options {
		bv, ok := b.Options[k]
		if !ok || !equalOption(av, bv) {
			return false
		}
	}
	return true
}

// equalOption compares decoded YAML scalars. Nested maps and lists are
// treated as changed.
func equalOption(a, b any) bool {
	switch a.(type) {
	case string, int, float64, bool, nil:
		return a == b
	}
	return false
}
