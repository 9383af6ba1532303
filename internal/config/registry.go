package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/gazevoice/pkg/audio"
	"github.com/MrWong99/gazevoice/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by the Create methods when no factory
// is registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// STTFactory builds a transcription backend from its config entry.
type STTFactory func(ProviderEntry) (stt.Backend, error)

// AudioFactory builds a capture device from its config entry.
type AudioFactory func(ProviderEntry) (audio.CaptureDevice, error)

// Registry maps provider names to constructors. It is safe for concurrent
// use.
type Registry struct {
	mu    sync.RWMutex
	stt   map[string]STTFactory
	audio map[string]AudioFactory
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt:   make(map[string]STTFactory),
		audio: make(map[string]AudioFactory),
	}
}

// RegisterSTT registers a transcription backend factory under name. A later
// registration under the same name replaces the earlier one.
func (r *Registry) RegisterSTT(name string, factory STTFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterAudio registers a capture device factory under name.
func (r *Registry) RegisterAudio(name string, factory AudioFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audio[name] = factory
}

// CreateSTT builds the backend registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Backend, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateAudio builds the capture device registered under entry.Name.
func (r *Registry) CreateAudio(entry ProviderEntry) (audio.CaptureDevice, error) {
	r.mu.RLock()
	factory, ok := r.audio[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: audio/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// STTNames returns the registered transcription provider names, sorted.
func (r *Registry) STTNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.stt))
}

// AudioNames returns the registered capture device names, sorted.
func (r *Registry) AudioNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.audio))
}
