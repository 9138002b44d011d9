package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Editors and configmap mounts tend to emit several fs events per save;
// events inside this window coalesce into one reload.
const debounceWindow = 200 * time.Millisecond

// expandEnvVars substitutes ${VAR} and ${VAR:default} references so
// secrets can stay in the environment instead of the file. An unset
// variable without a default expands to the empty string.
func expandEnvVars(s string) string {
	var out strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			break
		}
		out.WriteString(s[:start])
		name, fallback, _ := strings.Cut(s[start+2:start+end], ":")
		if val, ok := os.LookupEnv(name); ok {
			out.WriteString(val)
		} else {
			out.WriteString(fallback)
		}
		s = s[start+end+1:]
	}
	out.WriteString(s)
	return out.String()
}

// LoadFile reads one YAML document into dest, expanding environment
// references first.
func LoadFile(path string, dest any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(raw))), dest); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// snapshot bundles the two config documents so readers always see a
// matched pair, even while a reload is in flight.
type snapshot struct {
	cfg       *Config
	providers *ProvidersConfig
}

// Loader reads the config directory and serves the result to the rest
// of the process. Load may run again at any time (the fsnotify watch
// does exactly that); readers are never blocked and a failed reload
// leaves the previous snapshot in place.
type Loader struct {
	dir    string
	logger *slog.Logger
	state  atomic.Pointer[snapshot]

	mu    sync.Mutex
	hooks []func()
}

func NewLoader(dir string, logger *slog.Logger) *Loader {
	return &Loader{dir: dir, logger: logger}
}

func (l *Loader) Load() error {
	cfg := DefaultConfig()
	if err := LoadFile(filepath.Join(l.dir, "router.yaml"), cfg); err != nil {
		return fmt.Errorf("load router config: %w", err)
	}

	providers := &ProvidersConfig{}
	if err := LoadFile(filepath.Join(l.dir, "providers.yaml"), providers); err != nil {
		return fmt.Errorf("load providers config: %w", err)
	}
	providers.applyDefaults()

	l.state.Store(&snapshot{cfg: cfg, providers: providers})
	l.logger.Info("configuration loaded", "dir", l.dir)
	return nil
}

func (l *Loader) Config() *Config {
	if s := l.state.Load(); s != nil {
		return s.cfg
	}
	return nil
}

func (l *Loader) Providers() *ProvidersConfig {
	if s := l.state.Load(); s != nil {
		return s.providers
	}
	return nil
}

// OnReload registers fn to run after every successful reload. Safe to
// call while the watch is already running.
func (l *Loader) OnReload(fn func()) {
	l.mu.Lock()
	l.hooks = append(l.hooks, fn)
	l.mu.Unlock()
}

func (l *Loader) reloadHooks() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]func(){}, l.hooks...)
}

// Watch reloads the directory whenever a file in it is written, created,
// or renamed over (atomic-save editors and configmap updates both show
// up as the latter two).
func (l *Loader) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.Add(l.dir); err != nil {
		w.Close()
		return fmt.Errorf("watch config dir %s: %w", l.dir, err)
	}
	go l.watchLoop(w)
	return nil
}

func (l *Loader) watchLoop(w *fsnotify.Watcher) {
	defer w.Close()

	var pending <-chan time.Time
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				l.logger.Info("config change detected", "file", ev.Name, "op", ev.Op.String())
				pending = time.After(debounceWindow)
			}
		case <-pending:
			pending = nil
			if err := l.Load(); err != nil {
				l.logger.Error("config reload failed, keeping previous snapshot", "error", err)
				continue
			}
			for _, fn := range l.reloadHooks() {
				fn()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			l.logger.Error("config watch error", "error", err)
		}
	}
}
