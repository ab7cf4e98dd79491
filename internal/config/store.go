// Package config implements the settings store described in spec §4.A: a
// single string-keyed table with a process-local hot cache, typed
// accessors, and explicit invalidation. It is adapted from the teacher
// repo's pkg/config.LoadOrDefault default-seeding pattern and
// backend/history.go's lazily-initialized key/value bucket, but backed by
// the shared entity-store database instead of a bolt file or standalone
// YAML document.
package config

import (
	_ "embed"
	"strconv"
	"strings"
	"sync"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/vibarr/core/internal/vibarrerr"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Entry is the persisted row backing a single setting (spec §3 SettingEntry).
type Entry struct {
	Key      string `gorm:"primaryKey"`
	Value    string
	Category string
}

func (Entry) TableName() string { return "setting_entries" }

type defaultEntry struct {
	Key      string `yaml:"key"`
	Category string `yaml:"category"`
	Value    string `yaml:"value"`
}

// Store is the settings store. Reads are served from an in-memory cache;
// writes go through the database first and update the cache only on
// success, satisfying invariant 7 ("cache reflects persistent storage after
// any successful write").
type Store struct {
	db  *gorm.DB
	log zerolog.Logger

	hot *cache.Cache

	mu   sync.Mutex
	subs map[string][]chan struct{}
}

// New opens the settings store, auto-migrating the backing table and
// seeding any default keys missing from it. It returns ConfigMissing only
// if the table itself cannot be created or read — per-key lookups never
// fail.
func New(db *gorm.DB, log zerolog.Logger) (*Store, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, vibarrerr.Wrap(vibarrerr.ConfigMissing, err, "migrate setting_entries")
	}

	s := &Store{
		db:   db,
		log:  log.With().Str("component", "config").Logger(),
		hot:  cache.New(cache.NoExpiration, 0),
		subs: make(map[string][]chan struct{}),
	}

	if err := s.seedDefaults(); err != nil {
		return nil, vibarrerr.Wrap(vibarrerr.ConfigMissing, err, "seed default settings")
	}

	if err := s.reloadAll(); err != nil {
		return nil, vibarrerr.Wrap(vibarrerr.ConfigMissing, err, "load settings into cache")
	}

	return s, nil
}

func (s *Store) seedDefaults() error {
	var defaults []defaultEntry
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		return err
	}

	for _, d := range defaults {
		entry := Entry{Key: d.Key}
		if err := s.db.Where(Entry{Key: d.Key}).
			Attrs(Entry{Value: d.Value, Category: d.Category}).
			FirstOrCreate(&entry).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) reloadAll() error {
	var entries []Entry
	if err := s.db.Find(&entries).Error; err != nil {
		return err
	}
	for _, e := range entries {
		s.hot.Set(e.Key, e, cache.NoExpiration)
	}
	return nil
}

// Optional returns the raw string value and whether the key is present and
// non-empty.
func (s *Store) Optional(key string) (string, bool) {
	v, ok := s.hot.Get(key)
	if !ok {
		return "", false
	}
	entry := v.(Entry)
	if entry.Value == "" {
		return "", false
	}
	return entry.Value, true
}

// String returns the setting's value, or def if unset/empty.
func (s *Store) String(key, def string) string {
	if v, ok := s.Optional(key); ok {
		return v
	}
	return def
}

// Bool recognizes {true,1,yes} (case-insensitive) as true; anything else
// (including unset) is false unless def says otherwise.
func (s *Store) Bool(key string, def bool) bool {
	v, ok := s.Optional(key)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func (s *Store) Int(key string, def int) int {
	v, ok := s.Optional(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func (s *Store) Float(key string, def float64) float64 {
	v, ok := s.Optional(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

// Set writes a setting through to storage, then updates the cache, then
// notifies any subscriber registered for this key. Invariant 7 requires the
// write to be synchronous: callers observe the new value immediately after
// Set returns without needing Invalidate.
func (s *Store) Set(key, value, category string) error {
	entry := Entry{Key: key, Value: value, Category: category}
	if err := s.db.Save(&entry).Error; err != nil {
		return err
	}
	s.hot.Set(key, entry, cache.NoExpiration)
	s.notify(key)
	return nil
}

// Invalidate reloads the given keys (or all keys, if none given) from
// storage into the hot cache immediately. Integrations whose cached client state
// depends on mutable settings call this after a bulk write elsewhere.
func (s *Store) Invalidate(keys ...string) error {
	if len(keys) == 0 {
		if err := s.reloadAll(); err != nil {
			return err
		}
		s.notify("")
		return nil
	}
	for _, k := range keys {
		var entry Entry
		if err := s.db.Where("key = ?", k).First(&entry).Error; err == nil {
			s.hot.Set(k, entry, cache.NoExpiration)
		} else {
			// Row no longer exists in storage; drop it from the cache too.
			s.hot.Delete(k)
		}
		s.notify(k)
	}
	return nil
}

// Subscribe returns a channel that receives a signal whenever any of the
// given keys (or any key at all, if none given) changes. The channel is
// buffered so a slow subscriber cannot block Set/Invalidate callers.
func (s *Store) Subscribe(keys ...string) <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(keys) == 0 {
		keys = []string{""}
	}
	for _, k := range keys {
		s.subs[k] = append(s.subs[k], ch)
	}
	return ch
}

func (s *Store) notify(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	signal := func(ch chan struct{}) {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	for _, ch := range s.subs[key] {
		signal(ch)
	}
	if key != "" {
		for _, ch := range s.subs[""] {
			signal(ch)
		}
	}
}

// Ready blocks briefly to let the caller confirm the store answers reads;
// used by startup health reporting (spec §6 /health/ready).
func (s *Store) Ready() bool {
	return s.db.Exec("SELECT 1").Error == nil
}
