package cache

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/mbellhart/crawlcache/internal/metrics"
	"github.com/mbellhart/crawlcache/internal/scrape"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const recordExtension = ".json"

// Config captures the parameters for the file-backed content store.
type Config struct {
	// BaseDir is the directory holding one record file per entry.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
	// TokenBudget caps the shaped body size of every stored entry.
	TokenBudget int `mapstructure:"token_budget" yaml:"token_budget"`
	// MaxEntries caps the number of stored entries; exceeding writes
	// trigger eviction.
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`
}

// Default capacity knobs, used when the config leaves them zero.
const (
	DefaultTokenBudget = 2000
	DefaultMaxEntries  = 1000
)

// lockStripes is the number of per-key mutex stripes. Fixed so the lock
// footprint stays constant no matter how many distinct URLs pass through.
const lockStripes = 64

// Store is a bounded, hash-addressed store of shaped scrape results.
//
// Locking: single-record read-modify-write cycles take a stripe lock plus a
// read lock on opMu; eviction and Clear take opMu exclusively. Without that
// ordering a Get write-back could land after evict removed the record,
// resurrecting it and breaking the capacity bound.
type Store struct {
	baseDir     string
	tokenBudget int
	maxEntries  int
	hasher      scrape.Hasher
	clock       scrape.Clock
	logger      *zap.Logger

	opMu    sync.RWMutex
	stripes [lockStripes]sync.Mutex
}

// New creates a Store rooted at cfg.BaseDir, creating the directory when
// missing and verifying it is writable.
func New(cfg Config, hasher scrape.Hasher, clock scrape.Clock, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("cache base directory is required")
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = DefaultTokenBudget
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat cache directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create cache directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("cache path %s is not a directory", cfg.BaseDir)
	}

	probe := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(probe, []byte("probe"), 0o600); err != nil {
		return nil, fmt.Errorf("cache directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up write probe: %w", err)
	}

	return &Store{
		baseDir:     cfg.BaseDir,
		tokenBudget: cfg.TokenBudget,
		maxEntries:  cfg.MaxEntries,
		hasher:      hasher,
		clock:       clock,
		logger:      logger,
	}, nil
}

// lockKey returns the stripe serializing read-modify-write cycles on one
// record. Distinct keys may share a stripe; that costs contention, never
// correctness.
func (s *Store) lockKey(hash string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(hash))
	return &s.stripes[h.Sum32()%lockStripes]
}

func (s *Store) recordPath(hash string) string {
	return filepath.Join(s.baseDir, hash+recordExtension)
}

// Put shapes and persists a successful outcome, then evicts down to capacity.
// Failed or empty outcomes are silently ignored: failures are never cached.
// I/O errors are fatal — they indicate an unusable cache directory.
func (s *Store) Put(outcome scrape.ExecutionOutcome) error {
	if !outcome.Succeeded || strings.TrimSpace(outcome.Body) == "" {
		return nil
	}

	hash := s.hasher.HashURL(outcome.URL)
	body := Shape(outcome.Body, s.tokenBudget)
	now := s.clock.Now()
	entry := scrape.CacheEntry{
		SourceURL:      outcome.URL,
		ContentHash:    hash,
		Title:          outcome.Title,
		Body:           body,
		StatusCode:     outcome.StatusCode,
		ContentLength:  len(body),
		CachedAt:       now,
		LastAccessedAt: now,
		AccessCount:    0,
		TokenCount:     TokenCount(body),
	}

	s.opMu.RLock()
	lock := s.lockKey(hash)
	lock.Lock()
	err := s.writeRecord(entry)
	lock.Unlock()
	s.opMu.RUnlock()
	if err != nil {
		return err
	}
	metrics.ObserveCachePut()

	return s.evict()
}

func (s *Store) writeRecord(entry scrape.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache record: %w", err)
	}
	if err := os.WriteFile(s.recordPath(entry.ContentHash), data, 0o600); err != nil {
		return fmt.Errorf("write cache record: %w", err)
	}
	return nil
}

// Get looks up a URL by its hash. On a hit the access fields are bumped and
// persisted before the entry is returned. Corrupted or missing records read
// as a miss; a failed access-field write-back degrades to a log line rather
// than hiding a readable entry.
func (s *Store) Get(url string) (scrape.CacheEntry, bool) {
	hash := s.hasher.HashURL(url)
	s.opMu.RLock()
	defer s.opMu.RUnlock()
	lock := s.lockKey(hash)
	lock.Lock()
	defer lock.Unlock()

	entry, ok := s.readRecord(s.recordPath(hash))
	if !ok {
		metrics.ObserveCacheMiss()
		return scrape.CacheEntry{}, false
	}

	entry.AccessCount++
	entry.LastAccessedAt = s.clock.Now()
	if err := s.writeRecord(entry); err != nil {
		s.logger.Warn("cache access write-back failed",
			zap.String("url", url), zap.Error(err))
	}
	metrics.ObserveCacheHit()
	return entry, true
}

func (s *Store) readRecord(path string) (scrape.CacheEntry, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scrape.CacheEntry{}, false
	}
	var entry scrape.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.logger.Warn("skipping corrupted cache record",
			zap.String("path", path), zap.Error(err))
		return scrape.CacheEntry{}, false
	}
	if entry.ContentHash == "" || entry.SourceURL == "" {
		return scrape.CacheEntry{}, false
	}
	return entry, true
}

// scan loads every readable record. Corrupted files are skipped, never fatal.
func (s *Store) scan() []scrape.CacheEntry {
	names, err := os.ReadDir(s.baseDir)
	if err != nil {
		s.logger.Warn("cache directory scan failed", zap.Error(err))
		return nil
	}
	entries := make([]scrape.CacheEntry, 0, len(names))
	for _, f := range names {
		if f.IsDir() || !strings.HasSuffix(f.Name(), recordExtension) {
			continue
		}
		if entry, ok := s.readRecord(filepath.Join(s.baseDir, f.Name())); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// evict deletes the lowest-scoring entries until the capacity invariant
// holds again. Runs synchronously inside Put so the bound is true the moment
// Put returns. Holding opMu exclusively keeps a concurrent Get write-back
// from re-creating a record between the scan and the removal.
func (s *Store) evict() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	entries := s.scan()
	if len(entries) <= s.maxEntries {
		return nil
	}
	now := s.clock.Now()
	sort.Slice(entries, func(i, j int) bool {
		return Score(entries[i].AccessCount, entries[i].LastAccessedAt, now) <
			Score(entries[j].AccessCount, entries[j].LastAccessedAt, now)
	})
	for _, entry := range entries[:len(entries)-s.maxEntries] {
		if err := os.Remove(s.recordPath(entry.ContentHash)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("evict cache record: %w", err)
		}
		metrics.ObserveCacheEviction()
		s.logger.Debug("evicted cache entry",
			zap.String("url", entry.SourceURL),
			zap.Int("access_count", entry.AccessCount))
	}
	return nil
}

// Search matches query case-insensitively against title, URL, and body,
// ranked by the same composite score eviction uses, best first.
func (s *Store) Search(query string, limit int) []scrape.CacheEntry {
	needle := strings.ToLower(query)
	var matched []scrape.CacheEntry
	for _, entry := range s.scan() {
		if strings.Contains(strings.ToLower(entry.Title), needle) ||
			strings.Contains(strings.ToLower(entry.SourceURL), needle) ||
			strings.Contains(strings.ToLower(entry.Body), needle) {
			matched = append(matched, entry)
		}
	}
	now := s.clock.Now()
	sort.Slice(matched, func(i, j int) bool {
		return Score(matched[i].AccessCount, matched[i].LastAccessedAt, now) >
			Score(matched[j].AccessCount, matched[j].LastAccessedAt, now)
	})
	return clip(matched, limit)
}

// List returns entries most recently used first.
func (s *Store) List(limit int) []scrape.CacheEntry {
	entries := s.scan()
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccessedAt.After(entries[j].LastAccessedAt)
	})
	return clip(entries, limit)
}

func clip(entries []scrape.CacheEntry, limit int) []scrape.CacheEntry {
	if limit > 0 && len(entries) > limit {
		return entries[:limit]
	}
	return entries
}

// Stats aggregates over all readable records. Zero values when empty.
func (s *Store) Stats() scrape.CacheStats {
	var stats scrape.CacheStats
	maxAccess := -1
	for _, entry := range s.scan() {
		stats.TotalEntries++
		stats.TotalSizeBytes += int64(entry.ContentLength)
		stats.TotalTokens += entry.TokenCount
		if stats.OldestCachedAt.IsZero() || entry.CachedAt.Before(stats.OldestCachedAt) {
			stats.OldestCachedAt = entry.CachedAt
		}
		if entry.CachedAt.After(stats.NewestCachedAt) {
			stats.NewestCachedAt = entry.CachedAt
		}
		if entry.AccessCount > maxAccess {
			maxAccess = entry.AccessCount
			stats.MostAccessedURL = entry.SourceURL
		}
	}
	return stats
}

// Clear deletes every entry and recreates an empty store directory. Safe on
// an empty or already-missing directory.
func (s *Store) Clear() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := os.RemoveAll(s.baseDir); err != nil {
		return fmt.Errorf("clear cache directory: %w", err)
	}
	if err := os.MkdirAll(s.baseDir, 0o750); err != nil {
		return fmt.Errorf("recreate cache directory: %w", err)
	}
	return nil
}
