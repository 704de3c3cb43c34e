// Package history memoizes Git history queries and derives churn and ownership from them.
package history

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/huangsam/codepulse/internal/contract"
	"github.com/huangsam/codepulse/schema"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// currentCacheVersion defines the version of the persisted entry schema
const currentCacheVersion = 1

type queryKind string

const (
	kindLog   queryKind = "log"
	kindBlame queryKind = "blame"
)

// LogResult is the commit list of one path inside a window.
type LogResult struct {
	Status  schema.HistoryStatus
	Commits []CommitRecord
}

// NumstatResult is the line churn of one path inside a window.
type NumstatResult struct {
	Status  schema.HistoryStatus
	Added   int
	Removed int
}

// BlameResult is the blamed line count per author of one path at HEAD.
type BlameResult struct {
	Status schema.HistoryStatus
	Lines  map[string]int
	Total  int
}

// Stats counts cache activity since construction.
type Stats struct {
	Hits      int64
	Misses    int64
	StoreHits int64
	VCSCalls  int64
}

// Options tunes a Cache. The zero value uses the default timeout and no persistent store.
type Options struct {
	Timeout time.Duration
	Store   contract.CacheStore
}

type cacheKey struct {
	kind  queryKind
	path  string
	since int64
}

func (k cacheKey) String() string {
	return string(k.kind) + "|" + k.path + "|" + strconv.FormatInt(k.since, 10)
}

type entry struct {
	Status  schema.HistoryStatus `json:"status"`
	Commits []CommitRecord       `json:"commits,omitempty"`
	Blame   map[string]int       `json:"blame,omitempty"`
}

// persistedEntry is the stored form of an entry; it repeats the full key so a
// hash collision or a stale row is detected on read.
type persistedEntry struct {
	Repo  string    `json:"repo"`
	Head  string    `json:"head"`
	Kind  queryKind `json:"kind"`
	Path  string    `json:"path"`
	Since int64     `json:"since"`
	Entry entry     `json:"entry"`
}

// Cache memoizes per-path log and blame queries for one repository at one HEAD.
// Every query goes through fetch, which deduplicates concurrent callers so the
// same key never reaches Git twice during a run.
type Cache struct {
	client  contract.GitClient
	repo    string
	head    string
	timeout time.Duration
	store   contract.CacheStore

	mu      sync.RWMutex
	entries map[cacheKey]*entry
	tracked map[string]bool
	recent  map[int64]bool
	group   singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	storeHits atomic.Int64
	vcsCalls  atomic.Int64
}

// NewCache creates a cache bound to the current HEAD of repoPath.
// A repository without commits gets an empty head and reports no history.
func NewCache(ctx context.Context, client contract.GitClient, repoPath string, opts Options) *Cache {
	if opts.Timeout <= 0 {
		opts.Timeout = contract.DefaultHistoryTimeout
	}
	head, err := client.GetRepoHash(ctx, repoPath)
	if err != nil {
		contract.LogDebug("cannot resolve HEAD, history disabled", err)
		head = ""
	}
	return &Cache{
		client:  client,
		repo:    repoPath,
		head:    head,
		timeout: opts.Timeout,
		store:   opts.Store,
		entries: make(map[cacheKey]*entry),
		recent:  make(map[int64]bool),
	}
}

// Head returns the commit the cache is bound to.
func (c *Cache) Head() string {
	return c.head
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		StoreHits: c.storeHits.Load(),
		VCSCalls:  c.vcsCalls.Load(),
	}
}

// GetLog returns the commits touching path at or after since.
func (c *Cache) GetLog(ctx context.Context, path string, since time.Time) (LogResult, error) {
	e, err := c.fetch(ctx, cacheKey{kind: kindLog, path: path, since: since.Unix()})
	if err != nil {
		return LogResult{}, err
	}
	return LogResult{Status: e.Status, Commits: e.Commits}, nil
}

// GetNumstat returns the lines added and removed in path at or after since.
// It shares the log query, so it never causes a separate Git call.
func (c *Cache) GetNumstat(ctx context.Context, path string, since time.Time) (NumstatResult, error) {
	e, err := c.fetch(ctx, cacheKey{kind: kindLog, path: path, since: since.Unix()})
	if err != nil {
		return NumstatResult{}, err
	}
	res := NumstatResult{Status: e.Status}
	for _, commit := range e.Commits {
		res.Added += commit.Added
		res.Removed += commit.Removed
	}
	return res, nil
}

// GetBlame returns the blamed lines per author of path at HEAD.
func (c *Cache) GetBlame(ctx context.Context, path string) (BlameResult, error) {
	e, err := c.fetch(ctx, cacheKey{kind: kindBlame, path: path})
	if err != nil {
		return BlameResult{}, err
	}
	res := BlameResult{Status: e.Status, Lines: e.Blame}
	for _, n := range e.Blame {
		res.Total += n
	}
	return res, nil
}

// Prewarm fills the log entries of paths from one repository-wide query and
// then fetches blame for each path with at most workers concurrent calls.
// Failures only leave entries unset; per-path queries retry them later.
func (c *Cache) Prewarm(ctx context.Context, paths []string, since time.Time, workers int) error {
	if err := c.prewarmLogs(ctx, paths, since); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))
	for _, path := range paths {
		g.Go(func() error {
			_, err := c.GetBlame(gctx, path)
			return err
		})
	}
	return g.Wait()
}

// prewarmLogs fills log entries from the persistent store first. Only paths
// the store misses trigger the repository-wide activity query, and the entries
// it produces are written back.
func (c *Cache) prewarmLogs(ctx context.Context, paths []string, since time.Time) error {
	if c.head == "" {
		return nil
	}
	missing, err := c.loadLogs(paths, since)
	if err != nil || len(missing) == 0 {
		return err
	}

	tracked, err := c.trackedSet(ctx)
	if err != nil {
		contract.LogDebug("prewarm skipped, cannot list tracked files", err)
		return nil
	}
	recent, err := c.hasCommitsSince(ctx, since)
	if err != nil {
		contract.LogDebug("prewarm skipped, cannot check recent commits", err)
		return nil
	}

	byPath := map[string][]CommitRecord{}
	if recent {
		qctx, cancel := context.WithTimeout(ctx, c.timeout)
		c.vcsCalls.Add(1)
		out, err := c.client.GetActivityLog(qctx, c.repo, since)
		cancel()
		if err != nil {
			contract.LogDebug("prewarm activity log failed", err)
			return nil
		}
		byPath = parseLog(out)
	}

	filled := make(map[cacheKey]*entry, len(missing))
	c.mu.Lock()
	for _, path := range missing {
		if !tracked[path] {
			continue
		}
		key := cacheKey{kind: kindLog, path: path, since: since.Unix()}
		if _, ok := c.entries[key]; ok {
			continue
		}
		e := &entry{Status: schema.HistoryAvailable, Commits: byPath[path]}
		if !recent {
			e = &entry{Status: schema.HistoryNone}
		}
		c.entries[key] = e
		filled[key] = e
	}
	c.mu.Unlock()

	for key, e := range filled {
		c.save(key, e)
	}
	return nil
}

// loadLogs moves persisted log entries into memory and returns the paths
// still without one.
func (c *Cache) loadLogs(paths []string, since time.Time) ([]string, error) {
	if c.store == nil {
		return paths, nil
	}
	var missing []string
	for _, path := range paths {
		key := cacheKey{kind: kindLog, path: path, since: since.Unix()}
		stored, err := c.load(key)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			missing = append(missing, path)
			continue
		}
		c.storeHits.Add(1)
		c.remember(key, stored)
	}
	return missing, nil
}

// fetch is the single path from callers to Git: memory, then the persistent
// store, then one deduplicated query.
func (c *Cache) fetch(ctx context.Context, key cacheKey) (*entry, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return e, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			c.hits.Add(1)
			return e, nil
		}

		stored, err := c.load(key)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			c.hits.Add(1)
			c.storeHits.Add(1)
			c.remember(key, stored)
			return stored, nil
		}

		c.misses.Add(1)
		e = c.query(ctx, key)
		c.remember(key, e)
		c.save(key, e)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}

func (c *Cache) remember(key cacheKey, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e
}

// query runs the Git call for one key and classifies the outcome.
func (c *Cache) query(ctx context.Context, key cacheKey) *entry {
	if c.head == "" {
		return &entry{Status: schema.HistoryNone}
	}
	tracked, err := c.trackedSet(ctx)
	if err != nil {
		return &entry{Status: statusOf(err)}
	}
	if !tracked[key.path] {
		return &entry{Status: schema.HistoryUntracked}
	}

	if key.kind == kindLog {
		recent, err := c.hasCommitsSince(ctx, time.Unix(key.since, 0))
		if err != nil {
			return &entry{Status: statusOf(err)}
		}
		if !recent {
			return &entry{Status: schema.HistoryNone}
		}
	}

	qctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	c.vcsCalls.Add(1)
	switch key.kind {
	case kindLog:
		out, err := c.client.GetFileLog(qctx, c.repo, key.path, time.Unix(key.since, 0))
		if err != nil {
			return &entry{Status: statusOf(err)}
		}
		return &entry{Status: schema.HistoryAvailable, Commits: parseLog(out)[key.path]}
	default:
		out, err := c.client.GetBlame(qctx, c.repo, key.path)
		if err != nil {
			return &entry{Status: statusOf(err)}
		}
		return &entry{Status: schema.HistoryAvailable, Blame: parseBlame(out)}
	}
}

// trackedSet loads the index listing once per cache.
func (c *Cache) trackedSet(ctx context.Context) (map[string]bool, error) {
	c.mu.RLock()
	tracked := c.tracked
	c.mu.RUnlock()
	if tracked != nil {
		return tracked, nil
	}

	v, err, _ := c.group.Do("tracked", func() (any, error) {
		qctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		c.vcsCalls.Add(1)
		files, err := c.client.ListTrackedFiles(qctx, c.repo)
		if err != nil {
			return nil, err
		}
		set := make(map[string]bool, len(files))
		for _, f := range files {
			set[f] = true
		}
		c.mu.Lock()
		c.tracked = set
		c.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]bool), nil
}

// hasCommitsSince memoizes whether the repository has any commit in the window.
func (c *Cache) hasCommitsSince(ctx context.Context, since time.Time) (bool, error) {
	c.mu.RLock()
	recent, ok := c.recent[since.Unix()]
	c.mu.RUnlock()
	if ok {
		return recent, nil
	}

	v, err, _ := c.group.Do("recent|"+strconv.FormatInt(since.Unix(), 10), func() (any, error) {
		qctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		c.vcsCalls.Add(1)
		recent, err := c.client.HasCommitsSince(qctx, c.repo, since)
		if err != nil {
			return false, err
		}
		c.mu.Lock()
		c.recent[since.Unix()] = recent
		c.mu.Unlock()
		return recent, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// statusOf maps a query error to a history status.
func statusOf(err error) schema.HistoryStatus {
	if errors.Is(err, context.DeadlineExceeded) {
		return schema.HistoryTimedOut
	}
	return schema.HistoryFailed
}

// storeKey hashes the full cache key together with the repository and HEAD.
func (c *Cache) storeKey(key cacheKey) string {
	raw := fmt.Sprintf("%s|%s|%s", c.repo, c.head, key)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(raw)))
}

// load reads a persisted entry. Misses, stale versions and undecodable rows
// return nil; a row whose decoded key differs from the request is an error.
func (c *Cache) load(key cacheKey) (*entry, error) {
	if c.store == nil || c.head == "" {
		return nil, nil
	}
	data, version, _, err := c.store.Get(c.storeKey(key))
	if err != nil || version != currentCacheVersion {
		return nil, nil
	}
	var p persistedEntry
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, nil
	}
	if p.Repo != c.repo || p.Head != c.head || p.Kind != key.kind || p.Path != key.path || p.Since != key.since {
		return nil, fmt.Errorf("%w: stored %s|%s|%s, requested %s", schema.ErrCacheKeyMismatch, p.Kind, p.Path, strconv.FormatInt(p.Since, 10), key)
	}
	return &p.Entry, nil
}

// save persists settled entries. Timeouts and failures are not stored.
func (c *Cache) save(key cacheKey, e *entry) {
	if c.store == nil || c.head == "" {
		return
	}
	if e.Status != schema.HistoryAvailable && e.Status != schema.HistoryNone && e.Status != schema.HistoryUntracked {
		return
	}
	data, err := json.Marshal(persistedEntry{
		Repo: c.repo, Head: c.head, Kind: key.kind, Path: key.path, Since: key.since, Entry: *e,
	})
	if err != nil {
		return
	}
	if err := c.store.Set(c.storeKey(key), data, currentCacheVersion, time.Now().Unix()); err != nil {
		contract.LogDebug("history cache write failed", err)
	}
}
