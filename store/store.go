// Package store embeds the named-graph triple store behind the adapter
// contract: atomic graph replacement, idempotent appends, prefix-scoped
// graph listing and read-only SPARQL execution. BadgerDB provides the
// storage engine; three index orderings per graph serve pattern scans.
//
// The store is a single-writer / many-reader resource. All mutations pass
// through the writer token; readers run against Badger snapshots and never
// block the writer.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/c360studio/repolex/apperror"
	"github.com/c360studio/repolex/graph"
	"github.com/c360studio/repolex/metrics"
	"github.com/c360studio/repolex/store/sparql"
)

// Options configures Open.
type Options struct {
	// Path is the store data directory. Ignored when InMemory is set.
	Path string

	// InMemory runs without disk persistence, for tests.
	InMemory bool

	// Logger receives store diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// QueryTimeout is the default per-query deadline when the caller
	// passes zero. Defaults to 30 seconds.
	QueryTimeout time.Duration
}

// Store is the triple store adapter.
type Store struct {
	db           *badger.DB
	logger       *slog.Logger
	queryTimeout time.Duration

	// writer serializes all mutations. Held across multi-graph updates by
	// the graph builder so readers never observe a half-applied ingestion.
	writer sync.Mutex
}

// badgerLogger adapts slog to Badger's logger interface.
type badgerLogger struct{ logger *slog.Logger }

func (l badgerLogger) Errorf(f string, args ...interface{})   { l.logger.Error(fmt.Sprintf(f, args...)) }
func (l badgerLogger) Warningf(f string, args ...interface{}) { l.logger.Warn(fmt.Sprintf(f, args...)) }
func (l badgerLogger) Infof(f string, args ...interface{})    { l.logger.Debug(fmt.Sprintf(f, args...)) }
func (l badgerLogger) Debugf(f string, args ...interface{})   { l.logger.Debug(fmt.Sprintf(f, args...)) }

// Open opens (creating if needed) the store at opts.Path.
func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.QueryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0o755); err != nil {
			return nil, apperror.Storef(err, "create store directory %s", opts.Path)
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts = bopts.WithLogger(badgerLogger{logger: logger})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, apperror.Storef(err, "open store").
			WithSuggestions(
				"check that no other repolex process owns the store",
				"verify write permissions on the storage root")
	}

	return &Store{db: db, logger: logger, queryTimeout: timeout}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return apperror.Storef(err, "close store")
	}
	return nil
}

// Writer is the handle through which all mutations run. It is valid until
// its release function is called.
type Writer struct {
	s *Store
}

// AcquireWriter takes the writer token. The returned release function must
// be called exactly once. Holding the token across several graph writes
// makes them observable as one unit relative to other writers.
func (s *Store) AcquireWriter() (*Writer, func()) {
	s.writer.Lock()
	var once sync.Once
	return &Writer{s: s}, func() { once.Do(s.writer.Unlock) }
}

// UpsertGraph replaces the whole graph in one writer-held operation.
func (s *Store) UpsertGraph(ctx context.Context, graphURI string, triples []graph.Triple) error {
	w, release := s.AcquireWriter()
	defer release()
	return w.UpsertGraph(ctx, graphURI, triples)
}

// AppendToGraph adds triples; duplicates are no-ops.
func (s *Store) AppendToGraph(ctx context.Context, graphURI string, triples []graph.Triple) error {
	w, release := s.AcquireWriter()
	defer release()
	return w.AppendToGraph(ctx, graphURI, triples)
}

// DropGraph removes a graph and all its triples; absent graphs are no-ops.
func (s *Store) DropGraph(ctx context.Context, graphURI string) error {
	w, release := s.AcquireWriter()
	defer release()
	return w.DropGraph(ctx, graphURI)
}

// DeleteWhere removes every triple of the graph matched by the given bound
// positions (nil is a wildcard). Used for version-partition deletion
// inside the implementations graph.
func (s *Store) DeleteWhere(ctx context.Context, graphURI string, subj, pred *string, obj *graph.Term) (int, error) {
	w, release := s.AcquireWriter()
	defer release()
	return w.DeleteWhere(ctx, graphURI, subj, pred, obj)
}

// UpsertGraph replaces the entire contents of graphURI with triples.
// On a mid-write failure the graph is dropped so no partial replacement
// survives.
func (w *Writer) UpsertGraph(ctx context.Context, graphURI string, triples []graph.Triple) error {
	if err := w.dropLocked(graphURI); err != nil {
		return err
	}
	if err := w.appendLocked(ctx, graphURI, triples); err != nil {
		_ = w.dropLocked(graphURI)
		return err
	}
	metrics.TriplesWritten.WithLabelValues("upsert").Add(float64(len(triples)))
	return nil
}

// AppendToGraph adds triples to graphURI. Identical triples map to
// identical keys, so re-appending is idempotent.
func (w *Writer) AppendToGraph(ctx context.Context, graphURI string, triples []graph.Triple) error {
	if err := w.appendLocked(ctx, graphURI, triples); err != nil {
		return err
	}
	metrics.TriplesWritten.WithLabelValues("append").Add(float64(len(triples)))
	return nil
}

// DropGraph removes graphURI entirely.
func (w *Writer) DropGraph(_ context.Context, graphURI string) error {
	return w.dropLocked(graphURI)
}

func (w *Writer) appendLocked(ctx context.Context, graphURI string, triples []graph.Triple) error {
	keys := make([][]byte, 0, len(triples)*3+1)
	keys = append(keys, graphKey(graphURI))
	for _, t := range triples {
		tk := tripleKeys(graphURI, t)
		keys = append(keys, tk[0], tk[1], tk[2])
	}
	return w.setKeys(ctx, keys)
}

// setKeys writes keys in as few transactions as Badger allows. A full
// ingestion can exceed one transaction's size; continuation keeps the
// writer token held so no other writer interleaves.
func (w *Writer) setKeys(ctx context.Context, keys [][]byte) error {
	txn := w.s.db.NewTransaction(true)
	defer txn.Discard()
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := txn.Set(key, nil)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return apperror.Storef(err, "commit write batch")
			}
			txn = w.s.db.NewTransaction(true)
			err = txn.Set(key, nil)
		}
		if err != nil {
			return apperror.Storef(err, "write triple key")
		}
	}
	if err := txn.Commit(); err != nil {
		return apperror.Storef(err, "commit write batch")
	}
	return nil
}

func (w *Writer) dropLocked(graphURI string) error {
	// Collect keys under a snapshot, then delete.
	var keys [][]byte
	err := w.s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: quadPrefix(graphURI)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return apperror.Storef(err, "scan graph %s", graphURI)
	}

	gk := graphKey(graphURI)
	exists := false
	_ = w.s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(gk); err == nil {
			exists = true
		}
		return nil
	})
	if !exists && len(keys) == 0 {
		return nil
	}
	keys = append(keys, gk)

	txn := w.s.db.NewTransaction(true)
	defer txn.Discard()
	for _, key := range keys {
		err := txn.Delete(key)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return apperror.Storef(err, "commit delete batch")
			}
			txn = w.s.db.NewTransaction(true)
			err = txn.Delete(key)
		}
		if err != nil {
			return apperror.Storef(err, "delete triple key")
		}
	}
	if err := txn.Commit(); err != nil {
		return apperror.Storef(err, "commit delete batch")
	}
	metrics.GraphsDropped.Inc()
	return nil
}

// DeleteWhere removes matching triples and returns how many were removed.
func (w *Writer) DeleteWhere(ctx context.Context, graphURI string, subj, pred *string, obj *graph.Term) (int, error) {
	var doomed []graph.Triple
	err := w.s.Scan(graphURI, subj, pred, obj, func(t graph.Triple) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		doomed = append(doomed, t)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	txn := w.s.db.NewTransaction(true)
	defer txn.Discard()
	for _, t := range doomed {
		for _, key := range tripleKeys(graphURI, t) {
			err := txn.Delete(key)
			if errors.Is(err, badger.ErrTxnTooBig) {
				if err := txn.Commit(); err != nil {
					return 0, apperror.Storef(err, "commit delete batch")
				}
				txn = w.s.db.NewTransaction(true)
				err = txn.Delete(key)
			}
			if err != nil {
				return 0, apperror.Storef(err, "delete triple key")
			}
		}
	}
	if err := txn.Commit(); err != nil {
		return 0, apperror.Storef(err, "commit delete batch")
	}
	return len(doomed), nil
}

// ListGraphs enumerates graph URIs, optionally restricted to a prefix,
// in lexical order.
func (s *Store) ListGraphs(prefix string) ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: graphRegistryPrefix()})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			name, _, err := readComponent(it.Item().Key()[1:])
			if err != nil {
				return err
			}
			if prefix == "" || strings.HasPrefix(name, prefix) {
				names = append(names, name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperror.Storef(err, "list graphs")
	}
	sort.Strings(names)
	return names, nil
}

// GraphExists reports whether the graph has been created.
func (s *Store) GraphExists(graphURI string) (bool, error) {
	exists := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(graphKey(graphURI))
		if err == nil {
			exists = true
			return nil
		}
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return false, apperror.Storef(err, "check graph %s", graphURI)
	}
	return exists, nil
}

// CountTriples counts the triples of one graph.
func (s *Store) CountTriples(graphURI string) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: indexPrefix(graphURI, idxSPO)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, apperror.Storef(err, "count triples in %s", graphURI)
	}
	return count, nil
}

// GraphNames implements sparql.Dataset.
func (s *Store) GraphNames() ([]string, error) { return s.ListGraphs("") }

// Scan implements sparql.Dataset: stream triples of one graph matching the
// bound positions. Chooses the index with the longest bound prefix.
func (s *Store) Scan(graphURI string, subj, pred *string, obj *graph.Term, fn func(t graph.Triple) error) error {
	prefix := scanPrefix(graphURI, subj, pred, obj)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			t, err := decodeTriple(graphURI, it.Item().Key())
			if err != nil {
				return err
			}
			// Residual filters for positions the index prefix couldn't pin.
			if subj != nil && t.Subject != *subj {
				continue
			}
			if pred != nil && t.Predicate != *pred {
				continue
			}
			if obj != nil && t.Object != *obj {
				continue
			}
			if err := fn(t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperror.Storef(err, "scan graph %s", graphURI)
	}
	return nil
}

// scanPrefix picks the best index for the bound positions.
func scanPrefix(graphURI string, subj, pred *string, obj *graph.Term) []byte {
	switch {
	case subj != nil:
		p := indexPrefix(graphURI, idxSPO)
		p = appendComponent(p, *subj)
		if pred != nil {
			p = appendComponent(p, *pred)
			if obj != nil {
				p = appendComponent(p, obj.NTriples())
			}
		}
		return p
	case pred != nil:
		p := indexPrefix(graphURI, idxPOS)
		p = appendComponent(p, *pred)
		if obj != nil {
			p = appendComponent(p, obj.NTriples())
		}
		return p
	case obj != nil:
		p := indexPrefix(graphURI, idxOSP)
		return appendComponent(p, obj.NTriples())
	}
	return indexPrefix(graphURI, idxSPO)
}

// Query executes a read-only SPARQL query. A non-positive timeout uses the
// store default. Update forms are rejected before any data access; syntax
// errors carry the offending position; deadline overruns return a
// QueryTimeoutError with the elapsed duration.
func (s *Store) Query(ctx context.Context, query string, timeout time.Duration) (*sparql.Result, error) {
	if timeout <= 0 {
		timeout = s.queryTimeout
	}

	if err := sparql.CheckReadOnly(query); err != nil {
		return nil, apperror.Wrap(apperror.KindSecurity, err, "query rejected",
			"only SELECT, ASK and CONSTRUCT queries are accepted")
	}

	parsed, err := sparql.Parse(query)
	if err != nil {
		var syn *sparql.SyntaxError
		if errors.As(err, &syn) {
			return nil, apperror.Wrap(apperror.KindValidation,
				&QuerySyntaxError{Pos: syn.Pos, Msg: syn.Msg}, "invalid query")
		}
		return nil, apperror.Wrap(apperror.KindValidation, err, "invalid query")
	}

	start := time.Now()
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := sparql.Eval(qctx, s, parsed)
	metrics.QueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperror.Wrap(apperror.KindStore,
				&QueryTimeoutError{Elapsed: time.Since(start)}, "query timed out",
				"raise query_timeout_seconds or narrow the query")
		}
		return nil, apperror.Storef(err, "query execution failed")
	}
	return res, nil
}
