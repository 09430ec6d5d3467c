package inventory

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"sort"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/go-logr/logr"
)

var ErrNotFound = errors.New("not found")

const (
	nodePrefix    = "node/"
	servicePrefix = "service/"

	maxConflictRetries = 16
)

// Store is the inventory contract used by the reconciler, runner and CLI.
// Every write is atomic for its key; writes to different nodes never
// contend.
type Store interface {
	Put(ctx context.Context, node *Node) error
	Get(ctx context.Context, name string) (*Node, error)
	Delete(ctx context.Context, name string) error
	Query(ctx context.Context, filter Filter) ([]*Node, error)
	Keys(ctx context.Context) iter.Seq2[string, error]
	Update(ctx context.Context, name string, fn func(*Node) error) (*Node, error)
	AppendAction(ctx context.Context, name string, action Action) (*Node, error)

	PutService(ctx context.Context, svc *Service) error
	GetService(ctx context.Context, name string) (*Service, error)
	DeleteService(ctx context.Context, name string) error
	Services(ctx context.Context) ([]*Service, error)

	Close() error
}

// BadgerStore implements Store on an embedded Badger database.
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time

	// per-node locks serialize in-process read-modify-write cycles;
	// ErrConflict retries cover other processes
	locks sync.Map
}

// Option configures a BadgerStore.
type Option func(*badger.Options, *BadgerStore)

// WithLogger routes Badger's internal logging to log at V(1).
func WithLogger(log logr.Logger) Option {
	return func(o *badger.Options, _ *BadgerStore) {
		o.Logger = &badgerLogger{log: log.WithName("badger")}
	}
}

// WithClock overrides the clock used for action timestamps.
func WithClock(now func() time.Time) Option {
	return func(_ *badger.Options, s *BadgerStore) {
		s.now = now
	}
}

// Open opens (or creates) the inventory under dir.
func Open(dir string, opts ...Option) (*BadgerStore, error) {
	bopts := badger.DefaultOptions(filepath.Clean(dir))
	return open(bopts, opts)
}

// OpenInMemory opens a throwaway inventory, used by tests and dry runs.
func OpenInMemory(opts ...Option) (*BadgerStore, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), opts)
}

func open(bopts badger.Options, opts []Option) (*BadgerStore, error) {
	bopts.Logger = nil
	bopts = bopts.WithValueLogFileSize(16 << 20)
	s := &BadgerStore{now: time.Now}
	for _, opt := range opts {
		opt(&bopts, s)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory: %w", err)
	}
	s.db = db
	return s, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func nodeKey(name string) []byte    { return []byte(nodePrefix + name) }
func serviceKey(name string) []byte { return []byte(servicePrefix + name) }

// Put writes node under its instance name, replacing any previous record.
func (s *BadgerStore) Put(ctx context.Context, node *Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if node.Name == "" {
		return errors.New("node name is required")
	}
	data, err := encodeNode(node)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(nodeKey(node.Name), data)
	})
}

// Get returns the node or ErrNotFound.
func (s *BadgerStore) Get(ctx context.Context, name string) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var node *Node
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		node, err = getNode(txn, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func getNode(txn *badger.Txn, name string) (*Node, error) {
	item, err := txn.Get(nodeKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("node %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var node *Node
	err = item.Value(func(v []byte) error {
		node, err = decodeNode(v)
		return err
	})
	return node, err
}

// Delete removes a node. Deleting a missing node is not an error.
func (s *BadgerStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(nodeKey(name))
	})
	if err == nil {
		s.locks.Delete(name)
	}
	return err
}

// Update runs fn against the current record inside one transaction and
// stores the result. Conflicting concurrent updates of the same node are
// retried; fn may therefore run more than once.
func (s *BadgerStore) Update(ctx context.Context, name string, fn func(*Node) error) (*Node, error) {
	mu, _ := s.locks.LoadOrStore(name, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	var updated *Node
	for range maxConflictRetries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			node, err := getNode(txn, name)
			if err != nil {
				return err
			}
			if err := fn(node); err != nil {
				return err
			}
			if node.Name != name {
				return fmt.Errorf("update must not rename node %s", name)
			}
			data, err := encodeNode(node)
			if err != nil {
				return err
			}
			updated = node
			return txn.Set(nodeKey(name), data)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if errors.Is(err, ErrNotFound) {
			s.locks.Delete(name)
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("node %s: too many conflicting updates", name)
}

// AppendAction appends action to the node's history. The timestamp is
// stamped here and never precedes the previous action's.
func (s *BadgerStore) AppendAction(ctx context.Context, name string, action Action) (*Node, error) {
	return s.Update(ctx, name, func(n *Node) error {
		ts := s.now().UTC()
		if last := n.LastAction(); last != nil && ts.Before(last.Timestamp) {
			ts = last.Timestamp
		}
		action.Timestamp = ts
		n.Actions = append(n.Actions, action)
		return nil
	})
}

// Query returns every node matching filter, sorted by name.
func (s *BadgerStore) Query(ctx context.Context, filter Filter) ([]*Node, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	var nodes []*Node
	err := s.scan(ctx, []byte(nodePrefix), true, func(_ string, v []byte) error {
		node, err := decodeNode(v)
		if err != nil {
			return err
		}
		if filter.Match(node) {
			nodes = append(nodes, node)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

// Keys yields every node's instance name in key order.
func (s *BadgerStore) Keys(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stop := errors.New("stop")
		err := s.scan(ctx, []byte(nodePrefix), false, func(key string, _ []byte) error {
			if !yield(key, nil) {
				return stop
			}
			return nil
		})
		if err != nil && !errors.Is(err, stop) {
			yield("", err)
		}
	}
}

func (s *BadgerStore) scan(ctx context.Context, prefix []byte, values bool, fn func(key string, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = values
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := string(item.Key()[len(prefix):])
			if !values {
				if err := fn(key, nil); err != nil {
					return err
				}
				continue
			}
			if err := item.Value(func(v []byte) error { return fn(key, v) }); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) PutService(ctx context.Context, svc *Service) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	svc.UpdatedAt = s.now().UTC()
	data, err := encodeService(svc)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(serviceKey(svc.Name), data)
	})
}

func (s *BadgerStore) GetService(ctx context.Context, name string) (*Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var svc *Service
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(serviceKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("service %s: %w", name, ErrNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			svc, err = decodeService(v)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *BadgerStore) DeleteService(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(serviceKey(name))
	})
}

func (s *BadgerStore) Services(ctx context.Context) ([]*Service, error) {
	var out []*Service
	err := s.scan(ctx, []byte(servicePrefix), true, func(_ string, v []byte) error {
		svc, err := decodeService(v)
		if err != nil {
			return err
		}
		out = append(out, svc)
		return nil
	})
	return out, err
}

type badgerLogger struct {
	log logr.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(nil, fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.log.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.log.V(1).Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.log.V(2).Info(fmt.Sprintf(format, args...))
}

var _ Store = (*BadgerStore)(nil)
