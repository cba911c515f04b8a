package session

import (
	"time"

	"github.com/duybaohuynhtan/CareerAgent/internal/ai"
	"github.com/duybaohuynhtan/CareerAgent/internal/logger"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// DefaultID is used when a client does not identify its session.
const DefaultID = "default"

type Store struct {
	items    *cache.Cache
	registry *ai.Registry
	ttl      time.Duration
	logger   *zap.Logger
}

// NewStore creates a store. Sessions idle for longer than ttl are dropped;
// a non-positive ttl keeps them until the process exits.
func NewStore(registry *ai.Registry, ttl time.Duration, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}

	expiration, cleanup := cache.NoExpiration, time.Duration(0)
	if ttl > 0 {
		expiration, cleanup = ttl, ttl/2
	}

	items := cache.New(expiration, cleanup)
	items.OnEvicted(func(id string, _ any) {
		log.Debug("session expired", zap.String(logger.FieldSession, id))
	})

	return &Store{
		items:    items,
		registry: registry,
		ttl:      ttl,
		logger:   log,
	}
}

func (st *Store) Registry() *ai.Registry { return st.registry }

// GetOrCreate returns the session for id, creating it with the default model
// on first access.
func (st *Store) GetOrCreate(id string) *Session {
	if id == "" {
		id = DefaultID
	}

	for {
		if v, ok := st.items.Get(id); ok {
			s := v.(*Session)
			if st.ttl > 0 {
				st.items.SetDefault(id, s)
			}
			return s
		}

		model := st.registry.Default()
		s := newSession(id, model)
		if err := st.items.Add(id, s, cache.DefaultExpiration); err == nil {
			logger.WithSession(st.logger, id, model).Debug("session created")
			return s
		}
	}
}

// SetModel switches the session model and clears its history and document.
// An unsupported model leaves the session untouched.
func (st *Store) SetModel(id, model string) error {
	if err := st.registry.Validate(model); err != nil {
		return err
	}
	st.GetOrCreate(id).reset(model)
	logger.WithSession(st.logger, id, model).Info("session model changed")
	return nil
}

// Clear drops the history and the active document, keeping the model.
func (st *Store) Clear(id string) {
	st.GetOrCreate(id).reset("")
	st.logger.Info("session cleared", zap.String(logger.FieldSession, id))
}

func (st *Store) Len() int {
	return st.items.ItemCount()
}
