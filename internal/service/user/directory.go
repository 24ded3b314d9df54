// Package user resolves user accounts for authentication and download auditing.
package user

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/weiwangfds/datashare/internal/database"
	apperrors "github.com/weiwangfds/datashare/internal/errors"
	"gorm.io/gorm"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "datashare_user_cache_hits_total",
		Help: "User directory cache hits",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "datashare_user_cache_misses_total",
		Help: "User directory cache misses",
	})
)

// Directory reads users, keeping recently seen ones in an expiring LRU
type Directory struct {
	db    *gorm.DB
	cache *expirable.LRU[string, *database.User]
}

// NewDirectory size <= 0 disables caching
func NewDirectory(db *gorm.DB, size int, ttl time.Duration) *Directory {
	d := &Directory{db: db}
	if size > 0 {
		d.cache = expirable.NewLRU[string, *database.User](size, nil, ttl)
	}
	return d
}

// Get returns the user with id, ErrNotFound when absent
func (d *Directory) Get(ctx context.Context, id string) (*database.User, error) {
	if id == "" {
		return nil, apperrors.New(apperrors.ErrNotFound)
	}

	if d.cache != nil {
		if u, ok := d.cache.Get(id); ok {
			cacheHitsTotal.Inc()
			return u, nil
		}
		cacheMissesTotal.Inc()
	}

	var u database.User
	err := d.db.WithContext(ctx).
		Select("id", "name", "username", "email", "role", "profile_image").
		Where("id = ?", id).
		First(&u).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewWithDetails(apperrors.ErrNotFound, "user "+id)
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	if d.cache != nil {
		d.cache.Add(id, &u)
	}
	return &u, nil
}

// Forget drops a cached user, e.g. after a role change
func (d *Directory) Forget(id string) {
	if d.cache != nil {
		d.cache.Remove(id)
	}
}
