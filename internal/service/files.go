package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/dynamic-web-app/internal/imaging"
	"github.com/iliyamo/dynamic-web-app/internal/model"
	"github.com/iliyamo/dynamic-web-app/internal/repository"
	"github.com/iliyamo/dynamic-web-app/internal/storage"
)

// fileCleaner removes the stored objects owned by a user once the user row
// is gone. Failures are logged only.
type fileCleaner struct {
	store storage.Store
	docs  DocumentLister
	log   *zap.Logger
}

// keys lists every object owned by u. It must run before the user row is
// deleted since documents cascade with it.
func (c fileCleaner) keys(ctx context.Context, u *model.User) []string {
	var keys []string
	if u.ProfilePicture != "" {
		keys = append(keys, imaging.AllKeys(u.ProfilePicture)...)
	}
	if c.docs == nil {
		return keys
	}
	p := repository.Page{Page: 1, Limit: 100}
	for {
		docs, total, err := c.docs.List(ctx, u.ID, "", p)
		if err != nil {
			c.log.Warn("list documents for cleanup failed", zap.Uint64("user_id", u.ID), zap.Error(err))
			return keys
		}
		for _, d := range docs {
			keys = append(keys, d.StorageKey)
		}
		if p.Page >= p.TotalPages(total) {
			return keys
		}
		p.Page++
	}
}

func (c fileCleaner) remove(ctx context.Context, keys []string) {
	if c.store == nil {
		return
	}
	for _, k := range keys {
		if err := c.store.Delete(ctx, k); err != nil {
			c.log.Warn("delete stored file failed", zap.String("key", k), zap.Error(err))
		}
	}
}
