package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/dynamic-web-app/internal/model"
)

// ActivityStore persists audit rows.
type ActivityStore interface {
	Create(ctx context.Context, a *model.ActivityLog) error
}

// ActivityRecorder writes audit rows on a best-effort basis: a failure is
// logged and never fails the calling flow.
type ActivityRecorder struct {
	Store ActivityStore
	Log   *zap.Logger
	now   func() time.Time
}

func NewActivityRecorder(store ActivityStore, log *zap.Logger) *ActivityRecorder {
	return &ActivityRecorder{Store: store, Log: log, now: time.Now}
}

func (r *ActivityRecorder) Record(ctx context.Context, userID uint64, action, description string, meta RequestMeta, extra model.Metadata) {
	if r == nil || r.Store == nil {
		return
	}
	if extra == nil {
		extra = model.Metadata{}
	}
	a := &model.ActivityLog{
		UserID:      userID,
		Action:      action,
		Description: description,
		IPAddress:   meta.IP,
		UserAgent:   meta.UserAgent,
		Metadata:    extra,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.Store.Create(ctx, a); err != nil {
		r.Log.Warn("activity log write failed",
			zap.Uint64("user_id", userID), zap.String("action", action), zap.Error(err))
	}
}
