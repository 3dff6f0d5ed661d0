package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dynamic-web-app/internal/repository"
)

// NotificationHandler serves the in-app notification inbox.
type NotificationHandler struct {
	Notifications *repository.NotificationRepo
	now           func() time.Time
}

func NewNotificationHandler(n *repository.NotificationRepo) *NotificationHandler {
	return &NotificationHandler{Notifications: n, now: time.Now}
}

// List supports ?unreadOnly=true and pagination; the unread count always
// covers the whole inbox.
func (h *NotificationHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	unreadOnly, _ := strconv.ParseBool(c.QueryParam("unreadOnly"))
	p := pageFrom(c, 20, 100)
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	items, total, unread, err := h.Notifications.List(ctx, uid, unreadOnly, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"notifications": items,
		"unreadCount":   unread,
		"pagination":    paginate(p, total),
	})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid notification id")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if err := h.Notifications.MarkRead(ctx, uid, id, h.now().UTC()); err != nil {
		return notificationErr(c, err)
	}
	return message(c, http.StatusOK, "Notification marked as read")
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	n, err := h.Notifications.MarkAllRead(ctx, uid, h.now().UTC())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "All notifications marked as read", "updated": n})
}

func (h *NotificationHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid notification id")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if err := h.Notifications.Delete(ctx, uid, id); err != nil {
		return notificationErr(c, err)
	}
	return message(c, http.StatusOK, "Notification deleted successfully")
}

func notificationErr(c echo.Context, err error) error {
	if errorsIsNotFound(err) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Notification not found"})
	}
	return err
}
