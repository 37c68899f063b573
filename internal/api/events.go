package api

import (
	"context"
	"io"
	"net/http"
	"strings"

	"kyri56xcaesar/nexushub/internal/authmw"
	"kyri56xcaesar/nexushub/internal/authz"
	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/httpx"
	"kyri56xcaesar/nexushub/internal/realtime"

	"github.com/gin-gonic/gin"
)

// events streams realtime events over SSE. Every client gets its own user
// room and the broadcast room; ?rooms=team:<id>,project:<id>,chat:<id> adds
// rooms the actor belongs to.
func (a *API) events(c *gin.Context) {
	actor := authmw.ActorID(c)
	rooms := []string{realtime.UserRoom(actor), realtime.Broadcast}

	for _, room := range strings.Split(c.Query("rooms"), ",") {
		room = strings.TrimSpace(room)
		if room == "" || room == realtime.Broadcast {
			continue
		}
		if err := a.canJoin(c.Request.Context(), actor, room); err != nil {
			httpx.Error(c, err)
			return
		}
		rooms = append(rooms, room)
	}

	sub := a.broker.Subscribe(rooms...)
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("ready", gin.H{"rooms": rooms})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (a *API) canJoin(ctx context.Context, actor, room string) error {
	kind, id, ok := strings.Cut(room, ":")
	if !ok || id == "" {
		return errors.Invalid("unknown room %q", room)
	}

	switch kind {
	case "user":
		if id != actor {
			return errors.Denied("cannot listen to another user's room")
		}
		return nil
	case "team":
		team, err := a.teams.Get(ctx, actor, id)
		if err != nil {
			return err
		}
		if authz.TeamRoleOf(team, actor) == authz.RoleNone {
			return errors.Denied("not a member of this team")
		}
		return nil
	case "project":
		_, err := a.projects.Get(ctx, actor, id)
		return err
	case "chat":
		_, err := a.feed.GetChat(ctx, actor, id)
		return err
	}
	return errors.Invalid("unknown room %q", room)
}
