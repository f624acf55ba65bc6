package room

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/fokashive/fokashive/internal/auth"
	"github.com/fokashive/fokashive/internal/broadcast"
	"github.com/fokashive/fokashive/internal/models"
	"github.com/fokashive/fokashive/internal/presence"
	"github.com/fokashive/fokashive/internal/timer"
)

// Broadcaster defines what the app layer needs from the fan-out gateway.
type Broadcaster interface {
	Room(ctx context.Context, roomID string, version int64, eventType broadcast.EventType, payload any)
	Global(ctx context.Context, channel string, eventType broadcast.EventType, payload any)
}

const maxMessageLength = 500

// deletedDedupWindow suppresses duplicate room-deleted notifications when a
// leave and a disconnect race for the same membership. Best-effort, not an
// exactly-once contract.
const deletedDedupWindow = 5 * time.Second

// App orchestrates room lifecycle, membership, timer commands, and chat. Every
// mutation goes through the registry's atomic update; no room is ever cached
// in memory as a source of truth.
type App struct {
	repo    Repository
	tracker presence.Tracker
	bcast   Broadcaster
	clock   clockwork.Clock

	deletedMu sync.Mutex
	deleted   map[uuid.UUID]time.Time
}

// NewApp creates the lifecycle manager.
func NewApp(repo Repository, tracker presence.Tracker, bcast Broadcaster, clock clockwork.Clock) *App {
	return &App{
		repo:    repo,
		tracker: tracker,
		bcast:   bcast,
		clock:   clock,
		deleted: make(map[uuid.UUID]time.Time),
	}
}

// Create validates the request and persists a new room with the caller as
// host and first member, then refreshes the global active-rooms feed.
func (a *App) Create(ctx context.Context, host auth.Identity, req CreateRoomRequest) (*models.RoomView, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "room name required"}
	}

	settings, err := settingsFromRequest(req)
	if err != nil {
		return nil, err
	}

	now := a.clock.Now()
	room := &models.Room{
		ID:            uuid.New(),
		Name:          name,
		HostID:        host.UserID,
		HostName:      host.DisplayName,
		TimerSettings: settings,
		TimerState:    models.NewTimerState(settings),
		Members: []models.Member{{
			UserID:      host.UserID,
			DisplayName: host.DisplayName,
			JoinedAt:    now,
		}},
		Version:   1,
		CreatedAt: now,
	}

	if err := a.repo.CreateRoom(ctx, room); err != nil {
		return nil, err
	}

	log.Info().
		Str("room_id", room.ID.String()).
		Str("name", room.Name).
		Str("host_id", room.HostID).
		Msg("room created")

	a.broadcastActiveRooms(ctx)
	return a.viewOf(room), nil
}

// Get returns the room's public view with freshly derived timer state.
func (a *App) Get(ctx context.Context, roomID uuid.UUID) (*models.RoomView, error) {
	room, err := a.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return a.viewOf(room), nil
}

// ListActive returns the public views of every room with at least one member.
func (a *App) ListActive(ctx context.Context) ([]*models.RoomView, error) {
	rooms, err := a.repo.ListRoomsWithMembers(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]*models.RoomView, 0, len(rooms))
	for _, r := range rooms {
		views = append(views, a.viewOf(r))
	}
	return views, nil
}

// Join adds the user to the room, or reattaches them when they already hold a
// membership entry: the entry's session and display name are updated instead
// of a duplicate being appended. An empty sessionID (HTTP join) never detaches
// an existing live session.
func (a *App) Join(ctx context.Context, roomID uuid.UUID, user auth.Identity, sessionID string) (*models.RoomView, error) {
	now := a.clock.Now()
	updated, err := a.repo.UpdateRoom(ctx, roomID, func(r *models.Room) error {
		if idx := r.MemberIndex(user.UserID); idx >= 0 {
			if sessionID != "" {
				r.Members[idx].SessionID = sessionID
			}
			if user.DisplayName != "" {
				r.Members[idx].DisplayName = user.DisplayName
			}
			return nil
		}
		r.Members = append(r.Members, models.Member{
			UserID:      user.UserID,
			DisplayName: user.DisplayName,
			SessionID:   sessionID,
			JoinedAt:    now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := a.viewOf(updated)
	a.bcast.Room(ctx, view.ID, view.Version, broadcast.EventUserListUpdated, view.Users)
	a.bcast.Room(ctx, view.ID, view.Version, broadcast.EventUserJoined, PresencePayload{UserID: user.UserID, Name: user.DisplayName})
	a.bcast.Global(ctx, broadcast.ChannelUserPresence, broadcast.EventUserJoined, PresencePayload{UserID: user.UserID, Name: user.DisplayName})
	a.broadcastActiveRooms(ctx)
	return view, nil
}

// Leave removes the user's membership entry. The last member leaving deletes
// the room; otherwise the reduced member list is broadcast. Leaving a room the
// user is not in changes nothing and broadcasts nothing.
func (a *App) Leave(ctx context.Context, roomID uuid.UUID, user auth.Identity) error {
	updated, err := a.repo.UpdateRoom(ctx, roomID, func(r *models.Room) error {
		kept := r.Members[:0]
		removed := false
		for _, m := range r.Members {
			if m.UserID == user.UserID {
				removed = true
				continue
			}
			kept = append(kept, m)
		}
		if !removed {
			return errNoEffect
		}
		r.Members = kept
		return nil
	})
	if errors.Is(err, errNoEffect) {
		return nil
	}
	if err != nil {
		return err
	}

	if len(updated.Members) == 0 {
		a.deleteIfEmpty(ctx, updated.ID, updated.Name)
		a.broadcastActiveRooms(ctx)
		return nil
	}

	view := a.viewOf(updated)
	a.bcast.Room(ctx, view.ID, view.Version, broadcast.EventUserListUpdated, view.Users)
	a.bcast.Room(ctx, view.ID, view.Version, broadcast.EventUserLeft, PresencePayload{UserID: user.UserID, Name: user.DisplayName})
	a.bcast.Global(ctx, broadcast.ChannelUserPresence, broadcast.EventUserLeft, PresencePayload{UserID: user.UserID, Name: user.DisplayName})
	a.broadcastActiveRooms(ctx)
	return nil
}

// HandleDisconnect tears down one transport session: the session is
// unregistered and every membership entry attached to it is removed. Only the
// membership represented by the dead session goes; the user keeps memberships
// held through other live sessions.
func (a *App) HandleDisconnect(ctx context.Context, sessionID string) {
	userID, ok := a.tracker.Unregister(sessionID)
	if !ok {
		return
	}

	rooms, err := a.repo.ListRoomsBySession(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to list rooms for disconnected session")
		return
	}

	for _, r := range rooms {
		a.detachSession(ctx, r.ID, sessionID, userID)
	}
	if len(rooms) > 0 {
		a.broadcastActiveRooms(ctx)
	}

	log.Info().
		Str("session_id", sessionID).
		Str("user_id", userID).
		Int("rooms", len(rooms)).
		Msg("session cleaned up")
}

func (a *App) detachSession(ctx context.Context, roomID uuid.UUID, sessionID, userID string) {
	var removed models.Member
	updated, err := a.repo.UpdateRoom(ctx, roomID, func(r *models.Room) error {
		kept := r.Members[:0]
		for _, m := range r.Members {
			if m.SessionID == sessionID {
				removed = m
				continue
			}
			kept = append(kept, m)
		}
		r.Members = kept
		return nil
	})
	if err != nil {
		// The room may already be gone when disconnect races an explicit leave.
		if err != ErrRoomNotFound {
			log.Error().Err(err).Str("room_id", roomID.String()).Msg("disconnect cleanup failed")
		}
		return
	}

	if len(updated.Members) == 0 {
		a.deleteIfEmpty(ctx, updated.ID, updated.Name)
		return
	}

	view := a.viewOf(updated)
	a.bcast.Room(ctx, view.ID, view.Version, broadcast.EventUserListUpdated, view.Users)
	a.bcast.Room(ctx, view.ID, view.Version, broadcast.EventUserLeft, PresencePayload{UserID: userID, Name: removed.DisplayName})
	a.bcast.Global(ctx, broadcast.ChannelUserPresence, broadcast.EventUserLeft, PresencePayload{UserID: userID, Name: removed.DisplayName})
}

// SendMessage validates and relays a chat message to the room's subscribers.
// Messages are not persisted.
func (a *App) SendMessage(ctx context.Context, roomID uuid.UUID, user auth.Identity, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &ValidationError{Field: "message", Message: "message must not be empty"}
	}
	if len(trimmed) > maxMessageLength {
		return &ValidationError{Field: "message", Message: "message exceeds 500 characters"}
	}

	room, err := a.repo.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}

	a.bcast.Room(ctx, room.ID.String(), room.Version, broadcast.EventNewMessage, MessagePayload{
		UserID:    user.UserID,
		Name:      user.DisplayName,
		Message:   trimmed,
		Timestamp: a.clock.Now(),
	})
	return nil
}

// deleteIfEmpty deletes a memberless room and emits a single room-deleted
// notification, suppressing duplicates within the dedup window.
func (a *App) deleteIfEmpty(ctx context.Context, roomID uuid.UUID, name string) {
	deleted, err := a.repo.DeleteRoomIfEmpty(ctx, roomID)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to delete empty room")
		return
	}
	if !deleted {
		return
	}
	a.notifyDeleted(ctx, roomID, name)
}

func (a *App) notifyDeleted(ctx context.Context, roomID uuid.UUID, name string) {
	now := a.clock.Now()

	a.deletedMu.Lock()
	if last, seen := a.deleted[roomID]; seen && now.Sub(last) < deletedDedupWindow {
		a.deletedMu.Unlock()
		return
	}
	a.deleted[roomID] = now
	for id, t := range a.deleted {
		if now.Sub(t) >= deletedDedupWindow {
			delete(a.deleted, id)
		}
	}
	a.deletedMu.Unlock()

	log.Info().Str("room_id", roomID.String()).Str("name", name).Msg("empty room deleted")
	a.bcast.Global(ctx, broadcast.ChannelRoomUpdates, broadcast.EventRoomDeleted, RoomDeletedPayload{
		RoomID:   roomID.String(),
		RoomName: name,
	})
}

// RunSweeper periodically deletes rooms orphaned with empty member lists,
// covering crashes that skipped the inline deletion path. Blocks until ctx is
// cancelled.
func (a *App) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := a.clock.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("empty-room sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("empty-room sweeper stopped")
			return
		case <-ticker.Chan():
			a.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep pass.
func (a *App) SweepOnce(ctx context.Context) {
	refs, err := a.repo.DeleteEmptyRooms(ctx)
	if err != nil {
		log.Error().Err(err).Msg("empty-room sweep failed")
		return
	}
	for _, ref := range refs {
		a.notifyDeleted(ctx, ref.ID, ref.Name)
	}
	if len(refs) > 0 {
		log.Info().Int("deleted", len(refs)).Msg("swept empty rooms")
		a.broadcastActiveRooms(ctx)
	}
}

func (a *App) broadcastActiveRooms(ctx context.Context) {
	views, err := a.ListActive(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load active rooms for broadcast")
		return
	}
	a.bcast.Global(ctx, broadcast.ChannelActiveRooms, broadcast.EventActiveRooms, views)
}

// viewOf builds the canonical public payload: host populated, timer state
// derived against the current clock, member list deduplicated by user.
func (a *App) viewOf(r *models.Room) *models.RoomView {
	now := a.clock.Now()

	users := make([]models.MemberView, 0, len(r.Members))
	seen := make(map[string]struct{}, len(r.Members))
	for _, m := range r.Members {
		if _, dup := seen[m.UserID]; dup {
			continue
		}
		seen[m.UserID] = struct{}{}
		users = append(users, models.MemberView{
			ID:       m.UserID,
			Name:     m.DisplayName,
			JoinedAt: m.JoinedAt,
		})
	}

	return &models.RoomView{
		ID:            r.ID.String(),
		Name:          r.Name,
		Host:          models.HostView{ID: r.HostID, Name: r.HostName},
		UserCount:     len(users),
		Users:         users,
		TimerSettings: r.TimerSettings,
		TimerState:    timer.Derive(r.TimerState, now),
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
	}
}

func settingsFromRequest(req CreateRoomRequest) (models.TimerSettings, error) {
	settings := models.DefaultTimerSettings()
	if req.FocusMinutes != 0 {
		settings.FocusDuration = req.FocusMinutes * 60
	}
	if req.ShortBreakMinutes != 0 {
		settings.ShortBreakDuration = req.ShortBreakMinutes * 60
	}
	if req.LongBreakMinutes != 0 {
		settings.LongBreakDuration = req.LongBreakMinutes * 60
	}

	if settings.FocusDuration < minDuration || settings.FocusDuration > maxFocusDuration {
		return settings, &ValidationError{Field: "focusDuration", Message: "focus duration must be between 1 and 180 minutes"}
	}
	if settings.ShortBreakDuration < minDuration || settings.ShortBreakDuration > maxShortBreak {
		return settings, &ValidationError{Field: "shortBreakDuration", Message: "short break duration must be between 1 and 60 minutes"}
	}
	if settings.LongBreakDuration < minDuration || settings.LongBreakDuration > maxLongBreak {
		return settings, &ValidationError{Field: "longBreakDuration", Message: "long break duration must be between 1 and 180 minutes"}
	}
	return settings, nil
}
