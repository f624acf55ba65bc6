package room

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/fokashive/fokashive/internal/models"
)

// MemoryRepository is an in-process Repository for tests and local runs
// without Postgres. A single mutex serializes all mutations, which satisfies
// the per-room mutual exclusion contract trivially.
type MemoryRepository struct {
	mu     sync.Mutex
	rooms  map[uuid.UUID]*models.Room
	byName map[string]uuid.UUID
}

// NewMemoryRepository creates an empty in-memory registry.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rooms:  make(map[uuid.UUID]*models.Room),
		byName: make(map[string]uuid.UUID),
	}
}

// CreateRoom implements Repository.
func (r *MemoryRepository) CreateRoom(ctx context.Context, room *models.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[room.Name]; exists {
		return ErrRoomNameTaken
	}
	cp := room.Clone()
	r.rooms[cp.ID] = cp
	r.byName[cp.Name] = cp.ID
	return nil
}

// GetRoom implements Repository.
func (r *MemoryRepository) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room.Clone(), nil
}

// ListRoomsWithMembers implements Repository.
func (r *MemoryRepository) ListRoomsWithMembers(ctx context.Context) ([]*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rooms []*models.Room
	for _, room := range r.rooms {
		if len(room.Members) > 0 {
			rooms = append(rooms, room.Clone())
		}
	}
	return rooms, nil
}

// ListRoomsBySession implements Repository.
func (r *MemoryRepository) ListRoomsBySession(ctx context.Context, sessionID string) ([]*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rooms []*models.Room
	for _, room := range r.rooms {
		for _, m := range room.Members {
			if m.SessionID == sessionID {
				rooms = append(rooms, room.Clone())
				break
			}
		}
	}
	return rooms, nil
}

// UpdateRoom implements Repository.
func (r *MemoryRepository) UpdateRoom(ctx context.Context, id uuid.UUID, fn func(*models.Room) error) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	cp := room.Clone()
	if err := fn(cp); err != nil {
		return nil, err
	}
	cp.Version++
	r.rooms[id] = cp
	return cp.Clone(), nil
}

// DeleteRoomIfEmpty implements Repository.
func (r *MemoryRepository) DeleteRoomIfEmpty(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok || len(room.Members) > 0 {
		return false, nil
	}
	delete(r.rooms, id)
	delete(r.byName, room.Name)
	return true, nil
}

// DeleteEmptyRooms implements Repository.
func (r *MemoryRepository) DeleteEmptyRooms(ctx context.Context) ([]RoomRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var refs []RoomRef
	for id, room := range r.rooms {
		if len(room.Members) == 0 {
			refs = append(refs, RoomRef{ID: id, Name: room.Name})
			delete(r.rooms, id)
			delete(r.byName, room.Name)
		}
	}
	return refs, nil
}
