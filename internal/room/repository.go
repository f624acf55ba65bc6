package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fokashive/fokashive/internal/models"
	"github.com/fokashive/fokashive/internal/sqlutil"
)

// Repository is the authoritative room registry. UpdateRoom applies fn under a
// per-room mutual exclusion guarantee: no two concurrent mutations of the same
// room may interleave. All reads reflect the latest committed write.
type Repository interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	ListRoomsWithMembers(ctx context.Context) ([]*models.Room, error)
	ListRoomsBySession(ctx context.Context, sessionID string) ([]*models.Room, error)
	UpdateRoom(ctx context.Context, id uuid.UUID, fn func(*models.Room) error) (*models.Room, error)
	DeleteRoomIfEmpty(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteEmptyRooms(ctx context.Context) ([]RoomRef, error)
}

// RoomRef identifies a deleted room for notification purposes.
type RoomRef struct {
	ID   uuid.UUID
	Name string
}

const uniqueViolationCode = "23505"

// PostgresRepository stores rooms as single rows with JSONB sub-documents.
// The row lock taken by UpdateRoom is the registry's serialization point.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository over the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const roomColumns = `id, name, host_id, host_name, timer_settings, timer_state, members, version, created_at`

// CreateRoom inserts a new room. A name collision maps to ErrRoomNameTaken.
func (r *PostgresRepository) CreateRoom(ctx context.Context, room *models.Room) error {
	settings, state, members, err := marshalRoomDocs(room)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO rooms (id, name, host_id, host_name, timer_settings, timer_state, members, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		room.ID, room.Name, room.HostID, room.HostName, settings, state, members, room.Version, room.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrRoomNameTaken
		}
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// GetRoom fetches one room by ID.
func (r *PostgresRepository) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id)
	room, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

// ListRoomsWithMembers returns every room holding at least one member.
func (r *PostgresRepository) ListRoomsWithMembers(ctx context.Context) ([]*models.Room, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+roomColumns+` FROM rooms
		WHERE jsonb_array_length(members) > 0
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()
	return scanRooms(rows)
}

// ListRoomsBySession returns every room with a membership entry attached to
// the given transport session.
func (r *PostgresRepository) ListRoomsBySession(ctx context.Context, sessionID string) ([]*models.Room, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+roomColumns+` FROM rooms
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(members) AS m
			WHERE m->>'sessionId' = $1
		)`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list rooms by session: %w", err)
	}
	defer rows.Close()
	return scanRooms(rows)
}

// UpdateRoom applies fn to the room while holding its row lock, then persists
// the result with a bumped version. An error from fn aborts the transaction
// and leaves the room untouched.
func (r *PostgresRepository) UpdateRoom(ctx context.Context, id uuid.UUID, fn func(*models.Room) error) (*models.Room, error) {
	var updated *models.Room
	err := sqlutil.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1 FOR UPDATE`, id)
		room, err := scanRoom(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrRoomNotFound
			}
			return fmt.Errorf("lock room: %w", err)
		}

		if err := fn(room); err != nil {
			return err
		}

		settings, state, members, err := marshalRoomDocs(room)
		if err != nil {
			return err
		}

		err = tx.QueryRow(ctx, `
			UPDATE rooms
			SET timer_settings = $2, timer_state = $3, members = $4, version = version + 1
			WHERE id = $1
			RETURNING version`,
			id, settings, state, members,
		).Scan(&room.Version)
		if err != nil {
			return fmt.Errorf("update room: %w", err)
		}

		updated = room
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteRoomIfEmpty removes the room only while its member list is empty,
// reporting whether this call performed the deletion. A concurrent join or a
// racing delete makes this a no-op, which keeps deletion notifications single.
func (r *PostgresRepository) DeleteRoomIfEmpty(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM rooms
		WHERE id = $1 AND jsonb_array_length(members) = 0`, id)
	if err != nil {
		return false, fmt.Errorf("delete empty room: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteEmptyRooms removes every memberless room, returning the rooms deleted
// so the caller can notify subscribers. Used by the periodic sweep.
func (r *PostgresRepository) DeleteEmptyRooms(ctx context.Context) ([]RoomRef, error) {
	rows, err := r.pool.Query(ctx, `
		DELETE FROM rooms
		WHERE jsonb_array_length(members) = 0
		RETURNING id, name`)
	if err != nil {
		return nil, fmt.Errorf("sweep empty rooms: %w", err)
	}
	defer rows.Close()

	var refs []RoomRef
	for rows.Next() {
		var ref RoomRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("scan swept room: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*models.Room, error) {
	var (
		room     models.Room
		settings []byte
		state    []byte
		members  []byte
	)
	err := row.Scan(&room.ID, &room.Name, &room.HostID, &room.HostName,
		&settings, &state, &members, &room.Version, &room.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &room.TimerSettings); err != nil {
		return nil, fmt.Errorf("decode timer settings: %w", err)
	}
	if err := json.Unmarshal(state, &room.TimerState); err != nil {
		return nil, fmt.Errorf("decode timer state: %w", err)
	}
	if err := json.Unmarshal(members, &room.Members); err != nil {
		return nil, fmt.Errorf("decode members: %w", err)
	}
	return &room, nil
}

func scanRooms(rows pgx.Rows) ([]*models.Room, error) {
	var rooms []*models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func marshalRoomDocs(room *models.Room) (settings, state, members []byte, err error) {
	if settings, err = json.Marshal(room.TimerSettings); err != nil {
		return nil, nil, nil, fmt.Errorf("encode timer settings: %w", err)
	}
	if state, err = json.Marshal(room.TimerState); err != nil {
		return nil, nil, nil, fmt.Errorf("encode timer state: %w", err)
	}
	if room.Members == nil {
		room.Members = []models.Member{}
	}
	if members, err = json.Marshal(room.Members); err != nil {
		return nil, nil, nil, fmt.Errorf("encode members: %w", err)
	}
	return settings, state, members, nil
}
