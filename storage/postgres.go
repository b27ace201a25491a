package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/boyangli/sentinelmap-positioner/models"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
	CREATE TABLE IF NOT EXISTS detected_object_positions (
		id              BIGSERIAL PRIMARY KEY,
		session_id      TEXT             NOT NULL,
		frame_index     INTEGER          NOT NULL,
		read_at         TIMESTAMPTZ,
		object_id       INTEGER          NOT NULL,
		object_type     TEXT             NOT NULL,
		latitude        DOUBLE PRECISION NOT NULL,
		longitude       DOUBLE PRECISION NOT NULL,
		altitude        DOUBLE PRECISION NOT NULL,
		location_radius DOUBLE PRECISION,
		rd_x            DOUBLE PRECISION,
		rd_y            DOUBLE PRECISION,
		sent_at         TIMESTAMPTZ      NOT NULL
	)`

const insertPosition = `
	INSERT INTO detected_object_positions (
		session_id, frame_index, read_at,
		object_id, object_type,
		latitude, longitude, altitude,
		location_radius, rd_x, rd_y, sent_at
	) VALUES (
		:session_id, :frame_index, :read_at,
		:object_id, :object_type,
		:latitude, :longitude, :altitude,
		:location_radius, :rd_x, :rd_y, :sent_at
	)`

// PositionRow is one stored position
type PositionRow struct {
	SessionID      string     `db:"session_id"`
	FrameIndex     int        `db:"frame_index"`
	ReadAt         *time.Time `db:"read_at"`
	ObjectID       int        `db:"object_id"`
	ObjectType     string     `db:"object_type"`
	Latitude       float64    `db:"latitude"`
	Longitude      float64    `db:"longitude"`
	Altitude       float64    `db:"altitude"`
	LocationRadius *float64   `db:"location_radius"`
	GridX          *float64   `db:"rd_x"`
	GridY          *float64   `db:"rd_y"`
	SentAt         time.Time  `db:"sent_at"`
}

// BuildRows flattens one frame into rows. An unknown read time is stored as NULL.
func BuildRows(sessionID string, positions []models.DetectedObjectPosition, frameIndex int, readAt, sentAt time.Time) []PositionRow {
	var readAtPtr *time.Time
	if !readAt.IsZero() {
		readAtPtr = &readAt
	}

	rows := make([]PositionRow, 0, len(positions))
	for _, p := range positions {
		rows = append(rows, PositionRow{
			SessionID:      sessionID,
			FrameIndex:     frameIndex,
			ReadAt:         readAtPtr,
			ObjectID:       p.ID,
			ObjectType:     p.Type,
			Latitude:       p.Latitude,
			Longitude:      p.Longitude,
			Altitude:       p.Altitude,
			LocationRadius: p.LocationRadius,
			GridX:          p.GridX,
			GridY:          p.GridY,
			SentAt:         sentAt,
		})
	}
	return rows
}

// PostgresSink stores every emitted position. It implements positioner.Sink.
type PostgresSink struct {
	db        *sqlx.DB
	sessionID string
	timeout   time.Duration
	now       func() time.Time
}

// Connect opens and pings a Postgres connection
func Connect(url string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// NewPostgresSink creates a sink writing rows for sessionID
func NewPostgresSink(db *sqlx.DB, sessionID string) *PostgresSink {
	return &PostgresSink{
		db:        db,
		sessionID: sessionID,
		timeout:   5 * time.Second,
		now:       time.Now,
	}
}

// EnsureSchema creates the positions table when it does not exist
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Send stores the positions of one frame in a single transaction
func (s *PostgresSink) Send(positions []models.DetectedObjectPosition, frameIndex int, readAt time.Time) error {
	if len(positions) == 0 {
		return nil
	}
	rows := BuildRows(s.sessionID, positions, frameIndex, readAt, s.now())

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, insertPosition, row); err != nil {
			return fmt.Errorf("failed to insert object %d of frame %d: %w", row.ObjectID, frameIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit frame %d: %w", frameIndex, err)
	}
	return nil
}

// Close closes the database connection
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
