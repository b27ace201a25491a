package storage

import (
	"testing"
	"time"

	"github.com/boyangli/sentinelmap-positioner/models"
	"github.com/jmoiron/sqlx"
)

func TestBuildRows(t *testing.T) {
	radius := 1.2
	gx, gy := 136000.5, 455000.25
	positions := []models.DetectedObjectPosition{
		{Latitude: 52.09, Longitude: 5.12, Altitude: 2, ID: 4, Type: "human", LocationRadius: &radius, GridX: &gx, GridY: &gy},
		{Latitude: 52.08, Longitude: 5.11, ID: 5, Type: "bicycle"},
	}
	readAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sentAt := readAt.Add(40 * time.Millisecond)

	rows := BuildRows("session-1", positions, 33, readAt, sentAt)

	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	r := rows[0]
	if r.SessionID != "session-1" || r.FrameIndex != 33 || r.ObjectID != 4 || r.ObjectType != "human" {
		t.Errorf("Unexpected row %+v", r)
	}
	if r.ReadAt == nil || !r.ReadAt.Equal(readAt) || !r.SentAt.Equal(sentAt) {
		t.Errorf("Unexpected timestamps %v / %v", r.ReadAt, r.SentAt)
	}
	if *r.LocationRadius != 1.2 || *r.GridX != gx || *r.GridY != gy {
		t.Errorf("Unexpected optional columns %+v", r)
	}
	if rows[1].LocationRadius != nil || rows[1].GridX != nil {
		t.Errorf("Expected NULL columns for missing values, got %+v", rows[1])
	}
}

func TestBuildRowsUnknownReadTime(t *testing.T) {
	rows := BuildRows("s", []models.DetectedObjectPosition{{ID: 1}}, 0, time.Time{}, time.Now())
	if rows[0].ReadAt != nil {
		t.Errorf("Expected NULL read time, got %v", rows[0].ReadAt)
	}
}

func TestInsertBindsEveryColumn(t *testing.T) {
	query, args, err := sqlx.Named(insertPosition, PositionRow{SessionID: "s", ObjectType: "human"})
	if err != nil {
		t.Fatalf("Named failed: %v", err)
	}
	if len(args) != 12 {
		t.Errorf("Expected 12 bound arguments, got %d", len(args))
	}
	if query == insertPosition {
		t.Errorf("Expected named parameters to be rewritten")
	}
}

func TestSendEmptyFrame(t *testing.T) {
	s := NewPostgresSink(nil, "s")
	if err := s.Send(nil, 1, time.Now()); err != nil {
		t.Errorf("Expected empty frame to skip the database, got %v", err)
	}
}
