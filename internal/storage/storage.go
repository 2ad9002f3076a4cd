// Package storage persists per-guild playback preferences and a short
// listening history between bot restarts.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/keshon/lavalink/internal/datastore"
)

const trackHistoryLimit = 12

type Storage struct {
	ds *datastore.Store
}

// PlayedTrack is one entry of a guild's listening history.
type PlayedTrack struct {
	Title     string    `json:"title"`
	URI       string    `json:"uri"`
	Requester string    `json:"requester"`
	PlayedAt  time.Time `json:"played_at"`
}

// Record is everything stored for one guild.
type Record struct {
	Volume       int           `json:"volume"`
	Repeat       bool          `json:"repeat"`
	QueueRepeat  bool          `json:"queue_repeat"`
	TrackHistory []PlayedTrack `json:"track_history"`
}

func New(filePath string, log *zap.Logger) (*Storage, error) {
	ds, err := datastore.Open(filePath, log)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// getOrCreateGuildRecord returns the guild's record, creating a fresh
// one with defaults on first access.
func (s *Storage) getOrCreateGuildRecord(guildID string) (*Record, error) {
	data, exists := s.ds.Get(guildID)
	if !exists {
		record := &Record{Volume: 100}
		s.ds.Set(guildID, record)
		return record, nil
	}

	// The store holds decoded JSON as map[string]any after a restart;
	// round-trip through JSON to get the typed record back.
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal guild record: %w", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("unmarshal guild record: %w", err)
	}

	if len(record.TrackHistory) > trackHistoryLimit {
		record.TrackHistory = record.TrackHistory[len(record.TrackHistory)-trackHistoryLimit:]
	}
	return &record, nil
}

func (s *Storage) GetGuildSettings(guildID string) (*Record, error) {
	return s.getOrCreateGuildRecord(guildID)
}

func (s *Storage) SetGuildVolume(guildID string, volume int) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}
	record.Volume = volume
	s.ds.Set(guildID, record)
	return nil
}

func (s *Storage) SetGuildRepeat(guildID string, repeat, queueRepeat bool) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}
	record.Repeat = repeat
	record.QueueRepeat = queueRepeat
	s.ds.Set(guildID, record)
	return nil
}

// AppendTrackToHistory records a played track, keeping only the most
// recent entries.
func (s *Storage) AppendTrackToHistory(guildID string, track PlayedTrack) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}
	record.TrackHistory = append(record.TrackHistory, track)
	if len(record.TrackHistory) > trackHistoryLimit {
		record.TrackHistory = record.TrackHistory[len(record.TrackHistory)-trackHistoryLimit:]
	}
	s.ds.Set(guildID, record)
	return nil
}

func (s *Storage) FetchTrackHistory(guildID string) ([]PlayedTrack, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.TrackHistory, nil
}
