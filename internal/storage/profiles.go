package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/profiledir/internal/directory"
)

// Compile-time check that Store can seed a directory.
var _ directory.Source = (*Store)(nil)

const profileColumns = `id, name, avatar, description, detailed_bio, email, phone, website, company, position,
	location_json, tags_json, social_json, created_at, updated_at`

// SaveProfile inserts or replaces a profile. A new profile is appended after
// all existing ones; an existing one keeps its position.
func (s *Store) SaveProfile(p directory.Profile) error {
	return saveProfile(s.db, p)
}

func saveProfile(ex execer, p directory.Profile) error {
	locJSON, err := json.Marshal(p.Location)
	if err != nil {
		return fmt.Errorf("marshalling location: %w", err)
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshalling tags: %w", err)
	}
	social := p.SocialMedia
	if social == nil {
		social = map[string]string{}
	}
	socialJSON, err := json.Marshal(social)
	if err != nil {
		return fmt.Errorf("marshalling social media: %w", err)
	}

	_, err = ex.Exec(`
		INSERT INTO profiles (id, seq, name, avatar, description, detailed_bio, email, phone, website, company, position,
			location_json, tags_json, social_json, created_at, updated_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM profiles), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			avatar = excluded.avatar,
			description = excluded.description,
			detailed_bio = excluded.detailed_bio,
			email = excluded.email,
			phone = excluded.phone,
			website = excluded.website,
			company = excluded.company,
			position = excluded.position,
			location_json = excluded.location_json,
			tags_json = excluded.tags_json,
			social_json = excluded.social_json,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Avatar, p.Description, p.DetailedBio, p.Email, p.Phone, p.Website, p.Company, p.Position,
		string(locJSON), string(tagsJSON), string(socialJSON),
		p.CreatedAt.UTC().Format(time.RFC3339Nano), p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving profile %s: %w", p.ID, err)
	}
	return nil
}

// GetProfile returns the profile with the given id.
func (s *Store) GetProfile(id string) (directory.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return directory.Profile{}, ErrNotFound
	}
	if err != nil {
		return directory.Profile{}, err
	}
	return p, nil
}

// ListProfiles returns all profiles in insertion order.
func (s *Store) ListProfiles(ctx context.Context) ([]directory.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []directory.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// LoadProfiles implements directory.Source.
func (s *Store) LoadProfiles(ctx context.Context) ([]directory.Profile, error) {
	return s.ListProfiles(ctx)
}

// DeleteProfile removes the profile with the given id.
func (s *Store) DeleteProfile(id string) error {
	return deleteProfile(s.db, id)
}

func deleteProfile(ex execer, id string) error {
	res, err := ex.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountProfiles returns the number of stored profiles.
func (s *Store) CountProfiles() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&n)
	return n, err
}

// ImportProfiles saves profiles in order inside a single transaction. It is
// used to seed an empty database.
func (s *Store) ImportProfiles(profiles []directory.Profile) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning import transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range profiles {
		if err := saveProfile(tx, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ApplyChange mirrors a directory change into the profiles table. When
// enqueue is true an outbox job carrying the change is written in the same
// transaction.
func (s *Store) ApplyChange(c directory.Change, enqueue bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning change transaction: %w", err)
	}
	defer tx.Rollback()

	switch c.Kind {
	case directory.ChangeAdded, directory.ChangeUpdated:
		if err := saveProfile(tx, c.Profile); err != nil {
			return err
		}
	case directory.ChangeRemoved:
		if err := deleteProfile(tx, c.Profile.ID); err != nil && err != ErrNotFound {
			return fmt.Errorf("deleting profile %s: %w", c.Profile.ID, err)
		}
	default:
		return fmt.Errorf("unknown change kind %q", c.Kind)
	}

	if enqueue {
		payload, err := json.Marshal(ChangePayload{Kind: c.Kind, Profile: c.Profile, At: c.At})
		if err != nil {
			return fmt.Errorf("marshalling change payload: %w", err)
		}
		job := Job{
			ID:          uuid.New().String(),
			Type:        JobTypeProfileEvent,
			PayloadJSON: string(payload),
			MaxAttempts: 5,
		}
		if err := insertJob(tx, job); err != nil {
			return fmt.Errorf("enqueueing change: %w", err)
		}
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (directory.Profile, error) {
	var p directory.Profile
	var locJSON, tagsJSON, socialJSON, createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.Name, &p.Avatar, &p.Description, &p.DetailedBio, &p.Email, &p.Phone,
		&p.Website, &p.Company, &p.Position, &locJSON, &tagsJSON, &socialJSON, &createdAt, &updatedAt); err != nil {
		return directory.Profile{}, err
	}

	if err := json.Unmarshal([]byte(locJSON), &p.Location); err != nil {
		return directory.Profile{}, fmt.Errorf("parsing location for %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &p.Tags); err != nil {
		return directory.Profile{}, fmt.Errorf("parsing tags for %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(socialJSON), &p.SocialMedia); err != nil {
		return directory.Profile{}, fmt.Errorf("parsing social media for %s: %w", p.ID, err)
	}
	if len(p.SocialMedia) == 0 {
		p.SocialMedia = nil
	}

	var err error
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return directory.Profile{}, fmt.Errorf("parsing created_at for %s: %w", p.ID, err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return directory.Profile{}, fmt.Errorf("parsing updated_at for %s: %w", p.ID, err)
	}
	return p, nil
}
