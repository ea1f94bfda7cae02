package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Channel is an alert destination stored in the database.
type Channel struct {
	ID        string
	Name      string
	Kind      string
	Config    json.RawMessage
	Enabled   bool
	CreatedAt time.Time
}

// ChannelRepository provides CRUD operations for alert channels.
type ChannelRepository struct {
	db *sql.DB
}

// Channels returns the channel repository for this store.
func (s *Store) Channels() *ChannelRepository {
	return &ChannelRepository{db: s.db}
}

const channelColumns = `id, name, kind, config, enabled, created_at`

// Create inserts a new channel into the database.
func (r *ChannelRepository) Create(c *Channel) error {
	c.CreatedAt = time.Now()

	config := c.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	_, err := r.db.Exec(
		`INSERT INTO channels (`+channelColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Kind, string(config), c.Enabled, c.CreatedAt,
	)
	return err
}

// GetByID retrieves a channel by its ID.
func (r *ChannelRepository) GetByID(id string) (*Channel, error) {
	row := r.db.QueryRow(`SELECT `+channelColumns+` FROM channels WHERE id = ?`, id)

	c, err := scanChannel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// List retrieves all channels, oldest first.
func (r *ChannelRepository) List() ([]*Channel, error) {
	return r.query(`SELECT ` + channelColumns + ` FROM channels ORDER BY created_at ASC, name ASC`)
}

// ListEnabled retrieves the channels alerts should be delivered to.
func (r *ChannelRepository) ListEnabled() ([]*Channel, error) {
	return r.query(`SELECT ` + channelColumns + ` FROM channels WHERE enabled = 1 ORDER BY created_at ASC, name ASC`)
}

func (r *ChannelRepository) query(q string) ([]*Channel, error) {
	rows, err := r.db.Query(q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []*Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return channels, nil
}

// Update updates an existing channel in the database.
func (r *ChannelRepository) Update(c *Channel) error {
	config := c.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	enabled := 0
	if c.Enabled {
		enabled = 1
	}

	result, err := r.db.Exec(
		`UPDATE channels SET name = ?, kind = ?, config = ?, enabled = ? WHERE id = ?`,
		c.Name, c.Kind, string(config), enabled, c.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a channel from the database by its ID.
func (r *ChannelRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM channels WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(row rowScanner) (*Channel, error) {
	c := &Channel{}
	var config string
	var enabled int

	if err := row.Scan(&c.ID, &c.Name, &c.Kind, &config, &enabled, &c.CreatedAt); err != nil {
		return nil, err
	}

	c.Config = json.RawMessage(config)
	c.Enabled = enabled != 0
	return c, nil
}
