package store

import (
	"database/sql"
	"errors"
	"time"
)

// AlertRecord is one dispatched alert episode.
type AlertRecord struct {
	ID          string
	TriggeredAt time.Time
	Count       int
	Message     string
	Deliveries  []Delivery
}

// Delivery is the outcome of sending one alert on one channel.
type Delivery struct {
	ID        int64
	AlertID   string
	Channel   string
	Success   bool
	Error     string
	CreatedAt time.Time
}

// AlertRepository stores alert episodes and their delivery outcomes.
type AlertRepository struct {
	db *sql.DB
}

// Alerts returns the alert repository for this store.
func (s *Store) Alerts() *AlertRepository {
	return &AlertRepository{db: s.db}
}

// Create inserts a new alert record.
func (r *AlertRepository) Create(a *AlertRecord) error {
	_, err := r.db.Exec(
		`INSERT INTO alerts (id, triggered_at, count, message) VALUES (?, ?, ?, ?)`,
		a.ID, a.TriggeredAt, a.Count, a.Message,
	)
	return err
}

// GetByID retrieves an alert and its deliveries.
func (r *AlertRepository) GetByID(id string) (*AlertRecord, error) {
	a := &AlertRecord{}
	err := r.db.QueryRow(
		`SELECT id, triggered_at, count, message FROM alerts WHERE id = ?`, id,
	).Scan(&a.ID, &a.TriggeredAt, &a.Count, &a.Message)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	deliveries, err := r.deliveries(a.ID)
	if err != nil {
		return nil, err
	}
	a.Deliveries = deliveries
	return a, nil
}

// RecordDelivery appends a delivery outcome. The alert must exist.
func (r *AlertRepository) RecordDelivery(d *Delivery) error {
	d.CreatedAt = time.Now()

	result, err := r.db.Exec(
		`INSERT INTO deliveries (alert_id, channel, success, error, created_at) VALUES (?, ?, ?, ?, ?)`,
		d.AlertID, d.Channel, d.Success, d.Error, d.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = id
	return nil
}

// ListRecent returns up to limit alerts, newest first, with their deliveries.
func (r *AlertRepository) ListRecent(limit int) ([]*AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, triggered_at, count, message FROM alerts ORDER BY triggered_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}

	var alerts []*AlertRecord
	for rows.Next() {
		a := &AlertRecord{}
		if err := rows.Scan(&a.ID, &a.TriggeredAt, &a.Count, &a.Message); err != nil {
			rows.Close()
			return nil, err
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, a := range alerts {
		deliveries, err := r.deliveries(a.ID)
		if err != nil {
			return nil, err
		}
		a.Deliveries = deliveries
	}

	return alerts, nil
}

func (r *AlertRepository) deliveries(alertID string) ([]Delivery, error) {
	rows, err := r.db.Query(
		`SELECT id, alert_id, channel, success, error, created_at
		 FROM deliveries WHERE alert_id = ? ORDER BY id ASC`,
		alertID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []Delivery
	for rows.Next() {
		var d Delivery
		var success int
		if err := rows.Scan(&d.ID, &d.AlertID, &d.Channel, &success, &d.Error, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Success = success != 0
		deliveries = append(deliveries, d)
	}

	return deliveries, rows.Err()
}
