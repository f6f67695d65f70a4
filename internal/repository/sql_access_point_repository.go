package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sebasr/wifi-registry/internal/database"
	"github.com/sebasr/wifi-registry/internal/models"
	"github.com/sebasr/wifi-registry/internal/validation"
)

const accessPointColumns = `bssid, frequency, rssi, ssid, "timestamp", channel_bandwidth, capabilities,
	password, dns_server, gateway, my_ip, signal_level, pavilion_number, floor,
	created_at, updated_at`

// SQLAccessPointRepository implements AccessPointRepository on PostgreSQL or SQLite
type SQLAccessPointRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLAccessPointRepository creates a repository on an open connection
func NewSQLAccessPointRepository(db *database.DB) *SQLAccessPointRepository {
	return &SQLAccessPointRepository{db: db, now: time.Now}
}

// Create validates and stores a new record. The record's BSSID is
// upper-cased and its timestamps are set.
func (r *SQLAccessPointRepository) Create(ctx context.Context, ap *models.AccessPoint) error {
	if err := validation.ValidateRecord(ap); err != nil {
		return err
	}

	ap.BSSID = normalizeBSSID(ap.BSSID)
	now := r.now().UTC()
	ap.CreatedAt = now
	ap.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO wifi_networks (` + accessPointColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (bssid) DO NOTHING
	`)

	result, err := r.db.ExecContext(ctx, query,
		ap.BSSID,
		ap.Frequency,
		ap.RSSI,
		ap.SSID,
		ap.Timestamp,
		ap.ChannelBandwidth,
		ap.Capabilities,
		nullString(ap.Password),
		nullString(ap.DNSServer),
		nullString(ap.Gateway),
		nullString(ap.MyIP),
		nullInt(ap.SignalLevel),
		nullInt(ap.PavilionNumber),
		nullInt(ap.Floor),
		ap.CreatedAt.UnixNano(),
		ap.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAccessPointExists
		}
		return fmt.Errorf("failed to insert access point: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAccessPointExists
	}

	return nil
}

// Get retrieves a record by bssid
func (r *SQLAccessPointRepository) Get(ctx context.Context, bssid string) (*models.AccessPoint, error) {
	query := r.db.Rebind(`SELECT ` + accessPointColumns + ` FROM wifi_networks WHERE bssid = ?`)

	ap, err := scanAccessPoint(r.db.QueryRowContext(ctx, query, normalizeBSSID(bssid)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccessPointNotFound
		}
		return nil, fmt.Errorf("failed to get access point: %w", err)
	}

	return ap, nil
}

// List returns every record ordered by creation time, then bssid
func (r *SQLAccessPointRepository) List(ctx context.Context) ([]*models.AccessPoint, error) {
	query := `SELECT ` + accessPointColumns + ` FROM wifi_networks ORDER BY created_at, bssid`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list access points: %w", err)
	}
	defer rows.Close()

	aps := []*models.AccessPoint{}
	for rows.Next() {
		ap, err := scanAccessPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access point: %w", err)
		}
		aps = append(aps, ap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate access points: %w", err)
	}

	return aps, nil
}

// Update replaces every column except bssid and created_at. An empty
// BSSID on ap is taken from the bssid argument.
func (r *SQLAccessPointRepository) Update(ctx context.Context, bssid string, ap *models.AccessPoint) error {
	bssid = normalizeBSSID(bssid)
	if ap != nil {
		if ap.BSSID == "" {
			ap.BSSID = bssid
		} else if normalizeBSSID(ap.BSSID) != bssid {
			return ErrBSSIDImmutable
		}
	}
	if err := validation.ValidateRecord(ap); err != nil {
		return err
	}

	ap.BSSID = bssid
	ap.UpdatedAt = r.now().UTC()

	query := r.db.Rebind(`
		UPDATE wifi_networks SET
			frequency = ?, rssi = ?, ssid = ?, "timestamp" = ?, channel_bandwidth = ?, capabilities = ?,
			password = ?, dns_server = ?, gateway = ?, my_ip = ?,
			signal_level = ?, pavilion_number = ?, floor = ?, updated_at = ?
		WHERE bssid = ?
	`)

	result, err := r.db.ExecContext(ctx, query,
		ap.Frequency,
		ap.RSSI,
		ap.SSID,
		ap.Timestamp,
		ap.ChannelBandwidth,
		ap.Capabilities,
		nullString(ap.Password),
		nullString(ap.DNSServer),
		nullString(ap.Gateway),
		nullString(ap.MyIP),
		nullInt(ap.SignalLevel),
		nullInt(ap.PavilionNumber),
		nullInt(ap.Floor),
		ap.UpdatedAt.UnixNano(),
		bssid,
	)
	if err != nil {
		return fmt.Errorf("failed to update access point: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAccessPointNotFound
	}

	return nil
}

// Delete removes a record
func (r *SQLAccessPointRepository) Delete(ctx context.Context, bssid string) error {
	query := r.db.Rebind(`DELETE FROM wifi_networks WHERE bssid = ?`)

	result, err := r.db.ExecContext(ctx, query, normalizeBSSID(bssid))
	if err != nil {
		return fmt.Errorf("failed to delete access point: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAccessPointNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccessPoint(row rowScanner) (*models.AccessPoint, error) {
	var (
		ap                                 models.AccessPoint
		password, dnsServer, gateway, myIP sql.NullString
		signalLevel, pavilionNumber, floor sql.NullInt64
		createdAt, updatedAt               int64
	)

	err := row.Scan(
		&ap.BSSID,
		&ap.Frequency,
		&ap.RSSI,
		&ap.SSID,
		&ap.Timestamp,
		&ap.ChannelBandwidth,
		&ap.Capabilities,
		&password,
		&dnsServer,
		&gateway,
		&myIP,
		&signalLevel,
		&pavilionNumber,
		&floor,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	ap.Password = stringFromNull(password)
	ap.DNSServer = stringFromNull(dnsServer)
	ap.Gateway = stringFromNull(gateway)
	ap.MyIP = stringFromNull(myIP)
	ap.SignalLevel = intFromNull(signalLevel)
	ap.PavilionNumber = intFromNull(pavilionNumber)
	ap.Floor = intFromNull(floor)
	ap.CreatedAt = time.Unix(0, createdAt).UTC()
	ap.UpdatedAt = time.Unix(0, updatedAt).UTC()

	return &ap, nil
}

func normalizeBSSID(bssid string) string {
	return strings.ToUpper(strings.TrimSpace(bssid))
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func stringFromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intFromNull(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

// isUniqueViolation reports a primary key clash from either driver
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
