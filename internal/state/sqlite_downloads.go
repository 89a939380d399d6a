package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordDownload stores or replaces the record of a downloaded file.
func (s *SQLiteStore) RecordDownload(ctx context.Context, d *Download) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if d.FetchedAt.IsZero() {
		d.FetchedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO downloads (site_no, kind, path, bytes, fetched_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (site_no, kind) DO UPDATE SET
			path = excluded.path,
			bytes = excluded.bytes,
			fetched_at = excluded.fetched_at`,
		d.SiteNo, d.Kind, d.Path, d.Bytes, formatTime(d.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}
	return nil
}

// GetDownload returns the download record for a site and kind.
func (s *SQLiteStore) GetDownload(ctx context.Context, siteNo, kind string) (*Download, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT site_no, kind, path, bytes, fetched_at FROM downloads WHERE site_no = ? AND kind = ?`,
		siteNo, kind)
	d, err := scanDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("download %s/%s: %w", siteNo, kind, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get download: %w", err)
	}
	return d, nil
}

// ListDownloads returns every download record ordered by site and kind.
func (s *SQLiteStore) ListDownloads(ctx context.Context) ([]*Download, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT site_no, kind, path, bytes, fetched_at FROM downloads ORDER BY site_no, kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var downloads []*Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		downloads = append(downloads, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating downloads: %w", err)
	}
	return downloads, nil
}

func scanDownload(row scanner) (*Download, error) {
	var (
		d         Download
		fetchedAt string
	)
	if err := row.Scan(&d.SiteNo, &d.Kind, &d.Path, &d.Bytes, &fetchedAt); err != nil {
		return nil, err
	}
	t, err := parseTime(fetchedAt)
	if err != nil {
		return nil, err
	}
	d.FetchedAt = t
	return &d, nil
}
