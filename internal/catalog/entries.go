package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Entry is one archived recording.
type Entry struct {
	ID           int64     `json:"id"`
	JobID        string    `json:"job_id"`
	DisplayCode  string    `json:"display_code,omitempty"`
	Path         string    `json:"path"`
	PlaybackURI  string    `json:"playback_uri"`
	Channel      int       `json:"channel"`
	Media        string    `json:"media"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	SizeBytes    int64     `json:"size_bytes"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// Filter narrows List results.
type Filter struct {
	JobID string
	Limit int
}

// Record stores entry, replacing any earlier record for the same path.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if s == nil {
		return errors.New("catalog store is nil")
	}
	if strings.TrimSpace(entry.Path) == "" {
		return errors.New("catalog entry requires a path")
	}
	if entry.DownloadedAt.IsZero() {
		entry.DownloadedAt = time.Now()
	}
	if entry.Channel < 1 {
		entry.Channel = 1
	}
	if entry.Media == "" {
		entry.Media = "video"
	}
	_, err := s.exec(ctx,
		`INSERT INTO archived_files (
            job_id, display_code, path, playback_uri, channel, media,
            start_time, end_time, size_bytes, downloaded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(path) DO UPDATE SET
            job_id = excluded.job_id,
            display_code = excluded.display_code,
            playback_uri = excluded.playback_uri,
            channel = excluded.channel,
            media = excluded.media,
            start_time = excluded.start_time,
            end_time = excluded.end_time,
            size_bytes = excluded.size_bytes,
            downloaded_at = excluded.downloaded_at`,
		entry.JobID,
		nullableString(entry.DisplayCode),
		entry.Path,
		entry.PlaybackURI,
		entry.Channel,
		entry.Media,
		formatTime(entry.Start),
		formatTime(entry.End),
		entry.SizeBytes,
		formatTime(entry.DownloadedAt),
	)
	if err != nil {
		return fmt.Errorf("record archived file: %w", err)
	}
	return nil
}

// List returns entries ordered by recording start, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `SELECT id, job_id, display_code, path, playback_uri, channel, media,
        start_time, end_time, size_bytes, downloaded_at FROM archived_files`
	var args []any
	if id := strings.TrimSpace(filter.JobID); id != "" {
		query += " WHERE job_id = ?"
		args = append(args, id)
	}
	query += " ORDER BY start_time DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query archived files: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archived files: %w", err)
	}
	return entries, nil
}

// Stats summarizes the catalog.
type Stats struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

// Stats returns the file count and total size of the catalog.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1), COALESCE(SUM(size_bytes), 0) FROM archived_files",
	).Scan(&stats.Files, &stats.Bytes)
	if err != nil {
		return Stats{}, fmt.Errorf("catalog stats: %w", err)
	}
	return stats, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		entry        Entry
		displayCode  sql.NullString
		start        string
		end          string
		downloadedAt string
	)
	if err := rows.Scan(
		&entry.ID,
		&entry.JobID,
		&displayCode,
		&entry.Path,
		&entry.PlaybackURI,
		&entry.Channel,
		&entry.Media,
		&start,
		&end,
		&entry.SizeBytes,
		&downloadedAt,
	); err != nil {
		return Entry{}, fmt.Errorf("scan archived file: %w", err)
	}
	entry.DisplayCode = displayCode.String
	entry.Start = parseTime(start)
	entry.End = parseTime(end)
	entry.DownloadedAt = parseTime(downloadedAt)
	return entry, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
