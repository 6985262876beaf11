// package shazam converts raw Shazam library CSV exports into track records.
//
// The export format is loosely structured: a "Shazam Library" banner line,
// an optional column header, then six positional columns of which only Title
// and Artist matter. Parsing is two-tier: a strict csv.Reader pass over the
// fixed schema, then a manual line scanner used only when the structured
// pass fails (unbalanced quotes and similar malformations).
package shazam

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"shaztube/internal/models"
	"shaztube/internal/shared"
)

const (
	// bannerMarker is the first line of every Shazam library export.
	bannerMarker = "Shazam Library"

	// canonicalHeader is the column header row some exports include.
	canonicalHeader = "Index,TagTime,Title,Artist,URL,TrackKey"

	titleColumn  = 2
	artistColumn = 3
	minColumns   = 4
)

// Stats carries informational row counts from a parse. Never required for
// correctness.
type Stats struct {
	RowsSeen int
	RowsKept int
}

// Parse extracts tracks from raw CSV text, preserving row order.
//
// Fails with an error wrapping [shared.ErrNoTracks] only when no strategy
// can recover a single valid track.
func Parse(raw string) ([]models.Track, error) {
	tracks, _, err := ParseWithStats(raw)
	return tracks, err
}

// ParseWithStats is [Parse] plus diagnostic row counts.
func ParseWithStats(raw string) ([]models.Track, Stats, error) {
	tracks, stats, err := parseStructured(raw)
	if err == nil {
		return tracks, stats, nil
	}

	tracks, stats, err = parseManual(raw)
	if err != nil {
		return nil, stats, err
	}
	return tracks, stats, nil
}

// parseStructured is the primary strategy: strip the banner, then read the
// remainder with encoding/csv against the fixed six-column schema. Any
// reader-level error aborts the strategy so the manual pass can take over.
func parseStructured(raw string) ([]models.Track, Stats, error) {
	var stats Stats

	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.Contains(line, bannerMarker) {
			continue
		}
		kept = append(kept, line)
	}
	cleaned := strings.TrimSpace(strings.Join(kept, "\n"))
	if cleaned == "" {
		return nil, stats, fmt.Errorf("%w: no data after removing banner", shared.ErrNoTracks)
	}

	reader := csv.NewReader(strings.NewReader(cleaned))
	reader.FieldsPerRecord = -1

	var tracks []models.Track
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("csv read failed: %w", err)
		}

		stats.RowsSeen++

		title, artist := "", ""
		if len(record) > titleColumn {
			title = strings.TrimSpace(record[titleColumn])
		}
		if len(record) > artistColumn {
			artist = strings.TrimSpace(record[artistColumn])
		}

		if title == "" || artist == "" {
			continue
		}
		if title == "Title" && artist == "Artist" {
			continue
		}

		tracks = append(tracks, models.Track{Title: title, Artist: artist})
		stats.RowsKept++
	}

	if len(tracks) == 0 {
		return nil, stats, fmt.Errorf("%w after structured parse", shared.ErrNoTracks)
	}
	return tracks, stats, nil
}

// parseManual is the fallback strategy: split on newlines and tokenize each
// line by hand with a quote-toggle scanner. Recovers rows the strict reader
// rejects wholesale.
func parseManual(raw string) ([]models.Track, Stats, error) {
	var stats Stats

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, bannerMarker) || strings.HasPrefix(line, canonicalHeader) {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, stats, fmt.Errorf("%w: no data lines", shared.ErrNoTracks)
	}

	var tracks []models.Track
	for _, line := range lines {
		stats.RowsSeen++

		fields := splitLine(line)
		if len(fields) < minColumns {
			continue
		}

		title := strings.TrimSpace(stripQuotes(fields[titleColumn]))
		artist := strings.TrimSpace(stripQuotes(fields[artistColumn]))

		if title == "" || artist == "" || title == "Title" || artist == "Artist" {
			continue
		}

		tracks = append(tracks, models.Track{Title: title, Artist: artist})
		stats.RowsKept++
	}

	if len(tracks) == 0 {
		return nil, stats, fmt.Errorf("%w after manual parse", shared.ErrNoTracks)
	}
	return tracks, stats, nil
}

// splitLine tokenizes one CSV line: a double quote toggles quoted mode, a
// comma outside quotes ends the field, everything else accumulates.
func splitLine(line string) []string {
	var fields []string
	var current strings.Builder
	inQuotes := false

	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	fields = append(fields, current.String())

	return fields
}

// stripQuotes removes at most one leading and one trailing double quote.
// This is deliberately not full CSV unescaping: a doubled quote inside a
// quoted field passes through unchanged, matching the export's observed
// shape.
func stripQuotes(s string) string {
	s = strings.TrimPrefix(s, `"`)
	return strings.TrimSuffix(s, `"`)
}
