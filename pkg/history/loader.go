package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mbright/glimpse/pkg/models"
	"github.com/mbright/glimpse/pkg/vector"
)

// Stats summarizes one replay of a records directory.
type Stats struct {
	Loaded       int
	Skipped      int
	EmbedFailed  int
	FilesScanned int
}

// Load replays every persisted activity record in dir through the same
// ingestion path live capture uses, rebuilding the in-memory index. Files
// that are empty, unparseable, or missing required fields are skipped with
// a warning; a record whose timestamp cannot be normalized is skipped
// rather than inserted with a fabricated instant. Re-running against
// unchanged files reproduces one entry per valid file.
func Load(ctx context.Context, store *vector.Store, dir string) (Stats, error) {
	log := logrus.WithField("component", "history")

	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("dir", dir).Info("no records directory yet, starting empty")
			return Stats{}, nil
		}
		return Stats{}, fmt.Errorf("read records directory %s: %w", dir, err)
	}

	var stats Stats
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		stats.FilesScanned++

		path := filepath.Join(dir, file.Name())
		record, err := readRecord(path)
		if err != nil {
			log.WithError(err).WithField("file", file.Name()).Warn("skipping record file")
			stats.Skipped++
			continue
		}

		if err := store.Insert(ctx, record.Timestamp, record.EmbeddingText(), *record); err != nil {
			// Embedding failures drop the entry but never abort the load.
			log.WithError(err).WithField("file", file.Name()).Warn("skipping record, embedding failed")
			stats.EmbedFailed++
			continue
		}
		stats.Loaded++
	}

	log.WithFields(logrus.Fields{
		"loaded":  stats.Loaded,
		"skipped": stats.Skipped,
		"failed":  stats.EmbedFailed,
	}).Info("history replay complete")

	return stats, nil
}

// readRecord parses and validates one on-disk record, normalizing its
// timestamp to canonical form.
func readRecord(path string) (*models.ActivityRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	var record models.ActivityRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// Stored timestamps may carry the filename-safe encoding; normalize
	// before the record reaches the index.
	canonical, err := models.NormalizeTimestamp(record.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	record.Timestamp = canonical

	return &record, nil
}
