package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/kbinani/screenshot"
	"github.com/sirupsen/logrus"

	"github.com/mbright/glimpse/pkg/analysis"
	"github.com/mbright/glimpse/pkg/models"
	"github.com/mbright/glimpse/pkg/vector"
)

const (
	maxRestarts            = 10
	maxConsecutiveFailures = 5
	initialBackoff         = 5 * time.Second
	maxBackoff             = 5 * time.Minute
)

// Loop periodically captures the primary display, analyzes it, persists the
// resulting record, and ingests it into the index.
type Loop struct {
	analyzer *analysis.Analyzer
	store    *vector.Store
	dataDir  string
	interval time.Duration
	log      *logrus.Entry

	grab func() ([]byte, error)
	now  func() time.Time
}

// NewLoop creates a capture loop writing record files to dataDir.
func NewLoop(analyzer *analysis.Analyzer, store *vector.Store, dataDir string, interval time.Duration) *Loop {
	return &Loop{
		analyzer: analyzer,
		store:    store,
		dataDir:  dataDir,
		interval: interval,
		log:      logrus.WithField("component", "capture"),
		grab:     grabPrimaryDisplay,
		now:      time.Now,
	}
}

// Run supervises the capture loop until ctx is cancelled. A crashed loop is
// restarted with exponential backoff up to a restart cap; the restart count
// is logged so an operator can see a persistently failing capture path
// instead of it silently burning resources.
func (l *Loop) Run(ctx context.Context) {
	backoff := initialBackoff

	for restarts := 0; restarts <= maxRestarts; restarts++ {
		if restarts > 0 {
			l.log.WithFields(logrus.Fields{
				"restart": restarts,
				"backoff": backoff,
			}).Warn("restarting capture loop")

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := l.run(ctx)
		if err == nil {
			return // context cancelled, clean exit
		}
		l.log.WithError(err).Error("capture loop crashed")
	}

	l.log.WithField("max_restarts", maxRestarts).Error("capture loop gave up")
}

func (l *Loop) run(ctx context.Context) error {
	if err := os.MkdirAll(l.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	consecutiveFailures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// A single failed cycle is logged and skipped; the next tick
			// tries again. A long unbroken run of failures hands control
			// back to the supervisor so backoff can kick in.
			if err := l.captureOnce(ctx); err != nil {
				l.log.WithError(err).Warn("capture cycle failed")
				consecutiveFailures++
				if consecutiveFailures >= maxConsecutiveFailures {
					return fmt.Errorf("%d consecutive capture failures, last: %w", consecutiveFailures, err)
				}
				continue
			}
			consecutiveFailures = 0
		}
	}
}

// captureOnce runs one capture/analyze/store/ingest cycle. The record is
// persisted before ingestion so a crash between the two loses nothing: the
// next startup replays it from disk.
func (l *Loop) captureOnce(ctx context.Context) error {
	capturedAt := l.now()

	image, err := l.grab()
	if err != nil {
		return fmt.Errorf("capture display: %w", err)
	}

	record, err := l.analyzer.Analyze(ctx, image, capturedAt)
	if err != nil {
		return err
	}

	if err := l.persist(record); err != nil {
		return err
	}

	if err := l.store.Insert(ctx, record.Timestamp, record.EmbeddingText(), *record); err != nil {
		return fmt.Errorf("index record: %w", err)
	}

	l.log.WithFields(logrus.Fields{
		"timestamp": record.Timestamp,
		"app":       record.ActiveApp,
	}).Info("captured activity")

	return nil
}

// persist writes one JSON file per record, named by the filename-safe
// encoding of the capture instant.
func (l *Loop) persist(record *models.ActivityRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	name := models.ToFilenameSafe(record.Timestamp) + ".json"
	path := filepath.Join(l.dataDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write record file: %w", err)
	}

	return nil
}

// grabPrimaryDisplay captures display 0 and encodes it as PNG.
func grabPrimaryDisplay() ([]byte, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, fmt.Errorf("no active displays")
	}

	img, err := screenshot.CaptureDisplay(0)
	if err != nil {
		return nil, fmt.Errorf("capture display 0: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	return buf.Bytes(), nil
}
