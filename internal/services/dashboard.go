package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"sales-analytics/internal/models"
	"sales-analytics/internal/observability"
)

// State is everything derived from one uploaded file.
type State struct {
	ID       uuid.UUID
	FileName string
	LoadedAt time.Time
	Table    *models.SalesTable
	Report   *models.Report
	Charts   models.Charts
}

// Dashboard holds the currently loaded file and its aggregates. Every Load
// recomputes from scratch and replaces what was there before.
type Dashboard struct {
	mu          sync.RWMutex
	state       *State
	lastErr     error
	dateLayouts []string

	generation atomic.Uint64
	loads      atomic.Int64
	failures   atomic.Int64
	logger     *slog.Logger
}

func NewDashboard(dateLayouts []string, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dashboard{
		dateLayouts: dateLayouts,
		logger:      logger,
	}
}

// Load runs the whole pipeline over r: read, schema gate, coercion,
// aggregation. Any failure aborts the load, clears the previous state and
// is kept as the last error for display. If another Load starts before this
// one finishes, this result is dropped and ErrSuperseded returned.
func (d *Dashboard) Load(ctx context.Context, fileName string, r io.Reader) (*State, error) {
	gen := d.generation.Add(1)

	ctx, span := observability.StartSpan(ctx, "sales.load")
	span.SetTag("file", fileName)
	logger := observability.LoggerFrom(ctx, d.logger)
	defer span.Log(ctx, logger)

	start := time.Now()
	state, err := d.run(fileName, r)

	d.mu.Lock()
	if d.generation.Load() != gen {
		d.mu.Unlock()
		span.SetError(ErrSuperseded)
		logger.Info("sales load superseded", "file", fileName, "error", err)
		return nil, ErrSuperseded
	}
	d.state = state
	d.lastErr = err
	d.loads.Add(1)
	if err != nil {
		d.failures.Add(1)
	}
	d.mu.Unlock()

	if err != nil {
		span.SetError(err)
		logger.Warn("sales load failed", "file", fileName, "error", err, "duration", time.Since(start))
		return nil, err
	}

	logger.Info("sales load complete",
		"file", fileName,
		"records", state.Report.RecordCount,
		"products", len(state.Report.Products),
		"months", len(state.Report.Monthly),
		"regions", len(state.Report.Regions),
		"duration", time.Since(start),
	)
	return state, nil
}

func (d *Dashboard) run(fileName string, r io.Reader) (*State, error) {
	raw, err := ReadTable(r)
	if err != nil {
		return nil, err
	}

	if err := Validate(raw); err != nil {
		return nil, err
	}

	table, err := ParseRecords(raw, d.dateLayouts)
	if err != nil {
		return nil, err
	}

	report := Aggregate(table)

	return &State{
		ID:       uuid.New(),
		FileName: fileName,
		LoadedAt: time.Now().UTC(),
		Table:    table,
		Report:   report,
		Charts:   BuildCharts(report),
	}, nil
}

// LoadFile loads a CSV from disk, naming it by its base name.
func (d *Dashboard) LoadFile(ctx context.Context, path string) (*State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return d.Load(ctx, filepath.Base(path), f)
}

// Current returns the loaded state (nil if none) and the error of the most
// recent load, if it failed.
func (d *Dashboard) Current() (*State, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state, d.lastErr
}

// Reset forgets the loaded file and any error.
func (d *Dashboard) Reset() {
	d.generation.Add(1)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = nil
	d.lastErr = nil
}

// Utility method for monitoring
func (d *Dashboard) Stats() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := map[string]any{
		"loaded":       d.state != nil,
		"loads":        d.loads.Load(),
		"failed_loads": d.failures.Load(),
		"record_count": 0,
		"products":     0,
		"months":       0,
		"regions":      0,
		"last_error":   "",
		"last_file":    "",
		"last_loaded":  nil,
		"date_layouts": d.dateLayouts,
	}

	if d.lastErr != nil {
		stats["last_error"] = d.lastErr.Error()
	}
	if d.state != nil {
		stats["record_count"] = d.state.Report.RecordCount
		stats["products"] = len(d.state.Report.Products)
		stats["months"] = len(d.state.Report.Monthly)
		stats["regions"] = len(d.state.Report.Regions)
		stats["last_file"] = d.state.FileName
		stats["last_loaded"] = d.state.LoadedAt
	}

	return stats
}
