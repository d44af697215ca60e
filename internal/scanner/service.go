package scanner

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"melodex/internal/catalog"
	"melodex/internal/logging"
	"melodex/internal/metrics"
	"melodex/internal/tags"
)

const (
	// Minimum tracks in the catalog before marking the server as ready
	minTracksForReady = 50

	defaultScanInterval = 1 * time.Hour
)

// Service owns the scan lifecycle: an initial scan at startup, periodic
// rescans, and manually triggered ones. At most one scan runs at a time.
type Service struct {
	catalog      *catalog.Catalog
	discovery    *Discovery
	reader       tags.Reader
	sweep        *Sweep
	separators   string
	scanInterval time.Duration
	stopChan     chan struct{}
	stopOnce     sync.Once

	scanMu              sync.Mutex
	isScanning          bool
	lastScanTime        time.Time
	lastScanResult      *SweepResult
	initialScanComplete bool
	initialScanError    error
	startTime           time.Time

	// Progress tracking
	filesProcessed atomic.Int64
	filesSkipped   atomic.Int64
	filesTotal     atomic.Int64
	scanProgress   atomic.Value

	// Callback when a scan completes
	onScanComplete func(*SweepResult)
}

// ScanProgress tracks the running scan.
type ScanProgress struct {
	FilesProcessed int64     `json:"filesProcessed"`
	FilesSkipped   int64     `json:"filesSkipped"`
	FilesTotal     int64     `json:"filesTotal"`
	IsScanning     bool      `json:"isScanning"`
	StartedAt      time.Time `json:"startedAt,omitempty"`
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready            bool          `json:"ready"`
	Scanning         bool          `json:"scanning"`
	StartTime        time.Time     `json:"startTime"`
	Uptime           string        `json:"uptime"`
	LastScanned      time.Time     `json:"lastScanned,omitempty"`
	InitialScanError string        `json:"initialScanError,omitempty"`
	FilesProcessed   int64         `json:"filesProcessed"`
	FilesSkipped     int64         `json:"filesSkipped"`
	ScanProgress     *ScanProgress `json:"scanProgress,omitempty"`
	LastSweep        *SweepResult  `json:"lastSweep,omitempty"`
}

// NewService creates a scan Service over the catalog. Separators is the
// set of characters that split a multi-artist tag value.
func NewService(c *catalog.Catalog, discovery *Discovery, reader tags.Reader, separators string, scanInterval time.Duration) *Service {
	if scanInterval <= 0 {
		scanInterval = defaultScanInterval
	}
	svc := &Service{
		catalog:      c,
		discovery:    discovery,
		reader:       reader,
		sweep:        NewSweep(c),
		separators:   separators,
		scanInterval: scanInterval,
		stopChan:     make(chan struct{}),
		startTime:    time.Now(),
	}
	svc.scanProgress.Store(ScanProgress{})
	return svc
}

// SetOnScanComplete sets a callback invoked after each completed scan.
func (svc *Service) SetOnScanComplete(callback func(*SweepResult)) {
	svc.onScanComplete = callback
}

// Sweeper exposes the reconciliation pass for manual invocation.
func (svc *Service) Sweeper() *Sweep {
	return svc.sweep
}

// Start begins the initial scan in the background and schedules
// periodic rescans.
func (svc *Service) Start(ctx context.Context) {
	go func() {
		logging.Info("Starting initial library scan in background...")
		if err := svc.Scan(ctx); err != nil {
			logging.Error("Initial scan error: %v", err)
			svc.scanMu.Lock()
			svc.initialScanError = err
			svc.scanMu.Unlock()
		}
	}()

	go svc.periodicScan(ctx)
}

// Stop halts scheduled scanning. A running scan finishes its current
// file and then aborts via the context.
func (svc *Service) Stop() {
	svc.stopOnce.Do(func() { close(svc.stopChan) })
}

// IsReady reports whether the server should accept traffic.
func (svc *Service) IsReady() bool {
	if svc.filesProcessed.Load() >= minTracksForReady {
		return true
	}

	svc.scanMu.Lock()
	defer svc.scanMu.Unlock()
	return svc.initialScanComplete
}

// IsScanning reports whether a scan is currently in progress.
func (svc *Service) IsScanning() bool {
	svc.scanMu.Lock()
	defer svc.scanMu.Unlock()
	return svc.isScanning
}

// LastScanTime returns the time of the last completed scan.
func (svc *Service) LastScanTime() time.Time {
	svc.scanMu.Lock()
	defer svc.scanMu.Unlock()
	return svc.lastScanTime
}

// TriggerScan starts a scan in the background if one is not running.
func (svc *Service) TriggerScan(ctx context.Context) {
	go func() {
		if err := svc.Scan(ctx); err != nil {
			logging.Error("manually triggered scan failed: %v", err)
		}
	}()
}

// GetProgress returns the current scan progress.
func (svc *Service) GetProgress() ScanProgress {
	if progress, ok := svc.scanProgress.Load().(ScanProgress); ok {
		return progress
	}
	return ScanProgress{}
}

// GetHealthStatus returns detailed health information.
func (svc *Service) GetHealthStatus() HealthStatus {
	svc.scanMu.Lock()
	defer svc.scanMu.Unlock()

	progress := svc.GetProgress()

	status := HealthStatus{
		Ready:          svc.initialScanComplete || svc.filesProcessed.Load() >= minTracksForReady,
		Scanning:       svc.isScanning,
		StartTime:      svc.startTime,
		Uptime:         time.Since(svc.startTime).String(),
		LastScanned:    svc.lastScanTime,
		FilesProcessed: svc.filesProcessed.Load(),
		FilesSkipped:   svc.filesSkipped.Load(),
		LastSweep:      svc.lastScanResult,
	}

	if svc.isScanning {
		status.ScanProgress = &progress
	}

	if svc.initialScanError != nil {
		status.InitialScanError = svc.initialScanError.Error()
	}

	return status
}

// Scan performs a full library scan: discover every audio file, read
// its tags, resolve identity, write catalog records, then sweep the
// catalog against the set of observed paths.
func (svc *Service) Scan(ctx context.Context) error {
	if !svc.tryStartScanning() {
		logging.Info("Scan already in progress, skipping...")
		return nil
	}
	defer svc.finishScanning()

	metrics.ScannerIsRunning.Set(1)
	defer metrics.ScannerIsRunning.Set(0)
	metrics.ScannerRunsTotal.Inc()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-svc.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	startTime := time.Now()
	logging.Info("Starting library scan...")
	svc.resetCounters(startTime)

	svc.filesTotal.Store(svc.discovery.Count(ctx))
	svc.updateProgress(startTime)

	observed, err := svc.walkAndIndex(ctx, startTime)
	if err != nil {
		metrics.ScannerErrors.Inc()
		return err
	}

	result, err := svc.sweep.Run(ctx, observed)
	if err != nil {
		metrics.ScannerErrors.Inc()
		return err
	}

	svc.finalizeScan(startTime, result)
	return nil
}

// walkAndIndex walks the music directories and indexes every audio
// file, returning the set of paths observed. Resolution is sequential
// so that equal names converge on one id within the run.
func (svc *Service) walkAndIndex(ctx context.Context, startTime time.Time) (map[string]struct{}, error) {
	resolver := NewResolver(svc.catalog, svc.separators)
	writer := NewWriter(svc.catalog)
	observed := make(map[string]struct{})

	// Cover lookup is per directory, so cache it across the files
	// sharing a folder.
	coverByDir := make(map[string]string)

	err := svc.discovery.Walk(ctx, func(path string) error {
		observed[path] = struct{}{}

		md, err := svc.reader.Read(path)
		if err != nil {
			logging.Warn("Skipping unreadable file %s: %v", path, err)
			svc.filesSkipped.Add(1)
			metrics.ScannerFilesSkipped.Inc()
			return nil
		}

		res, err := resolver.Resolve(ctx, md)
		if err != nil {
			return err
		}

		dir := filepath.Dir(path)
		coverPath, ok := coverByDir[dir]
		if !ok {
			coverPath = svc.discovery.coverInDir(dir)
			coverByDir[dir] = coverPath
		}

		trackID := catalog.TrackIDForPath(path)
		if err := writer.WriteTrack(ctx, trackID, path, md, res, coverPath); err != nil {
			return err
		}

		svc.filesProcessed.Add(1)
		metrics.ScannerFilesProcessed.Inc()

		if count := svc.filesProcessed.Load(); count%1000 == 0 {
			logging.Info("Indexed %d/%d files...", count, svc.filesTotal.Load())
			svc.updateProgress(startTime)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return observed, nil
}

// tryStartScanning attempts to start a scan, returns false if one is
// already in progress.
func (svc *Service) tryStartScanning() bool {
	svc.scanMu.Lock()
	defer svc.scanMu.Unlock()

	if svc.isScanning {
		return false
	}
	svc.isScanning = true
	return true
}

// finishScanning marks the scan as complete.
func (svc *Service) finishScanning() {
	svc.scanMu.Lock()
	defer svc.scanMu.Unlock()

	svc.isScanning = false
	svc.initialScanComplete = true
}

// resetCounters resets the progress counters.
func (svc *Service) resetCounters(startTime time.Time) {
	svc.filesProcessed.Store(0)
	svc.filesSkipped.Store(0)
	svc.filesTotal.Store(0)
	svc.scanProgress.Store(ScanProgress{
		IsScanning: true,
		StartedAt:  startTime,
	})
}

// updateProgress publishes the current counters.
func (svc *Service) updateProgress(startTime time.Time) {
	svc.scanProgress.Store(ScanProgress{
		FilesProcessed: svc.filesProcessed.Load(),
		FilesSkipped:   svc.filesSkipped.Load(),
		FilesTotal:     svc.filesTotal.Load(),
		IsScanning:     true,
		StartedAt:      startTime,
	})
}

// finalizeScan records completion state and metrics.
func (svc *Service) finalizeScan(startTime time.Time, result *SweepResult) {
	duration := time.Since(startTime)

	svc.scanMu.Lock()
	svc.lastScanTime = time.Now()
	svc.lastScanResult = result
	svc.scanMu.Unlock()

	svc.scanProgress.Store(ScanProgress{
		FilesProcessed: svc.filesProcessed.Load(),
		FilesSkipped:   svc.filesSkipped.Load(),
		FilesTotal:     svc.filesTotal.Load(),
		IsScanning:     false,
	})

	metrics.ScannerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.ScannerLastRunDuration.Set(duration.Seconds())

	logging.Info("Scan complete: %d files indexed, %d skipped in %v",
		svc.filesProcessed.Load(), svc.filesSkipped.Load(), duration)

	if svc.onScanComplete != nil {
		svc.onScanComplete(result)
	}
}

func (svc *Service) periodicScan(ctx context.Context) {
	ticker := time.NewTicker(svc.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic rescan triggered")
			if err := svc.Scan(ctx); err != nil {
				logging.Error("periodic rescan failed: %v", err)
			}
		case <-svc.stopChan:
			return
		}
	}
}
