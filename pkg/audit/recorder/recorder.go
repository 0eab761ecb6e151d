package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"forseti-hq/forseti/pkg/audit"
	"forseti-hq/forseti/pkg/engine"
)

// Config contains configuration for the audit recorder.
type Config struct {
	// Enabled enables audit recording.
	Enabled bool

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout is the timeout for writing a record to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.AsyncBuffer <= 0 {
		c.AsyncBuffer = 1000
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return nil
}

// Recorder writes session audit records to storage asynchronously.
type Recorder struct {
	storage    audit.Storage
	config     *Config
	recordChan chan *audit.Record
	wg         sync.WaitGroup
	done       chan struct{}
	logger     *slog.Logger
}

// NewRecorder creates an audit recorder over the storage backend and
// starts its background writer.
func NewRecorder(storage audit.Storage, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	_ = config.Validate()

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *audit.Record, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     slog.Default().With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)
	return r
}

// Record captures a session result and enqueues it for async writing.
// It returns immediately; a full channel drops the record with an error
// after WriteTimeout rather than stalling the session's caller.
func (r *Recorder) Record(ctx context.Context, res *engine.Result) error {
	if !r.config.Enabled {
		return nil
	}

	rec := audit.NewRecord(res)

	select {
	case r.recordChan <- rec:
		r.logger.Debug("audit record enqueued",
			"record_id", rec.ID,
			"session_id", rec.SessionID,
		)
	case <-time.After(r.config.WriteTimeout):
		r.logger.Error("audit record channel full, dropping record",
			"record_id", rec.ID,
			"session_id", rec.SessionID,
			"channel_capacity", r.config.AsyncBuffer,
		)
		return audit.NewRecorderError(rec.ID, context.DeadlineExceeded)
	case <-r.done:
		r.logger.Warn("recorder shutting down, dropping record",
			"record_id", rec.ID,
			"session_id", rec.SessionID,
		)
		return audit.NewRecorderError(rec.ID, context.Canceled)
	case <-ctx.Done():
		return audit.NewRecorderError(rec.ID, ctx.Err())
	}

	return nil
}

// Close shuts the recorder down, draining the channel so accepted records
// reach storage.
func (r *Recorder) Close() error {
	r.logger.Info("shutting down audit recorder")

	close(r.done)
	r.wg.Wait()

	r.logger.Info("audit recorder shut down complete")
	return nil
}

// worker drains the record channel into storage.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.recordChan:
			r.writeRecord(rec)

		case <-r.done:
			r.logger.Info("draining audit channel before shutdown",
				"pending_count", len(r.recordChan),
			)
			for {
				select {
				case rec := <-r.recordChan:
					r.writeRecord(rec)
				default:
					r.logger.Info("audit channel drained")
					return
				}
			}
		}
	}
}

func (r *Recorder) writeRecord(rec *audit.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.storage.Store(ctx, rec); err != nil {
		r.logger.Error("failed to store audit record",
			"record_id", rec.ID,
			"session_id", rec.SessionID,
			"error", err,
		)
		return
	}

	r.logger.Debug("audit record stored",
		"record_id", rec.ID,
		"session_id", rec.SessionID,
		"write_duration", time.Since(start),
	)
}
