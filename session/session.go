// Package session runs one print job end to end: acquire the printer,
// compose the receipt, encode it and stream it.
package session

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nixxel-company-limited/booth-printer/models"
	"github.com/nixxel-company-limited/booth-printer/printer"
	"github.com/nixxel-company-limited/booth-printer/raster"
)

// FontSettleDelay is the pause before composing that lets fonts finish
// loading on slow devices.
const FontSettleDelay = 160 * time.Millisecond

// ErrBusy is returned while another job is printing.
var ErrBusy = errors.New("another print job is in progress")

// State is a step of the print state machine.
type State int

const (
	Idle State = iota
	AcquiringConnection
	Composing
	Encoding
	Transmitting
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AcquiringConnection:
		return "acquiring connection"
	case Composing:
		return "composing"
	case Encoding:
		return "encoding"
	case Transmitting:
		return "transmitting"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Transport is the printer side of a session.
type Transport interface {
	Acquire(ctx context.Context) (*printer.DeviceConnection, error)
	Write(ctx context.Context, payload []byte) error
	Invalidate(cause error)
}

// Composer renders a job to a bitmap.
type Composer interface {
	Compose(job models.PrintJob) (image.Image, error)
}

// Translator localizes one piece of text.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Options configures a Session.
type Options struct {
	// Translator is optional; nil prints the text as stored.
	Translator Translator
	// FontSettleDelay precedes composing. Zero disables it.
	FontSettleDelay time.Duration
	// Encoder's zero value uses raster.Threshold.
	Encoder raster.Encoder
	// OnState observes every transition, including Failed.
	OnState func(jobID string, state State)
}

// DefaultOptions returns the production settings
func DefaultOptions() Options {
	return Options{
		FontSettleDelay: FontSettleDelay,
		Encoder:         raster.Default,
	}
}

// Result describes a completed print.
type Result struct {
	JobID    string        `json:"jobId"`
	Device   string        `json:"device"`
	Records  int           `json:"records"`
	Bytes    int           `json:"bytes"`
	Duration time.Duration `json:"duration"`
}

// Session prints jobs one at a time.
type Session struct {
	transport Transport
	composer  Composer
	opts      Options
	logger    *zap.Logger
	sleep     func(time.Duration)
	mu        sync.Mutex
}

// New creates a session with a production logger.
func New(transport Transport, composer Composer, opts Options) *Session {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	return NewWithLogger(transport, composer, opts, logger)
}

// NewWithLogger creates a session with a custom logger.
func NewWithLogger(transport Transport, composer Composer, opts Options, logger *zap.Logger) *Session {
	return &Session{
		transport: transport,
		composer:  composer,
		opts:      opts,
		logger:    logger.Named("session"),
		sleep:     time.Sleep,
	}
}

// Print runs job through the state machine. Nothing is retried; a transport
// failure drops the shared connection so the next job rediscovers.
//
// ctx bounds acquisition and translation only. Once a printer is held the
// job runs to Done or Failed, so a caller that goes away between composing
// and streaming neither aborts the job nor tears down a healthy link.
func (s *Session) Print(ctx context.Context, job models.PrintJob) (Result, error) {
	res := Result{JobID: uuid.NewString()}
	log := s.logger.With(zap.String("job", res.JobID), zap.Stringer("mode", job.Mode))

	if !s.mu.TryLock() {
		return res, &Error{Kind: KindBusy, Stage: Idle, JobID: res.JobID, Err: ErrBusy}
	}
	defer s.mu.Unlock()

	start := time.Now()
	state := Idle
	enter := func(next State) {
		state = next
		log.Debug("state", zap.Stringer("state", next))
		if s.opts.OnState != nil {
			s.opts.OnState(res.JobID, next)
		}
	}
	fail := func(kind Kind, err error) (Result, error) {
		stage := state
		enter(Failed)
		log.Warn("print failed", zap.Stringer("stage", stage), zap.Stringer("kind", kind), zap.Error(err))
		return res, &Error{Kind: kind, Stage: stage, JobID: res.JobID, Err: err}
	}

	enter(Idle)
	if err := job.Validate(); err != nil {
		return fail(KindInvalidJob, err)
	}

	enter(AcquiringConnection)
	conn, err := s.transport.Acquire(ctx)
	if err != nil {
		return fail(KindNoDevice, err)
	}
	if dev := conn.Device(); dev != nil {
		res.Device = dev.Name()
		if res.Device == "" {
			res.Device = dev.ID()
		}
	}

	// streaming outlives the caller; translation still honours ctx and keeps
	// the stored text when it is cancelled
	sendCtx := context.WithoutCancel(ctx)

	enter(Composing)
	job = s.translate(ctx, job, log)
	if s.opts.FontSettleDelay > 0 {
		s.sleep(s.opts.FontSettleDelay)
	}
	img, err := s.composer.Compose(job)
	if err != nil {
		return fail(KindComposerFailure, err)
	}

	enter(Encoding)
	payload, err := s.opts.Encoder.Payload(img)
	if err != nil {
		return fail(KindComposerFailure, err)
	}

	enter(Transmitting)
	if err := s.transport.Write(sendCtx, payload); err != nil {
		if errors.Is(err, printer.ErrTransport) {
			s.transport.Invalidate(err)
		}
		return fail(KindTransportFailure, err)
	}

	res.Records = len(job.Records())
	res.Bytes = len(payload)
	res.Duration = time.Since(start)
	enter(Done)
	log.Info("printed", zap.String("device", res.Device), zap.Int("bytes", res.Bytes), zap.Duration("took", res.Duration))
	return res, nil
}
