// Package scheduler drives the capture cycle of the sensor as an explicit
// state machine: Idle -> Capturing -> Processing -> Cooldown -> Idle.
package scheduler

import (
	"NetSentinel/internal/classifier"
	"NetSentinel/internal/config"
	"NetSentinel/internal/dispatcher"
	"NetSentinel/internal/engine/flowaggregator"
	"NetSentinel/internal/features"
	"NetSentinel/internal/metrics"
	"NetSentinel/internal/model"
	"NetSentinel/internal/pkg/clock"
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a phase of the capture cycle.
type State int

const (
	Idle State = iota
	Capturing
	Processing
	Cooldown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Capturing:
		return "Capturing"
	case Processing:
		return "Processing"
	case Cooldown:
		return "Cooldown"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RoundReport describes one completed or aborted round.
type RoundReport struct {
	ID           string
	Started      time.Time
	CapturePath  string
	Observations int
	Flows        int
	Suspicious   int
	Stats        classifier.RoundStats
	Dispatch     dispatcher.DispatchReport
	Err          error
	Cooldown     time.Duration
}

// Outcome classifies the report for logs and metrics.
func (r RoundReport) Outcome() string {
	var (
		captureErr  *model.CaptureError
		mismatchErr *model.FeatureMismatchError
		scoringErr  *model.ScoringError
	)
	switch {
	case r.Err == nil && r.Flows == 0:
		return "empty"
	case r.Err == nil:
		return "ok"
	case errors.As(r.Err, &captureErr):
		return "capture_error"
	case errors.As(r.Err, &mismatchErr):
		return "feature_mismatch"
	case errors.As(r.Err, &scoringErr):
		return "scoring_error"
	default:
		return "error"
	}
}

// Pipeline bundles the collaborators a round runs through.
type Pipeline struct {
	Capturer   model.Capturer
	Reader     model.ObservationReader
	Projector  *features.Projector
	Gate       *classifier.Gate
	Dispatcher *dispatcher.Dispatcher
	Sink       model.AlertSink
	Notifier   model.Notifier // optional
	Clock      clock.Clock
	Metrics    *metrics.Agent // optional
}

// Scheduler runs capture rounds one after another. Rounds never overlap, so
// per-round aggregation state is never shared.
type Scheduler struct {
	iface        string
	budget       int
	cooldown     time.Duration
	emptyBackoff time.Duration
	p            Pipeline

	mu           sync.Mutex
	state        State
	current      RoundReport
	last         RoundReport
	hasLast      bool
	lastNotified string
}

// New validates the pipeline and returns a scheduler in the Idle state.
func New(cfg config.AgentConfig, p Pipeline) (*Scheduler, error) {
	if p.Capturer == nil || p.Reader == nil || p.Projector == nil || p.Gate == nil || p.Dispatcher == nil || p.Sink == nil {
		return nil, fmt.Errorf("scheduler pipeline is incomplete")
	}
	if cfg.PacketBudget <= 0 {
		return nil, fmt.Errorf("packet budget must be positive, got %d", cfg.PacketBudget)
	}
	if p.Clock == nil {
		p.Clock = clock.Real{}
	}
	return &Scheduler{
		iface:        cfg.Interface,
		budget:       cfg.PacketBudget,
		cooldown:     cfg.RoundCooldownDuration(),
		emptyBackoff: cfg.EmptyRoundBackoffDuration(),
		p:            p,
		state:        Idle,
	}, nil
}

// State returns the current phase.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastReport returns the report of the most recently finished round.
func (s *Scheduler) LastReport() (RoundReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

// Run steps the state machine until ctx is cancelled. Round failures never
// stop it.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("Scheduler: starting capture cycle on %s (budget %d packets)", s.iface, s.budget)
	for {
		if err := s.Step(ctx); err != nil {
			log.Printf("Scheduler: stopped in state %s: %v", s.State(), err)
			return err
		}
	}
}

// Step performs the work of the current state and moves to the next one. It
// only returns an error when ctx is cancelled.
func (s *Scheduler) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch s.State() {
	case Idle:
		s.current = RoundReport{ID: uuid.NewString(), Started: s.p.Clock.Now()}
		s.setState(Capturing)

	case Capturing:
		path, err := s.p.Capturer.Capture(ctx, s.iface, s.budget)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.fail(&model.CaptureError{Iface: s.iface, Err: err})
			return nil
		}
		s.current.CapturePath = path
		s.setState(Processing)

	case Processing:
		if err := s.process(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.fail(err)
			return nil
		}
		s.enterCooldown()

	case Cooldown:
		d := s.current.Cooldown
		if err := s.p.Clock.Sleep(ctx, d); err != nil {
			return err
		}
		s.finishRound()
		s.setState(Idle)
	}
	return nil
}

func (s *Scheduler) process(ctx context.Context) error {
	r := &s.current

	observations, err := s.p.Reader.ReadObservations(r.CapturePath)
	if err != nil {
		return &model.CaptureError{Iface: s.iface, Err: err}
	}
	r.Observations = len(observations)

	records := flowaggregator.SortedRecords(flowaggregator.Aggregate(observations))
	r.Flows = len(records)
	log.Printf("Scheduler: round %s: %d packets, %d flows extracted", r.ID, r.Observations, r.Flows)
	if len(records) == 0 {
		log.Printf("Scheduler: round %s: no flows to analyze", r.ID)
		return nil
	}

	vectors := make([]model.FeatureVector, 0, len(records))
	for _, record := range records {
		v, err := s.p.Projector.Project(record)
		if err != nil {
			return err
		}
		vectors = append(vectors, v)
	}

	scored, stats, err := s.p.Gate.ClassifyRound(ctx, records, vectors)
	if err != nil {
		return err
	}
	r.Stats = stats
	s.p.Metrics.Scores(stats.Min, stats.Max, stats.Mean)

	r.Suspicious = len(classifier.Suspicious(scored))
	log.Printf("Scheduler: round %s: %d suspicious flows", r.ID, r.Suspicious)

	r.Dispatch = s.p.Dispatcher.Dispatch(ctx, scored, s.p.Sink)
	if r.Suspicious > 0 {
		log.Printf("Scheduler: round %s: %s", r.ID, r.Dispatch)
	}
	return nil
}

// fail records a round-level error and moves to Cooldown.
func (s *Scheduler) fail(err error) {
	s.current.Err = err
	log.Printf("Scheduler: round %s aborted: %v", s.current.ID, err)

	var mismatch *model.FeatureMismatchError
	if errors.As(err, &mismatch) {
		s.notifyOperator(mismatch)
	}
	s.enterCooldown()
}

func (s *Scheduler) enterCooldown() {
	r := &s.current
	if r.Err != nil || r.Flows == 0 {
		r.Cooldown = s.emptyBackoff
	} else {
		r.Cooldown = s.cooldown
	}
	s.p.Metrics.Round(r.Outcome(), s.p.Clock.Now().Sub(r.Started))
	s.p.Metrics.Flows(r.Flows, r.Suspicious)
	s.setState(Cooldown)
}

func (s *Scheduler) finishRound() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = s.current
	s.hasLast = true
}

func (s *Scheduler) setState(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = next
}

// notifyOperator sends one notification per distinct mismatch so a persistent
// misconfiguration does not flood the operator.
func (s *Scheduler) notifyOperator(err *model.FeatureMismatchError) {
	if s.p.Notifier == nil || s.lastNotified == err.Error() {
		return
	}
	s.lastNotified = err.Error()

	subject := fmt.Sprintf("[NetSentinel] feature schema mismatch on %s", s.iface)
	body := fmt.Sprintf("<p>The sensor on <b>%s</b> skipped round %s because the flow features do not match the classifier.</p><p>%s</p><p>Check classifier.features against the deployed model.</p>",
		html.EscapeString(s.iface), s.current.ID, html.EscapeString(err.Error()))
	if sendErr := s.p.Notifier.Send(subject, body); sendErr != nil {
		log.Printf("Scheduler: failed to notify operator: %v", sendErr)
	}
}
