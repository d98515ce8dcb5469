package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tablebill/internal/clock"
	invoicedomain "github.com/smallbiznis/tablebill/internal/invoice/domain"
	obscontext "github.com/smallbiznis/tablebill/internal/observability/context"
	obsmetrics "github.com/smallbiznis/tablebill/internal/observability/metrics"
	"github.com/smallbiznis/tablebill/internal/ratelimit"
	restaurantdomain "github.com/smallbiznis/tablebill/internal/restaurant/domain"
	"github.com/smallbiznis/tablebill/internal/scheduler/guard"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobReminder   = "reminder"
	JobExpiration = "expiration"

	// both passes create renewal invoices, so they share one lock
	renewalLockKey = "tablebill:scheduler:renewal"
)

var (
	ErrInvalidConfig = errors.New("invalid_scheduler_config")
	ErrUnknownJob    = errors.New("unknown_job")
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	InvoiceSvc     invoicedomain.Service
	RestaurantRepo restaurantdomain.Repository
	Locker         *ratelimit.Locker `optional:"true"`
	Config         Config            `optional:"true"`
}

type Scheduler struct {
	db             *gorm.DB
	log            *zap.Logger
	cfg            Config
	loc            *time.Location
	genID          *snowflake.Node
	clock          clock.Clock
	invoiceSvc     invoicedomain.Service
	restaurantRepo restaurantdomain.Repository
	locker         *ratelimit.Locker
	metrics        *obsmetrics.SchedulerMetrics
}

// ItemResult is the outcome for one restaurant in a pass.
type ItemResult struct {
	RestaurantID snowflake.ID `json:"restaurant_id"`
	InvoiceID    snowflake.ID `json:"invoice_id,omitempty"`
	Result       string       `json:"result"`
	Error        string       `json:"error,omitempty"`
}

type BatchResult struct {
	Job      string       `json:"job"`
	RunID    string       `json:"run_id,omitempty"`
	Skipped  bool         `json:"skipped"`
	Selected int          `json:"selected"`
	Created  int          `json:"created"`
	Resent   int          `json:"resent"`
	Failed   int          `json:"failed"`
	Items    []ItemResult `json:"items"`
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.InvoiceSvc == nil || p.RestaurantRepo == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, cfg.Timezone, err)
	}
	return &Scheduler{
		db:             p.DB,
		log:            p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:            cfg,
		loc:            loc,
		genID:          p.GenID,
		clock:          p.Clock,
		invoiceSvc:     p.InvoiceSvc,
		restaurantRepo: p.RestaurantRepo,
		locker:         p.Locker,
		metrics:        obsmetrics.Scheduler(),
	}, nil
}

// Run triggers a pass by name.
func (s *Scheduler) Run(ctx context.Context, job string) (BatchResult, error) {
	switch job {
	case JobReminder:
		return s.RunReminderPass(ctx)
	case JobExpiration:
		return s.RunExpirationPass(ctx)
	default:
		return BatchResult{}, ErrUnknownJob
	}
}

// RunReminderPass bills subscriptions ending within the reminder window.
func (s *Scheduler) RunReminderPass(ctx context.Context) (BatchResult, error) {
	now := s.clock.Now()
	return s.runJob(ctx, JobReminder, now, now.Add(s.cfg.ReminderWindow))
}

// RunExpirationPass bills subscriptions ending today in the scheduler time zone.
func (s *Scheduler) RunExpirationPass(ctx context.Context) (BatchResult, error) {
	from, to := s.today()
	return s.runJob(ctx, JobExpiration, from, to)
}

func (s *Scheduler) today() (time.Time, time.Time) {
	local := s.clock.Now().In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

func (s *Scheduler) runJob(parent context.Context, job string, from, to time.Time) (BatchResult, error) {
	result := BatchResult{Job: job, Items: []ItemResult{}}

	if s.locker.Enabled() {
		lease, ok, err := s.locker.TryAcquire(parent, renewalLockKey, s.cfg.LockTTL)
		if err != nil {
			return result, fmt.Errorf("%s: acquire lock: %w", job, err)
		}
		if !ok {
			s.metrics.IncLockSkipped(job)
			s.log.Info("scheduler.job.skipped", zap.String("job", job), zap.String("reason", "lock_held"))
			result.Skipped = true
			return result, nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(parent), lease); err != nil {
				s.log.Warn("scheduler lock release failed", zap.String("job", job), zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()
	ctx, run := s.newJobRun(ctx, job)
	result.RunID = run.runID
	s.metrics.IncJobRun(job)

	restaurants, err := s.restaurantRepo.ListActiveEndingBetween(ctx, s.db, from.UTC(), to.UTC())
	if err != nil {
		s.metrics.IncJobError(job, err)
		return result, fmt.Errorf("%s: select restaurants: %w", job, err)
	}
	result.Selected = len(restaurants)
	s.logJobStart(ctx, run, result.Selected)

	items := make([]ItemResult, len(restaurants))
	p := pool.New().WithMaxGoroutines(s.cfg.Concurrency)
	for i, r := range restaurants {
		p.Go(func() {
			items[i] = s.process(ctx, job, r, from, to)
		})
	}
	p.Wait()

	var jobErr error
	for _, item := range items {
		switch item.Result {
		case obsmetrics.ItemResultCreated:
			result.Created++
		case obsmetrics.ItemResultResent:
			result.Resent++
		default:
			result.Failed++
			jobErr = errors.Join(jobErr, fmt.Errorf("restaurant %s: %s", item.RestaurantID, item.Error))
		}
		s.metrics.IncItem(job, item.Result)
	}
	result.Items = items

	s.metrics.ObserveJobDuration(job, s.clock.Now().Sub(run.startedAt))
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.metrics.IncJobTimeout(job)
		jobErr = errors.Join(jobErr, ctxErr)
	}
	if jobErr != nil {
		s.metrics.IncJobError(job, jobErr)
	}
	s.logJobFinish(ctx, run, result)

	return result, nil
}

// process reuses a pending renewal when one exists so repeated passes never
// stack invoices for the same restaurant.
func (s *Scheduler) process(ctx context.Context, job string, r restaurantdomain.Restaurant, from, to time.Time) ItemResult {
	item := ItemResult{RestaurantID: r.ID}
	fail := func(err error) ItemResult {
		s.logItemError(ctx, job, r.ID, err)
		item.Result = obsmetrics.ItemResultFailed
		item.Error = err.Error()
		return item
	}

	if err := guard.EnsureRenewalDue(r.IsActive, r.EndDate, from, to); err != nil {
		return fail(err)
	}

	existing, err := s.invoiceSvc.FindPendingRenewal(ctx, r.ID)
	if err != nil {
		return fail(err)
	}

	var inv invoicedomain.Invoice
	if existing != nil {
		inv = *existing
		item.Result = obsmetrics.ItemResultResent
	} else {
		view, err := s.invoiceSvc.CreateRenewalInvoice(ctx, invoicedomain.CreateTermRequest{
			RestaurantID: r.ID.String(),
			Months:       1,
		})
		if err != nil {
			return fail(err)
		}
		inv = view.Invoice
		item.Result = obsmetrics.ItemResultCreated
	}
	item.InvoiceID = inv.ID

	if err := s.invoiceSvc.Notify(ctx, inv); err != nil {
		s.logger(obscontext.WithRestaurantID(ctx, r.ID.String())).Warn("renewal notification failed",
			zap.String("job", job),
			zap.String("invoice_id", inv.ID.String()),
			zap.Error(err),
		)
	}
	return item
}
