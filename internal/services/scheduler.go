package services

import (
	"context"
	"errors"
	"time"

	"auction-bidding/internal/clock"
	"auction-bidding/internal/domain"
	"auction-bidding/pkg/logger"
	"auction-bidding/pkg/utils"

	"github.com/robfig/cron/v3"
)

const defaultSchedulerSpec = "@every 1m"

// specParser accepts standard 5-field expressions, 6-field ones with a
// leading seconds field, and descriptors such as "@every 1m".
var specParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// AuctionTransitioner runs the scheduled lifecycle steps of an auction.
type AuctionTransitioner interface {
	StartAuction(ctx context.Context, auctionID int64) error
	EndAuction(ctx context.Context, auctionID int64) error
}

type CronAuctionScheduler struct {
	cron       *cron.Cron
	spec       string
	repo       domain.SchedulerRepository
	auctionMgr AuctionTransitioner
	clock      clock.Clock
	log        logger.Logger
}

func NewCronAuctionScheduler(repo domain.SchedulerRepository, auctionMgr AuctionTransitioner,
	spec string, log logger.Logger) *CronAuctionScheduler {
	if spec == "" {
		spec = defaultSchedulerSpec
	}
	return &CronAuctionScheduler{
		cron:       cron.New(cron.WithParser(specParser)),
		spec:       spec,
		repo:       repo,
		auctionMgr: auctionMgr,
		clock:      clock.NewSystem(),
		log:        log,
	}
}

func (s *CronAuctionScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting auction scheduler", "spec", s.spec)

	_, err := s.cron.AddFunc(s.spec, func() {
		s.ProcessPendingJobs(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for a running tick to finish.
func (s *CronAuctionScheduler) Stop() error {
	s.log.Info("Stopping auction scheduler")
	<-s.cron.Stop().Done()
	return nil
}

func (s *CronAuctionScheduler) ScheduleAuctionStart(ctx context.Context, auctionID int64, startTime time.Time) error {
	return s.createJob(ctx, auctionID, domain.JobStartAuction, startTime)
}

func (s *CronAuctionScheduler) ScheduleAuctionEnd(ctx context.Context, auctionID int64, endTime time.Time) error {
	return s.createJob(ctx, auctionID, domain.JobEndAuction, endTime)
}

func (s *CronAuctionScheduler) createJob(ctx context.Context, auctionID int64, jobType domain.JobType, runAt time.Time) error {
	job := &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		AuctionID: auctionID,
		JobType:   jobType,
		RunAt:     runAt,
		Status:    domain.JobPending,
		CreatedAt: s.clock.Now(),
	}

	return s.repo.CreateJob(ctx, job)
}

func (s *CronAuctionScheduler) CancelSchedule(ctx context.Context, auctionID int64) error {
	return s.repo.CancelJobsForAuction(ctx, auctionID)
}

// ProcessPendingJobs runs every due job once. Failed jobs stay pending for the next tick.
func (s *CronAuctionScheduler) ProcessPendingJobs(ctx context.Context) {
	jobs, err := s.repo.GetPendingJobs(ctx, s.clock.Now())
	if err != nil {
		s.log.Error("Failed to get pending jobs", "error", err)
		return
	}

	for _, job := range jobs {
		s.log.Info("Processing job", "job_id", job.ID, "type", job.JobType, "auction_id", job.AuctionID)

		var err error
		switch job.JobType {
		case domain.JobStartAuction:
			err = s.auctionMgr.StartAuction(ctx, job.AuctionID)
		case domain.JobEndAuction:
			err = s.auctionMgr.EndAuction(ctx, job.AuctionID)
		default:
			s.log.Warn("Unknown job type", "job_id", job.ID, "type", job.JobType)
			continue
		}

		if errors.Is(err, ErrNotLeader) {
			s.log.Debug("Not the leader, leaving jobs pending", "job_id", job.ID)
			return
		}
		if err != nil {
			s.log.Error("Failed to execute job", "job_id", job.ID, "error", err)
			continue
		}

		if err := s.repo.UpdateJobStatus(ctx, job.ID, domain.JobExecuted); err != nil {
			s.log.Error("Failed to mark job executed", "job_id", job.ID, "error", err)
		}
	}
}
