package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/events"
	"github.com/pushit/marketplace/internal/models"
	"github.com/pushit/marketplace/internal/repositories"
	"go.uber.org/zap"
)

type JobStore interface {
	Accept(ctx context.Context, campaignID, influencerID uuid.UUID, payoutCurrency string, rates models.RateTable) (*models.Job, error)
	SubmitProof(ctx context.Context, jobID, influencerID uuid.UUID, link string) (*models.Job, error)
	Review(ctx context.Context, jobID, reviewerID uuid.UUID, decision string, notes *string) (*repositories.JobReview, error)
	Cancel(ctx context.Context, jobID, influencerID uuid.UUID) (*models.Job, error)
	GetWithCampaign(ctx context.Context, id uuid.UUID) (*models.JobWithCampaign, error)
	List(ctx context.Context, f repositories.JobFilter) ([]models.JobWithCampaign, error)
}

type EligibilityChecker interface {
	Check(ctx context.Context, influencerID uuid.UUID, c *models.Campaign) (models.Eligibility, *models.Candidate, error)
}

type JobService struct {
	store     JobStore
	campaigns CampaignGetter
	matcher   EligibilityChecker
	rates     RateProvider
	ledger    LedgerRecorder
	notify    Notifier
	publisher events.Publisher
	audit     AuditLogger
	log       *zap.Logger
}

func NewJobService(
	store JobStore,
	campaigns CampaignGetter,
	matcher EligibilityChecker,
	rates RateProvider,
	ledger LedgerRecorder,
	notifier Notifier,
	publisher events.Publisher,
	audit AuditLogger,
	log *zap.Logger,
) *JobService {
	return &JobService{
		store:     store,
		campaigns: campaigns,
		matcher:   matcher,
		rates:     rates,
		ledger:    ledger,
		notify:    notifier,
		publisher: publisher,
		audit:     audit,
		log:       log,
	}
}

// Apply accepts one slot of an active campaign for the influencer.
func (s *JobService) Apply(ctx context.Context, actor Actor, campaignID uuid.UUID) (*models.Job, error) {
	if actor.Role != models.RoleInfluencer {
		return nil, models.ErrForbidden
	}
	c, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CampaignStatusActive {
		return nil, fmt.Errorf("campaign is %s: %w", c.Status, models.ErrIneligible)
	}

	elig, cand, err := s.matcher.Check(ctx, actor.UserID, c)
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		return nil, &IneligibleError{Reasons: elig.Reasons}
	}

	rates, err := s.rates.Rates(ctx)
	if err != nil {
		return nil, err
	}
	job, err := s.store.Accept(ctx, c.ID, actor.UserID, cand.Currency, rates)
	if err != nil {
		return nil, err
	}

	notify(ctx, s.notify, s.log, actor.UserID, models.NotifyCampaignAssigned,
		"Campaign assigned",
		fmt.Sprintf("You joined %q. Payout: %s.", c.Name, formatMoney(job.PayoutCurrencyAmount, job.PayoutCurrency)),
		"/jobs/"+job.ID.String())
	notify(ctx, s.notify, s.log, c.BrandID, models.NotifyJobApplied,
		"New influencer",
		fmt.Sprintf("An influencer joined %q.", c.Name),
		"/campaigns/"+c.ID.String())
	s.jobChanged(ctx, job, actor)
	return job, nil
}

func validProofLink(link string) bool {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (s *JobService) SubmitProof(ctx context.Context, actor Actor, jobID uuid.UUID, link string) (*models.Job, error) {
	link = strings.TrimSpace(link)
	if !validProofLink(link) {
		return nil, models.NewValidationError("proof link must be an http(s) URL")
	}
	job, err := s.store.SubmitProof(ctx, jobID, actor.UserID, link)
	if err != nil {
		return nil, err
	}

	if jc, err := s.store.GetWithCampaign(ctx, jobID); err == nil {
		notify(ctx, s.notify, s.log, jc.BrandID, models.NotifySubmissionReceived,
			"Submission received",
			fmt.Sprintf("A video was submitted for %q.", jc.CampaignName),
			"/jobs/"+jobID.String())
	}
	s.jobChanged(ctx, job, actor)
	return job, nil
}

// Review records a brand or admin decision. Verifying pays the influencer.
func (s *JobService) Review(ctx context.Context, actor Actor, jobID uuid.UUID, decision string, notes string) (*models.Job, error) {
	if !models.IsValidReviewDecision(decision) {
		return nil, models.NewValidationError("decision must be verified, flagged or needs_reupload")
	}
	jc, err := s.store.GetWithCampaign(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && jc.BrandID != actor.UserID {
		return nil, models.ErrNotFound
	}

	var notesPtr *string
	if n := strings.TrimSpace(notes); n != "" {
		notesPtr = &n
	}
	res, err := s.store.Review(ctx, jobID, actor.UserID, decision, notesPtr)
	if err != nil {
		return nil, err
	}
	s.ledger.Record(ctx, res.Entry, actor)

	link := "/jobs/" + jobID.String()
	switch decision {
	case models.JobStatusVerified:
		notify(ctx, s.notify, s.log, jc.InfluencerID, models.NotifySubmissionVerified,
			"Submission verified", fmt.Sprintf("Your video for %q was approved.", jc.CampaignName), link)
		if res.Entry != nil {
			notify(ctx, s.notify, s.log, jc.InfluencerID, models.NotifyPayoutAvailable,
				"Payout available",
				fmt.Sprintf("%s was added to your wallet.", formatMoney(res.Entry.Amount, res.Entry.Currency)),
				"/wallet")
		}
	case models.JobStatusFlagged:
		notify(ctx, s.notify, s.log, jc.InfluencerID, models.NotifySubmissionFlagged,
			"Submission flagged", fmt.Sprintf("Your video for %q was flagged for review.", jc.CampaignName), link)
	case models.JobStatusNeedsReupload:
		notify(ctx, s.notify, s.log, jc.InfluencerID, models.NotifyNeedsReupload,
			"Re-upload requested", fmt.Sprintf("Please re-upload your video for %q.", jc.CampaignName), link)
	}

	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorUserID: actorPtr(actor),
		ActorType:   actor.auditType(),
		Action:      "job_" + decision,
		EntityType:  "job",
		EntityID:    &jobID,
		Meta:        map[string]any{"notes": notes},
	})
	s.jobChanged(ctx, res.Job, actor)
	return res.Job, nil
}

func (s *JobService) Cancel(ctx context.Context, actor Actor, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.store.Cancel(ctx, jobID, actor.UserID)
	if err != nil {
		return nil, err
	}
	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorUserID: actorPtr(actor),
		ActorType:   actor.auditType(),
		Action:      "job_cancelled",
		EntityType:  "job",
		EntityID:    &jobID,
	})
	s.jobChanged(ctx, job, actor)
	return job, nil
}

func (s *JobService) Get(ctx context.Context, actor Actor, jobID uuid.UUID) (*models.JobWithCampaign, error) {
	jc, err := s.store.GetWithCampaign(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && jc.InfluencerID != actor.UserID && jc.BrandID != actor.UserID {
		return nil, models.ErrNotFound
	}
	return jc, nil
}

// List scopes the filter to what the caller may see: influencers their
// own jobs, brands the jobs of one of their campaigns.
func (s *JobService) List(ctx context.Context, actor Actor, f repositories.JobFilter) ([]models.JobWithCampaign, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleInfluencer:
		f.InfluencerID = &actor.UserID
	case models.RoleBrand:
		if f.CampaignID == nil {
			return nil, models.NewValidationError("campaign_id is required")
		}
		c, err := s.campaigns.GetByID(ctx, *f.CampaignID)
		if err != nil {
			return nil, err
		}
		if c.BrandID != actor.UserID {
			return nil, models.ErrNotFound
		}
	default:
		return nil, models.ErrForbidden
	}
	return s.store.List(ctx, f)
}

func (s *JobService) jobChanged(ctx context.Context, job *models.Job, actor Actor) {
	if s.publisher == nil || job == nil {
		return
	}
	_ = s.publisher.Publish(ctx, events.StreamNotifications, events.Event{
		Type: events.EventJobStatusChanged,
		Payload: map[string]any{
			"user_id":     job.InfluencerID.String(),
			"job_id":      job.ID.String(),
			"campaign_id": job.CampaignID.String(),
			"status":      job.Status,
			"actor_role":  actor.Role,
		},
	})
}
