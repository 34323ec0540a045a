package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/http/dto"
	"github.com/pushit/marketplace/internal/repositories"
	"github.com/pushit/marketplace/internal/services"
	"go.uber.org/zap"
)

type JobHandler struct {
	jobs *services.JobService
	log  *zap.Logger
}

func NewJobHandler(jobs *services.JobService, log *zap.Logger) *JobHandler {
	return &JobHandler{jobs: jobs, log: log}
}

// Apply accepts a job on the campaign in the path for the calling influencer.
func (h *JobHandler) Apply(c *fiber.Ctx) error {
	campaignID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	job, err := h.jobs.Apply(c.Context(), actorFrom(c), campaignID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, job)
}

func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	job, err := h.jobs.Get(c.Context(), actorFrom(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, job)
}

func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	f := repositories.JobFilter{
		Status: queryPtr(c, "status"),
		Limit:  limit,
		Offset: offset,
	}
	if v := c.Query("campaign_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return badRequest(c, "invalid campaign_id")
		}
		f.CampaignID = &id
	}
	if v := c.Params("id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return badRequest(c, "invalid id")
		}
		f.CampaignID = &id
	}

	jobs, err := h.jobs.List(c.Context(), actorFrom(c), f)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, jobs)
}

func (h *JobHandler) SubmitProof(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var req dto.SubmitProofRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.log, err)
	}
	job, err := h.jobs.SubmitProof(c.Context(), actorFrom(c), id, req.ProofLink)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, job)
}

func (h *JobHandler) Review(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var req dto.ReviewJobRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.log, err)
	}
	job, err := h.jobs.Review(c.Context(), actorFrom(c), id, req.Decision, req.Notes)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, job)
}

func (h *JobHandler) Cancel(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	job, err := h.jobs.Cancel(c.Context(), actorFrom(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, job)
}
