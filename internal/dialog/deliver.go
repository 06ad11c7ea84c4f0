package dialog

import (
	"context"
	"fmt"

	"mediabot/internal/logging"
	"mediabot/internal/queue"
	"mediabot/internal/telegram"
)

// Deliver sends a finished job's outcome to its chat and marks the job
// delivered so a daemon restart never resends it. Completed jobs become one
// document per output; failed jobs become a short explanation.
func (c *Controller) Deliver(ctx context.Context, job *queue.Job) error {
	switch job.Status {
	case queue.StatusCompleted:
		if err := c.bot.SendChatAction(ctx, job.ChatID, "upload_document"); err != nil {
			c.logger.Warn("send chat action", logging.Int64(logging.FieldChatID, job.ChatID), logging.Error(err))
		}
		caption := fmt.Sprintf("Job #%d: %s", job.ID, job.Summary())
		for _, path := range job.OutputPaths {
			if _, err := c.bot.SendDocument(ctx, job.ChatID, path, caption); err != nil {
				return fmt.Errorf("send job %d output %s: %w", job.ID, path, err)
			}
		}
	case queue.StatusFailed:
		text := fmt.Sprintf("Job #%d (%s) failed: %s", job.ID, job.Summary(), job.ErrorMessage)
		if job.ErrorMessage == "" {
			text = fmt.Sprintf("Job #%d (%s) failed.", job.ID, job.Summary())
		}
		if _, err := c.bot.SendMessage(ctx, telegram.SendMessageRequest{ChatID: job.ChatID, Text: text}); err != nil {
			return fmt.Errorf("send job %d failure notice: %w", job.ID, err)
		}
	default:
		return fmt.Errorf("job %d is %s, nothing to deliver", job.ID, job.Status)
	}

	if err := c.jobs.MarkDelivered(ctx, job.ID); err != nil {
		return fmt.Errorf("mark job %d delivered: %w", job.ID, err)
	}
	c.logger.Info("job outcome delivered",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int64(logging.FieldChatID, job.ChatID),
		logging.String("status", string(job.Status)))
	return nil
}

// DeliverBacklog sends outcomes for jobs that finished while the bot was
// down. Called once at startup.
func (c *Controller) DeliverBacklog(ctx context.Context) error {
	pending, err := c.jobs.Undelivered(ctx)
	if err != nil {
		return fmt.Errorf("list undelivered jobs: %w", err)
	}
	for _, job := range pending {
		if err := c.Deliver(ctx, job); err != nil {
			c.logger.Error("deliver backlog job", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
		}
	}
	return nil
}
