package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mediabot/internal/api"
	"mediabot/internal/ipc"
	"mediabot/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				stats, err := fetchQueueStats(cmd.Context(), client, store)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable([]column{{Title: "Status"}, {Title: "Count", Numeric: true}}, rows)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				jobs, err := fetchQueueJobs(cmd.Context(), client, store, listStatuses)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"jobs": jobs})
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]column{
						{Title: "ID", Numeric: true},
						{Title: "Chat", Numeric: true},
						{Title: "Media"},
						{Title: "Operation"},
						{Title: "Status"},
						{Title: "Progress", Numeric: true},
						{Title: "Created"},
					},
					buildQueueListRows(jobs),
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <jobID>",
		Short: "Show a single job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				job, err := describeQueueJob(cmd.Context(), client, store, id)
				if err != nil {
					return err
				}
				if job == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %d not found\n", id)
					return nil
				}
				if ctx.jsonMode() {
					return writeJSON(cmd.OutOrStdout(), job)
				}
				printJobDetail(cmd, *job)
				return nil
			})
		},
	}
}

func printJobDetail(cmd *cobra.Command, job api.QueueJob) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %d\n", job.ID)
	fmt.Fprintf(out, "  Chat:      %d (user %d)\n", job.ChatID, job.UserID)
	fmt.Fprintf(out, "  Media:     %s\n", job.MediaKind)
	fmt.Fprintf(out, "  Operation: %s\n", job.Operation)
	fmt.Fprintf(out, "  Status:    %s\n", formatStatusLabel(job.Status))
	fmt.Fprintf(out, "  Progress:  %.0f%%", job.ProgressPercent)
	if strings.TrimSpace(job.ProgressMessage) != "" {
		fmt.Fprintf(out, " (%s)", job.ProgressMessage)
	}
	fmt.Fprintln(out)
	if len(job.InputPaths) > 0 {
		fmt.Fprintf(out, "  Inputs:    %s\n", strings.Join(job.InputPaths, ", "))
	}
	if len(job.OutputPaths) > 0 {
		fmt.Fprintf(out, "  Outputs:   %s\n", strings.Join(job.OutputPaths, ", "))
	}
	if strings.TrimSpace(job.ErrorMessage) != "" {
		fmt.Fprintf(out, "  Error:     %s\n", job.ErrorMessage)
	}
	fmt.Fprintf(out, "  Delivered: %s\n", yesNo(job.Delivered))
	if job.CreatedAt != "" {
		fmt.Fprintf(out, "  Created:   %s\n", formatDisplayTime(job.CreatedAt))
	}
	if job.StartedAt != "" {
		fmt.Fprintf(out, "  Started:   %s\n", formatDisplayTime(job.StartedAt))
	}
	if job.FinishedAt != "" {
		fmt.Fprintf(out, "  Finished:  %s\n", formatDisplayTime(job.FinishedAt))
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return errors.New("specify only one of --completed or --failed")
			}
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()
				var removed int64
				var err error
				switch {
				case clearCompleted:
					if client != nil {
						var resp *ipc.QueueClearCompletedResponse
						resp, err = client.QueueClearCompleted()
						if resp != nil {
							removed = resp.Removed
						}
					} else {
						removed, err = store.ClearCompleted(cmd.Context())
					}
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d completed jobs\n", removed)
				case clearFailed:
					if client != nil {
						var resp *ipc.QueueClearFailedResponse
						resp, err = client.QueueClearFailed()
						if resp != nil {
							removed = resp.Removed
						}
					} else {
						removed, err = store.ClearFailed(cmd.Context())
					}
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d failed jobs\n", removed)
				default:
					if client != nil {
						var resp *ipc.QueueClearResponse
						resp, err = client.QueueClear()
						if resp != nil {
							removed = resp.Removed
						}
					} else {
						removed, err = store.Clear(cmd.Context())
					}
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d queue jobs\n", removed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only completed jobs")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed jobs")
	return cmd
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Return in-flight jobs to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var updated int64
				var err error
				if client != nil {
					var resp *ipc.QueueResetResponse
					resp, err = client.QueueReset()
					if resp != nil {
						updated = resp.Updated
					}
				} else {
					updated, err = store.ResetStuckRunning(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d jobs\n", updated)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [jobID...]",
		Short: "Retry failed jobs",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}

			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()
				if len(ids) == 0 {
					var updated int64
					var err error
					if client != nil {
						var resp *ipc.QueueRetryResponse
						resp, err = client.QueueRetry(nil)
						if resp != nil {
							updated = resp.Updated
						}
					} else {
						updated, err = store.RetryFailed(cmd.Context())
					}
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Retried %d failed jobs\n", updated)
					return nil
				}

				for _, id := range ids {
					job, err := describeQueueJob(cmd.Context(), client, store, id)
					if err != nil {
						return err
					}
					if job == nil {
						fmt.Fprintf(out, "Job %d not found\n", id)
						continue
					}
					if !statusIsRetryable(job.Status) {
						fmt.Fprintf(out, "Job %d is not in failed state\n", id)
						continue
					}
					var updated int64
					if client != nil {
						resp, retryErr := client.QueueRetry([]int64{id})
						if retryErr != nil {
							return retryErr
						}
						if resp != nil {
							updated = resp.Updated
						}
					} else {
						updated, err = store.RetryFailed(cmd.Context(), id)
						if err != nil {
							return err
						}
					}
					if updated > 0 {
						fmt.Fprintf(out, "Job %d reset for retry\n", id)
					} else {
						fmt.Fprintf(out, "Job %d is not in failed state\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <jobID...>",
		Short: "Remove specific jobs by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}

			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					var removed int64
					var err error
					if client != nil {
						var resp *ipc.QueueRemoveResponse
						resp, err = client.QueueRemove([]int64{id})
						if resp != nil {
							removed = resp.Removed
						}
					} else {
						removed, err = store.Remove(cmd.Context(), id)
					}
					if err != nil {
						return err
					}
					if removed > 0 {
						fmt.Fprintf(out, "Job %d removed\n", id)
					} else {
						fmt.Fprintf(out, "Job %d not found\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health (schema, integrity, columns)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				resp, err := fetchDatabaseHealth(cmd.Context(), client, store)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd.OutOrStdout(), resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", resp.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(resp.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(resp.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %s\n", resp.SchemaVersion)
				fmt.Fprintf(out, "jobs table present: %s\n", yesNo(resp.TableExists))
				if len(resp.ColumnsPresent) > 0 {
					cols := append([]string(nil), resp.ColumnsPresent...)
					sort.Strings(cols)
					fmt.Fprintf(out, "Columns: %s\n", strings.Join(cols, ", "))
				}
				if len(resp.MissingColumns) > 0 {
					missing := append([]string(nil), resp.MissingColumns...)
					sort.Strings(missing)
					fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(missing, ", "))
				} else {
					fmt.Fprintln(out, "Missing columns: none")
				}
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(resp.IntegrityCheck))
				fmt.Fprintf(out, "Total jobs: %d\n", resp.TotalJobs)
				if resp.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", resp.Error)
				}
				return nil
			})
		},
	}
}

// --- shared IPC-or-store fetch helpers ---

func fetchQueueStats(ctx context.Context, client *ipc.Client, store *queue.Store) (api.QueueStats, error) {
	if client != nil {
		resp, err := client.Status()
		if err != nil {
			return api.QueueStats{}, err
		}
		return resp.Status.QueueStats, nil
	}
	health, err := store.Health(ctx)
	if err != nil {
		return api.QueueStats{}, err
	}
	return api.FromHealth(health), nil
}

func fetchQueueJobs(ctx context.Context, client *ipc.Client, store *queue.Store, statuses []string) ([]api.QueueJob, error) {
	if client != nil {
		resp, err := client.QueueList(statuses)
		if err != nil {
			return nil, err
		}
		return resp.Jobs, nil
	}
	filters := make([]queue.Status, 0, len(statuses))
	for _, value := range statuses {
		parsed, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		filters = append(filters, parsed)
	}
	jobs, err := store.List(ctx, filters...)
	if err != nil {
		return nil, err
	}
	return api.FromJobs(jobs), nil
}

func describeQueueJob(ctx context.Context, client *ipc.Client, store *queue.Store, id int64) (*api.QueueJob, error) {
	if client != nil {
		resp, err := client.QueueDescribe(id)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "not found") {
				return nil, nil
			}
			return nil, err
		}
		if resp == nil {
			return nil, nil
		}
		job := resp.Job
		return &job, nil
	}
	job, err := store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	converted := api.FromJob(job)
	return &converted, nil
}

func fetchDatabaseHealth(ctx context.Context, client *ipc.Client, store *queue.Store) (ipc.DatabaseHealthResponse, error) {
	if client != nil {
		resp, err := client.DatabaseHealth()
		if err != nil {
			return ipc.DatabaseHealthResponse{}, err
		}
		if resp == nil {
			return ipc.DatabaseHealthResponse{}, errors.New("missing database health response")
		}
		return *resp, nil
	}
	health, err := store.CheckHealth(ctx)
	if err != nil {
		return ipc.DatabaseHealthResponse{}, err
	}
	return ipc.DatabaseHealthResponse{
		DBPath:           health.DBPath,
		DatabaseExists:   health.DatabaseExists,
		DatabaseReadable: health.DatabaseReadable,
		SchemaVersion:    health.SchemaVersion,
		TableExists:      health.TableExists,
		ColumnsPresent:   health.ColumnsPresent,
		MissingColumns:   health.MissingColumns,
		IntegrityCheck:   health.IntegrityCheck,
		TotalJobs:        health.TotalJobs,
		Error:            health.Error,
	}, nil
}

func statusIsRetryable(value string) bool {
	status, ok := queue.ParseStatus(value)
	return ok && status == queue.StatusFailed
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid job id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
