package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/pricedesk/internal/pricetables"
	"github.com/odyssey-erp/pricedesk/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &JobsCLI{client: client, inspector: asynq.NewInspector(opts)}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Reprice enqueues a category reprice and returns the task id.
func (c *JobsCLI) Reprice(ctx context.Context, req pricetables.RepriceRequest) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("jobs cli: client not configured")
	}
	return c.client.EnqueueCategoryReprice(ctx, req)
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

type repriceFlags struct {
	table      int64
	category   int64
	changeType string
	amount     string
	key        string
}

func newJobsCommand() *cobra.Command {
	var redisAddr string
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Enqueue and inspect background jobs",
	}
	cmd.PersistentFlags().StringVar(&redisAddr, "redis", "127.0.0.1:6379", "redis address of the job queue")

	var rf repriceFlags
	reprice := &cobra.Command{
		Use:   "reprice",
		Short: "Apply one change to every item of a category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := rf.request()
			if err != nil {
				return err
			}
			c, err := NewJobsCLI(redisAddr)
			if err != nil {
				return err
			}
			defer c.Close()
			id, err := c.Reprice(cmd.Context(), req)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s\n", id)
			return err
		},
	}
	reprice.Flags().Int64Var(&rf.table, "table", 0, "price table id")
	reprice.Flags().Int64Var(&rf.category, "category", 0, "product category id")
	reprice.Flags().StringVar(&rf.changeType, "type", "", "change type")
	reprice.Flags().StringVar(&rf.amount, "amount", "0", "change amount")
	reprice.Flags().StringVar(&rf.key, "key", "", "idempotency key")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print default queue counters as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := NewJobsCLI(redisAddr)
			if err != nil {
				return err
			}
			defer c.Close()
			s, err := c.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(s)
		},
	}

	cmd.AddCommand(reprice, stats)
	return cmd
}

func (f repriceFlags) request() (pricetables.RepriceRequest, error) {
	if f.table <= 0 || f.category <= 0 {
		return pricetables.RepriceRequest{}, errors.New("--table and --category must be positive")
	}
	desc, err := parseDescriptor(f.changeType, f.amount)
	if err != nil {
		return pricetables.RepriceRequest{}, err
	}
	return pricetables.RepriceRequest{
		PriceTableID:   f.table,
		CategoryID:     f.category,
		Descriptor:     desc,
		IdempotencyKey: f.key,
	}, nil
}
