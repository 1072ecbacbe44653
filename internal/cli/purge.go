package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/taxii/internal/taxii"
)

// PurgeOptions holds flags for the purge command.
type PurgeOptions struct {
	*RootOptions
	Collection   string
	Begin        string
	End          string
	WithMessages bool
}

type purgeResult struct {
	Collection string `json:"collection"`
	Deleted    int64  `json:"deleted"`
}

func (r purgeResult) String() string {
	return fmt.Sprintf("Purged %d content blocks from %s", r.Deleted, r.Collection)
}

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PurgeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete content blocks from a collection",
		Long: `Delete content blocks from a collection by timestamp label.

--begin is exclusive and --end inclusive, both RFC 3339. Without either bound
every block in the collection is deleted. Blocks shared with other
collections are removed from those too.

Example:
  taxii purge --collection feed --end 2024-01-01T00:00:00Z --with-messages`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Collection, "collection", "", "collection name (required)")
	cmd.Flags().StringVar(&opts.Begin, "begin", "", "exclusive lower bound (RFC 3339)")
	cmd.Flags().StringVar(&opts.End, "end", "", "inclusive upper bound (RFC 3339)")
	cmd.Flags().BoolVar(&opts.WithMessages, "with-messages", false, "also delete the inbox messages that carried the blocks")
	cmd.MarkFlagRequired("collection")

	return cmd
}

func runPurge(opts *PurgeOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	window, err := parseWindow(opts.Begin, opts.End)
	if err != nil {
		out.Error(ErrCodeInvalidInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid time window", err)
	}

	st, err := opts.openStore()
	if err != nil {
		out.Error(ErrCodeDatabase, err.Error(), nil)
		return err
	}
	log := opts.logger(cmd)
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("error closing database", "error", err)
		}
	}()

	c, err := st.GetCollectionByName(cmd.Context(), opts.Collection)
	if errors.Is(err, taxii.ErrNotFound) {
		out.Error(ErrCodeNotFound, fmt.Sprintf("collection %q not found", opts.Collection), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("collection %q not found", opts.Collection))
	}
	if err != nil {
		out.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load collection", err)
	}

	n, err := st.DeleteContentBlocks(cmd.Context(), c.ID, window, opts.WithMessages)
	if err != nil {
		out.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitFailure, "purge failed", err)
	}
	log.Info("content purged", "collection", c.Name, "deleted", n, "with_messages", opts.WithMessages)

	return out.Success(purgeResult{Collection: c.Name, Deleted: n})
}

// parseWindow parses optional RFC 3339 bounds.
func parseWindow(begin, end string) (taxii.TimeWindow, error) {
	var w taxii.TimeWindow
	if begin != "" {
		t, err := time.Parse(time.RFC3339, begin)
		if err != nil {
			return w, fmt.Errorf("invalid --begin: %w", err)
		}
		w.Begin = &t
	}
	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return w, fmt.Errorf("invalid --end: %w", err)
		}
		w.End = &t
	}
	if w.Inverted() {
		return w, fmt.Errorf("--begin %s is after --end %s", begin, end)
	}
	return w, nil
}
