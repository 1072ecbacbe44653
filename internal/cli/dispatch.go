package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/taxii/internal/dispatch"
	"github.com/roach88/taxii/internal/taxii"
)

// DispatchOptions holds flags for the dispatch command.
type DispatchOptions struct {
	*RootOptions
	Service string
	Account string
	Version string
}

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DispatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dispatch <envelope.json|->",
		Short: "Send one request envelope to a service",
		Long: `Send one request envelope to a service and print the reply.

The envelope is JSON with a "kind" and exactly one request body. Pass "-"
to read it from stdin. Any status other than SUCCESS or PENDING exits 1.

Example:
  echo '{"kind":"poll_request","poll":{"message_id":"m1","collection_name":"feed"}}' |
    taxii dispatch --service poll -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Service, "service", "", "target service id (required)")
	cmd.Flags().StringVar(&opts.Account, "account", "", "username the request is made as")
	cmd.Flags().StringVar(&opts.Version, "version", "1.1", "protocol version or message binding")
	cmd.MarkFlagRequired("service")

	return cmd
}

func runDispatch(opts *DispatchOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	raw, err := readInput(cmd, path)
	if err != nil {
		out.Error(ErrCodeInvalidInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read envelope", err)
	}
	var env taxii.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		out.Error(ErrCodeInvalidInput, fmt.Sprintf("invalid envelope JSON: %v", err), nil)
		return WrapExitError(ExitCommandError, "invalid envelope JSON", err)
	}

	rt, err := opts.newRuntime(cmd)
	if err != nil {
		out.Error(ErrCodeDatabase, err.Error(), nil)
		return err
	}
	defer rt.close()

	var account *taxii.Account
	if opts.Account != "" {
		account, err = rt.store.GetAccount(cmd.Context(), opts.Account)
		if errors.Is(err, taxii.ErrNotFound) {
			out.Error(ErrCodeNotFound, fmt.Sprintf("account %q not found", opts.Account), nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("account %q not found", opts.Account))
		}
		if err != nil {
			out.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load account", err)
		}
	}

	reply, err := rt.disp.Handle(cmd.Context(), dispatch.Request{
		ServiceID: opts.Service,
		Version:   opts.Version,
		Account:   account,
		Envelope:  env,
		Raw:       raw,
	})
	if err != nil {
		return WrapExitError(ExitFailure, "dispatch interrupted", err)
	}

	if opts.Format == "json" {
		if err := out.Success(reply); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), renderReply(reply))
	}

	if s := reply.Status; s != nil && s.Type != taxii.StatusSuccess && s.Type != taxii.StatusPending {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", s.Type, s.Message))
	}
	return nil
}

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// renderReply formats a reply for humans.
func renderReply(r *taxii.Reply) string {
	var b strings.Builder
	switch {
	case r.Poll != nil:
		p := r.Poll
		fmt.Fprintf(&b, "Poll response %s (in response to %s)\n", p.MessageID, p.InResponseTo)
		fmt.Fprintf(&b, "  collection: %s\n", p.CollectionName)
		fmt.Fprintf(&b, "  part: %d  more: %t\n", p.ResultPart, p.More)
		if p.ResultID != "" {
			fmt.Fprintf(&b, "  result id: %s\n", p.ResultID)
		}
		if p.RecordCount != nil {
			fmt.Fprintf(&b, "  record count: %d", p.RecordCount.Count)
			if p.RecordCount.Partial {
				b.WriteString(" (partial)")
			}
			b.WriteString("\n")
		}
		for _, blk := range p.Blocks {
			binding := blk.BindingID
			if blk.BindingSubtype != "" {
				binding += "/" + blk.BindingSubtype
			}
			fmt.Fprintf(&b, "  - %s %s %d bytes\n", blk.TimestampLabel.Format("2006-01-02T15:04:05Z07:00"), binding, len(blk.Content))
		}

	case r.Status != nil:
		s := r.Status
		fmt.Fprintf(&b, "Status %s", s.Type)
		if s.Message != "" {
			fmt.Fprintf(&b, ": %s", s.Message)
		}
		b.WriteString("\n")
		for _, k := range slices.Sorted(maps.Keys(s.Details)) {
			fmt.Fprintf(&b, "  %s: %s\n", k, strings.Join(s.Details[k], ", "))
		}

	case r.Subscription != nil:
		s := r.Subscription
		fmt.Fprintf(&b, "Subscriptions on %s\n", s.CollectionName)
		if s.Message != "" {
			fmt.Fprintf(&b, "  message: %s\n", s.Message)
		}
		for _, in := range s.Instances {
			fmt.Fprintf(&b, "  - %s %s\n", in.SubscriptionID, in.Status)
		}

	case r.CollectionInformation != nil:
		b.WriteString(renderCollections(r.CollectionInformation.Collections))
	}
	return b.String()
}

func renderCollections(cs []taxii.CollectionInformation) string {
	var b strings.Builder
	if len(cs) == 0 {
		b.WriteString("No collections\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Collections (%d):\n", len(cs))
	for _, c := range cs {
		state := "available"
		if !c.Available {
			state = "unavailable"
		}
		fmt.Fprintf(&b, "  - %s [%s, %s] volume %d\n", c.Name, c.Kind, state, c.Volume)
		if c.AcceptAllContent {
			b.WriteString("      content: any\n")
		} else if len(c.SupportedContent) > 0 {
			fmt.Fprintf(&b, "      content: %s\n", strings.Join(taxii.BindingIDs(c.SupportedContent), ", "))
		}
		for _, in := range c.PollInstances {
			fmt.Fprintf(&b, "      poll: %s\n", in.Address)
		}
		for _, in := range c.InboxInstances {
			fmt.Fprintf(&b, "      inbox: %s\n", in.Address)
		}
	}
	return b.String()
}
