package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/taxii/internal/dispatch"
	"github.com/roach88/taxii/internal/taxii"
)

// CollectionsOptions holds flags for the collections command.
type CollectionsOptions struct {
	*RootOptions
	Service string
	Account string
}

// NewCollectionsCommand creates the collections command.
func NewCollectionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CollectionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List the collections a management service advertises",
		Long: `List the collections a collection management service advertises,
as a collection information request would see them.

Example:
  taxii collections --service mgmt --account alice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollections(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Service, "service", "", "collection management service id (required)")
	cmd.Flags().StringVar(&opts.Account, "account", "", "username the listing is made as")
	cmd.MarkFlagRequired("service")

	return cmd
}

func runCollections(opts *CollectionsOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	rt, err := opts.newRuntime(cmd)
	if err != nil {
		out.Error(ErrCodeDatabase, err.Error(), nil)
		return err
	}
	defer rt.close()

	var account *taxii.Account
	if opts.Account != "" {
		if account, err = rt.store.GetAccount(cmd.Context(), opts.Account); err != nil {
			out.Error(ErrCodeNotFound, fmt.Sprintf("account %q: %v", opts.Account, err), nil)
			return WrapExitError(ExitCommandError, "failed to load account", err)
		}
	}

	msgID := opts.Service + "-collections"
	reply, err := rt.disp.Handle(cmd.Context(), dispatch.Request{
		ServiceID: opts.Service,
		Version:   "1.1",
		Account:   account,
		Envelope: taxii.Envelope{
			Kind:                  taxii.MessageCollectionInformationRequest,
			CollectionInformation: &taxii.CollectionInformationRequest{MessageID: msgID},
		},
	})
	if err != nil {
		return WrapExitError(ExitFailure, "request interrupted", err)
	}

	if s := reply.Status; s != nil {
		out.Error(ErrCodeStatus, fmt.Sprintf("%s: %s", s.Type, s.Message), s.Details)
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", s.Type, s.Message))
	}

	cs := reply.CollectionInformation.Collections
	if opts.Format == "json" {
		return out.Success(cs)
	}
	fmt.Fprint(cmd.OutOrStdout(), renderCollections(cs))
	return nil
}
