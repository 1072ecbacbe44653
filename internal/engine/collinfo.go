package engine

import (
	"context"
	"fmt"

	"github.com/roach88/taxii/internal/taxii"
)

// CollectionInformation lists the available collections of the service
// together with the service instances attached to each. With an account
// present, only collections it can read are listed.
func (e *Engine) CollectionInformation(ctx context.Context, rc Request, req taxii.CollectionInformationRequest) (*taxii.CollectionInformationResponse, error) {
	all, err := e.repo.ListCollections(ctx, rc.Service.ID)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	infos := []taxii.CollectionInformation{}
	for _, c := range all {
		if !c.Available {
			continue
		}
		if rc.Account != nil && !rc.Account.CanRead(c.Name) {
			continue
		}
		info := taxii.CollectionInformation{
			Name:             c.Name,
			Kind:             c.Kind,
			Description:      c.Description,
			Available:        c.Available,
			Volume:           c.Volume,
			AcceptAllContent: c.AcceptAllContent,
			SupportedContent: c.SupportedContent,
		}
		if info.PollInstances, err = e.repo.ServiceInstances(ctx, c.ID, taxii.ServicePoll); err != nil {
			return nil, fmt.Errorf("poll instances for %s: %w", c.Name, err)
		}
		if info.InboxInstances, err = e.repo.ServiceInstances(ctx, c.ID, taxii.ServiceInbox); err != nil {
			return nil, fmt.Errorf("inbox instances for %s: %w", c.Name, err)
		}
		if info.SubscriptionInstances, err = e.repo.ServiceInstances(ctx, c.ID, rc.Version.ManagementServiceType()); err != nil {
			return nil, fmt.Errorf("subscription instances for %s: %w", c.Name, err)
		}
		infos = append(infos, info)
	}

	return &taxii.CollectionInformationResponse{
		MessageID:    e.NewMessageID(),
		InResponseTo: req.MessageID,
		Collections:  infos,
	}, nil
}
