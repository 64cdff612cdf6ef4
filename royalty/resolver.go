package royalty

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/royalty_backend/models"
)

// DirectoryStore is the read interface into the label/client/contract chain.
// The royalty pipeline never writes to it.
type DirectoryStore interface {
	LabelByID(ctx context.Context, id int) (*models.Label, error)
	// LabelByName returns (nil, nil) on a miss; the caller routes the row to
	// the unlinked bucket.
	LabelByName(ctx context.Context, name string, caseSensitive bool) (*models.Label, error)
	ClientByID(ctx context.Context, id int) (*models.Client, error)
	// DistributionContract returns (nil, nil) when the client has no contract
	// of the two distribution types.
	DistributionContract(ctx context.Context, clientID int) (*models.Contract, error)
}

// Resolution is a fully resolved row: label, owning client, and the eligible
// contract whose PPD drives the revenue calculation.
type Resolution struct {
	Label    *models.Label
	Client   *models.Client
	Contract *models.Contract
}

type Resolver struct {
	dir DirectoryStore
}

func NewResolver(dir DirectoryStore) *Resolver {
	return &Resolver{dir: dir}
}

// ResolveByName matches a label by exact name, case-sensitive or not per the
// distributor strategy. A miss returns ErrLabelNotFound, which is not a
// failure: the row goes to the unlinked bucket and processing of it stops.
func (r *Resolver) ResolveByName(ctx context.Context, labelName string, caseSensitive bool) (*Resolution, error) {
	label, err := r.dir.LabelByName(ctx, labelName, caseSensitive)
	if err != nil {
		return nil, err
	}
	if label == nil {
		return nil, ErrLabelNotFound
	}
	return r.resolveFromLabel(ctx, label)
}

// ResolveByLabelID is the relink path: the operator supplied a specific label
// identifier, so not-found is a hard error and the whole operation aborts.
func (r *Resolver) ResolveByLabelID(ctx context.Context, labelID int) (*Resolution, error) {
	label, err := r.dir.LabelByID(ctx, labelID)
	if err != nil {
		return nil, fmt.Errorf("label %d: %w", labelID, err)
	}
	return r.resolveFromLabel(ctx, label)
}

func (r *Resolver) resolveFromLabel(ctx context.Context, label *models.Label) (*Resolution, error) {
	client, err := r.dir.ClientByID(ctx, label.ClientId)
	if err != nil {
		return nil, fmt.Errorf("client %d for label %q: %w", label.ClientId, label.Name, err)
	}

	contract, err := r.dir.DistributionContract(ctx, client.ID)
	if err != nil {
		return nil, err
	}
	// A PPD of exactly zero is a valid rate; only a missing contract or a
	// NULL PPD disqualifies the client.
	if contract == nil || contract.PPD == nil {
		return nil, ErrNoValidContract
	}

	return &Resolution{Label: label, Client: client, Contract: contract}, nil
}
