package marks

import (
	"context"

	"github.com/dikkadev/pkgmark/pkg/catalog"
)

// Proposal is a computed mark operation: the target and the additional
// packages that must change with it.
type Proposal struct {
	Action Action
	Target *catalog.Package

	Install []*catalog.Package
	Update  []*catalog.Package
	Remove  []*catalog.Package

	generation uint64
	revision   uint64
	targetMark Mark
}

// Empty reports whether the operation touches no package besides the target
func (p *Proposal) Empty() bool {
	return len(p.Install) == 0 && len(p.Update) == 0 && len(p.Remove) == 0
}

// Len returns the number of additional packages
func (p *Proposal) Len() int {
	return len(p.Install) + len(p.Update) + len(p.Remove)
}

// Gate asks whether a proposal with additional changes may be committed
type Gate interface {
	Confirm(ctx context.Context, p *Proposal) (bool, error)
}

// GateFunc adapts a function to Gate
type GateFunc func(ctx context.Context, p *Proposal) (bool, error)

// Confirm calls f
func (f GateFunc) Confirm(ctx context.Context, p *Proposal) (bool, error) {
	return f(ctx, p)
}

// AcceptAll confirms every proposal
var AcceptAll Gate = GateFunc(func(context.Context, *Proposal) (bool, error) {
	return true, nil
})

// DeclineAll rejects every proposal
var DeclineAll Gate = GateFunc(func(context.Context, *Proposal) (bool, error) {
	return false, nil
})
