package marks

import (
	"errors"
	"fmt"

	"github.com/dikkadev/pkgmark/pkg/catalog"
)

var (
	// ErrIllegalTransition is returned when a mark request breaks the marking
	// rules. Nothing was changed.
	ErrIllegalTransition = errors.New("illegal mark transition")
	// ErrDeclined is returned when the confirmation gate rejected the closure
	ErrDeclined = errors.New("changes declined")
	// ErrUnknownPackage is returned for names that are not in the working set
	ErrUnknownPackage    = errors.New("unknown package")
	ErrStaleProposal     = errors.New("package set changed since the proposal was made")
	ErrRefreshInProgress = errors.New("refresh already in progress")
)

func illegal(p *catalog.Package, m Mark) error {
	return fmt.Errorf("%w: cannot set %s on %s", ErrIllegalTransition, m, p)
}

func closureFailed(err error) error {
	return fmt.Errorf("failed to compute closure: %w", err)
}
