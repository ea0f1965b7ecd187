package marks

import (
	"fmt"
	"strconv"

	"github.com/dikkadev/pkgmark/pkg/catalog"
)

// Mark is the user's intent for a package
type Mark int

const (
	Unmarked Mark = iota
	MarkedForInstallation
	MarkedForReinstallation
	MarkedForUpdate
	MarkedForRemoval
)

var markNames = map[Mark]string{
	Unmarked:                "Unmarked",
	MarkedForInstallation:   "MarkedForInstallation",
	MarkedForReinstallation: "MarkedForReinstallation",
	MarkedForUpdate:         "MarkedForUpdate",
	MarkedForRemoval:        "MarkedForRemoval",
}

func (m Mark) String() string {
	if n, ok := markNames[m]; ok {
		return n
	}
	return "Mark(" + strconv.Itoa(int(m)) + ")"
}

// ParseMark parses the String form of a mark
func ParseMark(s string) (Mark, error) {
	for m, n := range markNames {
		if n == s {
			return m, nil
		}
	}
	return Unmarked, fmt.Errorf("unknown mark: %s", s)
}

// State is the effective mark of a package: the explicit mark, or the
// derived status when the package is unmarked.
type State struct {
	Mark   Mark
	Status catalog.Status
}

// IsUnmarked reports whether no explicit mark is set
func (s State) IsUnmarked() bool {
	return s.Mark == Unmarked
}

func (s State) String() string {
	if s.Mark != Unmarked {
		return s.Mark.String()
	}
	return s.Status.String()
}

// Action is a mark operation
type Action int

const (
	ActionInstall Action = iota
	ActionReinstall
	ActionUpdate
	ActionRemove
	ActionUnmark
)

var actionNames = map[Action]string{
	ActionInstall:   "install",
	ActionReinstall: "reinstall",
	ActionUpdate:    "update",
	ActionRemove:    "remove",
	ActionUnmark:    "unmark",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "Action(" + strconv.Itoa(int(a)) + ")"
}

// ParseAction parses the String form of an action
func ParseAction(s string) (Action, error) {
	for a, n := range actionNames {
		if n == s {
			return a, nil
		}
	}
	return ActionUnmark, fmt.Errorf("unknown action: %s", s)
}

// Capabilities tells a front end which operations are currently legal on a package
type Capabilities struct {
	Unmark    bool
	Install   bool
	Reinstall bool
	Update    bool
	Remove    bool
}
