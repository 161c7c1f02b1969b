package backup

import (
	"fmt"
	"strings"

	"github.com/erazemk/dustgatherer/internal/model"
)

// Action is what import does with one archive item.
type Action int

// Actions.
const (
	// ActionInsert stages the item for bulk insertion under a new id.
	ActionInsert Action = iota + 1
	// ActionSkip leaves the existing record untouched.
	ActionSkip
	// ActionReplace overwrites the existing record in place.
	ActionReplace
)

func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionSkip:
		return "skip"
	case ActionReplace:
		return "replace"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Strategy decides what happens to an archive item whose id already exists
// in the record store. The set of strategies is closed: the unexported
// method keeps other packages from adding one.
type Strategy interface {
	onConflict() Action
	String() string
}

type skipExisting struct{}

func (skipExisting) onConflict() Action { return ActionSkip }
func (skipExisting) String() string     { return "skip" }

type replaceExisting struct{}

func (replaceExisting) onConflict() Action { return ActionReplace }
func (replaceExisting) String() string     { return "replace" }

type importAsNew struct{}

func (importAsNew) onConflict() Action { return ActionInsert }
func (importAsNew) String() string     { return "new" }

// Conflict strategies.
var (
	// SkipExisting keeps local records and ignores their archived copies.
	SkipExisting Strategy = skipExisting{}
	// ReplaceExisting overwrites local records with their archived copies.
	ReplaceExisting Strategy = replaceExisting{}
	// ImportAsNew adds archived copies as new records next to local ones.
	ImportAsNew Strategy = importAsNew{}
)

// Strategies lists every strategy in display order.
var Strategies = []Strategy{SkipExisting, ReplaceExisting, ImportAsNew}

// ParseStrategy parses "skip", "replace" or "new". The upper-case names used
// by earlier releases are accepted too.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skip", "skip_existing":
		return SkipExisting, nil
	case "replace", "replace_existing":
		return ReplaceExisting, nil
	case "new", "import_as_new":
		return ImportAsNew, nil
	default:
		return nil, fmt.Errorf("unknown conflict strategy %q (want skip, replace or new)", s)
	}
}

// Resolve decides the action for one archive item given the local record
// with the same id, if any.
func Resolve(existing *model.Item, strategy Strategy) Action {
	if existing == nil {
		return ActionInsert
	}
	return strategy.onConflict()
}
