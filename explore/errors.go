package explore

import (
	"errors"
	"fmt"
)

// ErrNoFilterEngine is returned by a filter match with no ad-hoc rules when
// the service was built without filter lists.
var ErrNoFilterEngine = errors.New("explore: no filter lists configured")

// ErrGraphNotLoaded reports a handle with no graph behind it.
type ErrGraphNotLoaded struct {
	Handle string
}

func (e *ErrGraphNotLoaded) Error() string {
	return fmt.Sprintf("explore: no graph loaded under handle %q", e.Handle)
}

// ErrBadID reports an id string that parses as neither a node id nor an
// edge id.
type ErrBadID struct {
	Value string
	Err   error
}

func (e *ErrBadID) Error() string {
	return fmt.Sprintf("explore: bad id %q: %v", e.Value, e.Err)
}

func (e *ErrBadID) Unwrap() error { return e.Err }

// ErrIDNotFound reports a well-formed id that matches nothing in the graph.
type ErrIDNotFound struct {
	ID string
}

func (e *ErrIDNotFound) Error() string {
	return fmt.Sprintf("explore: no node or edge with id %s in this graph", e.ID)
}
