package graphml

import (
	"fmt"
	"strings"
)

// ErrUnexpectedElement reports an XML element that has no place in its
// enclosing context.
type ErrUnexpectedElement struct {
	Element string
	Context string
}

func (e *ErrUnexpectedElement) Error() string {
	return fmt.Sprintf("graphml: unexpected <%s> element in <%s>", e.Element, e.Context)
}

// ErrUnexpectedAttr reports an XML attribute the format does not define.
type ErrUnexpectedAttr struct {
	Attr    string
	Element string
}

func (e *ErrUnexpectedAttr) Error() string {
	return fmt.Sprintf("graphml: unexpected attribute %q on <%s>", e.Attr, e.Element)
}

// ErrMissingAttr reports a required XML attribute that is absent.
type ErrMissingAttr struct {
	Attr    string
	Element string
}

func (e *ErrMissingAttr) Error() string {
	return fmt.Sprintf("graphml: missing %q attribute on <%s>", e.Attr, e.Element)
}

// ErrMissingKey reports a data attribute referenced by name that no <key>
// element declared for the item class.
type ErrMissingKey struct {
	Name string
	For  string
}

func (e *ErrMissingKey) Error() string {
	return fmt.Sprintf("graphml: no key declared for %s attribute %q", e.For, e.Name)
}

// ErrMissingData reports a required data attribute that an item does not
// carry.
type ErrMissingData struct {
	Attr string
	Item string
}

func (e *ErrMissingData) Error() string {
	return fmt.Sprintf("graphml: attribute %q not present on %s", e.Attr, e.Item)
}

// ErrBadValue reports an attribute value that does not parse as its declared
// shape.
type ErrBadValue struct {
	Attr  string
	Value string
	Cause error
}

func (e *ErrBadValue) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("graphml: bad %s value %q", e.Attr, e.Value)
	}
	return fmt.Sprintf("graphml: bad %s value %q: %v", e.Attr, e.Value, e.Cause)
}

func (e *ErrBadValue) Unwrap() error { return e.Cause }

// ErrIDMismatch reports an item whose id data attribute contradicts its id
// XML attribute.
type ErrIDMismatch struct {
	Item string
	Data string
}

func (e *ErrIDMismatch) Error() string {
	return fmt.Sprintf("graphml: %s does not match data id %s", e.Item, e.Data)
}

// ErrExtraData reports data attributes left over after an item's type
// consumed everything it defines. The schema is strict: unconsumed data is
// corrupt input, not an extension point.
type ErrExtraData struct {
	Item string
	Keys []string
}

func (e *ErrExtraData) Error() string {
	return fmt.Sprintf("graphml: unconsumed data on %s: %s", e.Item, strings.Join(e.Keys, ", "))
}

// ErrUnknownType reports a node or edge type string outside the closed
// variant set.
type ErrUnknownType struct {
	Kind  string
	Value string
}

func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("graphml: unknown %s type %q", e.Kind, e.Value)
}
