package graph

// NodeType is the closed set of node variants a recording can contain.
// Concrete types below implement it; queries dispatch with type switches and
// surface ErrUnimplemented for combinations the causal model does not cover.
type NodeType interface {
	nodeType()
}

// EdgeType is the closed set of edge variants a recording can contain.
type EdgeType interface {
	edgeType()
}

// Node variants.

// Extensions represents the browser extensions actor.
type Extensions struct{}

// RemoteFrame is a placeholder for a cross-origin frame whose own recording
// lives in a companion file keyed by FrameID.
type RemoteFrame struct {
	FrameID FrameID
}

// Resource is a fetched URL.
type Resource struct {
	URL string
}

// AdFilter marks a matched ad-blocking rule.
type AdFilter struct {
	Rule string
}

// TrackerFilter marks a matched tracker rule.
type TrackerFilter struct{}

// FingerprintingFilter marks a matched fingerprinting rule.
type FingerprintingFilter struct{}

// WebAPI is a browser API endpoint touched by a script.
type WebAPI struct {
	Method string
}

// JSBuiltin is a JavaScript builtin touched by a script.
type JSBuiltin struct {
	Method string
}

// HTMLElement is a DOM element. DOMNodeID is the browser's DOM node id,
// unique among DOM-ish nodes within one frame context.
type HTMLElement struct {
	TagName   string
	IsDeleted bool
	DOMNodeID uint64
}

// TextNode is a DOM text node.
type TextNode struct {
	Text      *string
	IsDeleted bool
	DOMNodeID uint64
}

// DOMRoot is the top-of-document anchor for a frame context.
type DOMRoot struct {
	URL       *string
	TagName   string
	IsDeleted bool
	DOMNodeID uint64
}

// FrameOwner is the element owning an embedded frame (iframe, embed, ...).
type FrameOwner struct {
	TagName   string
	IsDeleted bool
	DOMNodeID uint64
}

// Storage areas.
type (
	Storage        struct{}
	LocalStorage   struct{}
	SessionStorage struct{}
	CookieJar      struct{}
)

// Script is a compiled script unit.
type Script struct {
	URL        *string
	ScriptType string
	ScriptID   uint64
	Source     string
}

// Parser is the document parser for one frame context.
type Parser struct{}

// Shield markers.
type (
	BraveShields           struct{}
	AdsShield              struct{}
	TrackersShield         struct{}
	JavascriptShield       struct{}
	FingerprintingShield   struct{}
	FingerprintingV2Shield struct{}
)

// Binding is a native binding exposed to scripts.
type Binding struct {
	Binding     string
	BindingType string
}

// BindingEvent is an event on a native binding.
type BindingEvent struct {
	BindingEvent string
}

func (Extensions) nodeType()             {}
func (RemoteFrame) nodeType()            {}
func (Resource) nodeType()               {}
func (AdFilter) nodeType()               {}
func (TrackerFilter) nodeType()          {}
func (FingerprintingFilter) nodeType()   {}
func (WebAPI) nodeType()                 {}
func (JSBuiltin) nodeType()              {}
func (HTMLElement) nodeType()            {}
func (TextNode) nodeType()               {}
func (DOMRoot) nodeType()                {}
func (FrameOwner) nodeType()             {}
func (Storage) nodeType()                {}
func (LocalStorage) nodeType()           {}
func (SessionStorage) nodeType()         {}
func (CookieJar) nodeType()              {}
func (Script) nodeType()                 {}
func (Parser) nodeType()                 {}
func (BraveShields) nodeType()           {}
func (AdsShield) nodeType()              {}
func (TrackersShield) nodeType()         {}
func (JavascriptShield) nodeType()       {}
func (FingerprintingShield) nodeType()   {}
func (FingerprintingV2Shield) nodeType() {}
func (Binding) nodeType()                {}
func (BindingEvent) nodeType()           {}

// Edge variants.

// Structural edges with no payload.
type (
	Filter          struct{}
	Structure       struct{}
	CrossDOM        struct{}
	ResourceBlock   struct{}
	Shield          struct{}
	TextChange      struct{}
	RemoveNode      struct{}
	DeleteNode      struct{}
	CreateNode      struct{}
	RequestResponse struct{}
	StorageBucket   struct{}
	Execute         struct{}
)

// InsertNode attaches a node under the DOM element carrying Parent (a DOM
// node id), optionally before a sibling.
type InsertNode struct {
	Parent uint64
	Before *uint64
}

// JSResult carries a value returned to a script.
type JSResult struct {
	Value *string
}

// JSCall is a script calling into a web API or builtin.
type JSCall struct {
	Args           *string
	ScriptPosition uint64
}

// RequestComplete finishes the request identified by RequestID.
type RequestComplete struct {
	ResourceType string
	Status       string
	Value        *string
	ResponseHash *string
	RequestID    uint64
	Headers      string
	Size         string
}

// RequestError fails the request identified by RequestID.
type RequestError struct {
	Status    string
	RequestID uint64
	Value     *string
	Headers   string
	Size      string
}

// RequestStart opens a network request against a Resource node.
type RequestStart struct {
	RequestType RequestType
	Status      string
	RequestID   uint64
}

// AddEventListener registers a listener on an element.
type AddEventListener struct {
	Key             string
	EventListenerID uint64
	ScriptID        uint64
}

// RemoveEventListener removes a registered listener.
type RemoveEventListener struct {
	Key             string
	EventListenerID uint64
	ScriptID        uint64
}

// EventListener fires a registered listener.
type EventListener struct {
	Key             string
	EventListenerID uint64
}

// StorageSet writes a key into a storage area.
type StorageSet struct {
	Key   string
	Value *string
}

// StorageReadResult returns a stored value to a script.
type StorageReadResult struct {
	Key   string
	Value *string
}

// Storage edges without a value payload.
type (
	DeleteStorage   struct{ Key string }
	ReadStorageCall struct{ Key string }
	ClearStorage    struct{ Key string }
)

// ExecuteFromAttribute runs script text stored in an attribute.
type ExecuteFromAttribute struct {
	AttrName string
}

// SetAttribute sets an attribute on an element.
type SetAttribute struct {
	Key     string
	Value   *string
	IsStyle bool
}

// DeleteAttribute removes an attribute from an element.
type DeleteAttribute struct {
	Key     string
	IsStyle bool
}

// BindingEdge connects a script to a native binding.
type BindingEdge struct{}

// BindingEventEdge carries a native binding event.
type BindingEventEdge struct {
	ScriptPosition uint64
}

func (Filter) edgeType()               {}
func (Structure) edgeType()            {}
func (CrossDOM) edgeType()             {}
func (ResourceBlock) edgeType()        {}
func (Shield) edgeType()               {}
func (TextChange) edgeType()           {}
func (RemoveNode) edgeType()           {}
func (DeleteNode) edgeType()           {}
func (InsertNode) edgeType()           {}
func (CreateNode) edgeType()           {}
func (JSResult) edgeType()             {}
func (JSCall) edgeType()               {}
func (RequestComplete) edgeType()      {}
func (RequestError) edgeType()         {}
func (RequestStart) edgeType()         {}
func (RequestResponse) edgeType()      {}
func (AddEventListener) edgeType()     {}
func (RemoveEventListener) edgeType()  {}
func (EventListener) edgeType()        {}
func (StorageSet) edgeType()           {}
func (StorageReadResult) edgeType()    {}
func (DeleteStorage) edgeType()        {}
func (ReadStorageCall) edgeType()      {}
func (ClearStorage) edgeType()         {}
func (StorageBucket) edgeType()        {}
func (ExecuteFromAttribute) edgeType() {}
func (Execute) edgeType()              {}
func (SetAttribute) edgeType()         {}
func (DeleteAttribute) edgeType()      {}
func (BindingEdge) edgeType()          {}
func (BindingEventEdge) edgeType()     {}

// RequestType classifies a network request as recorded on RequestStart edges.
type RequestType int

const (
	RequestTypeImage RequestType = iota
	RequestTypeScript
	RequestTypeCSS
	RequestTypeAJAX
	RequestTypeUnknown
)

// ParseRequestType maps the recorded label to a RequestType. Unrecognized
// labels classify as unknown rather than failing: recordings grow new labels
// faster than this list.
func ParseRequestType(s string) RequestType {
	switch s {
	case "Image":
		return RequestTypeImage
	case "Script":
		return RequestTypeScript
	case "CSS":
		return RequestTypeCSS
	case "AJAX":
		return RequestTypeAJAX
	}
	return RequestTypeUnknown
}

// String returns the label used on query surfaces and in filter matching.
func (t RequestType) String() string {
	switch t {
	case RequestTypeImage:
		return "image"
	case RequestTypeScript:
		return "script"
	case RequestTypeCSS:
		return "stylesheet"
	case RequestTypeAJAX:
		return "xhr"
	}
	return "unknown"
}

func (t RequestType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// NodeTypeName returns the recorded label for a node type, the same string
// the GraphML serialization carries in "node type".
func NodeTypeName(t NodeType) string {
	switch t.(type) {
	case Extensions:
		return "extensions"
	case RemoteFrame:
		return "remote frame"
	case Resource:
		return "resource"
	case AdFilter:
		return "ad filter"
	case TrackerFilter:
		return "tracker filter"
	case FingerprintingFilter:
		return "fingerprinting filter"
	case WebAPI:
		return "web API"
	case JSBuiltin:
		return "JS builtin"
	case HTMLElement:
		return "HTML element"
	case TextNode:
		return "text node"
	case DOMRoot:
		return "DOM root"
	case FrameOwner:
		return "frame owner"
	case Storage:
		return "storage"
	case LocalStorage:
		return "local storage"
	case SessionStorage:
		return "session storage"
	case CookieJar:
		return "cookie jar"
	case Script:
		return "script"
	case Parser:
		return "parser"
	case BraveShields:
		return "Brave Shields"
	case AdsShield:
		return "shieldsAds shield"
	case TrackersShield:
		return "trackers shield"
	case JavascriptShield:
		return "javascript shield"
	case FingerprintingShield:
		return "fingerprinting shield"
	case FingerprintingV2Shield:
		return "fingerprintingV2 shield"
	case Binding:
		return "binding"
	case BindingEvent:
		return "binding event"
	}
	return "unknown"
}

// EdgeTypeName returns the recorded label for an edge type, the same string
// the GraphML serialization carries in "edge type".
func EdgeTypeName(t EdgeType) string {
	switch t.(type) {
	case Filter:
		return "filter"
	case Structure:
		return "structure"
	case CrossDOM:
		return "cross DOM"
	case ResourceBlock:
		return "resource block"
	case Shield:
		return "shield"
	case TextChange:
		return "text change"
	case RemoveNode:
		return "remove node"
	case DeleteNode:
		return "delete node"
	case InsertNode:
		return "insert node"
	case CreateNode:
		return "create node"
	case JSResult:
		return "js result"
	case JSCall:
		return "js call"
	case RequestComplete:
		return "request complete"
	case RequestError:
		return "request error"
	case RequestStart:
		return "request start"
	case RequestResponse:
		return "request response"
	case AddEventListener:
		return "add event listener"
	case RemoveEventListener:
		return "remove event listener"
	case EventListener:
		return "event listener"
	case StorageSet:
		return "storage set"
	case StorageReadResult:
		return "storage read result"
	case DeleteStorage:
		return "delete storage"
	case ReadStorageCall:
		return "read storage call"
	case ClearStorage:
		return "clear storage"
	case StorageBucket:
		return "storage bucket"
	case ExecuteFromAttribute:
		return "execute from attribute"
	case Execute:
		return "execute"
	case SetAttribute:
		return "set attribute"
	case DeleteAttribute:
		return "delete attribute"
	case BindingEdge:
		return "binding"
	case BindingEventEdge:
		return "binding event"
	}
	return "unknown"
}
