package extraction

import (
	"context"
	"fmt"
)

// QueryKind selects how a Query is resolved by the driver.
type QueryKind int

const (
	QueryID QueryKind = iota
	QueryName
	QueryCSS
	QueryTag
)

func (k QueryKind) String() string {
	switch k {
	case QueryID:
		return "id"
	case QueryName:
		return "name"
	case QueryCSS:
		return "css"
	case QueryTag:
		return "tag"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Query is a single driver-level lookup in the active context.
type Query struct {
	Kind  QueryKind
	Value string
}

func (q Query) String() string {
	return q.Kind.String() + "=" + q.Value
}

// ElementHandle refers to one node of the active context. A handle is only
// valid until the next context switch.
type ElementHandle interface {
	// Attr returns the attribute value captured when the node was found.
	Attr(name string) (string, bool)
}

// Driver is the browser collaborator consumed by the engine. Every call
// applies to the single active context; Switch* calls change it.
type Driver interface {
	Navigate(ctx context.Context, url string) error

	// FindElements returns matches in document order. No match is not an error.
	FindElements(ctx context.Context, q Query) ([]ElementHandle, error)

	Text(ctx context.Context, el ElementHandle) (string, error)

	// Fill clears the input before writing value.
	Fill(ctx context.Context, el ElementHandle, value string) error
	Click(ctx context.Context, el ElementHandle) error
	SelectIndex(ctx context.Context, el ElementHandle, index int) error
	SelectText(ctx context.Context, el ElementHandle, text string) error
	Screenshot(ctx context.Context, el ElementHandle) ([]byte, error)

	// HTML returns the outer HTML of the active context's document.
	HTML(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)

	// WindowHandles lists top-level windows, oldest first.
	WindowHandles(ctx context.Context) ([]string, error)
	CurrentWindow(ctx context.Context) (string, error)
	SwitchToWindow(ctx context.Context, handle string) error
	SwitchToFrame(ctx context.Context, el ElementHandle) error

	// SwitchToDefault leaves any frame and returns to the current window's document.
	SwitchToDefault(ctx context.Context) error
}

// ContextKind tells what kind of browsing scope a WindowContext names.
type ContextKind string

const (
	ContextDocument ContextKind = "document"
	ContextFrame    ContextKind = "frame"
	ContextWindow   ContextKind = "window"
)

// WindowContext is a snapshot of the active browsing scope.
type WindowContext struct {
	Kind   ContextKind `json:"kind"`
	Handle string      `json:"handle,omitempty"`
	URL    string      `json:"url"`
}
