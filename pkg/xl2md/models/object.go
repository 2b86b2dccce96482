package models

// ObjectKind tells what kind of embedded object was extracted.
type ObjectKind string

const (
	ObjectImage   ObjectKind = "image"
	ObjectShape   ObjectKind = "shape"
	ObjectComment ObjectKind = "comment"
)

// ExtractedObject is one embedded object pulled out of a sheet: a raster
// image persisted to disk, or a shape/comment rendered as text.
type ExtractedObject struct {
	// Kind is the object kind.
	Kind ObjectKind `json:"kind"`
	// Index is the sequential object number, monotonic across one
	// conversion run (images and shapes are numbered separately).
	Index int `json:"index"`
	// Name is the display name (picture name, shape name, comment author).
	Name string `json:"name"`
	// AnchorCell is the nearest anchor cell in A1 notation, when resolvable.
	AnchorCell string `json:"anchor_cell,omitempty"`
	// FilePath is the saved image path, relative to the output directory.
	// Empty for shapes and comments.
	FilePath string `json:"file_path,omitempty"`
	// Text is the literal text content for shapes and comments.
	Text string `json:"text,omitempty"`
	// Markdown is the rendered Markdown block for this object.
	Markdown string `json:"-"`
}
