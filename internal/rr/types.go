package rr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ImageKey is the stable identity of an image within one analysis.
//
// A resolved image is keyed by its catalog id. An image that could not be
// matched against the catalog is keyed by the filename stored with the
// response, in which case ID is zero.
type ImageKey struct {
	ID       int64
	Filename string
}

// ImageByID returns the key of a catalogued image.
func ImageByID(id int64) ImageKey { return ImageKey{ID: id} }

// ImageByFilename returns the key of an image known only by filename.
func ImageByFilename(name string) ImageKey { return ImageKey{Filename: name} }

// Resolved reports whether the key refers to a catalogued image.
func (k ImageKey) Resolved() bool { return k.ID != 0 }

func (k ImageKey) String() string {
	if k.Resolved() {
		return "#" + strconv.FormatInt(k.ID, 10)
	}
	return k.Filename
}

const filenameKeyPrefix = "file:"

// MarshalText encodes the key so it can be used as a JSON object key:
// "12" for a catalogued image, "file:<name>" otherwise.
func (k ImageKey) MarshalText() ([]byte, error) {
	if k.Resolved() {
		return []byte(strconv.FormatInt(k.ID, 10)), nil
	}
	return []byte(filenameKeyPrefix + k.Filename), nil
}

// UnmarshalText is the inverse of MarshalText.
func (k *ImageKey) UnmarshalText(b []byte) error {
	s := string(b)
	if name, ok := strings.CutPrefix(s, filenameKeyPrefix); ok {
		*k = ImageByFilename(name)
		return nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid image key %q: %w", s, err)
	}
	*k = ImageByID(id)
	return nil
}

// Resolution records which stage of image identity resolution succeeded.
type Resolution int

const (
	// ResolvedByID means the response carried an image id.
	ResolvedByID Resolution = iota
	// ResolvedByFilename means the stored filename matched exactly one
	// catalog image of the same test.
	ResolvedByFilename
	// Unresolved means the raw stored filename is used as the identity.
	Unresolved
)

func (r Resolution) String() string {
	switch r {
	case ResolvedByID:
		return "id"
	case ResolvedByFilename:
		return "filename"
	case Unresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// RawResponse is one row of the results ⟕ responses ⟕ operators join for a
// test, exactly as stored.
type RawResponse struct {
	ResultID     int64
	OperatorID   int64
	OperatorName string
	// Repetition is nil when the result predates repetition tracking.
	Repetition *int
	Timestamp  time.Time
	Evaluator  string

	// HasResponse is false for a result that has no responses at all. Such
	// rows still take part in repetition numbering.
	HasResponse bool
	// ImageID is nil for legacy responses stored by filename only.
	ImageID       *int64
	Filename      string
	Answer        string
	CorrectAnswer string
}

// CatalogImage is an image as currently stored in the catalog.
type CatalogImage struct {
	ID          int64
	TestID      int64
	Filename    string
	GroundTruth Verdict
}

// Source is the read interface the reader needs from the response store.
type Source interface {
	// ResultResponses returns every result of the test joined with its
	// responses and operator, ordered by operator, timestamp, result id and
	// response insertion order.
	ResultResponses(ctx context.Context, testID int64) ([]RawResponse, error)
	// TestImages returns the current image catalog of the test.
	TestImages(ctx context.Context, testID int64) ([]CatalogImage, error)
}

// Record is one normalized response.
type Record struct {
	ResultID     int64      `json:"result_id"`
	OperatorID   int64      `json:"operator_id"`
	OperatorName string     `json:"operator_name"`
	Repetition   int        `json:"repetition"`
	Timestamp    time.Time  `json:"timestamp"`
	Image        ImageKey   `json:"image"`
	ImageName    string     `json:"image_name"`
	Resolution   Resolution `json:"resolution"`
	Answer       Verdict    `json:"answer"`
	// GroundTruth is the correct answer snapshotted when the response was
	// recorded, not the catalog's current label.
	GroundTruth Verdict `json:"ground_truth_answer"`
}
