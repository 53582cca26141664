package ir

import "fmt"

// Message is the opaque application payload of a committed operation.
type Message struct {
	// Payload is never interpreted by the ordering core.
	Payload []byte `json:"payload" msgpack:"p"`

	// Tag is the conflict-class tag attached by the submitting system.
	// Classifiers map it to a Color.
	Tag string `json:"tag,omitempty" msgpack:"t"`
}

// Commit is one already-agreed commit notification.
type Commit struct {
	Dot     Dot
	Message Message

	// Conf is the conflict clock captured at commit time: per replica, the
	// highest committed sequence number known to conflict with this
	// operation. It always covers the commit's own dot.
	Conf *MaxClock
}

// Color is the conflict class a commit is routed by.
type Color int

const (
	// ColorConflicting routes to the queue that performs full dependency
	// tracking and cycle merging.
	ColorConflicting Color = iota
	// ColorNonConflicting routes to the fast-path queue.
	ColorNonConflicting
)

func (c Color) String() string {
	switch c {
	case ColorConflicting:
		return "conflicting"
	case ColorNonConflicting:
		return "non_conflicting"
	default:
		return "unknown"
	}
}

// ParseColor parses the String form of a color.
func ParseColor(s string) (Color, error) {
	switch s {
	case "conflicting":
		return ColorConflicting, nil
	case "non_conflicting":
		return ColorNonConflicting, nil
	default:
		return 0, fmt.Errorf("unknown color %q", s)
	}
}

// MarshalText renders the color by name in JSON and YAML.
func (c Color) MarshalText() ([]byte, error) {
	if c != ColorConflicting && c != ColorNonConflicting {
		return nil, fmt.Errorf("unknown color %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Classifier assigns a color to a message.
type Classifier func(Message) Color

// AllConflicting classifies every message as conflicting.
func AllConflicting(Message) Color {
	return ColorConflicting
}

// TagClassifier returns a classifier that treats messages carrying one of
// the given tags as non-conflicting and everything else as conflicting.
func TagClassifier(nonConflictingTags ...string) Classifier {
	tags := make(map[string]struct{}, len(nonConflictingTags))
	for _, t := range nonConflictingTags {
		tags[t] = struct{}{}
	}
	return func(m Message) Color {
		if _, ok := tags[m.Tag]; ok {
			return ColorNonConflicting
		}
		return ColorConflicting
	}
}

// Batch is the flattened, externally visible form of one delivered unit.
type Batch struct {
	// RunID identifies the runner that produced the batch.
	RunID string `json:"run_id"`

	// Seq is the batch's position in the run's delivery order, from 1.
	Seq int64 `json:"seq"`

	Color Color `json:"color"`

	// Dots lists the batch's dots in (replica, seq) order.
	Dots []Dot `json:"dots"`

	// Messages is aligned with Dots.
	Messages []Message `json:"messages"`

	// Digest is the content hash of dots and messages; see BatchDigest.
	Digest string `json:"digest"`
}

// Size returns the number of operations in the batch.
func (b Batch) Size() int {
	return len(b.Dots)
}
