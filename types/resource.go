package types

import (
	"fmt"
	"time"
)

// Resource is a single cloud resource captured during discovery.
// Immutable once captured for a run.
type Resource struct {
	ID           string            `json:"id"` // account/region/service/native-id
	NativeID     string            `json:"native_id"`
	ARN          string            `json:"arn,omitempty"`
	Type         string            `json:"type"`
	Service      string            `json:"service"`
	Region       string            `json:"region"`
	Account      string            `json:"account"`
	Name         string            `json:"name,omitempty"`
	Status       string            `json:"status,omitempty"`
	Global       bool              `json:"global,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
	Attributes   map[string]any    `json:"attributes,omitempty"`
	ReferencedBy []string          `json:"referenced_by,omitempty"`

	// TagsUnreadable is set when the tag read failed; classification
	// treats such resources as Preserve.
	TagsUnreadable bool `json:"tags_unreadable,omitempty"`

	CreatedAt  time.Time `json:"created_at,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// Preservation tag schema.
const (
	PreserveTagKey   = "decom:preserve"
	PreserveTagValue = "true"
	ReasonTagKey     = "decom:reason"
)

// ResourceID builds the globally unique identifier for a resource.
func ResourceID(account, region, service, nativeID string) string {
	return fmt.Sprintf("%s/%s/%s/%s", account, region, service, nativeID)
}

// HasPreserveTag reports whether the explicit preservation marker is set.
func (r *Resource) HasPreserveTag() bool {
	if r.Tags == nil {
		return false
	}
	return r.Tags[PreserveTagKey] == PreserveTagValue
}

// OwningStack returns the ID of the stack that owns this resource, if any.
func (r *Resource) OwningStack() string {
	if r.Attributes == nil {
		return ""
	}
	if stack, ok := r.Attributes["owning_stack"].(string); ok {
		return stack
	}
	return ""
}
