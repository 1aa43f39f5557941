package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContentKind classifies the content a verification request carries.
type ContentKind string

const (
	ContentKindText        ContentKind = "text"
	ContentKindURL         ContentKind = "url"
	ContentKindImage       ContentKind = "image"
	ContentKindVideo       ContentKind = "video"
	ContentKindSocialMedia ContentKind = "social_media"
	ContentKindNews        ContentKind = "news"
	ContentKindAcademic    ContentKind = "academic"
)

// IsValid reports whether the content kind is one of the known values.
func (k ContentKind) IsValid() bool {
	switch k {
	case ContentKindText, ContentKindURL, ContentKindImage, ContentKindVideo,
		ContentKindSocialMedia, ContentKindNews, ContentKindAcademic:
		return true
	}
	return false
}

// Priority drives the timeout and time-estimate multipliers of a request.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// TimeoutMultiplier scales the per-attempt agent timeout. Higher priority
// runs under a tighter deadline. Unknown priorities behave as medium.
func (p Priority) TimeoutMultiplier() float64 {
	switch p {
	case PriorityLow:
		return 1.5
	case PriorityHigh:
		return 0.7
	case PriorityCritical:
		return 0.5
	default:
		return 1.0
	}
}

// EstimateMultiplier scales the routing time estimate. Higher priority
// assumes faster effective turnaround. Unknown priorities behave as medium.
func (p Priority) EstimateMultiplier() float64 {
	switch p {
	case PriorityLow:
		return 1.0
	case PriorityHigh:
		return 0.6
	case PriorityCritical:
		return 0.4
	default:
		return 0.8
	}
}

// RequestMetadata carries optional request context consumed by routing rules.
type RequestMetadata struct {
	Language string            `json:"language,omitempty"`
	Platform string            `json:"platform,omitempty"`
	URL      string            `json:"url,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// HasTag reports whether the metadata carries the tag, case-insensitively.
func (m RequestMetadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// VerificationRequest is one unit of content to verify. Immutable once
// created; all pipeline stages share the same instance.
type VerificationRequest struct {
	ID          string          `json:"id"`
	Content     string          `json:"content"`
	ContentKind ContentKind     `json:"content_kind"`
	Metadata    RequestMetadata `json:"metadata"`
	Priority    Priority        `json:"priority"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewVerificationRequest stamps identity and creation time. An empty
// priority defaults to medium.
func NewVerificationRequest(content string, kind ContentKind, meta RequestMetadata, priority Priority) *VerificationRequest {
	if priority == "" {
		priority = PriorityMedium
	}
	return &VerificationRequest{
		ID:          uuid.NewString(),
		Content:     content,
		ContentKind: kind,
		Metadata:    meta,
		Priority:    priority,
		CreatedAt:   time.Now().UTC(),
	}
}

// Validate checks the request is well-formed enough to route.
func (r *VerificationRequest) Validate() error {
	if r == nil {
		return NewError(ErrInvalidRequest, "request is nil")
	}
	if strings.TrimSpace(r.Content) == "" {
		return NewError(ErrInvalidRequest, "content is empty")
	}
	if !r.ContentKind.IsValid() {
		return NewError(ErrInvalidRequest, "unknown content kind: "+string(r.ContentKind))
	}
	return nil
}
