package domain

import "time"

// SourceKind enumerates the collector strategies.
type SourceKind string

const (
	SourceFeed       SourceKind = "feed"
	SourceMarketData SourceKind = "market-data"
	SourceScrape     SourceKind = "scrape"
)

// ArticleSource identifies provenance and the routing category used by the publisher.
type ArticleSource struct {
	Kind            SourceKind `json:"source_kind"`
	DisplayName     string     `json:"display_name"`
	RoutingCategory string     `json:"routing_category"`
	FeedID          string     `json:"feed_id,omitempty"`
}

// CollectedArticle is produced by a collector during a single pass.
type CollectedArticle struct {
	URL         string        `json:"url"`
	Title       string        `json:"title"`
	PublishedAt *time.Time    `json:"published_at"`
	RawSummary  string        `json:"raw_summary,omitempty"`
	Source      ArticleSource `json:"source"`
	CollectedAt time.Time     `json:"collected_at"`
}

// ExtractionStatus classifies the body extraction outcome.
type ExtractionStatus string

const (
	ExtractionSuccess ExtractionStatus = "success"
	ExtractionFailed  ExtractionStatus = "failed"
	ExtractionPaywall ExtractionStatus = "paywall"
	ExtractionTimeout ExtractionStatus = "timeout"
)

// ExtractedArticle wraps the collected record with body text.
type ExtractedArticle struct {
	Collected CollectedArticle `json:"collected"`
	BodyText  string           `json:"body_text,omitempty"`
	Status    ExtractionStatus `json:"extraction_status"`
	Method    string           `json:"extraction_method"`
	Error     string           `json:"error_message,omitempty"`
}

// HasBody reports whether summarization can be attempted.
func (e ExtractedArticle) HasBody() bool {
	return e.BodyText != ""
}

// StructuredSummary is the fixed four-section shape returned by the model.
type StructuredSummary struct {
	Overview     string   `json:"overview" validate:"required"`
	KeyPoints    []string `json:"key_points" validate:"required"`
	MarketImpact string   `json:"market_impact" validate:"required"`
	RelatedInfo  *string  `json:"related_info"`
}

// SummarizationStatus classifies the model call outcome.
type SummarizationStatus string

const (
	SummarizationSuccess SummarizationStatus = "success"
	SummarizationFailed  SummarizationStatus = "failed"
	SummarizationTimeout SummarizationStatus = "timeout"
	SummarizationSkipped SummarizationStatus = "skipped"
)

// SummarizedArticle wraps the extracted record with the model summary.
type SummarizedArticle struct {
	Extracted ExtractedArticle    `json:"extracted"`
	Summary   *StructuredSummary  `json:"summary,omitempty"`
	Status    SummarizationStatus `json:"summarization_status"`
	Error     string              `json:"error_message,omitempty"`
}

// PublicationStatus classifies the tracker write outcome.
type PublicationStatus string

const (
	PublicationSuccess   PublicationStatus = "success"
	PublicationFailed    PublicationStatus = "failed"
	PublicationSkipped   PublicationStatus = "skipped"
	PublicationDuplicate PublicationStatus = "duplicate"
)

// PublishedArticle wraps the summarized record with the tracker reference.
type PublishedArticle struct {
	Summarized  SummarizedArticle `json:"summarized"`
	ExternalID  string            `json:"external_id,omitempty"`
	ExternalURL string            `json:"external_url,omitempty"`
	Status      PublicationStatus `json:"publication_status"`
	Error       string            `json:"error_message,omitempty"`
}

// Collected walks the lineage back to the collected record.
func (p PublishedArticle) Collected() CollectedArticle {
	return p.Summarized.Extracted.Collected
}

// CollectionReport is the outcome of one collection pass.
type CollectionReport struct {
	Articles      []CollectedArticle
	Failures      []FailureRecord
	Blocked       int
	Stale         int
	Duplicates    int
	SourcesFailed int
}
