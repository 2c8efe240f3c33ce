package model

const (
	// DataSourceExternalArchive marks rows ingested from the post archive.
	DataSourceExternalArchive = "external_archive"
	// VerificationUnverified is the tier for self-reported, unchecked rows.
	VerificationUnverified = "unverified"
)

// CanonicalSchool is a pre-existing reference school. Ingestion never
// creates or modifies these rows.
type CanonicalSchool struct {
	ID      int64    `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// OutcomeRecord is one persisted outcome row. (SourcePostID, SchoolID) is unique.
type OutcomeRecord struct {
	SourcePostID     string       `json:"source_post_id"`
	SourcePermalink  string       `json:"source_permalink,omitempty"`
	SchoolID         int64        `json:"school_id"`
	Decision         Outcome      `json:"decision"`
	ApplicationRound Round        `json:"application_round,omitempty"`
	AdmissionCycle   string       `json:"admission_cycle"`
	Academics        Academics    `json:"academics"`
	Demographics     Demographics `json:"demographics"`
	IntendedMajor    *string      `json:"intended_major,omitempty"`
	DataSource       string       `json:"data_source"`
	VerificationTier string       `json:"verification_tier"`
}

// NewOutcomeRecord builds the row for one resolved decision of a parsed post.
func NewOutcomeRecord(p *ParsedPost, d Decision, schoolID int64) OutcomeRecord {
	return OutcomeRecord{
		SourcePostID:     p.PostID,
		SourcePermalink:  p.Permalink,
		SchoolID:         schoolID,
		Decision:         d.Outcome,
		ApplicationRound: d.Round,
		AdmissionCycle:   p.AdmissionCycle,
		Academics:        p.Academics,
		Demographics:     p.Demographics,
		IntendedMajor:    p.IntendedMajor,
		DataSource:       DataSourceExternalArchive,
		VerificationTier: VerificationUnverified,
	}
}
