package usecase

// StrategyStep is one action of a LegalStrategy.
type StrategyStep struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

// LegalStrategy is the result of GenerateStrategy.
type LegalStrategy struct {
	Summary           string         `json:"summary" validate:"required"`
	Strengths         []string       `json:"strengths"`
	Weaknesses        []string       `json:"weaknesses"`
	Steps             []StrategyStep `json:"steps" validate:"required,dive"`
	Risks             []string       `json:"risks"`
	EstimatedDuration string         `json:"estimated_duration,omitempty"`
}

// Citation references a statute, regulation or precedent.
type Citation struct {
	Title     string `json:"title" validate:"required"`
	Source    string `json:"source,omitempty"`
	Reference string `json:"reference,omitempty"`
	Summary   string `json:"summary,omitempty"`
	URL       string `json:"url,omitempty"`
}

// CitationList is the result of FindCitations.
type CitationList struct {
	Citations []Citation `json:"citations" validate:"dive"`
}

// ResumeAnalysis is the result of AnalyzeResume.
type ResumeAnalysis struct {
	Score           int      `json:"score" validate:"gte=0,lte=100"`
	Summary         string   `json:"summary" validate:"required"`
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
	MissingKeywords []string `json:"missing_keywords"`
}

// ClauseFinding flags one clause of a contract.
type ClauseFinding struct {
	Clause     string `json:"clause" validate:"required"`
	Issue      string `json:"issue,omitempty"`
	Risk       string `json:"risk,omitempty" validate:"omitempty,oneof=low medium high"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ContractAnalysis is the result of AnalyzeContract.
type ContractAnalysis struct {
	Summary         string          `json:"summary" validate:"required"`
	RiskLevel       string          `json:"risk_level" validate:"required,oneof=low medium high"`
	Clauses         []ClauseFinding `json:"clauses" validate:"dive"`
	Recommendations []string        `json:"recommendations"`
}

// EvidenceItem assesses one piece of evidence.
type EvidenceItem struct {
	Description   string `json:"description" validate:"required"`
	Relevance     string `json:"relevance,omitempty"`
	Admissibility string `json:"admissibility,omitempty"`
}

// EvidenceAnalysis is the result of AnalyzeEvidence.
type EvidenceAnalysis struct {
	Summary   string         `json:"summary" validate:"required"`
	Strength  string         `json:"strength,omitempty" validate:"omitempty,oneof=weak moderate strong"`
	Items     []EvidenceItem `json:"items" validate:"dive"`
	Gaps      []string       `json:"gaps"`
	NextSteps []string       `json:"next_steps"`
}

// DraftedDocument is the result of DraftDocument.
type DraftedDocument struct {
	Title string   `json:"title" validate:"required"`
	Body  string   `json:"body" validate:"required"`
	Notes []string `json:"notes"`
}

// NewsItem is one headline of a NewsDigest.
type NewsItem struct {
	Headline string `json:"headline" validate:"required"`
	Summary  string `json:"summary,omitempty"`
	Source   string `json:"source,omitempty"`
	Date     string `json:"date,omitempty"`
}

// NewsDigest is the result of LegalNews.
type NewsDigest struct {
	Items []NewsItem `json:"items" validate:"dive"`
}
