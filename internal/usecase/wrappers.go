package usecase

import (
	"context"

	"github.com/qanuni/legalai/pkg/textx"
)

// GenerateStrategy drafts a litigation strategy for the described case.
func (s *GenerationService) GenerateStrategy(ctx context.Context, caseDetails string) (LegalStrategy, error) {
	caseDetails = textx.SanitizeText(caseDetails)
	if err := required(map[string]string{"case_details": caseDetails}); err != nil {
		return LegalStrategy{}, err
	}
	return generate[LegalStrategy](ctx, s, KindStrategy, map[string]string{"CaseDetails": caseDetails})
}

// FindCitations lists citations for topic. Results are cached per topic.
func (s *GenerationService) FindCitations(ctx context.Context, topic string) (CitationList, error) {
	topic = textx.SanitizeText(topic)
	if err := required(map[string]string{"topic": topic}); err != nil {
		return CitationList{}, err
	}
	return cachedGenerate[CitationList](ctx, s, "citations-"+textx.CacheKey(topic), DefaultCitationsTTL,
		KindCitations, map[string]string{"Topic": topic})
}

// AnalyzeResume scores a resume against a target role.
func (s *GenerationService) AnalyzeResume(ctx context.Context, resume, targetRole string) (ResumeAnalysis, error) {
	resume, targetRole = textx.SanitizeText(resume), textx.SanitizeText(targetRole)
	if err := required(map[string]string{"resume": resume, "target_role": targetRole}); err != nil {
		return ResumeAnalysis{}, err
	}
	return generate[ResumeAnalysis](ctx, s, KindResume, map[string]string{"Resume": resume, "TargetRole": targetRole})
}

// AnalyzeContract reviews contract text for risky clauses.
func (s *GenerationService) AnalyzeContract(ctx context.Context, contract string) (ContractAnalysis, error) {
	contract = textx.SanitizeText(contract)
	if err := required(map[string]string{"contract": contract}); err != nil {
		return ContractAnalysis{}, err
	}
	return generate[ContractAnalysis](ctx, s, KindContract, map[string]string{"Contract": contract})
}

// AnalyzeEvidence assesses described evidence.
func (s *GenerationService) AnalyzeEvidence(ctx context.Context, description string) (EvidenceAnalysis, error) {
	description = textx.SanitizeText(description)
	if err := required(map[string]string{"description": description}); err != nil {
		return EvidenceAnalysis{}, err
	}
	return generate[EvidenceAnalysis](ctx, s, KindEvidence, map[string]string{"Description": description})
}

// DraftDocument drafts a document of docType from details.
func (s *GenerationService) DraftDocument(ctx context.Context, docType, details string) (DraftedDocument, error) {
	docType, details = textx.SanitizeText(docType), textx.SanitizeText(details)
	if err := required(map[string]string{"doc_type": docType, "details": details}); err != nil {
		return DraftedDocument{}, err
	}
	return generate[DraftedDocument](ctx, s, KindDraft, map[string]string{"DocType": docType, "Details": details})
}

// LegalNews summarizes recent legal news for query, cached for the news TTL.
func (s *GenerationService) LegalNews(ctx context.Context, query string) (NewsDigest, error) {
	query = textx.SanitizeText(query)
	if err := required(map[string]string{"query": query}); err != nil {
		return NewsDigest{}, err
	}
	return cachedGenerate[NewsDigest](ctx, s, "news-"+textx.CacheKey(query), s.newsTTL,
		KindNews, map[string]string{"Query": query})
}
