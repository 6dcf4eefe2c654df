// Package e2e runs the whole ingest and retrieval pipeline over a generated corpus.
package e2e

import (
	"fmt"
	"strings"

	"github.com/hyperjump/shiraberu/internal/models"
)

// E2EDocument is a document entry in the E2E corpus.
type E2EDocument struct {
	ID      string
	Title   string
	Content string
}

// QueryTestCase defines a query and the document ID(s) that must appear in its results.
type QueryTestCase struct {
	Query          string
	ExpectedDocIDs []string
	Description    string
}

// Corpus holds documents and query test cases for E2E tests.
type Corpus struct {
	Documents    []E2EDocument
	TestCases    []QueryTestCase
	TotalDocs    int
	TotalQueries int
}

// BuildCorpus returns one document per topic and a query test case per signature phrase.
// Each document has a unique signature phrase so queries can assert the correct doc is returned.
func BuildCorpus() *Corpus {
	docs := buildDocuments()
	cases := buildQueryTestCases(docs)
	return &Corpus{
		Documents:    docs,
		TestCases:    cases,
		TotalDocs:    len(docs),
		TotalQueries: len(cases),
	}
}

var topics = []struct {
	title   string
	phrase  string
	content string
}{
	{"Claims Procedure", "notice of claim", "Every loss must be reported promptly. A written notice of claim is due within thirty days of the incident."},
	{"Grace Period", "premium grace period", "Coverage stays in force while payment is late. The premium grace period lasts thirty one days."},
	{"Deductibles", "annual deductible amount", "You pay part of each covered loss. The annual deductible amount resets every policy year."},
	{"Beneficiaries", "primary beneficiary designation", "Proceeds go to the people you name. A primary beneficiary designation can be changed at any time."},
	{"Free Look", "free look cancellation", "New policyholders may return the contract. Free look cancellation gives a full refund within ten days."},
	{"Reinstatement", "lapsed policy reinstatement", "A lapsed policy can be revived. Lapsed policy reinstatement requires evidence of insurability."},
	{"Exclusions", "war and terrorism exclusion", "Some causes of loss are not covered. The war and terrorism exclusion applies to all riders."},
	{"Riders", "accidental death rider", "Optional riders extend coverage. An accidental death rider doubles the benefit for accidents."},
	{"Surrender Value", "cash surrender value", "Permanent policies build savings. The cash surrender value is paid if the contract is cancelled."},
	{"Policy Loans", "policy loan interest", "You may borrow against the policy. Policy loan interest accrues daily on the outstanding balance."},
	{"Hospital Cover", "inpatient hospitalization benefit", "Stays in hospital are reimbursed. The inpatient hospitalization benefit covers room and board."},
	{"Outpatient Cover", "outpatient consultation limit", "Clinic visits are covered up to a cap. The outpatient consultation limit is fifty visits a year."},
	{"Dental Plan", "dental scaling coverage", "Routine dental care is included. Dental scaling coverage applies twice per calendar year."},
	{"Maternity", "maternity waiting period", "Pregnancy benefits start after enrolment. The maternity waiting period is ten months."},
	{"Pre-existing Conditions", "pre-existing condition disclosure", "Conditions known before purchase matter. Pre-existing condition disclosure is mandatory on the application."},
	{"Travel Insurance", "trip cancellation reimbursement", "Travel plans can fall through. Trip cancellation reimbursement refunds prepaid bookings."},
	{"Baggage", "delayed baggage allowance", "Luggage sometimes arrives late. The delayed baggage allowance pays for essentials."},
	{"Motor Insurance", "third party liability", "Drivers must insure against harm to others. Third party liability is the legal minimum."},
	{"No Claim Bonus", "no claim bonus discount", "Careful drivers are rewarded. The no claim bonus discount grows each claim free year."},
	{"Roadside Assistance", "roadside towing service", "Breakdowns happen anywhere. The roadside towing service is available around the clock."},
	{"Home Insurance", "building reconstruction cost", "Homes are insured for rebuilding. Building reconstruction cost is assessed by a surveyor."},
	{"Contents", "household contents valuation", "Furniture and belongings are insured too. Household contents valuation uses replacement prices."},
	{"Flood Cover", "flood and storm damage", "Water damage from weather is covered. Flood and storm damage claims need photos of the loss."},
	{"Fire Cover", "fire brigade charges", "Fire losses include firefighting costs. Fire brigade charges are reimbursed in full."},
	{"Critical Illness", "critical illness lump sum", "Serious diagnoses trigger a payout. The critical illness lump sum is paid once per life."},
	{"Disability Income", "disability income replacement", "Illness can stop you from working. Disability income replacement pays a monthly benefit."},
	{"Waiver of Premium", "waiver of premium benefit", "Premiums stop if you become disabled. The waiver of premium benefit keeps the policy active."},
	{"Underwriting", "medical underwriting questionnaire", "Risk is assessed before acceptance. The medical underwriting questionnaire asks about your history."},
	{"Premium Loading", "premium loading for smokers", "Higher risk means higher cost. Premium loading for smokers adds a surcharge."},
	{"Renewal", "guaranteed renewal clause", "Policies can be renewed each term. The guaranteed renewal clause prevents cancellation for age."},
	{"Co-payment", "co-payment percentage", "You share the cost of treatment. The co-payment percentage is twenty percent for private rooms."},
	{"Panel Clinics", "panel clinic network", "Some clinics bill the insurer directly. The panel clinic network avoids upfront payment."},
	{"Claim Documents", "original medical receipts", "Claims need proof of expense. Original medical receipts must accompany the claim form."},
	{"Claim Settlement", "claim settlement turnaround", "Approved claims are paid quickly. Claim settlement turnaround is fourteen working days."},
	{"Appeals", "claim rejection appeal", "Denied claims can be contested. A claim rejection appeal must be lodged within sixty days."},
	{"Fraud", "fraudulent claim penalty", "Dishonest claims void the policy. A fraudulent claim penalty may include prosecution."},
	{"Subrogation", "subrogation recovery rights", "The insurer may pursue liable parties. Subrogation recovery rights pass to the insurer after payment."},
	{"Assignment", "policy assignment to lender", "Policies can secure a loan. Policy assignment to lender requires written consent."},
	{"Nomination", "nominee payout process", "Small estates settle faster with a nominee. The nominee payout process skips probate."},
	{"Group Cover", "employer group scheme", "Companies insure their staff. The employer group scheme ends when employment ends."},
}

func buildDocuments() []E2EDocument {
	out := make([]E2EDocument, 0, len(topics))
	for i, t := range topics {
		out = append(out, E2EDocument{
			ID:      fmt.Sprintf("e2e-doc-%03d", i+1),
			Title:   t.title,
			Content: t.content,
		})
	}
	return out
}

func buildQueryTestCases(docs []E2EDocument) []QueryTestCase {
	var cases []QueryTestCase
	used := make(map[string]bool)
	for _, t := range topics {
		// First doc that contains the phrase.
		for _, d := range docs {
			if containsPhrase(d, t.phrase) && !used[d.ID] {
				cases = append(cases, QueryTestCase{
					Query:          t.phrase,
					ExpectedDocIDs: []string{d.ID},
					Description:    fmt.Sprintf("query %q should return doc %s", t.phrase, d.ID),
				})
				used[d.ID] = true
				break
			}
		}
	}
	return cases
}

func containsPhrase(d E2EDocument, phrase string) bool {
	lower := strings.ToLower(phrase)
	return strings.Contains(strings.ToLower(d.Title), lower) || strings.Contains(strings.ToLower(d.Content), lower)
}

// SourceFor is the document source recorded for a corpus document ingested directly.
func SourceFor(id string) string {
	return id + ".pdf"
}

// ToDocuments converts the corpus to PDF-typed documents for ingestion.
func (c *Corpus) ToDocuments() []models.Document {
	out := make([]models.Document, len(c.Documents))
	for i, d := range c.Documents {
		out[i] = models.Document{
			Source:  SourceFor(d.ID),
			Content: d.Title + "\n\n" + d.Content,
			Type:    models.DocTypePDF,
		}
	}
	return out
}
