package pipeline

import (
	"regexp"
	"strings"

	"github.com/jwalitptl/consult-api/internal/model"
)

// letterRules map the free-text letter names the extraction model emits
// onto document types. Rules are ordered: "GP referral letter" must hit
// the GP rule before the generic referral rule.
var letterRules = []struct {
	pattern *regexp.Regexp
	docType model.DocumentType
}{
	{regexp.MustCompile(`gp.*letter|referral.*gp`), model.DocumentTypeGPLetter},
	{regexp.MustCompile(`patient.*letter`), model.DocumentTypePatientLetter},
	{regexp.MustCompile(`referral.*letter`), model.DocumentTypeReferralLetter},
	{regexp.MustCompile(`insurance`), model.DocumentTypeInsuranceLetter},
}

// classifyLetter resolves a requested letter type. Unknown types return
// ok=false and are skipped by the generation stage, never failed on.
func classifyLetter(raw string) (model.DocumentType, bool) {
	s := strings.ToLower(raw)
	for _, rule := range letterRules {
		if rule.pattern.MatchString(s) {
			return rule.docType, true
		}
	}
	return "", false
}
