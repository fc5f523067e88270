package services

import (
	"fmt"
	"strconv"
	"strings"

	"doi-hand/models"
)

// DefaultSuffixPattern ist das Standardmuster für generierte DOI-Suffixe.
// Platzhalter: %j Kontext-Initialen, %v Band, %i Heft, %Y Jahr,
// %a Submission-ID, %g Galley-ID.
const DefaultSuffixPattern = "%j.v%vi%i.%a"

// GenerateDoiValue erzeugt den vollständigen DOI-Wert (Präfix/Suffix) für
// ein Pub-Objekt. galley ist nil, wenn der DOI für die Publikation selbst ist.
func GenerateDoiValue(jc *models.JournalContext, sub *models.Submission, pub *models.Publication, galley *models.Galley) string {
	pattern := jc.DoiSuffixPattern
	if pattern == "" {
		pattern = DefaultSuffixPattern
	}

	// Galley-DOIs brauchen einen eigenen Diskriminator im Suffix.
	if galley != nil && !strings.Contains(pattern, "%g") {
		pattern += ".g%g"
	}

	galleyID := ""
	if galley != nil {
		galleyID = strconv.FormatUint(uint64(galley.ID), 10)
	}

	suffix := strings.NewReplacer(
		"%j", strings.ToLower(jc.Initials),
		"%v", strconv.Itoa(pub.Volume),
		"%i", strconv.Itoa(pub.Issue),
		"%Y", strconv.Itoa(pub.Year),
		"%a", strconv.FormatUint(uint64(sub.ID), 10),
		"%g", galleyID,
	).Replace(pattern)

	return fmt.Sprintf("%s/%s", jc.DoiPrefix, suffix)
}
