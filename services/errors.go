package services

import "errors"

// FailureReason kennzeichnet, warum eine einzelne Submission in einer
// Batch-Operation gescheitert ist. Per-Item-Fehler sind Werte, keine
// Exceptions: sie werden gesammelt und neben den Erfolgen zurückgegeben.
type FailureReason string

const (
	ReasonSubmissionNotPublished FailureReason = "SubmissionNotPublished"
	ReasonIncorrectContext       FailureReason = "IncorrectSubmissionContext"
	ReasonIncorrectStaleStatus   FailureReason = "IncorrectStaleStatus"
	ReasonPubObjectNotFound      FailureReason = "PubObjectNotFound"
	ReasonUnsupportedType        FailureReason = "UnsupportedPubObjectType"
	ReasonSubmissionNotFound     FailureReason = "SubmissionNotFound"
)

// ActionFailure beschreibt einen Per-Item-Fehler einer Batch-Operation.
// Titel (falls bekannt) dient der Lesbarkeit für Operatoren.
type ActionFailure struct {
	SubmissionID uint          `json:"submission_id"`
	Title        string        `json:"title,omitempty"`
	Reason       FailureReason `json:"reason"`
}

// Batch-Gate-Fehler: die gesamte Operation wird abgelehnt, bevor irgendeine
// Mutation stattfindet.
var (
	ErrSubmissionsNotPublished = errors.New("nicht alle Submissions sind veröffentlicht")
	ErrIncorrectContext        = errors.New("Submission gehört nicht zum anfragenden Kontext")
	ErrNoPrefixConfigured      = errors.New("kein DOI-Präfix für den Kontext konfiguriert")
	ErrNoAgencyConfigured      = errors.New("keine Registration Agency für den Kontext konfiguriert")

	// ErrDoiNotFound meldet einen fehlenden DOI-Eintrag im Store.
	ErrDoiNotFound = errors.New("DOI-Eintrag nicht gefunden")
	// ErrDoiStillReferenced schützt referenzierte Einträge vor direkter Löschung.
	ErrDoiStillReferenced = errors.New("DOI-Eintrag wird noch referenziert")
	// ErrPubObjectNotFound meldet ein fehlendes oder fremdes Pub-Objekt.
	ErrPubObjectNotFound = errors.New("Pub-Objekt nicht gefunden")
	// ErrUnsupportedPubObjectType meldet einen unbekannten Pub-Objekt-Typ.
	ErrUnsupportedPubObjectType = errors.New("nicht unterstützter Pub-Objekt-Typ")
)
