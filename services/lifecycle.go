package services

import (
	"context"

	"go.uber.org/zap"

	"doi-hand/models"
)

// LifecycleService besitzt die Statusübergänge der DOI-Einträge und die
// Batch-Semantik der Management-Operationen. Alle Operationen arbeiten auf
// Submission-IDs: eine Submission kann mehrere DOI-Einträge besitzen, die
// gemeinsam bewegt werden. Per-Item-Fehler werden gesammelt und zurückgegeben;
// bereits erfolgreiche Übergänge werden nicht zurückgerollt. Nur Store-Fehler
// brechen die gesamte Operation hart ab.
type LifecycleService struct {
	dois     DoiStore
	subs     SubmissionStore
	resolver *Resolver
	log      *zap.Logger
}

// NewLifecycleService erstellt eine neue Instanz des LifecycleService.
func NewLifecycleService(dois DoiStore, subs SubmissionStore, resolver *Resolver, log *zap.Logger) *LifecycleService {
	return &LifecycleService{dois: dois, subs: subs, resolver: resolver, log: log}
}

// Assign vergibt DOIs für alle aktivierten Pub-Objekte der Submissions, die
// noch keinen tragen. Der Kontext braucht ein konfiguriertes Präfix (Batch-
// Gate); alles Weitere läuft pro Submission mit unabhängiger Fehlererfassung
// — eine kontextfremde Submission ist hier ein Per-Item-Fehler, kein Abbruch.
func (s *LifecycleService) Assign(ctx context.Context, jc *models.JournalContext, ids []uint) (int, []ActionFailure, error) {
	if jc.DoiPrefix == "" {
		return 0, nil, ErrNoPrefixConfigured
	}

	var failures []ActionFailure
	created := 0

	for _, id := range ids {
		sub, err := s.subs.Get(ctx, id)
		if err != nil {
			failures = append(failures, ActionFailure{SubmissionID: id, Reason: ReasonSubmissionNotFound})
			continue
		}
		if sub.ContextID != jc.ID {
			failures = append(failures, ActionFailure{SubmissionID: id, Title: sub.Title(), Reason: ReasonIncorrectContext})
			continue
		}

		n, err := s.assignForSubmission(ctx, jc, sub)
		if err != nil {
			return created, failures, err
		}
		created += n
	}

	s.log.Info("DOI-Assignment abgeschlossen",
		zap.Uint("context_id", jc.ID),
		zap.Int("submissions", len(ids)),
		zap.Int("created", created),
		zap.Int("failed", len(failures)))
	return created, failures, nil
}

// assignForSubmission legt fehlende DOI-Einträge für eine Submission an.
func (s *LifecycleService) assignForSubmission(ctx context.Context, jc *models.JournalContext, sub *models.Submission) (int, error) {
	created := 0

	mint := func(t PubObjectType, objectID uint, value string) error {
		handle, err := s.resolver.Resolve(t)
		if err != nil {
			return err
		}
		doi, err := s.dois.Create(ctx, jc.ID, value)
		if err != nil {
			return err
		}
		if err := handle.SetDoiID(ctx, objectID, &doi.ID); err != nil {
			return err
		}
		created++
		s.log.Debug("DOI vergeben",
			zap.Uint("submission_id", sub.ID),
			zap.String("pub_object_type", string(t)),
			zap.Uint("pub_object_id", objectID),
			zap.String("doi", value))
		return nil
	}

	for i := range sub.Publications {
		pub := &sub.Publications[i]
		if jc.HasDoiType(string(TypePublication)) && pub.DoiID == nil {
			if err := mint(TypePublication, pub.ID, GenerateDoiValue(jc, sub, pub, nil)); err != nil {
				return created, err
			}
		}
		if !jc.HasDoiType(string(TypeGalley)) {
			continue
		}
		for g := range pub.Galleys {
			galley := &pub.Galleys[g]
			if galley.DoiID != nil {
				continue
			}
			if err := mint(TypeGalley, galley.ID, GenerateDoiValue(jc, sub, pub, galley)); err != nil {
				return created, err
			}
		}
	}
	return created, nil
}

// MarkRegistered bestätigt die Registrierung: alle DOIs der gültigen
// Submissions wechseln nach Registered. Bereits registrierte Einträge sind
// ein No-op (Idempotenz).
func (s *LifecycleService) MarkRegistered(ctx context.Context, jc *models.JournalContext, ids []uint) ([]ActionFailure, error) {
	return s.transitionBatch(ctx, jc, ids, true, func(ctx context.Context, d *models.Doi) (*ActionFailure, error) {
		if d.Status == models.DoiStatusRegistered {
			return nil, nil
		}
		_, err := s.dois.TransitionStatus(ctx, d.ID,
			[]models.DoiStatus{models.DoiStatusUnregistered, models.DoiStatusSubmitted, models.DoiStatusStale},
			models.DoiStatusRegistered)
		return nil, err
	})
}

// MarkUnregistered ist der administrative Rollback: alle DOIs der gültigen
// Submissions wechseln zurück nach Unregistered.
func (s *LifecycleService) MarkUnregistered(ctx context.Context, jc *models.JournalContext, ids []uint) ([]ActionFailure, error) {
	return s.transitionBatch(ctx, jc, ids, false, func(ctx context.Context, d *models.Doi) (*ActionFailure, error) {
		if d.Status == models.DoiStatusUnregistered {
			return nil, nil
		}
		_, err := s.dois.TransitionStatus(ctx, d.ID,
			[]models.DoiStatus{models.DoiStatusSubmitted, models.DoiStatusRegistered, models.DoiStatusStale},
			models.DoiStatusUnregistered)
		return nil, err
	})
}

// MarkStale markiert Agency-seitig veraltete Einträge. Zulässig nur aus
// Submitted oder Registered; ein Unregistered-DOI liefert einen
// Per-Item-Fehler IncorrectStaleStatus.
func (s *LifecycleService) MarkStale(ctx context.Context, jc *models.JournalContext, ids []uint) ([]ActionFailure, error) {
	return s.transitionBatch(ctx, jc, ids, false, func(ctx context.Context, d *models.Doi) (*ActionFailure, error) {
		if d.Status != models.DoiStatusSubmitted && d.Status != models.DoiStatusRegistered {
			return &ActionFailure{Reason: ReasonIncorrectStaleStatus}, nil
		}
		ok, err := s.dois.TransitionStatus(ctx, d.ID,
			[]models.DoiStatus{models.DoiStatusSubmitted, models.DoiStatusRegistered},
			models.DoiStatusStale)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Status hat sich zwischen Lesen und CAS geändert.
			return &ActionFailure{Reason: ReasonIncorrectStaleStatus}, nil
		}
		return nil, nil
	})
}

// transitionBatch implementiert die gemeinsame Batch-Semantik der Mark-
// Operationen: Pre-Validierung der Submissions (Kontext, optional Published),
// danach unabhängige Anwendung des Übergangs auf jeden DOI jeder gültigen
// Submission. apply liefert einen Per-Item-Fehler (nil = Erfolg) oder einen
// harten Store-Fehler.
func (s *LifecycleService) transitionBatch(
	ctx context.Context,
	jc *models.JournalContext,
	ids []uint,
	requirePublished bool,
	apply func(context.Context, *models.Doi) (*ActionFailure, error),
) ([]ActionFailure, error) {
	subs, err := s.subs.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Submission, len(subs))
	for i := range subs {
		byID[subs[i].ID] = &subs[i]
	}

	var failures []ActionFailure
	var valid []*models.Submission

	// Pre-Validierungs-Pass: ungültige IDs scheitern, ohne dass für sie
	// irgendein Übergang versucht wird.
	for _, id := range ids {
		sub, ok := byID[id]
		if !ok {
			failures = append(failures, ActionFailure{SubmissionID: id, Reason: ReasonSubmissionNotFound})
			continue
		}
		if sub.ContextID != jc.ID {
			failures = append(failures, ActionFailure{SubmissionID: id, Title: sub.Title(), Reason: ReasonIncorrectContext})
			continue
		}
		if requirePublished && !sub.IsPublished() {
			failures = append(failures, ActionFailure{SubmissionID: id, Title: sub.Title(), Reason: ReasonSubmissionNotPublished})
			continue
		}
		valid = append(valid, sub)
	}

	// Per-Item-Anwendung: Fehler einzelner DOIs kippen den Batch nicht.
	for _, sub := range valid {
		dois, err := s.dois.ListBySubmission(ctx, sub.ID)
		if err != nil {
			return failures, err
		}
		for i := range dois {
			fail, err := apply(ctx, &dois[i])
			if err != nil {
				return failures, err
			}
			if fail != nil {
				fail.SubmissionID = sub.ID
				fail.Title = sub.Title()
				failures = append(failures, *fail)
			}
		}
	}

	return failures, nil
}
