package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"doi-hand/agency"
	"doi-hand/models"
)

// Enqueuer nimmt Hintergrund-Deposit-Jobs entgegen.
type Enqueuer interface {
	Enqueue(job DepositJob)
}

// DepositService koordiniert Export und Deposit gegenüber der Registration
// Agency. Export und Deposit sind all-or-nothing gegated (jede ungültige ID
// bricht die gesamte Operation ab, bevor etwas passiert); der eigentliche
// Agency-Aufruf beim Deposit läuft asynchron im Worker-Pool, und die DOIs
// wechseln optimistisch schon beim Einreihen nach Submitted — der
// deposit-all-Sweep ist der Recovery-Pfad für nie bestätigte Jobs.
type DepositService struct {
	dois      DoiStore
	subs      SubmissionStore
	contexts  ContextStore
	artifacts ArtifactStore
	agencies  map[string]agency.Agency
	queue     Enqueuer
	log       *zap.Logger
}

// NewDepositService erstellt eine neue Instanz des DepositService.
func NewDepositService(
	dois DoiStore,
	subs SubmissionStore,
	contexts ContextStore,
	artifacts ArtifactStore,
	agencies map[string]agency.Agency,
	queue Enqueuer,
	log *zap.Logger,
) *DepositService {
	return &DepositService{
		dois:      dois,
		subs:      subs,
		contexts:  contexts,
		artifacts: artifacts,
		agencies:  agencies,
		queue:     queue,
		log:       log,
	}
}

// ConfiguredAgency löst den Agency-Adapter des Kontexts auf. Keine
// konfigurierte (oder eine unbekannte) Agency ist ein Batch-Gate-Fehler.
func (s *DepositService) ConfiguredAgency(jc *models.JournalContext) (agency.Agency, error) {
	if jc.RegistrationAgency == "" {
		return nil, ErrNoAgencyConfigured
	}
	ag, ok := s.agencies[jc.RegistrationAgency]
	if !ok {
		return nil, fmt.Errorf("%w: Adapter %q nicht registriert", ErrNoAgencyConfigured, jc.RegistrationAgency)
	}
	return ag, nil
}

// Export erzeugt das Agency-XML für die Submissions und legt es als Artefakt
// in S3 ab. XML-Fehler brechen ohne Statusänderung ab; Export ist keine
// Statustransition.
func (s *DepositService) Export(ctx context.Context, jc *models.JournalContext, ids []uint, userID uint) (*models.ExportArtifact, error) {
	ag, err := s.ConfiguredAgency(jc)
	if err != nil {
		return nil, err
	}
	subs, err := s.gateSubmissions(ctx, jc, ids)
	if err != nil {
		return nil, err
	}
	pkgs, err := s.buildPackages(ctx, subs)
	if err != nil {
		return nil, err
	}

	payload, err := ag.ExportSubmissions(ctx, pkgs, jc)
	if err != nil {
		return nil, err
	}

	fileName := fmt.Sprintf("%s-%s-%s.xml", ag.Name(), jc.Initials, time.Now().UTC().Format("20060102T150405Z"))
	artifact, err := s.artifacts.SaveExport(ctx, jc, ag.Name(), fileName, payload, userID)
	if err != nil {
		return nil, err
	}

	s.log.Info("Export-Artefakt erzeugt",
		zap.Uint("context_id", jc.ID),
		zap.String("agency", ag.Name()),
		zap.Int("submissions", len(subs)),
		zap.String("file", fileName))
	return artifact, nil
}

// Deposit reiht für jede Submission einen Hintergrund-Job ein und setzt alle
// zugehörigen DOIs sofort auf Submitted. Der Übergang passiert bewusst beim
// Einreihen, nicht bei bestätigter Zustellung, damit der HTTP-Aufruf prompt
// zurückkehren kann.
func (s *DepositService) Deposit(ctx context.Context, jc *models.JournalContext, ids []uint) (int, error) {
	if _, err := s.ConfiguredAgency(jc); err != nil {
		return 0, err
	}
	subs, err := s.gateSubmissions(ctx, jc, ids)
	if err != nil {
		return 0, err
	}

	for _, sub := range subs {
		if err := s.enqueueSubmission(ctx, jc, sub.ID); err != nil {
			return 0, err
		}
	}
	return len(subs), nil
}

// DepositAll ist der kontextweite Sweep: jede veröffentlichte Submission mit
// noch nicht (oder veraltet) deponierten DOIs wird erneut eingereiht.
func (s *DepositService) DepositAll(ctx context.Context, jc *models.JournalContext) (int, error) {
	if _, err := s.ConfiguredAgency(jc); err != nil {
		return 0, err
	}
	subs, err := s.subs.ListNeedingDeposit(ctx, jc.ID)
	if err != nil {
		return 0, err
	}

	for _, sub := range subs {
		if err := s.enqueueSubmission(ctx, jc, sub.ID); err != nil {
			return 0, err
		}
	}

	s.log.Info("deposit-all-Sweep eingereiht",
		zap.Uint("context_id", jc.ID),
		zap.Int("submissions", len(subs)))
	return len(subs), nil
}

// enqueueSubmission reiht den Job ein und flippt die DOIs der Submission
// optimistisch nach Submitted.
func (s *DepositService) enqueueSubmission(ctx context.Context, jc *models.JournalContext, submissionID uint) error {
	s.queue.Enqueue(DepositJob{SubmissionID: submissionID, ContextID: jc.ID})

	dois, err := s.dois.ListBySubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	for _, d := range dois {
		if d.Status == models.DoiStatusSubmitted || d.Status == models.DoiStatusRegistered {
			continue
		}
		if _, err := s.dois.TransitionStatus(ctx, d.ID,
			[]models.DoiStatus{models.DoiStatusUnregistered, models.DoiStatusStale},
			models.DoiStatusSubmitted); err != nil {
			return err
		}
	}
	return nil
}

// RunDeposit ist der Job-Körper des Worker-Pools. Er ist wiederholungssicher
// (at-least-once): sind alle DOIs der Submission bereits Registered, ist der
// Lauf ein No-op; Agency-Fehler lassen den Status bei Submitted und werden
// vom späteren Sweep erneut aufgenommen, nie nach Unregistered zurückgerollt.
func (s *DepositService) RunDeposit(ctx context.Context, job DepositJob) error {
	log := s.log.With(zap.Uint("submission_id", job.SubmissionID), zap.Uint("context_id", job.ContextID))

	jc, err := s.contexts.Get(ctx, job.ContextID)
	if err != nil {
		return err
	}
	ag, err := s.ConfiguredAgency(jc)
	if err != nil {
		return err
	}

	sub, err := s.subs.Get(ctx, job.SubmissionID)
	if err != nil {
		return err
	}
	dois, err := s.dois.ListBySubmission(ctx, sub.ID)
	if err != nil {
		return err
	}
	if len(dois) == 0 {
		log.Warn("Deposit-Job ohne DOI-Einträge, wird übersprungen.")
		return nil
	}

	registered := 0
	for _, d := range dois {
		if d.Status == models.DoiStatusRegistered {
			registered++
		}
	}
	if registered == len(dois) {
		log.Debug("Alle DOIs bereits registriert, Job ist No-op.")
		return nil
	}

	result, err := ag.DepositSubmissions(ctx, []agency.DepositPackage{{Submission: *sub, Dois: dois}}, jc)
	if err != nil {
		return err
	}
	if result.HasErrors {
		log.Warn("Agency hat den Deposit abgelehnt, DOIs bleiben Submitted.",
			zap.String("response", result.ResponseMessage))
		return fmt.Errorf("agency-Deposit abgelehnt: %s", result.ResponseMessage)
	}

	log.Info("Deposit von der Agency angenommen.", zap.String("agency", ag.Name()))
	return nil
}

// gateSubmissions ist das Batch-Gate für Export und Deposit: jede ID muss
// existieren, zum Kontext gehören und veröffentlicht sein, sonst wird die
// gesamte Operation ohne Mutation abgelehnt.
func (s *DepositService) gateSubmissions(ctx context.Context, jc *models.JournalContext, ids []uint) ([]models.Submission, error) {
	subs, err := s.subs.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Submission, len(subs))
	for i := range subs {
		byID[subs[i].ID] = &subs[i]
	}

	out := make([]models.Submission, 0, len(ids))
	for _, id := range ids {
		sub, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: submission %d", ErrIncorrectContext, id)
		}
		if sub.ContextID != jc.ID {
			return nil, fmt.Errorf("%w: submission %d", ErrIncorrectContext, id)
		}
		if !sub.IsPublished() {
			return nil, fmt.Errorf("%w: submission %d", ErrSubmissionsNotPublished, id)
		}
		out = append(out, *sub)
	}
	return out, nil
}

// buildPackages bündelt Submissions mit ihren DOI-Einträgen für die Agency.
func (s *DepositService) buildPackages(ctx context.Context, subs []models.Submission) ([]agency.DepositPackage, error) {
	pkgs := make([]agency.DepositPackage, 0, len(subs))
	for _, sub := range subs {
		dois, err := s.dois.ListBySubmission(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, agency.DepositPackage{Submission: sub, Dois: dois})
	}
	return pkgs, nil
}
