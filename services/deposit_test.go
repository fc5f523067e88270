package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"doi-hand/agency"
	"doi-hand/models"
)

type fakeAgency struct {
	name         string
	exportErr    error
	depositErr   error
	result       agency.Result
	exportCalls  int
	depositCalls int
	lastPkgs     []agency.DepositPackage
}

func (a *fakeAgency) Name() string { return a.name }

func (a *fakeAgency) ExportSubmissions(ctx context.Context, pkgs []agency.DepositPackage, jc *models.JournalContext) ([]byte, error) {
	a.exportCalls++
	a.lastPkgs = pkgs
	if a.exportErr != nil {
		return nil, a.exportErr
	}
	return []byte("<batch/>"), nil
}

func (a *fakeAgency) DepositSubmissions(ctx context.Context, pkgs []agency.DepositPackage, jc *models.JournalContext) (*agency.Result, error) {
	a.depositCalls++
	a.lastPkgs = pkgs
	if a.depositErr != nil {
		return nil, a.depositErr
	}
	res := a.result
	return &res, nil
}

type recordingArtifacts struct {
	saved []models.ExportArtifact
}

func (r *recordingArtifacts) SaveExport(ctx context.Context, jc *models.JournalContext, agencyName, fileName string, data []byte, userID uint) (*models.ExportArtifact, error) {
	artifact := models.ExportArtifact{
		ID: uint(len(r.saved) + 1), ContextID: jc.ID, UserID: userID,
		Agency: agencyName, FileName: fileName,
	}
	r.saved = append(r.saved, artifact)
	return &artifact, nil
}

type recordingQueue struct {
	jobs []DepositJob
}

func (q *recordingQueue) Enqueue(job DepositJob) { q.jobs = append(q.jobs, job) }

type depositHarness struct {
	f         *fixture
	ag        *fakeAgency
	artifacts *recordingArtifacts
	queue     *recordingQueue
	svc       *DepositService
}

func newDepositHarness(t *testing.T) *depositHarness {
	t.Helper()
	h := &depositHarness{
		f:         newFixture(),
		ag:        &fakeAgency{name: "crossref"},
		artifacts: &recordingArtifacts{},
		queue:     &recordingQueue{},
	}
	h.svc = NewDepositService(
		h.f, subStore{h.f}, ctxStore{h.f}, h.artifacts,
		map[string]agency.Agency{"crossref": h.ag},
		h.queue, zap.NewNop(),
	)
	return h
}

func (h *depositHarness) seedSubmission(subID uint, status models.DoiStatus) *models.Doi {
	h.f.addSubmission(subID, 1, models.SubmissionStatusPublished)
	pub := h.f.addPublication(subID*10, subID, "Sub")
	d := h.f.addDoi(1, "10.1234/jcs.x", status)
	h.f.pubs[pub.ID].DoiID = &d.ID
	return d
}

func TestConfiguredAgency(t *testing.T) {
	h := newDepositHarness(t)

	_, err := h.svc.ConfiguredAgency(&models.JournalContext{})
	require.ErrorIs(t, err, ErrNoAgencyConfigured)

	_, err = h.svc.ConfiguredAgency(&models.JournalContext{RegistrationAgency: "medra"})
	require.ErrorIs(t, err, ErrNoAgencyConfigured)

	ag, err := h.svc.ConfiguredAgency(&models.JournalContext{RegistrationAgency: "crossref"})
	require.NoError(t, err)
	assert.Equal(t, "crossref", ag.Name())
}

func TestExportSavesArtifact(t *testing.T) {
	h := newDepositHarness(t)
	jc := h.f.addContext(1, "jcs", "10.1234", "crossref")
	h.seedSubmission(5, models.DoiStatusUnregistered)

	artifact, err := h.svc.Export(context.Background(), jc, []uint{5}, 42)
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Equal(t, uint(42), artifact.UserID)
	assert.Equal(t, "crossref", artifact.Agency)
	assert.Contains(t, artifact.FileName, "crossref-jcs-")
	assert.Equal(t, 1, h.ag.exportCalls)
	require.Len(t, h.ag.lastPkgs, 1)
	assert.Len(t, h.ag.lastPkgs[0].Dois, 1)
}

// One invalid id rejects the whole export: no agency call, no artifact.
func TestExportGateIsAllOrNothing(t *testing.T) {
	h := newDepositHarness(t)
	jc := h.f.addContext(1, "jcs", "10.1234", "crossref")
	h.seedSubmission(5, models.DoiStatusUnregistered)
	h.f.addSubmission(6, 1, models.SubmissionStatusQueued)

	_, err := h.svc.Export(context.Background(), jc, []uint{5, 6}, 42)
	require.ErrorIs(t, err, ErrSubmissionsNotPublished)
	assert.Zero(t, h.ag.exportCalls)
	assert.Empty(t, h.artifacts.saved)
}

func TestExportRejectsForeignContext(t *testing.T) {
	h := newDepositHarness(t)
	jc := h.f.addContext(1, "jcs", "10.1234", "crossref")
	h.f.addContext(2, "other", "10.9999", "crossref")
	h.f.addSubmission(6, 2, models.SubmissionStatusPublished)

	_, err := h.svc.Export(context.Background(), jc, []uint{6}, 42)
	require.ErrorIs(t, err, ErrIncorrectContext)
	assert.Zero(t, h.ag.exportCalls)
}

func TestExportErrorLeavesStatusUntouched(t *testing.T) {
	h := newDepositHarness(t)
	jc := h.f.addContext(1, "jcs", "10.1234", "crossref")
	d := h.seedSubmission(5, models.DoiStatusUnregistered)
	h.ag.exportErr = errors.New("schema violation")

	_, err := h.svc.Export(context.Background(), jc, []uint{5}, 42)
	require.Error(t, err)
	assert.Equal(t, models.DoiStatusUnregistered, h.f.doiStatus(d.ID))
	assert.Empty(t, h.artifacts.saved)
}

// Deposit enqueues one job per submission and flips the records to Submitted
// right away, before any agency call happened.
func TestDepositEnqueuesAndFlipsOptimistically(t *testing.T) {
	h := newDepositHarness(t)
	jc := h.f.addContext(1, "jcs", "10.1234", "crossref")
	fresh := h.seedSubmission(5, models.DoiStatusUnregistered)
	stale := h.seedSubmission(6, models.DoiStatusStale)

	n, err := h.svc.Deposit(context.Background(), jc, []uint{5, 6})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, h.queue.jobs, 2)
	assert.Equal(t, DepositJob{SubmissionID: 5, ContextID: 1}, h.queue.jobs[0])
	assert.Equal(t, DepositJob{SubmissionID: 6, ContextID: 1}, h.queue.jobs[1])

	assert.Equal(t, models.DoiStatusSubmitted, h.f.doiStatus(fresh.ID))
	assert.Equal(t, models.DoiStatusSubmitted, h.f.doiStatus(stale.ID))
	assert.Zero(t, h.ag.depositCalls, "agency call runs in the worker, not here")
}

func TestDepositRequiresAgency(t *testing.T) {
	h := newDepositHarness(t)
	jc := h.f.addContext(1, "jcs", "10.1234", "")
	h.seedSubmission(5, models.DoiStatusUnregistered)

	_, err := h.svc.Deposit(context.Background(), jc, []uint{5})
	require.ErrorIs(t, err, ErrNoAgencyConfigured)
	assert.Empty(t, h.queue.jobs)
}

// The sweep only picks up published submissions that still carry at least one
// Unregistered or Stale record.
func TestDepositAllSweepSelection(t *testing.T) {
	h := newDepositHarness(t)
	jc := h.f.addContext(1, "jcs", "10.1234", "crossref")
	h.seedSubmission(5, models.DoiStatusUnregistered)
	h.seedSubmission(6, models.DoiStatusStale)
	h.seedSubmission(7, models.DoiStatusRegistered)
	h.seedSubmission(8, models.DoiStatusSubmitted)

	n, err := h.svc.DepositAll(context.Background(), jc)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, h.queue.jobs, 2)
	assert.Equal(t, uint(5), h.queue.jobs[0].SubmissionID)
	assert.Equal(t, uint(6), h.queue.jobs[1].SubmissionID)
}

func TestRunDepositCallsAgency(t *testing.T) {
	h := newDepositHarness(t)
	h.f.addContext(1, "jcs", "10.1234", "crossref")
	d := h.seedSubmission(5, models.DoiStatusSubmitted)

	err := h.svc.RunDeposit(context.Background(), DepositJob{SubmissionID: 5, ContextID: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, h.ag.depositCalls)
	require.Len(t, h.ag.lastPkgs, 1)
	assert.Equal(t, d.ID, h.ag.lastPkgs[0].Dois[0].ID)
}

// A replayed job where everything is already Registered must not hit the
// agency again (at-least-once delivery).
func TestRunDepositNoopWhenAllRegistered(t *testing.T) {
	h := newDepositHarness(t)
	h.f.addContext(1, "jcs", "10.1234", "crossref")
	h.seedSubmission(5, models.DoiStatusRegistered)

	err := h.svc.RunDeposit(context.Background(), DepositJob{SubmissionID: 5, ContextID: 1})
	require.NoError(t, err)
	assert.Zero(t, h.ag.depositCalls)
}

// An agency rejection surfaces as an error so the dispatcher retries; the
// records stay Submitted for the sweep, nothing is rolled back.
func TestRunDepositAgencyRejectionKeepsSubmitted(t *testing.T) {
	h := newDepositHarness(t)
	h.f.addContext(1, "jcs", "10.1234", "crossref")
	d := h.seedSubmission(5, models.DoiStatusSubmitted)
	h.ag.result = agency.Result{HasErrors: true, ResponseMessage: "invalid metadata"}

	err := h.svc.RunDeposit(context.Background(), DepositJob{SubmissionID: 5, ContextID: 1})
	require.Error(t, err)
	assert.Equal(t, models.DoiStatusSubmitted, h.f.doiStatus(d.ID))
}

// Full round trip: assign, deposit, confirm, mark stale, sweep again.
func TestLifecycleRoundTrip(t *testing.T) {
	h := newDepositHarness(t)
	f := h.f
	jc := f.addContext(1, "jcs", "10.1234", "crossref")
	f.addSubmission(5, 1, models.SubmissionStatusPublished)
	f.addPublication(50, 5, "Round Trip")

	resolver := NewResolver(f, zap.NewNop(), fxPubHandle{f}, fxGalleyHandle{f})
	lifecycle := NewLifecycleService(f, subStore{f}, resolver, zap.NewNop())

	created, failures, err := lifecycle.Assign(context.Background(), jc, []uint{5})
	require.NoError(t, err)
	require.Empty(t, failures)
	require.Equal(t, 1, created)
	doiID := *f.pubs[50].DoiID
	require.Equal(t, models.DoiStatusUnregistered, f.doiStatus(doiID))

	_, err = h.svc.Deposit(context.Background(), jc, []uint{5})
	require.NoError(t, err)
	require.Equal(t, models.DoiStatusSubmitted, f.doiStatus(doiID))

	require.NoError(t, h.svc.RunDeposit(context.Background(), h.queue.jobs[0]))

	failures, err = lifecycle.MarkRegistered(context.Background(), jc, []uint{5})
	require.NoError(t, err)
	require.Empty(t, failures)
	require.Equal(t, models.DoiStatusRegistered, f.doiStatus(doiID))

	failures, err = lifecycle.MarkStale(context.Background(), jc, []uint{5})
	require.NoError(t, err)
	require.Empty(t, failures)
	require.Equal(t, models.DoiStatusStale, f.doiStatus(doiID))

	n, err := h.svc.DepositAll(context.Background(), jc)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.DoiStatusSubmitted, f.doiStatus(doiID))
}
