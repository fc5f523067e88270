package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"doi-hand/models"
)

func newLifecycleFixture(t *testing.T) (*fixture, *LifecycleService) {
	t.Helper()
	f := newFixture()
	resolver := NewResolver(f, zap.NewNop(), fxPubHandle{f}, fxGalleyHandle{f})
	svc := NewLifecycleService(f, subStore{f}, resolver, zap.NewNop())
	return f, svc
}

// linkNewDoi mints a DOI record and attaches it to the publication.
func linkNewDoi(f *fixture, pub *models.Publication, status models.DoiStatus) *models.Doi {
	d := f.addDoi(f.subs[pub.SubmissionID].ContextID, "10.1234/x", status)
	f.pubs[pub.ID].DoiID = &d.ID
	return d
}

func TestAssignRequiresPrefix(t *testing.T) {
	f, svc := newLifecycleFixture(t)
	jc := f.addContext(1, "jcs", "", "crossref")

	_, _, err := svc.Assign(context.Background(), jc, []uint{1})
	require.ErrorIs(t, err, ErrNoPrefixConfigured)
}

func TestAssignMintsForEnabledTypes(t *testing.T) {
	f, svc := newLifecycleFixture(t)
	jc := f.addContext(1, "jcs", "10.1234", "crossref")
	f.addSubmission(5, 1, models.SubmissionStatusPublished)
	pub := f.addPublication(50, 5, "Curcumin and Memory")
	f.addGalley(71, 50, 5, "PDF")

	created, failures, err := svc.Assign(context.Background(), jc, []uint{5})
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, 2, created)

	require.NotNil(t, f.pubs[pub.ID].DoiID)
	require.NotNil(t, f.galleys[71].DoiID)

	pubDoi := f.dois[*f.pubs[pub.ID].DoiID]
	galleyDoi := f.dois[*f.galleys[71].DoiID]
	assert.Equal(t, "10.1234/jcs.v1i2.5", pubDoi.DOI)
	assert.Equal(t, "10.1234/jcs.v1i2.5.g71", galleyDoi.DOI)
	assert.Equal(t, models.DoiStatusUnregistered, pubDoi.Status)
	assert.Equal(t, models.DoiStatusUnregistered, galleyDoi.Status)
}

func TestAssignSkipsObjectsWithExistingDoi(t *testing.T) {
	f, svc := newLifecycleFixture(t)
	jc := f.addContext(1, "jcs", "10.1234", "crossref")
	f.addSubmission(5, 1, models.SubmissionStatusPublished)
	pub := f.addPublication(50, 5, "Already Assigned")
	existing := linkNewDoi(f, pub, models.DoiStatusRegistered)

	created, failures, err := svc.Assign(context.Background(), jc, []uint{5})
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, 0, created)
	assert.Equal(t, existing.ID, *f.pubs[50].DoiID)
}

func TestAssignCollectsPerItemFailures(t *testing.T) {
	f, svc := newLifecycleFixture(t)
	jc := f.addContext(1, "jcs", "10.1234", "crossref")
	f.addContext(2, "other", "10.9999", "datacite")
	f.addSubmission(5, 1, models.SubmissionStatusPublished)
	f.addPublication(50, 5, "Valid")
	f.addSubmission(6, 2, models.SubmissionStatusPublished)
	f.addPublication(60, 6, "Foreign Context")

	created, failures, err := svc.Assign(context.Background(), jc, []uint{5, 6, 99})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	require.Len(t, failures, 2)
	assert.Equal(t, uint(6), failures[0].SubmissionID)
	assert.Equal(t, ReasonIncorrectContext, failures[0].Reason)
	assert.Equal(t, uint(99), failures[1].SubmissionID)
	assert.Equal(t, ReasonSubmissionNotFound, failures[1].Reason)
}

func TestMarkRegisteredIsIdempotent(t *testing.T) {
	f, svc := newLifecycleFixture(t)
	jc := f.addContext(1, "jcs", "10.1234", "crossref")
	f.addSubmission(5, 1, models.SubmissionStatusPublished)
	pub := f.addPublication(50, 5, "Twice Registered")
	d := linkNewDoi(f, pub, models.DoiStatusSubmitted)

	for i := 0; i < 2; i++ {
		failures, err := svc.MarkRegistered(context.Background(), jc, []uint{5})
		require.NoError(t, err)
		assert.Empty(t, failures)
		assert.Equal(t, models.DoiStatusRegistered, f.doiStatus(d.ID))
	}
}

func TestMarkRegisteredRequiresPublished(t *testing.T) {
	f, svc := newLifecycleFixture(t)
	jc := f.addContext(1, "jcs", "10.1234", "crossref")
	f.addSubmission(5, 1, models.SubmissionStatusQueued)
	pub := f.addPublication(50, 5, "Still Queued")
	d := linkNewDoi(f, pub, models.DoiStatusSubmitted)

	failures, err := svc.MarkRegistered(context.Background(), jc, []uint{5})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, ReasonSubmissionNotPublished, failures[0].Reason)
	assert.Equal(t, models.DoiStatusSubmitted, f.doiStatus(d.ID))
}

func TestMarkOperationsEnforceContextIsolation(t *testing.T) {
	f, svc := newLifecycleFixture(t)
	jcA := f.addContext(1, "jcs", "10.1234", "crossref")
	f.addContext(2, "other", "10.9999", "datacite")
	f.addSubmission(6, 2, models.SubmissionStatusPublished)
	pub := f.addPublication(60, 6, "Belongs Elsewhere")
	d := linkNewDoi(f, pub, models.DoiStatusSubmitted)

	failures, err := svc.MarkRegistered(context.Background(), jcA, []uint{6})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, uint(6), failures[0].SubmissionID)
	assert.Equal(t, ReasonIncorrectContext, failures[0].Reason)
	assert.Equal(t, models.DoiStatusSubmitted, f.doiStatus(d.ID), "foreign context must never be mutated")
}

func TestMarkUnregisteredRollsBack(t *testing.T) {
	f, svc := newLifecycleFixture(t)
	jc := f.addContext(1, "jcs", "10.1234", "crossref")
	f.addSubmission(5, 1, models.SubmissionStatusPublished)
	pub := f.addPublication(50, 5, "Rollback")
	d := linkNewDoi(f, pub, models.DoiStatusRegistered)

	failures, err := svc.MarkUnregistered(context.Background(), jc, []uint{5})
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, models.DoiStatusUnregistered, f.doiStatus(d.ID))
}

func TestMarkStaleRequiresSubmittedOrRegistered(t *testing.T) {
	f, svc := newLifecycleFixture(t)
	jc := f.addContext(1, "jcs", "10.1234", "crossref")

	f.addSubmission(5, 1, models.SubmissionStatusPublished)
	fresh := linkNewDoi(f, f.addPublication(50, 5, "Never Deposited"), models.DoiStatusUnregistered)

	f.addSubmission(6, 1, models.SubmissionStatusPublished)
	submitted := linkNewDoi(f, f.addPublication(60, 6, "In Flight"), models.DoiStatusSubmitted)

	f.addSubmission(7, 1, models.SubmissionStatusPublished)
	registered := linkNewDoi(f, f.addPublication(70, 7, "Confirmed"), models.DoiStatusRegistered)

	failures, err := svc.MarkStale(context.Background(), jc, []uint{5, 6, 7})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, uint(5), failures[0].SubmissionID)
	assert.Equal(t, ReasonIncorrectStaleStatus, failures[0].Reason)

	assert.Equal(t, models.DoiStatusUnregistered, f.doiStatus(fresh.ID))
	assert.Equal(t, models.DoiStatusStale, f.doiStatus(submitted.ID))
	assert.Equal(t, models.DoiStatusStale, f.doiStatus(registered.ID))
}

// The batch must keep going after a per-item failure: valid submissions on
// either side of an invalid one are still transitioned.
func TestTransitionBatchPartialFailure(t *testing.T) {
	f, svc := newLifecycleFixture(t)
	jc := f.addContext(1, "jcs", "10.1234", "crossref")
	f.addContext(2, "other", "10.9999", "datacite")

	f.addSubmission(1, 1, models.SubmissionStatusPublished)
	d1 := linkNewDoi(f, f.addPublication(10, 1, "First"), models.DoiStatusSubmitted)

	f.addSubmission(2, 2, models.SubmissionStatusPublished)
	d2 := linkNewDoi(f, f.addPublication(20, 2, "Foreign"), models.DoiStatusSubmitted)

	f.addSubmission(3, 1, models.SubmissionStatusPublished)
	d3 := linkNewDoi(f, f.addPublication(30, 3, "Third"), models.DoiStatusSubmitted)

	failures, err := svc.MarkRegistered(context.Background(), jc, []uint{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, uint(2), failures[0].SubmissionID)

	assert.Equal(t, models.DoiStatusRegistered, f.doiStatus(d1.ID))
	assert.Equal(t, models.DoiStatusSubmitted, f.doiStatus(d2.ID))
	assert.Equal(t, models.DoiStatusRegistered, f.doiStatus(d3.ID))
}
