package services

import (
	"context"
	"fmt"
	"sort"

	"doi-hand/models"
)

// fixture is an in-memory implementation of the store interfaces, shared by
// the service tests. All methods return copies so tests cannot mutate state
// behind the stores' back.
type fixture struct {
	nextDoiID uint
	contexts  map[uint]*models.JournalContext
	subs      map[uint]*models.Submission
	pubs      map[uint]*models.Publication
	galleys   map[uint]*models.Galley
	dois      map[uint]*models.Doi
}

func newFixture() *fixture {
	return &fixture{
		nextDoiID: 1000,
		contexts:  map[uint]*models.JournalContext{},
		subs:      map[uint]*models.Submission{},
		pubs:      map[uint]*models.Publication{},
		galleys:   map[uint]*models.Galley{},
		dois:      map[uint]*models.Doi{},
	}
}

// --- test data builders ---

func (f *fixture) addContext(id uint, initials, prefix, agencyName string) *models.JournalContext {
	jc := &models.JournalContext{
		ID:                 id,
		Name:               "Test Journal " + initials,
		Initials:           initials,
		DoiPrefix:          prefix,
		EnabledDoiTypes:    "publication,galley",
		RegistrationAgency: agencyName,
	}
	f.contexts[id] = jc
	return jc
}

func (f *fixture) addSubmission(id, contextID uint, status string) *models.Submission {
	sub := &models.Submission{ID: id, ContextID: contextID, Status: status}
	f.subs[id] = sub
	return sub
}

func (f *fixture) addPublication(id, submissionID uint, title string) *models.Publication {
	pub := &models.Publication{
		ID: id, SubmissionID: submissionID,
		Title: title, Year: 2026, Volume: 1, Issue: 2,
		URLPath: fmt.Sprintf("https://journal.example/article/%d", submissionID),
	}
	f.pubs[id] = pub
	return pub
}

func (f *fixture) addGalley(id, publicationID, submissionID uint, label string) *models.Galley {
	g := &models.Galley{ID: id, PublicationID: publicationID, SubmissionID: submissionID, Label: label}
	f.galleys[id] = g
	return g
}

func (f *fixture) addDoi(contextID uint, value string, status models.DoiStatus) *models.Doi {
	f.nextDoiID++
	d := &models.Doi{ID: f.nextDoiID, ContextID: contextID, DOI: value, Status: status}
	f.dois[d.ID] = d
	return d
}

func (f *fixture) doiStatus(id uint) models.DoiStatus {
	if d, ok := f.dois[id]; ok {
		return d.Status
	}
	return ""
}

// --- DoiStore ---

func (f *fixture) Get(ctx context.Context, id uint) (*models.Doi, error) {
	d, ok := f.dois[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrDoiNotFound, id)
	}
	cp := *d
	return &cp, nil
}

func (f *fixture) Create(ctx context.Context, contextID uint, value string) (*models.Doi, error) {
	d := f.addDoi(contextID, value, models.DoiStatusUnregistered)
	cp := *d
	return &cp, nil
}

func (f *fixture) Insert(ctx context.Context, d *models.Doi) error {
	f.nextDoiID++
	d.ID = f.nextDoiID
	cp := *d
	f.dois[d.ID] = &cp
	return nil
}

func (f *fixture) Delete(ctx context.Context, id uint) error {
	delete(f.dois, id)
	return nil
}

func (f *fixture) ListBySubmission(ctx context.Context, submissionID uint) ([]models.Doi, error) {
	seen := map[uint]bool{}
	var ids []uint
	for _, p := range f.pubs {
		if p.SubmissionID == submissionID && p.DoiID != nil && !seen[*p.DoiID] {
			seen[*p.DoiID] = true
			ids = append(ids, *p.DoiID)
		}
	}
	for _, g := range f.galleys {
		if g.SubmissionID == submissionID && g.DoiID != nil && !seen[*g.DoiID] {
			seen[*g.DoiID] = true
			ids = append(ids, *g.DoiID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []models.Doi
	for _, id := range ids {
		if d, ok := f.dois[id]; ok {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fixture) TransitionStatus(ctx context.Context, id uint, from []models.DoiStatus, to models.DoiStatus) (bool, error) {
	d, ok := f.dois[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if d.Status == s {
			d.Status = to
			return true, nil
		}
	}
	return false, nil
}

// --- SubmissionStore ---

func (f *fixture) assembled(sub *models.Submission) *models.Submission {
	cp := *sub
	cp.Publications = nil

	var pubIDs []uint
	for id, p := range f.pubs {
		if p.SubmissionID == sub.ID {
			pubIDs = append(pubIDs, id)
		}
	}
	sort.Slice(pubIDs, func(i, j int) bool { return pubIDs[i] < pubIDs[j] })

	for _, pid := range pubIDs {
		pub := *f.pubs[pid]
		pub.Galleys = nil
		var galleyIDs []uint
		for gid, g := range f.galleys {
			if g.PublicationID == pid {
				galleyIDs = append(galleyIDs, gid)
			}
		}
		sort.Slice(galleyIDs, func(i, j int) bool { return galleyIDs[i] < galleyIDs[j] })
		for _, gid := range galleyIDs {
			pub.Galleys = append(pub.Galleys, *f.galleys[gid])
		}
		cp.Publications = append(cp.Publications, pub)
	}
	return &cp
}

func (f *fixture) GetSubmission(ctx context.Context, id uint) (*models.Submission, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, fmt.Errorf("submission %d nicht gefunden", id)
	}
	return f.assembled(sub), nil
}

func (f *fixture) ListByIDs(ctx context.Context, ids []uint) ([]models.Submission, error) {
	var out []models.Submission
	for _, id := range ids {
		if sub, ok := f.subs[id]; ok {
			out = append(out, *f.assembled(sub))
		}
	}
	return out, nil
}

func (f *fixture) ListNeedingDeposit(ctx context.Context, contextID uint) ([]models.Submission, error) {
	var ids []uint
	for id, sub := range f.subs {
		if sub.ContextID != contextID || sub.Status != models.SubmissionStatusPublished {
			continue
		}
		dois, _ := f.ListBySubmission(ctx, id)
		for _, d := range dois {
			if d.Status.NeedsDeposit() {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []models.Submission
	for _, id := range ids {
		out = append(out, *f.assembled(f.subs[id]))
	}
	return out, nil
}

// --- ContextStore ---

func (f *fixture) GetContext(ctx context.Context, id uint) (*models.JournalContext, error) {
	jc, ok := f.contexts[id]
	if !ok {
		return nil, fmt.Errorf("kontext %d nicht gefunden", id)
	}
	cp := *jc
	return &cp, nil
}

// subStore / ctxStore adapt the fixture to the interfaces whose method
// names collide with DoiStore.Get.
type subStore struct{ f *fixture }

func (s subStore) Get(ctx context.Context, id uint) (*models.Submission, error) {
	return s.f.GetSubmission(ctx, id)
}
func (s subStore) ListByIDs(ctx context.Context, ids []uint) ([]models.Submission, error) {
	return s.f.ListByIDs(ctx, ids)
}
func (s subStore) ListNeedingDeposit(ctx context.Context, contextID uint) ([]models.Submission, error) {
	return s.f.ListNeedingDeposit(ctx, contextID)
}

type ctxStore struct{ f *fixture }

func (s ctxStore) Get(ctx context.Context, id uint) (*models.JournalContext, error) {
	return s.f.GetContext(ctx, id)
}

// --- OwnerHandles ---

type fxPubHandle struct{ f *fixture }

func (h fxPubHandle) Type() PubObjectType { return TypePublication }

func (h fxPubHandle) Get(ctx context.Context, id uint) (*PubObject, error) {
	p, ok := h.f.pubs[id]
	if !ok {
		return nil, fmt.Errorf("%w: publication %d", ErrPubObjectNotFound, id)
	}
	return &PubObject{ID: p.ID, SubmissionID: p.SubmissionID, DoiID: p.DoiID}, nil
}

func (h fxPubHandle) SetDoiID(ctx context.Context, id uint, doiID *uint) error {
	h.f.pubs[id].DoiID = doiID
	return nil
}

func (h fxPubHandle) CountDoiRefs(ctx context.Context, doiID uint) (int64, error) {
	var n int64
	for _, p := range h.f.pubs {
		if p.DoiID != nil && *p.DoiID == doiID {
			n++
		}
	}
	return n, nil
}

func (h fxPubHandle) ListBySubmission(ctx context.Context, submissionID uint) ([]PubObject, error) {
	var out []PubObject
	for _, p := range h.f.pubs {
		if p.SubmissionID == submissionID {
			out = append(out, PubObject{ID: p.ID, SubmissionID: p.SubmissionID, DoiID: p.DoiID})
		}
	}
	return out, nil
}

type fxGalleyHandle struct{ f *fixture }

func (h fxGalleyHandle) Type() PubObjectType { return TypeGalley }

func (h fxGalleyHandle) Get(ctx context.Context, id uint) (*PubObject, error) {
	g, ok := h.f.galleys[id]
	if !ok {
		return nil, fmt.Errorf("%w: galley %d", ErrPubObjectNotFound, id)
	}
	return &PubObject{ID: g.ID, SubmissionID: g.SubmissionID, DoiID: g.DoiID}, nil
}

func (h fxGalleyHandle) SetDoiID(ctx context.Context, id uint, doiID *uint) error {
	h.f.galleys[id].DoiID = doiID
	return nil
}

func (h fxGalleyHandle) CountDoiRefs(ctx context.Context, doiID uint) (int64, error) {
	var n int64
	for _, g := range h.f.galleys {
		if g.DoiID != nil && *g.DoiID == doiID {
			n++
		}
	}
	return n, nil
}

func (h fxGalleyHandle) ListBySubmission(ctx context.Context, submissionID uint) ([]PubObject, error) {
	var out []PubObject
	for _, g := range h.f.galleys {
		if g.SubmissionID == submissionID {
			out = append(out, PubObject{ID: g.ID, SubmissionID: g.SubmissionID, DoiID: g.DoiID})
		}
	}
	return out, nil
}
