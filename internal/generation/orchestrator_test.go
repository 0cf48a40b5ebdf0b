package generation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-app/internal/credits"
	"persona-app/internal/domain/generations"
	"persona-app/internal/domain/personas"
	"persona-app/internal/infra/aiprovider"
	"persona-app/pkg/logger"
)

const testModelID = "test-image-model"

type fakeLedger struct {
	balance         int
	debits          []int
	failDebit       bool
	balanceReads    int
	failBalanceFrom int
}

func (l *fakeLedger) Balance(ctx context.Context, userID uint) (int, error) {
	l.balanceReads++
	if l.failBalanceFrom > 0 && l.balanceReads >= l.failBalanceFrom {
		return 0, errors.New("storage unavailable")
	}
	return l.balance, nil
}

func (l *fakeLedger) Debit(ctx context.Context, userID uint, amount int) error {
	if l.failDebit || l.balance < amount {
		return &credits.InsufficientCreditsError{Required: amount, Available: l.balance}
	}
	l.balance -= amount
	l.debits = append(l.debits, amount)
	return nil
}

type fakeObjects struct {
	uploads    int
	deleted    []string
	failUpload bool
}

func (o *fakeObjects) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if o.failUpload {
		return "", errors.New("bucket unavailable")
	}
	o.uploads++
	return fmt.Sprintf("https://cdn.example.com/img-%d.png", o.uploads), nil
}

func (o *fakeObjects) Delete(ctx context.Context, publicURL string) error {
	o.deleted = append(o.deleted, publicURL)
	return nil
}

type fakeStore struct {
	personas map[uint]*personas.Persona
	created  []*generations.Generation
	deleted  []uint
	nextID   uint
}

func (s *fakeStore) PersonaForUser(ctx context.Context, id, userID uint) (*personas.Persona, error) {
	p, ok := s.personas[id]
	if !ok || p.UserID != userID {
		return nil, nil
	}
	return p, nil
}

func (s *fakeStore) CreateGeneration(ctx context.Context, g *generations.Generation) error {
	s.nextID++
	g.ID = s.nextID
	s.created = append(s.created, g)
	return nil
}

func (s *fakeStore) DeleteGeneration(ctx context.Context, id uint) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type fakeProvider struct {
	calls   int
	failOn  map[int]bool
	failAll bool
}

func (p *fakeProvider) Name() string { return testModelID }

func (p *fakeProvider) Generate(ctx context.Context, req aiprovider.Request) ([]byte, error) {
	p.calls++
	if p.failAll || p.failOn[p.calls] {
		return nil, errors.New("provider timeout")
	}
	return []byte("image-bytes"), nil
}

type fixture struct {
	orch     *Orchestrator
	ledger   *fakeLedger
	objects  *fakeObjects
	store    *fakeStore
	provider *fakeProvider
}

func newFixture(balance int) *fixture {
	ledger := &fakeLedger{balance: balance}
	objects := &fakeObjects{}
	store := &fakeStore{personas: map[uint]*personas.Persona{}}
	provider := &fakeProvider{failOn: map[int]bool{}}

	orch := NewOrchestrator(
		ledger,
		objects,
		store,
		aiprovider.Registry{testModelID: provider},
		map[string]int{testModelID: 10},
		logger.New(),
	)
	return &fixture{orch: orch, ledger: ledger, objects: objects, store: store, provider: provider}
}

func baseRequest(count int) Request {
	return Request{
		UserID:      7,
		Prompt:      "a professional headshot",
		AIModelID:   testModelID,
		AspectRatio: "1:1",
		Resolution:  "1K",
		Count:       count,
	}
}

func TestGenerateInsufficientCreditsPreCheck(t *testing.T) {
	f := newFixture(25)

	_, err := f.orch.Generate(context.Background(), baseRequest(3))

	var insufficient *credits.InsufficientCreditsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 30, insufficient.Required)
	assert.Equal(t, 25, insufficient.Available)

	// No provider spend, no rows, balance untouched.
	assert.Zero(t, f.provider.calls)
	assert.Empty(t, f.store.created)
	assert.Equal(t, 25, f.ledger.balance)
}

func TestGeneratePartialFailureChargesOnlySuccesses(t *testing.T) {
	f := newFixture(100)
	f.provider.failOn[2] = true

	result, err := f.orch.Generate(context.Background(), baseRequest(3))
	require.NoError(t, err)

	assert.Len(t, result.Images, 2)
	assert.Equal(t, 20, result.CreditsUsed)
	assert.Equal(t, 80, result.RemainingCredits)
	assert.Equal(t, 80, f.ledger.balance)
	assert.Len(t, f.store.created, 2)
	for _, g := range f.store.created {
		assert.Equal(t, 10, g.CreditsCost)
	}
}

func TestGenerateAllFailedLeavesLedgerUntouched(t *testing.T) {
	f := newFixture(100)
	f.provider.failAll = true

	_, err := f.orch.Generate(context.Background(), baseRequest(3))
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, 100, f.ledger.balance)
	assert.Empty(t, f.ledger.debits)
	assert.Empty(t, f.store.created)
}

func TestGenerateRejectsMissingInputModes(t *testing.T) {
	f := newFixture(100)

	req := baseRequest(1)
	req.Prompt = ""

	_, err := f.orch.Generate(context.Background(), req)

	var invalid *InvalidRequestError
	require.True(t, errors.As(err, &invalid))
	assert.Zero(t, f.provider.calls)
}

func TestGenerateAcceptsReferenceImageWithOptions(t *testing.T) {
	f := newFixture(100)

	req := baseRequest(1)
	req.Prompt = ""
	req.ReferenceImage = []byte("selfie")
	req.ReferenceOptions = []string{"studio lighting", "suit"}

	result, err := f.orch.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, result.Images, 1)
	assert.Contains(t, result.Images[0].Prompt, "studio lighting")
}

func TestGenerateRejectsUnknownModel(t *testing.T) {
	f := newFixture(100)

	req := baseRequest(1)
	req.AIModelID = "nonexistent-model"

	_, err := f.orch.Generate(context.Background(), req)

	var invalid *InvalidRequestError
	require.True(t, errors.As(err, &invalid))
}

func TestGenerateRejectsNegativeCount(t *testing.T) {
	f := newFixture(100)

	_, err := f.orch.Generate(context.Background(), baseRequest(-1))

	var invalid *InvalidRequestError
	require.True(t, errors.As(err, &invalid))
	assert.Zero(t, f.provider.calls)
	assert.Equal(t, 100, f.ledger.balance)
}

func TestGenerateRejectsOversizedBatch(t *testing.T) {
	f := newFixture(1000)

	_, err := f.orch.Generate(context.Background(), baseRequest(MaxBatchSize+1))

	var invalid *InvalidRequestError
	require.True(t, errors.As(err, &invalid))
	assert.Zero(t, f.provider.calls)
}

func TestGeneratePersonaMustBeReady(t *testing.T) {
	f := newFixture(100)
	personaID := uint(3)
	f.store.personas[personaID] = &personas.Persona{
		ID:     personaID,
		UserID: 7,
		Name:   "Alex",
		Type:   personas.TypePerson,
		Status: personas.StatusTraining,
	}

	req := baseRequest(1)
	req.PersonaID = &personaID

	_, err := f.orch.Generate(context.Background(), req)
	assert.ErrorIs(t, err, ErrModelNotReady)
	assert.Zero(t, f.provider.calls)
}

func TestGeneratePersonaOwnedByAnotherUser(t *testing.T) {
	f := newFixture(100)
	personaID := uint(3)
	f.store.personas[personaID] = &personas.Persona{
		ID:     personaID,
		UserID: 99,
		Status: personas.StatusReady,
	}

	req := baseRequest(1)
	req.PersonaID = &personaID

	_, err := f.orch.Generate(context.Background(), req)
	assert.ErrorIs(t, err, ErrModelNotReady)
}

func TestGenerateReadyPersonaInfluencesPrompt(t *testing.T) {
	f := newFixture(100)
	personaID := uint(3)
	f.store.personas[personaID] = &personas.Persona{
		ID:     personaID,
		UserID: 7,
		Name:   "Alex",
		Type:   personas.TypePerson,
		Status: personas.StatusReady,
	}

	req := baseRequest(1)
	req.PersonaID = &personaID

	result, err := f.orch.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, result.Images[0].Prompt, "Alex")
	require.Len(t, f.store.created, 1)
	assert.Equal(t, &personaID, f.store.created[0].PersonaID)
}

func TestGenerateDebitFailureWithdrawsArtifacts(t *testing.T) {
	f := newFixture(100)
	f.ledger.failDebit = true

	_, err := f.orch.Generate(context.Background(), baseRequest(2))
	require.Error(t, err)

	// Nothing is delivered without being charged for: all rows and objects
	// created during the batch are withdrawn.
	assert.Len(t, f.store.deleted, 2)
	assert.Len(t, f.objects.deleted, 2)
}

func TestGenerateReportsBalanceWhenPostDebitReadFails(t *testing.T) {
	f := newFixture(100)
	// First read is the pre-check; the read after the debit fails.
	f.ledger.failBalanceFrom = 2

	result, err := f.orch.Generate(context.Background(), baseRequest(2))
	require.NoError(t, err)

	assert.Equal(t, 20, result.CreditsUsed)
	assert.Equal(t, 80, result.RemainingCredits)
}

func TestEditUnreachableReferenceFailsBeforeProvider(t *testing.T) {
	f := newFixture(100)
	f.orch.fetch = func(ctx context.Context, url string) ([]byte, error) {
		return nil, errors.New("404 not found")
	}

	_, err := f.orch.Edit(context.Background(), EditRequest{
		UserID:            7,
		Instruction:       "make the sky purple",
		ReferenceImageURL: "https://cdn.example.com/missing.png",
		AIModelID:         testModelID,
	})

	var invalid *InvalidRequestError
	require.True(t, errors.As(err, &invalid))
	assert.Zero(t, f.provider.calls)
	assert.Equal(t, 100, f.ledger.balance)
}

func TestEditProducesSingleTaggedGeneration(t *testing.T) {
	f := newFixture(100)
	f.orch.fetch = func(ctx context.Context, url string) ([]byte, error) {
		return []byte("source-image"), nil
	}

	result, err := f.orch.Edit(context.Background(), EditRequest{
		UserID:            7,
		Instruction:       "make the sky purple",
		ReferenceImageURL: "https://cdn.example.com/img-1.png",
		AIModelID:         testModelID,
		AspectRatio:       "1:1",
	})
	require.NoError(t, err)

	require.Len(t, result.Images, 1)
	assert.Equal(t, "[edit] make the sky purple", result.Images[0].Prompt)
	assert.Equal(t, 10, result.CreditsUsed)
	assert.Equal(t, 90, result.RemainingCredits)
}
