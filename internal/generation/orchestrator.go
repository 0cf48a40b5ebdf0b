package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"persona-app/internal/domain/generations"
	"persona-app/internal/domain/personas"
	"persona-app/internal/infra/aiprovider"

	"persona-app/internal/credits"
)

// MaxBatchSize is the most images one request may ask for, matching the
// provider-side cap.
const MaxBatchSize = 4

// ErrGenerationFailed means every image in the batch failed. Nothing was
// charged and no rows were written.
var ErrGenerationFailed = errors.New("image generation failed for the entire batch")

// ErrModelNotReady covers a referenced persona that is missing, belongs to
// someone else, or has not finished training.
var ErrModelNotReady = errors.New("referenced model is not ready")

// InvalidRequestError is malformed input rejected before any external call.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string { return "invalid request: " + e.Reason }

// Ledger is the slice of the credit ledger the orchestrator needs.
type Ledger interface {
	Balance(ctx context.Context, userID uint) (int, error)
	Debit(ctx context.Context, userID uint, amount int) error
}

// ObjectStore persists image bytes and returns a public URL.
type ObjectStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, publicURL string) error
}

// Store is the persistence surface for personas and generation records.
type Store interface {
	PersonaForUser(ctx context.Context, id, userID uint) (*personas.Persona, error)
	CreateGeneration(ctx context.Context, g *generations.Generation) error
	DeleteGeneration(ctx context.Context, id uint) error
}

type Request struct {
	UserID           uint
	Prompt           string
	PersonaID        *uint
	AIModelID        string
	AspectRatio      string
	Resolution       string
	Count            int
	ReferenceImage   []byte
	ReferenceOptions []string
}

type EditRequest struct {
	UserID            uint
	Instruction       string
	ReferenceImageURL string
	AIModelID         string
	AspectRatio       string
	Resolution        string
}

type GeneratedImage struct {
	ID     uint   `json:"id"`
	URL    string `json:"url"`
	Prompt string `json:"prompt"`
}

type Result struct {
	Images           []GeneratedImage `json:"images"`
	CreditsUsed      int              `json:"creditsUsed"`
	RemainingCredits int              `json:"remainingCredits"`
}

// Orchestrator drives one generation request from validated input to
// persisted artifacts. The ordering invariant it protects: the single ledger
// debit happens strictly after all per-image attempts settle, and only for
// images that were actually produced and persisted.
type Orchestrator struct {
	ledger    Ledger
	objects   ObjectStore
	store     Store
	providers aiprovider.Registry
	costs     map[string]int
	fetch     func(ctx context.Context, url string) ([]byte, error)
	log       *slog.Logger
}

func NewOrchestrator(ledger Ledger, objects ObjectStore, store Store, providers aiprovider.Registry, costs map[string]int, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		ledger:    ledger,
		objects:   objects,
		store:     store,
		providers: providers,
		costs:     costs,
		fetch:     fetchURL,
		log:       log,
	}
}

// Generate runs a batch of up to MaxBatchSize images. Per-image provider
// failures are tolerated; the batch fails only when nothing was produced.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	prompt := strings.TrimSpace(req.Prompt)
	hasReference := len(req.ReferenceImage) > 0 && len(req.ReferenceOptions) > 0
	if prompt == "" && !hasReference {
		return nil, &InvalidRequestError{Reason: "either a prompt or a reference image with at least one option is required"}
	}

	count := req.Count
	if count < 0 {
		return nil, &InvalidRequestError{Reason: "image count must not be negative"}
	}
	if count == 0 {
		count = 1
	}
	if count > MaxBatchSize {
		return nil, &InvalidRequestError{Reason: fmt.Sprintf("image count exceeds maximum of %d", MaxBatchSize)}
	}

	provider, perImageCost, err := o.resolveModel(req.AIModelID)
	if err != nil {
		return nil, err
	}

	if prompt == "" {
		prompt = "A styled photo featuring " + strings.Join(req.ReferenceOptions, ", ")
	}

	if req.PersonaID != nil {
		persona, err := o.store.PersonaForUser(ctx, *req.PersonaID, req.UserID)
		if err != nil {
			return nil, err
		}
		if persona == nil || persona.Status != personas.StatusReady {
			return nil, ErrModelNotReady
		}
		prompt = fmt.Sprintf("A photo of %s, a %s. %s", persona.Name, persona.Type, prompt)
	}

	// Fail the whole batch before any provider spend if the balance cannot
	// cover the requested count.
	totalCost := perImageCost * count
	preBalance, err := o.requireBalance(ctx, req.UserID, totalCost)
	if err != nil {
		return nil, err
	}

	providerReq := aiprovider.Request{
		Prompt:      prompt,
		AspectRatio: req.AspectRatio,
		Resolution:  req.Resolution,
	}
	if len(req.ReferenceImage) > 0 {
		providerReq.ReferenceImages = [][]byte{req.ReferenceImage}
	}

	produced := o.runBatch(ctx, req.UserID, req.PersonaID, provider, providerReq, count, perImageCost)
	if len(produced) == 0 {
		return nil, ErrGenerationFailed
	}

	return o.settle(ctx, req.UserID, produced, perImageCost, preBalance)
}

// Edit produces exactly one image derived from an existing one. The source
// is fetched before the provider is called, so an unreachable reference
// costs nothing.
func (o *Orchestrator) Edit(ctx context.Context, req EditRequest) (*Result, error) {
	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		return nil, &InvalidRequestError{Reason: "edit instruction is required"}
	}
	if strings.TrimSpace(req.ReferenceImageURL) == "" {
		return nil, &InvalidRequestError{Reason: "reference image url is required"}
	}

	provider, perImageCost, err := o.resolveModel(req.AIModelID)
	if err != nil {
		return nil, err
	}

	source, err := o.fetch(ctx, req.ReferenceImageURL)
	if err != nil {
		return nil, &InvalidRequestError{Reason: "reference image could not be fetched: " + err.Error()}
	}

	preBalance, err := o.requireBalance(ctx, req.UserID, perImageCost)
	if err != nil {
		return nil, err
	}

	providerReq := aiprovider.Request{
		Prompt:          "Edit the provided image. " + instruction,
		AspectRatio:     req.AspectRatio,
		Resolution:      req.Resolution,
		ReferenceImages: [][]byte{source},
	}

	data, err := provider.Generate(ctx, providerReq)
	if err != nil {
		o.log.Warn("edit generation failed", "user_id", req.UserID, "model", req.AIModelID, "error", err)
		return nil, ErrGenerationFailed
	}

	record := &generations.Generation{
		UserID:      req.UserID,
		Prompt:      "[edit] " + instruction,
		AIModelID:   req.AIModelID,
		AspectRatio: req.AspectRatio,
		Resolution:  req.Resolution,
		CreditsCost: perImageCost,
	}
	url, err := o.objects.Upload(ctx, data, "image/png")
	if err != nil {
		o.log.Warn("edit upload failed", "user_id", req.UserID, "error", err)
		return nil, ErrGenerationFailed
	}
	record.ImageURL = url
	if err := o.store.CreateGeneration(ctx, record); err != nil {
		o.deleteObject(url)
		return nil, ErrGenerationFailed
	}

	return o.settle(ctx, req.UserID, []*generations.Generation{record}, perImageCost, preBalance)
}

func (o *Orchestrator) resolveModel(aiModelID string) (aiprovider.Provider, int, error) {
	provider, ok := o.providers[aiModelID]
	if !ok {
		return nil, 0, &InvalidRequestError{Reason: "unknown AI model id: " + aiModelID}
	}
	cost, ok := o.costs[aiModelID]
	if !ok {
		return nil, 0, &InvalidRequestError{Reason: "no cost configured for AI model: " + aiModelID}
	}
	return provider, cost, nil
}

// requireBalance checks the live balance against amount and returns the
// balance it saw, so settlement has a reference point if the post-debit
// read fails.
func (o *Orchestrator) requireBalance(ctx context.Context, userID uint, amount int) (int, error) {
	available, err := o.ledger.Balance(ctx, userID)
	if err != nil {
		return 0, err
	}
	if available < amount {
		return 0, &credits.InsufficientCreditsError{Required: amount, Available: available}
	}
	return available, nil
}

// runBatch asks the provider for count images one at a time, in request
// order. A failed image is logged and skipped, never aborting its siblings.
func (o *Orchestrator) runBatch(ctx context.Context, userID uint, personaID *uint, provider aiprovider.Provider, providerReq aiprovider.Request, count, perImageCost int) []*generations.Generation {
	var produced []*generations.Generation
	for i := 0; i < count; i++ {
		data, err := provider.Generate(ctx, providerReq)
		if err != nil {
			o.log.Warn("provider call failed", "user_id", userID, "image", i+1, "of", count, "error", err)
			continue
		}

		url, err := o.objects.Upload(ctx, data, "image/png")
		if err != nil {
			o.log.Warn("artifact upload failed", "user_id", userID, "image", i+1, "error", err)
			continue
		}

		record := &generations.Generation{
			UserID:      userID,
			Prompt:      providerReq.Prompt,
			ImageURL:    url,
			PersonaID:   personaID,
			AIModelID:   provider.Name(),
			AspectRatio: providerReq.AspectRatio,
			Resolution:  providerReq.Resolution,
			CreditsCost: perImageCost,
		}
		if err := o.store.CreateGeneration(ctx, record); err != nil {
			o.log.Warn("generation record insert failed", "user_id", userID, "image", i+1, "error", err)
			o.deleteObject(url)
			continue
		}
		produced = append(produced, record)
	}
	return produced
}

// settle charges for the images that actually exist and builds the result.
// If the debit fails the artifacts are withdrawn: nothing is delivered
// without being paid for.
func (o *Orchestrator) settle(ctx context.Context, userID uint, produced []*generations.Generation, perImageCost, preBalance int) (*Result, error) {
	creditsUsed := perImageCost * len(produced)
	if err := o.ledger.Debit(ctx, userID, creditsUsed); err != nil {
		for _, g := range produced {
			if delErr := o.store.DeleteGeneration(ctx, g.ID); delErr != nil {
				o.log.Warn("cleanup of generation record failed", "generation_id", g.ID, "error", delErr)
			}
			o.deleteObject(g.ImageURL)
		}
		return nil, err
	}

	remaining, err := o.ledger.Balance(ctx, userID)
	if err != nil {
		// The debit went through; report the best available figure rather
		// than a zero balance to a user who was just charged.
		o.log.Warn("balance read after debit failed", "user_id", userID, "error", err)
		remaining = preBalance - creditsUsed
	}

	result := &Result{
		CreditsUsed:      creditsUsed,
		RemainingCredits: remaining,
	}
	for _, g := range produced {
		result.Images = append(result.Images, GeneratedImage{ID: g.ID, URL: g.ImageURL, Prompt: g.Prompt})
	}
	return result, nil
}

// deleteObject is best-effort: a stray object in the bucket is preferable to
// failing the request over cleanup.
func (o *Orchestrator) deleteObject(url string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.objects.Delete(ctx, url); err != nil {
		o.log.Warn("object cleanup failed", "url", url, "error", err)
	}
}

func fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image at %s", url)
	}
	return data, nil
}
