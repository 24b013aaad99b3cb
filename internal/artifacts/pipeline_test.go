package artifacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/mindlog/session-worker/internal/domain"
	"github.com/mindlog/session-worker/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSessionStore resolves one session to one client.
type mockSessionStore struct {
	sessionID uuid.UUID
	clientID  uuid.UUID
	err       error
}

func (m *mockSessionStore) GetClientForSession(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error) {
	if m.err != nil {
		return uuid.Nil, m.err
	}
	if sessionID != m.sessionID {
		return uuid.Nil, store.ErrNotFound
	}
	return m.clientID, nil
}

// mockArtifactStore keeps artifacts in memory keyed by reference and
// kind.
type mockArtifactStore struct {
	fresh  map[string]*domain.Artifact
	put    []*domain.Artifact
	putErr map[domain.ArtifactKind]error
}

func newMockArtifactStore() *mockArtifactStore {
	return &mockArtifactStore{
		fresh:  make(map[string]*domain.Artifact),
		putErr: make(map[domain.ArtifactKind]error),
	}
}

func artifactKey(referenceID uuid.UUID, kind domain.ArtifactKind) string {
	return referenceID.String() + "/" + string(kind)
}

func (m *mockArtifactStore) GetFresh(ctx context.Context, referenceID uuid.UUID, kind domain.ArtifactKind) (*domain.Artifact, error) {
	if a, ok := m.fresh[artifactKey(referenceID, kind)]; ok {
		return a, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockArtifactStore) Put(ctx context.Context, artifact *domain.Artifact) error {
	if err := m.putErr[artifact.Kind]; err != nil {
		return err
	}
	m.put = append(m.put, artifact)
	return nil
}

// mockContentGenerator returns canned content with per-kind failures.
type mockContentGenerator struct {
	failing map[domain.ArtifactKind]error
	calls   []domain.ArtifactKind
}

func (m *mockContentGenerator) GenerateArtifact(ctx context.Context, kind domain.ArtifactKind, referenceID uuid.UUID) (string, error) {
	m.calls = append(m.calls, kind)
	if err := m.failing[kind]; err != nil {
		return "", err
	}
	return fmt.Sprintf("content for %s", kind), nil
}

func pipelineFixture() (*Pipeline, *mockSessionStore, *mockArtifactStore, *mockContentGenerator) {
	sessions := &mockSessionStore{sessionID: uuid.New(), clientID: uuid.New()}
	artifacts := newMockArtifactStore()
	gen := &mockContentGenerator{failing: make(map[domain.ArtifactKind]error)}
	return NewPipeline(sessions, artifacts, gen, nil), sessions, artifacts, gen
}

func TestRegenerateAllKindsInOrder(t *testing.T) {
	p, sessions, artifacts, gen := pipelineFixture()

	err := p.Regenerate(context.Background(), sessions.sessionID)
	require.NoError(t, err)

	assert.Equal(t, Order, gen.calls, "kinds are generated in their fixed order")
	require.Len(t, artifacts.put, len(Order))

	for i, a := range artifacts.put {
		assert.Equal(t, Order[i], a.Kind)
		assert.Equal(t, Order[i].Reference(), a.ReferenceType)
		if a.ReferenceType == domain.ReferenceSession {
			assert.Equal(t, sessions.sessionID, a.ReferenceID)
		} else {
			assert.Equal(t, sessions.clientID, a.ReferenceID)
		}
		assert.NotEmpty(t, a.Content)
	}
}

func TestRegenerateMissingClientIsFatal(t *testing.T) {
	p, _, _, gen := pipelineFixture()

	err := p.Regenerate(context.Background(), uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, gen.calls, "nothing is generated when the owning client cannot be resolved")

	var regenErr *RegenerationError
	assert.False(t, errors.As(err, &regenErr), "a missing client is not a partial failure")
}

func TestRegenerateAggregatesPartialFailures(t *testing.T) {
	p, sessions, artifacts, gen := pipelineFixture()
	gen.failing[domain.KindSessionSOAPNote] = errors.New("model overloaded")
	gen.failing[domain.KindClientBio] = errors.New("model overloaded")

	err := p.Regenerate(context.Background(), sessions.sessionID)
	require.Error(t, err)

	var regenErr *RegenerationError
	require.ErrorAs(t, err, &regenErr)
	assert.Equal(t, sessions.sessionID, regenErr.SessionID)
	assert.Equal(t, sessions.clientID, regenErr.ClientID)
	assert.Equal(t, []domain.ArtifactKind{domain.KindSessionSOAPNote, domain.KindClientBio}, regenErr.Failed)
	assert.Equal(t, len(Order), regenErr.Total)

	// The failing kinds do not stop the rest of the run.
	assert.Equal(t, Order, gen.calls)
	assert.Len(t, artifacts.put, len(Order)-2)
}

func TestRegenerateSkipsFreshArtifacts(t *testing.T) {
	p, sessions, artifacts, gen := pipelineFixture()
	artifacts.fresh[artifactKey(sessions.sessionID, domain.KindSessionSummary)] = &domain.Artifact{
		ReferenceID: sessions.sessionID,
		Kind:        domain.KindSessionSummary,
		Content:     "cached",
	}

	err := p.Regenerate(context.Background(), sessions.sessionID)
	require.NoError(t, err)

	assert.NotContains(t, gen.calls, domain.KindSessionSummary, "fresh cache hits skip generation")
	assert.Len(t, gen.calls, len(Order)-1)
}

func TestRegenerateStoreFailureCountsAsKindFailure(t *testing.T) {
	p, sessions, artifacts, _ := pipelineFixture()
	artifacts.putErr[domain.KindClientPrepNote] = errors.New("connection reset")

	err := p.Regenerate(context.Background(), sessions.sessionID)

	var regenErr *RegenerationError
	require.ErrorAs(t, err, &regenErr)
	assert.Equal(t, []domain.ArtifactKind{domain.KindClientPrepNote}, regenErr.Failed)
}

func TestPromptGeneratorPrefersTemplateFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "session_summary.tmpl"),
		[]byte("Summarize session {{.ReferenceID}} carefully."),
		0o644))

	inner := &fakeTextGenerator{response: "a summary"}
	g := NewPromptGenerator(inner, dir)

	id := uuid.New()
	content, err := g.GenerateArtifact(context.Background(), domain.KindSessionSummary, id)
	require.NoError(t, err)
	assert.Equal(t, "a summary", content)
	require.Len(t, inner.prompts, 1)
	assert.Equal(t, fmt.Sprintf("Summarize session %s carefully.", id), inner.prompts[0])
}

func TestPromptGeneratorFallsBackToBuiltinPrompt(t *testing.T) {
	inner := &fakeTextGenerator{response: "a bio"}
	g := NewPromptGenerator(inner, t.TempDir())

	id := uuid.New()
	_, err := g.GenerateArtifact(context.Background(), domain.KindClientBio, id)
	require.NoError(t, err)
	require.Len(t, inner.prompts, 1)
	assert.Contains(t, inner.prompts[0], id.String())
}

func TestPromptGeneratorRejectsEmptyContent(t *testing.T) {
	inner := &fakeTextGenerator{response: "   \n"}
	g := NewPromptGenerator(inner, "")

	_, err := g.GenerateArtifact(context.Background(), domain.KindSessionSummary, uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty content")
}

// fakeTextGenerator implements generation.Generator.
type fakeTextGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}
