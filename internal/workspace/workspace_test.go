package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/octobrain/octobrain/internal/ferrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withDataHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	return dir
}

func TestNamespaceFor_NonGitDirIsDefault(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, DefaultNamespace, namespaceFor(dir))
}

func TestOpen_CreatesWorkspaceOnFirstUse(t *testing.T) {
	withDataHome(t)
	projectDir := t.TempDir()

	ws, err := Open(projectDir, 768, "ollama:nomic-embed-text")
	require.NoError(t, err)

	assert.Equal(t, DefaultNamespace, ws.Namespace)
	assert.Equal(t, 768, ws.Meta.EmbeddingDim)
	assert.Equal(t, "ollama:nomic-embed-text", ws.Meta.ModelID)
	assert.Equal(t, currentMetadataVersion, ws.Meta.Version)

	_, err = os.Stat(filepath.Join(ws.Root, metadataFileName))
	require.NoError(t, err)
}

func TestOpen_ReopensExistingWorkspaceWithMatchingModel(t *testing.T) {
	withDataHome(t)
	projectDir := t.TempDir()

	first, err := Open(projectDir, 768, "ollama:nomic-embed-text")
	require.NoError(t, err)

	second, err := Open(projectDir, 768, "ollama:nomic-embed-text")
	require.NoError(t, err)

	assert.Equal(t, first.Root, second.Root)
	assert.Equal(t, first.Meta.CreatedAt, second.Meta.CreatedAt)
}

func TestOpen_ModelMismatchReturnsEmbeddingModelMismatch(t *testing.T) {
	withDataHome(t)
	projectDir := t.TempDir()

	_, err := Open(projectDir, 768, "ollama:nomic-embed-text")
	require.NoError(t, err)

	_, err = Open(projectDir, 768, "ollama:mxbai-embed-large")
	require.Error(t, err)
	assert.Equal(t, ferrors.EmbeddingModelMismatch, ferrors.GetKind(err))
}

func TestOpen_DimensionMismatchReturnsEmbeddingModelMismatch(t *testing.T) {
	withDataHome(t)
	projectDir := t.TempDir()

	_, err := Open(projectDir, 768, "ollama:nomic-embed-text")
	require.NoError(t, err)

	_, err = Open(projectDir, 1024, "ollama:nomic-embed-text")
	require.Error(t, err)
	assert.Equal(t, ferrors.EmbeddingModelMismatch, ferrors.GetKind(err))
}

func TestOpen_CorruptMetadataReturnsCorruption(t *testing.T) {
	withDataHome(t)
	projectDir := t.TempDir()

	_, root, err := Resolve(projectDir)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, metadataFileName), []byte("{not json"), 0o644))

	_, err = Open(projectDir, 768, "ollama:nomic-embed-text")
	require.Error(t, err)
	assert.Equal(t, ferrors.Corruption, ferrors.GetKind(err))
}

func TestWorkspace_SubdirectoryHelpers(t *testing.T) {
	withDataHome(t)
	ws, err := Open(t.TempDir(), 768, "ollama:nomic-embed-text")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(ws.Root, "memories"), ws.MemoriesDir())
	assert.Equal(t, filepath.Join(ws.Root, "relationships"), ws.RelationshipsDir())
	assert.Equal(t, filepath.Join(ws.Root, "knowledge_sources"), ws.KnowledgeSourcesDir())
	assert.Equal(t, filepath.Join(ws.Root, "knowledge_chunks"), ws.KnowledgeChunksDir())
	assert.Equal(t, filepath.Join(ws.Root, "metadata.db"), ws.MetadataDBPath())
}

func TestTableLock_ExclusiveAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	a := NewTableLock(dir, "memories")
	require.NoError(t, a.Lock())
	defer a.Unlock()

	b := NewTableLock(dir, "memories")
	acquired, err := b.TryLock()
	require.NoError(t, err)
	assert.False(t, acquired, "a second writer must not acquire the same table lock")
}

func TestTableLock_UnlockIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	l := NewTableLock(dir, "relationships")
	require.NoError(t, l.Lock())
	require.NoError(t, l.Unlock())
	require.NoError(t, l.Unlock())
}
