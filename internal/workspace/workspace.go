// Package workspace resolves the on-disk namespace octobrain stores a
// memory corpus under, keyed by git remote URL so a single octobrain
// instance can serve many projects without cross-contaminating memories.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/octobrain/octobrain/internal/ferrors"
)

// DefaultNamespace is used when no git remote can be resolved.
const DefaultNamespace = "default"

// metadataFileName is the sibling state file recorded at the workspace
// root, per spec.md §6's External Interfaces layout.
const metadataFileName = "workspace.json"

// Metadata is the persisted workspace.json shape spec.md §6 defines.
type Metadata struct {
	Version      int       `json:"version"`
	EmbeddingDim int       `json:"embedding_dim"`
	ModelID      string    `json:"model_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// currentMetadataVersion is bumped only on a breaking on-disk layout
// change; spec.md §6 specifies no auto-migration across versions.
const currentMetadataVersion = 1

// Workspace is a resolved on-disk namespace: its root directory and
// persisted metadata.
type Workspace struct {
	Namespace string
	Root      string
	Meta      Metadata
}

// Resolve computes the namespace for dir (a git working directory, or
// any directory when no repository is present) and returns its root
// path without touching disk. Use Open to load or initialize it.
func Resolve(dir string) (namespace, root string, err error) {
	namespace = namespaceFor(dir)
	base, err := dataHome()
	if err != nil {
		return "", "", err
	}
	return namespace, filepath.Join(base, namespace), nil
}

// namespaceFor hashes the git remote URL of dir's repository, or
// returns DefaultNamespace if dir is not inside a git repository or has
// no configured remote.
func namespaceFor(dir string) string {
	remote, err := gitRemoteURL(dir)
	if err != nil || remote == "" {
		return DefaultNamespace
	}
	sum := sha256.Sum256([]byte(remote))
	return hex.EncodeToString(sum[:])[:16]
}

func gitRemoteURL(dir string) (string, error) {
	cmd := exec.Command("git", "-C", dir, "remote", "get-url", "origin")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// dataHome returns the XDG-aware octobrain data root
// (~/.local/share/octobrain), honoring XDG_DATA_HOME.
func dataHome() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "octobrain"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "octobrain"), nil
}

// Open loads the workspace at dir, creating its root directory and
// metadata file on first use. embeddingDim and modelID describe the
// embedder the caller intends to use; on an existing workspace they are
// compared against the persisted metadata and a mismatched model_id
// surfaces as ferrors.EmbeddingModelMismatch — spec.md §6 defines no
// auto-migration path.
func Open(dir string, embeddingDim int, modelID string) (*Workspace, error) {
	namespace, root, err := Resolve(dir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root %s: %w", root, err)
	}

	metaPath := filepath.Join(root, metadataFileName)
	existing, err := readMetadata(metaPath)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		meta := Metadata{
			Version:      currentMetadataVersion,
			EmbeddingDim: embeddingDim,
			ModelID:      modelID,
			CreatedAt:    time.Now().UTC(),
		}
		if err := writeMetadata(metaPath, meta); err != nil {
			return nil, err
		}
		return &Workspace{Namespace: namespace, Root: root, Meta: meta}, nil
	}

	if existing.ModelID != modelID {
		return nil, ferrors.New(ferrors.EmbeddingModelMismatch,
			fmt.Sprintf("workspace %s was embedded with model %q, configured embedder is %q",
				namespace, existing.ModelID, modelID), nil).
			WithDetail("workspace", namespace).
			WithDetail("stored_model_id", existing.ModelID).
			WithDetail("configured_model_id", modelID).
			WithSuggestion("re-embed the workspace or configure the original embedding model")
	}
	if existing.EmbeddingDim != embeddingDim {
		return nil, ferrors.New(ferrors.EmbeddingModelMismatch,
			fmt.Sprintf("workspace %s has embedding dimension %d, configured embedder produces %d",
				namespace, existing.EmbeddingDim, embeddingDim), nil).
			WithDetail("workspace", namespace)
	}

	return &Workspace{Namespace: namespace, Root: root, Meta: *existing}, nil
}

func readMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, ferrors.New(ferrors.Corruption, fmt.Sprintf("workspace metadata %s is unreadable", path), err)
	}
	return &meta, nil
}

func writeMetadata(path string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal workspace metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write workspace metadata %s: %w", path, err)
	}
	return nil
}

// MemoriesDir, RelationshipsDir, KnowledgeSourcesDir, and
// KnowledgeChunksDir are the sibling directories spec.md §6's External
// Interfaces layout names under the workspace root.
func (w *Workspace) MemoriesDir() string         { return filepath.Join(w.Root, "memories") }
func (w *Workspace) RelationshipsDir() string    { return filepath.Join(w.Root, "relationships") }
func (w *Workspace) KnowledgeSourcesDir() string { return filepath.Join(w.Root, "knowledge_sources") }
func (w *Workspace) KnowledgeChunksDir() string  { return filepath.Join(w.Root, "knowledge_chunks") }

// MetadataDBPath is the sqlite file backing the metadata store (C5/C6/C7).
func (w *Workspace) MetadataDBPath() string { return filepath.Join(w.Root, "metadata.db") }
