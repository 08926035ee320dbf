package vectorstore

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"

	"github.com/celt313/gamequest/schema"
)

// Collection names used by the GameQuest index.
const (
	descCollection       = "desc_embeddings"
	coverCollection      = "cover_embeddings"
	screenshotCollection = "screenshot_embeddings"
)

// metadataGameID is the metadata key carrying the catalog item id.
const metadataGameID = "game_id"

// ChromemStore is a Store backed by chromem-go, with one collection per
// embedding scope.
type ChromemStore struct {
	db          *chromem.DB
	collections map[schema.Scope]*chromem.Collection
}

// NewChromemStore opens (or creates) the scoped collections. If persistPath
// is empty the store is in-memory only.
func NewChromemStore(persistPath string) (*ChromemStore, error) {
	var db *chromem.DB
	if persistPath != "" {
		var err error
		db, err = chromem.NewPersistentDB(persistPath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open persistent chromem db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	names := map[schema.Scope]string{
		schema.ScopeDescription: descCollection,
		schema.ScopeCover:       coverCollection,
		schema.ScopeScreenshot:  screenshotCollection,
	}

	collections := make(map[schema.Scope]*chromem.Collection, len(names))
	for scope, name := range names {
		// Embeddings are produced externally and passed in explicitly,
		// so no embedding function is registered.
		collection, err := db.GetOrCreateCollection(name, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get or create collection %s: %w", name, err)
		}
		collections[scope] = collection
	}

	return &ChromemStore{db: db, collections: collections}, nil
}

// Add inserts documents with precomputed embeddings into a scope. Used by
// tests and local fixtures; production index population is external.
func (s *ChromemStore) Add(ctx context.Context, scope schema.Scope, itemIDs []string, embeddings [][]float64) error {
	collection, ok := s.collections[scope]
	if !ok {
		return fmt.Errorf("unknown scope %q", scope)
	}
	if len(itemIDs) != len(embeddings) {
		return fmt.Errorf("ids and embeddings length mismatch: %d vs %d", len(itemIDs), len(embeddings))
	}

	docs := make([]chromem.Document, len(itemIDs))
	for i, id := range itemIDs {
		docs[i] = chromem.Document{
			ID:        fmt.Sprintf("%s-%d", id, i),
			Metadata:  map[string]string{metadataGameID: id},
			Embedding: toFloat32(embeddings[i]),
		}
	}
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("failed to add documents to %s: %w", scope, err)
	}
	return nil
}

// Query returns the topK nearest items in the scope, best first.
func (s *ChromemStore) Query(ctx context.Context, scope schema.Scope, embedding []float64, topK int) ([]Match, error) {
	collection, ok := s.collections[scope]
	if !ok {
		return nil, fmt.Errorf("%w: unknown scope %q", schema.ErrRetrievalUnavailable, scope)
	}

	// chromem rejects nResults above the collection size.
	if count := collection.Count(); topK > count {
		topK = count
	}
	if topK <= 0 {
		return nil, nil
	}

	res, err := collection.QueryEmbedding(ctx, toFloat32(embedding), topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: chromem query on %s: %v", schema.ErrRetrievalUnavailable, scope, err)
	}

	matches := make([]Match, 0, len(res))
	for _, doc := range res {
		itemID := doc.Metadata[metadataGameID]
		if itemID == "" {
			itemID = doc.ID
		}
		matches = append(matches, Match{ItemID: itemID, Score: float64(doc.Similarity)})
	}
	return matches, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

var _ Store = (*ChromemStore)(nil)
