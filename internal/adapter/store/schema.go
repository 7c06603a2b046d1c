package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var keySchemaInfo = []byte("schema_info")

// SchemaInfo records how an index was built.
type SchemaInfo struct {
	Version        int    `json:"version"`
	EmbeddingModel string `json:"embedding_model"`
	Dimension      int    `json:"dimension"`
}

func (s *BoltVectorStore) loadSchemaInfo() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}
		data := b.Get(keySchemaInfo)
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &s.info); err != nil {
			return fmt.Errorf("corrupt schema info: %w", err)
		}
		return nil
	})
}

func (s *BoltVectorStore) saveSchemaInfo() error {
	data, err := json.Marshal(s.info)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keySchemaInfo, data)
	})
}

// CheckCompatible reports why the index cannot serve queries embedded with
// the given model, or "" when it can.
func (i SchemaInfo) CheckCompatible(model string, dimension int) string {
	switch {
	case i.Version > CurrentSchemaVersion:
		return fmt.Sprintf("index created by newer version (v%d > v%d)", i.Version, CurrentSchemaVersion)
	case i.EmbeddingModel != "" && i.EmbeddingModel != model:
		return fmt.Sprintf("index embedded with %s, configured embedder is %s", i.EmbeddingModel, model)
	case i.Dimension != 0 && i.Dimension != dimension:
		return fmt.Sprintf("index dimension %d, configured embedder produces %d", i.Dimension, dimension)
	}
	return ""
}
