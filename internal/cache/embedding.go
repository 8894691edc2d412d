package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/astrax-djp/astrax-rag/internal/rag"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var bucketEmbeddings = []byte("embeddings")

// CachedEmbedder is a read-through cache in front of an Embedder. Embeddings
// are deterministic for a given model and dimension, so entries never expire.
// Cache failures are logged and treated as misses.
type CachedEmbedder struct {
	next   rag.Embedder
	db     *bbolt.DB
	logger *zap.Logger
}

// NewCachedEmbedder opens (or creates) the bolt file at path.
func NewCachedEmbedder(path string, next rag.Embedder, logger *zap.Logger) (*CachedEmbedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEmbeddings)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucketEmbeddings, err)
	}

	return &CachedEmbedder{next: next, db: db, logger: logger}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	if vec, ok := c.get(key); ok {
		return vec, nil
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.put(key, vec); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}
	return vec, nil
}

func (c *CachedEmbedder) Dimension() int {
	return c.next.Dimension()
}

func (c *CachedEmbedder) ModelName() string {
	return c.next.ModelName()
}

func (c *CachedEmbedder) Close() error {
	return c.db.Close()
}

// key covers model and dimension so a config change never serves vectors of
// the wrong shape.
func (c *CachedEmbedder) key(text string) []byte {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00", c.next.ModelName(), c.next.Dimension())
	h.Write([]byte(strings.Join(strings.Fields(text), " ")))
	return h.Sum(nil)
}

func (c *CachedEmbedder) get(key []byte) ([]float32, bool) {
	var vec []float32
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEmbeddings).Get(key)
		if data == nil {
			return nil
		}
		v, err := decodeVector(data)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		c.logger.Warn("embedding cache read failed", zap.Error(err))
		return nil, false
	}
	if vec == nil || len(vec) != c.next.Dimension() {
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) put(key []byte, vec []float32) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEmbeddings).Put(key, encodeVector(vec))
	})
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, errors.New("corrupt cache entry")
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec, nil
}

var _ rag.Embedder = (*CachedEmbedder)(nil)
