package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"vectorflow-go/internal/model"
)

// fakeDocStore 是 DocumentStore 的内存实现。
type fakeDocStore struct {
	mu      sync.Mutex
	docs    map[string]*model.Document
	updates []map[string]interface{}

	getErr    error
	updateErr error
}

func newFakeDocStore(docs ...*model.Document) *fakeDocStore {
	s := &fakeDocStore{docs: make(map[string]*model.Document)}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

func (s *fakeDocStore) GetByID(ctx context.Context, id string) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	doc, ok := s.docs[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	copied := *doc
	return &copied, nil
}

func (s *fakeDocStore) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, fields)
	doc, ok := s.docs[id]
	if !ok {
		return errors.New("record not found")
	}
	if v, ok := fields["status"]; ok {
		doc.Status = v.(string)
	}
	if v, ok := fields["processing_error"]; ok {
		doc.ProcessingError = v.(string)
	}
	if v, ok := fields["chunk_count"]; ok {
		doc.ChunkCount = v.(int)
	}
	if v, ok := fields["vector_namespace"]; ok {
		doc.VectorNamespace = v.(string)
	}
	return nil
}

func (s *fakeDocStore) get(id string) model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.docs[id]
}

func (s *fakeDocStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

// fakeBlobStore 是 BlobStore 的内存实现。
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string

	downloadErr error
	existsErr   error
	deleteErr   error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (s *fakeBlobStore) key(path, bucket string) string { return bucket + "/" + path }

func (s *fakeBlobStore) Upload(ctx context.Context, data []byte, path, bucket, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[s.key(path, bucket)] = data
	return nil
}

func (s *fakeBlobStore) Download(ctx context.Context, path, bucket string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.downloadErr != nil {
		return nil, s.downloadErr
	}
	data, ok := s.objects[s.key(path, bucket)]
	if !ok {
		return nil, errors.New("对象不存在")
	}
	return data, nil
}

func (s *fakeBlobStore) Exists(ctx context.Context, path, bucket string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.objects[s.key(path, bucket)]
	return ok, nil
}

func (s *fakeBlobStore) Delete(ctx context.Context, path, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, s.key(path, bucket))
	s.deleted = append(s.deleted, s.key(path, bucket))
	return nil
}

func (s *fakeBlobStore) deletedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// fakeEmbedder 是 Embedder 的测试实现，默认按输入数量生成定维向量。
type fakeEmbedder struct {
	mu    sync.Mutex
	dim   int
	calls int

	err         error
	failFirstN  int
	returnCount int // -1 表示跟随输入数量
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	return &fakeEmbedder{dim: dim, returnCount: -1}
}

func (e *fakeEmbedder) Dimension() int { return e.dim }

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if e.failFirstN > 0 {
		e.failFirstN--
		return nil, errors.New("临时向量化故障")
	}
	count := len(texts)
	if e.returnCount >= 0 {
		count = e.returnCount
	}
	vectors := make([][]float32, count)
	for i := range vectors {
		vec := make([]float32, e.dim)
		vec[0] = float32(i)
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *fakeEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// fakeVectorStore 是 VectorStore 的内存实现。
type fakeVectorStore struct {
	mu       sync.Mutex
	records  map[string][]model.VectorRecord // key: namespace
	deleted  []string                        // namespace/documentID
	accepted int                             // -1 表示接受全部

	upsertErr error
	deleteErr error
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{records: make(map[string][]model.VectorRecord), accepted: -1}
}

func (s *fakeVectorStore) Upsert(ctx context.Context, namespace string, records []model.VectorRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	s.records[namespace] = append(s.records[namespace], records...)
	if s.accepted >= 0 {
		return s.accepted, nil
	}
	return len(records), nil
}

func (s *fakeVectorStore) DeleteByDocument(ctx context.Context, namespace, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, fmt.Sprintf("%s/%s", namespace, documentID))
	kept := s.records[namespace][:0]
	for _, r := range s.records[namespace] {
		if r.DocumentID != documentID {
			kept = append(kept, r)
		}
	}
	s.records[namespace] = kept
	return nil
}

func (s *fakeVectorStore) Stats(ctx context.Context, namespace string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.records[namespace])), nil
}

func (s *fakeVectorStore) stored(namespace string) []model.VectorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.VectorRecord(nil), s.records[namespace]...)
}

func (s *fakeVectorStore) deletedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}
