package service

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"

	"vectorflow-go/internal/model"
	"vectorflow-go/pkg/tasks"
)

// fakeDocRepo 是 DocumentRepository 的内存实现。
type fakeDocRepo struct {
	mu   sync.Mutex
	docs map[string]*model.Document

	createErr error
	updateErr error
	deleteErr error
}

func newFakeDocRepo(docs ...*model.Document) *fakeDocRepo {
	r := &fakeDocRepo{docs: make(map[string]*model.Document)}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

func (r *fakeDocRepo) Create(ctx context.Context, doc *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	copied := *doc
	r.docs[doc.ID] = &copied
	return nil
}

func (r *fakeDocRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *doc
	return &copied, nil
}

func (r *fakeDocRepo) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	doc, ok := r.docs[id]
	if !ok {
		return gorm.ErrRecordNotFound
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
	return nil
}

func (r *fakeDocRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.docs, id)
	return nil
}

func (r *fakeDocRepo) FindByProject(ctx context.Context, projectID string, offset, limit int) ([]model.Document, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var docs []model.Document
	for _, d := range r.docs {
		if d.ProjectID == projectID {
			docs = append(docs, *d)
		}
	}
	return docs, int64(len(docs)), nil
}

func (r *fakeDocRepo) CountByStatus(ctx context.Context, projectID string) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, d := range r.docs {
		if d.ProjectID == projectID {
			counts[d.Status]++
		}
	}
	return counts, nil
}

func (r *fakeDocRepo) get(id string) (*model.Document, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, false
	}
	copied := *doc
	return &copied, true
}

// fakeBlobStore 是 BlobStore 的内存实现。
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string

	uploadErr    error
	neverVisible bool // Exists 恒为 false，模拟最终一致的存储
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (s *fakeBlobStore) key(path, bucket string) string { return bucket + "/" + path }

func (s *fakeBlobStore) Upload(ctx context.Context, data []byte, path, bucket, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.objects[s.key(path, bucket)] = data
	return nil
}

func (s *fakeBlobStore) Download(ctx context.Context, path, bucket string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[s.key(path, bucket)]
	if !ok {
		return nil, errors.New("对象不存在")
	}
	return data, nil
}

func (s *fakeBlobStore) Exists(ctx context.Context, path, bucket string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.neverVisible {
		return false, nil
	}
	_, ok := s.objects[s.key(path, bucket)]
	return ok, nil
}

func (s *fakeBlobStore) Delete(ctx context.Context, path, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, s.key(path, bucket))
	s.deleted = append(s.deleted, s.key(path, bucket))
	return nil
}

func (s *fakeBlobStore) objectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *fakeBlobStore) deletedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// fakeVectorStore 是 VectorStore 的内存实现。
type fakeVectorStore struct {
	mu      sync.Mutex
	count   int64
	deleted []string

	deleteErr error
	statsErr  error
}

func (s *fakeVectorStore) Upsert(ctx context.Context, namespace string, records []model.VectorRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count += int64(len(records))
	return len(records), nil
}

func (s *fakeVectorStore) DeleteByDocument(ctx context.Context, namespace, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, namespace+"/"+documentID)
	return nil
}

func (s *fakeVectorStore) Stats(ctx context.Context, namespace string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statsErr != nil {
		return 0, s.statsErr
	}
	return s.count, nil
}

func (s *fakeVectorStore) deletedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// taskRecorder 记录投递的任务，可注入失败。
type taskRecorder struct {
	mu    sync.Mutex
	tasks []tasks.DocumentProcessingTask
	err   error
}

func (r *taskRecorder) produce(ctx context.Context, task tasks.DocumentProcessingTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *taskRecorder) produced() []tasks.DocumentProcessingTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tasks.DocumentProcessingTask(nil), r.tasks...)
}
