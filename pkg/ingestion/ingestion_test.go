package ingestion_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duhu110/axiom/pkg/ingestion"
	"github.com/duhu110/axiom/pkg/model"
	"github.com/duhu110/axiom/pkg/vector"
)

type fakeDocs struct {
	doc            *model.KBDocument
	statusUpdates  []model.DocumentStatus
	lastChunkCount int
	lastErrMsg     *string
}

func (f *fakeDocs) Get(ctx context.Context, docID string) (*model.KBDocument, error) {
	if f.doc == nil {
		return nil, assert.AnError
	}
	return f.doc, nil
}

func (f *fakeDocs) UpdateStatus(ctx context.Context, docID string, status model.DocumentStatus, chunkCount int, errMsg *string) error {
	f.statusUpdates = append(f.statusUpdates, status)
	f.lastChunkCount = chunkCount
	f.lastErrMsg = errMsg
	return nil
}

type fakeKBs struct {
	kb *model.KnowledgeBase
}

func (f *fakeKBs) Get(ctx context.Context, kbID string) (*model.KnowledgeBase, error) {
	return f.kb, nil
}

type fakeBlobs struct {
	content []byte
	err     error
}

func (f *fakeBlobs) Download(ctx context.Context, key string) ([]byte, error) {
	return f.content, f.err
}

type fakeVectorStore struct {
	deleted    bool
	upsertedN  int
	deleteErr  error
	upsertErr  error
}

func (s *fakeVectorStore) Upsert(ctx context.Context, chunks []vector.Document, kbID, docID, userID string) ([]string, error) {
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	s.upsertedN = len(chunks)
	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = "id"
	}
	return ids, nil
}

func (s *fakeVectorStore) DeleteBy(ctx context.Context, filter vector.Filter) error {
	s.deleted = true
	return s.deleteErr
}

func (s *fakeVectorStore) Search(ctx context.Context, query string, filter vector.Filter, params vector.SearchParams) ([]vector.Document, error) {
	return nil, nil
}

func (s *fakeVectorStore) AsRetriever(filter vector.Filter, params vector.SearchParams) vector.Retriever {
	return nil
}

func TestWorker_Process_Success(t *testing.T) {
	doc := &model.KBDocument{ID: "doc-1", KBID: "kb-1", FileType: "txt"}
	kb := &model.KnowledgeBase{ID: "kb-1", OwnerUserID: "user-1", ChunkSize: 1000, ChunkOverlap: 100, EmbeddingModel: "m"}
	docs := &fakeDocs{doc: doc}
	store := &fakeVectorStore{}

	w := &ingestion.Worker{
		Docs:  docs,
		KBs:   &fakeKBs{kb: kb},
		Blobs: &fakeBlobs{content: []byte("hello world, this is a test document.")},
		Stores: func(kb *model.KnowledgeBase) (vector.Store, error) {
			return store, nil
		},
	}

	err := w.Process(context.Background(), ingestion.Job{DocID: "doc-1"})
	require.NoError(t, err)
	assert.Contains(t, docs.statusUpdates, model.DocumentProcessing)
	assert.Contains(t, docs.statusUpdates, model.DocumentIndexed)
	assert.False(t, store.deleted, "first attempt should not delete existing chunks")
	assert.Greater(t, store.upsertedN, 0)
}

func TestWorker_Process_EmptyDocumentFailsWithoutRetry(t *testing.T) {
	doc := &model.KBDocument{ID: "doc-2", KBID: "kb-1", FileType: "txt"}
	kb := &model.KnowledgeBase{ID: "kb-1", ChunkSize: 1000, ChunkOverlap: 100}
	docs := &fakeDocs{doc: doc}

	w := &ingestion.Worker{
		Docs:  docs,
		KBs:   &fakeKBs{kb: kb},
		Blobs: &fakeBlobs{content: []byte("   ")},
		Stores: func(kb *model.KnowledgeBase) (vector.Store, error) {
			return &fakeVectorStore{}, nil
		},
	}

	err := w.Process(context.Background(), ingestion.Job{DocID: "doc-2"})
	require.Error(t, err)
	assert.Contains(t, docs.statusUpdates, model.DocumentFailed)
	require.NotNil(t, docs.lastErrMsg)
}
