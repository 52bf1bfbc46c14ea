package ingest

import (
	"context"
	"testing"

	"ai-support-be/internal/constant"
	"ai-support-be/pkg/processor"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_EnqueueValidates(t *testing.T) {
	h := newHarness(processor.NewTextProcessor())
	ctx := context.Background()

	tests := []struct {
		name       string
		sourceType string
		payload    Payload
		wantErr    error
	}{
		{"unknown source", "Video", Payload{Text: "x"}, ErrInvalidSourceType},
		{"relative url", constant.SourceTypeUrl, Payload{URL: "example.com"}, ErrInvalidPayload},
		{"empty document", constant.SourceTypeDocument, Payload{Filename: "a.pdf"}, ErrInvalidPayload},
		{"blank text", constant.SourceTypeText, Payload{Text: "   "}, ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.service.EnqueueIngest(ctx, uuid.New(), tt.sourceType, tt.payload)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, 0, h.queue.Len())
}

func TestService_EnqueueReturnsBeforeProcessing(t *testing.T) {
	h := newHarness(processor.NewTextProcessor())
	ctx := context.Background()

	doc, err := h.service.EnqueueIngest(ctx, uuid.New(), constant.SourceTypeDocument, Payload{Data: []byte("faq"), Filename: "faq.txt"})
	require.NoError(t, err)

	assert.Equal(t, constant.IngestStatusPending, doc.Status)
	assert.Equal(t, "faq.txt", doc.Name)
	assert.Equal(t, 1, h.queue.Len())
	assert.Equal(t, constant.IngestStatusPending, h.store.status(doc.Id))
}

func TestService_GetIsScopedToOrganization(t *testing.T) {
	h := newHarness(processor.NewTextProcessor())
	ctx := context.Background()
	org := uuid.New()

	doc, err := h.service.EnqueueIngest(ctx, org, constant.SourceTypeText, Payload{Text: "hello"})
	require.NoError(t, err)

	_, err = h.service.GetDocument(ctx, uuid.New(), doc.Id)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	got, err := h.service.GetDocument(ctx, org, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, doc.Id, got.Id)
}

func TestService_DeleteRemovesChunks(t *testing.T) {
	h := newHarness(processor.NewTextProcessor())
	ctx := context.Background()
	org := uuid.New()

	doc, err := h.service.EnqueueIngest(ctx, org, constant.SourceTypeText, Payload{Text: "hello"})
	require.NoError(t, err)
	h.drain(ctx)

	require.NoError(t, h.service.DeleteDocument(ctx, org, doc.Id))
	assert.Equal(t, []uuid.UUID{doc.Id}, h.index.removed)

	_, err = h.service.GetDocument(ctx, org, doc.Id)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestService_ResubmitOnlyFailed(t *testing.T) {
	ctx := context.Background()
	fail := true
	h := newHarness(processorFunc(func(_ context.Context, in processor.Input) (processor.Result, error) {
		if fail {
			return processor.Result{}, processor.ErrUnsupportedDocument
		}
		return processor.Result{Text: string(in.Data), ContentType: processor.ContentTypePlain}, nil
	}))
	org := uuid.New()

	doc, err := h.service.EnqueueIngest(ctx, org, constant.SourceTypeDocument, Payload{Data: []byte("notes"), Filename: "notes.txt"})
	require.NoError(t, err)
	h.drain(ctx)
	require.Equal(t, constant.IngestStatusFailed, h.store.status(doc.Id))

	fail = false
	again, err := h.service.Resubmit(ctx, org, doc.Id)
	require.NoError(t, err)
	assert.NotEqual(t, doc.Id, again.Id)
	assert.Equal(t, "notes.txt", again.Name)
	h.drain(ctx)

	assert.Equal(t, constant.IngestStatusCompleted, h.store.status(again.Id))
	assert.Equal(t, constant.IngestStatusFailed, h.store.status(doc.Id))

	_, err = h.service.Resubmit(ctx, org, again.Id)
	assert.ErrorIs(t, err, ErrNotResubmittable)
}
