package mcp

import (
	"context"

	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driving"
)

// mockAskService is a mock implementation of driving.AskService.
type mockAskService struct {
	result   *domain.AskResult
	err      error
	question string
	opts     domain.AskOptions
}

func (m *mockAskService) Ask(_ context.Context, question string, opts domain.AskOptions) (*domain.AskResult, error) {
	m.question = question
	m.opts = opts
	return m.result, m.err
}

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	chunks []domain.RetrievedChunk
	err    error
	k      int
	rerank bool
}

func (m *mockRetrievalService) Retrieve(_ context.Context, _ string, k int, rerank bool) ([]domain.RetrievedChunk, error) {
	m.k = k
	m.rerank = rerank
	return m.chunks, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	page      string
	details   *driving.DocumentDetails
	err       error

	gotPage int
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) GetPage(_ context.Context, _ string, page int) (string, error) {
	m.gotPage = page
	return m.page, m.err
}

func (m *mockDocumentService) GetDetails(_ context.Context, _ string) (*driving.DocumentDetails, error) {
	return m.details, m.err
}

func (m *mockDocumentService) Remove(_ context.Context, _ string) error {
	return m.err
}

func validPorts() *Ports {
	return &Ports{Ask: &mockAskService{}, Retrieval: &mockRetrievalService{}}
}
