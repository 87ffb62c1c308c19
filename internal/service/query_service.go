package service

import (
	"context"

	"rag-chatbot-be/internal/dto"
	"rag-chatbot-be/pkg/rag"

	"github.com/google/uuid"
)

type IQueryService interface {
	Query(ctx context.Context, userId uuid.UUID, req *dto.QueryRequest) (*dto.QueryResponse, error)
}

type queryService struct {
	retriever *rag.Retriever
}

func NewQueryService(retriever *rag.Retriever) IQueryService {
	return &queryService{retriever: retriever}
}

func (s *queryService) Query(ctx context.Context, userId uuid.UUID, req *dto.QueryRequest) (*dto.QueryResponse, error) {
	answer, err := s.retriever.Answer(ctx, rag.QueryRequest{
		OwnerID:     userId,
		Query:       req.Query,
		TopK:        req.TopK,
		Source:      req.Source,
		Generate:    req.Generate,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}

	res := &dto.QueryResponse{Results: make([]dto.QueryResult, 0, len(answer.Results))}
	for _, r := range answer.Results {
		res.Results = append(res.Results, dto.QueryResult{
			Content:  r.Content,
			Metadata: r.Metadata,
			Score:    r.Score,
		})
	}
	if !answer.Generated {
		return res, nil
	}

	text := answer.Answer
	res.Answer = &text
	res.Citations = make([]dto.CitationResponse, 0, len(answer.Citations))
	for _, c := range answer.Citations {
		res.Citations = append(res.Citations, dto.CitationResponse{
			Index:  c.Index,
			Source: c.Source,
			Page:   c.Page,
			Score:  c.Score,
		})
	}
	return res, nil
}
