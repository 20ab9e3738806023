package services

import (
	"context"

	"github.com/nimasrn/farm-ledger/internal/events"
	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/nimasrn/farm-ledger/pkg/logger"
)

const DefaultProjectName = "Main Field"

type ProjectService struct {
	projects    ProjectRepository
	customers   CustomerRepository
	summaries   SummaryStore
	publisher   events.Publisher
	defaultName string
}

func NewProjectService(projects ProjectRepository, customers CustomerRepository, summaries SummaryStore, publisher events.Publisher, defaultName string) *ProjectService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if defaultName == "" {
		defaultName = DefaultProjectName
	}
	return &ProjectService{
		projects:    projects,
		customers:   customers,
		summaries:   summaries,
		publisher:   publisher,
		defaultName: defaultName,
	}
}

func (s *ProjectService) Create(ctx context.Context, req model.ProjectCreateRequest) (*model.Project, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := customerExists(ctx, s.customers, req.CustomerID); err != nil {
		return nil, err
	}
	p, err := s.projects.Create(ctx, req.Project())
	if err != nil {
		return nil, err
	}
	invalidateSummary(ctx, s.summaries, p.CustomerID)
	return p, nil
}

func (s *ProjectService) Get(ctx context.Context, id int64) (*model.Project, error) {
	return s.projects.GetByID(ctx, id)
}

// ListByCustomer lists a customer's projects. A customer without any
// project gets the default one first.
func (s *ProjectService) ListByCustomer(ctx context.Context, f model.ProjectFilter) ([]*model.Project, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := customerExists(ctx, s.customers, f.CustomerID); err != nil {
		return nil, err
	}

	count, err := s.projects.CountByCustomer(ctx, f.CustomerID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		if _, err := s.createDefault(ctx, f.CustomerID); err != nil {
			return nil, err
		}
	}
	return s.projects.List(ctx, f)
}

func (s *ProjectService) createDefault(ctx context.Context, customerID int64) (*model.Project, error) {
	req := model.ProjectCreateRequest{CustomerID: customerID, Name: s.defaultName}
	p, err := s.projects.Create(ctx, req.Project())
	if err != nil {
		return nil, err
	}
	logger.Info("default project created", "customer_id", customerID, "project_id", p.ID)
	invalidateSummary(ctx, s.summaries, customerID)
	return p, nil
}

func (s *ProjectService) Update(ctx context.Context, id int64, req model.ProjectUpdateRequest) (*model.Project, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p, err := s.projects.Update(ctx, id, req.Updates())
	if err != nil {
		return nil, err
	}
	invalidateSummary(ctx, s.summaries, p.CustomerID)
	return p, nil
}

// Delete removes the project and its transactions.
func (s *ProjectService) Delete(ctx context.Context, actorID, id int64) error {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, id); err != nil {
		return err
	}
	invalidateSummary(ctx, s.summaries, p.CustomerID)
	_ = s.publisher.Publish(ctx, events.New(model.EventProjectDeleted, actorID, p.CustomerID, p.ID))
	return nil
}
