package services

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/apperrors"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
	"github.com/ekaya-inc/genbi-engine/pkg/repositories"
)

// DashboardService composes dashboards from widgets.
type DashboardService interface {
	List(ctx context.Context) ([]*models.Dashboard, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Dashboard, error)

	// Create inserts the dashboard and its widgets in one transaction.
	Create(ctx context.Context, req *models.CreateDashboardRequest) (*models.Dashboard, error)

	// Update merges fields. A present widget list replaces all widgets.
	Update(ctx context.Context, id uuid.UUID, req *models.UpdateDashboardRequest) (*models.Dashboard, error)

	Delete(ctx context.Context, id uuid.UUID) error
}

type dashboardService struct {
	db        TxRunner
	repo      repositories.DashboardRepository
	queryRepo repositories.QueryRepository
	logger    *zap.Logger
}

// NewDashboardService creates the dashboard service.
func NewDashboardService(db TxRunner, repo repositories.DashboardRepository, queryRepo repositories.QueryRepository, logger *zap.Logger) DashboardService {
	return &dashboardService{db: db, repo: repo, queryRepo: queryRepo, logger: logger.Named("dashboards")}
}

var _ DashboardService = (*dashboardService)(nil)

func (s *dashboardService) List(ctx context.Context) ([]*models.Dashboard, error) {
	dashboards, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if dashboards == nil {
		dashboards = []*models.Dashboard{}
	}
	return dashboards, nil
}

func (s *dashboardService) Get(ctx context.Context, id uuid.UUID) (*models.Dashboard, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *dashboardService) Create(ctx context.Context, req *models.CreateDashboardRequest) (*models.Dashboard, error) {
	if err := validateName("Name", req.Name); err != nil {
		return nil, err
	}
	if err := validateDescription(req.Description); err != nil {
		return nil, err
	}
	widgets, err := s.buildWidgets(ctx, req.Widgets)
	if err != nil {
		return nil, err
	}

	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = DefaultCreatedBy
	}
	d := &models.Dashboard{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Layout:      req.Layout,
		CreatedBy:   createdBy,
	}

	err = s.db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, d); err != nil {
			return err
		}
		inserted, err := s.repo.ReplaceWidgets(ctx, d.ID, widgets)
		if err != nil {
			return err
		}
		d.Widgets = inserted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Created dashboard",
		zap.String("id", d.ID.String()),
		zap.String("name", d.Name),
		zap.Int("widgets", len(d.Widgets)))
	return s.repo.GetByID(ctx, d.ID)
}

func (s *dashboardService) Update(ctx context.Context, id uuid.UUID, req *models.UpdateDashboardRequest) (*models.Dashboard, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if err := validateName("Name", *req.Name); err != nil {
			return nil, err
		}
		d.Name = *req.Name
	}
	if req.Description != nil {
		if err := validateDescription(req.Description); err != nil {
			return nil, err
		}
		d.Description = req.Description
	}
	if req.Layout != nil {
		d.Layout = req.Layout
	}

	var widgets []models.Widget
	if req.Widgets != nil {
		if widgets, err = s.buildWidgets(ctx, *req.Widgets); err != nil {
			return nil, err
		}
	}

	err = s.db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, d); err != nil {
			return err
		}
		if req.Widgets == nil {
			return nil
		}
		_, err := s.repo.ReplaceWidgets(ctx, id, widgets)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Updated dashboard",
		zap.String("id", id.String()),
		zap.Bool("widgets_replaced", req.Widgets != nil))
	return s.repo.GetByID(ctx, id)
}

func (s *dashboardService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Deleted dashboard", zap.String("id", id.String()))
	return nil
}

// buildWidgets validates client widgets and converts them for insertion.
func (s *dashboardService) buildWidgets(ctx context.Context, inputs []models.WidgetInput) ([]models.Widget, error) {
	widgets := make([]models.Widget, 0, len(inputs))
	for i, in := range inputs {
		if err := validateName("Widget title", in.Title); err != nil {
			return nil, err
		}
		if in.Type != "" && !in.Type.IsValid() {
			return nil, apperrors.Validationf("Invalid widget type: %s", in.Type)
		}
		if chartType, ok := in.Config["chartType"]; ok {
			name, isString := chartType.(string)
			if !isString || !slices.Contains(models.ChartTypes, name) {
				return nil, apperrors.Validationf("Invalid chart type for widget %d", i+1)
			}
		}
		if p := in.Position; p != nil && (p.X < 0 || p.Y < 0 || p.W < 0 || p.H < 0) {
			return nil, apperrors.Validationf("Widget position must not be negative")
		}
		if in.QueryID != nil {
			exists, err := s.queryRepo.Exists(ctx, *in.QueryID)
			if err != nil {
				return nil, err
			}
			if !exists {
				return nil, apperrors.Validationf("Query with ID %s not found", *in.QueryID)
			}
		}

		widgetType := in.Type
		if widgetType == "" {
			widgetType = models.WidgetTypeChart
		}
		widgets = append(widgets, models.Widget{
			Title:    in.Title,
			Type:     widgetType,
			QueryID:  in.QueryID,
			Config:   in.Config,
			Position: in.Position,
		})
	}
	return widgets, nil
}
