package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/genbi-engine/pkg/apperrors"
	"github.com/ekaya-inc/genbi-engine/pkg/logging"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

// ConnectionTestService probes connection details without saving them.
type ConnectionTestService interface {
	// TestConnection always returns a result; failures are described in it.
	TestConnection(ctx context.Context, req *models.ConnectionTestRequest) *models.ConnectionTestResult
}

type connectionTestService struct {
	factory datasource.ConnectorFactory
	logger  *zap.Logger
}

// NewConnectionTestService creates a connection test service.
func NewConnectionTestService(factory datasource.ConnectorFactory, logger *zap.Logger) ConnectionTestService {
	return &connectionTestService{factory: factory, logger: logger.Named("connection-test")}
}

var _ ConnectionTestService = (*connectionTestService)(nil)

func (s *connectionTestService) TestConnection(ctx context.Context, req *models.ConnectionTestRequest) *models.ConnectionTestResult {
	if !req.Type.IsValid() {
		return failedConnection(models.ConnectionErrorUnsupported, "Unsupported data source type: "+string(req.Type))
	}

	details, err := models.ValidateConnectionDetails(req.Type, req.ConnectionDetails)
	if err != nil {
		code := models.ConnectionErrorUnknown
		if errors.Is(err, apperrors.ErrValidation) {
			code = models.ConnectionErrorValidation
		}
		return failedConnection(code, apperrors.Message(err, err.Error()))
	}

	tester, err := s.factory.NewConnectionTester(ctx, req.Type, details, datasource.Options{})
	if err != nil {
		if errors.Is(err, datasource.ErrUnsupportedType) {
			return failedConnection(models.ConnectionErrorUnsupported, "Unsupported data source type: "+string(req.Type))
		}
		return s.connectionError(req.Type, err)
	}
	defer tester.Close()

	info, err := tester.TestConnection(ctx)
	if err != nil {
		return s.connectionError(req.Type, err)
	}

	s.logger.Debug("Connection test succeeded",
		zap.String("type", string(req.Type)),
		zap.Duration("latency", info.Latency))
	return &models.ConnectionTestResult{
		Success: true,
		Message: info.Message,
		Details: info.Details,
	}
}

func (s *connectionTestService) connectionError(dsType models.DataSourceType, err error) *models.ConnectionTestResult {
	msg := logging.SanitizeError(err)
	s.logger.Info("Connection test failed",
		zap.String("type", string(dsType)),
		zap.String("error", msg))
	code := models.ConnectionErrorConnection
	if errors.Is(err, datasource.ErrUnsupportedType) {
		code = models.ConnectionErrorUnsupported
	}
	return failedConnection(code, msg)
}

func failedConnection(code, message string) *models.ConnectionTestResult {
	return &models.ConnectionTestResult{
		Success: false,
		Message: "Connection failed",
		Error:   &models.ConnectionTestError{Code: code, Message: message},
	}
}
