package api

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-sop/internal/models"
	"github.com/miradorstack/mirador-sop/internal/services"
)

// Runner executes one categorize request.
type Runner interface {
	Run(ctx context.Context, req models.CategorizeRequest) (models.RunReport, error)
}

// GRPCHandler adapts a Runner to the Categorizer gRPC service.
type GRPCHandler struct {
	runner Runner
	logger *slog.Logger
}

// NewGRPCHandler constructs the gRPC adapter.
func NewGRPCHandler(runner Runner, logger *slog.Logger) *GRPCHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCHandler{runner: runner, logger: logger}
}

// Categorize implements CategorizerServer.
func (h *GRPCHandler) Categorize(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if h.runner == nil {
		return nil, status.Error(codes.FailedPrecondition, "categorizer not configured")
	}
	req, err := FromStructRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	h.logger.Debug("Categorize called", slog.Int("incidents", len(req.Incidents)), slog.Bool("validate", req.Validate))

	report, err := h.runner.Run(ctx, req)
	if err != nil {
		return nil, services.StatusFromError(err)
	}
	out, err := ToStructReport(report)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
