package grpcclient

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/imyashpatil/Fake-Logo-Detection/internal/imageprocessor"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/inference"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/logging"
)

// DialInferenceEngine returns a ready-to-use gRPC client for the classifier service.
func DialInferenceEngine(ctx context.Context, addr string, logger *zap.Logger, opts ...grpc.DialOption) (*Engine, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)

	conn, err := grpc.DialContext(dialCtx, addr, dialOpts...)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_inference_engine", "", err)
		logger.Error("failed to dial inference engine", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return NewEngine(conn, logger), conn, nil
}

// Engine implements inference.Engine over a gRPC connection.
type Engine struct {
	conn   grpc.ClientConnInterface
	logger *zap.Logger
}

var _ inference.Engine = (*Engine)(nil)

// NewEngine wraps an established connection.
func NewEngine(conn grpc.ClientConnInterface, logger *zap.Logger) *Engine {
	return &Engine{conn: conn, logger: logger.Named("inference_client")}
}

// Predict sends the tensor to the classifier and validates the returned score.
func (e *Engine) Predict(ctx context.Context, tensor imageprocessor.Tensor) (float64, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, TensorShapeKey, formatShape(tensor.Shape()))

	out := new(wrapperspb.DoubleValue)
	in := wrapperspb.Bytes(inference.EncodeTensor(tensor))
	if err := e.conn.Invoke(ctx, predictMethod, in, out); err != nil {
		wrapped := logging.NewOperationError("grpcclient.predict", "", err)
		e.logger.Error("inference call failed", zap.Error(wrapped))
		return 0, wrapped
	}

	score := out.GetValue()
	if err := inference.ValidateScore(score); err != nil {
		e.logger.Warn("inference returned malformed score", zap.Float64("score", score))
		return 0, logging.NewOperationError("grpcclient.predict", "", err)
	}
	return score, nil
}
