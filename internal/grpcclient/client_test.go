package grpcclient

import (
	"context"
	"errors"
	"net"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/imyashpatil/Fake-Logo-Detection/internal/imageprocessor"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/inference"
)

type fakeClassifier struct {
	score    float64
	err      error
	received imageprocessor.Tensor
}

func (f *fakeClassifier) Predict(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.DoubleValue, error) {
	t, err := TensorFromRequest(ctx, in)
	if err != nil {
		return nil, err
	}
	f.received = t
	if f.err != nil {
		return nil, f.err
	}
	return wrapperspb.Double(f.score), nil
}

func startClassifier(t *testing.T, srv ClassifierServer) *Engine {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterClassifierServer(server, srv)
	go func() {
		_ = server.Serve(lis)
	}()
	t.Cleanup(server.Stop)

	engine, conn, err := DialInferenceEngine(context.Background(), "bufnet", zap.NewNop(),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.Dial()
		}),
	)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return engine
}

func sampleTensor() imageprocessor.Tensor {
	return imageprocessor.Tensor{Height: 2, Width: 2, Channels: 3, Data: []float32{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1, 0.5}}
}

func TestPredictReturnsScore(t *testing.T) {
	classifier := &fakeClassifier{score: 0.82}
	engine := startClassifier(t, classifier)

	score, err := engine.Predict(context.Background(), sampleTensor())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 0.82 {
		t.Fatalf("expected 0.82, got %v", score)
	}
	if classifier.received.Height != 2 || classifier.received.Width != 2 || len(classifier.received.Data) != 12 {
		t.Fatalf("server received unexpected tensor: %+v", classifier.received)
	}
	if classifier.received.Data[11] != 0.5 {
		t.Fatalf("tensor payload corrupted: %v", classifier.received.Data)
	}
}

func TestPredictRejectsOutOfRangeScore(t *testing.T) {
	engine := startClassifier(t, &fakeClassifier{score: 1.7})

	_, err := engine.Predict(context.Background(), sampleTensor())
	if !errors.Is(err, inference.ErrInvalidScore) {
		t.Fatalf("expected ErrInvalidScore, got %v", err)
	}
}

func TestPredictPropagatesServerError(t *testing.T) {
	engine := startClassifier(t, &fakeClassifier{err: status.Error(codes.Unavailable, "model not loaded")})

	_, err := engine.Predict(context.Background(), sampleTensor())
	if status.Code(errors.Unwrap(err)) != codes.Unavailable {
		t.Fatalf("expected Unavailable, got %v", err)
	}
}

func TestParseShape(t *testing.T) {
	dims, err := parseShape(formatShape([]int{1, 150, 150, 3}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dims) != 4 || dims[1] != 150 || dims[3] != 3 {
		t.Fatalf("unexpected dims: %v", dims)
	}
	if _, err := parseShape("1,x"); err == nil {
		t.Fatal("expected parse error")
	}
}
