package grpcclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/imyashpatil/Fake-Logo-Detection/internal/imageprocessor"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/inference"
)

const (
	classifierServiceName = "logocheck.inference.v1.Classifier"
	predictMethod         = "/" + classifierServiceName + "/Predict"

	// TensorShapeKey carries the batched tensor shape, e.g. "1,150,150,3".
	TensorShapeKey = "tensor-shape"
)

// ClassifierServer is implemented by engines served over gRPC.
// The request holds a little-endian float32 tensor; the response is the score.
type ClassifierServer interface {
	Predict(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.DoubleValue, error)
}

// RegisterClassifierServer exposes srv on the given gRPC server.
func RegisterClassifierServer(s grpc.ServiceRegistrar, srv ClassifierServer) {
	s.RegisterService(&classifierServiceDesc, srv)
}

var classifierServiceDesc = grpc.ServiceDesc{
	ServiceName: classifierServiceName,
	HandlerType: (*ClassifierServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Predict", Handler: predictHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "logocheck/inference/v1/classifier.proto",
}

func predictHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClassifierServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: predictMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClassifierServer).Predict(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// TensorFromRequest decodes the request tensor using the shape sent in metadata.
func TensorFromRequest(ctx context.Context, in *wrapperspb.BytesValue) (imageprocessor.Tensor, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get(TensorShapeKey)
	if len(values) == 0 {
		return imageprocessor.Tensor{}, status.Error(codes.InvalidArgument, "missing tensor shape")
	}
	dims, err := parseShape(values[0])
	if err != nil || len(dims) != 4 || dims[0] != 1 {
		return imageprocessor.Tensor{}, status.Errorf(codes.InvalidArgument, "bad tensor shape %q", values[0])
	}
	t, err := inference.DecodeTensor(in.GetValue(), dims[1], dims[2], dims[3])
	if err != nil {
		return imageprocessor.Tensor{}, status.Error(codes.InvalidArgument, err.Error())
	}
	return t, nil
}

func formatShape(dims []int) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

func parseShape(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	dims := make([]int, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("parse shape: %w", err)
		}
		dims = append(dims, d)
	}
	return dims, nil
}
