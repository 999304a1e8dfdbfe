package codec

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #region service-desc

// EvaluatorServer is the server side of the sidecar protocol.
type EvaluatorServer interface {
	Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := &structpb.Struct{}
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EvaluatorServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: evaluateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EvaluatorServer).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var evaluatorServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*EvaluatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
	},
	Metadata: "sentenceeval/v1/evaluator",
}

// RegisterEvaluatorServer attaches srv to a gRPC server.
func RegisterEvaluatorServer(s grpc.ServiceRegistrar, srv EvaluatorServer) {
	s.RegisterService(&evaluatorServiceDesc, srv)
}

// #endregion service-desc

// #region adapter-server

// AdapterServer exposes any Adapter as an evaluator sidecar.
type AdapterServer struct {
	adapter Adapter
	logger  *zap.Logger
}

// NewAdapterServer wraps adapter for serving over gRPC.
func NewAdapterServer(adapter Adapter, logger *zap.Logger) *AdapterServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdapterServer{adapter: adapter, logger: logger.Named("sidecar")}
}

// Evaluate decodes the request, runs the wrapped adapter and encodes its
// verdicts. Partially addressed criteria are returned as-is; the caller
// detects the gap.
func (s *AdapterServer) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	fb, err := s.adapter.Evaluate(ctx, req)
	if err != nil && !errors.Is(err, eval.ErrPartialCriteriaMissing) {
		s.logger.Warn("evaluate failed", zap.String("kind", string(eval.KindOf(err))), zap.Error(err))
		return nil, statusFor(err)
	}

	out, err := structpb.NewStruct(encodePayload(req, fb))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.logger.Debug("evaluated", zap.String("model", string(req.Model)), zap.Int("verdicts", len(fb.Verdicts)))
	return out, nil
}

// #endregion adapter-server
