package codec

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #region constants

const (
	serviceName    = "sentenceeval.v1.Evaluator"
	evaluateMethod = "/" + serviceName + "/Evaluate"
)

// #endregion constants

// #region remote-adapter

// RemoteAdapter calls an evaluator sidecar over gRPC. Requests and
// responses travel as google.protobuf.Struct.
type RemoteAdapter struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// NewRemoteAdapter connects to the evaluator service at addr.
func NewRemoteAdapter(addr string) (*RemoteAdapter, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &RemoteAdapter{conn: conn, cc: conn}, nil
}

// NewRemoteAdapterWithConn creates a RemoteAdapter over an existing connection.
func NewRemoteAdapterWithConn(cc grpc.ClientConnInterface) *RemoteAdapter {
	return &RemoteAdapter{cc: cc}
}

// Close shuts down the gRPC connection if the adapter owns one.
func (r *RemoteAdapter) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// #endregion remote-adapter

// #region evaluate

// Evaluate sends one sentence to the sidecar.
func (r *RemoteAdapter) Evaluate(ctx context.Context, req eval.Request) (Feedback, error) {
	in, err := encodeRequest(req)
	if err != nil {
		return Feedback{}, eval.Wrap(eval.KindMalformedResponse, err, "encode request")
	}

	out := &structpb.Struct{}
	if err := r.cc.Invoke(ctx, evaluateMethod, in, out); err != nil {
		return Feedback{}, classifyStatus(err)
	}

	raw, err := json.Marshal(out.AsMap())
	if err != nil {
		return Feedback{}, eval.Wrap(eval.KindMalformedResponse, err, "")
	}
	fb, err := parsePayload(raw)
	if err != nil {
		return Feedback{}, err
	}
	return fb, checkComplete(req, fb)
}

// #endregion evaluate

// #region wire

func encodeRequest(req eval.Request) (*structpb.Struct, error) {
	crit := make([]any, len(req.Criteria))
	for i, c := range req.Criteria {
		crit[i] = map[string]any{"id": c.ID, "description": c.Description}
	}
	return structpb.NewStruct(map[string]any{
		"sentence_text":  req.SentenceText,
		"model_choice":   string(req.Model),
		"feedback_level": string(req.Level),
		"criteria":       crit,
	})
}

func decodeRequest(in *structpb.Struct) (eval.Request, error) {
	f := in.GetFields()
	model, err := eval.ParseModelChoice(f["model_choice"].GetStringValue())
	if err != nil {
		return eval.Request{}, err
	}
	req := eval.Request{
		SentenceText: f["sentence_text"].GetStringValue(),
		Model:        model,
		Level:        eval.FeedbackLevel(f["feedback_level"].GetStringValue()),
	}
	for _, v := range f["criteria"].GetListValue().GetValues() {
		cf := v.GetStructValue().GetFields()
		id := strings.TrimSpace(cf["id"].GetStringValue())
		if id == "" {
			return eval.Request{}, fmt.Errorf("criterion without id")
		}
		req.Criteria = append(req.Criteria, eval.Criterion{
			ID:          id,
			Name:        id,
			Description: cf["description"].GetStringValue(),
			Weight:      1,
		})
	}
	return req, nil
}

// #endregion wire

// #region classify-status

var statusKinds = map[codes.Code]eval.Kind{
	codes.DeadlineExceeded:   eval.KindTimeout,
	codes.ResourceExhausted:  eval.KindRateLimited,
	codes.InvalidArgument:    eval.KindMalformedResponse,
	codes.DataLoss:           eval.KindMalformedResponse,
	codes.FailedPrecondition: eval.KindPartialCriteriaMissing,
}

func classifyStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return eval.Wrap(eval.KindModelUnavailable, err, "")
	}
	kind, ok := statusKinds[st.Code()]
	if !ok {
		kind = eval.KindModelUnavailable
	}
	return eval.Wrap(kind, err, fmt.Sprintf("remote %s: %s", st.Code(), st.Message()))
}

func statusFor(err error) error {
	e := eval.AsError(err, eval.KindModelUnavailable)
	var code codes.Code
	switch e.Kind {
	case eval.KindTimeout:
		code = codes.DeadlineExceeded
	case eval.KindRateLimited:
		code = codes.ResourceExhausted
	case eval.KindMalformedResponse:
		code = codes.DataLoss
	case eval.KindPartialCriteriaMissing:
		code = codes.FailedPrecondition
	default:
		code = codes.Unavailable
	}
	return status.Error(code, e.Error())
}

// #endregion classify-status
