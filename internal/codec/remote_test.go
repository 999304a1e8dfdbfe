package codec

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #region harness

// startSidecar serves adapter over an in-memory listener and returns a
// RemoteAdapter connected to it.
func startSidecar(t *testing.T, adapter Adapter) *RemoteAdapter {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterEvaluatorServer(srv, NewAdapterServer(adapter, nil))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewRemoteAdapterWithConn(conn)
}

// #endregion harness

// #region remote-tests

func TestRemoteRoundTripThroughSidecar(t *testing.T) {
	crit := twoCriteria()
	scripted := NewScriptedAdapter(map[string][]Step{
		"I always feel calm.": {{
			Verdicts: map[string]eval.RuleVerdict{
				"short":         {Passed: true, Rating: 5},
				"no-universals": {Passed: false, Rating: 2, Suggestion: "drop always"},
			},
			Correction: "I often feel calm.",
		}},
	})
	remote := startSidecar(t, scripted)

	fb, err := remote.Evaluate(context.Background(), eval.Request{
		SentenceText: "I always feel calm.", Model: eval.ModelLegacy, Criteria: crit, Level: eval.FeedbackDetailed,
	})
	require.NoError(t, err)
	require.Len(t, fb.Verdicts, 2)
	assert.Equal(t, 2, fb.Verdicts["no-universals"].Rating)
	assert.Equal(t, "drop always", fb.Verdicts["no-universals"].Suggestion)
	assert.Equal(t, "I often feel calm.", fb.Correction)
	assert.Equal(t, 1, scripted.Calls("I always feel calm."))
}

func TestRemotePartialResponseIsDetectedByClient(t *testing.T) {
	scripted := NewScriptedAdapter(map[string][]Step{
		"s": {{Verdicts: map[string]eval.RuleVerdict{"short": {Passed: true, Rating: 4}}}},
	})
	remote := startSidecar(t, scripted)

	fb, err := remote.Evaluate(context.Background(), eval.Request{SentenceText: "s", Model: eval.ModelFlash, Criteria: twoCriteria()})
	require.Error(t, err)
	var e *eval.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, eval.KindPartialCriteriaMissing, e.Kind)
	assert.Equal(t, []string{"no-universals"}, e.Criteria)
	assert.Len(t, fb.Verdicts, 1)
}

func TestRemoteErrorKindsSurviveTheWire(t *testing.T) {
	for _, kind := range []eval.Kind{
		eval.KindTimeout,
		eval.KindRateLimited,
		eval.KindMalformedResponse,
		eval.KindModelUnavailable,
	} {
		scripted := NewScriptedAdapter(map[string][]Step{"s": {{Kind: kind}}})
		remote := startSidecar(t, scripted)
		_, err := remote.Evaluate(context.Background(), eval.Request{SentenceText: "s", Model: eval.ModelFlash, Criteria: twoCriteria()})
		assert.Equal(t, kind, eval.KindOf(err), "%v", err)
	}
}

// #endregion remote-tests

// #region fake-conn-tests

type stubConn struct {
	err error
}

func (s stubConn) Invoke(_ context.Context, _ string, _ any, _ any, _ ...grpc.CallOption) error {
	return s.err
}

func (s stubConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("streams unsupported")
}

func TestClassifyStatusCodes(t *testing.T) {
	cases := map[codes.Code]eval.Kind{
		codes.DeadlineExceeded:  eval.KindTimeout,
		codes.ResourceExhausted: eval.KindRateLimited,
		codes.InvalidArgument:   eval.KindMalformedResponse,
		codes.Unavailable:       eval.KindModelUnavailable,
		codes.Unimplemented:     eval.KindModelUnavailable,
	}
	for code, want := range cases {
		a := NewRemoteAdapterWithConn(stubConn{err: status.Error(code, "boom")})
		_, err := a.Evaluate(context.Background(), eval.Request{SentenceText: "s", Model: eval.ModelPro, Criteria: twoCriteria()})
		assert.Equal(t, want, eval.KindOf(err), code.String())
	}
}

func TestDecodeRequestRejectsUnknownModel(t *testing.T) {
	in, err := structpb.NewStruct(map[string]any{"sentence_text": "s", "model_choice": "ultra"})
	require.NoError(t, err)
	_, err = NewAdapterServer(NewHeuristicAdapter(), nil).Evaluate(context.Background(), in)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

// #endregion fake-conn-tests
