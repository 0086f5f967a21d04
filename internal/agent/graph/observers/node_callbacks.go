package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/telemetry"
	logx "github.com/Chative-core-poc-v1/shopping-agent/pkg/logger"
)

type spanKey struct{}

// newNodeHandler opens one span per graph node run and logs its lifecycle.
func newNodeHandler(sink *telemetry.Sink) einocb.Handler {
	return einocb.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *einocb.RunInfo, input einocb.CallbackInput) context.Context {
			ctx, span := sink.Start(ctx, info.Name, telemetry.KindChain)
			if st, ok := input.(*model.ConversationState); ok && st != nil {
				logx.Ctx(ctx).Debug().Str("node", info.Name).Int("iteration", st.Iteration).Msg("node start")
			}
			return context.WithValue(ctx, spanKey{}, span)
		}).
		OnEndFn(func(ctx context.Context, info *einocb.RunInfo, output einocb.CallbackOutput) context.Context {
			meta := map[string]any{}
			if st, ok := output.(*model.ConversationState); ok && st != nil {
				meta["iteration"] = st.Iteration
				meta["final_answer"] = st.FinalAnswer
				meta["tool_calls"] = len(st.ToolCalls)
				meta["messages"] = len(st.Messages)
			}
			endSpan(ctx, nil, meta)
			logx.Ctx(ctx).Debug().Str("node", info.Name).Msg("node end")
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			endSpan(ctx, err, nil)
			logx.Ctx(ctx).Error().Err(err).Str("node", info.Name).Msg("node failed")
			return ctx
		}).
		Build()
}

func endSpan(ctx context.Context, err error, meta map[string]any) {
	if span, ok := ctx.Value(spanKey{}).(*telemetry.Span); ok {
		span.End(err, meta)
	}
}
