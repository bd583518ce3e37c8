package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type toolHandler[In any] = mcp.ToolHandlerFor[In, any]

// instrument wraps one tool handler with request metrics, logs-channel
// notification, and panic recovery at the dispatch boundary.
func instrument[In any](s *Service, name string, notice func(In) string, handler toolHandler[In]) toolHandler[In] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input In) (result *mcp.CallToolResult, output any, err error) {
		start := time.Now()
		defer func() {
			s.metrics.RecordRequest(name, time.Since(start))

			recovered := recover()
			if recovered == nil {
				return
			}
			result, output = nil, nil
			err = fmt.Errorf("%s: panic recovered: %v", name, recovered)
			s.logger.Error("tool handler panicked", "tool", name, "panic", recovered)
		}()

		if notice != nil {
			s.notifyLogsChannel(ctx, notice(input))
		}

		return handler(ctx, req, input)
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
