package rest

import (
	"context"
	"net/http"

	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/statement"
)

// SendBatch delivers a batch of xAPI statements to the portal collector.
// The flush loop treats any error as "nothing in the batch was accepted"
// and requeues the whole batch.
func (c *Client) SendBatch(ctx context.Context, batch []statement.Statement) error {
	if len(batch) == 0 {
		return nil
	}
	return c.doJSON(ctx, http.MethodPost,
		"/api/xapi/statements", "/api/xapi/statements",
		batch, nil,
	)
}
