package safego

import (
	"context"
	"log/slog"
)

func (c *config) logPanic(ctx context.Context, info PanicInfo) {
	c.log(ctx, "task panicked", info.ID, info.Name, info.Attrs,
		slog.Any("panic", info.Value),
		slog.String("stack", string(info.Stack)),
	)
}

func (c *config) log(ctx context.Context, msg, id, name string, attrs []slog.Attr, extra ...slog.Attr) {
	l := c.logger
	if l == nil {
		l = slog.Default()
	}
	all := make([]slog.Attr, 0, 2+len(attrs)+len(extra))
	if id != "" {
		all = append(all, slog.String("task_id", id))
	}
	if name != "" {
		all = append(all, slog.String("task", name))
	}
	all = append(all, attrs...)
	all = append(all, extra...)
	l.LogAttrs(ctx, slog.LevelError, msg, all...)
}
