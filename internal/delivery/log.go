package delivery

import (
	"context"
	"log/slog"

	"github.com/lazypower/newcomer/internal/content"
	"github.com/lazypower/newcomer/internal/member"
)

// Log is a dry-run deliverer: it logs what would be sent and always succeeds.
type Log struct {
	Logger *slog.Logger
}

func (l Log) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// Deliver logs msg.
func (l Log) Deliver(_ context.Context, rec member.Record, msg content.Message) error {
	l.logger().Info("dry-run direct message",
		"member_id", rec.ID, "name", rec.Name, "title", msg.Title, "tone", msg.Tone)
	return nil
}

// Announce logs the public ping.
func (l Log) Announce(_ context.Context, rec member.Record) error {
	l.logger().Info("dry-run announce", "member_id", rec.ID)
	return nil
}

// NotifyStaff logs n.
func (l Log) NotifyStaff(_ context.Context, n Notice) error {
	l.logger().Info("dry-run staff notice", "kind", n.Kind, "member_id", n.MemberID, "text", n.Text())
	return nil
}
