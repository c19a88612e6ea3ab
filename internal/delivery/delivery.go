// Package delivery sends outreach messages and staff notices to the chat
// platform through a bridge.
package delivery

import (
	"errors"
	"fmt"
)

// ErrNotDelivered is wrapped by every failed Deliver call.
var ErrNotDelivered = errors.New("message not delivered")

// NoticeKind identifies a staff notice.
type NoticeKind string

const (
	NoticeNewMember        NoticeKind = "new_member"
	NoticeReturningMember  NoticeKind = "returning_member"
	NoticeEngagementFailed NoticeKind = "engagement_failed"
)

// Notice is a message for the staff log channel.
type Notice struct {
	Kind     NoticeKind `json:"kind"`
	MemberID string     `json:"member_id"`
	Name     string     `json:"name"`
	Score    int        `json:"score"`
	Detail   string     `json:"detail,omitempty"`
}

// Text renders the notice as a one-line staff log entry.
func (n Notice) Text() string {
	switch n.Kind {
	case NoticeNewMember:
		return fmt.Sprintf("New member detected: %s (%s), score %d", n.Name, n.MemberID, n.Score)
	case NoticeReturningMember:
		return fmt.Sprintf("Returning member detected: %s (%s), score %d", n.Name, n.MemberID, n.Score)
	case NoticeEngagementFailed:
		msg := fmt.Sprintf("Engagement failed for %s (%s): direct message not delivered", n.Name, n.MemberID)
		if n.Detail != "" {
			msg += " (" + n.Detail + ")"
		}
		return msg
	}
	return fmt.Sprintf("%s: %s", n.Kind, n.MemberID)
}
