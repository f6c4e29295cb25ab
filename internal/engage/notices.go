package engage

// NoticeLevel classifies a user-visible notification.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeError
)

// Notice is a toast-equivalent notification for the presentation layer.
type Notice struct {
	Level   NoticeLevel
	Op      string
	PostID  string
	Message string
	Err     error
}

// notify emits a notice without ever blocking an operation. When the
// consumer lags and the buffer is full, the notice is dropped.
func (c *Controller) notify(n Notice) {
	select {
	case c.notices <- n:
	default:
		c.logger.LogNoticeDropped(n.Op)
	}
}
