package feed

// Field identifies the group of post fields an in-flight operation is
// mutating. An authoritative snapshot may not overwrite a field group
// while an operation on it is still unresolved.
type Field int

const (
	FieldLike Field = iota
	FieldComments
	FieldShares
)

// String returns the pending-op tag prefix for the field.
func (f Field) String() string {
	switch f {
	case FieldLike:
		return "like"
	case FieldComments:
		return "comment"
	case FieldShares:
		return "share"
	default:
		return "unknown"
	}
}

// Comment is a single comment on a post. IDs are generated locally;
// the remote store does not echo comment ids back, so a provisional id
// stays the comment's id for the session.
type Comment struct {
	ID         string
	AuthorID   string
	AuthorName string
	Text       string
	CreatedAt  int64
}

// Post is a feed item as the client sees it: authoritative remote fields
// plus any optimistic local deltas that have not round-tripped yet.
type Post struct {
	ID           string
	AuthorID     string
	AuthorName   string // denormalized on the post record, fallback while the profile is unresolved
	Content      string
	Media        []string
	CreatedAt    int64 // unix seconds; 0 while the remote store has not assigned a timestamp
	LikeCount    int
	LikedByMe    bool
	CommentCount int
	ShareCount   int
	Comments     []Comment
	PendingOps   []string // tags of unresolved operations, in application order
}

// Snapshot is an authoritative post record as delivered by the remote
// store's subscription channel or a confirmed write.
type Snapshot struct {
	ID           string
	AuthorID     string
	AuthorName   string
	Content      string
	Media        []string
	CreatedAt    int64
	LikeCount    int
	LikedByMe    bool
	CommentCount int
	ShareCount   int
	Comments     []Comment
}

// HasPending reports whether the post has an unresolved operation.
func (p *Post) HasPending() bool {
	return len(p.PendingOps) > 0
}
