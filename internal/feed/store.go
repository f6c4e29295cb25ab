package feed

import (
	"sort"
	"sync"
)

// appliedOp records the exact delta one operation introduced, so a
// failed remote write can be reverted without touching what other
// operations did to the same post in the meantime.
type appliedOp struct {
	id         string
	field      Field
	likeDelta  int
	commentID  string
	shareDelta int
}

// entry is the canonical record for one post plus its operation ledger.
type entry struct {
	post Post
	seq  uint64 // insertion order, used to order posts without a timestamp
	ops  []appliedOp
}

func (e *entry) hasPending(f Field) bool {
	for _, op := range e.ops {
		if op.field == f {
			return true
		}
	}
	return false
}

func (e *entry) findOp(opID string) (int, bool) {
	for i, op := range e.ops {
		if op.id == opID {
			return i, true
		}
	}
	return 0, false
}

func (e *entry) dropOp(i int) {
	e.ops = append(e.ops[:i], e.ops[i+1:]...)
}

// Store is the authoritative in-memory collection of feed posts. It is
// the only place post state lives; the reconciler and the engagement
// controller mutate it, everything else reads snapshots.
type Store struct {
	mu    sync.RWMutex
	posts map[string]*entry
	seq   uint64
}

// NewStore creates an empty post store.
func NewStore() *Store {
	return &Store{
		posts: make(map[string]*entry),
	}
}

// Upsert inserts or merges an authoritative snapshot by id. Field groups
// with an unresolved local operation keep their local values; the
// snapshot may predate the optimistic mutation and must not erase it.
// Identity fields (author, content, media, timestamp) are always taken
// from the snapshot.
func (s *Store) Upsert(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.posts[snap.ID]
	if !ok {
		s.seq++
		s.posts[snap.ID] = &entry{
			post: snapshotToPost(snap),
			seq:  s.seq,
		}
		return
	}

	e.post.AuthorID = snap.AuthorID
	e.post.AuthorName = snap.AuthorName
	e.post.Content = snap.Content
	e.post.Media = append([]string(nil), snap.Media...)
	e.post.CreatedAt = snap.CreatedAt

	if !e.hasPending(FieldLike) {
		e.post.LikeCount = snap.LikeCount
		e.post.LikedByMe = snap.LikedByMe
	}
	if !e.hasPending(FieldComments) {
		e.post.Comments = append([]Comment(nil), snap.Comments...)
		e.post.CommentCount = snap.CommentCount
	}
	if !e.hasPending(FieldShares) {
		e.post.ShareCount = snap.ShareCount
	}
}

// Remove deletes a post by id. No-op if absent. Any unresolved
// operations on the post are discarded with it; the authoritative
// deletion supersedes local deltas.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.posts, id)
}

// Get returns a copy of the post with the given id.
func (s *Store) Get(id string) (Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.posts[id]
	if !ok {
		return Post{}, false
	}
	return copyPost(e), true
}

// Len returns the number of posts in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// SnapshotOrdered returns all posts most-recent-first: posts without a
// timestamp come first in insertion order ("just now" semantics), then
// timestamped posts by createdAt descending. The result is a copy.
func (s *Store) SnapshotOrdered() []Post {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*entry, 0, len(s.posts))
	for _, e := range s.posts {
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		aPending := a.post.CreatedAt == 0
		bPending := b.post.CreatedAt == 0
		if aPending != bPending {
			return aPending
		}
		if aPending {
			return a.seq < b.seq
		}
		if a.post.CreatedAt != b.post.CreatedAt {
			return a.post.CreatedAt > b.post.CreatedAt
		}
		return a.seq > b.seq
	})

	posts := make([]Post, len(entries))
	for i, e := range entries {
		posts[i] = copyPost(e)
	}
	return posts
}

// ToggleLike applies a like toggle against the current local state:
// not liked becomes liked with the counter incremented, liked becomes
// not liked with the counter decremented. The operation is recorded in
// the post's ledger under opID until confirmed or reverted. Returns the
// new liked state and whether the post exists.
func (s *Store) ToggleLike(postID, opID string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.posts[postID]
	if !ok {
		return false, false
	}

	delta := 1
	if e.post.LikedByMe {
		delta = -1
	}
	e.post.LikeCount += delta
	e.post.LikedByMe = !e.post.LikedByMe
	e.ops = append(e.ops, appliedOp{id: opID, field: FieldLike, likeDelta: delta})
	return e.post.LikedByMe, true
}

// AppendComment appends a provisional comment and increments the
// comment count, recording the operation under opID. Returns false if
// the post does not exist.
func (s *Store) AppendComment(postID, opID string, c Comment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.posts[postID]
	if !ok {
		return false
	}

	e.post.Comments = append(e.post.Comments, c)
	e.post.CommentCount++
	e.ops = append(e.ops, appliedOp{id: opID, field: FieldComments, commentID: c.ID})
	return true
}

// ApplyShare increments the share count, recording the operation under
// opID. Returns false if the post does not exist.
func (s *Store) ApplyShare(postID, opID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.posts[postID]
	if !ok {
		return false
	}

	e.post.ShareCount++
	e.ops = append(e.ops, appliedOp{id: opID, field: FieldShares, shareDelta: 1})
	return true
}

// ConfirmOp resolves an operation after its remote write succeeded. The
// optimistic values stand; only the pending tag is cleared. No-op if the
// post or operation is gone.
func (s *Store) ConfirmOp(postID, opID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.posts[postID]
	if !ok {
		return
	}
	if i, found := e.findOp(opID); found {
		e.dropOp(i)
	}
}

// RevertOp reverses exactly the delta the operation introduced and
// clears its pending tag. Like toggles compose as XOR, so the inverse
// of a toggle is another flip of the flag plus the counter delta;
// concurrent operations on the same post are untouched. No-op if the
// post or operation is gone.
func (s *Store) RevertOp(postID, opID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.posts[postID]
	if !ok {
		return
	}
	i, found := e.findOp(opID)
	if !found {
		return
	}
	op := e.ops[i]
	e.dropOp(i)

	switch op.field {
	case FieldLike:
		e.post.LikeCount -= op.likeDelta
		if e.post.LikeCount < 0 {
			e.post.LikeCount = 0
		}
		e.post.LikedByMe = !e.post.LikedByMe
	case FieldComments:
		for j, c := range e.post.Comments {
			if c.ID == op.commentID {
				e.post.Comments = append(e.post.Comments[:j], e.post.Comments[j+1:]...)
				break
			}
		}
		if e.post.CommentCount > 0 {
			e.post.CommentCount--
		}
	case FieldShares:
		e.post.ShareCount -= op.shareDelta
		if e.post.ShareCount < 0 {
			e.post.ShareCount = 0
		}
	}
}

func snapshotToPost(snap Snapshot) Post {
	return Post{
		ID:           snap.ID,
		AuthorID:     snap.AuthorID,
		AuthorName:   snap.AuthorName,
		Content:      snap.Content,
		Media:        append([]string(nil), snap.Media...),
		CreatedAt:    snap.CreatedAt,
		LikeCount:    snap.LikeCount,
		LikedByMe:    snap.LikedByMe,
		CommentCount: snap.CommentCount,
		ShareCount:   snap.ShareCount,
		Comments:     append([]Comment(nil), snap.Comments...),
	}
}

func copyPost(e *entry) Post {
	p := e.post
	p.Media = append([]string(nil), e.post.Media...)
	p.Comments = append([]Comment(nil), e.post.Comments...)
	if len(e.ops) > 0 {
		tags := make([]string, len(e.ops))
		for i, op := range e.ops {
			tags[i] = op.field.String() + ":" + op.id
		}
		p.PendingOps = tags
	} else {
		p.PendingOps = nil
	}
	return p
}
