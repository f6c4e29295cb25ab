package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agrilink/feedsync/internal/config"
)

// Mongo implements Store against a MongoDB deployment. The feed
// subscription channel is a change stream on the posts collection.
type Mongo struct {
	client *mongo.Client
	posts  *mongo.Collection
	users  *mongo.Collection
}

// Dial connects to MongoDB and verifies the connection with a ping.
func Dial(ctx context.Context, cfg *config.Mongo) (*Mongo, error) {
	timeout := time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(dialCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	return &Mongo{
		client: client,
		posts:  db.Collection(cfg.PostsCollection),
		users:  db.Collection(cfg.UsersCollection),
	}, nil
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from mongodb: %w", err)
	}
	return nil
}

// Document shapes. Field names follow the post documents the rest of
// the platform writes.

type postDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"userId"`
	Username  string             `bson:"username"`
	Content   string             `bson:"content"`
	Media     []string           `bson:"media"`
	CreatedAt int64              `bson:"createdAt"`
	Likes     int                `bson:"likes"`
	LikedBy   []string           `bson:"likedBy"`
	Comments  []commentDoc       `bson:"comments"`
	Shares    int                `bson:"shares"`
}

type commentDoc struct {
	ID        string `bson:"id"`
	UserID    string `bson:"userId"`
	Username  string `bson:"username"`
	Text      string `bson:"text"`
	Timestamp int64  `bson:"timestamp"`
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	FirstName string             `bson:"firstName"`
	LastName  string             `bson:"lastName"`
	Username  string             `bson:"username"`
	Avatar    string             `bson:"profilePic"`
}

// CreatePost inserts a new post document and returns its assigned id.
func (m *Mongo) CreatePost(ctx context.Context, rec *PostRecord) (string, error) {
	doc := postDoc{
		ID:        primitive.NewObjectID(),
		UserID:    rec.AuthorID,
		Username:  rec.Author,
		Content:   rec.Content,
		Media:     rec.Media,
		CreatedAt: rec.CreatedAt,
		Likes:     0,
		LikedBy:   []string{},
		Comments:  []commentDoc{},
		Shares:    0,
	}
	if doc.Media == nil {
		doc.Media = []string{}
	}

	if _, err := m.posts.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to insert post: %w", err)
	}
	return doc.ID.Hex(), nil
}

// SetLike adds or removes the user from the post's like-set and moves
// the counter with it, atomically on the document.
func (m *Mongo) SetLike(ctx context.Context, postID, userID string, liked bool) error {
	oid, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return fmt.Errorf("invalid post id %q: %w", postID, err)
	}

	var update bson.M
	if liked {
		update = bson.M{
			"$inc":      bson.M{"likes": 1},
			"$addToSet": bson.M{"likedBy": userID},
		}
	} else {
		update = bson.M{
			"$inc":  bson.M{"likes": -1},
			"$pull": bson.M{"likedBy": userID},
		}
	}

	result, err := m.posts.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to update like: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("post %s not found", postID)
	}
	return nil
}

// AppendComment pushes a comment onto the post's comment array.
func (m *Mongo) AppendComment(ctx context.Context, postID string, c CommentRecord) error {
	oid, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return fmt.Errorf("invalid post id %q: %w", postID, err)
	}

	update := bson.M{
		"$push": bson.M{"comments": commentDoc{
			ID:        c.ID,
			UserID:    c.AuthorID,
			Username:  c.Author,
			Text:      c.Text,
			Timestamp: c.CreatedAt,
		}},
	}

	result, err := m.posts.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to append comment: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("post %s not found", postID)
	}
	return nil
}

// IncrementShares bumps the post's share counter.
func (m *Mongo) IncrementShares(ctx context.Context, postID string) error {
	oid, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return fmt.Errorf("invalid post id %q: %w", postID, err)
	}

	result, err := m.posts.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$inc": bson.M{"shares": 1}})
	if err != nil {
		return fmt.Errorf("failed to increment shares: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("post %s not found", postID)
	}
	return nil
}

// FetchProfile reads a user profile document by id.
func (m *Mongo) FetchProfile(ctx context.Context, userID string) (*ProfileRecord, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	var doc userDoc
	if err := m.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrProfileNotFound)
		}
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	return &ProfileRecord{
		UserID:    doc.ID.Hex(),
		FirstName: doc.FirstName,
		LastName:  doc.LastName,
		Username:  doc.Username,
		Avatar:    doc.Avatar,
	}, nil
}

// SubscribeFeed opens a change stream on the posts collection. Updates
// are delivered with the full post document looked up so each event
// carries the authoritative record.
func (m *Mongo) SubscribeFeed(ctx context.Context) (FeedSubscription, error) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := m.posts.Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open change stream: %w", err)
	}

	sub := &feedSubscription{
		events: make(chan Change, 256),
		stream: stream,
	}
	go sub.pump(ctx)
	return sub, nil
}

type feedSubscription struct {
	events chan Change
	stream *mongo.ChangeStream
	err    error
}

func (s *feedSubscription) Events() <-chan Change { return s.events }

// Err reports why the stream ended. Valid only after Events is closed.
func (s *feedSubscription) Err() error { return s.err }

func (s *feedSubscription) Close(ctx context.Context) error {
	return s.stream.Close(ctx)
}

type changeDoc struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID primitive.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument *postDoc `bson:"fullDocument"`
}

func (s *feedSubscription) pump(ctx context.Context) {
	defer close(s.events)

	for s.stream.Next(ctx) {
		var ev changeDoc
		if err := s.stream.Decode(&ev); err != nil {
			s.err = fmt.Errorf("failed to decode change event: %w", err)
			return
		}

		change, ok := toChange(&ev)
		if !ok {
			continue
		}

		select {
		case s.events <- change:
		case <-ctx.Done():
			s.err = ctx.Err()
			return
		}
	}

	if err := s.stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
		s.err = err
	}
}

func toChange(ev *changeDoc) (Change, bool) {
	id := ev.DocumentKey.ID.Hex()

	switch ev.OperationType {
	case "insert":
		return Change{Kind: Added, ID: id, Post: fromPostDoc(ev.FullDocument)}, true
	case "update", "replace":
		return Change{Kind: Modified, ID: id, Post: fromPostDoc(ev.FullDocument)}, true
	case "delete":
		return Change{Kind: Removed, ID: id}, true
	default:
		// drop/rename/invalidate and friends carry no feed state
		return Change{}, false
	}
}

func fromPostDoc(doc *postDoc) *PostRecord {
	if doc == nil {
		return nil
	}

	comments := make([]CommentRecord, len(doc.Comments))
	for i, c := range doc.Comments {
		comments[i] = CommentRecord{
			ID:        c.ID,
			AuthorID:  c.UserID,
			Author:    c.Username,
			Text:      c.Text,
			CreatedAt: c.Timestamp,
		}
	}

	return &PostRecord{
		ID:        doc.ID.Hex(),
		AuthorID:  doc.UserID,
		Author:    doc.Username,
		Content:   doc.Content,
		Media:     doc.Media,
		CreatedAt: doc.CreatedAt,
		Likes:     doc.Likes,
		LikedBy:   doc.LikedBy,
		Comments:  comments,
		Shares:    doc.Shares,
	}
}
