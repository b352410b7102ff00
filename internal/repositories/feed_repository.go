package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/bcetconnect/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FeedQuery describes a personalized feed request. FollowingIDs and
// CommunityIDs come from the viewer's profile; Type "ALL" disables the
// category filter.
type FeedQuery struct {
	ViewerID     uint
	FollowingIDs []uint
	CommunityIDs []uint
	Type         string
	Page         int
	Limit        int
}

// FeedPatch is the set of author-editable fields
type FeedPatch struct {
	Text       *string
	Visibility *string
}

// FeedRepository defines the interface for feed item operations
type FeedRepository interface {
	CreateItem(ctx context.Context, item *models.FeedItem) error
	GetItemByID(ctx context.Context, id string) (*models.FeedItem, error)
	GetVisibleFeed(ctx context.Context, q FeedQuery) ([]models.FeedItem, error)
	UpdateItem(ctx context.Context, id string, authorID uint, patch FeedPatch) (*models.FeedItem, error)
	SoftDeleteItem(ctx context.Context, id string, userID uint, isAdmin bool) (*models.FeedItem, error)
	ToggleLike(ctx context.Context, id string, userID uint) (likes int, liked bool, err error)
	AddComment(ctx context.Context, id string, comment models.FeedComment) (*models.FeedItem, error)
}

// MongoFeedRepository implements FeedRepository for MongoDB
type MongoFeedRepository struct {
	collection *mongo.Collection
}

// NewMongoFeedRepository creates a new MongoFeedRepository
func NewMongoFeedRepository(db *mongo.Database) *MongoFeedRepository {
	return &MongoFeedRepository{collection: db.Collection("feed_items")}
}

// CreateItem inserts a new feed item
func (r *MongoFeedRepository) CreateItem(ctx context.Context, item *models.FeedItem) error {
	item.ID = primitive.NewObjectID()
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	if item.Type == "" {
		item.Type = models.FeedTypeUser
	}
	if item.Visibility == "" {
		item.Visibility = models.VisibilityFollowers
	}
	if item.Media == nil {
		item.Media = []models.Media{}
	}
	if item.Likes == nil {
		item.Likes = []uint{}
	}
	if item.Comments == nil {
		item.Comments = []models.FeedComment{}
	}
	_, err := r.collection.InsertOne(ctx, item)
	return err
}

// GetItemByID retrieves a single non-deleted feed item
func (r *MongoFeedRepository) GetItemByID(ctx context.Context, id string) (*models.FeedItem, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrInvalidArgument
	}

	var item models.FeedItem
	err = r.collection.FindOne(ctx, bson.M{"_id": objID, "is_deleted": false}).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// visibilityFilter builds the inclusion predicate for a viewer. An item is
// visible when it is not deleted and at least one of:
//   - the viewer authored it
//   - it is an admin announcement
//   - it is FOLLOWERS-scoped and the viewer follows the author
//   - it is COMMUNITY-scoped and the viewer belongs to the community
//   - it is PUBLIC
//
// When a type filter is active the viewer's own items still pass it. That is
// an intentional product rule, not a filter bug: a user must never lose sight
// of their own posts.
func visibilityFilter(q FeedQuery) bson.M {
	following := q.FollowingIDs
	if following == nil {
		following = []uint{}
	}
	communities := q.CommunityIDs
	if communities == nil {
		communities = []uint{}
	}

	filter := bson.M{
		"is_deleted": false,
		"$or": []bson.M{
			{"author_id": q.ViewerID},
			{"type": models.FeedTypeAdmin},
			{"visibility": models.VisibilityFollowers, "author_id": bson.M{"$in": following}},
			{"visibility": models.VisibilityCommunity, "community_id": bson.M{"$in": communities}},
			{"visibility": models.VisibilityPublic},
		},
	}

	if q.Type != "" && q.Type != "ALL" {
		filter["$and"] = []bson.M{
			{"$or": []bson.M{
				{"type": q.Type},
				{"author_id": q.ViewerID},
			}},
		}
	}

	return filter
}

// GetVisibleFeed returns the viewer's feed page, pinned items first then
// newest first
func (r *MongoFeedRepository) GetVisibleFeed(ctx context.Context, q FeedQuery) ([]models.FeedItem, error) {
	skip := int64((q.Page - 1) * q.Limit)
	findOptions := options.Find().
		SetSort(bson.D{{Key: "is_pinned", Value: -1}, {Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(int64(q.Limit))

	cursor, err := r.collection.Find(ctx, visibilityFilter(q), findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []models.FeedItem{}
	if err = cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateItem applies an author-scoped patch and returns the updated item
func (r *MongoFeedRepository) UpdateItem(ctx context.Context, id string, authorID uint, patch FeedPatch) (*models.FeedItem, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrInvalidArgument
	}

	set := bson.M{"updated_at": time.Now()}
	if patch.Text != nil {
		set["text"] = *patch.Text
	}
	if patch.Visibility != nil {
		set["visibility"] = *patch.Visibility
	}

	var item models.FeedItem
	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": objID, "author_id": authorID, "is_deleted": false},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// SoftDeleteItem marks an item deleted and returns its prior state so the
// caller can clean up externally stored media. Admins may delete any item.
func (r *MongoFeedRepository) SoftDeleteItem(ctx context.Context, id string, userID uint, isAdmin bool) (*models.FeedItem, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrInvalidArgument
	}

	filter := bson.M{"_id": objID, "is_deleted": false}
	if !isAdmin {
		filter["author_id"] = userID
	}

	var item models.FeedItem
	err = r.collection.FindOneAndUpdate(ctx,
		filter,
		bson.M{"$set": bson.M{"is_deleted": true, "updated_at": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// ToggleLike adds the user to the likers set, or removes them if already
// present. Each step is a single atomic array update so a user can never be
// counted twice.
func (r *MongoFeedRepository) ToggleLike(ctx context.Context, id string, userID uint) (int, bool, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, false, models.ErrInvalidArgument
	}

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objID, "is_deleted": false, "likes": bson.M{"$ne": userID}},
		bson.M{"$addToSet": bson.M{"likes": userID}},
	)
	if err != nil {
		return 0, false, err
	}

	liked := res.ModifiedCount == 1
	if !liked {
		res, err = r.collection.UpdateOne(ctx,
			bson.M{"_id": objID, "is_deleted": false, "likes": userID},
			bson.M{"$pull": bson.M{"likes": userID}},
		)
		if err != nil {
			return 0, false, err
		}
		if res.ModifiedCount == 0 {
			return 0, false, models.ErrNotFound
		}
	}

	var item models.FeedItem
	err = r.collection.FindOne(ctx,
		bson.M{"_id": objID},
		options.FindOne().SetProjection(bson.M{"likes": 1}),
	).Decode(&item)
	if err != nil {
		return 0, false, err
	}
	return len(item.Likes), liked, nil
}

// AddComment appends a comment and returns the updated item
func (r *MongoFeedRepository) AddComment(ctx context.Context, id string, comment models.FeedComment) (*models.FeedItem, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrInvalidArgument
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}

	var item models.FeedItem
	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": objID, "is_deleted": false},
		bson.M{"$push": bson.M{"comments": comment}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}
