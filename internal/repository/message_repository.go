package repository

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/S-Sergio-A/messsages-microservice/internal/apperrors"
	"github.com/S-Sergio-A/messsages-microservice/internal/models"
)

type MongoRepository struct {
	msgColl  *mongo.Collection
	userColl *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	r := &MongoRepository{
		msgColl:  db.Collection("messages"),
		userColl: db.Collection("users"),
	}
	_, _ = r.msgColl.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "roomId", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	return r
}

func (r *MongoRepository) Insert(ctx context.Context, m *models.Message) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.msgColl.InsertOne(ctx, m)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		m.ID = id
	}
	return nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*models.Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var m models.Message
	if err := r.msgColl.FindOne(ctx, bson.M{"_id": oid}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	r.attachAuthors(ctx, []*models.Message{&m})
	return &m, nil
}

// UpdateContent rewrites text and attachments only. RoomID, UserID and
// Timestamp are never part of the update document.
func (r *MongoRepository) UpdateContent(ctx context.Context, id, text string, attachments []string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperrors.ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.msgColl.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"text": text, "attachment": attachments},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete removes one message scoped to (id, roomID). A non-empty authorID
// additionally constrains the filter to the message author.
func (r *MongoRepository) Delete(ctx context.Context, id, roomID, authorID string) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	filter := bson.M{"_id": oid, "roomId": roomID}
	if authorID != "" {
		filter["userId"] = authorID
	}
	res, err := r.msgColl.DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// FindRoomPage returns messages most-recent-first, skip(start) limit(end-start),
// each joined with the author projection.
func (r *MongoRepository) FindRoomPage(ctx context.Context, roomID string, start, end int64) ([]*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(start).
		SetLimit(end - start)
	cur, err := r.msgColl.Find(ctx, bson.M{"roomId": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*models.Message{}
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	r.attachAuthors(ctx, out)
	return out, nil
}

// Search does a case-insensitive substring match over text within the room.
func (r *MongoRepository) Search(ctx context.Context, roomID, keyword string) ([]*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"roomId": roomID,
		"text":   primitive.Regex{Pattern: regexp.QuoteMeta(keyword), Options: "i"},
	}
	cur, err := r.msgColl.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*models.Message{}
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	r.attachAuthors(ctx, out)
	return out, nil
}

// attachAuthors batch-loads the author projection for a set of messages.
// Missing users are left nil; a lookup failure degrades to bare messages.
func (r *MongoRepository) attachAuthors(ctx context.Context, msgs []*models.Message) {
	if len(msgs) == 0 {
		return
	}
	seen := map[string]struct{}{}
	ids := []string{}
	for _, m := range msgs {
		if _, ok := seen[m.UserID]; !ok {
			seen[m.UserID] = struct{}{}
			ids = append(ids, m.UserID)
		}
	}

	opts := options.Find().SetProjection(bson.M{
		"username": 1, "firstName": 1, "lastName": 1, "photo": 1,
	})
	cur, err := r.userColl.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return
	}
	defer cur.Close(ctx)

	users := map[string]*models.User{}
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			continue
		}
		users[u.ID] = &u
	}
	for _, m := range msgs {
		m.Author = users[m.UserID]
	}
}
