package rights

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Oracle is the authoritative source for room-scoped permission checks.
// Client-claimed rights are only a hint; every privileged path must go
// through the oracle.
type Oracle interface {
	HasRight(ctx context.Context, userID, roomID, right string) (bool, error)
}

type MongoOracle struct {
	coll *mongo.Collection
}

func NewMongoOracle(db *mongo.Database) *MongoOracle {
	return &MongoOracle{coll: db.Collection("rights")}
}

func (o *MongoOracle) HasRight(ctx context.Context, userID, roomID, right string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	n, err := o.coll.CountDocuments(ctx, bson.M{
		"userId": userID,
		"roomId": roomID,
		"rights": right,
	}, nil)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Cached fronts an Oracle with a short-lived Redis decision cache. A nil
// client disables caching; cache errors fall through to the inner oracle.
type Cached struct {
	inner Oracle
	rdb   *redis.Client
	ttl   time.Duration
}

func NewCached(inner Oracle, rdb *redis.Client, ttl time.Duration) *Cached {
	return &Cached{inner: inner, rdb: rdb, ttl: ttl}
}

func (c *Cached) key(userID, roomID, right string) string {
	return fmt.Sprintf("rights:%s:%s:%s", userID, roomID, right)
}

func (c *Cached) HasRight(ctx context.Context, userID, roomID, right string) (bool, error) {
	if c.rdb == nil {
		return c.inner.HasRight(ctx, userID, roomID, right)
	}

	key := c.key(userID, roomID, right)
	if v, err := c.rdb.Get(ctx, key).Result(); err == nil {
		return v == "1", nil
	}

	ok, err := c.inner.HasRight(ctx, userID, roomID, right)
	if err != nil {
		return false, err
	}
	val := "0"
	if ok {
		val = "1"
	}
	_ = c.rdb.Set(ctx, key, val, c.ttl).Err()
	return ok, nil
}
