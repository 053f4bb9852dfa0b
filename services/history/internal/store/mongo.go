package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const progressCollection = "watch_progress"

type progressDoc struct {
	ID              string    `bson:"_id"`
	UserID          string    `bson:"userId"`
	MediaID         string    `bson:"mediaId"`
	MediaType       string    `bson:"mediaType"`
	Title           string    `bson:"title,omitempty"`
	PosterPath      string    `bson:"posterPath,omitempty"`
	PositionSeconds float64   `bson:"positionSeconds"`
	DurationSeconds float64   `bson:"durationSeconds"`
	ProgressPercent int       `bson:"progressPercent"`
	Completed       bool      `bson:"completed"`
	SeasonNumber    *int      `bson:"seasonNumber,omitempty"`
	EpisodeNumber   *int      `bson:"episodeNumber,omitempty"`
	Quality         string    `bson:"quality,omitempty"`
	WatchedAt       time.Time `bson:"watchedAt"`
	LastPlayedAt    time.Time `bson:"lastPlayedAt"`
}

// MongoStore persists progress records in MongoDB. The composite document id
// makes one document per (user, media type, media id) and lets the upsert be
// a single find-and-modify round trip.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	return &MongoStore{
		client:     client,
		collection: client.Database(dbName).Collection(progressCollection),
	}
}

func progressDocID(userID, mediaID string, mediaType MediaType) string {
	return userID + ":" + string(mediaType) + ":" + mediaID
}

// EnsureIndexes creates the secondary indexes backing the list queries.
// Tuple uniqueness is already enforced by the composite _id.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "lastPlayedAt", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "completed", Value: 1}}},
	}
	_, err := s.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (s *MongoStore) Upsert(ctx context.Context, p UpsertParams) (ProgressRecord, error) {
	set := bson.M{
		"userId":          p.UserID,
		"mediaId":         p.MediaID,
		"mediaType":       string(p.MediaType),
		"positionSeconds": p.PositionSeconds,
		"durationSeconds": p.DurationSeconds,
		"progressPercent": p.ProgressPercent,
		"completed":       p.Completed,
		"lastPlayedAt":    p.LastPlayedAt,
	}
	if p.SeasonNumber != nil {
		set["seasonNumber"] = *p.SeasonNumber
	}
	if p.EpisodeNumber != nil {
		set["episodeNumber"] = *p.EpisodeNumber
	}
	if p.Quality != "" {
		set["quality"] = p.Quality
	}

	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"title":      p.Snapshot.Title,
			"posterPath": p.Snapshot.PosterPath,
			"watchedAt":  p.LastPlayedAt,
		},
	}
	filter := bson.M{"_id": progressDocID(p.UserID, p.MediaID, p.MediaType)}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc progressDoc
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// Two first writes for the same tuple can race on the upsert insert;
		// the loser re-issues against the now-existing document.
		err = s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	}
	if err != nil {
		return ProgressRecord{}, storageErr("upsert", err)
	}
	return docToRecord(doc), nil
}

func (s *MongoStore) Get(ctx context.Context, userID, mediaID string, mediaType MediaType) (ProgressRecord, error) {
	filter := bson.M{"_id": progressDocID(userID, mediaID, mediaType)}

	var doc progressDoc
	if err := s.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ProgressRecord{}, ErrNotFound
		}
		return ProgressRecord{}, storageErr("get", err)
	}
	return docToRecord(doc), nil
}

func (s *MongoStore) List(ctx context.Context, userID string, q Query) ([]ProgressRecord, error) {
	filter := bson.M{"userId": userID}
	if q.MediaType != "" {
		filter["mediaType"] = string(q.MediaType)
	}
	if q.InProgress {
		filter["completed"] = false
		filter["progressPercent"] = bson.M{"$gt": 0, "$lt": completedThresholdPercent}
	}

	opts := options.Find().SetSort(bson.D{{Key: "lastPlayedAt", Value: -1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, storageErr("list", err)
	}
	defer cursor.Close(ctx)

	var docs []progressDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, storageErr("list", err)
	}

	records := make([]ProgressRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, docToRecord(doc))
	}
	return records, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func docToRecord(doc progressDoc) ProgressRecord {
	return ProgressRecord{
		UserID:          doc.UserID,
		MediaID:         doc.MediaID,
		MediaType:       MediaType(doc.MediaType),
		Title:           doc.Title,
		PosterPath:      doc.PosterPath,
		PositionSeconds: doc.PositionSeconds,
		DurationSeconds: doc.DurationSeconds,
		ProgressPercent: doc.ProgressPercent,
		Completed:       doc.Completed,
		SeasonNumber:    doc.SeasonNumber,
		EpisodeNumber:   doc.EpisodeNumber,
		Quality:         doc.Quality,
		WatchedAt:       doc.WatchedAt.UTC(),
		LastPlayedAt:    doc.LastPlayedAt.UTC(),
	}
}
