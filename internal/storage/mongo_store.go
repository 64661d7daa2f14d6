package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cloud-keychain/internal/keychain"
)

// MongoStore keeps one document per profile in "profiles" and one document
// per item in "items", scoped by profile name.
type MongoStore struct {
	client   *mongo.Client
	profiles *mongo.Collection
	items    *mongo.Collection
	profile  string
}

type itemDoc struct {
	ID                  string `bson:"_id"`
	Profile             string `bson:"profile"`
	keychain.ItemRecord `bson:",inline"`
}

func NewMongoStore(ctx context.Context, uri, dbName, profile string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("storage: mongo uri is empty")
	}
	if profile == "" {
		profile = keychain.DefaultProfileName
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	// Verify connection quickly
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}

	db := cli.Database(dbName)
	items := db.Collection("items")
	_, _ = items.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "profile", Value: 1}, {Key: "uuid", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &MongoStore{
		client:   cli,
		profiles: db.Collection("profiles"),
		items:    items,
		profile:  profile,
	}, nil
}

func (m *MongoStore) LoadProfile(ctx context.Context) (keychain.Profile, error) {
	var p keychain.Profile
	err := m.profiles.FindOne(ctx, bson.M{"_id": m.profile}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return p, ErrNotFound
	}
	return p, err
}

func (m *MongoStore) SaveProfile(ctx context.Context, p keychain.Profile) error {
	_, err := m.profiles.UpdateByID(
		ctx,
		m.profile,
		bson.M{
			"$set": p,
			"$setOnInsert": bson.M{
				"storedAt": time.Now(),
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (m *MongoStore) LoadItems(ctx context.Context) ([]keychain.ItemRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "uuid", Value: 1}})
	cur, err := m.items.Find(ctx, bson.M{"profile": m.profile}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []keychain.ItemRecord
	for cur.Next(ctx) {
		var doc itemDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.ItemRecord)
	}
	return out, cur.Err()
}

func (m *MongoStore) SaveItems(ctx context.Context, items []keychain.ItemRecord) error {
	keep := make([]string, 0, len(items))
	for _, r := range items {
		if r.UUID == "" {
			return errors.New("storage: item without uuid")
		}
		doc := itemDoc{ID: m.itemID(r.UUID), Profile: m.profile, ItemRecord: r}
		_, err := m.items.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
		if err != nil {
			return err
		}
		keep = append(keep, r.UUID)
	}
	_, err := m.items.DeleteMany(ctx, bson.M{
		"profile": m.profile,
		"uuid":    bson.M{"$nin": keep},
	})
	return err
}

func (m *MongoStore) itemID(uuid string) string { return m.profile + "/" + uuid }

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
