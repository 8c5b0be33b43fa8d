// Package mongostore implements store.Store on MongoDB.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credmigrator/internal/common"
	"github.com/dmitrijs2005/credmigrator/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// RunsCollection receives one document per migrated collection and run.
const RunsCollection = "credential_migration_runs"

// DefaultDatabase is used when neither the config nor the URI names one.
const DefaultDatabase = "test"

// Fields names the document fields the migrator reads and writes.
type Fields struct {
	Identifier string
	Credential string
}

func (f Fields) withDefaults() Fields {
	if f.Identifier == "" {
		f.Identifier = "email"
	}
	if f.Credential == "" {
		f.Credential = "password"
	}
	return f
}

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	fields Fields
	closer store.CloseOnce
}

// Open connects to uri and verifies the connection with a ping. database
// may be empty, the URI's database (or DefaultDatabase) is used then.
func Open(ctx context.Context, uri, database string, fields Fields, timeout time.Duration) (*Store, error) {
	if uri == "" {
		return nil, common.ErrMissingConnectionString
	}
	if database == "" {
		database = databaseFromURI(uri)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return New(client, client.Database(database), fields), nil
}

// New wraps an already connected client.
func New(client *mongo.Client, db *mongo.Database, fields Fields) *Store {
	return &Store{client: client, db: db, fields: fields.withDefaults()}
}

func databaseFromURI(uri string) string {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil || cs.Database == "" {
		return DefaultDatabase
	}
	return cs.Database
}

func (s *Store) Collection(name string) (store.Collection, error) {
	if s.closer.Closed() {
		return nil, common.ErrAlreadyClosed
	}
	return NewCollection(s.db.Collection(name), s.fields), nil
}

func (s *Store) Ledger() store.Ledger {
	return NewLedger(s.db.Collection(RunsCollection))
}

func (s *Store) Close(ctx context.Context) error {
	return s.closer.Do(func() error {
		if err := s.client.Disconnect(ctx); err != nil {
			return fmt.Errorf("mongo disconnect: %w", err)
		}
		return nil
	})
}

type Collection struct {
	coll   *mongo.Collection
	fields Fields
}

func NewCollection(coll *mongo.Collection, fields Fields) *Collection {
	return &Collection{coll: coll, fields: fields.withDefaults()}
}

func (c *Collection) Name() string {
	return c.coll.Name()
}

func (c *Collection) Each(ctx context.Context, batchSize int, fn func(store.Record) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	opts := options.Find().
		SetBatchSize(int32(batchSize)).
		SetProjection(bson.D{
			{Key: "_id", Value: 1},
			{Key: c.fields.Identifier, Value: 1},
			{Key: c.fields.Credential, Value: 1},
		})

	cur, err := c.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return fmt.Errorf("find %s: %w", c.coll.Name(), err)
	}
	defer cur.Close(context.WithoutCancel(ctx))

	for cur.Next(ctx) {
		if err := fn(c.decode(cur.Current)); err != nil {
			return err
		}
	}
	if err := cur.Err(); err != nil {
		return fmt.Errorf("cursor %s: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *Collection) decode(doc bson.Raw) store.Record {
	r := store.Record{}

	id, err := doc.LookupErr("_id")
	if err != nil {
		r.Err = fmt.Errorf("document without _id: %w", err)
		return r
	}
	r.Key = id

	if email, ok := doc.Lookup(c.fields.Identifier).StringValueOK(); ok {
		r.Identifier = email
	}

	v := doc.Lookup(c.fields.Credential)
	switch v.Type {
	case bsontype.Type(0), bsontype.Null, bsontype.Undefined:
	case bsontype.String:
		r.Credential = v.StringValue()
		r.HasCredential = true
	default:
		r.Err = fmt.Errorf("field %q has type %s, want string", c.fields.Credential, v.Type)
	}
	return r
}

func (c *Collection) UpdateCredential(ctx context.Context, key any, old string, hadOld bool, hashed string) error {
	var current any
	if hadOld {
		current = old
	}

	filter := bson.D{
		{Key: "_id", Value: key},
		{Key: c.fields.Credential, Value: current},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: c.fields.Credential, Value: hashed}}},
	}

	res, err := c.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update %s: %w", c.coll.Name(), err)
	}
	if res.MatchedCount == 0 {
		return common.ErrVersionConflict
	}
	return nil
}

type Ledger struct {
	coll *mongo.Collection
}

func NewLedger(coll *mongo.Collection) *Ledger {
	return &Ledger{coll: coll}
}

func (l *Ledger) Record(ctx context.Context, run store.Run) error {
	failed := run.FailedRecords
	if failed == nil {
		failed = []string{}
	}

	doc := bson.D{
		{Key: "run_id", Value: run.RunID},
		{Key: "target", Value: run.Target},
		{Key: "collection", Value: run.Collection},
		{Key: "total_scanned", Value: run.TotalScanned},
		{Key: "total_updated", Value: run.TotalUpdated},
		{Key: "already_hashed", Value: run.AlreadyHashed},
		{Key: "total_skipped", Value: run.TotalSkipped},
		{Key: "total_failed", Value: run.TotalFailed},
		{Key: "aborted", Value: run.Aborted},
		{Key: "error", Value: run.Error},
		{Key: "started_at", Value: run.StartedAt},
		{Key: "finished_at", Value: run.FinishedAt},
		{Key: "failed_records", Value: failed},
	}

	if _, err := l.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("ledger write: %w", err)
	}
	return nil
}
