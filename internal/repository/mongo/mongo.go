package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	tasksCollection = "tasks"
	defaultDBName   = "taskboard"
)

// Storage is a thin adapter around the mongo client and the collections
// the task store uses
type Storage struct {
	client *mongodriver.Client
	db     *mongodriver.Database
	tasks  *mongodriver.Collection
}

// Connect to mongo, ping it and ensure indexes
func Connect(ctx context.Context, uri string) (*Storage, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri must not be empty")
	}

	client, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect error: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping error: %w", err)
	}

	db := client.Database(databaseFromURI(uri))

	s := &Storage{
		client: client,
		db:     db,
		tasks:  db.Collection(tasksCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Storage) Tasks() *TaskRepo {
	return &TaskRepo{collection: s.tasks}
}

// ensureIndexes creates the indexes task queries rely on:
// - text over title and description for search
// - (owner_id, status, is_deleted) for scoped listing
func (s *Storage) ensureIndexes(ctx context.Context) error {
	indexes := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "title", Value: "text"}, {Key: "description", Value: "text"}},
			Options: options.Index().SetName("tasks_text_search"),
		},
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "status", Value: 1}, {Key: "is_deleted", Value: 1}},
			Options: options.Index().SetName("tasks_owner_status_deleted"),
		},
	}

	_, err := s.tasks.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("mongo ensure indexes error: %w", err)
	}

	return nil
}

// databaseFromURI extracts the database name from the uri path,
// falling back to the default when it's absent
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}
