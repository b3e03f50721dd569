package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mkovalev/taskboard/internal/apperrors"
	"github.com/mkovalev/taskboard/internal/models"
	"github.com/mkovalev/taskboard/internal/repository"
)

type TaskRepo struct {
	collection *mongodriver.Collection
}

// taskDoc is the stored document shape. IDs are persisted as strings so
// documents stay readable in the shell and queryable without a custom
// uuid codec.
type taskDoc struct {
	ID          string     `bson:"_id"`
	Title       string     `bson:"title"`
	Description string     `bson:"description,omitempty"`
	Status      string     `bson:"status"`
	OwnerID     string     `bson:"owner_id"`
	Tags        []string   `bson:"tags"`
	DueDate     *time.Time `bson:"due_date,omitempty"`
	IsDeleted   bool       `bson:"is_deleted"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func (r *TaskRepo) CreateTask(ctx context.Context, params repository.CreateTaskParams) (models.Task, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)

	doc := taskDoc{
		ID:          uuid.NewString(),
		Title:       params.Title,
		Description: params.Description,
		Status:      string(params.Status),
		OwnerID:     params.OwnerID.String(),
		Tags:        params.Tags,
		DueDate:     params.DueDate,
		IsDeleted:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if doc.Status == "" {
		doc.Status = string(models.TaskStatusOpen)
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return models.Task{}, fmt.Errorf("mongo error: %w", err)
	}

	return docToTask(doc)
}

func (r *TaskRepo) GetTask(ctx context.Context, taskID uuid.UUID) (models.Task, error) {
	var doc taskDoc
	err := r.collection.FindOne(ctx, liveTaskFilter(taskID)).Decode(&doc)

	switch {
	case err == nil:
		return docToTask(doc)
	case errors.Is(err, mongodriver.ErrNoDocuments):
		return models.Task{}, apperrors.ErrTaskNotFound
	default:
		return models.Task{}, fmt.Errorf("mongo error: %w", err)
	}
}

func (r *TaskRepo) UpdateTask(ctx context.Context, taskID uuid.UUID, params repository.UpdateTaskParams) (models.Task, error) {
	set := bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)}
	unset := bson.M{}

	if params.Title != nil {
		set["title"] = *params.Title
	}
	if params.Description != nil {
		set["description"] = *params.Description
	}
	if params.Status != nil {
		set["status"] = string(*params.Status)
	}
	if params.Tags != nil {
		set["tags"] = *params.Tags
	}
	switch {
	case params.ClearDueDate:
		unset["due_date"] = ""
	case params.DueDate != nil:
		set["due_date"] = *params.DueDate
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc taskDoc
	err := r.collection.FindOneAndUpdate(ctx, liveTaskFilter(taskID), update, opts).Decode(&doc)

	switch {
	case err == nil:
		return docToTask(doc)
	case errors.Is(err, mongodriver.ErrNoDocuments):
		return models.Task{}, apperrors.ErrTaskNotFound
	default:
		return models.Task{}, fmt.Errorf("mongo error: %w", err)
	}
}

func (r *TaskRepo) ListTasks(ctx context.Context, params repository.ListTasksParams) ([]models.Task, int64, error) {
	filter := bson.M{"is_deleted": false}
	if params.OwnerID != nil {
		filter["owner_id"] = params.OwnerID.String()
	}
	if params.Status != nil {
		filter["status"] = string(*params.Status)
	}
	if q := strings.TrimSpace(params.Search); q != "" {
		filter["$text"] = bson.M{"$search": q}
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = 20
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo error: %w", err)
	}

	opts := options.Find().
		SetSort(sortSpec(params.Sort)).
		SetSkip(int64(page-1) * int64(limit)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo error: %w", err)
	}
	defer cursor.Close(ctx) // nolint:errcheck

	var docs []taskDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("mongo error: %w", err)
	}

	tasks := make([]models.Task, 0, len(docs))
	for _, doc := range docs {
		task, err := docToTask(doc)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, task)
	}

	return tasks, total, nil
}

func (r *TaskRepo) SoftDeleteTask(ctx context.Context, taskID uuid.UUID) error {
	update := bson.M{"$set": bson.M{
		"is_deleted": true,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	// Single atomic update: the filter excludes already-tombstoned tasks,
	// so a repeated delete reports not-found instead of rewriting the flag
	res, err := r.collection.UpdateOne(ctx, liveTaskFilter(taskID), update)
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrTaskNotFound
	}

	return nil
}

func (r *TaskRepo) HardDeleteTask(ctx context.Context, taskID uuid.UUID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": taskID.String()})
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.ErrTaskNotFound
	}

	return nil
}

// liveTaskFilter matches the task by id unless it is tombstoned
func liveTaskFilter(taskID uuid.UUID) bson.M {
	return bson.M{"_id": taskID.String(), "is_deleted": false}
}

// sortSpec translates an api-style sort parameter ("-createdAt",
// "dueDate") into a mongo sort document
func sortSpec(sort string) bson.D {
	field := strings.TrimSpace(sort)
	order := 1
	if strings.HasPrefix(field, "-") {
		field = field[1:]
		order = -1
	}

	column, ok := map[string]string{
		"createdAt": "created_at",
		"updatedAt": "updated_at",
		"dueDate":   "due_date",
		"title":     "title",
		"status":    "status",
	}[field]
	if !ok {
		return bson.D{{Key: "created_at", Value: -1}}
	}

	return bson.D{{Key: column, Value: order}}
}

func docToTask(doc taskDoc) (models.Task, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return models.Task{}, fmt.Errorf("malformed task id %q: %w", doc.ID, err)
	}
	ownerID, err := uuid.Parse(doc.OwnerID)
	if err != nil {
		return models.Task{}, fmt.Errorf("malformed task owner id %q: %w", doc.OwnerID, err)
	}

	return models.Task{
		ID:          id,
		Title:       doc.Title,
		Description: doc.Description,
		Status:      models.TaskStatus(doc.Status),
		OwnerID:     ownerID,
		Tags:        doc.Tags,
		DueDate:     doc.DueDate,
		IsDeleted:   doc.IsDeleted,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}
