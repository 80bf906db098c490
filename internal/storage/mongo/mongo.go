// Package mongo provides a MongoDB-backed implementation of the
// storage.Store interface, matching the document store used by the
// original deployment for its reporting mirror.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mmynk/splitpilot/internal/models"
	"github.com/mmynk/splitpilot/internal/storage"
)

const (
	dbName         = "splitpilot"
	collectionName = "splits"
)

// Ensure MongoStore implements storage.Store
var _ storage.Store = (*MongoStore)(nil)

// MongoStore implements storage.Store using MongoDB. One document per
// split record, upserted by ledger expense id.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// New connects to MongoDB at the given URI and verifies the connection.
func New(ctx context.Context, uri string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(dbName).Collection(collectionName),
	}, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// splitDoc is the persisted document shape. Monetary amounts are stored
// as canonical decimal strings, never BSON doubles.
type splitDoc struct {
	ID              string            `bson:"_id"`
	LedgerExpenseID string            `bson:"ledger_expense_id"`
	GroupID         string            `bson:"group_id"`
	GroupName       string            `bson:"group_name"`
	Description     string            `bson:"description"`
	Total           string            `bson:"total"`
	PaidBy          string            `bson:"paid_by"`
	Items           []itemDoc         `bson:"items"`
	MemberSplits    map[string]string `bson:"member_splits"`
	CreatedAt       int64             `bson:"created_at"`
	UpdatedAt       int64             `bson:"updated_at"`
}

type itemDoc struct {
	Name    string   `bson:"name"`
	Price   string   `bson:"price"`
	Members []string `bson:"members"`
}

// SaveSplit upserts the record keyed by ledger expense id.
func (s *MongoStore) SaveSplit(ctx context.Context, record *models.SplitRecord) error {
	if record.LedgerExpenseID == "" {
		return fmt.Errorf("ledger expense id required")
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if record.CreatedAt == 0 {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	doc := toDoc(record)
	filter := bson.M{"ledger_expense_id": record.LedgerExpenseID}

	// Keep the original _id and created_at when replacing a snapshot.
	var existing splitDoc
	err := s.collection.FindOne(ctx, filter).Decode(&existing)
	switch {
	case err == nil:
		doc.ID = existing.ID
		doc.CreatedAt = existing.CreatedAt
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	case err != mongo.ErrNoDocuments:
		return fmt.Errorf("failed to check existing split: %w", err)
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := s.collection.ReplaceOne(ctx, filter, doc, opts); err != nil {
		return fmt.Errorf("failed to upsert split: %w", err)
	}
	return nil
}

// GetSplit retrieves a record by ledger expense id.
func (s *MongoStore) GetSplit(ctx context.Context, ledgerExpenseID string) (*models.SplitRecord, error) {
	var doc splitDoc
	err := s.collection.FindOne(ctx, bson.M{"ledger_expense_id": ledgerExpenseID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, ledgerExpenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get split: %w", err)
	}
	return fromDoc(&doc)
}

// ListSplitsByGroup retrieves all records for a group, newest first.
func (s *MongoStore) ListSplitsByGroup(ctx context.Context, groupID string) ([]*models.SplitRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.collection.Find(ctx, bson.M{"group_id": groupID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*models.SplitRecord
	for cursor.Next(ctx) {
		var doc splitDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode split: %w", err)
		}
		record, err := fromDoc(&doc)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return records, nil
}

func toDoc(record *models.SplitRecord) *splitDoc {
	doc := &splitDoc{
		ID:              record.ID,
		LedgerExpenseID: record.LedgerExpenseID,
		GroupID:         record.GroupID,
		GroupName:       record.GroupName,
		Description:     record.Description,
		Total:           record.Total.String(),
		PaidBy:          record.PaidBy,
		MemberSplits:    make(map[string]string, len(record.MemberSplits)),
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}
	for _, item := range record.Items {
		doc.Items = append(doc.Items, itemDoc{
			Name:    item.Name,
			Price:   item.Price.String(),
			Members: item.Members,
		})
	}
	for member, amount := range record.MemberSplits {
		doc.MemberSplits[member] = amount.String()
	}
	return doc
}

func fromDoc(doc *splitDoc) (*models.SplitRecord, error) {
	total, err := decimal.NewFromString(doc.Total)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total: %w", err)
	}
	record := &models.SplitRecord{
		ID:              doc.ID,
		LedgerExpenseID: doc.LedgerExpenseID,
		GroupID:         doc.GroupID,
		GroupName:       doc.GroupName,
		Description:     doc.Description,
		Total:           total,
		PaidBy:          doc.PaidBy,
		MemberSplits:    make(map[string]decimal.Decimal, len(doc.MemberSplits)),
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
	for _, item := range doc.Items {
		price, err := decimal.NewFromString(item.Price)
		if err != nil {
			return nil, fmt.Errorf("failed to parse item price: %w", err)
		}
		record.Items = append(record.Items, models.Item{
			Name:    item.Name,
			Price:   price,
			Members: item.Members,
		})
	}
	for member, amount := range doc.MemberSplits {
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse member amount: %w", err)
		}
		record.MemberSplits[member] = parsed
	}
	return record, nil
}
