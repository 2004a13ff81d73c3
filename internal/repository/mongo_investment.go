package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/agrovest/backend/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoInvestmentRepository implements domain.InvestmentRepository
type MongoInvestmentRepository struct {
	collection *mongo.Collection
}

// NewMongoInvestmentRepository creates the investment repository and
// bootstraps its indexes: tx_ref must be unique so a gateway transaction
// can never be counted twice.
func NewMongoInvestmentRepository(db *mongo.Database) *MongoInvestmentRepository {
	coll := db.Collection("investments")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tx_ref", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "start_date", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})

	return &MongoInvestmentRepository{
		collection: coll,
	}
}

func (r *MongoInvestmentRepository) Create(ctx context.Context, inv *domain.Investment) error {
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	objID := primitive.NewObjectID()
	inv.ID = objID.Hex()

	doc := bson.M{
		"_id":             objID,
		"user_id":         inv.UserID,
		"plan":            inv.Plan,
		"amount":          inv.Amount,
		"payment_method":  string(inv.PaymentMethod),
		"receipt_url":     inv.ReceiptURL,
		"tx_ref":          inv.TxRef,
		"start_date":      inv.StartDate,
		"maturity_date":   inv.MaturityDate,
		"expected_return": inv.ExpectedReturn,
		"countdown_days":  inv.CountdownDays,
		"status":          string(inv.Status),
		"created_at":      inv.CreatedAt,
		"updated_at":      inv.UpdatedAt,
	}

	_, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateTxRef
		}
		return fmt.Errorf("failed to create investment: %w", err)
	}
	return nil
}

func (r *MongoInvestmentRepository) GetByID(ctx context.Context, id string) (*domain.Investment, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	var raw bson.M
	if err := r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&raw); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get investment: %w", err)
	}
	return mapBsonToInvestment(raw), nil
}

func (r *MongoInvestmentRepository) GetByTxRef(ctx context.Context, txRef string) (*domain.Investment, error) {
	var raw bson.M
	if err := r.collection.FindOne(ctx, bson.M{"tx_ref": txRef}).Decode(&raw); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get investment by tx_ref: %w", err)
	}
	return mapBsonToInvestment(raw), nil
}

func (r *MongoInvestmentRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Investment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments by user: %w", err)
	}
	return decodeInvestments(ctx, cursor)
}

func (r *MongoInvestmentRepository) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Investment, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"status": string(status)})
	if err != nil {
		return nil, fmt.Errorf("failed to list investments by status: %w", err)
	}
	return decodeInvestments(ctx, cursor)
}

func (r *MongoInvestmentRepository) ListAll(ctx context.Context) ([]*domain.Investment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments: %w", err)
	}
	return decodeInvestments(ctx, cursor)
}

// UpdateIf writes fields only while the record still holds the expected
// status. The filter carries the status alongside the id, so a record
// another writer transitioned in the meantime is simply left alone.
func (r *MongoInvestmentRepository) UpdateIf(ctx context.Context, id string, expect domain.Status, fields map[string]interface{}) (bool, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, domain.ErrNotFound
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}

	filter := bson.M{"_id": objID, "status": string(expect)}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("failed to update investment: %w", err)
	}
	return result.MatchedCount == 1, nil
}

// UpdateStatusIf performs the conditional status transition every writer
// goes through. The filter matches both id and the expected current
// status, so concurrent writers cannot both apply a transition.
func (r *MongoInvestmentRepository) UpdateStatusIf(ctx context.Context, id string, from, to domain.Status, fields map[string]interface{}) (bool, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, domain.ErrNotFound
	}

	set := bson.M{
		"status":     string(to),
		"updated_at": time.Now().UTC(),
	}
	for k, v := range fields {
		set[k] = v
	}

	filter := bson.M{"_id": objID, "status": string(from)}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("failed to transition investment: %w", err)
	}
	if result.MatchedCount == 1 {
		return true, nil
	}

	// Nothing matched: either the record is gone or its status moved on.
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objID})
	if err != nil {
		return false, fmt.Errorf("failed to check investment existence: %w", err)
	}
	if count == 0 {
		return false, domain.ErrNotFound
	}
	return false, nil
}

func (r *MongoInvestmentRepository) Delete(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrNotFound
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return fmt.Errorf("failed to delete investment: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func decodeInvestments(ctx context.Context, cursor *mongo.Cursor) ([]*domain.Investment, error) {
	defer cursor.Close(ctx)

	var investments []*domain.Investment
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		investments = append(investments, mapBsonToInvestment(raw))
	}
	return investments, nil
}

func mapBsonToInvestment(raw bson.M) *domain.Investment {
	inv := &domain.Investment{}

	if oid, ok := raw["_id"].(primitive.ObjectID); ok {
		inv.ID = oid.Hex()
	}
	if userID, ok := raw["user_id"].(string); ok {
		inv.UserID = userID
	}
	if plan, ok := raw["plan"].(string); ok {
		inv.Plan = plan
	}
	if amount, ok := raw["amount"].(float64); ok {
		inv.Amount = amount
	} else if amount, ok := raw["amount"].(int64); ok {
		inv.Amount = float64(amount)
	} else if amount, ok := raw["amount"].(int32); ok {
		inv.Amount = float64(amount)
	}
	if method, ok := raw["payment_method"].(string); ok {
		inv.PaymentMethod = domain.PaymentMethod(method)
	}
	if receipt, ok := raw["receipt_url"].(string); ok {
		inv.ReceiptURL = receipt
	}
	if txRef, ok := raw["tx_ref"].(string); ok {
		inv.TxRef = txRef
	}
	if start, ok := raw["start_date"].(primitive.DateTime); ok {
		inv.StartDate = start.Time().UTC()
	}
	if maturity, ok := raw["maturity_date"].(primitive.DateTime); ok {
		inv.MaturityDate = maturity.Time().UTC()
	}
	if ret, ok := raw["expected_return"].(float64); ok {
		inv.ExpectedReturn = ret
	} else if ret, ok := raw["expected_return"].(int64); ok {
		inv.ExpectedReturn = float64(ret)
	} else if ret, ok := raw["expected_return"].(int32); ok {
		inv.ExpectedReturn = float64(ret)
	}
	if days, ok := raw["countdown_days"].(int32); ok {
		inv.CountdownDays = int(days)
	} else if days, ok := raw["countdown_days"].(int64); ok {
		inv.CountdownDays = int(days)
	}
	if status, ok := raw["status"].(string); ok {
		inv.Status = domain.Status(status)
	}
	if created, ok := raw["created_at"].(primitive.DateTime); ok {
		inv.CreatedAt = created.Time().UTC()
	}
	if updated, ok := raw["updated_at"].(primitive.DateTime); ok {
		inv.UpdatedAt = updated.Time().UTC()
	}

	return inv
}
