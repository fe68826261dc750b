package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jaideep-27/spargen-project/internal/domain"
)

// lineDoc and cartDoc are the stored shapes. Prices are kept as decimal
// strings so no precision is lost crossing the BSON boundary.
type lineDoc struct {
	ID        string    `bson:"line_id"`
	ProductID string    `bson:"product_id"`
	Quantity  int       `bson:"quantity"`
	UnitPrice string    `bson:"unit_price"`
	AddedAt   time.Time `bson:"added_at"`
}

type cartDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	UserID     string             `bson:"user_id"`
	Lines      []lineDoc          `bson:"lines"`
	TotalPrice string             `bson:"total_price"`
	CreatedAt  time.Time          `bson:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at"`
}

func (d *cartDoc) toDomain() (*domain.Cart, error) {
	cart := &domain.Cart{
		UserID:    d.UserID,
		Lines:     make([]domain.Line, 0, len(d.Lines)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if !d.ID.IsZero() {
		cart.ID = d.ID.Hex()
	}
	for _, l := range d.Lines {
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("bad unit price %q on line %s: %w", l.UnitPrice, l.ID, err)
		}
		cart.Lines = append(cart.Lines, domain.Line{
			ID:        l.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: price,
			AddedAt:   l.AddedAt,
		})
	}
	cart.RecomputeTotal()
	return cart, nil
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *MongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	doc, err := m.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return doc.toDomain()
}

func (m *MongoRepository) UpsertItem(ctx context.Context, userID, productID string, quantity int, unitPrice decimal.Decimal) (*domain.Cart, error) {
	now := time.Now()

	doc, err := m.load(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		doc = &cartDoc{UserID: userID, CreatedAt: now}
	} else if err != nil {
		return nil, err
	}

	found := false
	for i := range doc.Lines {
		if doc.Lines[i].ProductID == productID {
			doc.Lines[i].Quantity += quantity
			doc.Lines[i].UnitPrice = unitPrice.String()
			doc.Lines[i].AddedAt = now
			found = true
			break
		}
	}
	if !found {
		doc.Lines = append(doc.Lines, lineDoc{
			ID:        uuid.NewString(),
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: unitPrice.String(),
			AddedAt:   now,
		})
	}

	return m.save(ctx, doc)
}

func (m *MongoRepository) UpdateLine(ctx context.Context, userID, lineID string, quantity int) (*domain.Cart, error) {
	doc, err := m.load(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		// A missing cart has no such line.
		return nil, ErrLineNotFound
	} else if err != nil {
		return nil, err
	}

	found := false
	for i := range doc.Lines {
		if doc.Lines[i].ID == lineID {
			doc.Lines[i].Quantity = quantity
			found = true
			break
		}
	}
	if !found {
		return nil, ErrLineNotFound
	}

	return m.save(ctx, doc)
}

func (m *MongoRepository) RemoveLine(ctx context.Context, userID, lineID string) (*domain.Cart, error) {
	doc, err := m.load(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return nil, ErrLineNotFound
	} else if err != nil {
		return nil, err
	}

	found := false
	for i := range doc.Lines {
		if doc.Lines[i].ID == lineID {
			doc.Lines = append(doc.Lines[:i], doc.Lines[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return nil, ErrLineNotFound
	}

	return m.save(ctx, doc)
}

func (m *MongoRepository) ClearCart(ctx context.Context, userID string) (*domain.Cart, error) {
	doc, err := m.load(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		doc = &cartDoc{UserID: userID, CreatedAt: time.Now()}
	} else if err != nil {
		return nil, err
	}

	doc.Lines = nil
	return m.save(ctx, doc)
}

func (m *MongoRepository) load(ctx context.Context, userID string) (*cartDoc, error) {
	var doc cartDoc

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &doc, nil
}

// save writes the whole document back and returns the resulting cart. The
// cart is replaced as a unit so the derived total can never be persisted
// out of step with the lines. The single-writer-per-cart contract makes a
// read-modify-write cycle safe here.
func (m *MongoRepository) save(ctx context.Context, doc *cartDoc) (*domain.Cart, error) {
	cart, err := doc.toDomain()
	if err != nil {
		return nil, err
	}

	doc.TotalPrice = cart.TotalPrice.String()
	doc.UpdatedAt = time.Now()
	cart.UpdatedAt = doc.UpdatedAt

	filter := bson.M{"user_id": doc.UserID}
	opts := options.Replace().SetUpsert(true)

	result, err := m.collection.ReplaceOne(ctx, filter, doc, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	if result.UpsertedID != nil {
		if oid, ok := result.UpsertedID.(primitive.ObjectID); ok {
			cart.ID = oid.Hex()
		}
	}

	return cart, nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
