package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// productDoc matches the storefront's products collection. Only the fields
// the cart engine reads are decoded.
type productDoc struct {
	ID            primitive.ObjectID `bson:"_id"`
	Name          string             `bson:"name"`
	Price         float64            `bson:"price"`
	SalePrice     float64            `bson:"salePrice"`
	OnSale        bool               `bson:"onSale"`
	StockQuantity int                `bson:"stockQuantity"`
	IsAvailable   bool               `bson:"isAvailable"`
}

type mongoLookup struct {
	collection *mongo.Collection
}

// NewMongoLookup returns a Lookup reading the products collection.
func NewMongoLookup(db *mongo.Database) Lookup {
	return &mongoLookup{
		collection: db.Collection("products"),
	}
}

func (m *mongoLookup) GetProduct(ctx context.Context, productID string) (*Product, error) {
	oid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		// A malformed ID cannot name any product.
		return nil, ErrProductNotFound
	}

	var doc productDoc
	err = m.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &Product{
		ID:            doc.ID.Hex(),
		Name:          doc.Name,
		Price:         decimal.NewFromFloat(doc.Price),
		SalePrice:     decimal.NewFromFloat(doc.SalePrice),
		OnSale:        doc.OnSale,
		StockQuantity: doc.StockQuantity,
		IsAvailable:   doc.IsAvailable,
	}, nil
}
