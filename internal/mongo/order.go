// Package mongo provides a MongoDB-backed order store.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ordersCollection = "orders"

// Connect dials MongoDB and verifies the connection.
func Connect(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

// lineDocument stores money as a decimal string; bson has no encoder for
// decimal.Decimal.
type lineDocument struct {
	ProductRef   string `bson:"product_ref"`
	Title        string `bson:"title"`
	UnitPrice    string `bson:"unit_price"`
	Quantity     int    `bson:"quantity"`
	Size         string `bson:"size,omitempty"`
	Color        string `bson:"color,omitempty"`
	DisplayImage string `bson:"display_image,omitempty"`
}

type addressDocument struct {
	Name        string `bson:"name"`
	Email       string `bson:"email"`
	Street      string `bson:"street"`
	City        string `bson:"city"`
	PostalCode  string `bson:"postal_code"`
	CountryCode string `bson:"country_code"`
}

type orderDocument struct {
	ID                     string          `bson:"_id"`
	OwnerID                string          `bson:"owner_id"`
	Lines                  []lineDocument  `bson:"lines"`
	TotalAmount            string          `bson:"total_amount"`
	Currency               string          `bson:"currency"`
	ShippingAddress        addressDocument `bson:"shipping_address"`
	PaymentAuthorizationID string          `bson:"payment_authorization_id"`
	Status                 string          `bson:"status"`
	CreatedAt              time.Time       `bson:"created_at"`
}

func toDocument(o *domain.Order) orderDocument {
	lines := make([]lineDocument, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, lineDocument{
			ProductRef:   l.ProductRef,
			Title:        l.Title,
			UnitPrice:    l.UnitPrice.String(),
			Quantity:     l.Quantity,
			Size:         l.Size,
			Color:        l.Color,
			DisplayImage: l.DisplayImage,
		})
	}

	a := o.ShippingAddress
	return orderDocument{
		ID:          o.ID,
		OwnerID:     o.OwnerID,
		Lines:       lines,
		TotalAmount: o.TotalAmount.StringFixed(2),
		Currency:    o.Currency,
		ShippingAddress: addressDocument{
			Name:        a.Name,
			Email:       a.Email,
			Street:      a.Street,
			City:        a.City,
			PostalCode:  a.PostalCode,
			CountryCode: a.CountryCode,
		},
		PaymentAuthorizationID: o.PaymentAuthorizationID,
		Status:                 string(o.Status),
		CreatedAt:              o.CreatedAt,
	}
}

func (d orderDocument) toOrder() (*domain.Order, error) {
	total, err := decimal.NewFromString(d.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("parse total for order %s: %w", d.ID, err)
	}

	lines := make([]domain.CartLine, 0, len(d.Lines))
	for _, l := range d.Lines {
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("parse unit price for order %s: %w", d.ID, err)
		}
		lines = append(lines, domain.CartLine{
			ProductRef:   l.ProductRef,
			Title:        l.Title,
			UnitPrice:    price,
			Quantity:     l.Quantity,
			Size:         l.Size,
			Color:        l.Color,
			DisplayImage: l.DisplayImage,
		})
	}

	a := d.ShippingAddress
	return &domain.Order{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		Lines:       lines,
		TotalAmount: total,
		Currency:    d.Currency,
		ShippingAddress: domain.ShippingAddress{
			Name:        a.Name,
			Email:       a.Email,
			Street:      a.Street,
			City:        a.City,
			PostalCode:  a.PostalCode,
			CountryCode: a.CountryCode,
		},
		PaymentAuthorizationID: d.PaymentAuthorizationID,
		Status:                 domain.OrderStatus(d.Status),
		CreatedAt:              d.CreatedAt.UTC(),
	}, nil
}

// OrderStore implements domain.OrderStore on a MongoDB collection with a
// unique index on payment_authorization_id.
type OrderStore struct {
	collection *mongo.Collection
}

var _ domain.OrderStore = (*OrderStore)(nil)

func NewOrderStore(db *mongo.Database) *OrderStore {
	return &OrderStore{collection: db.Collection(ordersCollection)}
}

// CreateIndexes must run before the store accepts writes.
func (s *OrderStore) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "payment_authorization_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("payment_authorization_id_unique"),
		},
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}

	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (s *OrderStore) Create(ctx context.Context, order *domain.Order) error {
	_, err := s.collection.InsertOne(ctx, toDocument(order))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicatePayment
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *OrderStore) GetByAuthorizationID(ctx context.Context, authorizationID string) (*domain.Order, error) {
	return s.findOne(ctx, bson.M{"payment_authorization_id": authorizationID})
}

func (s *OrderStore) findOne(ctx context.Context, filter bson.M) (*domain.Order, error) {
	var doc orderDocument
	if err := s.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return doc.toOrder()
}

// ListByOwner returns the owner's orders, newest first.
func (s *OrderStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := s.collection.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []domain.Order{}
	for cursor.Next(ctx) {
		var doc orderDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode order: %w", err)
		}
		o, err := doc.toOrder()
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return orders, nil
}
