package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// maxPushAttempts bounds the inc-or-push loop when concurrent adds race on a new line.
const maxPushAttempts = 3

type cartDocument struct {
	ID         string               `bson:"_id"`
	OwnerKind  string               `bson:"owner_kind"`
	OwnerID    string               `bson:"owner_id"`
	Lines      []cartLineDocument   `bson:"lines"`
	TotalPrice primitive.Decimal128 `bson:"total_price"`
	CreatedAt  time.Time            `bson:"created_at"`
	UpdatedAt  time.Time            `bson:"updated_at"`
}

type cartLineDocument struct {
	ProductID string               `bson:"product_id"`
	Name      string               `bson:"name"`
	UnitPrice primitive.Decimal128 `bson:"unit_price"`
	Quantity  int                  `bson:"quantity"`
	Size      string               `bson:"size"`
	Color     string               `bson:"color"`
}

// mongoCartRepository implements CartRepository on a MongoDB collection.
type mongoCartRepository struct {
	collection *mongo.Collection
	logger     zerolog.Logger
}

// NewMongoCartRepository creates a MongoDB-backed cart repository on the "carts" collection.
func NewMongoCartRepository(db *mongo.Database, logger zerolog.Logger) CartRepository {
	return &mongoCartRepository{
		collection: db.Collection("carts"),
		logger:     logger.With().Str("repository", "cart_mongo").Logger(),
	}
}

// CreateMongoCartIndexes enforces one cart per owner.
func CreateMongoCartIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_kind", Value: 1}, {Key: "owner_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "updated_at", Value: 1}},
		},
	}

	if _, err := db.Collection("carts").Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func ownerFilter(owner model.Owner) bson.M {
	return bson.M{"owner_kind": string(owner.Kind), "owner_id": owner.ID}
}

func lineMatch(key model.LineKey) bson.M {
	return bson.M{"product_id": key.ProductID, "size": key.Size, "color": key.Color}
}

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return v
}

func fromDecimal128(d primitive.Decimal128) decimal.Decimal {
	v, err := decimal.NewFromString(d.String())
	if err != nil {
		return decimal.Zero
	}
	return v
}

func (doc *cartDocument) toModel() *model.Cart {
	cart := &model.Cart{
		Owner:      model.Owner{Kind: model.OwnerKind(doc.OwnerKind), ID: doc.OwnerID},
		Lines:      make([]model.CartLine, 0, len(doc.Lines)),
		TotalPrice: fromDecimal128(doc.TotalPrice),
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
	if id, err := uuid.Parse(doc.ID); err == nil {
		cart.ID = id
	}
	for _, l := range doc.Lines {
		cart.Lines = append(cart.Lines, model.CartLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: fromDecimal128(l.UnitPrice),
			Quantity:  l.Quantity,
			Size:      l.Size,
			Color:     l.Color,
		})
	}
	return cart
}

func lineDocument(l model.CartLine) cartLineDocument {
	return cartLineDocument{
		ProductID: l.ProductID,
		Name:      l.Name,
		UnitPrice: toDecimal128(l.UnitPrice),
		Quantity:  l.Quantity,
		Size:      l.Size,
		Color:     l.Color,
	}
}

// GetByOwner returns the owner's cart, or nil when there is none.
func (m *mongoCartRepository) GetByOwner(ctx context.Context, owner model.Owner) (*model.Cart, error) {
	var doc cartDocument
	err := m.collection.FindOne(ctx, ownerFilter(owner)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		m.logger.Error().Err(err).Str("owner", owner.String()).Msg("failed to get cart")
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return doc.toModel(), nil
}

// AddLine applies the line to the owner's cart, creating it if needed, then recomputes the total server-side.
func (m *mongoCartRepository) AddLine(ctx context.Context, owner model.Owner, line model.CartLine) (*model.Cart, error) {
	if line.Quantity < 1 {
		return nil, model.ErrInvalidQuantity
	}

	if err := m.ensureCart(ctx, owner); err != nil {
		return nil, err
	}

	if err := m.applyLine(ctx, owner, line); err != nil {
		return nil, err
	}

	if err := m.recomputeTotal(ctx, owner); err != nil {
		return nil, err
	}

	return m.GetByOwner(ctx, owner)
}

// applyLine increments the matching element with $inc, or pushes a new element guarded by $not/$elemMatch.
func (m *mongoCartRepository) applyLine(ctx context.Context, owner model.Owner, line model.CartLine) error {
	key := line.Key()
	for attempt := 0; attempt < maxPushAttempts; attempt++ {
		incFilter := ownerFilter(owner)
		incFilter["lines"] = bson.M{"$elemMatch": lineMatch(key)}
		res, err := m.collection.UpdateOne(ctx, incFilter, bson.M{
			"$inc": bson.M{"lines.$.quantity": line.Quantity},
		})
		if err != nil {
			return fmt.Errorf("failed to increment cart line: %w", err)
		}
		if res.MatchedCount > 0 {
			return nil
		}

		pushFilter := ownerFilter(owner)
		pushFilter["lines"] = bson.M{"$not": bson.M{"$elemMatch": lineMatch(key)}}
		res, err = m.collection.UpdateOne(ctx, pushFilter, bson.M{
			"$push": bson.M{"lines": lineDocument(line)},
		})
		if err != nil {
			return fmt.Errorf("failed to push cart line: %w", err)
		}
		if res.MatchedCount > 0 {
			return nil
		}
	}

	m.logger.Error().Str("owner", owner.String()).Str("product_id", line.ProductID).Msg("cart line contention")
	return fmt.Errorf("failed to add cart line: contention on %s", line.ProductID)
}

// SetLineQuantity sets a line's quantity; a quantity <= 0 removes it.
func (m *mongoCartRepository) SetLineQuantity(ctx context.Context, owner model.Owner, key model.LineKey, quantity int) (*model.Cart, error) {
	if quantity <= 0 {
		return m.RemoveLine(ctx, owner, key)
	}

	filter := ownerFilter(owner)
	filter["lines"] = bson.M{"$elemMatch": lineMatch(key)}
	res, err := m.collection.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"lines.$.quantity": quantity},
	})
	if err != nil {
		m.logger.Error().Err(err).Str("owner", owner.String()).Msg("failed to update item quantity")
		return nil, fmt.Errorf("failed to update item quantity: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, m.missing(ctx, owner)
	}

	if err := m.recomputeTotal(ctx, owner); err != nil {
		return nil, err
	}
	return m.GetByOwner(ctx, owner)
}

// RemoveLine deletes a single line.
func (m *mongoCartRepository) RemoveLine(ctx context.Context, owner model.Owner, key model.LineKey) (*model.Cart, error) {
	filter := ownerFilter(owner)
	filter["lines"] = bson.M{"$elemMatch": lineMatch(key)}
	res, err := m.collection.UpdateOne(ctx, filter, bson.M{
		"$pull": bson.M{"lines": lineMatch(key)},
	})
	if err != nil {
		m.logger.Error().Err(err).Str("owner", owner.String()).Msg("failed to remove item")
		return nil, fmt.Errorf("failed to remove item: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, m.missing(ctx, owner)
	}

	if err := m.recomputeTotal(ctx, owner); err != nil {
		return nil, err
	}
	return m.GetByOwner(ctx, owner)
}

// MergeInto applies each line of from's cart to to's cart with the same per-line $inc or guarded $push
// used by AddLine, so concurrent additions to to's cart are kept.
func (m *mongoCartRepository) MergeInto(ctx context.Context, from, to model.Owner) (*model.Cart, error) {
	source, err := m.GetByOwner(ctx, from)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, model.ErrCartNotFound
	}

	if err := m.ensureCart(ctx, to); err != nil {
		return nil, err
	}
	for _, line := range source.Lines {
		if err := m.applyLine(ctx, to, line); err != nil {
			m.logger.Error().Err(err).Str("from", from.String()).Str("to", to.String()).Msg("failed to merge cart line")
			return nil, err
		}
	}

	if err := m.recomputeTotal(ctx, to); err != nil {
		return nil, err
	}
	return m.GetByOwner(ctx, to)
}

// Reassign moves the cart of from to to.
func (m *mongoCartRepository) Reassign(ctx context.Context, from, to model.Owner) error {
	res, err := m.collection.UpdateOne(ctx, ownerFilter(from), bson.M{
		"$set": bson.M{
			"owner_kind": string(to.Kind),
			"owner_id":   to.ID,
			"updated_at": time.Now().UTC(),
		},
	})
	if err != nil {
		m.logger.Error().Err(err).Str("from", from.String()).Str("to", to.String()).Msg("failed to reassign cart")
		return fmt.Errorf("failed to reassign cart: %w", err)
	}
	if res.MatchedCount == 0 {
		return model.ErrCartNotFound
	}
	return nil
}

// Delete removes the owner's cart and reports whether one existed.
func (m *mongoCartRepository) Delete(ctx context.Context, owner model.Owner) (bool, error) {
	res, err := m.collection.DeleteOne(ctx, ownerFilter(owner))
	if err != nil {
		m.logger.Error().Err(err).Str("owner", owner.String()).Msg("failed to delete cart")
		return false, fmt.Errorf("failed to delete cart: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// ensureCart creates an empty cart document for owner if none exists.
func (m *mongoCartRepository) ensureCart(ctx context.Context, owner model.Owner) error {
	now := time.Now().UTC()
	_, err := m.collection.UpdateOne(ctx, ownerFilter(owner), bson.M{
		"$setOnInsert": bson.M{
			"_id":         uuid.New().String(),
			"lines":       bson.A{},
			"total_price": toDecimal128(decimal.Zero),
			"created_at":  now,
		},
		"$set": bson.M{"updated_at": now},
	}, options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		m.logger.Error().Err(err).Str("owner", owner.String()).Msg("failed to create cart")
		return fmt.Errorf("failed to create cart: %w", err)
	}
	return nil
}

// recomputeTotal sets total_price to Σ unit_price*quantity with an update pipeline.
func (m *mongoCartRepository) recomputeTotal(ctx context.Context, owner model.Owner) error {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "total_price", Value: bson.M{
				"$toDecimal": bson.M{
					"$sum": bson.M{
						"$map": bson.M{
							"input": "$lines",
							"as":    "l",
							"in":    bson.M{"$multiply": bson.A{"$$l.unit_price", "$$l.quantity"}},
						},
					},
				},
			}},
			{Key: "updated_at", Value: "$$NOW"},
		}}},
	}

	if _, err := m.collection.UpdateOne(ctx, ownerFilter(owner), pipeline); err != nil {
		m.logger.Error().Err(err).Str("owner", owner.String()).Msg("failed to recompute cart total")
		return fmt.Errorf("failed to recompute cart total: %w", err)
	}
	return nil
}

// missing distinguishes an absent cart from an absent line after a no-match update.
func (m *mongoCartRepository) missing(ctx context.Context, owner model.Owner) error {
	n, err := m.collection.CountDocuments(ctx, ownerFilter(owner))
	if err != nil {
		return fmt.Errorf("failed to check cart: %w", err)
	}
	if n == 0 {
		return model.ErrCartNotFound
	}
	return model.ErrLineNotFound
}
