package participant

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultTimeout = 10 * time.Second

// participantDocument is the stored shape. image_id is an ObjectID when it
// points into GridFS and a plain string for other blob stores.
type participantDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Filename    string             `bson:"filename"`
	Data        []byte             `bson:"data,omitempty"`
	ContentType string             `bson:"content_type,omitempty"`
	ImageID     any                `bson:"image_id,omitempty"`
	Name        string             `bson:"name"`
	Email       string             `bson:"email"`
	Phone       string             `bson:"phone"`
	Status      string             `bson:"status"`
	QRCode      string             `bson:"qr_code,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"`
}

func toDocument(p *Participant) participantDocument {
	doc := participantDocument{
		Filename:    p.Filename,
		Data:        p.Data,
		ContentType: p.ContentType,
		Name:        p.Name,
		Email:       p.Email,
		Phone:       p.Phone,
		Status:      string(p.Status),
		QRCode:      p.QRCode,
		CreatedAt:   p.CreatedAt,
	}
	if p.ImageID != "" {
		if oid, err := primitive.ObjectIDFromHex(p.ImageID); err == nil {
			doc.ImageID = oid
		} else {
			doc.ImageID = p.ImageID
		}
	}
	return doc
}

func (d participantDocument) participant() Participant {
	p := Participant{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Email:       d.Email,
		Phone:       d.Phone,
		Filename:    d.Filename,
		Data:        d.Data,
		ContentType: d.ContentType,
		Status:      Status(d.Status),
		QRCode:      d.QRCode,
		CreatedAt:   d.CreatedAt,
	}
	switch v := d.ImageID.(type) {
	case primitive.ObjectID:
		p.ImageID = v.Hex()
	case string:
		p.ImageID = v
	}
	if p.Status == "" {
		p.Status = StatusNotEntered
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = d.ID.Timestamp()
	}
	return p
}

// MongoRepository persists participants in a MongoDB collection.
type MongoRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoRepository binds to database/collection on client.
func NewMongoRepository(client *mongo.Client, database, collection string) *MongoRepository {
	return &MongoRepository{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}
}

// EnsureIndexes creates the status index used by the dashboard counts.
func (m *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}}})
	return err
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, defaultTimeout)
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrMalformedID
	}
	return oid, nil
}

func (m *MongoRepository) Insert(ctx context.Context, p *Participant) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	r, err := m.collection.InsertOne(ctx, toDocument(p))
	if err != nil {
		return err
	}
	oid, ok := r.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("incorrect inserted id")
	}
	p.ID = oid.Hex()
	return nil
}

func (m *MongoRepository) Get(ctx context.Context, id string) (*Participant, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var doc participantDocument
	if err := m.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p := doc.participant()
	return &p, nil
}

func (m *MongoRepository) set(ctx context.Context, id string, fields bson.M) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	r, err := m.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if r.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	return m.set(ctx, id, bson.M{"status": string(status)})
}

func (m *MongoRepository) SetQRCode(ctx context.Context, id, qrCode string) error {
	return m.set(ctx, id, bson.M{"qr_code": qrCode})
}

func (m *MongoRepository) List(ctx context.Context) ([]Participant, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	cursor, err := m.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var res []Participant
	for cursor.Next(ctx) {
		var doc participantDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		res = append(res, doc.participant())
	}
	return res, cursor.Err()
}

func (m *MongoRepository) CountByStatus(ctx context.Context, status Status) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return m.collection.CountDocuments(ctx, bson.M{"status": string(status)})
}

func (m *MongoRepository) DeleteAll(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	r, err := m.collection.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	return r.DeletedCount, nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return m.client.Ping(ctx, nil)
}
