package verifystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/chouha-community/gatekeeper/app/models"
	"github.com/chouha-community/gatekeeper/internal/pkg/config"
)

const mongoCollection = "verified_users"

// mongoStore persists records in a MongoDB collection, one document per
// member, replaced wholesale on every verification.
type mongoStore struct {
	coll *mongo.Collection
}

func newMongoStore(cfg *config.Config) (*mongoStore, error) {
	if cfg.MongoURI == "" {
		return nil, errors.New("mongodb backend selected but MONGODB_URI is empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	log.Infof("[VerifyStore] MongoDB backend connected, database: %s", cfg.MongoDatabase)
	return &mongoStore{
		coll: client.Database(cfg.MongoDatabase).Collection(mongoCollection),
	}, nil
}

func (s *mongoStore) Name() string { return "mongodb" }

func (s *mongoStore) Put(ctx context.Context, user *models.VerifiedUser) error {
	doc := bson.M{
		"discord_id":   user.DiscordID,
		"username":     user.Username,
		"email":        user.Email,
		"avatar_url":   user.AvatarURL,
		"premium_type": user.PremiumType,
		"status":       user.Status,
		"verified_at":  user.VerifiedAt,
		"updated_at":   time.Now(),
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.coll.ReplaceOne(ctx, bson.M{"discord_id": user.DiscordID}, doc, opts); err != nil {
		return fmt.Errorf("mongodb upsert: %w", err)
	}
	return nil
}

func (s *mongoStore) Get(ctx context.Context, discordID string) (*models.VerifiedUser, error) {
	var doc struct {
		DiscordID   string    `bson:"discord_id"`
		Username    string    `bson:"username"`
		Email       string    `bson:"email"`
		AvatarURL   string    `bson:"avatar_url"`
		PremiumType int       `bson:"premium_type"`
		Status      string    `bson:"status"`
		VerifiedAt  time.Time `bson:"verified_at"`
		UpdatedAt   time.Time `bson:"updated_at"`
	}
	err := s.coll.FindOne(ctx, bson.M{"discord_id": discordID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	return &models.VerifiedUser{
		DiscordID:   doc.DiscordID,
		Username:    doc.Username,
		Email:       doc.Email,
		AvatarURL:   doc.AvatarURL,
		PremiumType: doc.PremiumType,
		Status:      doc.Status,
		VerifiedAt:  doc.VerifiedAt,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}

func (s *mongoStore) List(ctx context.Context) ([]models.VerifiedUser, error) {
	cursor, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongodb list: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.VerifiedUser
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			log.Warnf("[VerifyStore] Skipping undecodable document: %v", err)
			continue
		}
		user := models.VerifiedUser{Status: models.STATUS_VERIFIED}
		if v, ok := doc["discord_id"].(string); ok {
			user.DiscordID = v
		}
		if v, ok := doc["username"].(string); ok {
			user.Username = v
		}
		if v, ok := doc["email"].(string); ok {
			user.Email = v
		}
		if v, ok := doc["avatar_url"].(string); ok {
			user.AvatarURL = v
		}
		if v, ok := doc["premium_type"].(int32); ok {
			user.PremiumType = int(v)
		}
		if v, ok := doc["verified_at"].(primitive.DateTime); ok {
			user.VerifiedAt = v.Time()
		}
		users = append(users, user)
	}
	return users, cursor.Err()
}
