package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	Up          func(*mongo.Database) error
}

// migrationRecord tracks applied migrations
type migrationRecord struct {
	Version   int       `bson:"version"`
	AppliedAt time.Time `bson:"appliedAt"`
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Create users collection with indexes",
		Up:          createUsersCollection,
	},
	{
		Version:     2,
		Description: "Create locations collection with indexes",
		Up:          createLocationsCollection,
	},
	{
		Version:     3,
		Description: "Create notification rules collection with indexes",
		Up:          createRulesCollection,
	},
	{
		Version:     4,
		Description: "Create notification templates collection with indexes",
		Up:          createTemplatesCollection,
	},
	{
		Version:     5,
		Description: "Create dispatch logs collection with indexes",
		Up:          createDispatchLogsCollection,
	},
}

// RunMigrations executes all pending migrations
func RunMigrations(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	migrationsCol := db.Collection("migrations")
	currentVersion := getCurrentMigrationVersion(ctx, migrationsCol)
	logrus.Infof("📋 Current migration version: %d", currentVersion)

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		logrus.Infof("🔄 Running migration %d: %s", migration.Version, migration.Description)

		if err := migration.Up(db); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		_, err := migrationsCol.InsertOne(ctx, migrationRecord{
			Version:   migration.Version,
			AppliedAt: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		logrus.Infof("✅ Migration %d completed", migration.Version)
	}

	return nil
}

func getCurrentMigrationVersion(ctx context.Context, col *mongo.Collection) int {
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	var record migrationRecord
	if err := col.FindOne(ctx, bson.D{}, opts).Decode(&record); err != nil {
		return 0
	}
	return record.Version
}

func createUsersCollection(db *mongo.Database) error {
	return createIndexes(db, "users", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "locationId", Value: 1}, {Key: "role", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "isActive", Value: 1}},
		},
	})
}

func createLocationsCollection(db *mongo.Database) error {
	return createIndexes(db, "locations", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "isActive", Value: 1}},
		},
	})
}

func createRulesCollection(db *mongo.Database) error {
	return createIndexes(db, "notification_rules", []mongo.IndexModel{
		{
			// The intake hot path: active rules for one event type.
			Keys: bson.D{{Key: "event", Value: 1}, {Key: "active", Value: 1}, {Key: "isDeleted", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "createdAt", Value: -1}},
		},
	})
}

func createTemplatesCollection(db *mongo.Database) error {
	return createIndexes(db, "notification_templates", []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "active", Value: 1}, {Key: "isDeleted", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "name", Value: 1}},
		},
	})
}

func createDispatchLogsCollection(db *mongo.Database) error {
	return createIndexes(db, "dispatch_logs", []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "reportId", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "eventType", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "ruleId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
		{
			// Logs age out after 90 days.
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60),
		},
	})
}

func createIndexes(db *mongo.Database, collection string, indexes []mongo.IndexModel) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes)
	return err
}
