package database

import (
	"context"
	"time"
	"transferdesk/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Seeder represents a database seeder
type Seeder struct {
	Name        string
	Description string
	Seed        func(*mongo.Database) error
}

var seeders = []Seeder{
	{
		Name:        "demo_locations",
		Description: "Create demo dealership locations",
		Seed:        seedDemoLocations,
	},
	{
		Name:        "demo_users",
		Description: "Create demo staff users",
		Seed:        seedDemoUsers,
	},
	{
		Name:        "default_templates",
		Description: "Create default notification templates",
		Seed:        seedDefaultTemplates,
	},
	{
		Name:        "sample_rules",
		Description: "Create a sample transfer request rule",
		Seed:        seedSampleRules,
	},
}

// RunSeeders executes all database seeders once per database.
func RunSeeders(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seedersCol := db.Collection("seeders")
	count, err := seedersCol.CountDocuments(ctx, bson.M{})
	if err == nil && count > 0 {
		logrus.Info("🌱 Seeders already run, skipping...")
		return nil
	}

	logrus.Info("🌱 Running database seeders...")

	for _, seeder := range seeders {
		logrus.Infof("🔄 Running seeder: %s", seeder.Name)

		if err := seeder.Seed(db); err != nil {
			logrus.Errorf("❌ Seeder %s failed: %v", seeder.Name, err)
			continue
		}

		if _, err := seedersCol.InsertOne(ctx, bson.M{
			"name":      seeder.Name,
			"createdAt": time.Now(),
		}); err != nil {
			logrus.Warnf("Failed to record seeder %s: %v", seeder.Name, err)
		}

		logrus.Infof("✅ Seeder %s completed", seeder.Name)
	}

	return nil
}

var (
	seedLocationMain     = primitive.NewObjectID()
	seedLocationDowntown = primitive.NewObjectID()
	seedTemplateTransfer = primitive.NewObjectID()
	seedTemplateArrival  = primitive.NewObjectID()
)

func seedDemoLocations(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	locations := []interface{}{
		models.Location{
			ID:        seedLocationMain,
			Code:      "L1",
			Name:      "Main Street Motors",
			Address:   "100 Main St",
			Phone:     "+15550100100",
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		models.Location{
			ID:        seedLocationDowntown,
			Code:      "L2",
			Name:      "Downtown Showroom",
			Address:   "25 Commerce Ave",
			Phone:     "+15550100200",
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	_, err := db.Collection("locations").InsertMany(ctx, locations)
	return err
}

func seedDemoUsers(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	users := []interface{}{
		models.User{
			ID:         primitive.NewObjectID(),
			FirstName:  "Dana",
			LastName:   "Whitfield",
			Email:      "dana.whitfield@transferdesk.local",
			Phone:      "+15550100301",
			Role:       models.RoleManager,
			LocationID: seedLocationMain.Hex(),
			OnShift:    true,
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		models.User{
			ID:         primitive.NewObjectID(),
			FirstName:  "Marcus",
			LastName:   "Reyes",
			Email:      "marcus.reyes@transferdesk.local",
			Phone:      "+15550100302",
			Role:       models.RoleTransport,
			LocationID: seedLocationMain.Hex(),
			OnShift:    true,
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		models.User{
			ID:         primitive.NewObjectID(),
			FirstName:  "Priya",
			LastName:   "Shah",
			Email:      "priya.shah@transferdesk.local",
			Role:       models.RoleSales,
			LocationID: seedLocationDowntown.Hex(),
			OnShift:    false,
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}

	_, err := db.Collection("users").InsertMany(ctx, users)
	return err
}

func seedDefaultTemplates(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	templates := []interface{}{
		models.NotificationTemplate{
			ID:   seedTemplateTransfer,
			Name: "Transfer Requested",
			Email: &models.EmailTemplateContent{
				Subject: "Transfer requested: {{vehicle}}",
				Body:    "{{requestedBy}} requested a transfer of {{vehicle}} (stock {{stockNumber}}) from {{fromLocation}} to {{toLocation}}.",
			},
			SMS: &models.SMSTemplateContent{
				Body: "Transfer requested: {{vehicle}} from {{fromLocation}} to {{toLocation}} by {{requestedBy}}",
			},
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		models.NotificationTemplate{
			ID:   seedTemplateArrival,
			Name: "Vehicle Arrived",
			Email: &models.EmailTemplateContent{
				Subject: "Vehicle arrived: {{vehicle}}",
				Body:    "Hi {{recipientName}}, {{vehicle}} (stock {{stockNumber}}) has arrived at {{toLocation}}.",
			},
			SMS: &models.SMSTemplateContent{
				Body: "{{vehicle}} has arrived at {{toLocation}}",
			},
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	_, err := db.Collection("notification_templates").InsertMany(ctx, templates)
	return err
}

func seedSampleRules(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	rule := models.NotificationRule{
		ID:          primitive.NewObjectID(),
		Name:        "Notify managers on transfer requests",
		Description: "Managers at the vehicle's current location hear about every transfer request",
		Active:      true,
		Event:       models.EventTransferRequested,
		Conditions:  []models.RuleCondition{},
		Recipients: models.RecipientConfig{
			CurrentLocation: []models.Role{models.RoleManager},
		},
		Channels: models.ChannelSettings{
			Email: models.ChannelConfig{
				Enabled:    true,
				TemplateID: seedTemplateTransfer.Hex(),
			},
			SMS: models.ChannelConfig{
				Enabled:    true,
				TemplateID: seedTemplateTransfer.Hex(),
			},
			Priority: models.ChannelPriorityEmailFirst,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := db.Collection("notification_rules").InsertOne(ctx, rule)
	return err
}
