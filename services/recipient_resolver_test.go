package services

import (
	"context"
	"errors"
	"testing"
	"transferdesk/models"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// mockDirectory is an in-memory UserDirectory keyed by location code.
type mockDirectory struct {
	byLocation map[string][]models.User
	byID       map[string]models.User
	failures   map[string]error
	calls      []string
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		byLocation: make(map[string][]models.User),
		byID:       make(map[string]models.User),
		failures:   make(map[string]error),
	}
}

func (m *mockDirectory) addUser(locationCode string, user models.User) models.User {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.IsActive = true
	m.byLocation[locationCode] = append(m.byLocation[locationCode], user)
	m.byID[user.ID.Hex()] = user
	return user
}

func (m *mockDirectory) GetUsersAtLocation(ctx context.Context, locationCode string, roles []models.Role) ([]models.User, error) {
	m.calls = append(m.calls, locationCode)
	if err, ok := m.failures[locationCode]; ok {
		return nil, err
	}

	roleSet := make(map[models.Role]bool)
	for _, r := range roles {
		roleSet[r] = true
	}

	var matched []models.User
	for _, u := range m.byLocation[locationCode] {
		if roleSet[u.Role] {
			matched = append(matched, u)
		}
	}
	return matched, nil
}

func (m *mockDirectory) GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error) {
	var users []models.User
	for _, id := range userIDs {
		if u, ok := m.byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func resolverEvent() *models.Event {
	return &models.Event{
		Type: models.EventTransferRequested,
		Payload: map[string]interface{}{
			"currentLocation": "L1",
			"fromLocation":    "L1",
			"toLocation":      "L2",
			"priority":        "high",
		},
	}
}

func TestResolve_LocationRoleBuckets(t *testing.T) {
	dir := newMockDirectory()
	manager := dir.addUser("L1", models.User{
		FirstName: "Dana", LastName: "Whitfield",
		Email: "Dana.Whitfield@Example.com", Role: models.RoleManager,
	})
	dir.addUser("L1", models.User{
		FirstName: "Priya", LastName: "Shah",
		Email: "priya@example.com", Role: models.RoleSales,
	})
	sales := dir.addUser("L2", models.User{
		FirstName: "Marcus", LastName: "Reyes",
		Phone: "(555) 010-0302", Role: models.RoleSales,
	})

	resolver := NewRecipientResolver(dir, NewConditionEvaluator())
	rule := &models.NotificationRule{
		Event: models.EventTransferRequested,
		Recipients: models.RecipientConfig{
			CurrentLocation:     []models.Role{models.RoleManager},
			DestinationLocation: []models.Role{models.RoleSales},
		},
	}

	set := resolver.Resolve(context.Background(), rule, resolverEvent())
	recipients := set.Recipients()

	assert.Len(t, recipients, 2)
	assert.Equal(t, manager.ID.Hex(), recipients[0].Key)
	assert.Equal(t, "dana.whitfield@example.com", recipients[0].Email)
	assert.Equal(t, sales.ID.Hex(), recipients[1].Key)
	assert.Equal(t, "+15550100302", recipients[1].Phone)
}

func TestResolve_NonTransferEventIgnoresTransferBuckets(t *testing.T) {
	dir := newMockDirectory()
	dir.addUser("L2", models.User{
		FirstName: "Marcus", Email: "marcus@example.com", Role: models.RoleSales,
	})

	resolver := NewRecipientResolver(dir, NewConditionEvaluator())
	rule := &models.NotificationRule{
		Event: models.EventCommentAdded,
		Recipients: models.RecipientConfig{
			DestinationLocation: []models.Role{models.RoleSales},
		},
	}
	event := &models.Event{
		Type: models.EventCommentAdded,
		Payload: map[string]interface{}{
			"currentLocation": "L1",
			"toLocation":      "L2", // not a transfer field for this event
		},
	}

	set := resolver.Resolve(context.Background(), rule, event)
	assert.Empty(t, set.Recipients())
	assert.NotContains(t, dir.calls, "L2")
}

func TestResolve_UseConditionsFiltersCandidates(t *testing.T) {
	dir := newMockDirectory()
	onShift := dir.addUser("L1", models.User{
		FirstName: "Dana", Email: "dana@example.com",
		Role: models.RoleManager, OnShift: true,
	})
	dir.addUser("L1", models.User{
		FirstName: "Lee", Email: "lee@example.com",
		Role: models.RoleManager, OnShift: false,
	})

	resolver := NewRecipientResolver(dir, NewConditionEvaluator())
	rule := &models.NotificationRule{
		Event:          models.EventTransferRequested,
		ConditionLogic: models.ConditionLogicAnd,
		Conditions: []models.RuleCondition{
			{Field: "priority", Operator: models.OperatorEquals, Value: "high"},
			{Field: "recipientOnShift", Operator: models.OperatorEquals, Value: "true"},
		},
		Recipients: models.RecipientConfig{
			UseConditions:   true,
			CurrentLocation: []models.Role{models.RoleManager},
		},
	}

	set := resolver.Resolve(context.Background(), rule, resolverEvent())
	recipients := set.Recipients()

	assert.Len(t, recipients, 1)
	assert.Equal(t, onShift.ID.Hex(), recipients[0].Key)
}

func TestResolve_SpecificUsersBypassConditionFilter(t *testing.T) {
	dir := newMockDirectory()
	offShift := dir.addUser("L1", models.User{
		FirstName: "Lee", Email: "lee@example.com",
		Role: models.RoleManager, OnShift: false,
	})

	resolver := NewRecipientResolver(dir, NewConditionEvaluator())
	rule := &models.NotificationRule{
		Event:          models.EventTransferRequested,
		ConditionLogic: models.ConditionLogicAnd,
		Conditions: []models.RuleCondition{
			{Field: "recipientOnShift", Operator: models.OperatorEquals, Value: "true"},
		},
		Recipients: models.RecipientConfig{
			UseConditions: true,
			SpecificUsers: []string{offShift.ID.Hex()},
		},
	}

	set := resolver.Resolve(context.Background(), rule, resolverEvent())
	assert.Len(t, set.Recipients(), 1)
}

func TestResolve_AdditionalAddressesNormalized(t *testing.T) {
	dir := newMockDirectory()
	resolver := NewRecipientResolver(dir, NewConditionEvaluator())

	rule := &models.NotificationRule{
		Event: models.EventTransferRequested,
		Recipients: models.RecipientConfig{
			AdditionalEmails: []string{"  Ops@Example.COM ", "ops@example.com"},
			AdditionalPhones: []string{"(555) 010-0400", "not-a-number"},
		},
	}

	set := resolver.Resolve(context.Background(), rule, resolverEvent())

	assert.Equal(t, []string{"ops@example.com"}, set.EmailAddresses())
	assert.Equal(t, []string{"+15550100400"}, set.PhoneNumbers())
}

func TestResolve_AdditionalAddressMatchingUserMergesIntoOneRecipient(t *testing.T) {
	dir := newMockDirectory()
	dir.addUser("L1", models.User{
		FirstName: "Dana", Email: "Dana@Example.com", Phone: "(555) 010-0302",
		Role: models.RoleManager,
	})

	resolver := NewRecipientResolver(dir, NewConditionEvaluator())
	rule := &models.NotificationRule{
		Event: models.EventTransferRequested,
		Recipients: models.RecipientConfig{
			CurrentLocation:  []models.Role{models.RoleManager},
			AdditionalEmails: []string{"dana@example.com"},
			AdditionalPhones: []string{"555-010-0302"},
		},
	}

	set := resolver.Resolve(context.Background(), rule, resolverEvent())

	assert.Len(t, set.Recipients(), 1)
	assert.Equal(t, []string{"dana@example.com"}, set.EmailAddresses())
	assert.Equal(t, []string{"+15550100302"}, set.PhoneNumbers())
}

func TestResolve_SameUserInTwoBucketsResolvedOnce(t *testing.T) {
	dir := newMockDirectory()
	user := models.User{
		ID:        primitive.NewObjectID(),
		FirstName: "Dana", Email: "dana@example.com", Role: models.RoleManager,
		IsActive: true,
	}
	// The same person staffs both rooftops in the directory fixture.
	dir.byLocation["L1"] = append(dir.byLocation["L1"], user)
	dir.byLocation["L2"] = append(dir.byLocation["L2"], user)
	dir.byID[user.ID.Hex()] = user

	resolver := NewRecipientResolver(dir, NewConditionEvaluator())
	rule := &models.NotificationRule{
		Event: models.EventTransferRequested,
		Recipients: models.RecipientConfig{
			CurrentLocation:     []models.Role{models.RoleManager},
			DestinationLocation: []models.Role{models.RoleManager},
		},
	}

	set := resolver.Resolve(context.Background(), rule, resolverEvent())
	assert.Len(t, set.Recipients(), 1)
	assert.Equal(t, []string{"dana@example.com"}, set.EmailAddresses())
}

func TestResolve_DirectoryFailureIsolatedPerBucket(t *testing.T) {
	dir := newMockDirectory()
	dir.addUser("L2", models.User{
		FirstName: "Marcus", Email: "marcus@example.com", Role: models.RoleSales,
	})
	dir.failures["L1"] = errors.New("directory unavailable")

	resolver := NewRecipientResolver(dir, NewConditionEvaluator())
	rule := &models.NotificationRule{
		Event: models.EventTransferRequested,
		Recipients: models.RecipientConfig{
			CurrentLocation:     []models.Role{models.RoleManager},
			DestinationLocation: []models.Role{models.RoleSales},
		},
	}

	set := resolver.Resolve(context.Background(), rule, resolverEvent())
	assert.Len(t, set.Recipients(), 1)
	assert.Equal(t, "marcus@example.com", set.Recipients()[0].Email)
}

func TestResolve_UserWithoutAnyAddressDropped(t *testing.T) {
	dir := newMockDirectory()
	dir.addUser("L1", models.User{
		FirstName: "Ghost", Role: models.RoleManager,
	})

	resolver := NewRecipientResolver(dir, NewConditionEvaluator())
	rule := &models.NotificationRule{
		Event: models.EventTransferRequested,
		Recipients: models.RecipientConfig{
			CurrentLocation: []models.Role{models.RoleManager},
		},
	}

	set := resolver.Resolve(context.Background(), rule, resolverEvent())
	assert.Empty(t, set.Recipients())
}
