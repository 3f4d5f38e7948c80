package services

import (
	"context"
	"strconv"
	"transferdesk/interfaces"
	"transferdesk/models"
	"transferdesk/utils"

	"github.com/sirupsen/logrus"
)

// ResolvedRecipient is one notification target. Key identifies the person
// across channels (user ID for directory users, the literal address for
// additionalEmails/additionalPhones entries), so the dispatcher can pair a
// recipient's email and SMS items for primary/fallback ordering.
type ResolvedRecipient struct {
	Key   string
	Name  string
	Email string // normalized, empty when the user has no email
	Phone string // E.164, empty when the user has no phone
}

// ResolvedSet is the deduplicated, channel-partitioned output of recipient
// resolution. Iteration order is insertion order, so resolution is
// deterministic for identical inputs.
type ResolvedSet struct {
	recipients []ResolvedRecipient
	byKey      map[string]int
}

func newResolvedSet() *ResolvedSet {
	return &ResolvedSet{byKey: make(map[string]int)}
}

func (rs *ResolvedSet) add(r ResolvedRecipient) {
	if idx, ok := rs.byKey[r.Key]; ok {
		// Same person reached through two buckets: keep the first entry,
		// fill in any address it was missing.
		if rs.recipients[idx].Email == "" {
			rs.recipients[idx].Email = r.Email
		}
		if rs.recipients[idx].Phone == "" {
			rs.recipients[idx].Phone = r.Phone
		}
		return
	}
	rs.byKey[r.Key] = len(rs.recipients)
	rs.recipients = append(rs.recipients, r)
}

// Recipients returns all resolved recipients in insertion order.
func (rs *ResolvedSet) Recipients() []ResolvedRecipient {
	return rs.recipients
}

// EmailAddresses returns the deduplicated email set.
func (rs *ResolvedSet) EmailAddresses() []string {
	seen := make(map[string]bool)
	var addresses []string
	for _, r := range rs.recipients {
		if r.Email != "" && !seen[r.Email] {
			seen[r.Email] = true
			addresses = append(addresses, r.Email)
		}
	}
	return addresses
}

func (rs *ResolvedSet) hasEmail(address string) bool {
	for _, r := range rs.recipients {
		if r.Email == address {
			return true
		}
	}
	return false
}

func (rs *ResolvedSet) hasPhone(number string) bool {
	for _, r := range rs.recipients {
		if r.Phone == number {
			return true
		}
	}
	return false
}

// PhoneNumbers returns the deduplicated phone set.
func (rs *ResolvedSet) PhoneNumbers() []string {
	seen := make(map[string]bool)
	var numbers []string
	for _, r := range rs.recipients {
		if r.Phone != "" && !seen[r.Phone] {
			seen[r.Phone] = true
			numbers = append(numbers, r.Phone)
		}
	}
	return numbers
}

// RecipientResolver expands a rule's recipient configuration into concrete,
// channel-qualified addresses via the user directory.
type RecipientResolver struct {
	directory          interfaces.UserDirectory
	evaluator          *ConditionEvaluator
	defaultCountryCode string
}

func NewRecipientResolver(directory interfaces.UserDirectory, evaluator *ConditionEvaluator) *RecipientResolver {
	return &RecipientResolver{
		directory:          directory,
		evaluator:          evaluator,
		defaultCountryCode: "1",
	}
}

// Resolve expands the rule's recipient config against the event. Directory
// failures are isolated per bucket: a failed lookup logs a warning and
// contributes nothing, it never aborts the other buckets. An empty result
// is a valid terminal state, not an error.
func (rr *RecipientResolver) Resolve(ctx context.Context, rule *models.NotificationRule, event *models.Event) *ResolvedSet {
	set := newResolvedSet()
	config := &rule.Recipients

	for _, bucket := range rr.locationBuckets(config, event) {
		if len(bucket.roles) == 0 || bucket.locationCode == "" {
			continue
		}

		users, err := rr.directory.GetUsersAtLocation(ctx, bucket.locationCode, bucket.roles)
		if err != nil {
			logrus.Warnf("Recipient lookup failed for %s bucket at location %s: %v",
				bucket.name, bucket.locationCode, err)
			continue
		}

		for _, user := range users {
			if config.UseConditions && !rr.candidateMatches(rule, event, &user) {
				continue
			}
			rr.addUser(set, &user)
		}
	}

	if len(config.SpecificUsers) > 0 {
		users, err := rr.directory.GetUsersByIDs(ctx, config.SpecificUsers)
		if err != nil {
			logrus.Warnf("Specific user lookup failed: %v", err)
		} else {
			for _, user := range users {
				rr.addUser(set, &user)
			}
		}
	}

	// Literal addresses that already belong to a resolved user are the same
	// person, not a second recipient.
	for _, email := range config.AdditionalEmails {
		normalized := utils.NormalizeEmail(email)
		if normalized == "" || set.hasEmail(normalized) {
			continue
		}
		set.add(ResolvedRecipient{Key: "email:" + normalized, Email: normalized})
	}

	for _, phone := range config.AdditionalPhones {
		normalized, err := utils.NormalizePhone(phone, rr.defaultCountryCode)
		if err != nil {
			logrus.Warnf("Skipping unparseable additional phone %q: %v", phone, err)
			continue
		}
		if set.hasPhone(normalized) {
			continue
		}
		set.add(ResolvedRecipient{Key: "sms:" + normalized, Phone: normalized})
	}

	return set
}

type locationBucket struct {
	name         string
	locationCode string
	roles        []models.Role
}

// locationBuckets derives each bucket's location from the event. The
// requesting/destination buckets reference a transfer's from/to locations
// and are ignored for non-transfer events.
func (rr *RecipientResolver) locationBuckets(config *models.RecipientConfig, event *models.Event) []locationBucket {
	current, _ := event.Field(models.FieldCurrentLocation)

	buckets := []locationBucket{
		{name: "current", locationCode: current, roles: config.CurrentLocation},
	}

	if event.Type.IsTransfer() {
		from, _ := event.Field(models.FieldFromLocation)
		to, _ := event.Field(models.FieldToLocation)
		buckets = append(buckets,
			locationBucket{name: "requesting", locationCode: from, roles: config.RequestingLocation},
			locationBucket{name: "destination", locationCode: to, roles: config.DestinationLocation},
		)
	}

	return buckets
}

// candidateMatches re-runs the rule's conditions with the candidate's own
// attributes overlaid. Conditions over event fields resolve identically for
// every candidate and act as a global gate; recipient-scoped conditions
// filter the bucket membership down.
func (rr *RecipientResolver) candidateMatches(rule *models.NotificationRule, event *models.Event, user *models.User) bool {
	extras := map[string]string{
		models.FieldRecipientRole:    string(user.Role),
		models.FieldRecipientName:    user.FullName(),
		models.FieldRecipientEmail:   utils.NormalizeEmail(user.Email),
		models.FieldRecipientOnShift: strconv.FormatBool(user.OnShift),
	}
	return rr.evaluator.EvaluateWithExtras(rule, event, extras)
}

// addUser normalizes the user's contact info and adds them to the set. A
// user with no usable address on a channel is silently excluded from that
// channel's set; that is expected, not an error.
func (rr *RecipientResolver) addUser(set *ResolvedSet, user *models.User) {
	recipient := ResolvedRecipient{
		Key:  user.ID.Hex(),
		Name: user.FullName(),
	}

	if user.Email != "" {
		recipient.Email = utils.NormalizeEmail(user.Email)
	}
	if user.Phone != "" {
		normalized, err := utils.NormalizePhone(user.Phone, rr.defaultCountryCode)
		if err != nil {
			logrus.Debugf("User %s has unparseable phone %q: %v", user.ID.Hex(), user.Phone, err)
		} else {
			recipient.Phone = normalized
		}
	}

	if recipient.Email == "" && recipient.Phone == "" {
		return
	}

	set.add(recipient)
}
