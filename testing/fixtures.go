package testing

import (
	"fmt"

	"github.com/HeltonFraga01/cortexx-engine/models"
	"github.com/HeltonFraga01/cortexx-engine/utils"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods to create test data
type TestFixtures struct {
	db *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{db: db}
}

// CreateTestCampaign creates a draft campaign with the given number of
// pending contacts
func (tf *TestFixtures) CreateTestCampaign(userID uint, contactCount int) (*models.Campaign, []*models.CampaignContact, error) {
	campaign := &models.Campaign{
		UUID:   uuid.New(),
		UserID: userID,
		Status: models.CampaignStatusDraft,
		MessageSequence: models.MessageSequence{
			{Kind: "text", Body: "Hello {{name}}"},
		},
		DelayMin:      5,
		DelayMax:      10,
		Timezone:      "UTC",
		TotalContacts: contactCount,
		CreatedAt:     utils.UTCNow(),
	}
	if err := tf.db.DB.Create(campaign).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create test campaign: %w", err)
	}

	contacts := make([]*models.CampaignContact, 0, contactCount)
	for i := 0; i < contactCount; i++ {
		contact := &models.CampaignContact{
			CampaignID: campaign.ID,
			Phone:      fmt.Sprintf("55119999%04d", i),
			Variables:  models.ContactVariables{"name": fmt.Sprintf("Contact %d", i)},
			Status:     models.ContactStatusPending,
			Ordinal:    i,
			CreatedAt:  utils.UTCNow(),
			UpdatedAt:  utils.UTCNow(),
		}
		if err := tf.db.DB.Create(contact).Error; err != nil {
			return nil, nil, fmt.Errorf("failed to create test contact %d: %w", i, err)
		}
		contacts = append(contacts, contact)
	}

	return campaign, contacts, nil
}

// MarkContactsSent flips the first n contacts to sent and advances the
// campaign cursor, simulating a partially delivered campaign
func (tf *TestFixtures) MarkContactsSent(campaign *models.Campaign, contacts []*models.CampaignContact, n int) error {
	for i := 0; i < n && i < len(contacts); i++ {
		contacts[i].Status = models.ContactStatusSent
		if err := tf.db.DB.Save(contacts[i]).Error; err != nil {
			return fmt.Errorf("failed to mark contact %d sent: %w", i, err)
		}
	}
	campaign.CurrentIndex = n
	campaign.SentCount = n
	if err := tf.db.DB.Save(campaign).Error; err != nil {
		return fmt.Errorf("failed to advance campaign cursor: %w", err)
	}
	return nil
}
