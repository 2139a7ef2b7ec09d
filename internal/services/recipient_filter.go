package services

import (
	"sort"

	"github.com/CyberwizD/sensor-notifier/internal/models"
)

// tieredClasses lists the tiers entitled to each tiered message class.
// Classes missing from the table go to every recipient.
var tieredClasses = map[models.MessageClass][]models.Tier{
	models.ClassInfoStateChange:    {models.TierStateChanges, models.TierEverything},
	models.ClassInfoPowerFailure:   {models.TierSystemHealth, models.TierEverything},
	models.ClassInfoSecurityBreach: {models.TierSystemHealth, models.TierEverything},
}

// FilterRecipients returns the recipients entitled to class, ordered by token.
// Duplicate tokens are collapsed to their first entry.
func FilterRecipients(recipients []models.Recipient, class models.MessageClass) []models.Recipient {
	tiers, tiered := tieredClasses[class]

	seen := make(map[string]struct{}, len(recipients))
	eligible := make([]models.Recipient, 0, len(recipients))
	for _, r := range recipients {
		if r.Token == "" {
			continue
		}
		if _, dup := seen[r.Token]; dup {
			continue
		}
		seen[r.Token] = struct{}{}
		if tiered && !hasTier(tiers, r.Tier) {
			continue
		}
		eligible = append(eligible, r)
	}

	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Token < eligible[j].Token })
	return eligible
}

func hasTier(tiers []models.Tier, t models.Tier) bool {
	for _, allowed := range tiers {
		if allowed == t {
			return true
		}
	}
	return false
}
