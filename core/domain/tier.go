package domain

const unlimited = 999999

// TierLimits bounds usage per subscription tier. Counters are derived by
// counting rows created since the start of the current calendar month.
type TierLimits struct {
	MaxAccounts      int
	MaxAPIKeys       int
	EmailsPerMonth   int
	DraftsPerMonth   int
	AutoReply        bool
	AIClassification bool
	RetentionDays    int
}

var tierLimits = map[string]TierLimits{
	"free": {
		MaxAccounts:      1,
		MaxAPIKeys:       1,
		EmailsPerMonth:   100,
		DraftsPerMonth:   10,
		AutoReply:        false,
		AIClassification: false,
		RetentionDays:    30,
	},
	"pro": {
		MaxAccounts:      3,
		MaxAPIKeys:       5,
		EmailsPerMonth:   1000,
		DraftsPerMonth:   100,
		AutoReply:        true,
		AIClassification: true,
		RetentionDays:    90,
	},
	"team": {
		MaxAccounts:      10,
		MaxAPIKeys:       20,
		EmailsPerMonth:   10000,
		DraftsPerMonth:   unlimited,
		AutoReply:        true,
		AIClassification: true,
		RetentionDays:    365,
	},
	"enterprise": {
		MaxAccounts:      unlimited,
		MaxAPIKeys:       unlimited,
		EmailsPerMonth:   unlimited,
		DraftsPerMonth:   unlimited,
		AutoReply:        true,
		AIClassification: true,
		RetentionDays:    unlimited,
	},
}

// GetTierLimits returns the limits for a tier name. Unknown tiers fall back
// to the free tier, failing closed.
func GetTierLimits(tier string) TierLimits {
	if limits, ok := tierLimits[tier]; ok {
		return limits
	}
	return tierLimits["free"]
}
