package public

import (
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/database"
)

// Fixed values the legacy node reported for its single active witness and
// committee member.
const (
	activeWitness   = "1.6.0"
	activeCommittee = "1.5.0"
	irreversibleLag = 20

	// All 128 slots filled.
	recentSlotsFilled = "340282366920938463463374607431768211455"
)

type dynamicGlobalProperties struct {
	ID                             string `json:"id"`
	HeadBlockNumber                uint64 `json:"head_block_number"`
	HeadBlockID                    string `json:"head_block_id"`
	Time                           string `json:"time"`
	CurrentWitness                 string `json:"current_witness"`
	NextMaintenanceTime            string `json:"next_maintenance_time"`
	LastBudgetTime                 string `json:"last_budget_time"`
	WitnessBudget                  int64  `json:"witness_budget"`
	AccountsRegisteredThisInterval int    `json:"accounts_registered_this_interval"`
	RecentlyMissedCount            int    `json:"recently_missed_count"`
	CurrentAslot                   uint64 `json:"current_aslot"`
	RecentSlotsFilled              string `json:"recent_slots_filled"`
	DynamicFlags                   int    `json:"dynamic_flags"`
	LastIrreversibleBlockNum       uint64 `json:"last_irreversible_block_num"`
	ReferralBonus                  int64  `json:"referral_bonus"`
	SaleBonus                      int64  `json:"sale_bonus"`
	FounderBonus                   int64  `json:"founder_bonus"`
	WitnessBonus                   int64  `json:"witness_bonus"`
}

type feeSchedule struct {
	Parameters []any `json:"parameters"`
}

type chainParameters struct {
	CurrentFees                      feeSchedule `json:"current_fees"`
	BlockInterval                    int         `json:"block_interval"`
	MaintenanceInterval              int         `json:"maintenance_interval"`
	MaintenanceSkipSlots             int         `json:"maintenance_skip_slots"`
	CommitteeProposalReviewPeriod    int         `json:"committee_proposal_review_period"`
	MaximumTransactionSize           int         `json:"maximum_transaction_size"`
	MaximumBlockSize                 int         `json:"maximum_block_size"`
	MaximumTimeUntilExpiration       int         `json:"maximum_time_until_expiration"`
	MaximumProposalLifetime          int         `json:"maximum_proposal_lifetime"`
	MaximumAssetWhitelistAuthorities int         `json:"maximum_asset_whitelist_authorities"`
	MaximumAssetFeedPublishers       int         `json:"maximum_asset_feed_publishers"`
	MaximumWitnessCount              int         `json:"maximum_witness_count"`
	MaximumCommitteeCount            int         `json:"maximum_committee_count"`
	MaximumAuthorityMembership       int         `json:"maximum_authority_membership"`
	ReservePercentOfFee              int         `json:"reserve_percent_of_fee"`
	NetworkPercentOfFee              int         `json:"network_percent_of_fee"`
	LifetimeReferrerPercentOfFee     int         `json:"lifetime_referrer_percent_of_fee"`
	CashbackVestingPeriodSeconds     int         `json:"cashback_vesting_period_seconds"`
	CashbackVestingThreshold         int64       `json:"cashback_vesting_threshold"`
	CountNonMemberVotes              bool        `json:"count_non_member_votes"`
	AllowNonMemberWhitelists         bool        `json:"allow_non_member_whitelists"`
	WitnessPayPerBlock               int64       `json:"witness_pay_per_block"`
	WorkerBudgetPerDay               int64       `json:"worker_budget_per_day"`
	MaxPredicateOpcode               int         `json:"max_predicate_opcode"`
	FeeLiquidationThreshold          int64       `json:"fee_liquidation_threshold"`
	AccountsPerFeeScale              int         `json:"accounts_per_fee_scale"`
	AccountFeeScaleBitshifts         int         `json:"account_fee_scale_bitshifts"`
	MaxAuthorityDepth                int         `json:"max_authority_depth"`
	Extensions                       []any       `json:"extensions"`
}

type globalProperties struct {
	ID                     string          `json:"id"`
	Parameters             chainParameters `json:"parameters"`
	NextAvailableVoteID    int             `json:"next_available_vote_id"`
	ActiveCommitteeMembers []string        `json:"active_committee_members"`
	ActiveWitnesses        []string        `json:"active_witnesses"`
}

// legacyParameters are the chain parameters the legacy node was run with.
var legacyParameters = chainParameters{
	CurrentFees:                      feeSchedule{Parameters: []any{}},
	BlockInterval:                    3,
	MaintenanceInterval:              86400,
	MaintenanceSkipSlots:             3,
	CommitteeProposalReviewPeriod:    1209600,
	MaximumTransactionSize:           2048,
	MaximumBlockSize:                 2048000,
	MaximumTimeUntilExpiration:       86400,
	MaximumProposalLifetime:          2419200,
	MaximumAssetWhitelistAuthorities: 10,
	MaximumAssetFeedPublishers:       10,
	MaximumWitnessCount:              1001,
	MaximumCommitteeCount:            1001,
	MaximumAuthorityMembership:       10,
	ReservePercentOfFee:              2000,
	NetworkPercentOfFee:              2000,
	LifetimeReferrerPercentOfFee:     3000,
	CashbackVestingPeriodSeconds:     31536000,
	CashbackVestingThreshold:         10000000,
	CountNonMemberVotes:              true,
	AllowNonMemberWhitelists:         false,
	WitnessPayPerBlock:               200000,
	WorkerBudgetPerDay:               50000000000,
	MaxPredicateOpcode:               1,
	FeeLiquidationThreshold:          10000000,
	AccountsPerFeeScale:              1000,
	AccountFeeScaleBitshifts:         4,
	MaxAuthorityDepth:                2,
	Extensions:                       []any{},
}

type nodeInfo struct {
	HeadBlockNum           uint64   `json:"head_block_num"`
	HeadBlockID            string   `json:"head_block_id"`
	HeadBlockAge           string   `json:"head_block_age"`
	NextMaintenanceTime    string   `json:"next_maintenance_time"`
	ChainID                string   `json:"chain_id"`
	Participation          string   `json:"participation"`
	ActiveWitnesses        []string `json:"active_witnesses"`
	ActiveCommitteeMembers []string `json:"active_committee_members"`
}

// vestingBalance is the core asset balance reported as vested.
type vestingBalance struct {
	Owner   string               `json:"owner"`
	Balance database.AssetAmount `json:"balance"`
}

// listParams are the start and limit of a paged listing.
type listParams struct {
	Start string `json:"start"`
	Limit int    `json:"limit" validate:"min=0,max=1000"`
}

// balanceParams select the balances of one account.
type balanceParams struct {
	Account string `json:"account" validate:"required"`
	Asset   string `json:"asset" validate:"omitempty,objectid"`
}
