package model

import "strings"

// Category is a counterparty risk class reported by the oracle.
type Category string

// Reserved categories.
const (
	// CategoryAll is the fallback bucket for categories without their own threshold.
	CategoryAll Category = "All"
	// CategoryNone skips the risk check entirely.
	CategoryNone Category = "None"
)

// Named categories in the closed enumeration.
const (
	CategoryWalletService       Category = "WalletService"
	CategoryMerchantService     Category = "MerchantService"
	CategoryMiningPool          Category = "MiningPool"
	CategoryLowRiskExchange     Category = "LowRiskExchange"
	CategoryMediumRiskExchange  Category = "MediumRiskExchange"
	CategoryDeFi                Category = "DeFi"
	CategoryOTCBroker           Category = "OTCBroker"
	CategoryATM                 Category = "ATM"
	CategoryGambling            Category = "Gambling"
	CategoryIllicitOrganization Category = "IllicitOrganization"
	CategoryMixer               Category = "Mixer"
	CategoryDarknetService      Category = "DarknetService"
	CategoryScam                Category = "Scam"
	CategoryRansomware          Category = "Ransomware"
	CategoryTheft               Category = "Theft"
	CategoryCounterfeit         Category = "Counterfeit"
	CategoryTerroristFinancing  Category = "TerroristFinancing"
	CategorySanctions           Category = "Sanctions"
	CategoryChildAbuse          Category = "ChildAbuse"
)

// KnownCategories lists the closed enumeration, reserved values first.
var KnownCategories = []Category{
	CategoryAll,
	CategoryNone,
	CategoryWalletService,
	CategoryMerchantService,
	CategoryMiningPool,
	CategoryLowRiskExchange,
	CategoryMediumRiskExchange,
	CategoryDeFi,
	CategoryOTCBroker,
	CategoryATM,
	CategoryGambling,
	CategoryIllicitOrganization,
	CategoryMixer,
	CategoryDarknetService,
	CategoryScam,
	CategoryRansomware,
	CategoryTheft,
	CategoryCounterfeit,
	CategoryTerroristFinancing,
	CategorySanctions,
	CategoryChildAbuse,
}

// LookupKnownCategory returns the canonical spelling of a known category.
// Matching is case-insensitive.
func LookupKnownCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range KnownCategories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

func (c Category) String() string {
	return string(c)
}
