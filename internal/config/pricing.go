package config

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PromoTier grants Amount off the monthly price for contracts of at least MinMonths.
type PromoTier struct {
	MinMonths int   `mapstructure:"minMonths"`
	Amount    int64 `mapstructure:"amount"`
}

// PricingPolicy holds the tunable pricing constants.
type PricingPolicy struct {
	PromoTiers     []PromoTier `mapstructure:"promoTiers"`
	VATRate        float64     `mapstructure:"vatRate"`
	ProrationUnit  int64       `mapstructure:"prorationUnit"`
	PenaltyMonths  int         `mapstructure:"penaltyMonths"`
	RenewNoticeDay int         `mapstructure:"renewNoticeDays"`
	RefundDelayDay int         `mapstructure:"refundDelayDays"`
}

func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		PromoTiers: []PromoTier{
			{MinMonths: 12, Amount: 50000},
			{MinMonths: 6, Amount: 30000},
			{MinMonths: 3, Amount: 20000},
		},
		VATRate:        0.10,
		ProrationUnit:  1000,
		PenaltyMonths:  1,
		RenewNoticeDay: 30,
		RefundDelayDay: 3,
	}
}

// PromoFor returns the largest tier amount whose threshold months reaches.
func (p PricingPolicy) PromoFor(months int) int64 {
	for _, tier := range p.PromoTiers {
		if months >= tier.MinMonths {
			return tier.Amount
		}
	}
	return 0
}

type PricingPolicyHolder struct {
	current atomic.Value // holds PricingPolicy
}

// NewStaticPricingPolicy wraps a fixed policy without file watching.
func NewStaticPricingPolicy(policy PricingPolicy) (*PricingPolicyHolder, error) {
	policy = normalizePricingPolicy(policy)
	if err := validatePricingPolicy(policy); err != nil {
		return nil, err
	}
	holder := &PricingPolicyHolder{}
	holder.current.Store(policy)
	return holder, nil
}

func NewPricingPolicyHolder() (*PricingPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/eroom")
	v.AddConfigPath(".")

	v.SetEnvPrefix("EROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingPolicy()
	v.SetDefault("pricing.promoTiers", defaults.PromoTiers)
	v.SetDefault("pricing.vatRate", defaults.VATRate)
	v.SetDefault("pricing.prorationUnit", defaults.ProrationUnit)
	v.SetDefault("pricing.penaltyMonths", defaults.PenaltyMonths)
	v.SetDefault("pricing.renewNoticeDays", defaults.RenewNoticeDay)
	v.SetDefault("pricing.refundDelayDays", defaults.RefundDelayDay)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var policy PricingPolicy
	if err := v.UnmarshalKey("pricing", &policy); err != nil {
		return nil, err
	}
	policy = normalizePricingPolicy(policy)
	if err := validatePricingPolicy(policy); err != nil {
		return nil, err
	}

	holder := &PricingPolicyHolder{}
	holder.current.Store(policy)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated PricingPolicy
			if err := v.UnmarshalKey("pricing", &updated); err != nil {
				log.Printf("[pricing-policy] reload failed: %v", err)
				return
			}
			updated = normalizePricingPolicy(updated)
			if err := validatePricingPolicy(updated); err != nil {
				log.Printf("[pricing-policy] invalid policy ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[pricing-policy] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *PricingPolicyHolder) Get() PricingPolicy {
	if h == nil {
		return DefaultPricingPolicy()
	}
	return h.current.Load().(PricingPolicy)
}

// normalizePricingPolicy orders tiers from the longest threshold down.
func normalizePricingPolicy(p PricingPolicy) PricingPolicy {
	tiers := append([]PromoTier(nil), p.PromoTiers...)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MinMonths > tiers[j].MinMonths })
	p.PromoTiers = tiers
	return p
}

func validatePricingPolicy(p PricingPolicy) error {
	for i, tier := range p.PromoTiers {
		if tier.MinMonths <= 0 {
			return fmt.Errorf("pricing.promoTiers[%d].minMonths must be positive", i)
		}
		if tier.Amount < 0 {
			return fmt.Errorf("pricing.promoTiers[%d].amount cannot be negative", i)
		}
		// longer commitments never earn a smaller promo
		if i > 0 && tier.Amount > p.PromoTiers[i-1].Amount {
			return errors.New("pricing.promoTiers must be non-decreasing in months")
		}
	}
	if p.VATRate < 0 || p.VATRate > 1 {
		return errors.New("pricing.vatRate must be between 0 and 1")
	}
	if p.ProrationUnit <= 0 {
		return errors.New("pricing.prorationUnit must be positive")
	}
	if p.PenaltyMonths < 0 {
		return errors.New("pricing.penaltyMonths cannot be negative")
	}
	return nil
}
