package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AccessPolicy controls how the access gate resolves organization membership.
//
// In snapshot mode the membership embedded in the bearer token is trusted
// until the token expires. In live mode the membership row is read on every
// guarded request, so demotions and permission changes apply immediately at
// the cost of one query per request.
type AccessPolicy struct {
	MembershipCheck string `mapstructure:"membershipCheck"`
}

func (p AccessPolicy) Live() bool {
	return p.MembershipCheck == MembershipCheckLive
}

type AccessPolicyHolder struct {
	current atomic.Value // holds AccessPolicy
}

// NewStaticAccessPolicy returns a holder that never reloads.
func NewStaticAccessPolicy(mode string) *AccessPolicyHolder {
	holder := &AccessPolicyHolder{}
	holder.current.Store(AccessPolicy{MembershipCheck: normalizeMembershipCheck(mode)})
	return holder
}

// NewAccessPolicyHolder reads access.yml when present and watches it for changes.
// Without a file the AUTH_MEMBERSHIP_CHECK value from Config applies.
func NewAccessPolicyHolder(cfg Config) (*AccessPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("access")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/appraisal")
	v.AddConfigPath(".")

	v.SetEnvPrefix("APPRAISAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("access.membershipCheck", cfg.AuthMembershipCheck)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	policy, err := readAccessPolicy(v)
	if err != nil {
		return nil, err
	}

	holder := &AccessPolicyHolder{}
	holder.current.Store(policy)

	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := readAccessPolicy(v)
		if err != nil {
			zap.L().Warn("access policy reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("access policy reloaded",
			zap.String("file", e.Name),
			zap.String("membership_check", updated.MembershipCheck),
		)
	})

	return holder, nil
}

func (h *AccessPolicyHolder) Get() AccessPolicy {
	return h.current.Load().(AccessPolicy)
}

func readAccessPolicy(v *viper.Viper) (AccessPolicy, error) {
	var policy AccessPolicy
	if err := v.UnmarshalKey("access", &policy); err != nil {
		return AccessPolicy{}, err
	}
	if err := validateAccessPolicy(policy); err != nil {
		return AccessPolicy{}, err
	}
	return policy, nil
}

func validateAccessPolicy(policy AccessPolicy) error {
	switch policy.MembershipCheck {
	case MembershipCheckSnapshot, MembershipCheckLive:
		return nil
	default:
		return errors.New("access.membershipCheck must be snapshot or live")
	}
}
