package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"auction-bidding/internal/domain"

	"github.com/go-redis/redis/v8"
)

const incrementRulesKey = "bid_validation_rules"

// IncrementRuleStore keeps the tiered price increments used when an auction
// is created without an explicit increment.
type IncrementRuleStore struct {
	client *redis.Client
	mu     sync.RWMutex
	rules  *domain.BidIncrementRules
}

func NewIncrementRuleStore(client *redis.Client) *IncrementRuleStore {
	return &IncrementRuleStore{
		client: client,
	}
}

func (v *IncrementRuleStore) LoadRules(ctx context.Context) error {
	data, err := v.client.Get(ctx, incrementRulesKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			v.setRules(domain.DefaultIncrementRules())
			return v.saveRules(ctx)
		}
		return err
	}

	var rules domain.BidIncrementRules
	if err := json.Unmarshal([]byte(data), &rules); err != nil {
		return err
	}

	v.setRules(&rules)
	return nil
}

func (v *IncrementRuleStore) setRules(rules *domain.BidIncrementRules) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rules = rules
}

func (v *IncrementRuleStore) saveRules(ctx context.Context) error {
	v.mu.RLock()
	data, err := json.Marshal(v.rules)
	v.mu.RUnlock()
	if err != nil {
		return err
	}

	return v.client.Set(ctx, incrementRulesKey, string(data), 0).Err()
}

func (v *IncrementRuleStore) GetIncrementRule(amount int64) int64 {
	v.mu.RLock()
	rules := v.rules
	v.mu.RUnlock()

	return rules.IncrementFor(amount)
}

