package circuitbreaker

import (
	"context"
	"fmt"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "HalfOpen"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

const (
	keyPrefix          = "circuit_breaker:"
	stateKey           = "state"
	failureCountKey    = "failure_count"
	successCountKey    = "success_count"
	lastFailureTimeKey = "last_failure_time"
	opTimeout          = 1 * time.Second
)

// Lua scripts keep count/state updates atomic across instances.
const (
	// KEYS: state, failure_count, success_count
	// ARGV: success threshold
	recordSuccessScript = `
		local state = tonumber(redis.call('GET', KEYS[1]) or '0')
		redis.call('SET', KEYS[2], 0)

		if state == 2 then
			local count = redis.call('INCR', KEYS[3])
			if count >= tonumber(ARGV[1]) then
				redis.call('SET', KEYS[1], 0)
				redis.call('SET', KEYS[3], 0)
				return 1
			end
		end
		return 0
	`

	// KEYS: state, failure_count, last_failure_time, success_count
	// ARGV: failure threshold, now (unix seconds)
	recordFailureScript = `
		local state = tonumber(redis.call('GET', KEYS[1]) or '0')
		local failureCount = redis.call('INCR', KEYS[2])
		redis.call('SET', KEYS[3], ARGV[2])

		if (state == 0 and failureCount >= tonumber(ARGV[1])) or state == 2 then
			redis.call('SET', KEYS[1], 1)
			redis.call('SET', KEYS[4], '0')
			return 1
		end
		return 0
	`
)

// CircuitBreaker guards an outbound dependency with shared state in Redis.
// Without a Redis client it degrades to a pass-through.
type CircuitBreaker struct {
	redisClient *redis.Client
	serviceName string
	config      Config
	prefix      string
}

func NewForService(redisClient *redis.Client, serviceName string) *CircuitBreaker {
	return NewWithConfig(redisClient, serviceName, Config{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          30 * time.Second,
	})
}

func NewWithConfig(redisClient *redis.Client, serviceName string, config Config) *CircuitBreaker {
	return &CircuitBreaker{
		redisClient: redisClient,
		serviceName: serviceName,
		config:      config,
		prefix:      keyPrefix + serviceName + ":",
	}
}

func (cb *CircuitBreaker) CanExecute() bool {
	if cb.redisClient == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	state, err := cb.getState(ctx)
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to get state, allowing execution: %v", err)
		return true
	}

	switch state {
	case Closed, HalfOpen:
		return true
	case Open:
		lastFailure, err := cb.redisClient.Get(ctx, cb.prefix+lastFailureTimeKey).Int64()
		if err != nil {
			fiberlog.Errorf("CircuitBreaker: failed to get last failure time: %v", err)
			return false
		}

		if time.Since(time.Unix(lastFailure, 0)) > cb.config.Timeout {
			if err := cb.redisClient.Set(ctx, cb.prefix+stateKey, int(HalfOpen), 0).Err(); err == nil {
				fiberlog.Infof("CircuitBreaker: %s probing in HalfOpen state", cb.serviceName)
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	if cb.redisClient == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	keys := []string{
		cb.prefix + stateKey,
		cb.prefix + failureCountKey,
		cb.prefix + successCountKey,
	}

	result, err := cb.redisClient.Eval(ctx, recordSuccessScript, keys, cb.config.SuccessThreshold).Int()
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to record success: %v", err)
		return
	}

	if result == 1 {
		fiberlog.Infof("CircuitBreaker: %s closed after recovery", cb.serviceName)
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	if cb.redisClient == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	keys := []string{
		cb.prefix + stateKey,
		cb.prefix + failureCountKey,
		cb.prefix + lastFailureTimeKey,
		cb.prefix + successCountKey,
	}

	result, err := cb.redisClient.Eval(ctx, recordFailureScript, keys,
		cb.config.FailureThreshold, time.Now().Unix()).Int()
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to record failure: %v", err)
		return
	}

	if result == 1 {
		fiberlog.Warnf("CircuitBreaker: %s opened after repeated failures", cb.serviceName)
	}
}

func (cb *CircuitBreaker) GetState() State {
	if cb.redisClient == nil {
		return Closed
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	state, err := cb.getState(ctx)
	if err != nil {
		return Closed
	}
	return state
}

func (cb *CircuitBreaker) getState(ctx context.Context) (State, error) {
	val, err := cb.redisClient.Get(ctx, cb.prefix+stateKey).Int()
	if err == redis.Nil {
		return Closed, nil
	}
	if err != nil {
		return Closed, err
	}
	return State(val), nil
}
