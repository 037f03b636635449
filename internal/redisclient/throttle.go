package redisclient

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"
)

// CodeSentinel replaces a consumed code so it cannot be verified twice
const CodeSentinel = "------"

const attemptsLookback = 10

// SendResult is the outcome of RecordCode
type SendResult int

const (
	SendOK SendResult = iota
	SendAttemptsExceeded
	SendCooldown
)

// CheckResult is the outcome of VerifyCode
type CheckResult int

const (
	CheckOK CheckResult = iota
	CheckExpired
	CheckWrongCode
)

// ThrottleLimits configures SMS issuance throttling
type ThrottleLimits struct {
	MaxAttempts int
	Window      time.Duration
	Cooldown    time.Duration
}

// ThrottleStore keeps the latest SMS code and the attempt log per phone
type ThrottleStore struct {
	client *Client
	limits ThrottleLimits
	now    func() time.Time
}

// NewThrottleStore creates a throttle store using the wall clock
func NewThrottleStore(client *Client, limits ThrottleLimits) *ThrottleStore {
	return &ThrottleStore{client: client, limits: limits, now: time.Now}
}

// WithClock overrides the clock, used by tests
func (s *ThrottleStore) WithClock(now func() time.Time) *ThrottleStore {
	s.now = now
	return s
}

func codeKey(phone string) string {
	return "code-" + phone
}

func attemptsKey(phone string) string {
	return "attempts-" + phone
}

func stamp(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', 6, 64)
}

func (s *ThrottleStore) keyTTL() int64 {
	longest := s.limits.Window
	if s.limits.Cooldown > longest {
		longest = s.limits.Cooldown
	}
	return int64(math.Ceil(longest.Seconds()))
}

// RecordCode checks both limits and, if they pass, stores code and appends
// the attempt timestamp in one atomic step.
func (s *ThrottleStore) RecordCode(ctx context.Context, phone, code string) (SendResult, error) {
	now := s.now()
	res, err := s.client.sendScript.Run(ctx, s.client.rdb,
		[]string{codeKey(phone), attemptsKey(phone)},
		stamp(now),
		stamp(now.Add(-s.limits.Window)),
		stamp(now.Add(-s.limits.Cooldown)),
		s.limits.MaxAttempts,
		attemptsLookback,
		code,
		s.keyTTL(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("send code script failed: %w", err)
	}
	return SendResult(res), nil
}

// VerifyCode compares code against the stored one and consumes it on success
func (s *ThrottleStore) VerifyCode(ctx context.Context, phone, code string) (CheckResult, error) {
	now := s.now()
	res, err := s.client.checkScript.Run(ctx, s.client.rdb,
		[]string{codeKey(phone), attemptsKey(phone)},
		code,
		stamp(now.Add(-s.limits.Cooldown)),
		CodeSentinel,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("check code script failed: %w", err)
	}
	return CheckResult(res), nil
}
