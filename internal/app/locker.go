// internal/app/locker.go
package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shrimpsizemoose/trekker/logger"
)

// ScopeLocker serializes mutations of (semester, department) scopes so that
// concurrent writers cannot race past the daily capacity check. A scope
// with an empty semester or department covers every scope it matches, so
// a lock on Scope{} excludes all other writers. All scopes passed to one
// Lock call are taken together or not at all.
type ScopeLocker interface {
	Lock(ctx context.Context, scopes ...Scope) (unlock func(), err error)
	Close() error
}

func NewLocker(config *Config) (ScopeLocker, error) {
	if config.Locking.RedisURL == "" {
		logger.Debug.Println("No redis_url configured, using in-process scope locks")
		return NewLocalLocker(), nil
	}
	return NewRedisLocker(config)
}

// Overlaps reports whether some concrete (semester, department) pair is
// covered by both scopes.
func (s Scope) Overlaps(other Scope) bool {
	semester := s.Semester == 0 || other.Semester == 0 || s.Semester == other.Semester
	department := s.Department == "" || other.Department == "" || s.Department == other.Department
	return semester && department
}

func lockScopes(scopes []Scope) []Scope {
	if len(scopes) == 0 {
		return []Scope{{}}
	}
	return scopes
}

func describe(scopes []Scope) string {
	names := make([]string, len(scopes))
	for i, scope := range scopes {
		names[i] = scope.String()
	}
	return strings.Join(names, "; ")
}

type LocalLocker struct {
	mu       sync.Mutex
	held     map[int][]Scope
	next     int
	released chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held:     make(map[int][]Scope),
		released: make(chan struct{}),
	}
}

func (l *LocalLocker) blocked(scopes []Scope) bool {
	for _, held := range l.held {
		for _, h := range held {
			for _, s := range scopes {
				if h.Overlaps(s) {
					return true
				}
			}
		}
	}
	return false
}

func (l *LocalLocker) Lock(ctx context.Context, scopes ...Scope) (func(), error) {
	scopes = lockScopes(scopes)

	for {
		l.mu.Lock()
		if !l.blocked(scopes) {
			l.next++
			id := l.next
			l.held[id] = scopes
			l.mu.Unlock()

			var once sync.Once
			return func() { once.Do(func() { l.release(id) }) }, nil
		}
		wait := l.released
		l.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock on %s: %w", describe(scopes), ctx.Err())
		}
	}
}

// release wakes every waiter; each re-checks its scopes.
func (l *LocalLocker) release(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
	close(l.released)
	l.released = make(chan struct{})
}

func (l *LocalLocker) Close() error {
	return nil
}

// Held locks live in one sorted set, member "<token>\n<semester>\n<department>"
// scored by expiry in unix milliseconds. Semester 0 and an empty department
// are wildcards.
const scopeLua = `
local t = redis.call("TIME")
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
local ttl = tonumber(ARGV[1])

local function parse(m)
	return string.match(m, "^([^\n]*)\n([^\n]*)\n(.*)$")
end

local function overlaps(s1, d1, s2, d2)
	return (s1 == "0" or s2 == "0" or s1 == s2) and (d1 == "" or d2 == "" or d1 == d2)
end

local function extend()
	if redis.call("PTTL", KEYS[1]) < ttl then
		redis.call("PEXPIRE", KEYS[1], ttl)
	end
end
`

var acquireScript = redis.NewScript(scopeLua + `
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now)
local held = redis.call("ZRANGE", KEYS[1], 0, -1)
for i = 2, #ARGV do
	local _, sem, dept = parse(ARGV[i])
	for _, m in ipairs(held) do
		local _, hsem, hdept = parse(m)
		if overlaps(sem, dept, hsem, hdept) then
			return 0
		end
	end
end
for i = 2, #ARGV do
	redis.call("ZADD", KEYS[1], now + ttl, ARGV[i])
end
extend()
return 1
`)

// refreshScript pushes the expiry of members still held and returns how
// many it found.
var refreshScript = redis.NewScript(scopeLua + `
local kept = 0
for i = 2, #ARGV do
	if redis.call("ZSCORE", KEYS[1], ARGV[i]) then
		redis.call("ZADD", KEYS[1], "XX", now + ttl, ARGV[i])
		kept = kept + 1
	end
end
extend()
return kept
`)

type RedisLocker struct {
	redis *redis.Client
	key   string
	ttl   time.Duration
	wait  time.Duration
	retry time.Duration
}

func NewRedisLocker(config *Config) (*RedisLocker, error) {
	opt, err := redis.ParseURL(config.Locking.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisLocker{
		redis: client,
		key:   config.Locking.Key,
		ttl:   config.LockTTL(),
		wait:  config.LockWait(),
		retry: 50 * time.Millisecond,
	}, nil
}

func member(token string, scope Scope) string {
	return token + "\n" + strconv.Itoa(scope.Semester) + "\n" + scope.Department
}

func (l *RedisLocker) Lock(ctx context.Context, scopes ...Scope) (func(), error) {
	scopes = lockScopes(scopes)
	token := uuid.New().String()

	members := make([]any, 0, len(scopes))
	for _, scope := range scopes {
		members = append(members, member(token, scope))
	}
	args := append([]any{l.ttl.Milliseconds()}, members...)

	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	for {
		ok, err := acquireScript.Run(ctx, l.redis, []string{l.key}, args...).Int()
		if err != nil {
			return nil, fmt.Errorf("redis error while locking %s: %w", describe(scopes), err)
		}
		if ok == 1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock on %s: %w", describe(scopes), ctx.Err())
		case <-time.After(l.retry):
		}
	}
	logger.Debug.Printf("Acquired scope lock %s", describe(scopes))

	done := make(chan struct{})
	go l.keepAlive(done, scopes, args)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			if err := l.redis.ZRem(context.Background(), l.key, members...).Err(); err != nil {
				logger.Error.Printf("Failed to release scope lock %s: %v", describe(scopes), err)
			}
		})
	}, nil
}

// keepAlive refreshes the held members every third of the ttl until done
// is closed.
func (l *RedisLocker) keepAlive(done <-chan struct{}, scopes []Scope, args []any) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			kept, err := refreshScript.Run(context.Background(), l.redis, []string{l.key}, args...).Int()
			if err != nil {
				logger.Error.Printf("Failed to refresh scope lock %s: %v", describe(scopes), err)
				continue
			}
			if kept < len(scopes) {
				logger.Error.Printf("Scope lock %s expired while held", describe(scopes))
			}
		}
	}
}

func (l *RedisLocker) Close() error {
	if l.redis != nil {
		return l.redis.Close()
	}
	return nil
}
