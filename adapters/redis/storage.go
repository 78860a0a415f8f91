package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"drinktab/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" env:"DRINKTAB_STORAGE_REDIS_ADDR"`
	Password     string        `json:"password" env:"DRINKTAB_STORAGE_REDIS_PASSWORD"`
	DB           int           `json:"db" env:"DRINKTAB_STORAGE_REDIS_DB"`
	PoolSize     int           `json:"pool_size" env:"DRINKTAB_STORAGE_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" env:"DRINKTAB_STORAGE_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" env:"DRINKTAB_STORAGE_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"DRINKTAB_STORAGE_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"DRINKTAB_STORAGE_REDIS_WRITE_TIMEOUT"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements the engine.Storage interface using Redis as the backend.
// Data structure:
// - user:{user_id} -> hash (name, balance, created, badges as JSON)
// - user:{user_id}:txs -> list of JSON transactions, oldest first
// - user:{user_id}:cache -> JSON blob of core.User for quick retrieval
// - item:{item_id} -> hash (name, price, stock, category)
// - items -> set of item ids
// - users -> set of user ids
// - tx:seq -> transaction id counter
type Store struct {
	client *redis.Client
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

const (
	itemsKey = "items"
	usersKey = "users"
	txSeqKey = "tx:seq"
)

func userKey(userID core.UserID) string { return fmt.Sprintf("user:%s", userID) }

func userTxsKey(userID core.UserID) string { return fmt.Sprintf("user:%s:txs", userID) }

// userCacheKey generates the Redis key for the cached user
func userCacheKey(userID core.UserID) string { return fmt.Sprintf("user:%s:cache", userID) }

func itemKey(id core.ItemID) string { return fmt.Sprintf("item:%s", id) }

// txRecord is the stored transaction without its id; the commit script
// splices the id in front so the id and the append happen atomically.
type txRecord struct {
	UserID    core.UserID          `json:"user_id"`
	Amount    core.Money           `json:"amount"`
	Type      core.TransactionType `json:"type"`
	Item      core.ItemID          `json:"item,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// script error replies mapped to domain errors
const (
	replyUnknownUser   = "UNKNOWN_USER"
	replyUnknownItem   = "UNKNOWN_ITEM"
	replyOutOfStock    = "OUT_OF_STOCK"
	replyUserExists    = "USER_EXISTS"
	replyNegativeStock = "NEGATIVE_STOCK"
)

func mapScriptError(err error, subject string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, replyUnknownUser):
		return fmt.Errorf("%w: %s", core.ErrUnknownUser, subject)
	case strings.Contains(msg, replyUnknownItem):
		return fmt.Errorf("%w: %s", core.ErrUnknownItem, subject)
	case strings.Contains(msg, replyOutOfStock):
		return fmt.Errorf("%w: %s", core.ErrOutOfStock, subject)
	case strings.Contains(msg, replyUserExists):
		return fmt.Errorf("%w: %s", core.ErrUserExists, subject)
	case strings.Contains(msg, replyNegativeStock):
		return fmt.Errorf("%w: stock of %s would become negative", core.ErrInvalidAmount, subject)
	}
	return err
}

var createUserScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 1 then
		return redis.error_reply('USER_EXISTS')
	end
	redis.call('HSET', KEYS[1], 'name', ARGV[1], 'balance', ARGV[2], 'created', ARGV[3], 'badges', '')
	redis.call('SADD', KEYS[2], ARGV[4])
	return 1
`)

// Lua script applying a transaction: balance, stock, log append and badges
var commitScript = redis.NewScript(`
	local user, txs, seq, item, cache = KEYS[1], KEYS[2], KEYS[3], KEYS[4], KEYS[5]
	if redis.call('EXISTS', user) == 0 then
		return redis.error_reply('UNKNOWN_USER')
	end
	if item ~= '' then
		if redis.call('EXISTS', item) == 0 then
			return redis.error_reply('UNKNOWN_ITEM')
		end
		local stock = tonumber(redis.call('HGET', item, 'stock') or '0')
		if stock <= 0 then
			return redis.error_reply('OUT_OF_STOCK')
		end
		redis.call('HINCRBY', item, 'stock', -1)
	end
	local id = redis.call('INCR', seq)
	local balance = redis.call('HINCRBY', user, 'balance', ARGV[1])
	redis.call('RPUSH', txs, '{"id":' .. id .. ',' .. string.sub(ARGV[2], 2))
	if ARGV[3] == '1' then
		redis.call('HSET', user, 'badges', ARGV[4])
	end
	redis.call('DEL', cache)
	return {id, balance}
`)

var restockScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return redis.error_reply('UNKNOWN_ITEM')
	end
	local stock = tonumber(redis.call('HGET', KEYS[1], 'stock') or '0') + tonumber(ARGV[1])
	if stock < 0 then
		return redis.error_reply('NEGATIVE_STOCK')
	end
	redis.call('HSET', KEYS[1], 'stock', stock)
	return stock
`)

func (s *Store) CreateUser(ctx context.Context, user core.User) error {
	err := createUserScript.Run(ctx, s.client, []string{userKey(user.ID), usersKey},
		user.Name, int64(user.Balance), user.Created.UTC().Format(time.RFC3339Nano), string(user.ID)).Err()
	if err != nil {
		return mapScriptError(err, string(user.ID))
	}
	return nil
}

func (s *Store) requireUser(ctx context.Context, userID core.UserID) error {
	n, err := s.client.Exists(ctx, userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrUnknownUser, userID)
	}
	return nil
}

// GetUser retrieves the user, using cache when possible
func (s *Store) GetUser(ctx context.Context, userID core.UserID) (core.User, error) {
	if cached, err := s.getCachedUser(ctx, userID); err == nil {
		return cached, nil
	}

	fields, err := s.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return core.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	if len(fields) == 0 {
		return core.User{}, fmt.Errorf("%w: %s", core.ErrUnknownUser, userID)
	}
	balance, err := strconv.ParseInt(fields["balance"], 10, 64)
	if err != nil {
		return core.User{}, fmt.Errorf("invalid balance for %s: %w", userID, err)
	}
	badges, err := decodeBadges(fields["badges"])
	if err != nil {
		return core.User{}, err
	}
	created, _ := time.Parse(time.RFC3339Nano, fields["created"])
	u := core.User{ID: userID, Name: fields["name"], Balance: core.Money(balance), Badges: badges, Created: created}

	// Update cache (best-effort); keep it synchronous for determinism.
	ctxCache, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	_ = s.updateUserCache(ctxCache, u)

	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]core.UserID, error) {
	members, err := s.client.SMembers(ctx, usersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	sort.Strings(members)
	ids := make([]core.UserID, len(members))
	for i, m := range members {
		ids[i] = core.UserID(m)
	}
	return ids, nil
}

func (s *Store) Balance(ctx context.Context, userID core.UserID) (core.Money, error) {
	v, err := s.client.HGet(ctx, userKey(userID), "balance").Int64()
	if errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %s", core.ErrUnknownUser, userID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return core.Money(v), nil
}

func (s *Store) Transactions(ctx context.Context, userID core.UserID) ([]core.Transaction, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	raw, err := s.client.LRange(ctx, userTxsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(raw))
	for _, r := range raw {
		var tx core.Transaction
		if err := json.Unmarshal([]byte(r), &tx); err != nil {
			return nil, fmt.Errorf("invalid transaction for %s: %w", userID, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func decodeBadges(raw string) ([]core.Badge, error) {
	if raw == "" {
		return nil, nil
	}
	var out []core.Badge
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedBadgeState, err)
	}
	return out, nil
}

func (s *Store) UnlockedBadges(ctx context.Context, userID core.UserID) ([]core.Badge, error) {
	raw, err := s.client.HGet(ctx, userKey(userID), "badges").Result()
	if errors.Is(err, redis.Nil) {
		if err := s.requireUser(ctx, userID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get badges: %w", err)
	}
	return decodeBadges(raw)
}

func (s *Store) SaveUnlockedBadges(ctx context.Context, userID core.UserID, badges []core.Badge) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	data, err := json.Marshal(badges)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, userKey(userID), "badges", data).Err(); err != nil {
		return fmt.Errorf("failed to save badges: %w", err)
	}

	// Invalidate cached user since it changed
	s.invalidateUserCache(ctx, userID)
	return nil
}

// Commit runs the commit script so the whole transaction lands atomically.
func (s *Store) Commit(ctx context.Context, tx core.Transaction, badges []core.Badge) (core.Transaction, core.Money, error) {
	rec, err := json.Marshal(txRecord{UserID: tx.UserID, Amount: tx.Amount, Type: tx.Type, Item: tx.Item, CreatedAt: tx.CreatedAt})
	if err != nil {
		return core.Transaction{}, 0, err
	}
	hasBadges, badgeJSON := "0", ""
	if badges != nil {
		data, err := json.Marshal(badges)
		if err != nil {
			return core.Transaction{}, 0, err
		}
		hasBadges, badgeJSON = "1", string(data)
	}
	item, subject := "", string(tx.UserID)
	if tx.Type == core.TxPurchase {
		item, subject = itemKey(tx.Item), string(tx.Item)
	}

	res, err := commitScript.Run(ctx, s.client,
		[]string{userKey(tx.UserID), userTxsKey(tx.UserID), txSeqKey, item, userCacheKey(tx.UserID)},
		int64(tx.Amount), rec, hasBadges, badgeJSON).Result()
	if err != nil {
		if strings.Contains(err.Error(), replyUnknownUser) {
			subject = string(tx.UserID)
		}
		return core.Transaction{}, 0, mapScriptError(err, subject)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return core.Transaction{}, 0, errors.New("unexpected result type from Redis script")
	}
	id, ok1 := vals[0].(int64)
	balance, ok2 := vals[1].(int64)
	if !ok1 || !ok2 {
		return core.Transaction{}, 0, errors.New("unexpected result type from Redis script")
	}
	tx.ID = id
	return tx, core.Money(balance), nil
}

func (s *Store) PutItem(ctx context.Context, item core.Item) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, itemKey(item.ID),
		"name", item.Name,
		"price", int64(item.Price),
		"stock", item.Stock,
		"category", string(item.Category))
	pipe.SAdd(ctx, itemsKey, string(item.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

func itemFromHash(id core.ItemID, fields map[string]string) (core.Item, error) {
	price, err := strconv.ParseInt(fields["price"], 10, 64)
	if err != nil {
		return core.Item{}, fmt.Errorf("invalid price for %s: %w", id, err)
	}
	stock, err := strconv.ParseInt(fields["stock"], 10, 64)
	if err != nil {
		return core.Item{}, fmt.Errorf("invalid stock for %s: %w", id, err)
	}
	return core.Item{ID: id, Name: fields["name"], Price: core.Money(price), Stock: stock, Category: core.Category(fields["category"])}, nil
}

func (s *Store) GetItem(ctx context.Context, id core.ItemID) (core.Item, error) {
	fields, err := s.client.HGetAll(ctx, itemKey(id)).Result()
	if err != nil {
		return core.Item{}, fmt.Errorf("failed to get item: %w", err)
	}
	if len(fields) == 0 {
		return core.Item{}, fmt.Errorf("%w: %s", core.ErrUnknownItem, id)
	}
	return itemFromHash(id, fields)
}

func (s *Store) ListItems(ctx context.Context) ([]core.Item, error) {
	ids, err := s.client.SMembers(ctx, itemsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	sort.Strings(ids)

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, itemKey(core.ItemID(id)))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to list items: %w", err)
		}
	}
	out := make([]core.Item, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		it, err := itemFromHash(core.ItemID(ids[i]), fields)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func (s *Store) ItemCategories(ctx context.Context) (map[core.ItemID]core.Category, error) {
	items, err := s.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[core.ItemID]core.Category, len(items))
	for _, it := range items {
		out[it.ID] = it.Category
	}
	return out, nil
}

func (s *Store) Restock(ctx context.Context, id core.ItemID, delta int64) (core.Item, error) {
	if err := restockScript.Run(ctx, s.client, []string{itemKey(id)}, delta).Err(); err != nil {
		return core.Item{}, mapScriptError(err, string(id))
	}
	return s.GetItem(ctx, id)
}

// getCachedUser attempts to retrieve the cached user
func (s *Store) getCachedUser(ctx context.Context, userID core.UserID) (core.User, error) {
	data, err := s.client.Get(ctx, userCacheKey(userID)).Bytes()
	if err != nil {
		return core.User{}, err
	}
	var u core.User
	if err := json.Unmarshal(data, &u); err != nil {
		return core.User{}, err
	}
	return u, nil
}

// updateUserCache stores the user in cache with a TTL
func (s *Store) updateUserCache(ctx context.Context, u core.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	// Cache for 5 minutes
	return s.client.Set(ctx, userCacheKey(u.ID), data, 5*time.Minute).Err()
}

// invalidateUserCache removes the cached user
func (s *Store) invalidateUserCache(ctx context.Context, userID core.UserID) {
	s.client.Del(ctx, userCacheKey(userID))
}
