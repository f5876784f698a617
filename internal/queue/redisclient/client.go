package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/geocoder89/authhub/internal/jobs"
	"github.com/redis/go-redis/v9"
)

const (
	readyList  = "authhub:jobs:ready"
	delayedSet = "authhub:jobs:delayed" // scored by run-at unix seconds
)

// ErrEmpty means the blocking pop timed out without a job.
var ErrEmpty = errors.New("queue empty")

type Client struct {
	redisdb *redis.Client
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func New(cfg Config) *Client {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  5 * time.Second, // must exceed the BRPOP block
		WriteTimeout: 2 * time.Second,
	})

	return &Client{redisdb: redisdb}
}

// this ping function checks redis connectivity

func (c *Client) Ping(ctx context.Context) error {
	return c.redisdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.redisdb.Close()
}

// Enqueue pushes the job to the ready list, or parks it in the delayed set
// when its run-at is still in the future (retry backoff lands here).
func (c *Client) Enqueue(ctx context.Context, j jobs.Job) error {
	b, err := json.Marshal(j)

	if err != nil {
		return err
	}

	if j.RunAt.After(time.Now().UTC()) {
		return c.redisdb.ZAdd(ctx, delayedSet, redis.Z{
			Score:  float64(j.RunAt.Unix()),
			Member: b,
		}).Err()
	}

	return c.redisdb.LPush(ctx, readyList, b).Err()
}

// Dequeue blocks up to timeout for the next ready job.
func (c *Client) Dequeue(ctx context.Context, timeout time.Duration) (jobs.Job, error) {
	res, err := c.redisdb.BRPop(ctx, timeout, readyList).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return jobs.Job{}, ErrEmpty
		}

		return jobs.Job{}, err
	}

	// BRPOP returns [key, value]
	if len(res) != 2 {
		return jobs.Job{}, ErrEmpty
	}

	var j jobs.Job

	err = json.Unmarshal([]byte(res[1]), &j)

	if err != nil {
		return jobs.Job{}, err
	}

	return j, nil
}

// PromoteDue moves jobs whose run-at has passed from the delayed set onto
// the ready list. Returns how many were moved. Workers call this on every
// poll tick.
func (c *Client) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	max := strconv.FormatInt(now.Unix(), 10)

	due, err := c.redisdb.ZRangeByScore(ctx, delayedSet, &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()

	if err != nil {
		return 0, err
	}

	moved := 0

	for _, member := range due {
		// remove first: if another worker raced us here, only one
		// ZRem succeeds and only that one pushes
		removed, err := c.redisdb.ZRem(ctx, delayedSet, member).Result()

		if err != nil {
			return moved, err
		}

		if removed == 0 {
			continue
		}

		err = c.redisdb.LPush(ctx, readyList, member).Err()

		if err != nil {
			return moved, err
		}

		moved++
	}

	return moved, nil
}
